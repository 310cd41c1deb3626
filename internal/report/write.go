package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caldarium/qa-bench/internal/model"
	"github.com/caldarium/qa-bench/internal/normalize"
)

// Artifact file names inside the output directory.
const (
	DashboardFile = "benchmark_dashboard.json"
	MarkdownFile  = "benchmark_report.md"
	DriftFile     = "standardization_drift.jsonl"
	AuditFile     = "audit.jsonl"
)

// CSVFile names the per-type benchmark results table.
func CSVFile(docType string) string {
	return fmt.Sprintf("%s_benchmark_results.csv", docType)
}

// WriteAll serializes every report artifact into dir. The audit log is not
// written here: the audit logger appends it live during the run.
func WriteAll(dir string, rep *model.Report, drift *normalize.DriftLog) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "report: create output dir %s", dir)
	}
	if err := WriteDashboard(filepath.Join(dir, DashboardFile), rep); err != nil {
		return err
	}
	for _, name := range sortedTypeNames(rep.Types) {
		if err := WriteCSV(filepath.Join(dir, CSVFile(name)), rep.Types[name]); err != nil {
			return err
		}
	}
	if err := WriteDrift(filepath.Join(dir, DriftFile), drift); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, MarkdownFile), []byte(Markdown(rep)), 0o644); err != nil {
		return eris.Wrap(err, "report: write markdown")
	}
	zap.L().Info("report: artifacts written", zap.String("dir", dir))
	return nil
}

// WriteDashboard serializes the full report as indented JSON.
func WriteDashboard(path string, rep *model.Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal dashboard")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrap(err, "report: write dashboard")
	}
	return nil
}

// WriteCSV writes one type's field-by-metric table.
func WriteCSV(path string, sec *model.TypeSection) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create csv %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"field", "exact", "partial", "miss", "pred_present", "gt_present", "precision", "recall", "f1", "exact_match_rate"}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	if sec.Metrics != nil {
		for _, fm := range sec.Metrics.PerField {
			row := []string{
				fm.Field,
				strconv.Itoa(fm.Exact),
				strconv.Itoa(fm.Partial),
				strconv.Itoa(fm.Miss),
				strconv.Itoa(fm.PredPresent),
				strconv.Itoa(fm.GTPresent),
				fmtMetric(fm.Precision),
				fmtMetric(fm.Recall),
				fmtMetric(fm.F1),
				fmtMetric(fm.ExactMatchRate),
			}
			if err := w.Write(row); err != nil {
				return eris.Wrap(err, "report: write csv row")
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "report: flush csv")
	}
	return nil
}

// WriteDrift serializes the drift log, one JSON object per line, sorted.
func WriteDrift(path string, drift *normalize.DriftLog) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create drift log %s", path)
	}
	defer f.Close()
	if drift == nil {
		return nil
	}
	if err := drift.WriteJSONL(f); err != nil {
		return eris.Wrap(err, "report: write drift log")
	}
	return nil
}

// fmtMetric renders a nullable metric. Absent values stay visibly absent.
func fmtMetric(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*p, 'f', 4, 64)
}

func fmtPct(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *p*100)
}

// Markdown renders the human-readable summary, a thin formatter over the
// report entity.
func Markdown(rep *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Benchmark Report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", rep.Run.RunID)
	fmt.Fprintf(&b, "- Started: %s\n", rep.Run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Seed: %d\n", rep.Run.Seed)
	if len(rep.Run.Engines) > 0 {
		fmt.Fprintf(&b, "- Engines: %s\n", strings.Join(rep.Run.Engines, ", "))
	}
	fmt.Fprintf(&b, "- Config digest: `%s`\n\n", rep.Run.ConfigDigest)

	fmt.Fprintf(&b, "## Cross-Type Rollup\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Avg F1 | %s |\n", fmtMetric(rep.Rollup.F1))
	fmt.Fprintf(&b, "| Avg recall | %s |\n", fmtMetric(rep.Rollup.Recall))
	fmt.Fprintf(&b, "| Avg validation rate | %s |\n", fmtPct(rep.Rollup.ValidationRate))
	fmt.Fprintf(&b, "| Types evaluated | %d |\n", rep.Rollup.TypesEvaluated)
	if len(rep.Rollup.Skipped) > 0 {
		fmt.Fprintf(&b, "| Skipped (no documents) | %s |\n", strings.Join(rep.Rollup.Skipped, ", "))
	}
	b.WriteString("\n")

	for _, name := range sortedTypeNames(rep.Types) {
		writeTypeSection(&b, rep.Types[name])
	}

	writeRecommendations(&b, rep)
	return b.String()
}

func writeTypeSection(b *strings.Builder, sec *model.TypeSection) {
	fmt.Fprintf(b, "## %s\n\n", sec.DocumentType)
	fmt.Fprintf(b, "Documents evaluated: %d\n\n", sec.Documents)

	if sec.Metrics != nil {
		m := sec.Metrics
		fmt.Fprintf(b, "| Metric | Value |\n|---|---|\n")
		fmt.Fprintf(b, "| Exact match rate | %s |\n", fmtMetric(m.ExactMatchRate))
		fmt.Fprintf(b, "| Hybrid kappa | %s |\n", fmtMetric(m.HybridKappa))
		fmt.Fprintf(b, "| Micro P / R / F1 | %s / %s / %s |\n",
			fmtMetric(m.Micro.Precision), fmtMetric(m.Micro.Recall), fmtMetric(m.Micro.F1))
		fmt.Fprintf(b, "| Macro P / R / F1 | %s / %s / %s |\n",
			fmtMetric(m.Macro.Precision), fmtMetric(m.Macro.Recall), fmtMetric(m.Macro.F1))
		fmt.Fprintf(b, "| Coverage | %d scored / %d total (%d GT-null excluded) |\n",
			m.Coverage.Scored, m.Coverage.TotalFields, m.Coverage.ExcludedNull)
		fmt.Fprintf(b, "| Validation rate | %s |\n", fmtPct(sec.Validation.ValidationRate))
		fmt.Fprintf(b, "| Standardization rate | %s |\n", fmtPct(sec.Validation.StandardizationRate))
		fmt.Fprintf(b, "| Blank field rate | %s |\n", fmtPct(sec.Validation.BlankFieldRate))
		b.WriteString("\n")
	}

	d := sec.Duplicates
	fmt.Fprintf(b, "Duplicates: %d pairs over %d records (merge %d, review %d, keep %d", d.Pairs, d.Records, d.Merge, d.Review, d.Keep)
	if d.ReductionPct != nil {
		fmt.Fprintf(b, ", reduction %.1f%%", *d.ReductionPct)
	}
	b.WriteString(")\n\n")

	if sec.Determinism != nil {
		if sec.Determinism.Deterministic {
			b.WriteString("Determinism: PASS (hashes identical)\n\n")
		} else {
			fmt.Fprintf(b, "Determinism: FAIL (`%s` vs `%s`)\n\n", sec.Determinism.Hash1, sec.Determinism.Hash2)
		}
	}

	if len(sec.ErrorCounts) > 0 {
		fmt.Fprintf(b, "| Error code | Count |\n|---|---|\n")
		codes := make([]string, 0, len(sec.ErrorCounts))
		for code := range sec.ErrorCounts {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Fprintf(b, "| %s | %d |\n", code, sec.ErrorCounts[code])
		}
		b.WriteString("\n")
	}
}

// writeRecommendations derives the stakeholder action list from threshold
// status, error mix, and review queues.
func writeRecommendations(b *strings.Builder, rep *model.Report) {
	var recs []string
	for _, name := range sortedTypeNames(rep.Types) {
		sec := rep.Types[name]
		if met := sec.Thresholds.HybridKappaMet; met != nil && !*met {
			recs = append(recs, fmt.Sprintf("%s: hybrid kappa below threshold; review field normalization and matcher rules before promoting parser changes.", name))
		}
		for _, field := range sortedKeys(sec.Thresholds.CriticalFields) {
			met := sec.Thresholds.CriticalFields[field]
			if met != nil && !*met {
				recs = append(recs, fmt.Sprintf("%s: critical field %q misses its F1 bar; prioritize extraction fixes for it.", name, field))
			}
		}
		if n := sec.Duplicates.Review; n > 0 {
			recs = append(recs, fmt.Sprintf("%s: %d duplicate pair(s) queued for manual review.", name, n))
		}
		if n := sec.ErrorCounts[string(model.CodeExtractionFail)]; n > 0 {
			recs = append(recs, fmt.Sprintf("%s: %d document(s) produced no usable payload; inspect the extraction stage.", name, n))
		}
		if sec.Determinism != nil && !sec.Determinism.Deterministic {
			recs = append(recs, fmt.Sprintf("%s: pipeline output is not reproducible; diff logged under run %s.", name, rep.Run.RunID))
		}
	}

	fmt.Fprintf(b, "## Recommendations\n\n")
	if len(recs) == 0 {
		b.WriteString("No action items: all thresholds met, no review queue, output reproducible.\n")
		return
	}
	for _, r := range recs {
		fmt.Fprintf(b, "- %s\n", r)
	}
}

func sortedKeys(m map[string]*bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
