// Package report assembles the unified benchmark report: per-type sections,
// the cross-type rollup, and the serialized artifacts (dashboard JSON,
// per-type CSV, markdown summary).
package report

import (
	"sort"

	"github.com/caldarium/qa-bench/internal/bench"
	"github.com/caldarium/qa-bench/internal/model"
)

// BuildTypeSection reduces one document type's evaluation outputs into its
// report section.
func BuildTypeSection(out *bench.TypeOutcome, ms *model.MetricSet, th model.ThresholdStatus, dup model.DuplicateSummary, det *model.DeterminismCheck) *model.TypeSection {
	sec := &model.TypeSection{
		DocumentType: out.DocumentType,
		Documents:    out.Documents,
		Metrics:      ms,
		Duplicates:   dup,
		Determinism:  det,
		ErrorCounts:  map[string]int{},
		Thresholds:   th,
	}

	for _, ev := range out.Events {
		sec.ErrorCounts[string(ev.ErrorCode)]++
	}

	passed := 0
	for _, vr := range out.Validation {
		if vr.Passed {
			passed++
		}
	}
	sec.Validation = model.ValidationSummary{
		TotalChecks: len(out.Validation),
		Passed:      passed,
		BlankFields: out.BlankFields,
	}
	if len(out.Validation) > 0 {
		sec.Validation.ValidationRate = model.Ptr(float64(passed) / float64(len(out.Validation)))
	}
	if out.PresentFields > 0 {
		sec.Validation.StandardizationRate = model.Ptr(float64(out.StandardizedFields) / float64(out.PresentFields))
	}
	if out.TotalFields > 0 {
		sec.Validation.BlankFieldRate = model.Ptr(float64(out.BlankFields) / float64(out.TotalFields))
	}
	return sec
}

// Build assembles the cross-type report. The rollup averages headline
// metrics over types that evaluated at least one document; empty types are
// listed as skipped instead of dragging the averages toward zero.
func Build(run model.RunInfo, sections map[string]*model.TypeSection) *model.Report {
	rep := &model.Report{Run: run, Types: sections}

	var f1s, recalls, valRates []float64
	for _, name := range sortedTypeNames(sections) {
		sec := sections[name]
		if sec.Documents == 0 || sec.Metrics == nil {
			rep.Rollup.Skipped = append(rep.Rollup.Skipped, name)
			continue
		}
		rep.Rollup.TypesEvaluated++
		if v := sec.Metrics.Micro.F1; v != nil {
			f1s = append(f1s, *v)
		}
		if v := sec.Metrics.Micro.Recall; v != nil {
			recalls = append(recalls, *v)
		}
		if v := sec.Validation.ValidationRate; v != nil {
			valRates = append(valRates, *v)
		}
	}
	rep.Rollup.F1 = mean(f1s)
	rep.Rollup.Recall = mean(recalls)
	rep.Rollup.ValidationRate = mean(valRates)
	return rep
}

func sortedTypeNames(sections map[string]*model.TypeSection) []string {
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mean(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return model.Ptr(sum / float64(len(vals)))
}
