// Package metrics computes agreement metrics over match verdicts: per-field
// and aggregate precision, recall, F1, exact-match rate, and the
// chance-corrected hybrid kappa score.
package metrics

import (
	"sort"

	"github.com/caldarium/qa-bench/internal/model"
)

// kappaEpsilon guards the degenerate branch where expected agreement
// saturates and the kappa denominator collapses.
const kappaEpsilon = 1e-9

// Options carries the threshold configuration for one document type.
type Options struct {
	KappaThreshold      float64
	CriticalF1Threshold float64
	CriticalFields      []string
}

// Compute derives the full MetricSet for one document type from its scored
// match results and coverage. The same result population feeds the per-field
// and aggregate numbers; metrics whose population is empty come back nil
// (N/A), never NaN or a fabricated zero.
//
// ExactMatchRate uses the full evaluated-field denominator (scored plus the
// explicitly excluded GT-null fields reported in coverage); precision,
// recall, F1, and HybridKappa are computed over the scored population.
func Compute(results []model.MatchResult, cov model.Coverage) *model.MetricSet {
	ms := &model.MetricSet{Coverage: cov}

	byField := make(map[string]*model.FieldMetrics)
	presentExact := make(map[string]int)
	var order []string
	totalExact := 0
	totalPresentExact := 0

	for _, r := range results {
		fm, ok := byField[r.FieldName]
		if !ok {
			fm = &model.FieldMetrics{Field: r.FieldName}
			byField[r.FieldName] = fm
			order = append(order, r.FieldName)
		}
		switch r.Status {
		case model.MatchExact:
			fm.Exact++
			totalExact++
			// Blank-agreement exacts have no presence on either side. They
			// count toward the exact-match rate but stay out of the
			// precision/recall numerators, whose denominators only see
			// present values.
			if r.PredPresent {
				presentExact[r.FieldName]++
				totalPresentExact++
			}
		case model.MatchPartial:
			fm.Partial++
		case model.MatchMiss:
			fm.Miss++
		}
		if r.PredPresent {
			fm.PredPresent++
		}
		if r.GTPresent {
			fm.GTPresent++
		}
	}

	sort.Strings(order)
	var microPred, microGT int
	for _, name := range order {
		fm := byField[name]
		fillFieldMetrics(fm, presentExact[name])
		ms.PerField = append(ms.PerField, *fm)
		microPred += fm.PredPresent
		microGT += fm.GTPresent
	}

	ms.Micro = aggregate(totalPresentExact, totalExact, microPred, microGT, len(results))
	ms.Macro = macroAverage(ms.PerField)
	ms.ExactMatchRate = ratio(totalExact, cov.TotalFields)
	ms.HybridKappa = hybridKappa(results)
	return ms
}

// fillFieldMetrics computes the per-field rates. A field absent from both
// sides across every document has no defined metrics. The presentExact count
// restricts the precision/recall numerators to exacts between present
// values; fm.Exact still includes blank agreements for the exact-match rate.
func fillFieldMetrics(fm *model.FieldMetrics, presentExact int) {
	scored := fm.Exact + fm.Partial + fm.Miss
	if fm.PredPresent == 0 && fm.GTPresent == 0 {
		fm.ExactMatchRate = ratio(fm.Exact, scored)
		return
	}
	p := safeDiv(float64(presentExact), float64(fm.PredPresent))
	r := safeDiv(float64(presentExact), float64(fm.GTPresent))
	fm.Precision = model.Ptr(p)
	fm.Recall = model.Ptr(r)
	fm.F1 = model.Ptr(harmonic(p, r))
	fm.ExactMatchRate = ratio(fm.Exact, scored)
}

func aggregate(presentExact, exact, predPresent, gtPresent, scored int) model.AggregateMetrics {
	var agg model.AggregateMetrics
	if predPresent == 0 && gtPresent == 0 {
		agg.ExactMatchRate = ratio(exact, scored)
		return agg
	}
	p := safeDiv(float64(presentExact), float64(predPresent))
	r := safeDiv(float64(presentExact), float64(gtPresent))
	agg.Precision = model.Ptr(p)
	agg.Recall = model.Ptr(r)
	agg.F1 = model.Ptr(harmonic(p, r))
	agg.ExactMatchRate = ratio(exact, scored)
	return agg
}

// macroAverage averages the per-field metrics, skipping N/A entries instead
// of counting them as zero.
func macroAverage(fields []model.FieldMetrics) model.AggregateMetrics {
	var agg model.AggregateMetrics
	agg.Precision = meanOf(fields, func(f model.FieldMetrics) *float64 { return f.Precision })
	agg.Recall = meanOf(fields, func(f model.FieldMetrics) *float64 { return f.Recall })
	agg.F1 = meanOf(fields, func(f model.FieldMetrics) *float64 { return f.F1 })
	agg.ExactMatchRate = meanOf(fields, func(f model.FieldMetrics) *float64 { return f.ExactMatchRate })
	return agg
}

// hybridKappa computes the chance-corrected agreement score.
//
// Observed agreement is the mean match score over the scored population
// (partial list matches contribute fractionally, which is what makes the
// score "hybrid"). Expected agreement is the marginal-frequency chance
// baseline: sum over canonical values v of p_pred(v) * p_gt(v). When the
// denominator collapses (expected agreement saturating at 1), the score
// degenerates to the observed rate; with all-unique, never-shared values the
// expected term is 0 and kappa equals the observed rate outright.
//
// The result is clamped to [0, 1] per the metric invariant.
func hybridKappa(results []model.MatchResult) *float64 {
	n := len(results)
	if n == 0 {
		return nil
	}

	var observed float64
	predFreq := make(map[string]int, n)
	gtFreq := make(map[string]int, n)
	for _, r := range results {
		observed += r.Score
		predFreq[r.Predicted]++
		gtFreq[r.GroundTruth]++
	}
	observed /= float64(n)

	var expected float64
	for v, pc := range predFreq {
		if gc, ok := gtFreq[v]; ok {
			expected += (float64(pc) / float64(n)) * (float64(gc) / float64(n))
		}
	}

	if 1-expected <= kappaEpsilon {
		return model.Ptr(clamp01(observed))
	}
	return model.Ptr(clamp01((observed - expected) / (1 - expected)))
}

// Thresholds evaluates the metric set against the configured quality bars.
func Thresholds(ms *model.MetricSet, opt Options) model.ThresholdStatus {
	status := model.ThresholdStatus{}
	if ms.HybridKappa != nil {
		met := *ms.HybridKappa >= opt.KappaThreshold
		status.HybridKappaMet = &met
	}
	if len(opt.CriticalFields) == 0 {
		return status
	}

	status.CriticalFields = make(map[string]*bool, len(opt.CriticalFields))
	byField := make(map[string]model.FieldMetrics, len(ms.PerField))
	for _, fm := range ms.PerField {
		byField[fm.Field] = fm
	}
	for _, name := range opt.CriticalFields {
		fm, ok := byField[name]
		if !ok || fm.F1 == nil {
			status.CriticalFields[name] = nil
			continue
		}
		met := *fm.F1 >= opt.CriticalF1Threshold
		status.CriticalFields[name] = &met
	}
	return status
}

func ratio(num, denom int) *float64 {
	if denom == 0 {
		return nil
	}
	return model.Ptr(float64(num) / float64(denom))
}

func safeDiv(num, denom float64) float64 {
	if denom == 0 {
		return 0
	}
	return num / denom
}

func harmonic(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func meanOf(fields []model.FieldMetrics, get func(model.FieldMetrics) *float64) *float64 {
	var sum float64
	var n int
	for _, f := range fields {
		if v := get(f); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return model.Ptr(sum / float64(n))
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
