// Package match aligns predicted and ground-truth records by
// (doc_id, field_name) and produces per-field match verdicts.
package match

import (
	"fmt"
	"math"
	"strings"

	"github.com/caldarium/qa-bench/internal/model"
	"github.com/caldarium/qa-bench/internal/normalize"
)

// Document compares every declared field of one document. Fields whose
// ground truth is null/not-applicable are excluded from scoring and counted
// in the returned coverage, never reported as misses.
func Document(docID string, specs []model.FieldSpec, pred, gt map[string]model.FieldValue) ([]model.MatchResult, model.Coverage) {
	results := make([]model.MatchResult, 0, len(specs))
	cov := model.Coverage{TotalFields: len(specs)}

	for _, spec := range specs {
		rec := model.FieldRecord{
			DocID:       docID,
			FieldName:   spec.Name,
			Type:        spec.Type,
			Predicted:   valueOrMissing(pred, spec),
			GroundTruth: valueOrMissing(gt, spec),
		}
		res, excluded := One(rec)
		if excluded {
			cov.ExcludedNull++
			continue
		}
		cov.Scored++
		results = append(results, res)
	}
	return results, cov
}

// One compares a single FieldRecord. The second return value reports the
// explicit ground-truth-null exclusion.
func One(rec model.FieldRecord) (model.MatchResult, bool) {
	res := model.MatchResult{
		DocID:       rec.DocID,
		FieldName:   rec.FieldName,
		Predicted:   canonicalKey(rec.Predicted),
		GroundTruth: canonicalKey(rec.GroundTruth),
		PredPresent: rec.Predicted.Present(),
		GTPresent:   rec.GroundTruth.Present(),
	}

	// Null ground truth: not scorable at all.
	if rec.GroundTruth.Missing {
		return model.MatchResult{}, true
	}

	switch {
	case !res.PredPresent && !res.GTPresent:
		// Both sides agree the field is blank.
		res.Status, res.Score, res.Detail = model.MatchExact, 1, "both_blank"
	case !res.PredPresent:
		res.Status, res.Detail = model.MatchMiss, "parser_missing"
	case !res.GTPresent:
		res.Status, res.Detail = model.MatchMiss, "gt_blank"
	default:
		res.Status, res.Score, res.Detail = compare(rec)
	}
	return res, false
}

func valueOrMissing(values map[string]model.FieldValue, spec model.FieldSpec) model.FieldValue {
	if v, ok := values[spec.Name]; ok {
		return v
	}
	return model.FieldValue{Type: spec.Type, Missing: true}
}

// compare applies the type-specific comparison rule to two present values.
func compare(rec model.FieldRecord) (model.MatchStatus, float64, string) {
	p, g := rec.Predicted, rec.GroundTruth

	if rec.Type == model.ValueList {
		return compareLists(p.Items, g.Items)
	}

	if strings.EqualFold(p.Canonical, g.Canonical) {
		return model.MatchExact, 1, "exact_match"
	}

	switch rec.Type {
	case model.ValueDate:
		// Same digits with different separators still agree on the date.
		if stripSeparators(p.Canonical) == stripSeparators(g.Canonical) {
			return model.MatchExact, 1, "date_match"
		}
	case model.ValueCurrency:
		pf, perr := normalize.ParseMoney(p.Canonical)
		gf, gerr := normalize.ParseMoney(g.Canonical)
		if perr == nil && gerr == nil && math.Abs(pf-gf) <= 0.01 {
			return model.MatchExact, 1, "numeric_match"
		}
	}

	return model.MatchMiss, 0, "mismatch"
}

// compareLists computes multiset overlap on the similarity keys. Full
// overlap with equal lengths is exact; partial overlap scores fractionally
// against the larger side.
func compareLists(pred, gt []model.ListItem) (model.MatchStatus, float64, string) {
	if len(pred) == 0 && len(gt) == 0 {
		return model.MatchExact, 1, "both_empty"
	}
	if len(pred) == 0 || len(gt) == 0 {
		return model.MatchMiss, 0, "one_side_empty"
	}

	gtCounts := make(map[string]int, len(gt))
	for _, it := range gt {
		gtCounts[it.Key]++
	}
	matched := 0
	for _, it := range pred {
		if gtCounts[it.Key] > 0 {
			gtCounts[it.Key]--
			matched++
		}
	}

	denom := len(gt)
	if len(pred) > denom {
		denom = len(pred)
	}
	frac := float64(matched) / float64(denom)
	switch {
	case matched == len(gt) && len(pred) == len(gt):
		return model.MatchExact, 1, "exact_match_by_key"
	case matched == 0:
		return model.MatchMiss, 0, "no_overlap"
	default:
		return model.MatchPartial, frac, fmt.Sprintf("partial_match_%d/%d", matched, denom)
	}
}

// canonicalKey renders the canonical comparison value for marginal
// distributions. List values collapse to their joined item keys.
func canonicalKey(v model.FieldValue) string {
	if v.Type == model.ValueList && len(v.Items) > 0 {
		keys := make([]string, len(v.Items))
		for i, it := range v.Items {
			keys[i] = it.Key
		}
		return strings.Join(keys, ";")
	}
	return strings.ToLower(v.Canonical)
}

func stripSeparators(s string) string {
	return strings.NewReplacer("-", "", "/", "").Replace(s)
}
