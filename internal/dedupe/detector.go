// Package dedupe detects near-duplicate records within a document type by
// weighted field overlap over normalized values. The detector is pure: the
// same corpus always yields the same DuplicatePair set, and pair evaluation
// is symmetric by construction.
package dedupe

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/caldarium/qa-bench/internal/model"
)

// Record is one document's normalized identity fields.
type Record struct {
	DocID  string
	Values map[string]model.FieldValue
}

// Detector scores candidate pairs and classifies them against the merge
// threshold and review floor.
type Detector struct {
	weights        Weights
	mergeThreshold float64
	reviewFloor    float64
}

// New creates a Detector. The merge boundary is inclusive: similarity equal
// to the merge threshold is a merge.
func New(weights Weights, mergeThreshold, reviewFloor float64) *Detector {
	return &Detector{
		weights:        weights,
		mergeThreshold: mergeThreshold,
		reviewFloor:    reviewFloor,
	}
}

// Detect evaluates all candidate pairs within one document type,
// parallelized over pairs. Records are ordered by doc ID first so each pair
// has a single canonical representation (DocIDA < DocIDB) and repeated runs
// produce identical output.
func (d *Detector) Detect(ctx context.Context, records []Record, workers int) ([]model.DuplicatePair, error) {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DocID < sorted[j].DocID })

	n := len(sorted)
	if n < 2 {
		return nil, nil
	}

	type pairIdx struct{ a, b int }
	var idx []pairIdx
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			idx = append(idx, pairIdx{i, j})
		}
	}

	pairs := make([]model.DuplicatePair, len(idx))
	g, gctx := errgroup.WithContext(ctx)
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for k, p := range idx {
		k, p := k, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "dedupe: canceled")
			}
			a, b := sorted[p.a], sorted[p.b]
			sim := d.Similarity(a, b)
			pairs[k] = model.DuplicatePair{
				DocIDA:     a.DocID,
				DocIDB:     b.DocID,
				Similarity: sim,
				Decision:   d.Decide(sim),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Debug("dedupe: pairwise pass complete",
		zap.Int("records", n),
		zap.Int("pairs", len(pairs)),
	)
	return pairs, nil
}

// Similarity computes the weighted agreement over the configured key fields.
// Two records agreeing that a key is absent still agree; one-sided presence
// counts fully against. Symmetric in its arguments.
func (d *Detector) Similarity(a, b Record) float64 {
	var agree, total float64
	for _, key := range d.weights.Keys {
		w := d.weights.weightFor(key)
		total += w
		av, bv := a.Values[key], b.Values[key]
		switch {
		case !av.Present() && !bv.Present():
			agree += w
		case av.Present() && bv.Present() && strings.EqualFold(av.Canonical, bv.Canonical):
			agree += w
		}
	}
	if total == 0 {
		return 0
	}
	return agree / total
}

// Decide maps a similarity score to a decision. Scores between the review
// floor and the merge threshold are queued for human review, never
// auto-resolved.
func (d *Detector) Decide(sim float64) model.DuplicateDecision {
	switch {
	case sim >= d.mergeThreshold:
		return model.DecisionMerge
	case sim < d.reviewFloor:
		return model.DecisionKeep
	default:
		return model.DecisionReview
	}
}

// Summarize aggregates a pair set into the per-type duplicate summary. The
// reduction percentage collapses merge-decided pairs into clusters:
// (1 - clusters/records) * 100.
func Summarize(records int, pairs []model.DuplicatePair) model.DuplicateSummary {
	summary := model.DuplicateSummary{Records: records, Pairs: len(pairs)}

	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(x, y string) {
		if _, ok := parent[x]; !ok {
			parent[x] = x
		}
		if _, ok := parent[y]; !ok {
			parent[y] = y
		}
		rx, ry := find(x), find(y)
		if rx != ry {
			parent[ry] = rx
		}
	}

	for _, p := range pairs {
		switch p.Decision {
		case model.DecisionMerge:
			summary.Merge++
			union(p.DocIDA, p.DocIDB)
		case model.DecisionKeep:
			summary.Keep++
		case model.DecisionReview:
			summary.Review++
		}
	}

	if records > 0 {
		merged := 0
		roots := make(map[string]bool)
		for x := range parent {
			merged++
			roots[find(x)] = true
		}
		clusters := records - merged + len(roots)
		summary.ReductionPct = model.Ptr((1 - float64(clusters)/float64(records)) * 100)
	}
	return summary
}
