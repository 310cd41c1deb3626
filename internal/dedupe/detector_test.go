package dedupe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldarium/qa-bench/internal/model"
)

func rec(docID string, fields map[string]string) Record {
	values := make(map[string]model.FieldValue, len(fields))
	for k, v := range fields {
		if v == "" {
			values[k] = model.FieldValue{Type: model.ValueText, Missing: true}
			continue
		}
		values[k] = model.FieldValue{Type: model.ValueText, Canonical: v, Standardized: true}
	}
	return Record{DocID: docID, Values: values}
}

func testDetector() *Detector {
	return New(DefaultWeights(), 0.92, 0.75)
}

func TestSimilaritySymmetric(t *testing.T) {
	d := testDetector()
	a := rec("a", map[string]string{"patient_name": "Avery Calderon", "patient_id": "P-100", "provider_name": "Dr. Okafor"})
	b := rec("b", map[string]string{"patient_name": "Avery Calderon", "patient_id": "P-200", "provider_name": "Dr. Okafor"})

	simAB := d.Similarity(a, b)
	simBA := d.Similarity(b, a)
	assert.Equal(t, simAB, simBA)
	assert.Equal(t, d.Decide(simAB), d.Decide(simBA))
}

func TestDecideBoundaries(t *testing.T) {
	d := testDetector()
	assert.Equal(t, model.DecisionMerge, d.Decide(0.92), "merge boundary is inclusive")
	assert.Equal(t, model.DecisionMerge, d.Decide(1.0))
	assert.Equal(t, model.DecisionReview, d.Decide(0.9199))
	assert.Equal(t, model.DecisionReview, d.Decide(0.75))
	assert.Equal(t, model.DecisionKeep, d.Decide(0.7499))
	assert.Equal(t, model.DecisionKeep, d.Decide(0))
}

func TestSimilarityAbsentKeysAgree(t *testing.T) {
	d := testDetector()
	a := rec("a", map[string]string{"patient_name": "Avery", "patient_id": "", "provider_name": ""})
	b := rec("b", map[string]string{"patient_name": "Avery", "patient_id": "", "provider_name": ""})
	assert.InDelta(t, 1.0, d.Similarity(a, b), 1e-9)

	c := rec("c", map[string]string{"patient_name": "Avery", "patient_id": "P-1", "provider_name": ""})
	assert.InDelta(t, 2.0/3.0, d.Similarity(a, c), 1e-9)
}

func TestDetectNoSelfPairsAndIdempotent(t *testing.T) {
	d := testDetector()
	records := []Record{
		rec("doc_c", map[string]string{"patient_name": "Avery", "patient_id": "P-1", "provider_name": "Dr. O"}),
		rec("doc_a", map[string]string{"patient_name": "Avery", "patient_id": "P-1", "provider_name": "Dr. O"}),
		rec("doc_b", map[string]string{"patient_name": "Jordan", "patient_id": "P-2", "provider_name": "Dr. K"}),
	}

	first, err := d.Detect(context.Background(), records, 4)
	require.NoError(t, err)
	second, err := d.Detect(context.Background(), records, 1)
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first, second), "unchanged corpus yields identical pairs")
	assert.Len(t, first, 3)
	for _, p := range first {
		assert.NotEqual(t, p.DocIDA, p.DocIDB, "a document never pairs with itself")
		assert.Less(t, p.DocIDA, p.DocIDB, "pairs are canonically ordered")
	}
}

func TestDetectDecisions(t *testing.T) {
	d := testDetector()
	records := []Record{
		rec("doc_a", map[string]string{"patient_name": "Avery", "patient_id": "P-1", "provider_name": "Dr. O"}),
		rec("doc_b", map[string]string{"patient_name": "Avery", "patient_id": "P-1", "provider_name": "Dr. O"}),
		rec("doc_c", map[string]string{"patient_name": "Jordan", "patient_id": "P-9", "provider_name": "Dr. K"}),
	}
	pairs, err := d.Detect(context.Background(), records, 2)
	require.NoError(t, err)
	require.Len(t, pairs, 3)

	byPair := map[string]model.DuplicateDecision{}
	for _, p := range pairs {
		byPair[p.DocIDA+"|"+p.DocIDB] = p.Decision
	}
	assert.Equal(t, model.DecisionMerge, byPair["doc_a|doc_b"])
	assert.Equal(t, model.DecisionKeep, byPair["doc_a|doc_c"])
	assert.Equal(t, model.DecisionKeep, byPair["doc_b|doc_c"])
}

func TestSummarizeReduction(t *testing.T) {
	pairs := []model.DuplicatePair{
		{DocIDA: "a", DocIDB: "b", Similarity: 1, Decision: model.DecisionMerge},
		{DocIDA: "a", DocIDB: "c", Similarity: 0.2, Decision: model.DecisionKeep},
		{DocIDA: "b", DocIDB: "c", Similarity: 0.8, Decision: model.DecisionReview},
	}
	s := Summarize(3, pairs)
	assert.Equal(t, 1, s.Merge)
	assert.Equal(t, 1, s.Keep)
	assert.Equal(t, 1, s.Review)
	require.NotNil(t, s.ReductionPct)
	// a+b collapse into one cluster: 2 clusters over 3 records.
	assert.InDelta(t, (1-2.0/3.0)*100, *s.ReductionPct, 1e-9)
}

func TestLoadWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedupe.yaml")
	body := `
dedupe:
  default_weight: 1.0
  keys: [patient_name, patient_id, provider_name]
  fields:
    patient_name:
      weight: 2.0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	w, err := LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, 2.0, w.weightFor("patient_name"))
	assert.Equal(t, 1.0, w.weightFor("patient_id"))
	assert.Equal(t, []string{"patient_name", "patient_id", "provider_name"}, w.Keys)
}

func TestLoadWeightsMissingFile(t *testing.T) {
	_, err := LoadWeights(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
