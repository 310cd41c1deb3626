package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldarium/qa-bench/internal/model"
	"github.com/caldarium/qa-bench/internal/normalize"
)

func present(typ model.ValueType, canonical string) model.FieldValue {
	return model.FieldValue{Type: typ, Canonical: canonical, Standardized: true}
}

func TestOneExactAndMiss(t *testing.T) {
	tests := []struct {
		name   string
		rec    model.FieldRecord
		status model.MatchStatus
		score  float64
	}{
		{
			"exact text",
			model.FieldRecord{Type: model.ValueText,
				Predicted:   present(model.ValueText, "Avery Calderon"),
				GroundTruth: present(model.ValueText, "avery calderon")},
			model.MatchExact, 1,
		},
		{
			"date separators ignored",
			model.FieldRecord{Type: model.ValueDate,
				Predicted:   present(model.ValueDate, "2024/03/01"),
				GroundTruth: present(model.ValueDate, "2024-03-01")},
			model.MatchExact, 1,
		},
		{
			"currency tolerance",
			model.FieldRecord{Type: model.ValueCurrency,
				Predicted:   present(model.ValueCurrency, "120.00"),
				GroundTruth: present(model.ValueCurrency, "120.005")},
			model.MatchExact, 1,
		},
		{
			"text mismatch",
			model.FieldRecord{Type: model.ValueText,
				Predicted:   present(model.ValueText, "Avery"),
				GroundTruth: present(model.ValueText, "Jordan")},
			model.MatchMiss, 0,
		},
		{
			"parser missing",
			model.FieldRecord{Type: model.ValueText,
				Predicted:   model.FieldValue{Type: model.ValueText, Missing: true},
				GroundTruth: present(model.ValueText, "Jordan")},
			model.MatchMiss, 0,
		},
		{
			"both blank agree",
			model.FieldRecord{Type: model.ValueText,
				Predicted:   model.FieldValue{Type: model.ValueText, Blank: true},
				GroundTruth: model.FieldValue{Type: model.ValueText, Blank: true}},
			model.MatchExact, 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, excluded := One(tt.rec)
			require.False(t, excluded)
			assert.Equal(t, tt.status, res.Status)
			assert.InDelta(t, tt.score, res.Score, 1e-9)
		})
	}
}

func TestOneGroundTruthNullExcluded(t *testing.T) {
	rec := model.FieldRecord{
		DocID: "doc2", FieldName: "provider_name", Type: model.ValueText,
		Predicted:   present(model.ValueText, "Dr. Okafor"),
		GroundTruth: model.FieldValue{Type: model.ValueText, Missing: true},
	}
	_, excluded := One(rec)
	assert.True(t, excluded, "null ground truth is excluded, not a miss")
}

func TestCompareListsPartial(t *testing.T) {
	items := func(keys ...string) []model.ListItem {
		out := make([]model.ListItem, len(keys))
		for i, k := range keys {
			out[i] = model.ListItem{Key: k}
		}
		return out
	}

	status, score, detail := compareLists(items("a|1.00", "b|2.00", "x|9.00"), items("a|1.00", "b|2.00", "c|3.00"))
	assert.Equal(t, model.MatchPartial, status)
	assert.InDelta(t, 2.0/3.0, score, 1e-9)
	assert.Equal(t, "partial_match_2/3", detail)

	status, score, _ = compareLists(items("a|1.00"), items("a|1.00"))
	assert.Equal(t, model.MatchExact, status)
	assert.InDelta(t, 1.0, score, 1e-9)

	status, score, _ = compareLists(items("z|0.00"), items("a|1.00"))
	assert.Equal(t, model.MatchMiss, status)
	assert.Zero(t, score)
}

func TestDocumentCoverage(t *testing.T) {
	specs := []model.FieldSpec{
		{Name: "patient_name", Type: model.ValueText},
		{Name: "patient_phone", Type: model.ValuePhone},
		{Name: "provider_name", Type: model.ValueText},
	}
	n := normalize.New(nil)
	pred := map[string]model.FieldValue{
		"patient_name":  n.Field("d1", specs[0], "Avery Calderon"),
		"patient_phone": n.Field("d1", specs[1], "(894) 975-3639"),
		"provider_name": n.Field("d1", specs[2], "Dr. Okafor"),
	}
	gt := map[string]model.FieldValue{
		"patient_name":  n.Field("d1", specs[0], "Avery Calderon"),
		"patient_phone": n.Field("d1", specs[1], "8949753639"),
		"provider_name": n.Field("d1", specs[2], nil), // not applicable
	}

	results, cov := Document("d1", specs, pred, gt)
	assert.Len(t, results, 2)
	assert.Equal(t, model.Coverage{TotalFields: 3, Scored: 2, ExcludedNull: 1}, cov)
	for _, r := range results {
		assert.Equal(t, model.MatchExact, r.Status)
	}
}
