package normalize

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldarium/qa-bench/internal/model"
)

func phoneSpec() model.FieldSpec {
	return model.FieldSpec{Name: "patient_phone", Type: model.ValuePhone}
}

func TestPhoneNormalization(t *testing.T) {
	n := New(NewDriftLog())

	fv := n.Field("doc1", phoneSpec(), "(894) 975-3639")
	assert.Equal(t, "8949753639", fv.Canonical)
	assert.True(t, fv.Standardized)
}

func TestPhoneTooShortIsNotStandardized(t *testing.T) {
	drift := NewDriftLog()
	n := New(drift)

	fv := n.Field("doc1", phoneSpec(), "555-1234")
	assert.Equal(t, "5551234", fv.Canonical)
	assert.False(t, fv.Standardized, "short phone is not standardized, not an error")
	assert.False(t, fv.Missing)

	recs := drift.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, RulePhoneNotStandardized, recs[0].Rule)
	assert.Equal(t, "patient_phone", recs[0].Field)
}

func TestDateNormalization(t *testing.T) {
	tests := []struct {
		name         string
		raw          any
		canonical    string
		standardized bool
		driftCount   int
	}{
		{"iso passes", "2024-03-01", "2024-03-01", true, 0},
		{"iso with whitespace", " 2024-03-01 ", "2024-03-01", true, 0},
		{"us format passed through flagged", "03/01/2024", "03/01/2024", false, 1},
		{"garbage passed through flagged", "next tuesday", "next tuesday", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drift := NewDriftLog()
			n := New(drift)
			fv := n.Field("doc1", model.FieldSpec{Name: "patient_dob", Type: model.ValueDate}, tt.raw)
			assert.Equal(t, tt.canonical, fv.Canonical)
			assert.Equal(t, tt.standardized, fv.Standardized)
			assert.Equal(t, tt.driftCount, drift.Len())
		})
	}
}

func TestTextBlankVsMissing(t *testing.T) {
	n := New(nil)
	spec := model.FieldSpec{Name: "provider_name", Type: model.ValueText}

	missing := n.Field("doc1", spec, nil)
	assert.True(t, missing.Missing)
	assert.False(t, missing.Blank)

	blank := n.Field("doc1", spec, "   ")
	assert.True(t, blank.Blank)
	assert.False(t, blank.Missing)
	assert.False(t, blank.Present())

	present := n.Field("doc1", spec, "  Dr.  Okafor ")
	assert.Equal(t, "Dr. Okafor", present.Canonical)
	assert.True(t, present.Present())
}

func TestCurrencyNormalization(t *testing.T) {
	drift := NewDriftLog()
	n := New(drift)
	spec := model.FieldSpec{Name: "total_amount", Type: model.ValueCurrency}

	fv := n.Field("doc1", spec, "$1,234.5")
	assert.Equal(t, "1234.50", fv.Canonical)
	assert.True(t, fv.Standardized)

	num := n.Field("doc1", spec, 1234.5)
	assert.Equal(t, "1234.50", num.Canonical)

	bad := n.Field("doc1", spec, "twelve dollars")
	assert.False(t, bad.Standardized)
	assert.Equal(t, 1, drift.Len())
}

func TestListNormalization(t *testing.T) {
	n := New(NewDriftLog())
	spec := model.FieldSpec{Name: "line_items", Type: model.ValueList, ListKey: []string{"code", "amount"}}

	fv := n.Field("doc1", spec, []any{
		map[string]any{"code": "A10", "description": "Room fee", "amount": "$120.00"},
		map[string]any{"code": "B22", "description": "Lab work", "amount": 45.5},
	})
	require.Len(t, fv.Items, 2)
	assert.Equal(t, "a10|120.00", fv.Items[0].Key)
	assert.Equal(t, "b22|45.50", fv.Items[1].Key)
	assert.True(t, fv.Standardized)
}

func TestListMalformed(t *testing.T) {
	drift := NewDriftLog()
	n := New(drift)
	spec := model.FieldSpec{Name: "line_items", Type: model.ValueList}

	fv := n.Field("doc1", spec, "not a list")
	assert.False(t, fv.Standardized)
	require.Equal(t, 1, drift.Len())
	assert.Equal(t, RuleListMalformed, drift.Records()[0].Rule)
}

func TestDriftLogWriteJSONL(t *testing.T) {
	drift := NewDriftLog()
	drift.Append(model.DriftRecord{DocID: "b", Field: "f2", Rule: "r", ObservedValue: "x"})
	drift.Append(model.DriftRecord{DocID: "a", Field: "f1", Rule: "r", ObservedValue: "y"})

	var buf bytes.Buffer
	require.NoError(t, drift.WriteJSONL(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	// Sorted by doc_id for stable output.
	assert.Contains(t, lines[0], `"doc_id":"a"`)
	assert.Contains(t, lines[1], `"doc_id":"b"`)
}
