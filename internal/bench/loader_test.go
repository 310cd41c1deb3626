package bench

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocID(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"intake_T01_gen1.json", "intake_T01_gen1"},
		{"invoice_T12_gen3_parsed.json", "invoice_T12_gen3"},
		{"consent_T2_gen10_gt_v2.json", "consent_T2_gen10"},
		{"consent_form_T1_gen1.json", "consent_form_T1_gen1"},
		{"consent_form_T1_gen1_parsed.json", "consent_form_T1_gen1"},
		{"intake_form_v2_T3_gen2_gt.json", "intake_form_v2_T3_gen2"},
		{"/corpus/intake/intake_T01_gen2.json", "intake_T01_gen2"},
		{"notes.json", "notes"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DocID(tt.name), tt.name)
	}
}

func writeJSON(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadCorpus(t *testing.T) {
	payloadDir := t.TempDir()
	gtDir := t.TempDir()

	writeJSON(t, gtDir, "intake_T01_gen1.json", `{"patient_name": "Avery Calderon"}`)
	writeJSON(t, gtDir, "intake_T01_gen2.json", `{"patient_name": "Rosa Delgado"}`)
	writeJSON(t, payloadDir, "intake_T01_gen1_parsed.json", `{"patient_name": "Avery Calderon", "notes": "walk-in"}`)
	// No ground truth for this one: skipped.
	writeJSON(t, payloadDir, "intake_T99_gen1.json", `{"patient_name": "Nobody"}`)

	corpus, err := LoadCorpus("intake", payloadDir, gtDir)
	require.NoError(t, err)

	require.Len(t, corpus.Docs, 2)
	assert.Equal(t, "intake_T01_gen1", corpus.Docs[0].DocID)
	assert.Equal(t, "intake_T01_gen2", corpus.Docs[1].DocID)

	assert.Equal(t, "Avery Calderon", corpus.Docs[0].Payload["patient_name"])
	assert.Contains(t, corpus.Docs[0].RawText, "Avery Calderon")

	info := corpus.Docs[0].Info
	assert.Equal(t, "intake", info.DocumentType)
	assert.Equal(t, "intake_T01_gen1_parsed.json", info.SourceIdentifier)
	assert.Len(t, info.ContentChecksum, 64)

	// No payload: identity falls back to the ground-truth file.
	assert.Equal(t, "intake_T01_gen2.json", corpus.Docs[1].Info.SourceIdentifier)
	assert.NotEqual(t, info.ContentChecksum, corpus.Docs[1].Info.ContentChecksum)

	// Ground truth without payload keeps the document, payload stays nil.
	assert.Nil(t, corpus.Docs[1].Payload)
	assert.Equal(t, "Rosa Delgado", corpus.Docs[1].GroundTruth["patient_name"])

	assert.NotEmpty(t, corpus.PayloadHash)
	assert.NotEmpty(t, corpus.GroundTruthHash)
	assert.NotEqual(t, corpus.PayloadHash, corpus.GroundTruthHash)
}

func TestLoadCorpusUnderscoredTypePairs(t *testing.T) {
	payloadDir := t.TempDir()
	gtDir := t.TempDir()
	writeJSON(t, gtDir, "consent_form_T1_gen1.json", `{"signer_name": "Avery Calderon"}`)
	writeJSON(t, payloadDir, "consent_form_T1_gen1_parsed.json", `{"signer_name": "Avery Calderon"}`)

	corpus, err := LoadCorpus("consent_form", payloadDir, gtDir)
	require.NoError(t, err)

	require.Len(t, corpus.Docs, 1)
	doc := corpus.Docs[0]
	assert.Equal(t, "consent_form_T1_gen1", doc.DocID)
	require.NotNil(t, doc.Payload, "suffixed payload pairs with its ground truth")
	assert.Equal(t, "consent_form_T1_gen1_parsed.json", doc.Info.SourceIdentifier)
}

func TestLoadCorpusEmptyGroundTruthFails(t *testing.T) {
	_, err := LoadCorpus("intake", t.TempDir(), t.TempDir())
	assert.Error(t, err)
}

func TestLoadCorpusHashTracksContent(t *testing.T) {
	payloadDir := t.TempDir()
	gtDir := t.TempDir()
	writeJSON(t, gtDir, "intake_T01_gen1.json", `{"patient_name": "Avery"}`)
	writeJSON(t, payloadDir, "intake_T01_gen1.json", `{"patient_name": "Avery"}`)

	first, err := LoadCorpus("intake", payloadDir, gtDir)
	require.NoError(t, err)

	again, err := LoadCorpus("intake", payloadDir, gtDir)
	require.NoError(t, err)
	assert.Equal(t, first.GroundTruthHash, again.GroundTruthHash)

	writeJSON(t, gtDir, "intake_T01_gen1.json", `{"patient_name": "Rosa"}`)
	changed, err := LoadCorpus("intake", payloadDir, gtDir)
	require.NoError(t, err)
	assert.NotEqual(t, first.GroundTruthHash, changed.GroundTruthHash)
}

func TestLoadCorpusUnparseablePayloadBecomesNil(t *testing.T) {
	payloadDir := t.TempDir()
	gtDir := t.TempDir()
	writeJSON(t, gtDir, "intake_T01_gen1.json", `{"patient_name": "Avery"}`)
	writeJSON(t, payloadDir, "intake_T01_gen1.json", `{{{not json`)

	corpus, err := LoadCorpus("intake", payloadDir, gtDir)
	require.NoError(t, err)
	require.Len(t, corpus.Docs, 1)
	assert.Nil(t, corpus.Docs[0].Payload)
}

func TestFlattenTextOrderStable(t *testing.T) {
	payload := map[string]any{
		"b": "second",
		"a": "first",
		"items": []any{
			map[string]any{"code": "A10", "amount": 120.0},
		},
	}
	assert.Equal(t, "first second A10", flattenText(payload))
}
