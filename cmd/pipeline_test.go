package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldarium/qa-bench/internal/audit"
	"github.com/caldarium/qa-bench/internal/config"
	"github.com/caldarium/qa-bench/internal/determinism"
	"github.com/caldarium/qa-bench/internal/model"
)

const testSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["patient_name"],
  "properties": {
    "patient_name": {"type": ["string", "null"]},
    "patient_dob": {"type": ["string", "null"]},
    "patient_phone": {"type": ["string", "null"]}
  }
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	payloadDir := filepath.Join(dir, "parsed")
	gtDir := filepath.Join(dir, "gt")
	require.NoError(t, os.Mkdir(payloadDir, 0o755))
	require.NoError(t, os.Mkdir(gtDir, 0o755))

	schemaPath := filepath.Join(dir, "intake.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0o644))

	write := func(dir, name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write(gtDir, "intake_T01_gen1.json", `{"patient_name": "Avery Calderon", "patient_dob": "1984-06-02", "patient_phone": "8949753639"}`)
	write(gtDir, "intake_T01_gen2.json", `{"patient_name": "Rosa Delgado", "patient_dob": "1990-11-20", "patient_phone": "2223334444"}`)
	write(payloadDir, "intake_T01_gen1.json", `{"patient_name": "Avery Calderon", "patient_dob": "1984-06-02", "patient_phone": "(894) 975-3639"}`)
	write(payloadDir, "intake_T01_gen2.json", `{"patient_name": "Rosa Delgado", "patient_dob": "11/20/1990", "patient_phone": "2223334444"}`)

	return &config.Config{
		OutputDir:      filepath.Join(dir, "out"),
		Seed:           42,
		Workers:        2,
		DocTimeoutSecs: 10,
		Legibility:     0.55,
		Thresholds:     config.ThresholdConfig{HybridKappa: 0.85, CriticalF1: 0.90, CriticalFields: []string{"patient_name"}},
		Dedupe:         config.DedupeConfig{MergeThreshold: 0.92, ReviewFloor: 0.75},
		Log:            config.LogConfig{Level: "info", Format: "json"},
		DocumentTypes: []config.TypeConfig{{
			Name:           "intake",
			PayloadDir:     payloadDir,
			GroundTruthDir: gtDir,
			SchemaPath:     schemaPath,
			Fields: []model.FieldSpec{
				{Name: "patient_name", Type: model.ValueText},
				{Name: "patient_dob", Type: model.ValueDate},
				{Name: "patient_phone", Type: model.ValuePhone},
			},
		}},
	}
}

func newTestAudit(t *testing.T) *audit.Logger {
	t.Helper()
	l, err := audit.Open(filepath.Join(t.TempDir(), "audit.jsonl"), "run-test-0001")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRunPipeline(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())

	rep, drift, err := runPipeline(context.Background(), cfg, "run-test-0001", newTestAudit(t))
	require.NoError(t, err)

	require.Contains(t, rep.Types, "intake")
	sec := rep.Types["intake"]
	assert.Equal(t, 2, sec.Documents)
	assert.Equal(t, 1, rep.Rollup.TypesEvaluated)

	require.NotNil(t, sec.Metrics)
	// 2 docs x 3 fields scored; one dob mismatch.
	assert.Equal(t, model.Coverage{TotalFields: 6, Scored: 6, ExcludedNull: 0}, sec.Metrics.Coverage)
	require.NotNil(t, sec.Metrics.ExactMatchRate)
	assert.InDelta(t, 5.0/6.0, *sec.Metrics.ExactMatchRate, 1e-9)

	// Both documents classified; doc2's non-ISO date is a pattern failure.
	assert.Equal(t, 1, sec.ErrorCounts["SUCCESS"])
	assert.Equal(t, 1, sec.ErrorCounts["FIELD_PARSING_ERROR"])

	// Different patients: no merges.
	assert.Equal(t, 2, sec.Duplicates.Records)
	assert.Equal(t, 1, sec.Duplicates.Pairs)
	assert.Zero(t, sec.Duplicates.Merge)

	// The non-ISO date left a drift record.
	assert.Greater(t, drift.Len(), 0)

	assert.Equal(t, "run-test-0001", rep.Run.RunID)
	assert.NotEmpty(t, rep.Run.ConfigDigest)
	assert.Contains(t, rep.Run.CorpusHashes, "intake/payload")
}

func TestRunPipelineDeterministic(t *testing.T) {
	cfg := testConfig(t)
	auditLog := newTestAudit(t)

	check, _, err := determinism.Verify(func() (*model.Report, error) {
		rep, _, err := runPipeline(context.Background(), cfg, "run-test-x", auditLog)
		return rep, err
	})
	require.NoError(t, err)
	assert.True(t, check.Deterministic)
}
