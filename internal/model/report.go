package model

import "time"

// RunInfo carries reproducibility metadata for one benchmark run.
type RunInfo struct {
	RunID        string            `json:"run_id"`
	Seed         int64             `json:"seed"`
	Engines      []string          `json:"engines,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	ConfigDigest string            `json:"config_digest"`
	CorpusHashes map[string]string `json:"corpus_hashes,omitempty"`
}

// DuplicateSummary aggregates the duplicate pass for one document type.
// ReductionPct is the week-over-week duplicate reduction metric:
// (1 - unique_clusters/records) * 100 over merge-decided clusters.
type DuplicateSummary struct {
	Records      int      `json:"records"`
	Pairs        int      `json:"pairs"`
	Merge        int      `json:"merge"`
	Keep         int      `json:"keep"`
	Review       int      `json:"review"`
	ReductionPct *float64 `json:"reduction_pct"`
}

// ValidationSummary aggregates schema validation for one document type.
type ValidationSummary struct {
	TotalChecks         int      `json:"total_checks"`
	Passed              int      `json:"passed"`
	ValidationRate      *float64 `json:"validation_rate"`
	StandardizationRate *float64 `json:"standardization_rate"`
	BlankFields         int      `json:"blank_fields"`
	BlankFieldRate      *float64 `json:"blank_field_rate"`
}

// TypeSection is the per-document-type slice of the unified report.
type TypeSection struct {
	DocumentType string            `json:"document_type"`
	Documents    int               `json:"documents"`
	Metrics      *MetricSet        `json:"metrics,omitempty"`
	Validation   ValidationSummary `json:"validation"`
	Duplicates   DuplicateSummary  `json:"duplicates"`
	Determinism  *DeterminismCheck `json:"determinism,omitempty"`
	ErrorCounts  map[string]int    `json:"error_counts"`
	Thresholds   ThresholdStatus   `json:"thresholds"`
}

// Rollup averages headline metrics across document types. Types with zero
// evaluated documents are listed in Skipped and excluded from the averages
// rather than dragging them toward zero.
type Rollup struct {
	F1             *float64 `json:"f1_avg"`
	Recall         *float64 `json:"recall_avg"`
	ValidationRate *float64 `json:"validation_rate_avg"`
	TypesEvaluated int      `json:"types_evaluated"`
	Skipped        []string `json:"skipped,omitempty"`
}

// Report is the unified cross-type benchmark output.
type Report struct {
	Run    RunInfo                 `json:"run"`
	Types  map[string]*TypeSection `json:"document_types"`
	Rollup Rollup                  `json:"rollup"`
}
