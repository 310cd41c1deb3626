package model

import "time"

// ErrorCode is the closed failure taxonomy. Classification is total: every
// evaluated document maps to exactly one code, with CodeSuccess as the
// fall-through.
type ErrorCode string

const (
	CodeExtractionFail      ErrorCode = "EXTRACTION_FAIL"
	CodeMissingField        ErrorCode = "MISSING_FIELD"
	CodeSchemaMismatch      ErrorCode = "SCHEMA_MISMATCH"
	CodeTextNoise           ErrorCode = "TEXT_NOISE"
	CodeTableExtractionFail ErrorCode = "TABLE_EXTRACTION_FAIL"
	CodeFieldParsingError   ErrorCode = "FIELD_PARSING_ERROR"
	CodeSuccess             ErrorCode = "SUCCESS"
)

// Stage names a pipeline stage for audit events.
type Stage string

const (
	StageLoad        Stage = "load"
	StageNormalize   Stage = "normalize"
	StageMatch       Stage = "match"
	StageValidate    Stage = "validate"
	StageClassify    Stage = "classify"
	StageMetrics     Stage = "metrics"
	StageDedupe      Stage = "dedupe"
	StageDeterminism Stage = "determinism"
	StageReport      Stage = "report"
)

// ErrorEvent is one classification outcome. Append-only once logged.
type ErrorEvent struct {
	DocID     string         `json:"doc_id"`
	Stage     Stage          `json:"stage"`
	ErrorCode ErrorCode      `json:"error_code"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// ValidationResult records one schema rule evaluation for one field.
type ValidationResult struct {
	DocID     string `json:"doc_id"`
	FieldName string `json:"field_name"`
	Rule      string `json:"rule"`
	Passed    bool   `json:"passed"`
	Expected  string `json:"expected,omitempty"`
	Observed  string `json:"observed,omitempty"`
}

// DriftRecord is one entry in the standardization/validation drift log:
// a field value that failed normalization or schema validation, logged for
// review rather than silently corrected. One JSON object per line.
type DriftRecord struct {
	DocID         string `json:"doc_id"`
	Field         string `json:"field"`
	Rule          string `json:"rule"`
	ObservedValue any    `json:"observed_value"`
}

// DuplicateDecision classifies a candidate duplicate pair.
type DuplicateDecision string

const (
	DecisionMerge  DuplicateDecision = "merge"
	DecisionKeep   DuplicateDecision = "keep"
	DecisionReview DuplicateDecision = "review"
)

// DuplicatePair is one scored candidate pair. DocIDA < DocIDB always, so a
// pair has a single canonical representation and the set is symmetric.
type DuplicatePair struct {
	DocIDA     string            `json:"doc_id_a"`
	DocIDB     string            `json:"doc_id_b"`
	Similarity float64           `json:"similarity"`
	Decision   DuplicateDecision `json:"decision"`
}

// DeterminismCheck records a double-run comparison of canonical output
// hashes. Hashes are computed over canonicalized output with wall-clock
// fields excluded.
type DeterminismCheck struct {
	RunID1        string `json:"run_id_1"`
	RunID2        string `json:"run_id_2"`
	Hash1         string `json:"hash_1"`
	Hash2         string `json:"hash_2"`
	Deterministic bool   `json:"deterministic"`
}
