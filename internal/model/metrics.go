package model

// Ptr wraps a metric value for use in the nullable metric fields below.
func Ptr(f float64) *float64 { return &f }

// FieldMetrics holds the agreement metrics for a single field across all
// documents of a type. Nil metric pointers mean N/A: the metric could not be
// computed for this population and must never be rendered as zero.
type FieldMetrics struct {
	Field          string   `json:"field"`
	Exact          int      `json:"exact"`
	Partial        int      `json:"partial"`
	Miss           int      `json:"miss"`
	PredPresent    int      `json:"pred_present"`
	GTPresent      int      `json:"gt_present"`
	Precision      *float64 `json:"precision"`
	Recall         *float64 `json:"recall"`
	F1             *float64 `json:"f1"`
	ExactMatchRate *float64 `json:"exact_match_rate"`
}

// AggregateMetrics holds pooled (micro) or averaged (macro) metrics over all
// fields of a document type.
type AggregateMetrics struct {
	Precision      *float64 `json:"precision"`
	Recall         *float64 `json:"recall"`
	F1             *float64 `json:"f1"`
	ExactMatchRate *float64 `json:"exact_match_rate"`
}

// MetricSet is the full metric output for one document type.
//
// ExactMatchRate is computed over every evaluated field including the
// GT-null exclusions (the exclusion count is surfaced in Coverage); the
// agreement metrics (precision, recall, F1, HybridKappa) are computed over
// the scored population only.
type MetricSet struct {
	Micro          AggregateMetrics `json:"micro"`
	Macro          AggregateMetrics `json:"macro"`
	PerField       []FieldMetrics   `json:"per_field"`
	ExactMatchRate *float64         `json:"exact_match_rate"`
	HybridKappa    *float64         `json:"hybrid_kappa"`
	Coverage       Coverage         `json:"coverage"`
}

// ThresholdStatus records pass/fail against the configured quality bars.
// CriticalFields maps each configured critical field to whether its F1 met
// the stricter critical threshold; nil pointer means the field had no
// computable F1.
type ThresholdStatus struct {
	HybridKappaMet *bool            `json:"hybrid_kappa_met"`
	CriticalFields map[string]*bool `json:"critical_fields,omitempty"`
}
