package model

// MatchStatus is the verdict for one compared field.
type MatchStatus string

const (
	MatchExact   MatchStatus = "exact"
	MatchPartial MatchStatus = "partial"
	MatchMiss    MatchStatus = "miss"
)

// MatchResult is the outcome of comparing one FieldRecord. Derived
// deterministically from the record; never hand-edited. Predicted and
// GroundTruth carry the canonical values used for the comparison so the
// metric calculator can build value marginals without re-normalizing.
type MatchResult struct {
	DocID       string      `json:"doc_id"`
	FieldName   string      `json:"field_name"`
	Status      MatchStatus `json:"status"`
	Score       float64     `json:"score"`
	Detail      string      `json:"detail,omitempty"`
	Predicted   string      `json:"predicted,omitempty"`
	GroundTruth string      `json:"ground_truth,omitempty"`
	PredPresent bool        `json:"pred_present"`
	GTPresent   bool        `json:"gt_present"`
}

// Coverage accounts for every evaluated field, including the ones excluded
// from scoring because the ground truth marks them null/not-applicable. The
// exclusion is explicit: TotalFields == Scored + ExcludedNull.
type Coverage struct {
	TotalFields  int `json:"total_fields"`
	Scored       int `json:"scored"`
	ExcludedNull int `json:"excluded_null"`
}
