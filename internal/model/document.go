package model

// ValueType tags a field with the normalization and comparison rule that
// applies to it. Every field in a document-type configuration declares one.
type ValueType string

const (
	ValueDate     ValueType = "date"
	ValuePhone    ValueType = "phone"
	ValueCurrency ValueType = "currency"
	ValueText     ValueType = "text"
	ValueList     ValueType = "list"
)

// Document identifies one ingested document. Immutable after creation.
type Document struct {
	DocID            string `json:"doc_id"`
	DocumentType     string `json:"document_type"`
	SourceIdentifier string `json:"source_identifier"`
	ContentChecksum  string `json:"content_checksum"`
}

// ListItem is one element of a list-typed field (e.g. an invoice line item).
// Key is the pre-computed similarity key the matcher compares on.
type ListItem struct {
	Key    string            `json:"key"`
	Fields map[string]string `json:"fields,omitempty"`
}

// FieldValue is the tagged variant for a single field occurrence. The zero
// value is a missing field. Canonical is only meaningful when Missing is
// false; Items is only populated for list-typed fields.
type FieldValue struct {
	Type         ValueType  `json:"type"`
	Raw          any        `json:"raw,omitempty"`
	Canonical    string     `json:"canonical,omitempty"`
	Items        []ListItem `json:"items,omitempty"`
	Standardized bool       `json:"standardized"`
	Blank        bool       `json:"blank"`
	Missing      bool       `json:"missing"`
}

// Present reports whether the field carries a usable value: not missing and
// not blank. A blank field (empty string after trimming) is present in the
// payload but contributes no value to matching.
func (v FieldValue) Present() bool {
	return !v.Missing && !v.Blank
}

// FieldRecord pairs the predicted and ground-truth values for one
// (document, field). Produced at alignment time, read-only downstream.
type FieldRecord struct {
	DocID       string     `json:"doc_id"`
	FieldName   string     `json:"field_name"`
	Type        ValueType  `json:"value_type"`
	Predicted   FieldValue `json:"predicted_value"`
	GroundTruth FieldValue `json:"ground_truth_value"`
}
