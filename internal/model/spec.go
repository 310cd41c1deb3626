package model

// FieldSpec declares one evaluated field of a document type: its value type,
// schema rules, and, for list fields, the similarity key the matcher
// compares list elements on.
type FieldSpec struct {
	Name     string    `json:"name" yaml:"name" mapstructure:"name"`
	Type     ValueType `json:"type" yaml:"type" mapstructure:"type"`
	Required bool      `json:"required" yaml:"required" mapstructure:"required"`
	Enum     []string  `json:"enum,omitempty" yaml:"enum,omitempty" mapstructure:"enum"`
	ListKey  []string  `json:"list_key,omitempty" yaml:"list_key,omitempty" mapstructure:"list_key"`
}
