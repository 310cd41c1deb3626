// Package schema checks field payloads against the per-document-type schema
// rules (required-ness, type, enum membership, format) and whole-document
// JSON Schema conformance. Every failure is appended to the shared drift log
// with enough context to reproduce it without rerunning the pipeline.
package schema

import (
	"encoding/json"
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/caldarium/qa-bench/internal/model"
	"github.com/caldarium/qa-bench/internal/normalize"
)

// Rule names emitted into ValidationResults and the drift log.
const (
	RuleRequired       = "required_field_missing"
	RuleType           = "type_violation"
	RuleEnum           = "enum_violation"
	RuleFormat         = "format_violation"
	RuleDocumentSchema = "document_schema"
	RuleDueDate        = "due_date_before_invoice_date"
	RuleTotalAmount    = "total_less_than_subtotal"
	RuleLineItemSum    = "line_items_sum_mismatch"
)

// Validator evaluates one document type's schema rules.
type Validator struct {
	compiled *jsonschema.Schema
	specs    []model.FieldSpec
	required map[string]bool
	drift    *normalize.DriftLog
}

// Load compiles the JSON Schema at path and merges its required list and
// enum constraints into the configured field specs. A missing or unreadable
// schema is a configuration error that must stop the run.
func Load(path string, specs []model.FieldSpec, drift *normalize.DriftLog) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiled, err := compiler.Compile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: compile %s", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read %s", path)
	}
	var doc struct {
		Required   []string `json:"required"`
		Properties map[string]struct {
			Enum []any `json:"enum"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrapf(err, "schema: parse %s", path)
	}

	v := &Validator{
		compiled: compiled,
		specs:    make([]model.FieldSpec, len(specs)),
		required: make(map[string]bool, len(doc.Required)),
		drift:    drift,
	}
	copy(v.specs, specs)
	for _, name := range doc.Required {
		v.required[name] = true
	}
	for i := range v.specs {
		spec := &v.specs[i]
		if v.required[spec.Name] {
			spec.Required = true
		}
		if prop, ok := doc.Properties[spec.Name]; ok && len(spec.Enum) == 0 {
			for _, e := range prop.Enum {
				spec.Enum = append(spec.Enum, normalize.Stringify(e))
			}
		}
	}
	return v, nil
}

// Specs returns the field specs with schema-derived rules merged in.
func (v *Validator) Specs() []model.FieldSpec {
	return v.specs
}

// WithDrift returns a Validator sharing the compiled schema and specs but
// recording failures into drift. The receiver is unchanged.
func (v *Validator) WithDrift(drift *normalize.DriftLog) *Validator {
	w := *v
	w.drift = drift
	return &w
}

// Document evaluates every rule for one parsed payload. values holds the
// normalized field values keyed by field name; payload is the raw decoded
// JSON object for whole-document conformance.
func (v *Validator) Document(docID string, payload map[string]any, values map[string]model.FieldValue) []model.ValidationResult {
	var results []model.ValidationResult

	docPassed := true
	if err := v.compiled.Validate(payload); err != nil {
		docPassed = false
		v.record(docID, "", RuleDocumentSchema, err.Error())
	}
	results = append(results, model.ValidationResult{
		DocID: docID, FieldName: "", Rule: RuleDocumentSchema, Passed: docPassed,
	})

	for _, spec := range v.specs {
		fv := values[spec.Name]
		results = append(results, v.field(docID, spec, fv)...)
	}

	results = append(results, v.crossField(docID, values)...)
	return results
}

// field evaluates required, type, enum, and format rules for one value.
func (v *Validator) field(docID string, spec model.FieldSpec, fv model.FieldValue) []model.ValidationResult {
	var results []model.ValidationResult
	add := func(rule string, passed bool, expected, observed string) {
		results = append(results, model.ValidationResult{
			DocID: docID, FieldName: spec.Name, Rule: rule,
			Passed: passed, Expected: expected, Observed: observed,
		})
		if !passed {
			v.record(docID, spec.Name, rule, observed)
		}
	}

	if spec.Required {
		add(RuleRequired, fv.Present(), "non-empty value", normalize.Stringify(fv.Raw))
	}
	if fv.Missing {
		return results
	}

	add(RuleType, typeOK(spec.Type, fv.Raw), string(spec.Type), normalize.Stringify(fv.Raw))

	if len(spec.Enum) > 0 && fv.Present() {
		add(RuleEnum, enumOK(spec.Enum, fv.Canonical), strings.Join(spec.Enum, "|"), fv.Canonical)
	}

	switch spec.Type {
	case model.ValueDate, model.ValuePhone, model.ValueCurrency:
		if fv.Present() {
			add(RuleFormat, fv.Standardized, string(spec.Type)+" canonical form", fv.Canonical)
		}
	}
	return results
}

// crossField applies the inter-field consistency rules for document types
// that carry the relevant fields. Rules are skipped, not failed, when a
// participating value is absent or unparseable.
func (v *Validator) crossField(docID string, values map[string]model.FieldValue) []model.ValidationResult {
	var results []model.ValidationResult

	if inv, due, ok := datePair(values, "invoice_date", "due_date"); ok {
		passed := due >= inv
		results = append(results, model.ValidationResult{
			DocID: docID, FieldName: "due_date", Rule: RuleDueDate,
			Passed: passed, Expected: "due_date >= " + inv, Observed: due,
		})
		if !passed {
			v.record(docID, "due_date", RuleDueDate, due)
		}
	}

	sub, subOK := moneyValue(values, "subtotal_amount")
	total, totalOK := moneyValue(values, "total_amount")
	if subOK && totalOK {
		passed := total >= sub-1e-9
		results = append(results, model.ValidationResult{
			DocID: docID, FieldName: "total_amount", Rule: RuleTotalAmount,
			Passed: passed, Expected: "total >= subtotal", Observed: values["total_amount"].Canonical,
		})
		if !passed {
			v.record(docID, "total_amount", RuleTotalAmount, values["total_amount"].Canonical)
		}
	}

	if items := values["line_items"]; subOK && len(items.Items) > 0 {
		var sum float64
		parseable := true
		for _, it := range items.Items {
			f, err := normalize.ParseMoney(it.Fields["amount"])
			if err != nil {
				parseable = false
				break
			}
			sum += f
		}
		if parseable {
			passed := math.Abs(sum-sub) <= 0.01
			results = append(results, model.ValidationResult{
				DocID: docID, FieldName: "line_items", Rule: RuleLineItemSum,
				Passed: passed, Expected: values["subtotal_amount"].Canonical, Observed: money(sum),
			})
			if !passed {
				v.record(docID, "line_items", RuleLineItemSum, money(sum))
			}
		}
	}
	return results
}

func (v *Validator) record(docID, field, rule string, observed any) {
	if v.drift != nil {
		v.drift.Append(model.DriftRecord{
			DocID: docID, Field: field, Rule: rule, ObservedValue: observed,
		})
	}
}

// typeOK checks the raw JSON value against the declared value type.
func typeOK(typ model.ValueType, raw any) bool {
	switch typ {
	case model.ValueList:
		_, ok := raw.([]any)
		return ok
	case model.ValueCurrency:
		switch raw.(type) {
		case string, float64:
			return true
		}
		return false
	default:
		_, ok := raw.(string)
		return ok
	}
}

func enumOK(enum []string, canonical string) bool {
	for _, e := range enum {
		if strings.EqualFold(e, canonical) {
			return true
		}
	}
	return false
}

func datePair(values map[string]model.FieldValue, a, b string) (string, string, bool) {
	av, bv := values[a], values[b]
	if !av.Standardized || !bv.Standardized {
		return "", "", false
	}
	return av.Canonical, bv.Canonical, true
}

func moneyValue(values map[string]model.FieldValue, name string) (float64, bool) {
	fv := values[name]
	if !fv.Standardized {
		return 0, false
	}
	f, err := normalize.ParseMoney(fv.Canonical)
	return f, err == nil
}

func money(f float64) string {
	b, _ := json.Marshal(math.Round(f*100) / 100)
	return string(b)
}
