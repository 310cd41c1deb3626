// Package normalize canonicalizes predicted and ground-truth field values
// before comparison. Non-conforming values are passed through and flagged in
// the drift log, never silently coerced.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/caldarium/qa-bench/internal/model"
)

const (
	// RuleDateNotStandardized flags date values outside YYYY-MM-DD.
	RuleDateNotStandardized = "date_not_standardized"
	// RulePhoneNotStandardized flags phone values with fewer than 10 digits.
	RulePhoneNotStandardized = "phone_not_standardized"
	// RuleCurrencyNotStandardized flags unparseable currency amounts.
	RuleCurrencyNotStandardized = "currency_not_standardized"
	// RuleListMalformed flags list fields whose payload is not a JSON array.
	RuleListMalformed = "list_malformed"
)

// minPhoneDigits is the digit count below which a phone value is reported
// as not standardized.
const minPhoneDigits = 10

var (
	isoDateRx = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	nonDigit  = regexp.MustCompile(`\D`)
	wsRx      = regexp.MustCompile(`\s+`)
)

// Normalizer canonicalizes field values per value type. A nil drift log
// disables drift recording.
type Normalizer struct {
	drift *DriftLog
}

// New creates a Normalizer writing non-conformance records to drift.
func New(drift *DriftLog) *Normalizer {
	return &Normalizer{drift: drift}
}

// WithDrift returns a Normalizer that records into drift instead of the
// receiver's log. The receiver is unchanged.
func (n *Normalizer) WithDrift(drift *DriftLog) *Normalizer {
	return &Normalizer{drift: drift}
}

// Drift returns the log this Normalizer records into, nil when recording is
// disabled.
func (n *Normalizer) Drift() *DriftLog {
	return n.drift
}

// Field canonicalizes one raw payload value according to spec. The returned
// FieldValue carries the canonical form, the standardization flag, and the
// blank/missing distinction: a nil raw value is missing, an empty string
// after trimming is blank.
func (n *Normalizer) Field(docID string, spec model.FieldSpec, raw any) model.FieldValue {
	if raw == nil {
		return model.FieldValue{Type: spec.Type, Missing: true}
	}

	switch spec.Type {
	case model.ValuePhone:
		return n.phone(docID, spec.Name, raw)
	case model.ValueDate:
		return n.date(docID, spec.Name, raw)
	case model.ValueCurrency:
		return n.currency(docID, spec.Name, raw)
	case model.ValueList:
		return n.list(docID, spec, raw)
	default:
		return n.text(spec.Type, raw)
	}
}

func (n *Normalizer) record(docID, field, rule string, observed any) {
	if n.drift != nil {
		n.drift.Append(model.DriftRecord{
			DocID:         docID,
			Field:         field,
			Rule:          rule,
			ObservedValue: observed,
		})
	}
}

// text trims, NFC-normalizes, and collapses internal whitespace. An empty
// result is blank, which stays distinct from a missing field.
func (n *Normalizer) text(typ model.ValueType, raw any) model.FieldValue {
	s := CleanText(Stringify(raw))
	if s == "" {
		return model.FieldValue{Type: typ, Raw: raw, Blank: true}
	}
	return model.FieldValue{Type: typ, Raw: raw, Canonical: s, Standardized: true}
}

// date accepts only the YYYY-MM-DD canonical form. Anything else passes
// through unmodified and is flagged so downstream validation reports it as
// drift instead of this stage coercing it.
func (n *Normalizer) date(docID, field string, raw any) model.FieldValue {
	s := CleanText(Stringify(raw))
	if s == "" {
		return model.FieldValue{Type: model.ValueDate, Raw: raw, Blank: true}
	}
	if isoDateRx.MatchString(s) {
		return model.FieldValue{Type: model.ValueDate, Raw: raw, Canonical: s, Standardized: true}
	}
	n.record(docID, field, RuleDateNotStandardized, raw)
	return model.FieldValue{Type: model.ValueDate, Raw: raw, Canonical: s}
}

// phone strips everything but digits. Fewer than 10 digits is "not
// standardized", not an error: the stripped value is still carried forward.
func (n *Normalizer) phone(docID, field string, raw any) model.FieldValue {
	s := strings.TrimSpace(Stringify(raw))
	if s == "" {
		return model.FieldValue{Type: model.ValuePhone, Raw: raw, Blank: true}
	}
	digits := nonDigit.ReplaceAllString(s, "")
	if digits == "" {
		n.record(docID, field, RulePhoneNotStandardized, raw)
		return model.FieldValue{Type: model.ValuePhone, Raw: raw, Blank: true}
	}
	fv := model.FieldValue{Type: model.ValuePhone, Raw: raw, Canonical: digits}
	if len(digits) >= minPhoneDigits {
		fv.Standardized = true
	} else {
		n.record(docID, field, RulePhoneNotStandardized, raw)
	}
	return fv
}

// currency strips currency punctuation and canonicalizes to a fixed
// two-decimal string. Unparseable amounts pass through flagged.
func (n *Normalizer) currency(docID, field string, raw any) model.FieldValue {
	s := CleanText(Stringify(raw))
	if s == "" {
		return model.FieldValue{Type: model.ValueCurrency, Raw: raw, Blank: true}
	}
	f, err := ParseMoney(s)
	if err != nil {
		n.record(docID, field, RuleCurrencyNotStandardized, raw)
		return model.FieldValue{Type: model.ValueCurrency, Raw: raw, Canonical: s}
	}
	return model.FieldValue{
		Type:         model.ValueCurrency,
		Raw:          raw,
		Canonical:    strconv.FormatFloat(f, 'f', 2, 64),
		Standardized: true,
	}
}

// list normalizes each element and computes its similarity key from the
// spec's list_key fields. A non-array payload is malformed drift.
func (n *Normalizer) list(docID string, spec model.FieldSpec, raw any) model.FieldValue {
	items, ok := raw.([]any)
	if !ok {
		n.record(docID, spec.Name, RuleListMalformed, raw)
		return model.FieldValue{Type: model.ValueList, Raw: raw}
	}
	if len(items) == 0 {
		return model.FieldValue{Type: model.ValueList, Raw: raw, Blank: true}
	}

	keyFields := spec.ListKey
	if len(keyFields) == 0 {
		keyFields = []string{"code", "amount"}
	}

	out := make([]model.ListItem, 0, len(items))
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			n.record(docID, spec.Name, RuleListMalformed, it)
			continue
		}
		item := model.ListItem{Fields: make(map[string]string, len(obj))}
		keyParts := make([]string, 0, len(keyFields))
		for k, v := range obj {
			item.Fields[k] = CleanText(Stringify(v))
		}
		for _, kf := range keyFields {
			v := item.Fields[kf]
			// Amount-like parts compare numerically.
			if f, err := ParseMoney(v); err == nil {
				v = strconv.FormatFloat(f, 'f', 2, 64)
			} else {
				v = strings.ToLower(v)
			}
			keyParts = append(keyParts, v)
		}
		item.Key = strings.Join(keyParts, "|")
		out = append(out, item)
	}
	return model.FieldValue{Type: model.ValueList, Raw: raw, Items: out, Standardized: true}
}

// Stringify renders a raw JSON value as a comparison string.
func Stringify(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; drop the fraction when integral.
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// CleanText NFC-normalizes, trims, and collapses internal whitespace.
func CleanText(s string) string {
	s = norm.NFC.String(s)
	s = strings.TrimSpace(s)
	return wsRx.ReplaceAllString(s, " ")
}

// ParseMoney parses a currency amount, tolerating $, commas, and spaces.
func ParseMoney(s string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if cleaned == "" {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseFloat(cleaned, 64)
}
