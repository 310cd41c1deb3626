// Package classify maps per-document failure conditions onto the fixed
// error taxonomy. Classification is a fixed-order decision list: the first
// matching rule wins, every document gets exactly one code.
package classify

import (
	"time"
	"unicode"

	"github.com/caldarium/qa-bench/internal/model"
)

// DefaultLegibilityThreshold is the minimum letters-and-digits ratio below
// which extracted text counts as noise.
const DefaultLegibilityThreshold = 0.55

// Observation is the per-document evidence the classifier decides on,
// assembled by the pipeline from the load, normalize, and validate stages.
type Observation struct {
	DocID           string
	PayloadPresent  bool
	MissingRequired []string
	SchemaViolation bool
	RawText         string
	HasTableField   bool
	TableCells      int
	PatternFailures []string
}

// Classifier applies the taxonomy decision order.
type Classifier struct {
	legibilityThreshold float64
}

// New creates a Classifier. A non-positive threshold falls back to the
// default.
func New(legibilityThreshold float64) *Classifier {
	if legibilityThreshold <= 0 {
		legibilityThreshold = DefaultLegibilityThreshold
	}
	return &Classifier{legibilityThreshold: legibilityThreshold}
}

// Classify returns the single taxonomy code for an observation.
func (c *Classifier) Classify(obs Observation) model.ErrorCode {
	switch {
	case !obs.PayloadPresent:
		return model.CodeExtractionFail
	case len(obs.MissingRequired) > 0:
		return model.CodeMissingField
	case obs.SchemaViolation:
		return model.CodeSchemaMismatch
	case obs.RawText != "" && Legibility(obs.RawText) < c.legibilityThreshold:
		return model.CodeTextNoise
	case obs.HasTableField && obs.TableCells == 0:
		return model.CodeTableExtractionFail
	case len(obs.PatternFailures) > 0:
		return model.CodeFieldParsingError
	default:
		return model.CodeSuccess
	}
}

// Event classifies an observation and wraps the result as one audit event.
func (c *Classifier) Event(obs Observation, stage model.Stage, now time.Time) model.ErrorEvent {
	code := c.Classify(obs)
	details := map[string]any{}
	switch code {
	case model.CodeMissingField:
		details["missing_required"] = obs.MissingRequired
	case model.CodeTextNoise:
		details["legibility"] = Legibility(obs.RawText)
	case model.CodeFieldParsingError:
		details["pattern_failures"] = obs.PatternFailures
	}
	return model.ErrorEvent{
		DocID:     obs.DocID,
		Stage:     stage,
		ErrorCode: code,
		Timestamp: now,
		Details:   details,
	}
}

// Legibility returns the fraction of letter and digit runes in s. Empty
// input scores zero.
func Legibility(s string) float64 {
	if s == "" {
		return 0
	}
	total, legible := 0, 0
	for _, r := range s {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			legible++
		}
	}
	return float64(legible) / float64(total)
}
