package dedupe

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Weights configures the similarity computation: which fields participate
// and how much each one counts.
type Weights struct {
	DefaultWeight float64            `yaml:"default_weight"`
	Keys          []string           `yaml:"keys"`
	Fields        map[string]float64 `yaml:"-"`
}

// DefaultWeights returns the stock configuration: the three identity-bearing
// fields shared by every document type, equally weighted.
func DefaultWeights() Weights {
	return Weights{
		DefaultWeight: 1.0,
		Keys:          []string{"patient_name", "patient_id", "provider_name"},
		Fields:        map[string]float64{},
	}
}

// LoadWeights reads the dedupe weight configuration from a YAML file.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, eris.Wrapf(err, "dedupe: read weights %s", path)
	}

	// The YAML has a top-level "dedupe" key.
	var wrapper struct {
		Dedupe struct {
			DefaultWeight float64  `yaml:"default_weight"`
			Keys          []string `yaml:"keys"`
			Fields        map[string]struct {
				Weight float64 `yaml:"weight"`
			} `yaml:"fields"`
		} `yaml:"dedupe"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Weights{}, eris.Wrap(err, "dedupe: parse weights")
	}

	w := Weights{
		DefaultWeight: wrapper.Dedupe.DefaultWeight,
		Keys:          wrapper.Dedupe.Keys,
		Fields:        make(map[string]float64, len(wrapper.Dedupe.Fields)),
	}
	if w.DefaultWeight == 0 {
		w.DefaultWeight = 1.0
	}
	if len(w.Keys) == 0 {
		w.Keys = DefaultWeights().Keys
	}
	for name, fc := range wrapper.Dedupe.Fields {
		w.Fields[name] = fc.Weight
	}
	return w, nil
}

// weightFor returns the configured weight for a key field.
func (w Weights) weightFor(field string) float64 {
	if v, ok := w.Fields[field]; ok && v > 0 {
		return v
	}
	return w.DefaultWeight
}
