package ranges

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"os"

	"github.com/TwiN/deepmerge"
	"gopkg.in/yaml.v3"

	"github.com/tidepool-org/cardiac/errors"
)

var ErrConfiguration = fmt.Errorf("invalid range table %w", errors.BadRequest)

//go:embed default.yaml
var defaultTable []byte

// DefaultTable returns the table shipped with the service
func DefaultTable() (Table, error) {
	return Parse(defaultTable)
}

// Load returns the default table with the operator overrides at overridePath applied.
// A tier listed in the override replaces the default intervals of that tier, other
// tiers and metrics are kept.
func Load(overridePath string) (Table, error) {
	if overridePath == "" {
		return DefaultTable()
	}

	override, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, fmt.Errorf("unable to read range overrides: %w", err)
	}

	merged, err := Merge(defaultTable, override)
	if err != nil {
		return nil, err
	}
	return Parse(merged)
}

// LoadFile parses and validates a complete table
func LoadFile(path string) (Table, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read range table: %w", err)
	}
	return Parse(body)
}

// Merge overlays the override document on the base document
func Merge(base []byte, override []byte) ([]byte, error) {
	var baseDoc map[string]map[string]interface{}
	if err := yaml.Unmarshal(base, &baseDoc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	var overrideDoc map[string]map[string]interface{}
	if err := yaml.Unmarshal(override, &overrideDoc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	// lists are concatenated when merged, drop the overridden tiers first
	for metric, tiers := range overrideDoc {
		for tier := range tiers {
			delete(baseDoc[metric], tier)
		}
	}

	pruned, err := yaml.Marshal(baseDoc)
	if err != nil {
		return nil, err
	}

	merged, err := deepmerge.YAML(pruned, override, deepmerge.Config{
		PreventMultipleDefinitionsOfKeysWithPrimitiveValue: false,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return merged, nil
}

// Parse decodes and validates a table document
func Parse(body []byte) (Table, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(body))
	decoder.KnownFields(true)

	table := Table{}
	if err := decoder.Decode(&table); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := Validate(table); err != nil {
		return nil, err
	}
	return table, nil
}

func Validate(table Table) error {
	if len(table) == 0 {
		return fmt.Errorf("%w: no metrics configured", ErrConfiguration)
	}
	for metric, r := range table {
		if metric == "" {
			return fmt.Errorf("%w: empty metric type", ErrConfiguration)
		}
		count := 0
		for _, t := range r.bySeverity() {
			for _, interval := range t.intervals {
				if math.IsNaN(interval.Min) || math.IsNaN(interval.Max) || math.IsInf(interval.Min, 0) || math.IsInf(interval.Max, 0) {
					return fmt.Errorf("%w: %s %s interval bounds must be finite", ErrConfiguration, metric, t.tier)
				}
				if interval.Min > interval.Max {
					return fmt.Errorf("%w: %s %s interval %s is inverted", ErrConfiguration, metric, t.tier, interval)
				}
				count++
			}
		}
		if count == 0 {
			return fmt.Errorf("%w: %s has no intervals", ErrConfiguration, metric)
		}
	}
	return nil
}
