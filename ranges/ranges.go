package ranges

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tier string

const (
	TierNormal       Tier = "normal"
	TierWarning      Tier = "warning"
	TierCritical     Tier = "critical"
	TierUnclassified Tier = "unclassified"
)

// IsBreach returns true for tiers which require clinician attention
func (t Tier) IsBreach() bool {
	return t == TierWarning || t == TierCritical
}

type MetricType string

const (
	MetricHeartRate        MetricType = "heart_rate"
	MetricRestingHeartRate MetricType = "resting_heart_rate"
	MetricHRVRMSSD         MetricType = "hrv_rmssd"
	MetricSpO2             MetricType = "spo2"
	MetricStressLevel      MetricType = "stress_level"
)

// Interval is a closed numeric interval [Min, Max]. It is serialized as a two element list.
type Interval struct {
	Min float64
	Max float64
}

func (i Interval) Contains(value float64) bool {
	return value >= i.Min && value <= i.Max
}

func (i Interval) String() string {
	return formatValue(i.Min) + "-" + formatValue(i.Max)
}

func (i Interval) MarshalYAML() (interface{}, error) {
	return []float64{i.Min, i.Max}, nil
}

func (i *Interval) UnmarshalYAML(value *yaml.Node) error {
	var bounds []float64
	if err := value.Decode(&bounds); err != nil {
		return fmt.Errorf("line %d: interval must be a list of two numbers: %w", value.Line, err)
	}
	if len(bounds) != 2 {
		return fmt.Errorf("line %d: interval must have exactly two bounds, got %d", value.Line, len(bounds))
	}
	i.Min, i.Max = bounds[0], bounds[1]
	return nil
}

// Ranges holds the interval sets of each tier of a single metric. Intervals of
// different tiers may overlap; the most severe tier wins.
type Ranges struct {
	Critical []Interval `yaml:"critical,omitempty"`
	Warning  []Interval `yaml:"warning,omitempty"`
	Normal   []Interval `yaml:"normal,omitempty"`
}

func (r Ranges) bySeverity() []tierIntervals {
	return []tierIntervals{
		{tier: TierCritical, intervals: r.Critical},
		{tier: TierWarning, intervals: r.Warning},
		{tier: TierNormal, intervals: r.Normal},
	}
}

// Classify returns the most severe tier with an interval containing value
func (r Ranges) Classify(value float64) Tier {
	if math.IsNaN(value) {
		return TierUnclassified
	}
	for _, t := range r.bySeverity() {
		for _, interval := range t.intervals {
			if interval.Contains(value) {
				return t.tier
			}
		}
	}
	return TierUnclassified
}

// NormalRange renders the normal intervals, e.g. "60-100"
func (r Ranges) NormalRange() string {
	parts := make([]string, 0, len(r.Normal))
	for _, interval := range r.Normal {
		parts = append(parts, interval.String())
	}
	return strings.Join(parts, ", ")
}

type tierIntervals struct {
	tier      Tier
	intervals []Interval
}

// Table maps a metric type to its severity ranges
type Table map[MetricType]Ranges

// Classify maps a value of the metric to a severity tier. Values of metrics
// which are not configured, or which fall outside every configured interval, are
// unclassified.
func Classify(metric MetricType, value float64, table Table) Tier {
	r, ok := table[metric]
	if !ok {
		return TierUnclassified
	}
	return r.Classify(value)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
