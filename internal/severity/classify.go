package severity

import "math"

const (
	DefaultCostThreshold = 100.0
	DefaultTimeThreshold = 1.0

	rowsHighLow    = 0.1
	rowsHighHigh   = 10.0
	rowsMediumLow  = 0.5
	rowsMediumHigh = 2.0
)

// Thresholds are the configurable limits for cost and time badges. Each
// metric has its own scale.
type Thresholds struct {
	Cost float64 `yaml:"cost" json:"cost" mapstructure:"cost"`
	Time float64 `yaml:"time" json:"time" mapstructure:"time"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Cost: DefaultCostThreshold, Time: DefaultTimeThreshold}
}

// WithDefaults fills unset or non-positive thresholds with the defaults.
func (t Thresholds) WithDefaults() Thresholds {
	if !(t.Cost > 0) {
		t.Cost = DefaultCostThreshold
	}
	if !(t.Time > 0) {
		t.Time = DefaultTimeThreshold
	}
	return t
}

// ClassifyMetric buckets a cost or time value against threshold. Missing,
// non-positive or NaN values are Unclassified.
func ClassifyMetric(value, threshold float64) Level {
	if math.IsNaN(value) || value <= 0 || math.IsNaN(threshold) {
		return Unclassified
	}
	switch {
	case value > 2*threshold:
		return High
	case value > threshold:
		return Medium
	default:
		return None
	}
}

// ClassifyRowsAccuracy buckets the actual/planned row ratio.
func ClassifyRowsAccuracy(planned, actual float64) Level {
	if math.IsNaN(planned) || math.IsNaN(actual) || planned <= 0 || actual <= 0 {
		return Unclassified
	}
	ratio := actual / planned
	switch {
	case ratio < rowsHighLow || ratio > rowsHighHigh:
		return High
	case ratio < rowsMediumLow || ratio > rowsMediumHigh:
		return Medium
	default:
		return None
	}
}
