package graph

import (
	"fmt"
	"math"
)

// FormatNumber renders a metric with two decimals and a K or M suffix.
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "-"
	case v >= 1_000_000:
		return fmt.Sprintf("%.2fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.2fK", v/1_000)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// number reads a numeric attribute, NaN when absent or not numeric.
func number(attrs map[string]any, key string) float64 {
	switch v := attrs[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return math.NaN()
	}
}
