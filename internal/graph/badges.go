package graph

import "github.com/jacobarthurs/pgplanviz/internal/severity"

// Badges classifies the time, cost and row-estimate metrics of every node
// against t. Metrics that cannot be classified get no badge.
func Badges(g Graph, t severity.Thresholds) Graph {
	t = t.WithDefaults()
	out := g.Clone()

	for i := range out.Nodes {
		n := &out.Nodes[i]

		actualTime := number(n.Attributes, "Actual Time")
		cost := number(n.Attributes, "Total Cost")
		planned := number(n.Attributes, "Plan Rows")
		actual := number(n.Attributes, "Actual Rows")

		n.Badges = NodeBadges{
			Time: badge(actualTime, FormatNumber(actualTime)+"ms", severity.ClassifyMetric(actualTime, t.Time)),
			Cost: badge(cost, FormatNumber(cost), severity.ClassifyMetric(cost, t.Cost)),
			Rows: badge(actual/planned, FormatNumber(planned)+" → "+FormatNumber(actual), severity.ClassifyRowsAccuracy(planned, actual)),
		}
	}
	return out
}

func badge(value float64, display string, level severity.Level) *Badge {
	if level == severity.Unclassified {
		return nil
	}
	return &Badge{Value: value, Display: display, Level: level}
}
