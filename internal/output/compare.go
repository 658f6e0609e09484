package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/jacobarthurs/pgplanviz/internal/advisor"
	"github.com/jacobarthurs/pgplanviz/internal/comparator"
)

// RenderComparisonText prints the node-by-node diff of two plans. advice is
// the comparison source's summary and may be nil.
func RenderComparisonText(w io.Writer, result comparator.ComparisonResult, advice *advisor.Comparison, t Theme) error {
	tw := &textWriter{w: w, t: t}
	s := result.Summary

	tw.heading("Summary")
	tw.printf("  Cost:           %s\n", tw.delta(s.OldTotalCost, s.NewTotalCost, s.CostPct, s.CostDir, "%.2f"))
	if s.OldExecutionTime > 0 || s.NewExecutionTime > 0 {
		tw.printf("  Execution Time: %s\n", tw.delta(s.OldExecutionTime, s.NewExecutionTime, s.TimePct, s.TimeDir, "%.3f ms"))
	}
	if s.OldPlanningTime > 0 || s.NewPlanningTime > 0 {
		tw.printf("  Planning Time:  %s\n", tw.delta(s.OldPlanningTime, s.NewPlanningTime,
			pctChange(s.OldPlanningTime, s.NewPlanningTime), s.PlanningDir, "%.3f ms"))
	}
	if s.OldSharedHit > 0 || s.NewSharedHit > 0 || s.OldSharedRead > 0 || s.NewSharedRead > 0 {
		tw.printf("  Buffers:        hit %d → %d, read %d → %d\n", s.OldSharedHit, s.NewSharedHit, s.OldSharedRead, s.NewSharedRead)
	}
	tw.printf("\n")

	changes := s.NodesAdded + s.NodesRemoved + s.NodesModified + s.NodesTypeChanged
	if changes == 0 {
		tw.printf("%s\n", t.render(t.Good, "Plans are identical."))
	} else {
		tw.printf("  Changes: %d modified, %d type changed, %d added, %d removed\n\n",
			s.NodesModified, s.NodesTypeChanged, s.NodesAdded, s.NodesRemoved)

		tw.heading("Node Details")
		for _, d := range result.Deltas {
			tw.renderDelta(d, 0)
		}
		tw.renderVerdict(s)
	}

	if advice != nil {
		tw.printf("\n")
		tw.renderAdvice(advice)
	}
	return tw.err
}

func (tw *textWriter) renderDelta(d comparator.NodeDelta, depth int) {
	indent := strings.Repeat("  ", depth+1)
	t := tw.t

	switch d.ChangeType {
	case comparator.NoChange:
		for _, child := range d.Children {
			tw.renderDelta(child, depth)
		}
		return
	case comparator.Added:
		tw.printf("%s%s %s\n", indent, t.render(t.Good, "+ "+deltaLabel(d)), t.render(t.Dim, "("+d.NewID+")"))
		tw.printf("%s  cost=%.2f", indent, d.NewCost)
		if d.NewTime > 0 {
			tw.printf(" time=%.3fms", d.NewTime)
		}
		tw.printf("\n")
	case comparator.Removed:
		tw.printf("%s%s %s\n", indent, t.render(t.Bad, "- "+deltaLabel(d)), t.render(t.Dim, "("+d.OldID+")"))
		tw.printf("%s  cost=%.2f", indent, d.OldCost)
		if d.OldTime > 0 {
			tw.printf(" time=%.3fms", d.OldTime)
		}
		tw.printf("\n")
	case comparator.TypeChanged:
		label := d.OldNodeType + " → " + d.NewNodeType
		if d.Relation != "" {
			label += " on " + d.Relation
		}
		tw.printf("%s%s %s\n", indent, t.render(t.Changed, "~ "+label), t.render(t.Dim, ids(d)))
		tw.renderMetrics(indent, d)
	case comparator.Modified:
		tw.printf("%s%s %s\n", indent, t.render(t.Changed, "~ "+deltaLabel(d)), t.render(t.Dim, ids(d)))
		tw.renderMetrics(indent, d)
	}

	for _, child := range d.Children {
		tw.renderDelta(child, depth+1)
	}
}

func (tw *textWriter) renderMetrics(indent string, d comparator.NodeDelta) {
	t := tw.t
	tw.printf("%s  cost: %s\n", indent, tw.delta(d.OldCost, d.NewCost, d.CostPct, d.CostDir, "%.2f"))
	if d.OldTime > 0 || d.NewTime > 0 {
		tw.printf("%s  time: %s\n", indent, tw.delta(d.OldTime, d.NewTime, d.TimePct, d.TimeDir, "%.3f ms"))
	}
	if d.OldRows != d.NewRows {
		tw.printf("%s  rows: %s → %s (%+.1f%%)\n", indent, formatRows(d.OldRows), formatRows(d.NewRows), d.RowsPct)
	}
	if d.OldSharedRead != d.NewSharedRead {
		style, arrow := t.Good, "↓"
		if d.NewSharedRead > d.OldSharedRead {
			style, arrow = t.Bad, "↑"
		}
		tw.printf("%s  disk reads: %d → %s\n", indent, d.OldSharedRead, t.render(style, fmt.Sprintf("%d %s", d.NewSharedRead, arrow)))
	}
	if d.OldSharedHit != d.NewSharedHit {
		tw.printf("%s  cache hits: %d → %d\n", indent, d.OldSharedHit, d.NewSharedHit)
	}
	if d.OldTempBlocks != d.NewTempBlocks {
		tw.printf("%s  temp blocks: %d → %d\n", indent, d.OldTempBlocks, d.NewTempBlocks)
	}
	if d.OldSortSpill != d.NewSortSpill {
		if d.NewSortSpill {
			tw.printf("%s  %s\n", indent, t.render(t.Bad, "sort: memory → disk ↑"))
		} else {
			tw.printf("%s  %s\n", indent, t.render(t.Good, "sort: disk → memory ↓"))
		}
	}
	if d.OldHashBatches != d.NewHashBatches {
		tw.printf("%s  hash batches: %d → %d\n", indent, d.OldHashBatches, d.NewHashBatches)
	}
	if d.OldIndexName != d.NewIndexName {
		switch {
		case d.OldIndexName == "":
			tw.printf("%s  %s\n", indent, t.render(t.Good, "index added: "+d.NewIndexName))
		case d.NewIndexName == "":
			tw.printf("%s  %s\n", indent, t.render(t.Bad, "index removed: "+d.OldIndexName))
		default:
			tw.printf("%s  %s\n", indent, t.render(t.Changed, "index: "+d.OldIndexName+" → "+d.NewIndexName))
		}
	}
}

func (tw *textWriter) delta(oldVal, newVal, pct float64, dir comparator.Direction, format string) string {
	newStr := fmt.Sprintf(format, newVal)
	switch dir {
	case comparator.Improved:
		newStr = tw.t.render(tw.t.Good, newStr+" ↓")
	case comparator.Regressed:
		newStr = tw.t.render(tw.t.Bad, newStr+" ↑")
	}
	return fmt.Sprintf("%s → %s (%+.1f%%)", fmt.Sprintf(format, oldVal), newStr, pct)
}

func (tw *textWriter) renderVerdict(s comparator.Summary) {
	t := tw.t
	verdict := "Verdict: " + s.Verdict
	switch {
	case s.TimeDir == comparator.Improved && s.CostDir == comparator.Improved:
		verdict = t.render(t.Good, verdict)
	case s.TimeDir == comparator.Regressed && s.CostDir == comparator.Regressed:
		verdict = t.render(t.Bad, verdict)
	case s.TimeDir == comparator.Improved || s.CostDir == comparator.Improved:
		verdict = t.render(t.Changed, verdict)
	}
	tw.printf("\n%s\n", verdict)
}

func (tw *textWriter) renderAdvice(c *advisor.Comparison) {
	t := tw.t
	tw.heading("Advisor")
	if c.Summary != "" {
		tw.printf("  %s\n", c.Summary)
	}
	if m := c.MetricsComparison; m.CostDiff != "" || m.TimeDiff != "" {
		if m.CostDiff != "" {
			tw.printf("  cost: %s\n", m.CostDiff)
		}
		if m.TimeDiff != "" {
			tw.printf("  time: %s\n", m.TimeDiff)
		}
	}
	for _, change := range c.StructuralChanges {
		tw.printf("  %s\n", t.render(t.Dim, "• "+change))
	}
	if c.Recommendation != "" {
		tw.printf("\n  %s\n", t.render(t.Node, c.Recommendation))
	}
}

func deltaLabel(d comparator.NodeDelta) string {
	if d.Relation != "" {
		return d.NodeType + " on " + d.Relation
	}
	return d.NodeType
}

func ids(d comparator.NodeDelta) string {
	if d.OldID == d.NewID {
		return "(" + d.NewID + ")"
	}
	return "(" + d.OldID + " → " + d.NewID + ")"
}
