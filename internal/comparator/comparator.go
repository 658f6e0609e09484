package comparator

import (
	"fmt"

	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
)

// Comparator diffs two plans position by position. Threshold is the percent
// change below which a metric counts as unchanged.
type Comparator struct {
	Threshold float64
}

func New() *Comparator {
	return &Comparator{Threshold: SignificanceThresholdPct}
}

func (c *Comparator) Compare(old, new plan.ExplainOutput) ComparisonResult {
	d := &differ{c: c, oldIDs: nodeIDs(&old.Plan), newIDs: nodeIDs(&new.Plan)}
	rootDelta := d.diffNodes(&old.Plan, &new.Plan)

	summary := Summary{
		OldTotalCost: old.Plan.TotalCost,
		NewTotalCost: new.Plan.TotalCost,
		CostDelta:    new.Plan.TotalCost - old.Plan.TotalCost,
		CostPct:      pctChange(old.Plan.TotalCost, new.Plan.TotalCost),
		CostDir:      c.direction(old.Plan.TotalCost, new.Plan.TotalCost),

		OldExecutionTime: old.ExecutionTime,
		NewExecutionTime: new.ExecutionTime,
		TimeDelta:        new.ExecutionTime - old.ExecutionTime,
		TimePct:          pctChange(old.ExecutionTime, new.ExecutionTime),
		TimeDir:          c.direction(old.ExecutionTime, new.ExecutionTime),

		OldPlanningTime: old.PlanningTime,
		NewPlanningTime: new.PlanningTime,
		PlanningDir:     c.direction(old.PlanningTime, new.PlanningTime),

		OldSharedRead: old.Plan.SharedReadBlocks,
		NewSharedRead: new.Plan.SharedReadBlocks,
		OldSharedHit:  old.Plan.SharedHitBlocks,
		NewSharedHit:  new.Plan.SharedHitBlocks,
	}

	countChanges(&rootDelta, &summary)
	summary.Verdict = verdict(summary)

	return ComparisonResult{
		Deltas:  []NodeDelta{rootDelta},
		Summary: summary,
	}
}

func nodeIDs(root *plan.PlanNode) map[*plan.PlanNode]string {
	ids := make(map[*plan.PlanNode]string)
	graph.Walk(root, func(v graph.Visit) {
		ids[v.Node] = v.ID
	})
	return ids
}

func countChanges(delta *NodeDelta, summary *Summary) {
	switch delta.ChangeType {
	case Added:
		summary.NodesAdded++
	case Removed:
		summary.NodesRemoved++
	case Modified:
		summary.NodesModified++
	case TypeChanged:
		summary.NodesTypeChanged++
	}

	for i := range delta.Children {
		countChanges(&delta.Children[i], summary)
	}
}

// verdict prefers execution time when both plans were analyzed.
func verdict(s Summary) string {
	if s.OldExecutionTime > 0 && s.NewExecutionTime > 0 {
		switch s.TimeDir {
		case Improved:
			return fmt.Sprintf("faster: execution time %.1f%% (%.2fms -> %.2fms)", s.TimePct, s.OldExecutionTime, s.NewExecutionTime)
		case Regressed:
			return fmt.Sprintf("slower: execution time +%.1f%% (%.2fms -> %.2fms)", s.TimePct, s.OldExecutionTime, s.NewExecutionTime)
		}
		return "no significant change in execution time"
	}

	switch s.CostDir {
	case Improved:
		return fmt.Sprintf("cheaper: estimated cost %.1f%% (%.2f -> %.2f)", s.CostPct, s.OldTotalCost, s.NewTotalCost)
	case Regressed:
		return fmt.Sprintf("more expensive: estimated cost +%.1f%% (%.2f -> %.2f)", s.CostPct, s.OldTotalCost, s.NewTotalCost)
	}
	return "no significant change in estimated cost"
}

// StructuralChanges describes operator-level differences in reading order.
func (r ComparisonResult) StructuralChanges() []string {
	var changes []string
	var walk func(d *NodeDelta)
	walk = func(d *NodeDelta) {
		switch d.ChangeType {
		case TypeChanged:
			changes = append(changes, fmt.Sprintf("%s became %s%s (%s -> %s)",
				d.OldNodeType, d.NewNodeType, onRelation(d.Relation), d.OldID, d.NewID))
		case Added:
			changes = append(changes, fmt.Sprintf("added %s%s (%s)", d.NodeType, onRelation(d.Relation), d.NewID))
			return
		case Removed:
			changes = append(changes, fmt.Sprintf("removed %s%s (%s)", d.NodeType, onRelation(d.Relation), d.OldID))
			return
		}

		if d.OldIndexName != d.NewIndexName && d.OldIndexName != "" && d.NewIndexName != "" {
			changes = append(changes, fmt.Sprintf("%s%s switched index %s -> %s", d.NodeType, onRelation(d.Relation), d.OldIndexName, d.NewIndexName))
		}
		if d.OldSortSpill != d.NewSortSpill {
			if d.NewSortSpill {
				changes = append(changes, fmt.Sprintf("%s now spills to disk (%s)", d.NodeType, d.NewID))
			} else {
				changes = append(changes, fmt.Sprintf("%s no longer spills to disk (%s)", d.NodeType, d.NewID))
			}
		}
		if d.OldHashBatches != d.NewHashBatches && max(d.OldHashBatches, d.NewHashBatches) > 1 {
			changes = append(changes, fmt.Sprintf("%s hash batches %d -> %d (%s)", d.NodeType, d.OldHashBatches, d.NewHashBatches, d.NewID))
		}

		for i := range d.Children {
			walk(&d.Children[i])
		}
	}
	for i := range r.Deltas {
		walk(&r.Deltas[i])
	}
	return changes
}

func onRelation(rel string) string {
	if rel == "" {
		return ""
	}
	return " on " + rel
}
