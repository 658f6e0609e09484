package comparator

import (
	"math"

	"github.com/jacobarthurs/pgplanviz/internal/plan"
)

// differ carries the graph ids of both trees through one comparison.
type differ struct {
	c      *Comparator
	oldIDs map[*plan.PlanNode]string
	newIDs map[*plan.PlanNode]string
}

func (d *differ) diffNodes(old, new *plan.PlanNode) NodeDelta {
	c := d.c
	delta := NodeDelta{
		OldID:    d.oldIDs[old],
		NewID:    d.newIDs[new],
		Relation: coalesce(old.RelationName, new.RelationName),
	}

	if old.NodeType != new.NodeType {
		delta.ChangeType = TypeChanged
		delta.OldNodeType = old.NodeType
		delta.NewNodeType = new.NodeType
		delta.NodeType = new.NodeType
	} else {
		delta.ChangeType = Modified
		delta.NodeType = old.NodeType
	}

	delta.OldCost, delta.NewCost = old.TotalCost, new.TotalCost
	delta.CostDelta = new.TotalCost - old.TotalCost
	delta.CostPct = pctChange(old.TotalCost, new.TotalCost)
	delta.CostDir = c.direction(old.TotalCost, new.TotalCost)

	delta.OldTime, delta.NewTime = old.ActualTotalTime, new.ActualTotalTime
	delta.TimeDelta = new.ActualTotalTime - old.ActualTotalTime
	delta.TimePct = pctChange(old.ActualTotalTime, new.ActualTotalTime)
	delta.TimeDir = c.direction(old.ActualTotalTime, new.ActualTotalTime)

	delta.OldRows, delta.NewRows = old.ActualRows, new.ActualRows
	delta.RowsPct = pctChange(old.ActualRows, new.ActualRows)

	delta.OldSharedHit, delta.NewSharedHit = old.SharedHitBlocks, new.SharedHitBlocks
	delta.OldSharedRead, delta.NewSharedRead = old.SharedReadBlocks, new.SharedReadBlocks
	delta.OldTempBlocks = old.TempReadBlocks + old.TempWrittenBlocks
	delta.NewTempBlocks = new.TempReadBlocks + new.TempWrittenBlocks
	delta.BufferDir = c.direction(
		float64(old.SharedReadBlocks+delta.OldTempBlocks),
		float64(new.SharedReadBlocks+delta.NewTempBlocks),
	)

	delta.OldSortSpill = old.SortSpaceType == "Disk"
	delta.NewSortSpill = new.SortSpaceType == "Disk"
	delta.OldHashBatches, delta.NewHashBatches = old.HashBatches, new.HashBatches
	delta.OldIndexName, delta.NewIndexName = old.IndexName, new.IndexName

	if delta.ChangeType == Modified && !c.isSignificant(delta) {
		delta.ChangeType = NoChange
	}

	delta.Children = d.diffChildren(old.Plans, new.Plans)
	return delta
}

func (d *differ) diffChildren(oldKids, newKids []plan.PlanNode) []NodeDelta {
	var deltas []NodeDelta
	for i := range max(len(oldKids), len(newKids)) {
		switch {
		case i >= len(oldKids):
			deltas = append(deltas, d.addedNode(&newKids[i]))
		case i >= len(newKids):
			deltas = append(deltas, d.removedNode(&oldKids[i]))
		default:
			deltas = append(deltas, d.diffNodes(&oldKids[i], &newKids[i]))
		}
	}
	return deltas
}

func (d *differ) addedNode(node *plan.PlanNode) NodeDelta {
	delta := NodeDelta{
		NewID:        d.newIDs[node],
		ChangeType:   Added,
		NodeType:     node.NodeType,
		Relation:     node.RelationName,
		NewCost:      node.TotalCost,
		NewTime:      node.ActualTotalTime,
		NewRows:      node.ActualRows,
		NewIndexName: node.IndexName,
	}
	for i := range node.Plans {
		delta.Children = append(delta.Children, d.addedNode(&node.Plans[i]))
	}
	return delta
}

func (d *differ) removedNode(node *plan.PlanNode) NodeDelta {
	delta := NodeDelta{
		OldID:        d.oldIDs[node],
		ChangeType:   Removed,
		NodeType:     node.NodeType,
		Relation:     node.RelationName,
		OldCost:      node.TotalCost,
		OldTime:      node.ActualTotalTime,
		OldRows:      node.ActualRows,
		OldIndexName: node.IndexName,
	}
	for i := range node.Plans {
		delta.Children = append(delta.Children, d.removedNode(&node.Plans[i]))
	}
	return delta
}

func (c *Comparator) isSignificant(d NodeDelta) bool {
	return math.Abs(d.CostPct) > c.Threshold ||
		math.Abs(d.TimePct) > c.Threshold ||
		d.OldSortSpill != d.NewSortSpill ||
		d.OldHashBatches != d.NewHashBatches ||
		d.OldTempBlocks != d.NewTempBlocks ||
		d.OldSharedRead != d.NewSharedRead ||
		d.OldIndexName != d.NewIndexName
}

// direction treats lower values as better; all compared metrics are costs.
func (c *Comparator) direction(old, new float64) Direction {
	if math.Abs(pctChange(old, new)) < c.Threshold {
		return Unchanged
	}
	if new < old {
		return Improved
	}
	return Regressed
}

func pctChange(old, new float64) float64 {
	if old == 0 {
		if new == 0 {
			return 0
		}
		return 100
	}
	return ((new - old) / old) * 100
}

func coalesce(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
