package graph

import (
	"strings"

	"github.com/jacobarthurs/pgplanviz/internal/plan"
	"github.com/jacobarthurs/pgplanviz/internal/severity"
)

type attribute struct {
	name   string
	source string
	value  func(n *plan.PlanNode) any
}

var attributeSpec = []attribute{
	{"Total Cost", "Total Cost", func(n *plan.PlanNode) any { return n.TotalCost }},
	{"Startup Cost", "Startup Cost", func(n *plan.PlanNode) any { return n.StartupCost }},
	{"Plan Rows", "Plan Rows", func(n *plan.PlanNode) any { return n.PlanRows }},
	{"Plan Width", "Plan Width", func(n *plan.PlanNode) any { return n.PlanWidth }},
	{"Actual Rows", "Actual Rows", func(n *plan.PlanNode) any { return n.ActualRows }},
	{"Actual Time", "Actual Total Time", func(n *plan.PlanNode) any { return n.ActualTotalTime }},
	{"Actual Loops", "Actual Loops", func(n *plan.PlanNode) any { return n.ActualLoops }},
	{"Relation Name", "Relation Name", func(n *plan.PlanNode) any { return n.RelationName }},
	{"Alias", "Alias", func(n *plan.PlanNode) any { return n.Alias }},
	{"Index Name", "Index Name", func(n *plan.PlanNode) any { return n.IndexName }},
	{"Filter", "Filter", func(n *plan.PlanNode) any { return n.Filter }},
	{"Hash Cond", "Hash Cond", func(n *plan.PlanNode) any { return n.HashCond }},
	{"Merge Cond", "Merge Cond", func(n *plan.PlanNode) any { return n.MergeCond }},
	{"Join Filter", "Join Filter", func(n *plan.PlanNode) any { return n.JoinFilter }},
	{"Join Type", "Join Type", func(n *plan.PlanNode) any { return n.JoinType }},
	{"Index Cond", "Index Cond", func(n *plan.PlanNode) any { return n.IndexCond }},
	{"Scan Direction", "Scan Direction", func(n *plan.PlanNode) any { return n.ScanDirection }},
	{"Sort Key", "Sort Key", func(n *plan.PlanNode) any { return strings.Join(n.SortKey, ", ") }},
	{"Sort Method", "Sort Method", func(n *plan.PlanNode) any { return n.SortMethod }},
	{"Sort Space Used", "Sort Space Used", func(n *plan.PlanNode) any { return n.SortSpaceUsed }},
	{"Sort Space Type", "Sort Space Type", func(n *plan.PlanNode) any { return n.SortSpaceType }},
	{"Shared Hit Blocks", "Shared Hit Blocks", func(n *plan.PlanNode) any { return n.SharedHitBlocks }},
	{"Shared Read Blocks", "Shared Read Blocks", func(n *plan.PlanNode) any { return n.SharedReadBlocks }},
	{"Shared Written Blocks", "Shared Written Blocks", func(n *plan.PlanNode) any { return n.SharedWrittenBlocks }},
	{"Temp Read Blocks", "Temp Read Blocks", func(n *plan.PlanNode) any { return n.TempReadBlocks }},
	{"Temp Written Blocks", "Temp Written Blocks", func(n *plan.PlanNode) any { return n.TempWrittenBlocks }},
}

// AttributeKeys lists the attribute names Flatten can emit, in display order.
func AttributeKeys() []string {
	keys := make([]string, len(attributeSpec))
	for i, a := range attributeSpec {
		keys[i] = a.name
	}
	return keys
}

// Flatten converts a plan tree into graph nodes and parent->child edges. A nil
// root yields an empty graph. Nodes come out in pre-order with default
// severity and structural styling; positions and badges are filled in later.
func Flatten(root *plan.PlanNode) Graph {
	g := Graph{Nodes: []Node{}, Edges: []Edge{}}
	if root == nil {
		return g
	}

	Walk(root, func(v Visit) {
		label := v.Node.NodeType
		if label == "" {
			label = "Unknown"
		}
		hint := hintFor(label)

		g.Nodes = append(g.Nodes, Node{
			ID:         v.ID,
			Path:       v.Path,
			ParentID:   v.ParentID,
			Depth:      v.Depth,
			Label:      label,
			Attributes: attributes(v.Node),
			Severity:   severity.None,
			Hint:       hint,
			Style:      hint.Style(),
		})

		if v.ParentID != "" {
			g.Edges = append(g.Edges, Edge{
				ID:     EdgeID(v.ParentID, v.ID),
				Source: v.ParentID,
				Target: v.ID,
				Color:  hint.Style().Border,
			})
		}
	})

	g.Fingerprint = Fingerprint(root)
	return g
}

func attributes(n *plan.PlanNode) map[string]any {
	attrs := make(map[string]any)
	for _, a := range attributeSpec {
		v := a.value(n)
		if n.Decoded() {
			if !n.Has(a.source) {
				continue
			}
		} else if isZero(v) {
			continue
		}
		attrs[a.name] = v
	}
	return attrs
}

func isZero(v any) bool {
	switch x := v.(type) {
	case string:
		return x == ""
	case float64:
		return x == 0
	case int64:
		return x == 0
	case int:
		return x == 0
	default:
		return v == nil
	}
}
