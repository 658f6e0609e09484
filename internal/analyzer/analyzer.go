package analyzer

import (
	"sort"

	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
)

// Analyze runs the rule set over every node. Findings carry the node id and
// path the graph uses for the same node, highest severity first.
func Analyze(output plan.ExplainOutput) AnalysisResult {
	result := AnalysisResult{
		TotalCost:     output.Plan.TotalCost,
		ExecutionTime: output.ExecutionTime,
		PlanningTime:  output.PlanningTime,
		Fingerprint:   graph.Fingerprint(output.Root()),
	}

	ctx := BuildContext(output.Root())
	for _, v := range ctx.Nodes {
		for _, rule := range defaultRules {
			for _, f := range rule(v, ctx) {
				f.NodeID = v.ID
				f.Path = v.Path
				result.Findings = append(result.Findings, f)
			}
		}
	}

	sort.SliceStable(result.Findings, func(i, j int) bool {
		return result.Findings[i].Severity > result.Findings[j].Severity
	})

	return result
}
