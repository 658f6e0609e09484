package output

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/jacobarthurs/pgplanviz/internal/advisor"
	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
	"github.com/jacobarthurs/pgplanviz/internal/present"
	"github.com/jacobarthurs/pgplanviz/internal/severity"
)

type textWriter struct {
	w   io.Writer
	t   Theme
	err error
}

func (tw *textWriter) printf(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.w, format, args...)
}

func (tw *textWriter) heading(format string, args ...any) {
	tw.printf("%s\n\n", tw.t.render(tw.t.Heading, fmt.Sprintf(format, args...)))
}

// RenderAnalysisText prints the plan summary, the annotated plan tree and the
// advisor's findings for one plan.
func RenderAnalysisText(w io.Writer, explain plan.ExplainOutput, view present.AnalysisView, t Theme) error {
	tw := &textWriter{w: w, t: t}

	tw.heading("Plan Summary")
	tw.printf("  Total Cost:     %.2f\n", explain.Plan.TotalCost)
	if explain.ExecutionTime > 0 {
		tw.printf("  Execution Time: %.3f ms\n", explain.ExecutionTime)
	}
	if explain.PlanningTime > 0 {
		tw.printf("  Planning Time:  %.3f ms\n", explain.PlanningTime)
	}
	tw.printf("  Nodes:          %d\n\n", len(view.Graph.Nodes))

	tw.heading("Plan Tree")
	tw.renderTree(view.Graph)

	if view.Error != "" {
		tw.printf("\n%s\n", t.render(t.Changed, "Diagnostics unavailable: "+view.Error))
		return tw.err
	}
	if view.Analysis != nil {
		tw.printf("\n")
		tw.renderAnalysis(view.Analysis)
	}
	return tw.err
}

// RenderGraphText prints only the plan tree of g.
func RenderGraphText(w io.Writer, g graph.Graph, t Theme) error {
	tw := &textWriter{w: w, t: t}
	tw.renderTree(g)
	return tw.err
}

func (tw *textWriter) renderTree(g graph.Graph) {
	if len(g.Nodes) == 0 {
		tw.printf("  (empty plan)\n")
		return
	}
	children := g.Children()

	type frame struct {
		index  int
		prefix string
		last   bool
		root   bool
	}
	stack := []frame{{index: 0, root: true}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		branch, next := "  ", "  "
		if !f.root {
			branch, next = f.prefix+"├─ ", f.prefix+"│  "
			if f.last {
				branch, next = f.prefix+"└─ ", f.prefix+"   "
			}
		}
		tw.renderNode(branch, next, g.Nodes[f.index])

		kids := children[f.index]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{index: kids[i], prefix: next, last: i == len(kids)-1})
		}
	}
}

func (tw *textWriter) renderNode(branch, cont string, n graph.Node) {
	t := tw.t
	label := n.Label
	if rel, ok := n.Attributes["Relation Name"].(string); ok && rel != "" {
		label += " on " + rel
	}
	tw.printf("%s%s %s", branch, t.render(t.Dim, "["+n.ID+"]"), t.render(t.Node, label))

	if b := n.Badges.Cost; b != nil {
		tw.printf("  cost %s", t.level(b.Level, b.Display))
	}
	if b := n.Badges.Time; b != nil {
		tw.printf("  time %s", t.level(b.Level, b.Display))
	}
	if b := n.Badges.Rows; b != nil {
		tw.printf("  rows %s", t.level(b.Level, b.Display))
	}
	if n.Severity.Elevated() || n.Severity == severity.Low {
		tw.printf("  %s", t.level(n.Severity, strings.ToUpper(n.Severity.String())))
	}
	tw.printf("\n")

	if n.Advice == "" {
		return
	}
	for _, line := range strings.Split(n.Advice, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tw.printf("%s  %s\n", cont, t.render(t.Dim, "→ "+line))
	}
}

func (tw *textWriter) renderAnalysis(a *advisor.Analysis) {
	t := tw.t

	if a.OverallAssessment != "" {
		tw.heading("Assessment")
		tw.printf("  %s\n\n", a.OverallAssessment)
	}

	if len(a.Bottlenecks) == 0 && len(a.IndexRecommendations) == 0 && len(a.QueryRewrites) == 0 {
		tw.printf("%s\n", t.render(t.Good, "No issues found."))
		return
	}

	if len(a.Bottlenecks) > 0 {
		tw.heading("Bottlenecks (%d)", len(a.Bottlenecks))
		for _, b := range a.Bottlenecks {
			tw.printf("  %s %s\n", t.render(t.Node, b.NodeType+":"), b.Issue)
			if b.Impact != "" {
				tw.printf("    %s\n", t.render(t.Dim, "→ "+b.Impact))
			}
		}
		tw.printf("\n")
	}

	if len(a.IndexRecommendations) > 0 {
		tw.heading("Index Recommendations (%d)", len(a.IndexRecommendations))
		for _, r := range a.IndexRecommendations {
			tw.printf("  %s\n", t.render(t.Good, fmt.Sprintf("CREATE INDEX ON %s (%s);", r.Table, strings.Join(r.Columns, ", "))))
			if r.Reason != "" {
				tw.printf("    %s\n", t.render(t.Dim, "→ "+r.Reason))
			}
		}
		tw.printf("\n")
	}

	if len(a.QueryRewrites) > 0 {
		tw.heading("Query Rewrites (%d)", len(a.QueryRewrites))
		for _, r := range a.QueryRewrites {
			tw.printf("  %s\n", r.Suggestion)
			if r.Benefit != "" {
				tw.printf("    %s\n", t.render(t.Dim, "→ "+r.Benefit))
			}
		}
	}
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

func formatRows(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
