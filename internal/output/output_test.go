package output

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/awalterschulze/gographviz"
	"github.com/jacobarthurs/pgplanviz/internal/advisor"
	"github.com/jacobarthurs/pgplanviz/internal/comparator"
	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
	"github.com/jacobarthurs/pgplanviz/internal/present"
	"github.com/jacobarthurs/pgplanviz/internal/severity"
)

func joinExplain() plan.ExplainOutput {
	return plan.ExplainOutput{
		ExecutionTime: 13.2,
		PlanningTime:  0.4,
		Plan: plan.PlanNode{
			NodeType:        "Hash Join",
			TotalCost:       1250,
			PlanRows:        100,
			ActualRows:      98,
			ActualTotalTime: 12.5,
			ActualLoops:     1,
			Plans: []plan.PlanNode{
				{NodeType: "Seq Scan", RelationName: "orders", TotalCost: 900, PlanRows: 5000, ActualRows: 5000, ActualLoops: 1},
				{NodeType: "Hash", TotalCost: 40, Plans: []plan.PlanNode{
					{NodeType: "Index Scan", RelationName: "users", IndexName: "users_pkey", TotalCost: 35},
				}},
			},
		},
	}
}

func annotatedView(t *testing.T, explain plan.ExplainOutput) present.AnalysisView {
	t.Helper()
	g := graph.Build(&explain.Plan, graph.DefaultOptions())
	g, err := graph.Annotate(g, graph.Diagnostics{
		Fingerprint: g.Fingerprint,
		Nodes: graph.DiagnosticMap{
			"node-1": {Severity: severity.High, Advice: "Add an index on orders(customer_id)"},
		},
	})
	if err != nil {
		t.Fatalf("Annotate() error: %v", err)
	}
	return present.AnalysisView{Graph: g}
}

func TestRenderGraphText_TreeOrder(t *testing.T) {
	view := annotatedView(t, joinExplain())

	var buf bytes.Buffer
	if err := RenderGraphText(&buf, view.Graph, Theme{}); err != nil {
		t.Fatalf("RenderGraphText() error: %v", err)
	}
	out := buf.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	want := []string{
		"  [node-0] Hash Join",
		"  ├─ [node-1] Seq Scan on orders",
		"  │    → Add an index on orders(customer_id)",
		"  └─ [node-2] Hash",
		"     └─ [node-3] Index Scan on users",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), out)
	}
	for i, prefix := range want {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}
	if !strings.Contains(lines[0], "cost 1.25K") {
		t.Errorf("root line missing cost badge: %q", lines[0])
	}
	if !strings.Contains(lines[1], "HIGH") {
		t.Errorf("annotated node missing severity: %q", lines[1])
	}
}

func TestRenderGraphText_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderGraphText(&buf, graph.Flatten(nil), Theme{}); err != nil {
		t.Fatalf("RenderGraphText() error: %v", err)
	}
	if !strings.Contains(buf.String(), "(empty plan)") {
		t.Errorf("got %q", buf.String())
	}
}

func TestRenderAnalysisText_Sections(t *testing.T) {
	explain := joinExplain()
	view := annotatedView(t, explain)
	view.Analysis = &advisor.Analysis{
		OverallAssessment: "1 findings (1 high, 0 medium, 0 low).",
		Bottlenecks:       []advisor.Bottleneck{{NodeType: "Seq Scan", Issue: "Sequential scan on orders", Impact: "reads every row"}},
		IndexRecommendations: []advisor.IndexRecommendation{
			{Table: "orders", Columns: []string{"customer_id", "created_at"}, Reason: "filter column"},
		},
	}

	var buf bytes.Buffer
	if err := RenderAnalysisText(&buf, explain, view, Theme{}); err != nil {
		t.Fatalf("RenderAnalysisText() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Plan Summary",
		"Total Cost:     1250.00",
		"Execution Time: 13.200 ms",
		"Nodes:          4",
		"Assessment",
		"Bottlenecks (1)",
		"Seq Scan: Sequential scan on orders",
		"CREATE INDEX ON orders (customer_id, created_at);",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Query Rewrites") {
		t.Errorf("empty section rendered:\n%s", out)
	}
}

func TestRenderAnalysisText_DiagnosticsError(t *testing.T) {
	explain := joinExplain()
	view := present.AnalysisView{
		Graph: graph.Build(&explain.Plan, graph.DefaultOptions()),
		Error: "openai chat completion: timeout",
	}

	var buf bytes.Buffer
	if err := RenderAnalysisText(&buf, explain, view, Theme{}); err != nil {
		t.Fatalf("RenderAnalysisText() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "[node-3] Index Scan on users") {
		t.Errorf("graph not rendered:\n%s", out)
	}
	if !strings.Contains(out, "Diagnostics unavailable: openai chat completion: timeout") {
		t.Errorf("error not rendered:\n%s", out)
	}
}

func TestRenderComparisonText(t *testing.T) {
	old := joinExplain()
	new := joinExplain()
	new.Plan.NodeType = "Nested Loop"
	new.Plan.TotalCost = 400
	new.ExecutionTime = 3.1

	result := comparator.New().Compare(old, new)
	advice := &advisor.Comparison{
		Summary:           result.Summary.Verdict,
		StructuralChanges: []string{"Hash Join became Nested Loop (node-0 -> node-0)"},
		Recommendation:    "Prefer plan B.",
	}

	var buf bytes.Buffer
	if err := RenderComparisonText(&buf, result, advice, Theme{}); err != nil {
		t.Fatalf("RenderComparisonText() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Cost:           1250.00 → 400.00 ↓",
		"~ Hash Join → Nested Loop (node-0)",
		"Verdict: ",
		"• Hash Join became Nested Loop (node-0 -> node-0)",
		"Prefer plan B.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderComparisonText_Identical(t *testing.T) {
	explain := joinExplain()
	result := comparator.New().Compare(explain, explain)

	var buf bytes.Buffer
	if err := RenderComparisonText(&buf, result, nil, Theme{}); err != nil {
		t.Fatalf("RenderComparisonText() error: %v", err)
	}
	if !strings.Contains(buf.String(), "Plans are identical.") {
		t.Errorf("got:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Advisor") {
		t.Errorf("advisor section rendered without advice:\n%s", buf.String())
	}
}

func TestRenderDOT_OneStatementPerNodeAndEdge(t *testing.T) {
	view := annotatedView(t, joinExplain())

	var buf bytes.Buffer
	if err := RenderDOT(&buf, view.Graph); err != nil {
		t.Fatalf("RenderDOT() error: %v", err)
	}

	ast, err := gographviz.ParseString(buf.String())
	if err != nil {
		t.Fatalf("output is not valid DOT: %v\n%s", err, buf.String())
	}
	parsed := gographviz.NewGraph()
	if err := gographviz.Analyse(ast, parsed); err != nil {
		t.Fatalf("Analyse() error: %v", err)
	}

	if got := len(parsed.Nodes.Nodes); got != len(view.Graph.Nodes) {
		t.Errorf("nodes = %d, want %d", got, len(view.Graph.Nodes))
	}
	if got := len(parsed.Edges.Edges); got != len(view.Graph.Edges) {
		t.Errorf("edges = %d, want %d", got, len(view.Graph.Edges))
	}

	scan, ok := parsed.Nodes.Lookup[`"node-1"`]
	if !ok {
		t.Fatalf("node-1 missing from DOT output")
	}
	if got, want := scan.Attrs["fillcolor"], `"`+severity.High.Fill()+`"`; got != want {
		t.Errorf("fillcolor = %s, want %s", got, want)
	}
}

func TestRenderDOT_PinsLayoutPositions(t *testing.T) {
	view := annotatedView(t, joinExplain())

	var buf bytes.Buffer
	if err := RenderDOT(&buf, view.Graph); err != nil {
		t.Fatalf("RenderDOT() error: %v", err)
	}
	ast, err := gographviz.ParseString(buf.String())
	if err != nil {
		t.Fatalf("output is not valid DOT: %v", err)
	}
	parsed := gographviz.NewGraph()
	if err := gographviz.Analyse(ast, parsed); err != nil {
		t.Fatalf("Analyse() error: %v", err)
	}

	root, ok := parsed.Nodes.Lookup[`"node-0"`]
	if !ok {
		t.Fatal("node-0 missing from DOT output")
	}
	if got := root.Attrs["pos"]; got != `"0,0!"` {
		t.Errorf("root pos = %s, want \"0,0!\"", got)
	}

	for _, n := range view.Graph.Nodes {
		dn, ok := parsed.Nodes.Lookup[strconv.Quote(n.ID)]
		if !ok {
			t.Fatalf("%s missing from DOT output", n.ID)
		}
		want := fmt.Sprintf(`"%s,%s!"`,
			strconv.FormatFloat(n.Position.X, 'f', -1, 64),
			strconv.FormatFloat(0-n.Position.Y, 'f', -1, 64))
		if got := dn.Attrs["pos"]; got != want {
			t.Errorf("%s pos = %s, want %s", n.ID, got, want)
		}
	}
}

func TestRenderJSON_NoHTMLEscaping(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderJSON(&buf, map[string]string{"filter": "(amount > 100)"}); err != nil {
		t.Fatalf("RenderJSON() error: %v", err)
	}
	if !strings.Contains(buf.String(), `"(amount > 100)"`) {
		t.Errorf("got %s", buf.String())
	}
}

func TestColorEnabled_NonTerminal(t *testing.T) {
	if ColorEnabled(&bytes.Buffer{}) {
		t.Error("ColorEnabled() = true for a buffer")
	}
}
