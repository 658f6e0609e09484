package analyzer

import (
	"strings"
	"testing"

	"github.com/jacobarthurs/pgplanviz/internal/plan"
)

func TestBuildContext_DetectsCTEs(t *testing.T) {
	root := &plan.PlanNode{
		NodeType: "Limit",
		Plans: []plan.PlanNode{
			{NodeType: "Append", SubplanName: "CTE recent_orders"},
			{NodeType: "CTE Scan", CTEName: "recent_orders"},
		},
	}

	ctx := BuildContext(root)
	if len(ctx.CTEs) != 1 {
		t.Fatalf("expected 1 CTE, got %d", len(ctx.CTEs))
	}
	if ctx.CTEs["recent_orders"] != &root.Plans[0] {
		t.Error("CTE should point at the defining node")
	}
}

func TestBuildContext_VisitsInPreorder(t *testing.T) {
	root := &plan.PlanNode{
		NodeType: "Hash Join",
		Plans: []plan.PlanNode{
			{NodeType: "Seq Scan"},
			{NodeType: "Hash", Plans: []plan.PlanNode{{NodeType: "Index Scan"}}},
		},
	}

	ctx := BuildContext(root)
	var got []string
	for _, v := range ctx.Nodes {
		got = append(got, v.ID+":"+v.Node.NodeType)
	}
	want := "node-0:Hash Join,node-1:Seq Scan,node-2:Hash,node-3:Index Scan"
	if strings.Join(got, ",") != want {
		t.Errorf("got %q, want %q", strings.Join(got, ","), want)
	}
	if ctx.Nodes[3].Depth != 2 || ctx.Nodes[3].Parent != &root.Plans[1] {
		t.Errorf("unexpected depth/parent for leaf: %+v", ctx.Nodes[3])
	}
}

func TestExtractConditionColumns_Qualified(t *testing.T) {
	got := ExtractConditionColumns("((o.user_id = u.id) AND (o.status = 'done'))")
	if strings.Join(got, ",") != "user_id,id,status" {
		t.Errorf("got %v", got)
	}
}

func TestExtractConditionColumns_Bare(t *testing.T) {
	got := ExtractConditionColumns("(active = true)")
	if len(got) != 1 || got[0] != "active" {
		t.Errorf("got %v, want [active]", got)
	}
}

func TestExtractConditionColumns_WithCast(t *testing.T) {
	got := ExtractConditionColumns("((status)::text = 'x.y'::text)")
	if len(got) != 1 || got[0] != "status" {
		t.Errorf("got %v, want [status]", got)
	}
}

func TestExtractConditionColumns_Empty(t *testing.T) {
	if got := ExtractConditionColumns(""); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestConditionColumnsNotIn(t *testing.T) {
	got := ConditionColumnsNotIn("((s.type = '4') AND (s.updated_at > now()))", "(s.updated_at > '2023-01-01'::date)")
	if len(got) != 1 || got[0] != "type" {
		t.Errorf("got %v, want [type]", got)
	}
	if got := ConditionColumnsNotIn("", "(a.x = 1)"); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestExtractLiteralValue(t *testing.T) {
	cases := map[string]string{
		"(status = 'active')":   "active",
		"(name = 'O''Brien')":   "O'Brien",
		"(status <> 'deleted')": "",
		"(total >= '10')":       "",
		"":                      "",
	}
	for cond, want := range cases {
		if got := ExtractLiteralValue(cond); got != want {
			t.Errorf("ExtractLiteralValue(%q) = %q, want %q", cond, got, want)
		}
	}
}
