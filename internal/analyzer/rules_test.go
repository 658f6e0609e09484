package analyzer

import (
	"strings"
	"testing"

	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
	"github.com/jacobarthurs/pgplanviz/internal/severity"
)

// --- Helpers ---

func emptyCtx() *PlanContext {
	return &PlanContext{CTEs: make(map[string]*plan.PlanNode)}
}

func visit(node, parent *plan.PlanNode, idx int) graph.Visit {
	return graph.Visit{ID: "node-0", Path: "0", Node: node, Parent: parent, Index: idx}
}

func findBySeverity(findings []Finding, level severity.Level) []Finding {
	var result []Finding
	for _, f := range findings {
		if f.Severity == level {
			result = append(result, f)
		}
	}
	return result
}

func requireFindings(t *testing.T, findings []Finding, minCount int) {
	t.Helper()
	if len(findings) < minCount {
		t.Fatalf("expected at least %d findings, got %d", minCount, len(findings))
	}
}

func requireNoFindings(t *testing.T, findings []Finding) {
	t.Helper()
	if len(findings) > 0 {
		t.Fatalf("expected no findings, got %d: %v", len(findings), findings)
	}
}

func TestIndexScanFilterInefficiency_HighRemoval(t *testing.T) {
	node := &plan.PlanNode{
		NodeType:            "Index Scan",
		RelationName:        "scores",
		IndexName:           "idx_scores_date",
		IndexCond:           "(s.updated_at > '2023-01-01'::date)",
		Filter:              "(s.type = '4')",
		ActualRows:          2,
		RowsRemovedByFilter: 41555,
		ActualLoops:         1,
	}

	findings := checkIndexScanFilterInefficiency(visit(node, nil, -1), emptyCtx())
	requireFindings(t, findings, 1)

	f := findings[0]
	if f.Severity != severity.High {
		t.Errorf("severity = %v, want high", f.Severity)
	}
	if !strings.Contains(f.Description, "99.99%") {
		t.Errorf("expected capped percentage, got: %s", f.Description)
	}
	if !strings.Contains(f.Suggestion, "updated_at, type") {
		t.Errorf("expected composite index suggestion, got: %s", f.Suggestion)
	}
	if !strings.Contains(f.Suggestion, "partial index WHERE type = '4'") {
		t.Errorf("expected partial index suggestion, got: %s", f.Suggestion)
	}
	if f.Index == nil || f.Index.Table != "scores" || strings.Join(f.Index.Columns, ",") != "updated_at,type" {
		t.Errorf("unexpected index suggestion: %+v", f.Index)
	}
}

func TestIndexScanFilterInefficiency_LowRemoval(t *testing.T) {
	node := &plan.PlanNode{
		NodeType:            "Index Scan",
		RelationName:        "users",
		Filter:              "(active = true)",
		ActualRows:          900,
		RowsRemovedByFilter: 100,
	}
	requireNoFindings(t, checkIndexScanFilterInefficiency(visit(node, nil, -1), emptyCtx()))
}

func TestIndexScanFilterInefficiency_WarningSeverity(t *testing.T) {
	node := &plan.PlanNode{
		NodeType:            "Index Only Scan",
		RelationName:        "users",
		Filter:              "(active = true)",
		ActualRows:          300,
		RowsRemovedByFilter: 700,
	}
	findings := checkIndexScanFilterInefficiency(visit(node, nil, -1), emptyCtx())
	requireFindings(t, findings, 1)
	if findings[0].Severity != severity.Medium {
		t.Errorf("severity = %v, want medium", findings[0].Severity)
	}
	if findings[0].Index != nil {
		t.Errorf("no index condition, expected no structured suggestion, got %+v", findings[0].Index)
	}
}

func TestSeqScanInJoin_LargeOuter(t *testing.T) {
	join := &plan.PlanNode{
		NodeType: "Hash Join",
		HashCond: "(o.customer_id = c.id)",
		Plans: []plan.PlanNode{
			{NodeType: "Seq Scan", RelationName: "orders", Alias: "o", ActualRows: 2000000},
			{NodeType: "Hash", ActualRows: 50, Plans: []plan.PlanNode{{NodeType: "CTE Scan", CTEName: "vip"}}},
		},
	}

	findings := checkSeqScanInJoin(visit(&join.Plans[0], join, 0), emptyCtx())
	requireFindings(t, findings, 1)

	f := findings[0]
	if f.Severity != severity.High {
		t.Errorf("severity = %v, want high", f.Severity)
	}
	if !strings.Contains(f.Description, "2000000 rows to join against 50 rows from CTE vip") {
		t.Errorf("unexpected description: %s", f.Description)
	}
	if !strings.Contains(f.Suggestion, "index on customer_id") {
		t.Errorf("expected join column in suggestion, got: %s", f.Suggestion)
	}
}

func TestSeqScanInJoin_SmallTable(t *testing.T) {
	join := &plan.PlanNode{
		NodeType: "Hash Join",
		Plans: []plan.PlanNode{
			{NodeType: "Seq Scan", RelationName: "states", ActualRows: 50},
			{NodeType: "Hash", ActualRows: 10},
		},
	}
	requireNoFindings(t, checkSeqScanInJoin(visit(&join.Plans[0], join, 0), emptyCtx()))
}

func TestSeqScanInJoin_NotInJoin(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Seq Scan", ActualRows: 5000000}
	requireNoFindings(t, checkSeqScanInJoin(visit(node, nil, -1), emptyCtx()))
}

func TestSeqScanStandalone_LargeWithFilter(t *testing.T) {
	node := &plan.PlanNode{
		NodeType:            "Seq Scan",
		RelationName:        "events",
		Filter:              "(status = 'active')",
		ActualRows:          1500,
		RowsRemovedByFilter: 200000,
	}

	findings := checkSeqScanStandalone(visit(node, nil, -1), emptyCtx())
	requireFindings(t, findings, 1)
	f := findings[0]
	if f.Severity != severity.High {
		t.Errorf("severity = %v, want high", f.Severity)
	}
	if !strings.Contains(f.Suggestion, "events(status)") || !strings.Contains(f.Suggestion, "WHERE status = 'active'") {
		t.Errorf("unexpected suggestion: %s", f.Suggestion)
	}
}

func TestSeqScanStandalone_SkipsJoinParent(t *testing.T) {
	join := &plan.PlanNode{NodeType: "Nested Loop", Plans: []plan.PlanNode{{
		NodeType:            "Seq Scan",
		Filter:              "(x = 1)",
		ActualRows:          5000,
		RowsRemovedByFilter: 90000,
	}}}
	requireNoFindings(t, checkSeqScanStandalone(visit(&join.Plans[0], join, 0), emptyCtx()))
}

func TestBitmapHeapRecheck_HighLossy(t *testing.T) {
	node := &plan.PlanNode{
		NodeType:                  "Bitmap Heap Scan",
		RelationName:              "logs",
		ActualRows:                100,
		RowsRemovedByIndexRecheck: 9900,
	}
	findings := checkBitmapHeapRecheck(visit(node, nil, -1), emptyCtx())
	requireFindings(t, findings, 1)
	if findings[0].Severity != severity.High {
		t.Errorf("severity = %v, want high", findings[0].Severity)
	}
}

func TestNestedLoopHighLoops_ManyIterations(t *testing.T) {
	node := &plan.PlanNode{
		NodeType: "Nested Loop",
		Plans: []plan.PlanNode{
			{NodeType: "Seq Scan", RelationName: "a"},
			{NodeType: "Index Scan", RelationName: "b", IndexName: "b_pkey", ActualLoops: 20000, ActualTotalTime: 0.01, Filter: "(flag)"},
		},
	}
	findings := checkNestedLoopHighLoops(visit(node, nil, -1), emptyCtx())
	requireFindings(t, findings, 1)
	f := findings[0]
	if f.Severity != severity.High {
		t.Errorf("severity = %v, want high", f.Severity)
	}
	if !strings.Contains(f.Description, "Index Scan on b using b_pkey 20000 times (200.0ms total)") {
		t.Errorf("unexpected description: %s", f.Description)
	}
	if !strings.Contains(f.Suggestion, "more selective index") {
		t.Errorf("expected filter hint, got: %s", f.Suggestion)
	}
}

func TestSortSpill_DiskSpill(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Sort", SortSpaceType: "Disk", SortSpaceUsed: 10240}
	findings := checkSortSpill(visit(node, nil, -1), emptyCtx())
	requireFindings(t, findings, 1)
	if !strings.Contains(findings[0].Suggestion, ">10240kB") {
		t.Errorf("unexpected suggestion: %s", findings[0].Suggestion)
	}
}

func TestSortSpill_MemorySort(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Sort", SortSpaceType: "Memory", SortSpaceUsed: 25}
	requireNoFindings(t, checkSortSpill(visit(node, nil, -1), emptyCtx()))
}

func TestHashSpill_MultipleBatches(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Hash", HashBatches: 16, PeakMemoryUsage: 4096}
	findings := checkHashSpill(visit(node, nil, -1), emptyCtx())
	requireFindings(t, findings, 1)
	if findings[0].Severity != severity.High {
		t.Errorf("severity = %v, want high", findings[0].Severity)
	}
}

func TestTempBlocks_HasTempIO(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Sort", TempReadBlocks: 64, TempWrittenBlocks: 64}
	findings := checkTempBlocks(visit(node, nil, -1), emptyCtx())
	requireFindings(t, findings, 1)
	if !strings.Contains(findings[0].Description, "1.0 MB") {
		t.Errorf("unexpected description: %s", findings[0].Description)
	}
}

func TestWorkerMismatch_FewerLaunched(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Gather", WorkersPlanned: 4, WorkersLaunched: 1}
	requireFindings(t, checkWorkerMismatch(visit(node, nil, -1), emptyCtx()), 1)

	node.WorkersLaunched = 4
	requireNoFindings(t, checkWorkerMismatch(visit(node, nil, -1), emptyCtx()))
}

func TestLargeJoinFilterRemoval(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Nested Loop", RowsRemovedByJoinFilter: 50000}
	findings := checkLargeJoinFilterRemoval(visit(node, nil, -1), emptyCtx())
	requireFindings(t, findings, 1)
	if findings[0].Severity != severity.Medium {
		t.Errorf("severity = %v, want medium", findings[0].Severity)
	}
}

func TestMaterializeHighLoops_ManyLoops(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Materialize", ActualLoops: 500, ActualTotalTime: 0.02, ActualRows: 12}
	findings := checkMaterializeHighLoops(visit(node, nil, -1), emptyCtx())
	requireFindings(t, findings, 1)
	if !strings.Contains(findings[0].Description, "12 rows per scan") {
		t.Errorf("unexpected description: %s", findings[0].Description)
	}
}

func TestRedundantSort(t *testing.T) {
	node := &plan.PlanNode{
		NodeType: "Sort",
		SortKey:  []string{"u.created_at DESC NULLS LAST"},
		Plans: []plan.PlanNode{{
			NodeType:     "Index Scan",
			RelationName: "users",
			IndexName:    "users_created_at_idx",
			IndexCond:    "(u.created_at > now())",
		}},
	}
	findings := checkRedundantSort(visit(node, nil, -1), emptyCtx())
	requireFindings(t, findings, 1)
	if findings[0].Severity != severity.Low {
		t.Errorf("severity = %v, want low", findings[0].Severity)
	}
}

func TestIndexScanLowSelectivity_HighReads(t *testing.T) {
	node := &plan.PlanNode{
		NodeType:         "Index Scan",
		RelationName:     "events",
		IndexName:        "events_type_idx",
		ActualRows:       50000,
		SharedHitBlocks:  500,
		SharedReadBlocks: 4500,
	}
	findings := checkIndexScanLowSelectivity(visit(node, nil, -1), emptyCtx())
	requireFindings(t, findings, 1)
	if !strings.Contains(findings[0].Description, "90% from disk") {
		t.Errorf("unexpected description: %s", findings[0].Description)
	}
}

func TestIndexScanLowSelectivity_SkipsWithFilter(t *testing.T) {
	node := &plan.PlanNode{
		NodeType:            "Index Scan",
		ActualRows:          50000,
		SharedReadBlocks:    4500,
		Filter:              "(x > 1)",
		RowsRemovedByFilter: 10,
	}
	requireNoFindings(t, checkIndexScanLowSelectivity(visit(node, nil, -1), emptyCtx()))
}

func TestEstimateMismatch_Underestimate(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Seq Scan", RelationName: "orders", PlanRows: 100, ActualRows: 5000, ActualLoops: 1}
	findings := checkEstimateMismatch(visit(node, nil, -1), emptyCtx())
	requireFindings(t, findings, 1)
	f := findings[0]
	if f.Severity != severity.High {
		t.Errorf("severity = %v, want high", f.Severity)
	}
	if !strings.Contains(f.Description, "underestimated") || !strings.Contains(f.Suggestion, "ANALYZE on orders") {
		t.Errorf("unexpected finding: %+v", f)
	}
}

func TestEstimateMismatch_CTEScan(t *testing.T) {
	ctx := emptyCtx()
	ctx.CTEs["recent"] = &plan.PlanNode{NodeType: "Append"}
	node := &plan.PlanNode{NodeType: "CTE Scan", CTEName: "recent", PlanRows: 1000, ActualRows: 300, ActualLoops: 1}

	findings := checkEstimateMismatch(visit(node, nil, -1), ctx)
	requireFindings(t, findings, 1)
	if findings[0].Severity != severity.Medium {
		t.Errorf("severity = %v, want medium", findings[0].Severity)
	}
	if !strings.Contains(findings[0].Suggestion, "CTE recent") {
		t.Errorf("unexpected suggestion: %s", findings[0].Suggestion)
	}
}

func TestEstimateMismatch_SkipsWithoutAnalyze(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Seq Scan", PlanRows: 100000}
	requireNoFindings(t, checkEstimateMismatch(visit(node, nil, -1), emptyCtx()))
}

func TestEstimateMismatch_SkipsSmallRowCounts(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Seq Scan", PlanRows: 1, ActualRows: 40, ActualLoops: 1}
	requireNoFindings(t, checkEstimateMismatch(visit(node, nil, -1), emptyCtx()))
}

func TestAnalyze_FullPlan(t *testing.T) {
	output := plan.ExplainOutput{
		Plan: plan.PlanNode{
			NodeType:      "Sort",
			TotalCost:     100.0,
			PlanRows:      1000,
			ActualRows:    1000,
			ActualLoops:   1,
			SortSpaceType: "Disk",
			SortSpaceUsed: 5000,
			Plans: []plan.PlanNode{{
				NodeType:            "Seq Scan",
				RelationName:        "events",
				Filter:              "(status = 'active')",
				ActualRows:          500,
				PlanRows:            500,
				RowsRemovedByFilter: 200000,
				ActualLoops:         1,
			}},
		},
		PlanningTime:  1.0,
		ExecutionTime: 50.0,
	}

	result := Analyze(output)

	if result.TotalCost != 100.0 {
		t.Errorf("TotalCost = %f, want 100.0", result.TotalCost)
	}
	if result.Fingerprint != graph.Fingerprint(&output.Plan) {
		t.Errorf("Fingerprint = %q, want graph fingerprint", result.Fingerprint)
	}
	if len(findBySeverity(result.Findings, severity.High)) == 0 {
		t.Error("expected at least one high finding (disk sort)")
	}
	if result.Count(severity.High) != len(findBySeverity(result.Findings, severity.High)) {
		t.Error("Count disagrees with findings")
	}

	for i := 1; i < len(result.Findings); i++ {
		if result.Findings[i].Severity > result.Findings[i-1].Severity {
			t.Error("findings not sorted by severity descending")
			break
		}
	}
}

func TestAnalyze_FindingsCarryGraphIDs(t *testing.T) {
	output := plan.ExplainOutput{Plan: plan.PlanNode{
		NodeType: "Hash Join",
		Plans: []plan.PlanNode{
			{NodeType: "Seq Scan", RelationName: "a"},
			{NodeType: "Hash", Plans: []plan.PlanNode{
				{NodeType: "Sort", SortSpaceType: "Disk", SortSpaceUsed: 64},
			}},
		},
	}}

	result := Analyze(output)
	requireFindings(t, result.Findings, 1)

	g := graph.Flatten(&output.Plan)
	f := result.Findings[0]
	n, ok := g.Node(f.NodeID)
	if !ok {
		t.Fatalf("finding id %q not in graph", f.NodeID)
	}
	if n.Label != "Sort" || n.Path != f.Path || f.NodeID != "node-3" {
		t.Errorf("finding joined onto %s (%s), want Sort at node-3", n.Label, n.ID)
	}
}
