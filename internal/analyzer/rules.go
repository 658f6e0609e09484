package analyzer

import (
	"fmt"
	"strings"

	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
	"github.com/jacobarthurs/pgplanviz/internal/severity"
)

const (
	MinRowsForSeqScanWarning  = 1000
	MinRowsForCriticalScan    = 100000
	MinRowsForCriticalSeqScan = 1000000
	MinRowsForLowSelectivity  = 10000

	FilterRemovalWarningPct  = 50.0
	FilterRemovalCriticalPct = 95.0
	FilterRemovalCapPct      = 99.99
	RecheckWarningPct        = 50.0
	RecheckCriticalPct       = 90.0
	ReadBlocksCriticalPct    = 50.0

	NestedLoopWarningLoops   = 1000
	NestedLoopCriticalLoops  = 10000
	MaterializeWarningLoops  = 100
	MaterializeCriticalLoops = 10000

	MinReadBlocksForLowSelect = 1000
	MinRowsForEstimateCheck   = 100

	HashBatchesCritical       = 8
	JoinFilterRemovalWarning  = 10000
	JoinFilterRemovalCritical = 1000000
)

// Rule inspects one visited node. The walker stamps node id and path onto
// whatever it returns.
type Rule func(v graph.Visit, ctx *PlanContext) []Finding

var defaultRules = []Rule{
	checkIndexScanFilterInefficiency,
	checkSeqScanInJoin,
	checkSeqScanStandalone,
	checkBitmapHeapRecheck,
	checkNestedLoopHighLoops,
	checkSortSpill,
	checkHashSpill,
	checkTempBlocks,
	checkWorkerMismatch,
	checkLargeJoinFilterRemoval,
	checkMaterializeHighLoops,
	checkRedundantSort,
	checkIndexScanLowSelectivity,
	checkEstimateMismatch,
}

func checkIndexScanFilterInefficiency(v graph.Visit, ctx *PlanContext) []Finding {
	node := v.Node
	if !isIndexScan(node) || node.Filter == "" || node.RowsRemovedByFilter == 0 {
		return nil
	}

	removed := float64(node.RowsRemovedByFilter)
	total := node.ActualRows + removed
	removedPct := removed / total * 100
	if removedPct < FilterRemovalWarningPct {
		return nil
	}
	if removedPct > FilterRemovalCapPct && node.ActualRows > 0 {
		removedPct = FilterRemovalCapPct
	}

	level := severity.Medium
	if removedPct > FilterRemovalCriticalPct {
		level = severity.High
	}

	f := Finding{
		Severity: level,
		NodeType: node.NodeType,
		Relation: node.RelationName,
		Description: fmt.Sprintf("%s on %s using %s filters out %.2f%% of rows (%d of %.0f)",
			node.NodeType, node.RelationName, node.IndexName, removedPct, node.RowsRemovedByFilter, total),
		Suggestion: fmt.Sprintf("Add an index on %s covering the filter condition", node.RelationName),
	}

	missing := ConditionColumnsNotIn(node.Filter, node.IndexCond)
	indexCols := ExtractConditionColumns(node.IndexCond)
	if len(missing) > 0 && len(indexCols) > 0 {
		composite := append(append([]string{}, indexCols...), missing...)
		f.Suggestion = fmt.Sprintf("Column `%s` in filter is not in index; consider composite index on (%s)",
			strings.Join(missing, ", "), strings.Join(composite, ", "))
		if literal := ExtractLiteralValue(node.Filter); literal != "" && len(missing) == 1 {
			f.Suggestion += fmt.Sprintf(" or partial index WHERE %s = '%s'", missing[0], literal)
		}
		f.Index = &IndexSuggestion{Table: node.RelationName, Columns: composite}
	}

	return []Finding{f}
}

func checkSeqScanInJoin(v graph.Visit, ctx *PlanContext) []Finding {
	node, parent := v.Node, v.Parent
	if parent == nil || !isJoinNode(parent) || node.NodeType != "Seq Scan" {
		return nil
	}

	rows := rowsOf(node)
	if rows < MinRowsForSeqScanWarning {
		return nil
	}

	sibling, ok := siblingOf(v)
	if !ok {
		return nil
	}
	siblingRows := rowsOf(sibling)
	if siblingRows <= 0 || siblingRows >= rows/10 {
		return nil
	}

	level := severity.Medium
	if rows > MinRowsForCriticalSeqScan {
		level = severity.High
	}

	desc := fmt.Sprintf("Seq Scan on %s scans %.0f rows to join against %.0f rows", node.RelationName, rows, siblingRows)
	if cte := findCTEName(sibling); cte != "" {
		desc += fmt.Sprintf(" from CTE %s", cte)
	}

	f := Finding{
		Severity:    level,
		NodeType:    node.NodeType,
		Relation:    node.RelationName,
		Description: desc,
		Suggestion:  "Consider index on join column to enable index lookup instead of full scan",
	}

	if col := joinColumnFor(parent, node.RelationName, node.Alias); col != "" {
		target := col
		if strings.Contains(strings.ToLower(joinCondition(parent)), "lower(") {
			target = fmt.Sprintf("lower(%s)", col)
		}
		f.Suggestion = fmt.Sprintf("Consider index on %s to enable index lookup instead of full scan", target)
		f.Index = &IndexSuggestion{Table: node.RelationName, Columns: []string{target}}
	}

	return []Finding{f}
}

func checkSeqScanStandalone(v graph.Visit, ctx *PlanContext) []Finding {
	node := v.Node
	if node.NodeType != "Seq Scan" || node.Filter == "" || node.RowsRemovedByFilter == 0 {
		return nil
	}
	if v.Parent != nil && isJoinNode(v.Parent) {
		return nil
	}

	rows := rowsOf(node)
	if rows < MinRowsForSeqScanWarning {
		return nil
	}

	removed := float64(node.RowsRemovedByFilter)
	total := rows + removed
	removedPct := removed / total * 100
	if removedPct < FilterRemovalWarningPct {
		return nil
	}
	if removedPct > FilterRemovalCapPct && node.ActualRows > 0 {
		removedPct = FilterRemovalCapPct
	}

	level := severity.Medium
	if total > MinRowsForCriticalScan {
		level = severity.High
	}

	f := Finding{
		Severity: level,
		NodeType: node.NodeType,
		Relation: node.RelationName,
		Description: fmt.Sprintf("Seq Scan on %s filters out %.2f%% of rows (%d of %.0f)",
			node.RelationName, removedPct, node.RowsRemovedByFilter, total),
		Suggestion: fmt.Sprintf("Add an index on %s covering the filter condition", node.RelationName),
	}

	if cols := ExtractConditionColumns(node.Filter); len(cols) > 0 {
		f.Suggestion = fmt.Sprintf("Consider index on %s(%s)", node.RelationName, strings.Join(cols, ", "))
		if literal := ExtractLiteralValue(node.Filter); literal != "" && len(cols) == 1 {
			f.Suggestion += fmt.Sprintf(" or partial index WHERE %s = '%s'", cols[0], literal)
		}
		f.Index = &IndexSuggestion{Table: node.RelationName, Columns: cols}
	}

	return []Finding{f}
}

func checkBitmapHeapRecheck(v graph.Visit, ctx *PlanContext) []Finding {
	node := v.Node
	if node.NodeType != "Bitmap Heap Scan" || node.RowsRemovedByIndexRecheck == 0 {
		return nil
	}

	removed := float64(node.RowsRemovedByIndexRecheck)
	total := node.ActualRows + removed
	recheckPct := removed / total * 100
	if recheckPct < RecheckWarningPct {
		return nil
	}

	level := severity.Medium
	if recheckPct > RecheckCriticalPct {
		level = severity.High
	}

	return []Finding{{
		Severity: level,
		NodeType: node.NodeType,
		Relation: node.RelationName,
		Description: fmt.Sprintf("Bitmap Heap Scan on %s lost %.1f%% of rows to recheck (%d of %.0f) due to lossy bitmap pages",
			node.RelationName, recheckPct, node.RowsRemovedByIndexRecheck, total),
		Suggestion: "Increase work_mem to reduce lossy pages, or consider a more selective index",
	}}
}

func checkNestedLoopHighLoops(v graph.Visit, ctx *PlanContext) []Finding {
	node := v.Node
	if node.NodeType != "Nested Loop" || len(node.Plans) < 2 {
		return nil
	}

	inner := &node.Plans[1]
	if inner.ActualLoops < NestedLoopWarningLoops {
		return nil
	}

	level := severity.Medium
	if inner.ActualLoops > NestedLoopCriticalLoops {
		level = severity.High
	}

	suggestion := "Consider Hash Join or Merge Join; verify indexes exist on inner side join columns"
	if isIndexScan(inner) && inner.Filter != "" {
		suggestion += fmt.Sprintf("; filter on %s may warrant a more selective index", inner.RelationName)
	}

	return []Finding{{
		Severity: level,
		NodeType: node.NodeType,
		Relation: inner.RelationName,
		Description: fmt.Sprintf("Nested Loop executes %s %d times (%.1fms total)",
			innerNodeLabel(inner), inner.ActualLoops, inner.ActualTotalTime*float64(inner.ActualLoops)),
		Suggestion: suggestion,
	}}
}

func checkSortSpill(v graph.Visit, ctx *PlanContext) []Finding {
	node := v.Node
	if node.SortSpaceType != "Disk" {
		return nil
	}
	return []Finding{{
		Severity:    severity.High,
		NodeType:    node.NodeType,
		Relation:    node.RelationName,
		Description: fmt.Sprintf("Sort spilled to disk (%dkB) on %s", node.SortSpaceUsed, nodeLabel(node)),
		Suggestion:  fmt.Sprintf("Increase work_mem (currently needs >%dkB) or reduce data before sorting", node.SortSpaceUsed),
	}}
}

func checkHashSpill(v graph.Visit, ctx *PlanContext) []Finding {
	node := v.Node
	if node.HashBatches <= 1 {
		return nil
	}
	level := severity.Medium
	if node.HashBatches > HashBatchesCritical {
		level = severity.High
	}
	return []Finding{{
		Severity:    level,
		NodeType:    node.NodeType,
		Relation:    node.RelationName,
		Description: fmt.Sprintf("Hash used %d batches with %dkB memory on %s", node.HashBatches, node.PeakMemoryUsage, nodeLabel(node)),
		Suggestion:  "Increase work_mem to fit the hash table in memory",
	}}
}

func checkTempBlocks(v graph.Visit, ctx *PlanContext) []Finding {
	node := v.Node
	total := node.TempReadBlocks + node.TempWrittenBlocks
	if total == 0 {
		return nil
	}
	return []Finding{{
		Severity:    severity.Medium,
		NodeType:    node.NodeType,
		Relation:    node.RelationName,
		Description: fmt.Sprintf("Temp I/O: %d blocks (%.1f MB) on %s", total, float64(total*8)/1024, nodeLabel(node)),
		Suggestion:  "Increase work_mem or restructure query to reduce intermediate result size",
	}}
}

func checkWorkerMismatch(v graph.Visit, ctx *PlanContext) []Finding {
	node := v.Node
	if node.WorkersPlanned == 0 || node.WorkersLaunched >= node.WorkersPlanned {
		return nil
	}
	return []Finding{{
		Severity:    severity.Medium,
		NodeType:    node.NodeType,
		Relation:    node.RelationName,
		Description: fmt.Sprintf("Only %d of %d planned parallel workers launched on %s", node.WorkersLaunched, node.WorkersPlanned, nodeLabel(node)),
		Suggestion:  "Check max_parallel_workers and max_parallel_workers_per_gather settings",
	}}
}

func checkLargeJoinFilterRemoval(v graph.Visit, ctx *PlanContext) []Finding {
	node := v.Node
	if node.RowsRemovedByJoinFilter < JoinFilterRemovalWarning {
		return nil
	}
	level := severity.Medium
	if node.RowsRemovedByJoinFilter > JoinFilterRemovalCritical {
		level = severity.High
	}
	return []Finding{{
		Severity:    level,
		NodeType:    node.NodeType,
		Relation:    node.RelationName,
		Description: fmt.Sprintf("Join filter removed %d rows on %s", node.RowsRemovedByJoinFilter, nodeLabel(node)),
		Suggestion:  "Move filter condition into the join clause or add an index to reduce join input",
	}}
}

func checkMaterializeHighLoops(v graph.Visit, ctx *PlanContext) []Finding {
	node := v.Node
	if node.NodeType != "Materialize" || node.ActualLoops < MaterializeWarningLoops {
		return nil
	}

	level := severity.Medium
	if node.ActualLoops > MaterializeCriticalLoops {
		level = severity.High
	}

	return []Finding{{
		Severity: level,
		NodeType: node.NodeType,
		Relation: node.RelationName,
		Description: fmt.Sprintf("Materialize scanned %d times (%.1fms total, %.0f rows per scan)",
			node.ActualLoops, node.ActualTotalTime*float64(node.ActualLoops), node.ActualRows),
		Suggestion: "Planner couldn't find a better strategy; consider restructuring the query to use a Hash Join or CTE",
	}}
}

func checkRedundantSort(v graph.Visit, ctx *PlanContext) []Finding {
	node := v.Node
	// multi-column sorts are harder to verify as redundant
	if node.NodeType != "Sort" || len(node.Plans) == 0 || len(node.SortKey) != 1 {
		return nil
	}

	child := &node.Plans[0]
	if !isIndexScan(child) || child.IndexName == "" {
		return nil
	}

	sortCol := extractColumnFromSortKey(node.SortKey[0])
	if sortCol == "" {
		return nil
	}

	for _, ic := range ExtractConditionColumns(child.IndexCond) {
		if strings.EqualFold(sortCol, ic) {
			return []Finding{{
				Severity: severity.Low,
				NodeType: node.NodeType,
				Relation: child.RelationName,
				Description: fmt.Sprintf("Sort on %s may be redundant: child %s using %s already provides order on %s",
					sortCol, child.NodeType, child.IndexName, sortCol),
				Suggestion: "Verify index column order matches sort requirements; PG may be able to skip this sort with correct index ordering",
			}}
		}
	}
	return nil
}

func checkIndexScanLowSelectivity(v graph.Visit, ctx *PlanContext) []Finding {
	node := v.Node
	if !isIndexScan(node) || node.ActualRows < MinRowsForLowSelectivity {
		return nil
	}
	if node.SharedReadBlocks < MinReadBlocksForLowSelect {
		return nil
	}
	// filter removal is reported by checkIndexScanFilterInefficiency
	if node.Filter != "" && node.RowsRemovedByFilter > 0 {
		return nil
	}

	totalBlocks := node.SharedHitBlocks + node.SharedReadBlocks
	readPct := float64(node.SharedReadBlocks) / float64(totalBlocks) * 100
	if readPct < ReadBlocksCriticalPct {
		return nil
	}

	return []Finding{{
		Severity: severity.Low,
		NodeType: node.NodeType,
		Relation: node.RelationName,
		Description: fmt.Sprintf("%s on %s using %s returned %.0f rows reading %d blocks (%d%% from disk)",
			node.NodeType, node.RelationName, node.IndexName, node.ActualRows, totalBlocks, int(readPct)),
		Suggestion: "Index has low selectivity for this query; a Seq Scan may be cheaper, or the query may benefit from a more selective condition",
	}}
}

// checkEstimateMismatch flags planner row estimates that are far from the
// measured rows, using the same ratio buckets as the rows badge.
func checkEstimateMismatch(v graph.Visit, ctx *PlanContext) []Finding {
	node := v.Node
	if node.ActualLoops == 0 {
		return nil
	}
	planned := float64(node.PlanRows)
	if max(planned, node.ActualRows) < MinRowsForEstimateCheck {
		return nil
	}

	level := severity.ClassifyRowsAccuracy(planned, node.ActualRows)
	if !level.Elevated() {
		return nil
	}

	direction := "underestimated"
	if node.ActualRows < planned {
		direction = "overestimated"
	}

	suggestion := "Run ANALYZE on the tables involved or raise the statistics target for the filtered columns"
	if node.RelationName != "" {
		suggestion = fmt.Sprintf("Run ANALYZE on %s or raise the statistics target for the filtered columns", node.RelationName)
	} else if name := node.CTEName; name != "" {
		if _, ok := ctx.CTEs[name]; ok {
			suggestion = fmt.Sprintf("Estimate for CTE %s is off; run ANALYZE on its source tables", name)
		}
	}

	return []Finding{{
		Severity:    level,
		NodeType:    node.NodeType,
		Relation:    node.RelationName,
		Description: fmt.Sprintf("Row estimate %s on %s (planned %.0f, actual %.0f)", direction, nodeLabel(node), planned, node.ActualRows),
		Suggestion:  suggestion,
	}}
}

func isIndexScan(node *plan.PlanNode) bool {
	return node.NodeType == "Index Scan" || node.NodeType == "Index Only Scan"
}

func isJoinNode(node *plan.PlanNode) bool {
	switch node.NodeType {
	case "Hash Join", "Merge Join", "Nested Loop":
		return true
	}
	return false
}

func rowsOf(node *plan.PlanNode) float64 {
	if node.ActualRows > 0 {
		return node.ActualRows
	}
	return float64(node.PlanRows)
}

func siblingOf(v graph.Visit) (*plan.PlanNode, bool) {
	for i := range v.Parent.Plans {
		if i != v.Index {
			return &v.Parent.Plans[i], true
		}
	}
	return nil, false
}

func findCTEName(node *plan.PlanNode) string {
	if node.CTEName != "" {
		return node.CTEName
	}
	for i := range node.Plans {
		if name := findCTEName(&node.Plans[i]); name != "" {
			return name
		}
	}
	return ""
}

func joinCondition(join *plan.PlanNode) string {
	if join.HashCond != "" {
		return join.HashCond
	}
	return join.MergeCond
}

func joinColumnFor(join *plan.PlanNode, relation, alias string) string {
	cond := joinCondition(join)
	if cond == "" {
		return ""
	}
	condLower := strings.ToLower(cond)
	cols := ExtractConditionColumns(cond)
	for _, prefix := range []string{alias, relation} {
		if prefix == "" {
			continue
		}
		for _, col := range cols {
			if strings.Contains(condLower, strings.ToLower(prefix+"."+col)) {
				return col
			}
		}
	}
	return ""
}

func nodeLabel(node *plan.PlanNode) string {
	if node.RelationName == "" {
		return node.NodeType
	}
	if node.Alias != "" && node.Alias != node.RelationName {
		return fmt.Sprintf("%s on %s (%s)", node.NodeType, node.RelationName, node.Alias)
	}
	return fmt.Sprintf("%s on %s", node.NodeType, node.RelationName)
}

func innerNodeLabel(node *plan.PlanNode) string {
	label := node.NodeType
	if node.RelationName != "" {
		label += " on " + node.RelationName
	}
	if node.IndexName != "" {
		label += " using " + node.IndexName
	}
	return label
}

func extractColumnFromSortKey(sortKey string) string {
	s := strings.TrimSpace(sortKey)
	for _, suffix := range []string{" NULLS FIRST", " NULLS LAST", " DESC", " ASC"} {
		s = strings.TrimSuffix(s, suffix)
	}
	s = strings.TrimSpace(s)
	if idx := strings.LastIndex(s, "."); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
