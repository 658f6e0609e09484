package analyzer

import (
	"regexp"
	"strings"

	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
)

type PlanContext struct {
	Nodes []graph.Visit
	// CTE name -> node defining it
	CTEs map[string]*plan.PlanNode
}

func BuildContext(root *plan.PlanNode) *PlanContext {
	ctx := &PlanContext{CTEs: make(map[string]*plan.PlanNode)}
	graph.Walk(root, func(v graph.Visit) {
		ctx.Nodes = append(ctx.Nodes, v)
		// SubplanName uses the format "CTE <name>" for CTE definitions
		if name, ok := strings.CutPrefix(v.Node.SubplanName, "CTE "); ok {
			ctx.CTEs[name] = v.Node
		}
	})
	return ctx
}

var (
	stringLiteralRe = regexp.MustCompile(`'[^']*'`)
	columnRefRe     = regexp.MustCompile(`\b(\w+)\.(\w+)\b`)
	castColRe       = regexp.MustCompile(`\(([a-zA-Z_]\w*)\)::`)
	bareColRe       = regexp.MustCompile(`\(([a-zA-Z_]\w*)\s*(?:=|<>|!=|<=|>=|<|>|IS|~~)`)
)

// ExtractConditionColumns returns the column names referenced by a condition,
// in order of first appearance, ignoring string literals.
func ExtractConditionColumns(cond string) []string {
	if cond == "" {
		return nil
	}
	cleaned := stringLiteralRe.ReplaceAllString(cond, "")

	seen := make(map[string]bool)
	var cols []string
	add := func(col string) {
		if !seen[col] {
			seen[col] = true
			cols = append(cols, col)
		}
	}

	for _, m := range columnRefRe.FindAllStringSubmatch(cleaned, -1) {
		add(m[2])
	}
	for _, m := range castColRe.FindAllStringSubmatch(cleaned, -1) {
		add(m[1])
	}
	for _, m := range bareColRe.FindAllStringSubmatch(cleaned, -1) {
		add(m[1])
	}
	return cols
}

// ConditionColumnsNotIn lists filter columns the index condition does not cover.
func ConditionColumnsNotIn(filter, indexCond string) []string {
	indexCols := make(map[string]bool)
	for _, col := range ExtractConditionColumns(indexCond) {
		indexCols[col] = true
	}

	var missing []string
	for _, col := range ExtractConditionColumns(filter) {
		if !indexCols[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

var literalRe = regexp.MustCompile(`(?:^|[^<>!])=\s*'((?:[^']|'')*)'`)

// ExtractLiteralValue returns the string literal of the first equality in cond.
func ExtractLiteralValue(cond string) string {
	m := literalRe.FindStringSubmatch(cond)
	if m == nil {
		return ""
	}
	return strings.ReplaceAll(m[1], "''", "'")
}
