package analyzer

import "github.com/jacobarthurs/pgplanviz/internal/severity"

// IndexSuggestion is the structured part of a finding that recommends an index.
type IndexSuggestion struct {
	Table   string
	Columns []string
}

type Finding struct {
	NodeID      string
	Path        string
	Severity    severity.Level
	NodeType    string
	Relation    string
	Description string
	Suggestion  string
	Index       *IndexSuggestion
}

type AnalysisResult struct {
	Findings      []Finding
	TotalCost     float64
	ExecutionTime float64
	PlanningTime  float64
	Fingerprint   string
}

// Count returns how many findings have the given severity.
func (r AnalysisResult) Count(level severity.Level) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == level {
			n++
		}
	}
	return n
}
