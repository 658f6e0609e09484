package advisor

import (
	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/severity"
)

type Bottleneck struct {
	NodeType string `json:"node_type"`
	Issue    string `json:"issue"`
	Impact   string `json:"impact"`
}

type IndexRecommendation struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Reason  string   `json:"reason"`
}

type QueryRewrite struct {
	Suggestion string `json:"suggestion"`
	Benefit    string `json:"benefit"`
}

// NodeAdvice is the per-node part of an analysis. Severity is kept as the
// text the source produced and only parsed when converted to diagnostics.
type NodeAdvice struct {
	Advice   string `json:"advice"`
	Severity string `json:"severity"`
}

type Analysis struct {
	OverallAssessment    string                `json:"overall_assessment"`
	Bottlenecks          []Bottleneck          `json:"bottlenecks"`
	IndexRecommendations []IndexRecommendation `json:"index_recommendations"`
	QueryRewrites        []QueryRewrite        `json:"query_rewrites"`
	NodeAnalysis         map[string]NodeAdvice `json:"node_analysis"`
}

// Diagnostics converts the node analysis into an overlay for the graph with
// the given fingerprint. Severities that do not parse become Unclassified,
// which keeps the advice but leaves the node unstyled.
func (a *Analysis) Diagnostics(fingerprint string) graph.Diagnostics {
	d := graph.Diagnostics{
		Fingerprint: fingerprint,
		Nodes:       make(graph.DiagnosticMap, len(a.NodeAnalysis)),
	}
	for id, na := range a.NodeAnalysis {
		level, err := severity.ParseLevel(na.Severity)
		if err != nil {
			level = severity.Unclassified
		}
		d.Nodes[id] = graph.Diagnostic{Severity: level, Advice: na.Advice}
	}
	return d
}

func emptyAnalysis(assessment string) *Analysis {
	return &Analysis{
		OverallAssessment:    assessment,
		Bottlenecks:          []Bottleneck{},
		IndexRecommendations: []IndexRecommendation{},
		QueryRewrites:        []QueryRewrite{},
		NodeAnalysis:         map[string]NodeAdvice{},
	}
}

type MetricsComparison struct {
	CostDiff string `json:"cost_diff"`
	TimeDiff string `json:"time_diff,omitempty"`
}

type Comparison struct {
	Summary           string            `json:"summary"`
	MetricsComparison MetricsComparison `json:"metrics_comparison"`
	StructuralChanges []string          `json:"structural_changes"`
	Recommendation    string            `json:"recommendation"`
}

// ChatMessage is one earlier turn of a conversation. Any role other than
// "user" is treated as the assistant.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
