package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/jacobarthurs/pgplanviz/internal/analyzer"
	"github.com/jacobarthurs/pgplanviz/internal/comparator"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
	"github.com/jacobarthurs/pgplanviz/internal/severity"
)

// Local answers from the rule-based analyzer and the structural comparator.
// It never touches the network.
type Local struct {
	comparator *comparator.Comparator
}

func NewLocal() *Local {
	return &Local{comparator: comparator.New()}
}

func (l *Local) AnalyzePlan(ctx context.Context, in plan.Input) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := analyzer.Analyze(in.Explain)
	a := emptyAnalysis(assessment(result))

	seenIndex := make(map[string]bool)
	for _, f := range result.Findings {
		if f.Severity.Elevated() {
			a.Bottlenecks = append(a.Bottlenecks, Bottleneck{
				NodeType: f.NodeType,
				Issue:    f.Description,
				Impact:   f.Severity.String(),
			})
		}

		switch {
		case f.Index != nil:
			key := f.Index.Table + "(" + strings.Join(f.Index.Columns, ",") + ")"
			if !seenIndex[key] {
				seenIndex[key] = true
				a.IndexRecommendations = append(a.IndexRecommendations, IndexRecommendation{
					Table:   f.Index.Table,
					Columns: f.Index.Columns,
					Reason:  f.Description,
				})
			}
		case f.Suggestion != "":
			a.QueryRewrites = append(a.QueryRewrites, QueryRewrite{
				Suggestion: f.Suggestion,
				Benefit:    f.Description,
			})
		}

		// findings are sorted by severity, so the first one per node wins
		advice := f.Description
		if f.Suggestion != "" {
			advice += "\n" + f.Suggestion
		}
		if existing, ok := a.NodeAnalysis[f.NodeID]; ok {
			existing.Advice += "\n\n" + advice
			a.NodeAnalysis[f.NodeID] = existing
			continue
		}
		a.NodeAnalysis[f.NodeID] = NodeAdvice{Advice: advice, Severity: f.Severity.String()}
	}

	return a, nil
}

func assessment(r analyzer.AnalysisResult) string {
	if len(r.Findings) == 0 {
		return fmt.Sprintf("No issues found. Total cost %.2f.", r.TotalCost)
	}
	s := fmt.Sprintf("%d findings (%d high, %d medium, %d low). Total cost %.2f",
		len(r.Findings), r.Count(severity.High), r.Count(severity.Medium), r.Count(severity.Low), r.TotalCost)
	if r.ExecutionTime > 0 {
		s += fmt.Sprintf(", execution time %.2fms", r.ExecutionTime)
	}
	return s + "."
}

func (l *Local) ComparePlans(ctx context.Context, a, b plan.Input) (*Comparison, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := l.comparator.Compare(a.Explain, b.Explain)
	s := result.Summary

	out := &Comparison{
		Summary: s.Verdict,
		MetricsComparison: MetricsComparison{
			CostDiff: fmt.Sprintf("%.2f -> %.2f (%+.1f%%, %s)", s.OldTotalCost, s.NewTotalCost, s.CostPct, s.CostDir),
		},
		StructuralChanges: result.StructuralChanges(),
		Recommendation:    recommendation(s),
	}
	if s.OldExecutionTime > 0 && s.NewExecutionTime > 0 {
		out.MetricsComparison.TimeDiff = fmt.Sprintf("%.2fms -> %.2fms (%+.1f%%, %s)",
			s.OldExecutionTime, s.NewExecutionTime, s.TimePct, s.TimeDir)
	}
	if out.StructuralChanges == nil {
		out.StructuralChanges = []string{}
	}
	return out, nil
}

// recommendation follows the same precedence as the verdict: measured time
// when both sides have it, estimated cost otherwise.
func recommendation(s comparator.Summary) string {
	dir := s.CostDir
	if s.OldExecutionTime > 0 && s.NewExecutionTime > 0 {
		dir = s.TimeDir
	}
	switch dir {
	case comparator.Improved:
		return "Prefer plan B."
	case comparator.Regressed:
		return "Prefer plan A."
	default:
		return "Both plans perform about the same."
	}
}

func (l *Local) Chat(context.Context, ChatRequest) (string, error) {
	return "", ErrChatUnsupported
}
