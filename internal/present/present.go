// Package present assembles what a renderer shows: positioned graphs with
// their diagnostics, and pairs of graphs with a comparison.
package present

import (
	"context"

	"github.com/jacobarthurs/pgplanviz/internal/advisor"
	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/jacobarthurs/pgplanviz/internal/present")

// DiagnosticSource produces per-node advice for a plan.
type DiagnosticSource interface {
	AnalyzePlan(ctx context.Context, in plan.Input) (*advisor.Analysis, error)
}

// ComparisonSource produces a summary of two plans. The presenter treats the
// result as opaque.
type ComparisonSource interface {
	ComparePlans(ctx context.Context, a, b plan.Input) (*advisor.Comparison, error)
}

// AnalysisView is a single annotated graph. When the diagnostic source
// fails, Graph is still populated and Err says why it carries no advice.
type AnalysisView struct {
	Graph    graph.Graph       `json:"graph"`
	Analysis *advisor.Analysis `json:"analysis,omitempty"`
	Error    string            `json:"error,omitempty"`

	Err error `json:"-"`
}

// Analyze builds the graph for in and overlays the source's diagnostics. A
// nil source, or an input without a plan, yields the bare graph.
func Analyze(ctx context.Context, in plan.Input, source DiagnosticSource, opts graph.Options) AnalysisView {
	ctx, span := tracer.Start(ctx, "present.Analyze")
	defer span.End()

	root := in.Explain.Root()
	g := graph.Build(root, opts)
	span.SetAttributes(attribute.Int("plan.nodes", len(g.Nodes)))

	view := AnalysisView{Graph: g}
	if source == nil || root == nil {
		return view
	}

	analysis, err := source.AnalyzePlan(ctx, in)
	if err != nil {
		view.setErr(span, err)
		return view
	}
	view.Analysis = analysis

	annotated, err := graph.Annotate(g, analysis.Diagnostics(g.Fingerprint))
	if err != nil {
		view.setErr(span, err)
	}
	view.Graph = annotated
	return view
}

func (v *AnalysisView) setErr(span trace.Span, err error) {
	v.Err = err
	v.Error = err.Error()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
