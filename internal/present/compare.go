package present

import (
	"context"

	"github.com/jacobarthurs/pgplanviz/internal/advisor"
	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// ComparisonView holds two independently built graphs and whatever the
// comparison source said about them.
type ComparisonView struct {
	Left            graph.Graph         `json:"left"`
	Right           graph.Graph         `json:"right"`
	Comparison      *advisor.Comparison `json:"comparison,omitempty"`
	ComparisonError string              `json:"comparison_error,omitempty"`

	Err error `json:"-"`
}

// Compare builds both graphs and asks the source concurrently. Each graph
// gets its own id space. A source failure is recorded on the view and never
// drops the graphs. A nil source, or a side without a plan, skips the
// comparison.
func Compare(ctx context.Context, left, right plan.Input, source ComparisonSource, opts graph.Options) ComparisonView {
	ctx, span := tracer.Start(ctx, "present.Compare")
	defer span.End()

	var view ComparisonView
	var g errgroup.Group

	leftRoot, rightRoot := left.Explain.Root(), right.Explain.Root()
	g.Go(func() error {
		view.Left = graph.Build(leftRoot, opts)
		return nil
	})
	g.Go(func() error {
		view.Right = graph.Build(rightRoot, opts)
		return nil
	})
	if source != nil && leftRoot != nil && rightRoot != nil {
		g.Go(func() error {
			c, err := source.ComparePlans(ctx, left, right)
			if err != nil {
				view.Err = err
				view.ComparisonError = err.Error()
				return nil
			}
			view.Comparison = c
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(
		attribute.Int("left.nodes", len(view.Left.Nodes)),
		attribute.Int("right.nodes", len(view.Right.Nodes)),
	)
	if view.Err != nil {
		span.RecordError(view.Err)
		span.SetStatus(codes.Error, view.ComparisonError)
	}
	return view
}
