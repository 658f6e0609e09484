package graph

import (
	"github.com/jacobarthurs/pgplanviz/internal/plan"
	"github.com/jacobarthurs/pgplanviz/internal/severity"
)

// Options bundles the presentation settings of a build.
type Options struct {
	Layout     Layout              `yaml:"layout" json:"layout" mapstructure:"layout"`
	Thresholds severity.Thresholds `yaml:"thresholds" json:"thresholds" mapstructure:"thresholds"`
}

func DefaultOptions() Options {
	return Options{Layout: DefaultLayout(), Thresholds: severity.DefaultThresholds()}
}

// Build flattens, positions and badges a plan. Diagnostics are merged
// separately since they usually arrive later.
func Build(root *plan.PlanNode, opts Options) Graph {
	return Badges(Position(Flatten(root), opts.Layout), opts.Thresholds)
}
