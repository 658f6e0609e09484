package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/awalterschulze/gographviz"
	"github.com/jacobarthurs/pgplanviz/internal/graph"
)

const dotGraphName = "plan"

// RenderDOT writes g as a Graphviz digraph: one box per node, colored with the
// node's style, and one edge per parent->child edge.
//
// Every node carries its layout position as a pinned pos attribute in points,
// with y pointing up as Graphviz expects. dot ignores pos and lays the tree
// out itself; "neato -n" keeps the computed layout.
func RenderDOT(w io.Writer, g graph.Graph) error {
	dot, err := toDOT(g)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, dot.String())
	return err
}

func toDOT(g graph.Graph) (*gographviz.Graph, error) {
	dot := gographviz.NewGraph()
	if err := dot.SetName(dotGraphName); err != nil {
		return nil, err
	}
	if err := dot.SetDir(true); err != nil {
		return nil, err
	}
	if err := dot.AddAttr(dotGraphName, "rankdir", "TB"); err != nil {
		return nil, err
	}

	for _, n := range g.Nodes {
		attrs := map[string]string{
			"shape":     "box",
			"style":     strconv.Quote("rounded,filled"),
			"label":     strconv.Quote(dotLabel(n)),
			"fillcolor": strconv.Quote(n.Style.Fill),
			"color":     strconv.Quote(n.Style.Border),
			"pos":       strconv.Quote(dotPos(n.Position)),
		}
		if n.Advice != "" {
			attrs["tooltip"] = strconv.Quote(n.Advice)
		}
		if err := dot.AddNode(dotGraphName, strconv.Quote(n.ID), attrs); err != nil {
			return nil, fmt.Errorf("adding node %s: %w", n.ID, err)
		}
	}

	for _, e := range g.Edges {
		attrs := map[string]string{}
		if e.Color != "" {
			attrs["color"] = strconv.Quote(e.Color)
		}
		if err := dot.AddEdge(strconv.Quote(e.Source), strconv.Quote(e.Target), true, attrs); err != nil {
			return nil, fmt.Errorf("adding edge %s: %w", e.ID, err)
		}
	}
	return dot, nil
}

func dotPos(p graph.Point) string {
	x := strconv.FormatFloat(p.X, 'f', -1, 64)
	y := strconv.FormatFloat(0-p.Y, 'f', -1, 64)
	return x + "," + y + "!"
}

func dotLabel(n graph.Node) string {
	label := n.Label
	if rel, ok := n.Attributes["Relation Name"].(string); ok && rel != "" {
		label += "\n" + rel
	}
	if b := n.Badges.Cost; b != nil {
		label += "\ncost " + b.Display
	}
	if b := n.Badges.Time; b != nil {
		label += "\ntime " + b.Display
	}
	return label
}
