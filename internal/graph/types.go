package graph

import (
	"fmt"
	"strings"

	"github.com/jacobarthurs/pgplanviz/internal/severity"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Style struct {
	Fill    string `json:"fill"`
	Border  string `json:"border"`
	Minimap string `json:"minimap"`
}

// Hint is the structural classification of an operator, derived from its
// label alone.
type Hint int

const (
	HintNeutral Hint = iota
	HintSeqScan
	HintIndex
)

func hintFor(label string) Hint {
	switch {
	case strings.Contains(label, "Seq Scan"):
		return HintSeqScan
	case strings.Contains(label, "Index"):
		return HintIndex
	default:
		return HintNeutral
	}
}

func (h Hint) String() string {
	switch h {
	case HintSeqScan:
		return "seq_scan"
	case HintIndex:
		return "index"
	default:
		return "neutral"
	}
}

func (h Hint) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hint) UnmarshalText(text []byte) error {
	switch string(text) {
	case "seq_scan":
		*h = HintSeqScan
	case "index":
		*h = HintIndex
	case "neutral", "":
		*h = HintNeutral
	default:
		return fmt.Errorf("unknown structural hint %q", text)
	}
	return nil
}

// Style is the default coloring for the hint, used whenever no elevated
// severity overrides it.
func (h Hint) Style() Style {
	switch h {
	case HintSeqScan:
		return Style{Fill: "#fef3c7", Border: "#f59e0b", Minimap: "#fde047"}
	case HintIndex:
		return Style{Fill: "#d1fae5", Border: "#10b981", Minimap: "#6ee7b7"}
	default:
		return Style{Fill: "#ffffff", Border: "#d1d5db", Minimap: "#d1d5db"}
	}
}

func styleFor(h Hint, level severity.Level) Style {
	if level.Elevated() {
		return Style{Fill: level.Fill(), Border: level.Border(), Minimap: level.Minimap()}
	}
	return h.Style()
}

type Badge struct {
	Value   float64        `json:"value"`
	Display string         `json:"display"`
	Level   severity.Level `json:"level"`
}

// NodeBadges holds the threshold badges of a node. A nil badge means the
// metric could not be classified and nothing should be drawn.
type NodeBadges struct {
	Time *Badge `json:"time,omitempty"`
	Cost *Badge `json:"cost,omitempty"`
	Rows *Badge `json:"rows,omitempty"`
}

type Node struct {
	ID         string         `json:"id"`
	Path       string         `json:"path"`
	ParentID   string         `json:"parent_id,omitempty"`
	Depth      int            `json:"depth"`
	Slot       float64        `json:"slot"`
	Label      string         `json:"label"`
	Attributes map[string]any `json:"attributes"`
	Position   Point          `json:"position"`
	Severity   severity.Level `json:"severity"`
	Advice     string         `json:"advice,omitempty"`
	Hint       Hint           `json:"hint"`
	Style      Style          `json:"style"`
	Badges     NodeBadges     `json:"badges"`
}

type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Color  string `json:"color"`
}

// Graph is the flattened form of one plan tree. Fingerprint identifies the
// tree shape the node ids were assigned against.
type Graph struct {
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
	Fingerprint string `json:"fingerprint"`
}

// Clone copies the node and edge slices. Attribute maps are shared; nothing
// in this package writes to them after Flatten.
func (g Graph) Clone() Graph {
	out := Graph{
		Nodes:       make([]Node, len(g.Nodes)),
		Edges:       make([]Edge, len(g.Edges)),
		Fingerprint: g.Fingerprint,
	}
	copy(out.Nodes, g.Nodes)
	copy(out.Edges, g.Edges)
	return out
}

// Node returns the node with the given id.
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Children returns, per node index, the indexes of its children in edge order.
func (g Graph) Children() [][]int {
	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		index[n.ID] = i
	}
	children := make([][]int, len(g.Nodes))
	for _, e := range g.Edges {
		p, ok := index[e.Source]
		if !ok {
			continue
		}
		c, ok := index[e.Target]
		if !ok {
			continue
		}
		children[p] = append(children[p], c)
	}
	return children
}
