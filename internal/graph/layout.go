package graph

const (
	DefaultRowHeight   = 220.0
	DefaultColumnWidth = 400.0
)

// Layout holds the spacing used by Position.
//
// The default layout is width-aware: siblings are spread by the leaf width of
// their widest subtree. Compact selects the plain unit-step tree layout, where
// child i of k sits at parentX + (i - (k-1)/2) * ColumnWidth and every row is
// RowHeight below its parent.
type Layout struct {
	RowHeight   float64 `yaml:"row_height" json:"row_height" mapstructure:"row_height"`
	ColumnWidth float64 `yaml:"column_width" json:"column_width" mapstructure:"column_width"`
	// Compact spaces siblings one column apart regardless of subtree width.
	// Wide subtrees may then overlap their neighbours.
	Compact bool `yaml:"compact" json:"compact" mapstructure:"compact"`
}

func DefaultLayout() Layout {
	return Layout{RowHeight: DefaultRowHeight, ColumnWidth: DefaultColumnWidth}
}

func (l Layout) WithDefaults() Layout {
	if !(l.RowHeight > 0) {
		l.RowHeight = DefaultRowHeight
	}
	if !(l.ColumnWidth > 0) {
		l.ColumnWidth = DefaultColumnWidth
	}
	return l
}

// Position places every node on the row of its depth and spreads the children
// of each node symmetrically around the parent's slot. Sibling spacing is the
// width, in leaves, of the widest sibling subtree, so subtrees never share a
// column. The input graph is not modified.
func Position(g Graph, opts Layout) Graph {
	opts = opts.WithDefaults()
	out := g.Clone()
	if len(out.Nodes) == 0 {
		return out
	}

	children := out.Children()
	order := topDown(out, children)

	width := make([]float64, len(out.Nodes))
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		if len(children[n]) == 0 {
			width[n] = 1
			continue
		}
		width[n] = float64(len(children[n])) * widest(children[n], width)
	}

	slot := make([]float64, len(out.Nodes))
	for _, n := range order {
		k := len(children[n])
		if k == 0 {
			continue
		}
		step := 1.0
		if !opts.Compact {
			step = widest(children[n], width)
		}
		for i, c := range children[n] {
			slot[c] = slot[n] + (float64(i)-float64(k-1)/2)*step
		}
	}

	for i := range out.Nodes {
		n := &out.Nodes[i]
		n.Slot = slot[i]
		n.Position = Point{
			X: slot[i] * opts.ColumnWidth,
			Y: float64(n.Depth) * opts.RowHeight,
		}
	}
	return out
}

func widest(nodes []int, width []float64) float64 {
	w := 0.0
	for _, c := range nodes {
		w = max(w, width[c])
	}
	return w
}

// topDown orders node indexes so every parent precedes its children. Nodes
// without an incoming edge are roots and start at slot 0.
func topDown(g Graph, children [][]int) []int {
	hasParent := make([]bool, len(g.Nodes))
	for _, cs := range children {
		for _, c := range cs {
			hasParent[c] = true
		}
	}

	order := make([]int, 0, len(g.Nodes))
	for i := range g.Nodes {
		if !hasParent[i] {
			order = append(order, i)
		}
	}
	for head := 0; head < len(order); head++ {
		order = append(order, children[order[head]]...)
	}
	return order
}
