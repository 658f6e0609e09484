package graph

import (
	"strconv"

	"github.com/jacobarthurs/pgplanviz/internal/plan"
)

// Visit describes one plan node as seen by Walk.
type Visit struct {
	ID       string
	Path     string
	Depth    int
	Index    int // position within the parent's Plans, -1 for the root
	ParentID string
	Node     *plan.PlanNode
	Parent   *plan.PlanNode
}

type frame struct {
	node     *plan.PlanNode
	parent   *plan.PlanNode
	parentID string
	path     string
	depth    int
	index    int
}

// Walk visits root and its descendants in pre-order, children left to right,
// assigning the same ids Flatten does. Anything that keys data by node id
// should use Walk so both sides agree.
func Walk(root *plan.PlanNode, fn func(Visit)) {
	if root == nil {
		return
	}

	ids := newIDAssigner()
	stack := []frame{{node: root, path: "0", index: -1}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		v := Visit{
			ID:       ids.assign(),
			Path:     f.path,
			Depth:    f.depth,
			Index:    f.index,
			ParentID: f.parentID,
			Node:     f.node,
			Parent:   f.parent,
		}
		fn(v)

		// reverse push keeps the leftmost child on top
		for i := len(f.node.Plans) - 1; i >= 0; i-- {
			stack = append(stack, frame{
				node:     &f.node.Plans[i],
				parent:   f.node,
				parentID: v.ID,
				path:     f.path + "." + strconv.Itoa(i),
				depth:    f.depth + 1,
				index:    i,
			})
		}
	}
}
