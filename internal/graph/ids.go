package graph

import "strconv"

// idAssigner hands out node ids in visit order. One is created per traversal
// so concurrent flattens never share a sequence.
type idAssigner struct {
	next int
}

func newIDAssigner() *idAssigner {
	return &idAssigner{}
}

func (a *idAssigner) assign() string {
	id := NodeID(a.next)
	a.next++
	return id
}

func NodeID(n int) string {
	return "node-" + strconv.Itoa(n)
}

func EdgeID(source, target string) string {
	return "edge-" + source + "-" + target
}
