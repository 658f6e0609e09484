package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/jacobarthurs/pgplanviz/internal/plan"
)

// Fingerprint hashes the tree shape: operator labels and child counts in
// pre-order. Two trees with the same fingerprint get the same node ids for
// the same operators.
func Fingerprint(root *plan.PlanNode) string {
	if root == nil {
		return ""
	}

	h := sha256.New()
	Walk(root, func(v Visit) {
		h.Write([]byte(v.Node.NodeType))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(len(v.Node.Plans))))
		h.Write([]byte{0})
	})
	return hex.EncodeToString(h.Sum(nil))[:16]
}
