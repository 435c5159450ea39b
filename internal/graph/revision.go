package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Revision computes a short, deterministic digest over a node/edge set, such
// that two structurally identical graphs produce identical revisions
// (spec.md §3 invariant 6). Nodes and edges are sorted before hashing so
// that insertion order never affects the digest.
func Revision(nodes []Node, edges []Edge) string {
	sortedNodes := append([]Node(nil), nodes...)
	sort.Slice(sortedNodes, func(i, j int) bool { return sortedNodes[i].ID < sortedNodes[j].ID })

	sortedEdges := append([]Edge(nil), edges...)
	sort.Slice(sortedEdges, func(i, j int) bool {
		if sortedEdges[i].Source != sortedEdges[j].Source {
			return sortedEdges[i].Source < sortedEdges[j].Source
		}
		if sortedEdges[i].Target != sortedEdges[j].Target {
			return sortedEdges[i].Target < sortedEdges[j].Target
		}
		return sortedEdges[i].Type < sortedEdges[j].Type
	})

	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(sortedNodes)
	_ = enc.Encode(sortedEdges)
	return hex.EncodeToString(h.Sum(nil))[:12]
}
