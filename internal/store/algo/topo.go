package algo

// DepEdge is a minimal (source, target) view of a dependency edge, enough
// for Kahn's algorithm. TopologicalOrder does not read InsertionOrder: ties
// break by the node insertion order passed to it separately, per spec.md §5
// "topological_order() is stable: ties resolved by insertion order."
type DepEdge struct {
	Source         string
	Target         string
	InsertionOrder int
}

// TopologicalOrder runs Kahn's algorithm over dependency edges: nodes
// without outgoing dependency edges come first, per spec.md §4.1
// "topological_order()". allNodeIDs must list every node id, including
// ones with no dependency edges at all, each tagged with its insertion
// order for tie-breaking.
func TopologicalOrder(allNodeIDs []string, insertionOrder map[string]int, edges []DepEdge) []string {
	outDegree := make(map[string]int, len(allNodeIDs))
	// dependents[t] = sources that depend on t, i.e. edges t must be processed
	// before removing (since "no outgoing dependency edges first" means we
	// peel from the bottom of the dependency chain upward).
	dependents := make(map[string][]string)

	for _, id := range allNodeIDs {
		outDegree[id] = 0
	}
	for _, e := range edges {
		outDegree[e.Source]++
		dependents[e.Target] = append(dependents[e.Target], e.Source)
	}

	ready := make([]string, 0)
	for _, id := range allNodeIDs {
		if outDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sortByInsertion(ready, insertionOrder)

	order := make([]string, 0, len(allNodeIDs))
	visited := make(map[string]bool, len(allNodeIDs))

	for len(ready) > 0 {
		// Pop the lowest-insertion-order ready node.
		next := ready[0]
		ready = ready[1:]
		if visited[next] {
			continue
		}
		visited[next] = true
		order = append(order, next)

		var newlyReady []string
		for _, dependent := range dependents[next] {
			outDegree[dependent]--
			if outDegree[dependent] == 0 {
				newlyReady = append(newlyReady, dependent)
			}
		}
		sortByInsertion(newlyReady, insertionOrder)
		ready = mergeByInsertion(ready, newlyReady, insertionOrder)
	}

	// Any remaining nodes are part of a dependency cycle (spec.md §3
	// invariant 4 allows cycles in dependency edges); append them in
	// insertion order so the function always returns every node.
	var remaining []string
	for _, id := range allNodeIDs {
		if !visited[id] {
			remaining = append(remaining, id)
		}
	}
	sortByInsertion(remaining, insertionOrder)
	order = append(order, remaining...)

	return order
}

func sortByInsertion(ids []string, insertionOrder map[string]int) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && insertionOrder[ids[j-1]] > insertionOrder[ids[j]]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

func mergeByInsertion(a, b []string, insertionOrder map[string]int) []string {
	if len(b) == 0 {
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if insertionOrder[a[i]] <= insertionOrder[b[j]] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
