package store

import (
	"context"

	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/store/algo"
)

// TopologicalOrder runs Kahn's algorithm over dependency edges, per spec.md
// §4.1. Nodes with no outgoing dependency edges come first; ties break by
// insertion order (spec.md §5).
func (s *MemStore) TopologicalOrder(ctx context.Context) ([]graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}

	var edges []algo.DepEdge
	for _, out := range s.outDependency {
		for _, e := range out {
			edges = append(edges, algo.DepEdge{Source: e.Source, Target: e.Target})
		}
	}

	order := algo.TopologicalOrder(ids, s.insertionOrder, edges)
	out := make([]graph.Node, 0, len(order))
	for _, id := range order {
		out = append(out, s.nodes[id])
	}
	return out, nil
}

// Stats returns cheap per-variant/per-edge-type counts (spec.md §4.1 "stats").
func (s *MemStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for _, n := range s.nodes {
		if n.Variant == graph.HighLevel {
			st.HighLevelNodes++
		} else {
			st.LowLevelNodes++
		}
	}
	for _, edges := range s.outFunctional {
		st.FunctionalEdges += len(edges)
	}
	for _, edges := range s.outDependency {
		st.DependencyEdges += len(edges)
	}
	for _, edges := range s.outDataFlow {
		st.DataFlowEdges += len(edges)
	}
	return st, nil
}
