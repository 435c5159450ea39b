package store

import (
	"context"
	"fmt"

	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/logging"
)

// AddEdge inserts edge, enforcing spec.md §3's structural invariants: both
// endpoints must exist (invariant 2), a node may have at most one functional
// parent (invariant 3), and functional edges may never form a cycle
// (invariant 4). Dependency and data-flow edges have none of those
// restrictions beyond dangling-reference checks.
func (s *MemStore) AddEdge(ctx context.Context, edge graph.Edge) error {
	timer := logging.StartTimer(logging.CategoryStore, "MemStore.AddEdge")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[edge.Source]; !ok {
		return graph.NewStorageError("AddEdge", fmt.Errorf("%w: source %s", graph.ErrDanglingReference, edge.Source))
	}
	if _, ok := s.nodes[edge.Target]; !ok {
		return graph.NewStorageError("AddEdge", fmt.Errorf("%w: target %s", graph.ErrDanglingReference, edge.Target))
	}

	switch edge.Type {
	case graph.Functional:
		if _, hasParent := s.inFunctional[edge.Target]; hasParent {
			return graph.NewStorageError("AddEdge", fmt.Errorf("%w: %s", graph.ErrMultipleParents, edge.Target))
		}
		if s.wouldCreateFunctionalCycleLocked(edge.Source, edge.Target) {
			return graph.NewStorageError("AddEdge", fmt.Errorf("%w: %s -> %s", graph.ErrFunctionalCycle, edge.Source, edge.Target))
		}
		s.outFunctional[edge.Source] = append(s.outFunctional[edge.Source], edge)
		s.inFunctional[edge.Target] = edge
	case graph.Dependency:
		s.outDependency[edge.Source] = append(s.outDependency[edge.Source], edge)
		s.inDependency[edge.Target] = append(s.inDependency[edge.Target], edge)
	case graph.DataFlow:
		s.outDataFlow[edge.Source] = append(s.outDataFlow[edge.Source], edge)
		s.inDataFlow[edge.Target] = append(s.inDataFlow[edge.Target], edge)
	default:
		return graph.NewStorageError("AddEdge", fmt.Errorf("unknown edge type %q", edge.Type))
	}

	return nil
}

// wouldCreateFunctionalCycleLocked reports whether adding source->target as
// a functional edge would create a cycle: true if target is already an
// ancestor of source in the functional forest. Caller holds s.mu.
func (s *MemStore) wouldCreateFunctionalCycleLocked(source, target string) bool {
	cur := source
	for {
		parentEdge, ok := s.inFunctional[cur]
		if !ok {
			return false
		}
		if parentEdge.Source == target {
			return true
		}
		cur = parentEdge.Source
	}
}

// RemoveEdge deletes one edge identified by (source, target, type).
func (s *MemStore) RemoveEdge(ctx context.Context, source, target string, edgeType graph.EdgeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target2 := graph.Edge{Source: source, Target: target, Type: edgeType}

	switch edgeType {
	case graph.Functional:
		if parentEdge, ok := s.inFunctional[target]; ok && parentEdge.Source == source {
			delete(s.inFunctional, target)
			s.outFunctional[source] = removeEdge(s.outFunctional[source], target2)
		}
	case graph.Dependency:
		s.outDependency[source] = removeEdge(s.outDependency[source], target2)
		s.inDependency[target] = removeEdge(s.inDependency[target], target2)
	case graph.DataFlow:
		s.outDataFlow[source] = removeEdge(s.outDataFlow[source], target2)
		s.inDataFlow[target] = removeEdge(s.inDataFlow[target], target2)
	}
	return nil
}

// GetEdges returns every edge matching filter (nil filter = every edge).
func (s *MemStore) GetEdges(ctx context.Context, filter *EdgeFilter) ([]graph.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []graph.Edge
	for _, edges := range s.outFunctional {
		out = append(out, edges...)
	}
	for _, edges := range s.outDependency {
		out = append(out, edges...)
	}
	for _, edges := range s.outDataFlow {
		out = append(out, edges...)
	}

	if filter == nil {
		return out, nil
	}
	filtered := out[:0:0]
	for _, e := range out {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.DependencyType != "" && e.DependencyType != filter.DependencyType {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered, nil
}

// GetOutEdges returns the outgoing edges of edgeType from id, in insertion order.
func (s *MemStore) GetOutEdges(ctx context.Context, id string, edgeType graph.EdgeType) ([]graph.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outEdgesLocked(id, edgeType), nil
}

func (s *MemStore) outEdgesLocked(id string, edgeType graph.EdgeType) []graph.Edge {
	switch edgeType {
	case graph.Functional:
		return append([]graph.Edge(nil), s.outFunctional[id]...)
	case graph.Dependency:
		return append([]graph.Edge(nil), s.outDependency[id]...)
	case graph.DataFlow:
		return append([]graph.Edge(nil), s.outDataFlow[id]...)
	}
	return nil
}

// GetInEdges returns the incoming edges of edgeType into id.
func (s *MemStore) GetInEdges(ctx context.Context, id string, edgeType graph.EdgeType) ([]graph.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch edgeType {
	case graph.Functional:
		if e, ok := s.inFunctional[id]; ok {
			return []graph.Edge{e}, nil
		}
		return nil, nil
	case graph.Dependency:
		return append([]graph.Edge(nil), s.inDependency[id]...), nil
	case graph.DataFlow:
		return append([]graph.Edge(nil), s.inDataFlow[id]...), nil
	}
	return nil, nil
}

// GetChildren returns id's functional children, ordered by sibling_order
// (spec.md §4.1 "get_children").
func (s *MemStore) GetChildren(ctx context.Context, id string) ([]graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edges := append([]graph.Edge(nil), s.outFunctional[id]...)
	sortEdgesBySiblingOrder(edges)

	out := make([]graph.Node, 0, len(edges))
	for _, e := range edges {
		if n, ok := s.nodes[e.Target]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func sortEdgesBySiblingOrder(edges []graph.Edge) {
	for i := 1; i < len(edges); i++ {
		for j := i; j > 0 && edges[j-1].SiblingOrder > edges[j].SiblingOrder; j-- {
			edges[j-1], edges[j] = edges[j], edges[j-1]
		}
	}
}

// GetParent returns id's single functional parent, or nil if id is a root.
func (s *MemStore) GetParent(ctx context.Context, id string) (*graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.inFunctional[id]
	if !ok {
		return nil, nil
	}
	n, ok := s.nodes[e.Source]
	if !ok {
		return nil, nil
	}
	out := n
	return &out, nil
}

// GetDependencies returns the nodes id depends on via outgoing dependency edges.
func (s *MemStore) GetDependencies(ctx context.Context, id string) ([]graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]graph.Node, 0, len(s.outDependency[id]))
	for _, e := range s.outDependency[id] {
		if n, ok := s.nodes[e.Target]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// GetDependents returns the nodes that depend on id via incoming dependency edges.
func (s *MemStore) GetDependents(ctx context.Context, id string) ([]graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]graph.Node, 0, len(s.inDependency[id]))
	for _, e := range s.inDependency[id] {
		if n, ok := s.nodes[e.Source]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}
