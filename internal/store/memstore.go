package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/logging"
	"github.com/pleaseai/soop-sub000/internal/store/algo"
)

// MemStore is the in-process arena conformance implementation of Store: an
// id-keyed node map plus per-direction edge adjacency lists, with no
// external I/O. It backs the Interactive Protocol session (spec.md §4.6)
// and the bulk of this module's unit tests because it never touches disk.
// Edge endpoints are stored as ids, never pointers, per spec.md §9's
// "canonical strategy is an arena keyed by id."
type MemStore struct {
	mu sync.RWMutex

	nodes          map[string]graph.Node
	insertionOrder map[string]int
	nextOrder      int

	outFunctional map[string][]graph.Edge // source -> child edges, in sibling_order
	inFunctional  map[string]graph.Edge   // target -> the single parent edge
	outDependency map[string][]graph.Edge
	inDependency  map[string][]graph.Edge
	outDataFlow   map[string][]graph.Edge
	inDataFlow    map[string][]graph.Edge

	textIndex   *algo.Index
	vectors     map[string][]float32
	embedder    Embedder
}

var _ Store = (*MemStore)(nil)

// NewMemStore opens a fresh, empty in-memory store. It never fails, so it
// has no error return, matching spec.md §4.1's "open(... | \"memory\")"
// for the in-memory case.
func NewMemStore() *MemStore {
	logging.StoreDebug("opening in-memory graph store")
	return &MemStore{
		nodes:          make(map[string]graph.Node),
		insertionOrder: make(map[string]int),
		outFunctional:  make(map[string][]graph.Edge),
		inFunctional:   make(map[string]graph.Edge),
		outDependency:  make(map[string][]graph.Edge),
		inDependency:   make(map[string][]graph.Edge),
		outDataFlow:    make(map[string][]graph.Edge),
		inDataFlow:     make(map[string][]graph.Edge),
		textIndex:      algo.NewIndex(),
		vectors:        make(map[string][]float32),
	}
}

// Close is a no-op for MemStore; nothing to release.
func (s *MemStore) Close() error {
	logging.StoreDebug("closing in-memory graph store")
	return nil
}

// SetEmbedder wires an optional embedding capability for vector indexing.
func (s *MemStore) SetEmbedder(embedder Embedder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embedder = embedder
}

func (s *MemStore) document(n graph.Node) string {
	path, qname := "", ""
	if n.Metadata != nil {
		path = n.Metadata.Path
		qname = n.Metadata.QualifiedName
	}
	return algo.BuildDocument(n.Feature.Description, n.Feature.Keywords, path, qname)
}

// AddNode inserts a new node, failing with graph.ErrDuplicateNode if the id
// already exists (spec.md §4.1). The text index is updated transactionally;
// vector indexing is best-effort and never fails the call (spec.md §4.1
// "Failure semantics").
func (s *MemStore) AddNode(ctx context.Context, node graph.Node) error {
	timer := logging.StartTimer(logging.CategoryStore, "MemStore.AddNode")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[node.ID]; exists {
		return graph.NewStorageError("AddNode", fmt.Errorf("%w: %s", graph.ErrDuplicateNode, node.ID))
	}

	s.nodes[node.ID] = node
	s.insertionOrder[node.ID] = s.nextOrder
	s.nextOrder++
	s.textIndex.Upsert(node.ID, s.document(node))

	if s.embedder != nil {
		if vec, err := s.embedder.Embed(ctx, s.document(node)); err != nil {
			logging.Get(logging.CategoryStore).Warn("vector embed failed for %s: %v", node.ID, err)
		} else {
			s.vectors[node.ID] = vec
		}
	}

	logging.StoreDebug("added node %s (%s)", node.ID, node.Variant)
	return nil
}

// GetNode returns the node for id, or nil if it does not exist.
func (s *MemStore) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, nil
	}
	out := n
	return &out, nil
}

// HasNode reports whether id exists.
func (s *MemStore) HasNode(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok, nil
}

// UpdateNode merges patch.Feature/patch.Metadata into the existing node.
func (s *MemStore) UpdateNode(ctx context.Context, id string, patch Patch) error {
	timer := logging.StartTimer(logging.CategoryStore, "MemStore.UpdateNode")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return graph.NewStorageError("UpdateNode", fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id))
	}

	if patch.Feature != nil {
		n.Feature = *patch.Feature
	}
	if patch.Metadata != nil {
		n.Metadata = patch.Metadata
	}
	s.nodes[id] = n
	s.textIndex.Upsert(id, s.document(n))

	if s.embedder != nil {
		if vec, err := s.embedder.Embed(ctx, s.document(n)); err != nil {
			logging.Get(logging.CategoryStore).Warn("vector re-embed failed for %s: %v", id, err)
		} else {
			s.vectors[id] = vec
		}
	}

	return nil
}

// RemoveNode deletes id and cascades its incident edges (spec.md §3 invariant 2).
func (s *MemStore) RemoveNode(ctx context.Context, id string) error {
	timer := logging.StartTimer(logging.CategoryStore, "MemStore.RemoveNode")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return graph.NewStorageError("RemoveNode", fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id))
	}

	s.cascadeRemoveLocked(id)

	delete(s.nodes, id)
	delete(s.insertionOrder, id)
	s.textIndex.Remove(id)
	delete(s.vectors, id)

	logging.StoreDebug("removed node %s (cascaded incident edges)", id)
	return nil
}

// cascadeRemoveLocked removes every edge touching id. Caller holds s.mu.
func (s *MemStore) cascadeRemoveLocked(id string) {
	if parentEdge, ok := s.inFunctional[id]; ok {
		s.outFunctional[parentEdge.Source] = removeEdge(s.outFunctional[parentEdge.Source], parentEdge)
		delete(s.inFunctional, id)
	}
	for _, childEdge := range s.outFunctional[id] {
		delete(s.inFunctional, childEdge.Target)
	}
	delete(s.outFunctional, id)

	for _, e := range s.outDependency[id] {
		s.inDependency[e.Target] = removeEdge(s.inDependency[e.Target], e)
	}
	delete(s.outDependency, id)
	for _, e := range s.inDependency[id] {
		s.outDependency[e.Source] = removeEdge(s.outDependency[e.Source], e)
	}
	delete(s.inDependency, id)

	for _, e := range s.outDataFlow[id] {
		s.inDataFlow[e.Target] = removeEdge(s.inDataFlow[e.Target], e)
	}
	delete(s.outDataFlow, id)
	for _, e := range s.inDataFlow[id] {
		s.outDataFlow[e.Source] = removeEdge(s.outDataFlow[e.Source], e)
	}
	delete(s.inDataFlow, id)
}

func removeEdge(edges []graph.Edge, target graph.Edge) []graph.Edge {
	out := edges[:0:0]
	for _, e := range edges {
		if e.Source == target.Source && e.Target == target.Target && e.Type == target.Type {
			continue
		}
		out = append(out, e)
	}
	return out
}

// GetNodes returns nodes matching an optional filter.
func (s *MemStore) GetNodes(ctx context.Context, filter *NodeFilter) ([]graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]graph.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		if matchesFilter(n, filter) {
			out = append(out, n)
		}
	}
	sortNodesByInsertion(out, s.insertionOrder)
	return out, nil
}

func matchesFilter(n graph.Node, filter *NodeFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Variant != "" && n.Variant != filter.Variant {
		return false
	}
	if filter.EntityKind != "" && n.EntityKind != filter.EntityKind {
		return false
	}
	if filter.PathPrefix != "" {
		if n.Metadata == nil || !hasPrefix(n.Metadata.Path, filter.PathPrefix) {
			return false
		}
	}
	return true
}

func hasPrefix(path, prefix string) bool {
	return len(path) >= len(prefix) && path[:len(prefix)] == prefix
}

func sortNodesByInsertion(nodes []graph.Node, order map[string]int) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && order[nodes[j-1].ID] > order[nodes[j].ID]; j-- {
			nodes[j-1], nodes[j] = nodes[j], nodes[j-1]
		}
	}
}
