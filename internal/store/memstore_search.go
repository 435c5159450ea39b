package store

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/logging"
	"github.com/pleaseai/soop-sub000/internal/store/algo"
)

// Traverse performs a breadth-first walk from start following edgeKind in
// direction, to at most maxDepth hops, per spec.md §4.1 "traverse". BFS
// guarantees a node already visited by a shorter path is never revisited by
// a longer one (spec.md §4.1 "visited-once, shorter path wins"); cycles
// (legal on dependency edges, spec.md §3 invariant 4) terminate naturally
// because visited nodes are never re-queued.
func (s *MemStore) Traverse(ctx context.Context, start string, edgeKind EdgeKind, direction Direction, maxDepth int, filter *NodeFilter) (*TraverseResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "MemStore.Traverse")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[start]; !ok {
		return nil, graph.NewStorageError("Traverse", fmt.Errorf("%w: %s", graph.ErrNodeNotFound, start))
	}

	visited := map[string]int{start: 0}
	queue := []string{start}
	var resultNodes []graph.Node
	var resultEdges []graph.Edge
	maxDepthReached := 0

	if n := s.nodes[start]; matchesFilter(n, filter) {
		resultNodes = append(resultNodes, n)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		depth := visited[cur]
		if depth >= maxDepth {
			continue
		}

		for _, e := range s.adjacentLocked(cur, edgeKind, direction) {
			next := otherEndpoint(e, cur, direction)
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = depth + 1
			if depth+1 > maxDepthReached {
				maxDepthReached = depth + 1
			}
			resultEdges = append(resultEdges, e)
			if n, ok := s.nodes[next]; ok && matchesFilter(n, filter) {
				resultNodes = append(resultNodes, n)
			}
			queue = append(queue, next)
		}
	}

	return &TraverseResult{Nodes: resultNodes, Edges: resultEdges, MaxDepthReached: maxDepthReached}, nil
}

func otherEndpoint(e graph.Edge, cur string, direction Direction) string {
	if e.Source == cur {
		return e.Target
	}
	return e.Source
}

// adjacentLocked returns the edges touching id in the requested kind/direction.
func (s *MemStore) adjacentLocked(id string, edgeKind EdgeKind, direction Direction) []graph.Edge {
	var out []graph.Edge
	kinds := []graph.EdgeType{}
	switch edgeKind {
	case EdgeKindFunctional:
		kinds = append(kinds, graph.Functional)
	case EdgeKindDependency:
		kinds = append(kinds, graph.Dependency)
	default:
		kinds = append(kinds, graph.Functional, graph.Dependency)
	}

	for _, kind := range kinds {
		if direction == DirOut || direction == DirBoth {
			out = append(out, s.outEdgesLocked(id, kind)...)
		}
		if direction == DirIn || direction == DirBoth {
			switch kind {
			case graph.Functional:
				if e, ok := s.inFunctional[id]; ok {
					out = append(out, e)
				}
			case graph.Dependency:
				out = append(out, s.inDependency[id]...)
			}
		}
	}
	return out
}

// SearchByFeature tokenizes query and runs prefix-match BM25 over the text
// index, per spec.md §4.1. When scopes is non-empty, results are filtered to
// nodes reachable from any scope root via a functional-subtree BFS.
func (s *MemStore) SearchByFeature(ctx context.Context, query string, scopes []string) ([]ScoredNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	words := algo.Tokenize(query)
	scored := s.textIndex.SearchPrefix(words)

	var allowed map[string]bool
	if len(scopes) > 0 {
		allowed = make(map[string]bool)
		for _, scope := range scopes {
			for id := range s.subtreeLocked(scope) {
				allowed[id] = true
			}
		}
	}

	out := make([]ScoredNode, 0, len(scored))
	for _, sc := range scored {
		if allowed != nil && !allowed[sc.ID] {
			continue
		}
		if n, ok := s.nodes[sc.ID]; ok {
			out = append(out, ScoredNode{Node: n, Score: sc.Score})
		}
	}
	return out, nil
}

// subtreeLocked returns the set of node ids in the functional subtree rooted
// at id (id included), via BFS over functional child edges. Caller holds s.mu.
func (s *MemStore) subtreeLocked(id string) map[string]bool {
	out := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range s.outFunctional[cur] {
			if !out[e.Target] {
				out[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}
	return out
}

// SearchByPath matches node metadata.path against a glob/regex pattern
// (spec.md §4.1 "search_by_path").
func (s *MemStore) SearchByPath(ctx context.Context, pattern string) ([]graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	re, err := algo.CompilePathPattern(pattern)
	if err != nil {
		return nil, graph.NewStorageError("SearchByPath", err)
	}

	var out []graph.Node
	for _, n := range s.nodes {
		if n.Metadata != nil && re.MatchString(n.Metadata.Path) {
			out = append(out, n)
		}
	}
	sortNodesByInsertion(out, s.insertionOrder)
	return out, nil
}

// SearchVector ranks nodes by cosine similarity to queryVector, returning the
// top k (spec.md §4.1 "search_vector ... k-NN cosine"). Nodes without a
// vector (no embedder configured, or embedding failed) are excluded.
func (s *MemStore) SearchVector(ctx context.Context, queryVector []float32, k int) ([]ScoredNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchVectorLocked(queryVector, k), nil
}

func (s *MemStore) searchVectorLocked(queryVector []float32, k int) []ScoredNode {
	scored := make([]ScoredNode, 0, len(s.vectors))
	for id, vec := range s.vectors {
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		scored = append(scored, ScoredNode{Node: n, Score: cosineSimilarity(queryVector, vec)})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Node.ID < scored[j].Node.ID
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SearchHybrid fuses full-text and vector rankings via Reciprocal Rank
// Fusion, per spec.md §4.1 "search_hybrid". A nil/empty queryVector falls
// back to the full-text ranking alone.
func (s *MemStore) SearchHybrid(ctx context.Context, query string, queryVector []float32, k int, vectorWeight float64, rrfK int) ([]ScoredNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	words := algo.Tokenize(query)
	ftsScored := s.textIndex.SearchPrefix(words)
	ftsRanked := make([]string, len(ftsScored))
	for i, sc := range ftsScored {
		ftsRanked[i] = sc.ID
	}

	var vectorRanked []string
	if len(queryVector) > 0 {
		for _, sc := range s.searchVectorLocked(queryVector, 0) {
			vectorRanked = append(vectorRanked, sc.Node.ID)
		}
	}

	fused := algo.FuseRRF(vectorRanked, ftsRanked, vectorWeight, rrfK)
	if k > 0 && len(fused) > k {
		fused = fused[:k]
	}

	out := make([]ScoredNode, 0, len(fused))
	for _, sc := range fused {
		if n, ok := s.nodes[sc.ID]; ok {
			out = append(out, ScoredNode{Node: n, Score: sc.Score})
		}
	}
	return out, nil
}
