package store

import (
	"context"

	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/logging"
)

// Export serializes the store to the wire Envelope shape (spec.md §6).
// dataFlow is supplied by the caller (the encoder pipeline owns data-flow
// edge production in Phase 3) rather than stored alongside functional/
// dependency edges, since data-flow edges carry no structural invariants.
func (s *MemStore) Export(ctx context.Context, cfg graph.RepositoryConfig, dataFlow []graph.Edge) (*Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sortByID(ids)

	env := &Envelope{Version: EnvelopeVersion, Config: cfg}
	for _, id := range ids {
		n := s.nodes[id]
		env.Nodes = append(env.Nodes, EnvelopeNode{
			ID: n.ID, Type: n.Variant, Feature: n.Feature, Metadata: n.Metadata,
			DirectoryPath: n.DirectoryPath, SourceCode: n.SourceCode,
		})
	}

	for _, id := range ids {
		edges := append([]graph.Edge(nil), s.outFunctional[id]...)
		sortEdgesBySiblingOrder(edges)
		for _, e := range edges {
			env.Edges = append(env.Edges, envelopeEdgeOf(e))
		}
	}
	for _, id := range ids {
		for _, e := range s.outDependency[id] {
			env.Edges = append(env.Edges, envelopeEdgeOf(e))
		}
	}

	for _, e := range dataFlow {
		env.DataFlowEdges = append(env.DataFlowEdges, EnvelopeDataFlow{
			From: e.Source, To: e.Target, DataID: e.DataID, DataType: e.DataType,
		})
	}

	return env, nil
}

func envelopeEdgeOf(e graph.Edge) EnvelopeEdge {
	return EnvelopeEdge{
		Source: e.Source, Target: e.Target, Type: e.Type,
		Level: e.Level, SiblingOrder: e.SiblingOrder,
		DependencyType: e.DependencyType, IsRuntime: e.IsRuntime, Line: e.Line,
		Weight: e.Weight,
	}
}

func sortByID(ids []string) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// Import loads env's nodes and edges into the store, per spec.md §6's
// round-trip contract, and assumes a fresh store: existing contents are not
// cleared, so an id already present fails with graph.ErrDuplicateNode, and
// env.DataFlowEdges are not loaded. Nodes are added first (in file order, preserving
// insertion order for sibling_order/topological tie-breaking), then
// functional edges, then dependency edges, so every invariant check in
// AddEdge sees its endpoints already present.
func (s *MemStore) Import(ctx context.Context, env *Envelope) error {
	timer := logging.StartTimer(logging.CategoryStore, "MemStore.Import")
	defer timer.Stop()

	for _, en := range env.Nodes {
		n := graph.Node{
			ID: en.ID, Variant: en.Type, Feature: en.Feature, Metadata: en.Metadata,
			DirectoryPath: en.DirectoryPath, SourceCode: en.SourceCode,
		}
		if en.Metadata != nil {
			n.EntityKind = graph.EntityKind(en.Metadata.EntityType)
		}
		if err := s.AddNode(ctx, n); err != nil {
			return err
		}
	}

	for _, ee := range env.Edges {
		if ee.Type != graph.Functional {
			continue
		}
		if err := s.AddEdge(ctx, edgeFromEnvelope(ee)); err != nil {
			return err
		}
	}
	for _, ee := range env.Edges {
		if ee.Type != graph.Dependency {
			continue
		}
		if err := s.AddEdge(ctx, edgeFromEnvelope(ee)); err != nil {
			return err
		}
	}

	return nil
}

func edgeFromEnvelope(ee EnvelopeEdge) graph.Edge {
	return graph.Edge{
		Source: ee.Source, Target: ee.Target, Type: ee.Type,
		Level: ee.Level, SiblingOrder: ee.SiblingOrder,
		DependencyType: ee.DependencyType, IsRuntime: ee.IsRuntime, Line: ee.Line,
		Weight: ee.Weight,
	}
}
