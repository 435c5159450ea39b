package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pleaseai/soop-sub000/internal/graph"
)

// Every read-only method delegates straight to the hydrated in-memory
// index: search, traversal and topological order are all computation over
// the graph shape, and SQLiteStore keeps that shape mirrored in s.inner on
// every successful mutation (sqlite_mutate.go), so there is nothing SQL
// needs to answer a read with.

func (s *SQLiteStore) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	return s.inner.GetNode(ctx, id)
}

func (s *SQLiteStore) HasNode(ctx context.Context, id string) (bool, error) {
	return s.inner.HasNode(ctx, id)
}

func (s *SQLiteStore) GetNodes(ctx context.Context, filter *NodeFilter) ([]graph.Node, error) {
	return s.inner.GetNodes(ctx, filter)
}

func (s *SQLiteStore) GetEdges(ctx context.Context, filter *EdgeFilter) ([]graph.Edge, error) {
	return s.inner.GetEdges(ctx, filter)
}

func (s *SQLiteStore) GetOutEdges(ctx context.Context, id string, edgeType graph.EdgeType) ([]graph.Edge, error) {
	return s.inner.GetOutEdges(ctx, id, edgeType)
}

func (s *SQLiteStore) GetInEdges(ctx context.Context, id string, edgeType graph.EdgeType) ([]graph.Edge, error) {
	return s.inner.GetInEdges(ctx, id, edgeType)
}

func (s *SQLiteStore) GetChildren(ctx context.Context, id string) ([]graph.Node, error) {
	return s.inner.GetChildren(ctx, id)
}

func (s *SQLiteStore) GetParent(ctx context.Context, id string) (*graph.Node, error) {
	return s.inner.GetParent(ctx, id)
}

func (s *SQLiteStore) GetDependencies(ctx context.Context, id string) ([]graph.Node, error) {
	return s.inner.GetDependencies(ctx, id)
}

func (s *SQLiteStore) GetDependents(ctx context.Context, id string) ([]graph.Node, error) {
	return s.inner.GetDependents(ctx, id)
}

func (s *SQLiteStore) Traverse(ctx context.Context, start string, edgeKind EdgeKind, direction Direction, maxDepth int, filter *NodeFilter) (*TraverseResult, error) {
	return s.inner.Traverse(ctx, start, edgeKind, direction, maxDepth, filter)
}

func (s *SQLiteStore) SearchByFeature(ctx context.Context, query string, scopes []string) ([]ScoredNode, error) {
	return s.inner.SearchByFeature(ctx, query, scopes)
}

func (s *SQLiteStore) SearchByPath(ctx context.Context, pattern string) ([]graph.Node, error) {
	return s.inner.SearchByPath(ctx, pattern)
}

func (s *SQLiteStore) SearchVector(ctx context.Context, queryVector []float32, k int) ([]ScoredNode, error) {
	return s.inner.SearchVector(ctx, queryVector, k)
}

func (s *SQLiteStore) SearchHybrid(ctx context.Context, query string, queryVector []float32, k int, vectorWeight float64, rrfK int) ([]ScoredNode, error) {
	return s.inner.SearchHybrid(ctx, query, queryVector, k, vectorWeight, rrfK)
}

func (s *SQLiteStore) TopologicalOrder(ctx context.Context) ([]graph.Node, error) {
	return s.inner.TopologicalOrder(ctx)
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	return s.inner.Stats(ctx)
}

// Export delegates to the in-memory index, which already builds the wire
// Envelope shape (store/memstore_io.go); dataFlow is passed through
// unchanged, same contract as MemStore.Export.
func (s *SQLiteStore) Export(ctx context.Context, cfg graph.RepositoryConfig, dataFlow []graph.Edge) (*Envelope, error) {
	env, err := s.inner.Export(ctx, cfg, dataFlow)
	if err != nil {
		return nil, err
	}
	_, execErr := s.db.ExecContext(ctx,
		`INSERT INTO rpg_config (id, name, root_path, description) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, root_path = excluded.root_path, description = excluded.description`,
		cfg.Name, cfg.RootPath, cfg.Description)
	if execErr != nil {
		return nil, graph.NewStorageError("Export", fmt.Errorf("persist config: %w", execErr))
	}
	return env, nil
}

// Import replaces this store's contents with env, a whole-graph load and
// never an incremental merge. Unlike MemStore.Import, which assumes a fresh
// store, it truncates every table and starts a fresh in-memory index before
// replaying rows, so a re-run against an already-populated SQLiteStore does
// not collide with primary keys from a previous Import.
func (s *SQLiteStore) Import(ctx context.Context, env *Envelope) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rpg_nodes`); err != nil {
		return graph.NewStorageError("Import", fmt.Errorf("truncate nodes: %w", err))
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rpg_edges`); err != nil {
		return graph.NewStorageError("Import", fmt.Errorf("truncate edges: %w", err))
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rpg_data_flow_edges`); err != nil {
		return graph.NewStorageError("Import", fmt.Errorf("truncate data-flow edges: %w", err))
	}

	s.inner = NewMemStore()
	if err := s.inner.Import(ctx, env); err != nil {
		return err
	}

	nodes, err := s.inner.GetNodes(ctx, nil)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		featureJSON, err := json.Marshal(n.Feature)
		if err != nil {
			return graph.NewStorageError("Import", fmt.Errorf("marshal feature for %s: %w", n.ID, err))
		}
		var metadataJSON sql.NullString
		if n.Metadata != nil {
			b, err := json.Marshal(n.Metadata)
			if err != nil {
				return graph.NewStorageError("Import", fmt.Errorf("marshal metadata for %s: %w", n.ID, err))
			}
			metadataJSON = sql.NullString{String: string(b), Valid: true}
		}
		order := s.inner.insertionOrder[n.ID]
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO rpg_nodes (id, variant, feature_json, metadata_json, directory_path, entity_kind, source_code, insertion_order) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, string(n.Variant), string(featureJSON), metadataJSON, n.DirectoryPath, string(n.EntityKind), n.SourceCode, order,
		); err != nil {
			return graph.NewStorageError("Import", fmt.Errorf("insert node %s: %w", n.ID, err))
		}
	}

	for _, edgeType := range []graph.EdgeType{graph.Functional, graph.Dependency} {
		edges, err := s.inner.GetEdges(ctx, &EdgeFilter{Type: edgeType})
		if err != nil {
			return err
		}
		for _, e := range edges {
			if _, err := s.db.ExecContext(ctx,
				`INSERT INTO rpg_edges (source, target, type, level, sibling_order, dependency_type, is_runtime, line, weight) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.Source, e.Target, string(e.Type), e.Level, e.SiblingOrder, string(e.DependencyType), boolToInt(e.IsRuntime), e.Line, e.Weight,
			); err != nil {
				return graph.NewStorageError("Import", fmt.Errorf("insert edge %s->%s: %w", e.Source, e.Target, err))
			}
		}
	}

	for _, e := range env.DataFlowEdges {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO rpg_data_flow_edges (source, target, data_id, data_type) VALUES (?, ?, ?, ?)`,
			e.From, e.To, e.DataID, e.DataType,
		); err != nil {
			return graph.NewStorageError("Import", fmt.Errorf("insert data-flow edge %s->%s: %w", e.From, e.To, err))
		}
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO rpg_config (id, name, root_path, description) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, root_path = excluded.root_path, description = excluded.description`,
		env.Config.Name, env.Config.RootPath, env.Config.Description,
	); err != nil {
		return graph.NewStorageError("Import", fmt.Errorf("persist config: %w", err))
	}
	return nil
}
