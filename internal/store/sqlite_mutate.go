package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/logging"
)

// Every mutating method here follows the same shape: validate against
// s.inner first (it already enforces every structural invariant from
// graph/errors.go), write the durable row second, and if the SQL write
// fails, undo the in-memory half so the two copies never disagree. Running
// the in-memory mutation first means invariant violations (duplicate id,
// dangling reference, functional cycle) are rejected before any SQL
// statement runs at all.

// AddNode inserts node into both the in-memory index and the nodes table.
func (s *SQLiteStore) AddNode(ctx context.Context, node graph.Node) error {
	timer := logging.StartTimer(logging.CategoryStore, "SQLiteStore.AddNode")
	defer timer.Stop()

	if err := s.inner.AddNode(ctx, node); err != nil {
		return err
	}

	featureJSON, err := json.Marshal(node.Feature)
	if err != nil {
		s.inner.RemoveNode(ctx, node.ID)
		return graph.NewStorageError("AddNode", fmt.Errorf("marshal feature: %w", err))
	}
	var metadataJSON sql.NullString
	if node.Metadata != nil {
		b, err := json.Marshal(node.Metadata)
		if err != nil {
			s.inner.RemoveNode(ctx, node.ID)
			return graph.NewStorageError("AddNode", fmt.Errorf("marshal metadata: %w", err))
		}
		metadataJSON = sql.NullString{String: string(b), Valid: true}
	}

	order := s.inner.insertionOrder[node.ID]
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rpg_nodes (id, variant, feature_json, metadata_json, directory_path, entity_kind, source_code, insertion_order) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		node.ID, string(node.Variant), string(featureJSON), metadataJSON, node.DirectoryPath, string(node.EntityKind), node.SourceCode, order)
	if err != nil {
		s.inner.RemoveNode(ctx, node.ID)
		return graph.NewStorageError("AddNode", fmt.Errorf("insert row: %w", err))
	}
	return nil
}

// UpdateNode applies patch in both places, rolling back to the pre-patch
// node if the SQL write fails.
func (s *SQLiteStore) UpdateNode(ctx context.Context, id string, patch Patch) error {
	timer := logging.StartTimer(logging.CategoryStore, "SQLiteStore.UpdateNode")
	defer timer.Stop()

	before, err := s.inner.GetNode(ctx, id)
	if err != nil {
		return err
	}
	if before == nil {
		return graph.NewStorageError("UpdateNode", fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id))
	}
	prior := *before

	if err := s.inner.UpdateNode(ctx, id, patch); err != nil {
		return err
	}

	after, err := s.inner.GetNode(ctx, id)
	if err != nil {
		return err
	}

	featureJSON, err := json.Marshal(after.Feature)
	if err != nil {
		s.restoreNodeLocked(ctx, prior)
		return graph.NewStorageError("UpdateNode", fmt.Errorf("marshal feature: %w", err))
	}
	var metadataJSON sql.NullString
	if after.Metadata != nil {
		b, err := json.Marshal(after.Metadata)
		if err != nil {
			s.restoreNodeLocked(ctx, prior)
			return graph.NewStorageError("UpdateNode", fmt.Errorf("marshal metadata: %w", err))
		}
		metadataJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE rpg_nodes SET feature_json = ?, metadata_json = ? WHERE id = ?`,
		string(featureJSON), metadataJSON, id)
	if err != nil {
		s.restoreNodeLocked(ctx, prior)
		return graph.NewStorageError("UpdateNode", fmt.Errorf("update row: %w", err))
	}
	return nil
}

// restoreNodeLocked rewrites the in-memory node back to prior after a
// failed SQL write for UpdateNode. Errors are not actionable here: prior
// came from the same store, so restoring it cannot violate an invariant.
func (s *SQLiteStore) restoreNodeLocked(ctx context.Context, prior graph.Node) {
	_ = s.inner.UpdateNode(ctx, prior.ID, Patch{Feature: &prior.Feature, Metadata: prior.Metadata})
}

// RemoveNode deletes id from both the in-memory index and SQL, cascading
// incident edges the same way MemStore does.
func (s *SQLiteStore) RemoveNode(ctx context.Context, id string) error {
	timer := logging.StartTimer(logging.CategoryStore, "SQLiteStore.RemoveNode")
	defer timer.Stop()

	node, err := s.inner.GetNode(ctx, id)
	if err != nil {
		return err
	}
	if node == nil {
		return graph.NewStorageError("RemoveNode", fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id))
	}
	incidentFunctional := incidentEdges(ctx, s.inner, id, graph.Functional)
	incidentDependency := incidentEdges(ctx, s.inner, id, graph.Dependency)
	incidentDataFlow := incidentEdges(ctx, s.inner, id, graph.DataFlow)

	if err := s.inner.RemoveNode(ctx, id); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.reinsertAfterFailedRemoveLocked(ctx, *node, incidentFunctional, incidentDependency, incidentDataFlow)
		return graph.NewStorageError("RemoveNode", fmt.Errorf("begin tx: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rpg_nodes WHERE id = ?`, id); err != nil {
		tx.Rollback()
		s.reinsertAfterFailedRemoveLocked(ctx, *node, incidentFunctional, incidentDependency, incidentDataFlow)
		return graph.NewStorageError("RemoveNode", fmt.Errorf("delete node row: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rpg_edges WHERE source = ? OR target = ?`, id, id); err != nil {
		tx.Rollback()
		s.reinsertAfterFailedRemoveLocked(ctx, *node, incidentFunctional, incidentDependency, incidentDataFlow)
		return graph.NewStorageError("RemoveNode", fmt.Errorf("delete incident edges: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rpg_data_flow_edges WHERE source = ? OR target = ?`, id, id); err != nil {
		tx.Rollback()
		s.reinsertAfterFailedRemoveLocked(ctx, *node, incidentFunctional, incidentDependency, incidentDataFlow)
		return graph.NewStorageError("RemoveNode", fmt.Errorf("delete incident data-flow edges: %w", err))
	}
	if err := tx.Commit(); err != nil {
		s.reinsertAfterFailedRemoveLocked(ctx, *node, incidentFunctional, incidentDependency, incidentDataFlow)
		return graph.NewStorageError("RemoveNode", fmt.Errorf("commit: %w", err))
	}
	return nil
}

// incidentEdges collects every edge of edgeType touching id, in either
// direction, for the reinsert-on-SQL-failure path in RemoveNode.
func incidentEdges(ctx context.Context, s *MemStore, id string, edgeType graph.EdgeType) []graph.Edge {
	out, _ := s.GetOutEdges(ctx, id, edgeType)
	in, _ := s.GetInEdges(ctx, id, edgeType)
	return append(append([]graph.Edge{}, out...), in...)
}

func (s *SQLiteStore) reinsertAfterFailedRemoveLocked(ctx context.Context, node graph.Node, edgeSets ...[]graph.Edge) {
	_ = s.inner.AddNode(ctx, node)
	for _, edges := range edgeSets {
		for _, e := range edges {
			_ = s.inner.AddEdge(ctx, e)
		}
	}
}

// AddEdge inserts edge in both copies, inserting into rpg_edges or
// rpg_data_flow_edges depending on edge.Type.
func (s *SQLiteStore) AddEdge(ctx context.Context, edge graph.Edge) error {
	timer := logging.StartTimer(logging.CategoryStore, "SQLiteStore.AddEdge")
	defer timer.Stop()

	if err := s.inner.AddEdge(ctx, edge); err != nil {
		return err
	}

	var err error
	if edge.Type == graph.DataFlow {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO rpg_data_flow_edges (source, target, data_id, data_type) VALUES (?, ?, ?, ?)`,
			edge.Source, edge.Target, edge.DataID, edge.DataType)
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO rpg_edges (source, target, type, level, sibling_order, dependency_type, is_runtime, line, weight) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			edge.Source, edge.Target, string(edge.Type), edge.Level, edge.SiblingOrder, string(edge.DependencyType), boolToInt(edge.IsRuntime), edge.Line, edge.Weight)
	}
	if err != nil {
		_ = s.inner.RemoveEdge(ctx, edge.Source, edge.Target, edge.Type)
		return graph.NewStorageError("AddEdge", fmt.Errorf("insert row: %w", err))
	}
	return nil
}

// RemoveEdge deletes the edge from both copies.
func (s *SQLiteStore) RemoveEdge(ctx context.Context, source, target string, edgeType graph.EdgeType) error {
	timer := logging.StartTimer(logging.CategoryStore, "SQLiteStore.RemoveEdge")
	defer timer.Stop()

	existing, err := s.inner.GetOutEdges(ctx, source, edgeType)
	if err != nil {
		return err
	}
	var prior *graph.Edge
	for _, e := range existing {
		if e.Source == source && e.Target == target && e.Type == edgeType {
			cp := e
			prior = &cp
			break
		}
	}

	if err := s.inner.RemoveEdge(ctx, source, target, edgeType); err != nil {
		return err
	}

	var execErr error
	if edgeType == graph.DataFlow {
		_, execErr = s.db.ExecContext(ctx, `DELETE FROM rpg_data_flow_edges WHERE source = ? AND target = ?`, source, target)
	} else {
		_, execErr = s.db.ExecContext(ctx, `DELETE FROM rpg_edges WHERE source = ? AND target = ? AND type = ?`, source, target, string(edgeType))
	}
	if execErr != nil {
		if prior != nil {
			_ = s.inner.AddEdge(ctx, *prior)
		}
		return graph.NewStorageError("RemoveEdge", fmt.Errorf("delete row: %w", execErr))
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
