// SQLiteStore is the file-backed conformance implementation of Store,
// alongside MemStore's in-process one (spec.md §9 "Dual storage
// back-ends ... specify the Graph Store as one interface with two
// conformance implementations"). It persists nodes and edges as relational
// rows in a SQLite database opened through modernc.org/sqlite — the
// teacher's own pure-Go driver (see the teacher's cmd/query-kb, which opens
// it the same way: sql.Open("sqlite", path)) — and keeps an in-memory
// MemStore hydrated from those rows to answer every read (navigation,
// search, traversal, topological order) without touching disk per call.
// Every mutating call applies the in-memory mutation first and then writes
// through to SQL; if the SQL write fails the in-memory mutation is rolled
// back so the two never diverge (spec.md
// §4.1 "Failure semantics": mutations either succeed fully or leave the
// store unchanged).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/logging"
)

// SQLiteStore is the durable Store backend. See the package doc comment.
type SQLiteStore struct {
	db    *sql.DB
	inner *MemStore
}

var _ Store = (*SQLiteStore)(nil)

// Open implements spec.md §4.1's "open(path | \"memory\")": path == "" or
// "memory" returns a fresh MemStore; any other path opens (creating if
// necessary) a SQLiteStore at that file.
func Open(path string) (Store, error) {
	if path == "" || path == "memory" {
		return NewMemStore(), nil
	}
	return NewSQLiteStore(path)
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed store at
// path and hydrates its in-memory index from whatever rows already exist.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSQLiteStore")
	defer timer.Stop()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, graph.NewStorageError("Open", fmt.Errorf("open sqlite at %s: %w", path, err))
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers from multiple *sql.DB connections

	s := &SQLiteStore{db: db, inner: NewMemStore()}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, graph.NewStorageError("Open", err)
	}
	if err := s.hydrate(context.Background()); err != nil {
		db.Close()
		return nil, graph.NewStorageError("Open", err)
	}
	logging.StoreDebug("opened sqlite graph store at %s", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS rpg_config (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	name TEXT NOT NULL,
	root_path TEXT,
	description TEXT
);
CREATE TABLE IF NOT EXISTS rpg_nodes (
	id TEXT PRIMARY KEY,
	variant TEXT NOT NULL,
	feature_json TEXT NOT NULL,
	metadata_json TEXT,
	directory_path TEXT,
	entity_kind TEXT,
	source_code TEXT,
	insertion_order INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS rpg_edges (
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	type TEXT NOT NULL,
	level INTEGER NOT NULL DEFAULT 0,
	sibling_order INTEGER NOT NULL DEFAULT 0,
	dependency_type TEXT,
	is_runtime INTEGER NOT NULL DEFAULT 0,
	line INTEGER NOT NULL DEFAULT 0,
	weight REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (source, target, type)
);
CREATE TABLE IF NOT EXISTS rpg_data_flow_edges (
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	data_id TEXT NOT NULL,
	data_type TEXT NOT NULL,
	PRIMARY KEY (source, target, data_id)
);
`
	_, err := s.db.Exec(schema)
	return err
}

// hydrate populates s.inner from whatever rows are already on disk, in
// insertion order, so insertion-order-derived behavior (sibling_order
// fallback, topological tie-breaking) survives a process restart.
func (s *SQLiteStore) hydrate(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, variant, feature_json, metadata_json, directory_path, entity_kind, source_code FROM rpg_nodes ORDER BY insertion_order ASC`)
	if err != nil {
		return fmt.Errorf("hydrate nodes: %w", err)
	}
	var nodes []graph.Node
	for rows.Next() {
		var n graph.Node
		var variant, featureJSON string
		var metadataJSON, directoryPath, entityKind, sourceCode sql.NullString
		if err := rows.Scan(&n.ID, &variant, &featureJSON, &metadataJSON, &directoryPath, &entityKind, &sourceCode); err != nil {
			rows.Close()
			return fmt.Errorf("hydrate nodes: scan: %w", err)
		}
		n.Variant = graph.NodeVariant(variant)
		if err := json.Unmarshal([]byte(featureJSON), &n.Feature); err != nil {
			rows.Close()
			return fmt.Errorf("hydrate node %s: feature: %w", n.ID, err)
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			var md graph.Metadata
			if err := json.Unmarshal([]byte(metadataJSON.String), &md); err != nil {
				rows.Close()
				return fmt.Errorf("hydrate node %s: metadata: %w", n.ID, err)
			}
			n.Metadata = &md
		}
		n.DirectoryPath = directoryPath.String
		n.EntityKind = graph.EntityKind(entityKind.String)
		n.SourceCode = sourceCode.String
		nodes = append(nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("hydrate nodes: %w", err)
	}
	for _, n := range nodes {
		if err := s.inner.AddNode(ctx, n); err != nil {
			return fmt.Errorf("hydrate node %s: %w", n.ID, err)
		}
	}

	// Functional edges before dependency, matching MemStore.Import's
	// ordering rationale (a dependency edge never needs a parent to exist
	// first, but reloading in a stable, spec-documented order keeps this
	// backend's behavior visibly identical to MemStore's).
	for _, edgeType := range []graph.EdgeType{graph.Functional, graph.Dependency} {
		edges, err := s.loadEdgeRows(ctx, edgeType)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if err := s.inner.AddEdge(ctx, e); err != nil {
				return fmt.Errorf("hydrate edge %s->%s: %w", e.Source, e.Target, err)
			}
		}
	}

	dfRows, err := s.db.QueryContext(ctx, `SELECT source, target, data_id, data_type FROM rpg_data_flow_edges`)
	if err != nil {
		return fmt.Errorf("hydrate data-flow edges: %w", err)
	}
	defer dfRows.Close()
	for dfRows.Next() {
		var e graph.Edge
		if err := dfRows.Scan(&e.Source, &e.Target, &e.DataID, &e.DataType); err != nil {
			return fmt.Errorf("hydrate data-flow edges: scan: %w", err)
		}
		e.Type = graph.DataFlow
		if err := s.inner.AddEdge(ctx, e); err != nil {
			return fmt.Errorf("hydrate data-flow edge %s->%s: %w", e.Source, e.Target, err)
		}
	}
	return dfRows.Err()
}

func (s *SQLiteStore) loadEdgeRows(ctx context.Context, edgeType graph.EdgeType) ([]graph.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, target, level, sibling_order, dependency_type, is_runtime, line, weight FROM rpg_edges WHERE type = ?`, string(edgeType))
	if err != nil {
		return nil, fmt.Errorf("load %s edges: %w", edgeType, err)
	}
	defer rows.Close()
	var out []graph.Edge
	for rows.Next() {
		var e graph.Edge
		var depType sql.NullString
		var isRuntime int
		if err := rows.Scan(&e.Source, &e.Target, &e.Level, &e.SiblingOrder, &depType, &isRuntime, &e.Line, &e.Weight); err != nil {
			return nil, fmt.Errorf("load %s edges: scan: %w", edgeType, err)
		}
		e.Type = edgeType
		e.DependencyType = graph.DependencyType(depType.String)
		e.IsRuntime = isRuntime != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the SQLite handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SetEmbedder wires an embedding capability into the in-memory index.
// Vectors are not persisted to SQL: the vector index is best-effort
// (spec.md §4.1 "Vector index. Optional.") and is cheap to rebuild by
// re-embedding on next Open if a caller needs it durable.
func (s *SQLiteStore) SetEmbedder(embedder Embedder) {
	s.inner.SetEmbedder(embedder)
}
