// Package store implements the Graph Store capability of spec.md §4.1: node
// and edge CRUD, navigation, hybrid full-text + vector search, and
// topological ordering, behind one Store interface with two conformance
// backends (MemStore and SQLiteStore — see design note in spec.md §9).
package store

import (
	"context"

	"github.com/pleaseai/soop-sub000/internal/graph"
)

// EdgeKind selects which edge family a traversal or fetch considers.
type EdgeKind string

const (
	EdgeKindFunctional EdgeKind = "functional"
	EdgeKindDependency EdgeKind = "dependency"
	EdgeKindBoth       EdgeKind = "both"
)

// Direction selects which way a traversal follows edges.
type Direction string

const (
	DirOut  Direction = "out"
	DirIn   Direction = "in"
	DirBoth Direction = "both"
)

// NodeFilter narrows get_nodes queries (spec.md §4.1).
type NodeFilter struct {
	Variant    graph.NodeVariant // zero value = any
	EntityKind graph.EntityKind  // zero value = any
	PathPrefix string            // zero value = any
}

// EdgeFilter narrows get_edges queries.
type EdgeFilter struct {
	Type           graph.EdgeType
	DependencyType graph.DependencyType
}

// TraverseResult is what Store.Traverse / Explore return (spec.md §4.1, §4.7).
type TraverseResult struct {
	Nodes           []graph.Node
	Edges           []graph.Edge
	MaxDepthReached int
}

// ScoredNode pairs a node with a search score, best-first (spec.md §4.1).
type ScoredNode struct {
	Node  graph.Node
	Score float64
}

// Stats is the cheap counts-per-variant summary (spec.md §4.1).
type Stats struct {
	HighLevelNodes int
	LowLevelNodes  int
	FunctionalEdges int
	DependencyEdges int
	DataFlowEdges   int
}

// Envelope is the on-disk serialised graph format (spec.md §6).
type Envelope struct {
	Version       string              `json:"version"`
	Config        graph.RepositoryConfig `json:"config"`
	Nodes         []EnvelopeNode      `json:"nodes"`
	Edges         []EnvelopeEdge      `json:"edges"`
	DataFlowEdges []EnvelopeDataFlow  `json:"data_flow_edges,omitempty"`
}

// EnvelopeNode is the wire shape of a node inside Envelope.
type EnvelopeNode struct {
	ID            string          `json:"id"`
	Type          graph.NodeVariant `json:"type"`
	Feature       graph.Feature   `json:"feature"`
	Metadata      *graph.Metadata `json:"metadata,omitempty"`
	DirectoryPath string          `json:"directory_path,omitempty"`
	SourceCode    string          `json:"source_code,omitempty"`
}

// EnvelopeEdge is the wire shape of a functional/dependency edge inside Envelope.
type EnvelopeEdge struct {
	Source         string               `json:"source"`
	Target         string               `json:"target"`
	Type           graph.EdgeType       `json:"type"`
	Level          int                  `json:"level,omitempty"`
	SiblingOrder   int                  `json:"sibling_order,omitempty"`
	DependencyType graph.DependencyType `json:"dependency_type,omitempty"`
	IsRuntime      bool                 `json:"is_runtime,omitempty"`
	Line           int                  `json:"line,omitempty"`
	Weight         float64              `json:"weight,omitempty"`
}

// EnvelopeDataFlow is the wire shape of a data-flow edge inside Envelope.
type EnvelopeDataFlow struct {
	From     string `json:"from"`
	To       string `json:"to"`
	DataID   string `json:"data_id"`
	DataType string `json:"data_type"`
}

// EnvelopeVersion is the current on-disk format tag.
const EnvelopeVersion = "1.0.0"

// Patch describes a partial update merged into an existing node by UpdateNode.
type Patch struct {
	Feature  *graph.Feature
	Metadata *graph.Metadata
}

// SearchStrategy selects the ranking backend for search_by_feature (spec.md §4.7).
type SearchStrategy string

const (
	StrategyHybrid SearchStrategy = "hybrid"
	StrategyVector SearchStrategy = "vector"
	StrategyFTS    SearchStrategy = "fts"
	StrategyString SearchStrategy = "string"
)

// Store is the uniform capability set spec.md §4.1 requires of every
// backend. All mutating methods either fully succeed or leave the store
// unchanged (spec.md §4.1 "Failure semantics").
type Store interface {
	// Lifecycle.
	Close() error

	// Node CRUD.
	AddNode(ctx context.Context, node graph.Node) error
	GetNode(ctx context.Context, id string) (*graph.Node, error)
	HasNode(ctx context.Context, id string) (bool, error)
	UpdateNode(ctx context.Context, id string, patch Patch) error
	RemoveNode(ctx context.Context, id string) error
	GetNodes(ctx context.Context, filter *NodeFilter) ([]graph.Node, error)

	// Edge CRUD.
	AddEdge(ctx context.Context, edge graph.Edge) error
	RemoveEdge(ctx context.Context, source, target string, edgeType graph.EdgeType) error
	GetEdges(ctx context.Context, filter *EdgeFilter) ([]graph.Edge, error)
	GetOutEdges(ctx context.Context, id string, edgeType graph.EdgeType) ([]graph.Edge, error)
	GetInEdges(ctx context.Context, id string, edgeType graph.EdgeType) ([]graph.Edge, error)

	// Navigation.
	GetChildren(ctx context.Context, id string) ([]graph.Node, error)
	GetParent(ctx context.Context, id string) (*graph.Node, error)
	GetDependencies(ctx context.Context, id string) ([]graph.Node, error)
	GetDependents(ctx context.Context, id string) ([]graph.Node, error)

	// Traversal and search.
	Traverse(ctx context.Context, start string, edgeKind EdgeKind, direction Direction, maxDepth int, filter *NodeFilter) (*TraverseResult, error)
	SearchByFeature(ctx context.Context, query string, scopes []string) ([]ScoredNode, error)
	SearchByPath(ctx context.Context, pattern string) ([]graph.Node, error)
	SearchVector(ctx context.Context, queryVector []float32, k int) ([]ScoredNode, error)
	SearchHybrid(ctx context.Context, query string, queryVector []float32, k int, vectorWeight float64, rrfK int) ([]ScoredNode, error)

	// Global queries.
	TopologicalOrder(ctx context.Context) ([]graph.Node, error)
	Stats(ctx context.Context) (Stats, error)

	// Round-trip.
	Export(ctx context.Context, cfg graph.RepositoryConfig, dataFlow []graph.Edge) (*Envelope, error)
	Import(ctx context.Context, env *Envelope) error

	// SetEmbedder wires an optional embedding capability used by AddNode /
	// UpdateNode to keep the vector index in sync. A nil embedder disables
	// vector indexing (keyword-only mode, spec.md §4.1 "Vector index. Optional.").
	SetEmbedder(embedder Embedder)
}

// Embedder is the minimal capability the store needs from an embedding
// provider to maintain its vector index. See internal/llmcap.Capability for
// the fuller LLM+embedding contract spec.md §9 describes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
