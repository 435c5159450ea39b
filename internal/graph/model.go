// Package graph defines the Repository Planning Graph's data model: nodes,
// edges, semantic features, and the invariants spec.md §3 requires of them.
// It holds no storage logic — see internal/store for the persistence layer.
package graph

import (
	"sort"
	"strings"
)

// NodeVariant distinguishes the two node kinds spec.md §3 describes.
type NodeVariant string

const (
	HighLevel NodeVariant = "high_level"
	LowLevel  NodeVariant = "low_level"
)

// EntityKind is the kind of a concrete code entity a Low-Level node represents.
type EntityKind string

const (
	EntityFile     EntityKind = "file"
	EntityClass    EntityKind = "class"
	EntityFunction EntityKind = "function"
	EntityMethod   EntityKind = "method"
)

// Feature is the compact semantic description spec.md §3 calls a "Semantic
// Feature": a description, a deduplicated keyword set, and optional ordered
// sub-features. All strings are case-normalized to lower, per invariant 5.
type Feature struct {
	Description string    `json:"description"`
	Keywords    []string  `json:"keywords,omitempty"`
	SubFeatures []Feature `json:"sub_features,omitempty"`
}

// NormalizeKeywords lower-cases, trims, deduplicates, and drops tokens of
// length <= 2, per spec.md §3 invariant 5. The result is sorted so that
// Feature equality (used by round-trip tests) does not depend on insertion
// order.
func NormalizeKeywords(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, kw := range raw {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if len(kw) <= 2 {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

// NewFeature builds a Feature with normalized description and keywords.
func NewFeature(description string, keywords []string) Feature {
	return Feature{
		Description: strings.ToLower(strings.TrimSpace(description)),
		Keywords:    NormalizeKeywords(keywords),
	}
}

// Metadata carries optional, mostly-Low-Level-node information. Extra holds
// free-form additions such as metadata.extra.paths from Phase 3 (spec.md
// §4.4.1).
type Metadata struct {
	EntityType    string                 `json:"entity_type,omitempty"`
	Path          string                 `json:"path,omitempty"`
	QualifiedName string                 `json:"qualified_name,omitempty"`
	Language      string                 `json:"language,omitempty"`
	StartLine     int                    `json:"start_line,omitempty"`
	EndLine       int                    `json:"end_line,omitempty"`
	Extra         map[string]interface{} `json:"extra,omitempty"`
}

// Node is a single vertex in the RPG: either an architectural High-Level
// grouping or a concrete Low-Level code entity.
type Node struct {
	ID      string      `json:"id"`
	Variant NodeVariant `json:"type"`
	Feature Feature     `json:"feature"`

	Metadata *Metadata `json:"metadata,omitempty"`

	// High-Level only.
	DirectoryPath string `json:"directory_path,omitempty"`

	// Low-Level only.
	EntityKind EntityKind `json:"entity_kind,omitempty"`
	SourceCode string     `json:"source_code,omitempty"`
}

// EdgeType distinguishes the three edge variants spec.md §3 defines.
type EdgeType string

const (
	Functional EdgeType = "functional"
	Dependency EdgeType = "dependency"
	DataFlow   EdgeType = "data_flow"
)

// DependencyType enumerates how a source node depends on a target node.
type DependencyType string

const (
	DepImport    DependencyType = "import"
	DepCall      DependencyType = "call"
	DepInherit   DependencyType = "inherit"
	DepImplement DependencyType = "implement"
	DepUse       DependencyType = "use"
)

// Edge is a directed, typed connection between two node ids. Not every
// field applies to every Type; see spec.md §3 for the per-variant payload.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type"`

	// Functional edges.
	Level        int `json:"level,omitempty"`
	SiblingOrder int `json:"sibling_order"`

	// Dependency edges.
	DependencyType DependencyType `json:"dependency_type,omitempty"`
	IsRuntime      bool           `json:"is_runtime,omitempty"`
	Line           int            `json:"line,omitempty"`

	// Data-flow edges (spec.md §3; "from"/"to" alias Source/Target).
	DataID   string `json:"data_id,omitempty"`
	DataType string `json:"data_type,omitempty"`

	Weight float64 `json:"weight,omitempty"`
}

// RepositoryConfig is the repo-level metadata spec.md §3 attaches to an RPG.
type RepositoryConfig struct {
	Name        string `json:"name"`
	RootPath    string `json:"root_path,omitempty"`
	Description string `json:"description,omitempty"`
}

// FunctionalEdge constructs a containment edge with an explicit sibling order.
func FunctionalEdge(parent, child string, level, siblingOrder int) Edge {
	return Edge{Source: parent, Target: child, Type: Functional, Level: level, SiblingOrder: siblingOrder}
}

// DependencyEdge constructs a "source uses target" edge.
func DependencyEdge(source, target string, depType DependencyType, line int, isRuntime bool) Edge {
	return Edge{Source: source, Target: target, Type: Dependency, DependencyType: depType, Line: line, IsRuntime: isRuntime}
}

// DataFlowEdge constructs a value-transfer edge.
func DataFlowEdge(from, to, dataID, dataType string) Edge {
	return Edge{Source: from, Target: to, Type: DataFlow, DataID: dataID, DataType: dataType}
}
