// Package interactive implements the Interactive Protocol (spec.md §4.6):
// a step-wise state machine that lets a remote agent drive the encoder one
// batch at a time instead of requiring an in-process LLM capability. The
// session is single-writer — every mutating operation is guarded by one
// sync.Mutex, per spec.md §4.6 "Concurrency" — grounded on the teacher's
// internal/store/local_session.go conventions (mutex-guarded operations,
// logging.StartTimer instrumentation, idempotent-by-construction writes).
package interactive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/config"
	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/logging"
	"github.com/pleaseai/soop-sub000/internal/store"
)

// Entity is one liftable code entity exposed to the driving agent, with its
// source snippet, per spec.md §4.6 "entities: ordered list of liftable
// entities with source snippets."
type Entity struct {
	ID        string
	Path      string
	Kind      rpgast.EntityKind
	Name      string
	Parent    string
	Doc       string
	Source    string
	StartLine int
	EndLine   int
}

// Batch is a precomputed [Start, End) range over Session.Entities.
type Batch struct {
	Start int
	End   int
}

// PendingRouting is a queued re-routing decision for a drifted entity
// (spec.md §4.6 step 3: "queue a pending_routing entry marked drifted").
type PendingRouting struct {
	EntityID    string
	Reason      string
	OldFeature  graph.Feature
	NewFeature  graph.Feature
	Resolved    bool
}

// Phase tracks which step of the protocol the session currently expects.
type Phase string

const (
	PhaseBuilt      Phase = "built"
	PhaseFeatures   Phase = "features"
	PhaseSynthesis  Phase = "synthesis"
	PhaseHierarchy  Phase = "hierarchy"
	PhaseRouting    Phase = "routing"
	PhaseDone       Phase = "done"
)

// Session is the interactive protocol's state machine (spec.md §4.6
// "Session state"). It owns a Graph Store and an AST Adapter registry, and
// persists the store's envelope to GraphPath after every successful
// mutation.
type Session struct {
	mu sync.Mutex

	Store    store.Store
	Parsers  *rpgast.Registry
	Config   *config.Config
	RepoRoot string
	GraphPath string

	Phase Phase

	Entities        []Entity
	BatchBoundaries []Batch

	LiftedFeatures       map[string]graph.Feature
	FileFeatures         map[string]graph.Feature
	SynthesizedFeatures  map[string]graph.Feature
	HierarchyAssignments map[string]string
	PendingRouting       []PendingRouting

	GraphRevision string
}

// DefaultGraphPath is the conventional on-disk location spec.md §4.6
// mentions ("`.rpg/graph.json`, rewritten after every mutation").
const DefaultGraphPath = ".rpg/graph.json"

// NewSession constructs an empty session bound to st and parsers. Call
// BuildIndex before driving any other operation.
func NewSession(st store.Store, parsers *rpgast.Registry, cfg *config.Config, repoRoot string) *Session {
	graphPath := filepath.Join(repoRoot, DefaultGraphPath)
	return &Session{
		Store:                st,
		Parsers:              parsers,
		Config:               cfg,
		RepoRoot:             repoRoot,
		GraphPath:            graphPath,
		LiftedFeatures:       make(map[string]graph.Feature),
		FileFeatures:         make(map[string]graph.Feature),
		SynthesizedFeatures:  make(map[string]graph.Feature),
		HierarchyAssignments: make(map[string]string),
	}
}

// ErrUnknownEntity is returned when a submission references an entity id
// BuildIndex never produced (spec.md §4.6 step 3 "Unknown ids cause a hard
// error").
type ErrUnknownEntity struct{ ID string }

func (e *ErrUnknownEntity) Error() string { return "interactive: unknown entity id: " + e.ID }

// ErrStaleRevision is returned by SubmitRouting when the caller's revision
// does not match the session's current graph revision (spec.md §4.6 step 7,
// §7 "StaleRevision").
type ErrStaleRevision struct{ Got, Want string }

func (e *ErrStaleRevision) Error() string {
	return fmt.Sprintf("interactive: stale revision: got %s, want %s", e.Got, e.Want)
}

// ErrInvalidInput covers malformed requests (spec.md §7 "InvalidInput").
type ErrInvalidInput struct{ Reason string }

func (e *ErrInvalidInput) Error() string { return "interactive: invalid input: " + e.Reason }

// entityByID looks up an entity by id. Caller must hold s.mu.
func (s *Session) entityByID(id string) (*Entity, bool) {
	for i := range s.Entities {
		if s.Entities[i].ID == id {
			return &s.Entities[i], true
		}
	}
	return nil, false
}

// computeRevision implements spec.md §4.6 "graph_revision: a 12-char digest
// over (entities, lifted_features, hierarchy_assignments)", in the same
// sort-then-hash style as graph.Revision so that ordering of submissions
// never affects the digest. Caller must hold s.mu.
func (s *Session) computeRevision() string {
	ids := make([]string, 0, len(s.Entities))
	for _, e := range s.Entities {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)

	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(ids)
	_ = enc.Encode(sortedFeatureMap(s.LiftedFeatures))
	_ = enc.Encode(sortedStringMap(s.HierarchyAssignments))
	return hex.EncodeToString(h.Sum(nil))[:12]
}

func sortedFeatureMap(m map[string]graph.Feature) []struct {
	ID      string
	Feature graph.Feature
} {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]struct {
		ID      string
		Feature graph.Feature
	}, 0, len(keys))
	for _, k := range keys {
		out = append(out, struct {
			ID      string
			Feature graph.Feature
		}{k, m[k]})
	}
	return out
}

func sortedStringMap(m map[string]string) []struct{ Key, Value string } {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]struct{ Key, Value string }, 0, len(keys))
	for _, k := range keys {
		out = append(out, struct{ Key, Value string }{k, m[k]})
	}
	return out
}

// persist rewrites GraphPath with the store's current envelope, per
// spec.md §4.6 "Persistence (.rpg/graph.json) is rewritten after every
// successful mutation." A failure here is logged, not fatal: the in-memory
// graph is the authority during a live session.
func (s *Session) persist(ctx context.Context) {
	if s.GraphPath == "" {
		return
	}
	env, err := s.Store.Export(ctx, graph.RepositoryConfig{Name: filepath.Base(s.RepoRoot)}, nil)
	if err != nil {
		logging.Get(logging.CategoryInteractive).Warn("interactive: export for persistence: %v", err)
		return
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		logging.Get(logging.CategoryInteractive).Warn("interactive: marshal envelope: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.GraphPath), 0o755); err != nil {
		logging.Get(logging.CategoryInteractive).Warn("interactive: mkdir for %s: %v", s.GraphPath, err)
		return
	}
	if err := os.WriteFile(s.GraphPath, data, 0o644); err != nil {
		logging.Get(logging.CategoryInteractive).Warn("interactive: write %s: %v", s.GraphPath, err)
	}
}
