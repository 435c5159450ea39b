// Package evolution implements the Evolution Engine (spec.md §4.5):
// diff-driven incremental update of an existing RPG from a commit range, at
// substantially lower cost than a full re-encode. Grounded on the teacher's
// internal/diff package (diff computation conventions) and
// internal/world/git_scanner.go (git subprocess invocation style).
package evolution

import (
	"context"
	"fmt"
	"time"

	"github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/logging"
	"github.com/pleaseai/soop-sub000/internal/store"
)

// Options configures one Run (spec.md §4.5 "Inputs").
type Options struct {
	DriftThreshold           float64 // default 0.3, cosine in spec prose but implemented as Jaccard per §4.5 "Drift metric"
	UseLLM                   bool
	IncludeSource            bool
	ForceRegenerateThreshold float64 // default 0.5
}

// DefaultOptions returns spec.md §6's evolution defaults.
func DefaultOptions() Options {
	return Options{DriftThreshold: 0.3, ForceRegenerateThreshold: 0.5}
}

// Result is the well-formed outcome of a Run (spec.md §4.5 "Emit
// EvolutionResult").
type Result struct {
	Inserted     int
	Deleted      int
	Modified     int
	Rerouted     int
	PrunedNodes  []string
	Duration     time.Duration
	LLMCalls     int
	Errors       []string
	ForceRegenerateHint bool
}

// Router re-routes a drifted entity to a new hierarchy location, delegating
// to the Interactive Protocol's routing mechanism (spec.md §4.5 step 4
// "re-route via the Interactive Protocol's routing mechanism"). Evolution
// depends on this narrow interface rather than internal/interactive
// directly, avoiding a package cycle (interactive also drives evolution-like
// operations over the same store).
type Router interface {
	RouteDrifted(ctx context.Context, nodeID string, newFeature graph.Feature) error
}

// Engine runs the evolution pipeline against one Graph Store.
type Engine struct {
	Store    store.Store
	Parsers  *ast.Registry
	Router   Router // may be nil; drifted nodes are then updated in place
	RepoRoot string
}

// New builds an Engine.
func New(st store.Store, parsers *ast.Registry, router Router, repoRoot string) *Engine {
	return &Engine{Store: st, Parsers: parsers, Router: router, RepoRoot: repoRoot}
}

// Run executes spec.md §4.5's strict Delete -> Modify -> Insert pipeline
// over diff, the file-level classification of a commit range that
// ParseGitDiff produces. Edges are only added after both endpoints exist, matching
// the "Scheduling" rule in spec.md §4.5.
func (e *Engine) Run(ctx context.Context, diff EntityDiff, opts Options) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryEvolution, "Engine.Run")
	defer timer.Stop()

	start := time.Now()
	result := &Result{}

	st, err := e.Store.Stats(ctx)
	if err != nil {
		return result, fmt.Errorf("evolution: stats: %w", err)
	}
	currentNodeCount := st.HighLevelNodes + st.LowLevelNodes
	totalChange := len(diff.Insertions) + len(diff.Deletions) + len(diff.Modifications)
	if currentNodeCount > 0 && float64(totalChange)/float64(currentNodeCount) > opts.ForceRegenerateThreshold {
		result.ForceRegenerateHint = true
		logging.Get(logging.CategoryEvolution).Info(
			"evolution: change ratio %.2f exceeds force-regenerate threshold %.2f; full re-encode is likely cheaper",
			float64(totalChange)/float64(currentNodeCount), opts.ForceRegenerateThreshold)
	}

	if err := e.deletePass(ctx, diff.Deletions, result); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	if err := e.modifyPass(ctx, diff.Modifications, opts, result); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	if err := e.insertPass(ctx, diff.Insertions, opts, result); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	result.Duration = time.Since(start)
	return result, nil
}
