// Package encoder implements the Encoder Pipeline (spec.md §4.4): the
// three-phase build (Semantic Lifting, Structural Reorganization, Artifact
// Grounding) that converts a repository into a Repository Planning Graph.
package encoder

import (
	"context"
	"time"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/config"
	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/llmcap"
	"github.com/pleaseai/soop-sub000/internal/logging"
	"github.com/pleaseai/soop-sub000/internal/semcache"
	"github.com/pleaseai/soop-sub000/internal/store"
)

// Pipeline owns every collaborator the encode needs: the Graph Store, the
// AST Adapter registry, the Semantic Cache, and an optional LLM Capability.
// One Pipeline encodes one repository at a time (spec.md §5 "Graph Store
// handle: owned by the Encoder ... no sharing across sessions").
type Pipeline struct {
	Store    store.Store
	Parsers  *rpgast.Registry
	Cache    *semcache.Cache
	LLM      llmcap.Capability
	Config   *config.Config
	RepoRoot string

	// dataFlowEdges accumulates Phase 3's data-flow edges, which the Graph
	// Store does not persist alongside functional/dependency edges (they
	// carry no structural invariants — see store.Envelope's DataFlowEdges
	// field). DataFlowEdges exposes them for Export.
	dataFlowEdges []graph.Edge
}

// DataFlowEdges returns the data-flow edges accumulated by the most recent
// Encode call, for passing to Store.Export.
func (p *Pipeline) DataFlowEdges() []graph.Edge {
	return p.dataFlowEdges
}

// New builds a Pipeline. llm may be nil (spec.md §4.4 "If none is
// configured and the caller did not request LLM, Phase 2 is skipped
// silently").
func New(st store.Store, parsers *rpgast.Registry, cache *semcache.Cache, llm llmcap.Capability, cfg *config.Config, repoRoot string) *Pipeline {
	return &Pipeline{Store: st, Parsers: parsers, Cache: cache, LLM: llm, Config: cfg, RepoRoot: repoRoot}
}

// EncodeOptions governs one Encode call.
type EncodeOptions struct {
	// RequireLLM forces Phase 2 to run; a missing LLM collaborator then
	// fails the run instead of silently skipping it (spec.md §4.4).
	RequireLLM bool
}

// Result is the well-formed, possibly-degenerate outcome of an Encode call
// (spec.md §7 "The encoder must always return a well-formed result, even
// if degenerate").
type Result struct {
	FilesDiscovered int
	FilesProcessed  int
	NodesCreated    int
	Warnings        []string
	Cancelled       bool
	Duration        time.Duration
	Revision        string
}

// Encode runs the full three-phase pipeline against p.RepoRoot, per
// spec.md §4.4. Cancellation via ctx is honored at file-loop boundaries
// (spec.md §5 "Cancellation"): a cancelled Phase 1 leaves the graph
// consistent through the last completed file and skips Phase 2/3 entirely,
// so no half-built hierarchy is ever observable.
func (p *Pipeline) Encode(ctx context.Context, opts EncodeOptions) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryEncoder, "Pipeline.Encode")
	defer timer.Stop()

	start := time.Now()
	result := &Result{}
	p.dataFlowEdges = nil

	files, discWarnings, err := DiscoverFiles(ctx, p.RepoRoot, p.Config.Discovery)
	result.Warnings = append(result.Warnings, discWarnings...)
	if err != nil {
		return result, err
	}
	result.FilesDiscovered = len(files)

	parseResults, p1Warnings, cancelled := p.phase1(ctx, files)
	result.Warnings = append(result.Warnings, p1Warnings...)
	result.FilesProcessed = len(parseResults)
	if cancelled {
		result.Cancelled = true
		result.Duration = time.Since(start)
		return result, nil
	}

	if p.Config.Semantic.UseLLM || opts.RequireLLM {
		if p.LLM == nil {
			if opts.RequireLLM {
				return result, &llmcap.ErrUnavailable{Reason: "LLM required but no capability configured"}
			}
			logging.Get(logging.CategoryEncoder).Info("phase 2 skipped: LLM requested but unavailable, no capability configured")
		} else {
			p2Warnings, err := p.phase2(ctx, parseResults)
			result.Warnings = append(result.Warnings, p2Warnings...)
			if err != nil && opts.RequireLLM {
				return result, err
			}
		}
	} else {
		logging.Get(logging.CategoryEncoder).Info("phase 2 skipped silently: no LLM configured and none requested")
	}

	p3Warnings := p.phase3(ctx, parseResults)
	result.Warnings = append(result.Warnings, p3Warnings...)

	st, err := p.Store.Stats(ctx)
	if err == nil {
		result.NodesCreated = st.HighLevelNodes + st.LowLevelNodes
	}

	nodes, _ := p.Store.GetNodes(ctx, nil)
	edges, _ := p.Store.GetEdges(ctx, nil)
	result.Revision = graph.Revision(nodes, edges)

	result.Duration = time.Since(start)
	return result, nil
}
