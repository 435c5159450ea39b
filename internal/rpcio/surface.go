package rpcio

import (
	"context"
	"fmt"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/config"
	"github.com/pleaseai/soop-sub000/internal/encoder"
	"github.com/pleaseai/soop-sub000/internal/evolution"
	"github.com/pleaseai/soop-sub000/internal/interactive"
	"github.com/pleaseai/soop-sub000/internal/llmcap"
	"github.com/pleaseai/soop-sub000/internal/query"
	"github.com/pleaseai/soop-sub000/internal/semcache"
	"github.com/pleaseai/soop-sub000/internal/store"
)

// Server owns every collaborator the full spec.md §6 tool surface needs and
// builds a Registry over them. One Server serves one repository's Graph
// Store, matching spec.md §5 "Graph Store handle: owned by the Encoder (or
// the interactive session); no sharing across sessions" — the interactive
// tools below all share the one *interactive.Session a Server lazily
// creates on its first interactive tool call, rather than one per request.
type Server struct {
	Store    store.Store
	Parsers  *rpgast.Registry
	Cache    *semcache.Cache
	LLM      llmcap.Capability
	Config   *config.Config
	RepoRoot string

	query   *query.Surface
	router  evolution.Router // passed to evolve; nothing sets it, so evolve runs with a nil Router
	session *interactive.Session
}

// NewServer builds a Server. llm and cache may be nil (spec.md §4.4 Phase 2
// is skipped silently without an LLM; a nil cache disables the semantic
// cache rather than failing encode).
func NewServer(st store.Store, parsers *rpgast.Registry, cache *semcache.Cache, llm llmcap.Capability, cfg *config.Config, repoRoot string) *Server {
	return &Server{
		Store:    st,
		Parsers:  parsers,
		Cache:    cache,
		LLM:      llm,
		Config:   cfg,
		RepoRoot: repoRoot,
		query:    query.New(st, cfg),
	}
}

// interactiveSession lazily builds the interactive session the protocol
// tools share. The session is not wired as evolve's Router: s.router stays
// nil, so evolve updates drifted entities in place.
func (s *Server) interactiveSession() *interactive.Session {
	if s.session == nil {
		s.session = interactive.NewSession(s.Store, s.Parsers, s.Config, s.RepoRoot)
	}
	return s.session
}

// Registry builds the full spec.md §6 tool surface bound to this Server.
func (s *Server) Registry() *Registry {
	r := NewRegistry()
	for _, t := range []*Tool{
		s.searchTool(), s.fetchTool(), s.exploreTool(),
		s.encodeTool(), s.evolveTool(), s.statsTool(),
		s.buildIndexTool(), s.getEntityBatchTool(), s.submitFeaturesTool(),
		s.finalizeFeaturesTool(), s.getSynthesisBatchTool(), s.submitSynthesisTool(),
		s.getHierarchyContextTool(), s.submitHierarchyTool(),
		s.getRoutingBatchTool(), s.submitRoutingTool(),
	} {
		if err := r.Register(t); err != nil {
			panic(fmt.Sprintf("rpcio: %v", err)) // duplicate names are a programming error, caught at construction
		}
	}
	return r
}

func (s *Server) searchTool() *Tool {
	return &Tool{
		Name:        "search",
		Description: "Search the graph by feature description/keywords, by file path pattern, or both, staged (spec.md §4.7).",
		Schema: Schema{
			Properties: map[string]Property{
				"mode":          {Type: "string", Description: "features | snippets | auto", Default: "auto"},
				"feature_terms": {Type: "string", Description: "Free-text query tokenised into prefix-match constraints"},
				"file_pattern":  {Type: "string", Description: "Glob or regex-style path pattern"},
				"scopes":        {Type: "array", Description: "Node ids restricting results to their functional subtrees"},
				"strategy":      {Type: "string", Description: "hybrid | vector | fts | string", Default: "string"},
				"k":             {Type: "integer", Description: "Max results", Default: 10},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			req := query.SearchRequest{
				Mode:         query.Mode(decodeString(args, "mode")),
				FeatureTerms: decodeString(args, "feature_terms"),
				FilePattern:  decodeString(args, "file_pattern"),
				Scopes:       decodeStringSlice(args, "scopes"),
				Strategy:     store.SearchStrategy(decodeString(args, "strategy")),
				K:            decodeInt(args, "k", 10),
			}
			return s.query.Search(ctx, req)
		},
	}
}

func (s *Server) fetchTool() *Tool {
	return &Tool{
		Name:        "fetch",
		Description: "Resolve node ids to their node, source snippet, and root-to-node feature path (spec.md §4.7).",
		Schema: Schema{
			Properties: map[string]Property{
				"code_entities":    {Type: "array", Description: "Low-Level node ids"},
				"feature_entities": {Type: "array", Description: "Any node ids"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			req := query.FetchRequest{
				CodeEntities:    decodeStringSlice(args, "code_entities"),
				FeatureEntities: decodeStringSlice(args, "feature_entities"),
			}
			return s.query.Fetch(ctx, req)
		},
	}
}

func (s *Server) exploreTool() *Tool {
	return &Tool{
		Name:        "explore",
		Description: "Traverse the graph from a start node up to max_depth (spec.md §4.7, same contract as Graph Store.traverse).",
		Schema: Schema{
			Required: []string{"start"},
			Properties: map[string]Property{
				"start":     {Type: "string", Description: "Start node id"},
				"edge_type": {Type: "string", Description: "functional | dependency | both", Default: "both"},
				"direction": {Type: "string", Description: "out | in | both", Default: "out"},
				"max_depth": {Type: "integer", Description: "Maximum BFS depth", Default: 0},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			req := query.ExploreRequest{
				Start:     decodeString(args, "start"),
				EdgeKind:  store.EdgeKind(decodeString(args, "edge_type")),
				Direction: store.Direction(decodeString(args, "direction")),
				MaxDepth:  decodeInt(args, "max_depth", 0),
			}
			return s.query.Explore(ctx, req)
		},
	}
}

func (s *Server) encodeTool() *Tool {
	return &Tool{
		Name:        "encode",
		Description: "Run the full three-phase encoder pipeline against the repository root (spec.md §4.4).",
		Schema: Schema{
			Properties: map[string]Property{
				"require_llm": {Type: "boolean", Description: "Fail instead of silently skipping Phase 2 if no LLM is configured", Default: false},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			pipeline := encoder.New(s.Store, s.Parsers, s.Cache, s.LLM, s.Config, s.RepoRoot)
			return pipeline.Encode(ctx, encoder.EncodeOptions{RequireLLM: decodeBool(args, "require_llm", false)})
		},
	}
}

func (s *Server) evolveTool() *Tool {
	return &Tool{
		Name:        "evolve",
		Description: "Diff-driven incremental update of the graph from a git commit range (spec.md §4.5).",
		Schema: Schema{
			Required: []string{"to_rev"},
			Properties: map[string]Property{
				"from_rev":                   {Type: "string", Description: "Base revision; empty means the single commit at to_rev"},
				"to_rev":                     {Type: "string", Description: "Target revision"},
				"drift_threshold":            {Type: "number", Description: "Jaccard distance above which a modified entity reroutes", Default: 0.3},
				"use_llm":                    {Type: "boolean", Default: false},
				"include_source":             {Type: "boolean", Default: false},
				"force_regenerate_threshold": {Type: "number", Default: 0.5},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			diff, err := evolution.ParseGitDiff(ctx, s.RepoRoot, decodeString(args, "from_rev"), decodeString(args, "to_rev"))
			if err != nil {
				return nil, err
			}
			opts := evolution.DefaultOptions()
			opts.DriftThreshold = decodeFloat(args, "drift_threshold", opts.DriftThreshold)
			opts.UseLLM = decodeBool(args, "use_llm", opts.UseLLM)
			opts.IncludeSource = decodeBool(args, "include_source", opts.IncludeSource)
			opts.ForceRegenerateThreshold = decodeFloat(args, "force_regenerate_threshold", opts.ForceRegenerateThreshold)

			engine := evolution.New(s.Store, s.Parsers, s.router, s.RepoRoot)
			return engine.Run(ctx, diff, opts)
		},
	}
}

func (s *Server) statsTool() *Tool {
	return &Tool{
		Name:        "stats",
		Description: "Counts per node/edge variant (spec.md §4.1 stats()).",
		Schema:      Schema{},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			return s.Store.Stats(ctx)
		},
	}
}

func (s *Server) buildIndexTool() *Tool {
	return &Tool{
		Name:        "build_index",
		Description: "Discover files, parse, insert placeholder nodes, and precompute batches for the interactive protocol (spec.md §4.6 step 1).",
		Schema: Schema{
			Properties: map[string]Property{
				"include":    {Type: "array", Description: "Include globs; defaults to config.Discovery.Include"},
				"exclude":    {Type: "array", Description: "Exclude globs; defaults to config.Discovery.Exclude"},
				"max_depth":  {Type: "integer", Default: 10},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			filters := s.Config.Discovery
			if inc := decodeStringSlice(args, "include"); len(inc) > 0 {
				filters.Include = inc
			}
			if exc := decodeStringSlice(args, "exclude"); len(exc) > 0 {
				filters.Exclude = exc
			}
			filters.MaxDepth = decodeInt(args, "max_depth", filters.MaxDepth)
			return s.interactiveSession().BuildIndex(ctx, filters)
		},
	}
}

func (s *Server) getEntityBatchTool() *Tool {
	return &Tool{
		Name:        "get_entity_batch",
		Description: `Return one rendered batch of entities ("*" scope or a file path), with source snippets and, on batch 0, the instruction block (spec.md §4.6 step 2).`,
		Schema: Schema{
			Required: []string{"batch_index"},
			Properties: map[string]Property{
				"scope":       {Type: "string", Description: `"*" or a file path`, Default: "*"},
				"batch_index": {Type: "integer"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			scope := decodeString(args, "scope")
			if scope == "" {
				scope = "*"
			}
			return s.interactiveSession().GetEntityBatch(scope, decodeInt(args, "batch_index", 0))
		},
	}
}

func (s *Server) submitFeaturesTool() *Tool {
	return &Tool{
		Name:        "submit_features",
		Description: "Submit a batch of entity-id -> feature-list lifts; queues a routing entry on high drift (spec.md §4.6 step 3).",
		Schema: Schema{
			Required: []string{"features"},
			Properties: map[string]Property{
				"features": {Type: "object", Description: "entity_id -> list of feature strings"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			features, err := decodeFeatureMap(args, "features")
			if err != nil {
				return nil, err
			}
			return s.interactiveSession().SubmitFeatures(ctx, features)
		},
	}
}

func (s *Server) finalizeFeaturesTool() *Tool {
	return &Tool{
		Name:        "finalize_features",
		Description: "Aggregate file-level features from child entities and return the next-action hint (spec.md §4.6 step 4).",
		Schema:      Schema{},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			return s.interactiveSession().FinalizeFeatures(ctx)
		},
	}
}

func (s *Server) getSynthesisBatchTool() *Tool {
	return &Tool{
		Name:        "get_synthesis_batch",
		Description: "Return one batch of file features for holistic re-write (spec.md §4.6 step 5).",
		Schema: Schema{
			Required:   []string{"batch_index"},
			Properties: map[string]Property{"batch_index": {Type: "integer"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			return s.interactiveSession().GetSynthesisBatch(decodeInt(args, "batch_index", 0))
		},
	}
}

func (s *Server) submitSynthesisTool() *Tool {
	return &Tool{
		Name:        "submit_synthesis",
		Description: "Submit a holistic re-write of file features (spec.md §4.6 step 5).",
		Schema: Schema{
			Required:   []string{"synthesized"},
			Properties: map[string]Property{"synthesized": {Type: "object", Description: "file_path -> list of feature strings"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			synthesized, err := decodeFeatureMap(args, "synthesized")
			if err != nil {
				return nil, err
			}
			count, err := s.interactiveSession().SubmitSynthesis(ctx, synthesized)
			if err != nil {
				return nil, err
			}
			return map[string]int{"accepted": count}, nil
		},
	}
}

func (s *Server) getHierarchyContextTool() *Tool {
	return &Tool{
		Name:        "get_hierarchy_context",
		Description: "Return the file features the agent must assign Area/category/subcategory paths to (spec.md §4.6 step 6).",
		Schema:      Schema{},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			return s.interactiveSession().GetHierarchyContext()
		},
	}
}

func (s *Server) submitHierarchyTool() *Tool {
	return &Tool{
		Name:        "submit_hierarchy",
		Description: `Submit file_path -> "Area/category/subcategory" assignments; builds the High-Level spine (spec.md §4.6 step 6).`,
		Schema: Schema{
			Required:   []string{"assignments"},
			Properties: map[string]Property{"assignments": {Type: "object", Description: "file_path -> hierarchy path string"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			assignments, err := decodeStringMap(args, "assignments")
			if err != nil {
				return nil, err
			}
			return s.interactiveSession().SubmitHierarchy(ctx, assignments)
		},
	}
}

func (s *Server) getRoutingBatchTool() *Tool {
	return &Tool{
		Name:        "get_routing_batch",
		Description: "Return one batch of pending_routing entries awaiting keep or move decisions (spec.md §4.6 step 7).",
		Schema: Schema{
			Required:   []string{"batch_index"},
			Properties: map[string]Property{"batch_index": {Type: "integer"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			return s.interactiveSession().GetRoutingBatch(ctx, decodeInt(args, "batch_index", 0))
		},
	}
}

func (s *Server) submitRoutingTool() *Tool {
	return &Tool{
		Name:        "submit_routing",
		Description: "Apply Keep/Move decisions; fails with a stale-revision error if revision does not match graph_revision (spec.md §4.6 step 7, §7 StaleRevision).",
		Schema: Schema{
			Required: []string{"decisions", "revision"},
			Properties: map[string]Property{
				"decisions": {Type: "object", Description: "entity_id -> \"keep\" | \"move:<path>\"; any other value, including \"split\", is returned in Skipped"},
				"revision":  {Type: "string", Description: "Must equal the session's current graph_revision"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (any, error) {
			decisions, err := decodeStringMap(args, "decisions")
			if err != nil {
				return nil, err
			}
			return s.interactiveSession().SubmitRouting(ctx, decisions, decodeString(args, "revision"))
		},
	}
}
