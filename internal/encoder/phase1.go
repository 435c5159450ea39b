package encoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/logging"
	"github.com/pleaseai/soop-sub000/internal/semcache"
)

// maxParallelFiles bounds Phase 1's file fan-out (spec.md §5 "Parallelism
// across files is permitted only if the Graph Store is externally
// synchronized" — MemStore and SQLiteStore both guard every mutation with
// their own mutex, so concurrent liftFile calls are safe).
func maxParallelFiles() int {
	if n := runtime.NumCPU(); n > 1 {
		if n > 8 {
			return 8
		}
		return n
	}
	return 1
}

// phase1 implements spec.md §4.4 "Phase 1 — Semantic Lifting." For each
// discovered file it parses, lifts every child entity into a Low-Level
// node (cache-checked), lifts the file itself, and wires functional edges
// file -> child. It returns the per-file ParseResult map Phase 3 needs for
// dependency/data-flow grounding. Files are lifted concurrently, bounded by
// maxParallelFiles, via golang.org/x/sync/errgroup; results are collected
// under a plain mutex since ordering does not matter for the returned map.
func (p *Pipeline) phase1(ctx context.Context, files []string) (map[string]rpgast.ParseResult, []string, bool) {
	timer := logging.StartTimer(logging.CategoryEncoder, "Pipeline.phase1")
	defer timer.Stop()

	results := make(map[string]rpgast.ParseResult, len(files))
	var warnings []string
	var mu sync.Mutex
	cancelled := false

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFiles())

	for _, relPath := range files {
		relPath := relPath
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if cancelled {
			break
		}

		g.Go(func() error {
			select {
			case <-gctx.Done():
				mu.Lock()
				cancelled = true
				mu.Unlock()
				return nil
			default:
			}

			pr, err := p.liftFile(gctx, relPath)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logging.Get(logging.CategoryEncoder).Warn("phase 1: skipping %s: %v", relPath, err)
				warnings = append(warnings, fmt.Sprintf("parse error in %s: %v", relPath, err))
				return nil
			}
			results[relPath] = pr
			return nil
		})
	}

	_ = g.Wait()

	if p.Cache != nil {
		if err := p.Cache.Save(); err != nil {
			logging.Get(logging.CategoryEncoder).Warn("phase 1: cache save failed: %v", err)
		}
	}

	if cancelled {
		logging.Get(logging.CategoryEncoder).Info("phase 1 cancelled after %d/%d files", len(results), len(files))
		return results, warnings, true
	}

	return results, warnings, false
}

// liftFile parses one file, lifts its child entities and itself into the
// graph, and returns the raw ParseResult for Phase 3.
func (p *Pipeline) liftFile(ctx context.Context, relPath string) (rpgast.ParseResult, error) {
	content, err := os.ReadFile(filepath.Join(p.RepoRoot, relPath))
	if err != nil {
		return rpgast.ParseResult{}, fmt.Errorf("read: %w", err)
	}

	pr, err := p.Parsers.ParseFile(relPath, content)
	if err != nil {
		return rpgast.ParseResult{}, fmt.Errorf("parse: %w", err)
	}

	var childFeatures []graph.Feature
	for _, entity := range pr.Entities {
		entityID := fmt.Sprintf("%s:%s:%s:%d", relPath, entity.Kind, entity.Name, entity.StartLine)
		feature := p.extractFeature(relPath, entity)
		childFeatures = append(childFeatures, feature)

		node := graph.Node{
			ID:         entityID,
			Variant:    graph.LowLevel,
			Feature:    feature,
			EntityKind: graph.EntityKind(entity.Kind),
			Metadata: &graph.Metadata{
				EntityType:    string(entity.Kind),
				Path:          relPath,
				QualifiedName: qualifiedName(entity),
				Language:      pr.Language,
				StartLine:     entity.StartLine,
				EndLine:       entity.EndLine,
			},
		}
		if p.Config.Discovery.IncludeSource {
			node.SourceCode = entity.Source
		}

		if err := p.Store.AddNode(ctx, node); err != nil {
			logging.Get(logging.CategoryEncoder).Warn("phase 1: add node %s: %v", entityID, err)
			continue
		}
	}

	fileID := relPath + ":file"
	fileFeature := extractFileFeature(relPath, childFeatures)
	fileNode := graph.Node{
		ID:         fileID,
		Variant:    graph.LowLevel,
		Feature:    fileFeature,
		EntityKind: graph.EntityFile,
		Metadata: &graph.Metadata{
			EntityType: string(graph.EntityFile),
			Path:       relPath,
			Language:   pr.Language,
		},
	}
	if err := p.Store.AddNode(ctx, fileNode); err != nil {
		return pr, fmt.Errorf("add file node: %w", err)
	}

	order := 0
	for _, entity := range pr.Entities {
		entityID := fmt.Sprintf("%s:%s:%s:%d", relPath, entity.Kind, entity.Name, entity.StartLine)
		if ok, _ := p.Store.HasNode(ctx, entityID); !ok {
			continue
		}
		edge := graph.FunctionalEdge(fileID, entityID, 0, order)
		order++
		if err := p.Store.AddEdge(ctx, edge); err != nil {
			logging.Get(logging.CategoryEncoder).Warn("phase 1: add edge %s->%s: %v", fileID, entityID, err)
		}
	}

	return pr, nil
}

// extractFeature checks the semantic cache first; on a miss (or no cache
// configured) it falls back to the deterministic heuristic extractor. A
// configured LLM capability is consulted by the Interactive Protocol's
// batch submission path instead — Phase 1 of a non-interactive encode uses
// the heuristic extractor uniformly, matching spec.md §4.4's framing of
// "Semantic Extractor" as the cache-backed per-entity step distinct from
// Phase 2's LLM-driven domain discovery.
func (p *Pipeline) extractFeature(relPath string, entity rpgast.CodeEntity) graph.Feature {
	if p.Cache == nil {
		return extractHeuristicFeature(entity)
	}

	key := semcache.Input{
		Key: semcache.Key{
			FilePath:   relPath,
			EntityKind: string(entity.Kind),
			EntityName: entity.Name,
		},
		Parent:        entity.Parent,
		SourceSnippet: entity.Source,
		Documentation: entity.Doc,
	}
	if feature, ok := p.Cache.Get(key); ok {
		return feature
	}

	feature := extractHeuristicFeature(entity)
	p.Cache.Set(key, feature)
	return feature
}

func qualifiedName(entity rpgast.CodeEntity) string {
	if entity.Parent == "" {
		return entity.Name
	}
	return entity.Parent + "." + entity.Name
}
