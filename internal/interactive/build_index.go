package interactive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/config"
	"github.com/pleaseai/soop-sub000/internal/encoder"
	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/logging"
)

// maxCharsPerBatch and maxEntitiesPerBatch are spec.md §4.6's defaults:
// "token budget (default ~2000 tokens ~= 4 chars/token), each batch capped
// to at most N entities (default 15)."
const (
	maxCharsPerBatch    = 2000 * 4
	maxEntitiesPerBatch = 15
	maxSnippetChars     = 3000
)

// BuildIndexResult summarizes a BuildIndex call (spec.md §4.6 step 1
// "Returns counts + next-action hint").
type BuildIndexResult struct {
	FilesDiscovered int
	EntitiesFound   int
	BatchCount      int
	Warnings        []string
	NextAction      string
}

// BuildIndex implements spec.md §4.6 step 1: discover files, parse them,
// insert placeholder Low-Level nodes, precompute batch boundaries, and reset
// every other piece of session state. It may run more than once on the
// same Session: a later call re-runs discovery and resets the session
// state, reusing placeholder nodes already in the store.
func (s *Session) BuildIndex(ctx context.Context, filters config.DiscoveryConfig) (*BuildIndexResult, error) {
	timer := logging.StartTimer(logging.CategoryInteractive, "Session.BuildIndex")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	files, discWarnings, err := encoder.DiscoverFiles(ctx, s.RepoRoot, filters)
	if err != nil {
		return nil, fmt.Errorf("interactive: discover files: %w", err)
	}

	var entities []Entity
	var warnings []string
	warnings = append(warnings, discWarnings...)

	sort.Strings(files)
	for _, relPath := range files {
		content, err := os.ReadFile(filepath.Join(s.RepoRoot, relPath))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("read %s: %v", relPath, err))
			continue
		}
		pr, err := s.Parsers.ParseFile(relPath, content)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("parse %s: %v", relPath, err))
			continue
		}

		fileID := relPath + ":file"
		fileNode := graph.Node{
			ID:         fileID,
			Variant:    graph.LowLevel,
			EntityKind: graph.EntityFile,
			Metadata:   &graph.Metadata{EntityType: string(graph.EntityFile), Path: relPath, Language: pr.Language},
		}
		if err := s.Store.AddNode(ctx, fileNode); err != nil && !errors.Is(err, graph.ErrDuplicateNode) {
			warnings = append(warnings, fmt.Sprintf("placeholder node for %s: %v", relPath, err))
		}

		for _, e := range pr.Entities {
			entityID := entityIDOf(relPath, e)
			node := graph.Node{
				ID:         entityID,
				Variant:    graph.LowLevel,
				EntityKind: graph.EntityKind(e.Kind),
				Metadata: &graph.Metadata{
					EntityType: string(e.Kind),
					Path:       relPath,
					Language:   pr.Language,
					StartLine:  e.StartLine,
					EndLine:    e.EndLine,
				},
			}
			if err := s.Store.AddNode(ctx, node); err != nil {
				if !errors.Is(err, graph.ErrDuplicateNode) {
					warnings = append(warnings, fmt.Sprintf("placeholder node for %s: %v", entityID, err))
					continue
				}
			} else if err := s.Store.AddEdge(ctx, graph.FunctionalEdge(fileID, entityID, 0, len(entities))); err != nil {
				warnings = append(warnings, fmt.Sprintf("link %s -> %s: %v", fileID, entityID, err))
			}

			entities = append(entities, Entity{
				ID: entityID, Path: relPath, Kind: e.Kind, Name: e.Name, Parent: e.Parent,
				Doc: e.Doc, Source: e.Source, StartLine: e.StartLine, EndLine: e.EndLine,
			})
		}
	}

	s.Entities = entities
	s.BatchBoundaries = packEntities(entities, maxCharsPerBatch, maxEntitiesPerBatch)
	s.LiftedFeatures = make(map[string]graph.Feature)
	s.FileFeatures = make(map[string]graph.Feature)
	s.SynthesizedFeatures = make(map[string]graph.Feature)
	s.HierarchyAssignments = make(map[string]string)
	s.PendingRouting = nil
	s.Phase = PhaseFeatures
	s.GraphRevision = s.computeRevision()

	s.persist(ctx)

	nextAction := "get_entity_batch"
	if len(s.BatchBoundaries) == 0 {
		nextAction = "finalize_features"
	}

	return &BuildIndexResult{
		FilesDiscovered: len(files),
		EntitiesFound:   len(entities),
		BatchCount:      len(s.BatchBoundaries),
		Warnings:        warnings,
		NextAction:      nextAction,
	}, nil
}

func entityIDOf(relPath string, e rpgast.CodeEntity) string {
	return fmt.Sprintf("%s:%s:%s:%d", relPath, e.Kind, e.Name, e.StartLine)
}

// packEntities implements spec.md §4.6's batch-packing rule: greedily pack
// entities (in order) into batches whose summed source length stays under
// maxChars, each batch capped at maxCount entities.
func packEntities(entities []Entity, maxChars, maxCount int) []Batch {
	var batches []Batch
	start := 0
	chars := 0
	count := 0
	for i, e := range entities {
		size := len(e.Source)
		if count > 0 && (chars+size > maxChars || count >= maxCount) {
			batches = append(batches, Batch{Start: start, End: i})
			start = i
			chars = 0
			count = 0
		}
		chars += size
		count++
	}
	if count > 0 {
		batches = append(batches, Batch{Start: start, End: len(entities)})
	}
	return batches
}
