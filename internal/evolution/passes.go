package evolution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/logging"
	"github.com/pleaseai/soop-sub000/internal/store"
)

// deletePass removes every node rooted at each deleted file's file node,
// along with its incident edges, so that the Modify and Insert passes never
// observe stale entities (spec.md §4.5 step 1 "Delete").
func (e *Engine) deletePass(ctx context.Context, paths []string, result *Result) error {
	for _, relPath := range paths {
		fileID := relPath + ":file"
		pruned, err := e.pruneFile(ctx, fileID)
		if err != nil {
			return fmt.Errorf("evolution: delete pass %s: %w", relPath, err)
		}
		result.Deleted += len(pruned)
		result.PrunedNodes = append(result.PrunedNodes, pruned...)
	}
	return nil
}

// pruneFile removes the file node and every descendant reachable via
// functional edges, returning the ids removed.
func (e *Engine) pruneFile(ctx context.Context, fileID string) ([]string, error) {
	if ok, err := e.Store.HasNode(ctx, fileID); err != nil || !ok {
		return nil, err
	}

	var ids []string
	queue := []string{fileID}
	seen := map[string]bool{fileID: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		ids = append(ids, cur)

		children, err := e.Store.GetChildren(ctx, cur)
		if err != nil {
			return ids, err
		}
		for _, c := range children {
			if !seen[c.ID] {
				seen[c.ID] = true
				queue = append(queue, c.ID)
			}
		}
	}

	// Remove leaves first so no dangling-reference invariant is ever
	// transiently observed (spec.md §4.1 I-NODE "no edge may reference a
	// removed node").
	for i := len(ids) - 1; i >= 0; i-- {
		if err := e.removeNodeAndEdges(ctx, ids[i]); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

func (e *Engine) removeNodeAndEdges(ctx context.Context, id string) error {
	outFunc, _ := e.Store.GetOutEdges(ctx, id, graph.Functional)
	inFunc, _ := e.Store.GetInEdges(ctx, id, graph.Functional)
	outDep, _ := e.Store.GetOutEdges(ctx, id, graph.Dependency)
	inDep, _ := e.Store.GetInEdges(ctx, id, graph.Dependency)

	for _, edges := range [][]graph.Edge{outFunc, inFunc, outDep, inDep} {
		for _, edge := range edges {
			_ = e.Store.RemoveEdge(ctx, edge.Source, edge.Target, edge.Type)
		}
	}
	return e.Store.RemoveNode(ctx, id)
}

// modifyPass re-lifts each modified file, compares the new feature set to
// the stored one by Jaccard distance over keyword sets, and either updates
// the node in place (drift at or below threshold) or re-routes it (drift
// above threshold) — spec.md §4.5 step 2 "Modify" and "Drift metric".
func (e *Engine) modifyPass(ctx context.Context, paths []string, opts Options, result *Result) error {
	for _, relPath := range paths {
		if err := e.modifyFile(ctx, relPath, opts, result); err != nil {
			return fmt.Errorf("evolution: modify pass %s: %w", relPath, err)
		}
	}
	return nil
}

func (e *Engine) modifyFile(ctx context.Context, relPath string, opts Options, result *Result) error {
	content, err := os.ReadFile(filepath.Join(e.RepoRoot, relPath))
	if err != nil {
		return err
	}

	pr, err := e.Parsers.ParseFile(relPath, content)
	if err != nil {
		return err
	}

	for _, entity := range pr.Entities {
		entityID := fmt.Sprintf("%s:%s:%s:%d", relPath, entity.Kind, entity.Name, entity.StartLine)
		newFeature := heuristicFeature(entity)

		existing, err := e.Store.GetNode(ctx, entityID)
		if err != nil {
			return err
		}
		if existing == nil {
			// An entity added inside a modified file has no node yet and is
			// skipped: this pass does not insert it, and nodes of entities
			// removed from a modified file are not deleted either.
			continue
		}

		drift := jaccardDistance(existing.Feature.Keywords, newFeature.Keywords)
		if drift > opts.DriftThreshold {
			result.Rerouted++
			if e.Router != nil {
				if err := e.Router.RouteDrifted(ctx, entityID, newFeature); err != nil {
					logging.Get(logging.CategoryEvolution).Warn("modify: route drifted %s: %v", entityID, err)
					_ = e.Store.UpdateNode(ctx, entityID, store.Patch{Feature: &newFeature})
				}
			} else {
				_ = e.Store.UpdateNode(ctx, entityID, store.Patch{Feature: &newFeature})
			}
		} else {
			if err := e.Store.UpdateNode(ctx, entityID, store.Patch{Feature: &newFeature}); err != nil {
				return err
			}
		}
		result.Modified++
	}
	return nil
}

// insertPass lifts every newly-added file's entities as new Low-Level
// nodes and wires the file->child functional edges (spec.md §4.5 step 3
// "Insert"). Hierarchy placement and dependency edges are left for the next
// full or partial encode; Insert only guarantees the new entities exist and
// are reachable from their file node, per spec.md §4.5 "Scheduling."
func (e *Engine) insertPass(ctx context.Context, paths []string, opts Options, result *Result) error {
	for _, relPath := range paths {
		if err := e.insertFile(ctx, relPath, opts, result); err != nil {
			return fmt.Errorf("evolution: insert pass %s: %w", relPath, err)
		}
	}
	return nil
}

func (e *Engine) insertFile(ctx context.Context, relPath string, opts Options, result *Result) error {
	content, err := os.ReadFile(filepath.Join(e.RepoRoot, relPath))
	if err != nil {
		return err
	}
	pr, err := e.Parsers.ParseFile(relPath, content)
	if err != nil {
		return err
	}

	fileID := relPath + ":file"
	if ok, _ := e.Store.HasNode(ctx, fileID); !ok {
		fileNode := graph.Node{
			ID:         fileID,
			Variant:    graph.LowLevel,
			Feature:    graph.NewFeature("file "+filepath.Base(relPath), splitKeywords(filepath.Base(relPath))),
			EntityKind: graph.EntityFile,
			Metadata:   &graph.Metadata{EntityType: string(graph.EntityFile), Path: relPath, Language: pr.Language},
		}
		if err := e.Store.AddNode(ctx, fileNode); err != nil {
			return err
		}
		result.Inserted++
	}

	order := 0
	for _, entity := range pr.Entities {
		entityID := fmt.Sprintf("%s:%s:%s:%d", relPath, entity.Kind, entity.Name, entity.StartLine)
		if ok, _ := e.Store.HasNode(ctx, entityID); ok {
			order++
			continue
		}

		node := graph.Node{
			ID:         entityID,
			Variant:    graph.LowLevel,
			Feature:    heuristicFeature(entity),
			EntityKind: graph.EntityKind(entity.Kind),
			Metadata: &graph.Metadata{
				EntityType: string(entity.Kind),
				Path:       relPath,
				Language:   pr.Language,
				StartLine:  entity.StartLine,
				EndLine:    entity.EndLine,
			},
		}
		if opts.IncludeSource {
			node.SourceCode = entity.Source
		}
		if err := e.Store.AddNode(ctx, node); err != nil {
			return err
		}
		result.Inserted++

		edge := graph.FunctionalEdge(fileID, entityID, 0, order)
		order++
		if err := e.Store.AddEdge(ctx, edge); err != nil {
			logging.Get(logging.CategoryEvolution).Warn("insert: add edge %s -> %s: %v", fileID, entityID, err)
		}
	}
	return nil
}

// heuristicFeature lifts a Feature without an LLM, along the lines of the
// Encoder Pipeline's cache-miss fallback (internal/encoder's
// extractHeuristicFeature) but not identical to it: names are split only on
// '_', '-' and '.' (no camelCase splitting), the fallback description is the
// kind plus the raw name, and the documentation text is folded into the
// keyword set, so that doc-only changes register in Evolution's drift metric.
func heuristicFeature(entity rpgast.CodeEntity) graph.Feature {
	desc := strings.TrimSpace(entity.Doc)
	if desc == "" {
		desc = string(entity.Kind) + " " + entity.Name
	} else if idx := strings.IndexByte(desc, '\n'); idx >= 0 {
		desc = desc[:idx]
	}

	keywords := splitKeywords(entity.Name)
	keywords = append(keywords, string(entity.Kind))
	if entity.Parent != "" {
		keywords = append(keywords, splitKeywords(entity.Parent)...)
	}
	keywords = append(keywords, strings.Fields(desc)...)

	return graph.NewFeature(desc, keywords)
}

// jaccardDistance is 1 - |A n B| / |A u B|, spec.md §4.5's drift metric over
// keyword sets (0 = identical, 1 = disjoint).
func jaccardDistance(a, b []string) float64 {
	setA := make(map[string]bool, len(a))
	for _, w := range a {
		setA[strings.ToLower(w)] = true
	}
	setB := make(map[string]bool, len(b))
	for _, w := range b {
		setB[strings.ToLower(w)] = true
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	union := make(map[string]bool, len(setA)+len(setB))
	for w := range setA {
		union[w] = true
		if setB[w] {
			intersection++
		}
	}
	for w := range setB {
		union[w] = true
	}
	if len(union) == 0 {
		return 0
	}
	return 1 - float64(intersection)/float64(len(union))
}

func splitKeywords(name string) []string {
	var words []string
	var cur strings.Builder
	for _, r := range name {
		if r == '_' || r == '-' || r == '.' {
			if cur.Len() > 0 {
				words = append(words, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		words = append(words, cur.String())
	}
	if len(words) == 0 {
		return []string{name}
	}
	return words
}
