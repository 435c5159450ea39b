package encoder

import (
	"context"
	"path"
	"sort"
	"strings"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/logging"
	"github.com/pleaseai/soop-sub000/internal/store"
)

// candidateExtensions, with the /index.<ext> fallback inside resolveImport,
// implements spec.md §4.4 Phase 3 step 2's "candidate expansion": an import
// string is resolved to a known file id by trying each extension, then an
// /index.<ext> variant.
var candidateExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".py", ""}

// phase3 implements spec.md §4.4 "Phase 3 — Artifact Grounding": metadata
// propagation onto High-Level nodes, import-based dependency injection, and
// data-flow edge emission. Each sub-step's errors are collected as warnings
// rather than aborting the run (spec.md §4.4 "Failure policy").
func (p *Pipeline) phase3(ctx context.Context, parseResults map[string]rpgast.ParseResult) []string {
	timer := logging.StartTimer(logging.CategoryEncoder, "Pipeline.phase3")
	defer timer.Stop()

	var warnings []string

	if err := p.propagateMetadata(ctx); err != nil {
		warnings = append(warnings, "metadata propagation: "+err.Error())
	}

	knownFiles := make(map[string]bool, len(parseResults))
	for relPath := range parseResults {
		knownFiles[relPath] = true
	}

	depEdges, dfEdges, depWarnings := p.injectDependencies(ctx, parseResults, knownFiles)
	warnings = append(warnings, depWarnings...)

	for _, e := range depEdges {
		if err := p.Store.AddEdge(ctx, e); err != nil {
			logging.Get(logging.CategoryEncoder).Warn("phase3: add dependency edge %s -> %s: %v", e.Source, e.Target, err)
		}
	}

	p.dataFlowEdges = append(p.dataFlowEdges, dfEdges...)

	return warnings
}

// propagateMetadata computes, for every High-Level node, the lowest common
// ancestor path of its descendant files, setting metadata.extra.paths when
// descendants span disjoint subtrees (spec.md §4.4 Phase 3 step 1).
func (p *Pipeline) propagateMetadata(ctx context.Context) error {
	nodes, err := p.Store.GetNodes(ctx, &store.NodeFilter{Variant: graph.HighLevel})
	if err != nil {
		return err
	}

	for _, n := range nodes {
		filePaths, err := p.descendantFilePaths(ctx, n.ID)
		if err != nil {
			logging.Get(logging.CategoryEncoder).Warn("phase3: descendant paths for %s: %v", n.ID, err)
			continue
		}
		if len(filePaths) == 0 {
			continue
		}

		lca := lowestCommonAncestorDir(filePaths)
		meta := &graph.Metadata{EntityType: "module", Path: lca}
		if !allShareDir(filePaths, lca) {
			reps := representativePaths(filePaths)
			meta.Extra = map[string]interface{}{"paths": reps}
		}
		if err := p.Store.UpdateNode(ctx, n.ID, store.Patch{Metadata: meta}); err != nil {
			logging.Get(logging.CategoryEncoder).Warn("phase3: update metadata for %s: %v", n.ID, err)
		}
	}
	return nil
}

// descendantFilePaths collects every Low-Level file node reachable from id
// via functional edges.
func (p *Pipeline) descendantFilePaths(ctx context.Context, id string) ([]string, error) {
	var out []string
	queue := []string{id}
	seen := map[string]bool{id: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		children, err := p.Store.GetChildren(ctx, cur)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			if c.EntityKind == graph.EntityFile {
				if c.Metadata != nil {
					out = append(out, c.Metadata.Path)
				}
			} else {
				queue = append(queue, c.ID)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func lowestCommonAncestorDir(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	common := strings.Split(path.Dir(paths[0]), "/")
	for _, p := range paths[1:] {
		segs := strings.Split(path.Dir(p), "/")
		common = commonPrefix(common, segs)
	}
	return strings.Join(common, "/")
}

func commonPrefix(a, b []string) []string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

func allShareDir(paths []string, dir string) bool {
	for _, p := range paths {
		if path.Dir(p) != dir {
			return false
		}
	}
	return true
}

func representativePaths(paths []string) []string {
	if len(paths) <= 5 {
		return paths
	}
	return paths[:5]
}

// injectDependencies implements spec.md §4.4 Phase 3 steps 2-3: for every
// import in every file, resolve it to a known file id via candidate
// expansion and emit a deduplicated dependency edge plus a matching
// data-flow edge.
func (p *Pipeline) injectDependencies(ctx context.Context, parseResults map[string]rpgast.ParseResult, knownFiles map[string]bool) ([]graph.Edge, []graph.Edge, []string) {
	var depEdges, dfEdges []graph.Edge
	var warnings []string
	seen := make(map[string]bool)

	var sourceFiles []string
	for relPath := range parseResults {
		sourceFiles = append(sourceFiles, relPath)
	}
	sort.Strings(sourceFiles)

	for _, relPath := range sourceFiles {
		pr := parseResults[relPath]
		srcID := relPath + ":file"
		for _, imp := range pr.Imports {
			target, ok := resolveImport(relPath, imp.Module, knownFiles)
			if !ok {
				continue
			}
			targetID := target + ":file"
			if targetID == srcID {
				continue
			}
			dedupKey := srcID + "->" + targetID
			if seen[dedupKey] {
				continue
			}
			seen[dedupKey] = true

			depEdges = append(depEdges, graph.DependencyEdge(srcID, targetID, graph.DepImport, 0, true))
			dfEdges = append(dfEdges, graph.DataFlowEdge(srcID, targetID, imp.Module, "import"))
		}
	}
	return depEdges, dfEdges, warnings
}

// resolveImport expands candidate paths for an import string, per spec.md
// §4.4 Phase 3 step 2: a module string starting with "." is taken relative
// to the importing file's directory, any other module string as a path
// from the repo root; that one base is tried with candidateExtensions and
// then an /index.<ext> fallback.
func resolveImport(fromPath, module string, knownFiles map[string]bool) (string, bool) {
	if module == "" {
		return "", false
	}
	bases := []string{module}
	if strings.HasPrefix(module, ".") {
		bases = []string{path.Clean(path.Join(path.Dir(fromPath), module))}
	}

	for _, base := range bases {
		for _, ext := range candidateExtensions {
			candidate := base + ext
			if knownFiles[candidate] {
				return candidate, true
			}
		}
		for _, ext := range candidateExtensions {
			if ext == "" {
				continue
			}
			candidate := path.Join(base, "index"+ext)
			if knownFiles[candidate] {
				return candidate, true
			}
		}
	}
	return "", false
}
