package encoder

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/llmcap"
	"github.com/pleaseai/soop-sub000/internal/logging"
)

// FileFeatureGroup is one top-level-directory group of file-level features,
// the granularity compression spec.md §4.4 Phase 2 step 1 describes.
type FileFeatureGroup struct {
	Directory string
	Files     []FileFeature
}

// FileFeature pairs a file id with its lifted file-level feature.
type FileFeature struct {
	Path    string
	Feature graph.Feature
}

// domainDiscoverySchema is the JSON Schema the LLM is asked to conform to
// when proposing functional areas (spec.md §4.4 Phase 2 step 2).
var domainDiscoverySchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"areas": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
	},
	"required": []string{"areas"},
}

// hierarchySchema is the JSON Schema for the three-level path assignment
// (spec.md §4.4 Phase 2 step 3): file path -> "Area/category/subcategory".
var hierarchySchema = map[string]interface{}{
	"type":                 "object",
	"additionalProperties": map[string]interface{}{"type": "string"},
}

// phase2 implements spec.md §4.4 "Phase 2 — Structural Reorganization":
// group by top-level directory, LLM domain discovery, then hierarchical
// construction of the High-Level spine. Requires p.LLM to be non-nil; the
// caller (Pipeline.Encode) is responsible for the "skip silently / fail
// when required" policy.
func (p *Pipeline) phase2(ctx context.Context, parseResults map[string]rpgast.ParseResult) ([]string, error) {
	timer := logging.StartTimer(logging.CategoryEncoder, "Pipeline.phase2")
	defer timer.Stop()

	var warnings []string

	groups, err := p.groupFilesByTopDir(ctx, parseResults)
	if err != nil {
		return warnings, fmt.Errorf("phase2: group files: %w", err)
	}
	if len(groups) == 0 {
		return warnings, nil
	}

	areas, err := p.discoverDomains(ctx, groups)
	if err != nil {
		logging.Get(logging.CategoryEncoder).Warn("phase2: domain discovery failed, using directory names as areas: %v", err)
		warnings = append(warnings, "domain discovery fell back to directory names: "+err.Error())
		areas = directoryNamesAsAreas(groups)
	}

	assignments, err := p.assignHierarchy(ctx, groups, areas)
	if err != nil {
		logging.Get(logging.CategoryEncoder).Warn("phase2: hierarchy assignment failed, using heuristic paths: %v", err)
		warnings = append(warnings, "hierarchy assignment fell back to heuristic paths: "+err.Error())
		assignments = heuristicHierarchy(groups, areas)
	}

	if err := p.buildHierarchySpine(ctx, assignments); err != nil {
		return warnings, fmt.Errorf("phase2: build hierarchy: %w", err)
	}

	return warnings, nil
}

func (p *Pipeline) groupFilesByTopDir(ctx context.Context, parseResults map[string]rpgast.ParseResult) ([]FileFeatureGroup, error) {
	byDir := make(map[string][]FileFeature)
	var dirs []string

	for relPath := range parseResults {
		node, err := p.Store.GetNode(ctx, relPath+":file")
		if err != nil || node == nil {
			continue
		}
		dir := topLevelDir(relPath)
		if _, ok := byDir[dir]; !ok {
			dirs = append(dirs, dir)
		}
		byDir[dir] = append(byDir[dir], FileFeature{Path: relPath, Feature: node.Feature})
	}

	sort.Strings(dirs)
	groups := make([]FileFeatureGroup, 0, len(dirs))
	for _, dir := range dirs {
		files := byDir[dir]
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		groups = append(groups, FileFeatureGroup{Directory: dir, Files: files})
	}
	return groups, nil
}

func topLevelDir(relPath string) string {
	if i := strings.IndexByte(relPath, '/'); i >= 0 {
		return relPath[:i]
	}
	return "."
}

func (p *Pipeline) discoverDomains(ctx context.Context, groups []FileFeatureGroup) ([]string, error) {
	var b strings.Builder
	b.WriteString("Propose a concise list of functional areas (architectural domains) for this repository, given these file groups:\n")
	for _, g := range groups {
		b.WriteString(fmt.Sprintf("- %s (%d files): ", g.Directory, len(g.Files)))
		descs := make([]string, 0, 3)
		for _, f := range g.Files[:min(3, len(g.Files))] {
			descs = append(descs, f.Feature.Description)
		}
		b.WriteString(strings.Join(descs, "; "))
		b.WriteByte('\n')
	}
	b.WriteString("Return JSON: {\"areas\": [\"Area1\", \"Area2\", ...]}")

	raw, err := p.LLM.CompleteJSON(ctx, llmcap.CompleteJSONRequest{
		Prompt:    b.String(),
		Schema:    domainDiscoverySchema,
		MaxTokens: p.Config.Semantic.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Areas []string `json:"areas"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("invalid domain discovery response: %w", err)
	}
	if len(parsed.Areas) == 0 {
		return nil, fmt.Errorf("empty areas list")
	}
	return parsed.Areas, nil
}

func directoryNamesAsAreas(groups []FileFeatureGroup) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, titleCase(g.Directory))
	}
	return out
}

// hierarchyAssignment maps a file path to its three-level path.
type hierarchyAssignment map[string]string

func (p *Pipeline) assignHierarchy(ctx context.Context, groups []FileFeatureGroup, areas []string) (hierarchyAssignment, error) {
	var b strings.Builder
	b.WriteString("Given these functional areas: ")
	b.WriteString(strings.Join(areas, ", "))
	b.WriteString("\nAssign each file a three-level path \"Area/category/subcategory\" using only the areas listed. Files:\n")
	for _, g := range groups {
		for _, f := range g.Files {
			b.WriteString(fmt.Sprintf("- %s: %s\n", f.Path, f.Feature.Description))
		}
	}
	b.WriteString("Return JSON mapping each file path to its hierarchy path string.")

	raw, err := p.LLM.CompleteJSON(ctx, llmcap.CompleteJSONRequest{
		Prompt:    b.String(),
		Schema:    hierarchySchema,
		MaxTokens: p.Config.Semantic.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var parsed map[string]string
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("invalid hierarchy response: %w", err)
	}
	return hierarchyAssignment(parsed), nil
}

// heuristicHierarchy deterministically assigns Area/category/subcategory
// from the discovered areas (round-robined by group, directory-mirroring
// within a group) when the LLM-driven assignment is unavailable.
func heuristicHierarchy(groups []FileFeatureGroup, areas []string) hierarchyAssignment {
	out := make(hierarchyAssignment)
	for i, g := range groups {
		area := titleCase(g.Directory)
		if len(areas) > 0 {
			area = areas[i%len(areas)]
		}
		for _, f := range g.Files {
			out[f.Path] = fmt.Sprintf("%s/%s/general", area, titleCase(g.Directory))
		}
	}
	return out
}

func titleCase(s string) string {
	if s == "" || s == "." {
		return "Root"
	}
	words := splitWords(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, "")
}

// buildHierarchySpine materializes the three-level High-Level spine:
// one node per unique path prefix (deduplicated), parent->child functional
// edges along the path, and a leaf->file functional edge (spec.md §4.4
// Phase 2 step 3). Legacy directory-mirroring is intentionally absent
// (spec.md §9 Open Question 1): only this semantic hierarchy is built.
func (p *Pipeline) buildHierarchySpine(ctx context.Context, assignments hierarchyAssignment) error {
	created := make(map[string]bool)

	paths := make([]string, 0, len(assignments))
	for filePath := range assignments {
		paths = append(paths, filePath)
	}
	sort.Strings(paths)

	for _, filePath := range paths {
		hierarchyPath := assignments[filePath]
		segments := strings.Split(strings.Trim(hierarchyPath, "/"), "/")
		if len(segments) == 0 || segments[0] == "" {
			continue
		}

		var parentID string
		var prefix string
		for level, seg := range segments {
			if prefix == "" {
				prefix = seg
			} else {
				prefix = prefix + "/" + seg
			}
			nodeID := "area:" + prefix

			if !created[nodeID] {
				node := graph.Node{
					ID:            nodeID,
					Variant:       graph.HighLevel,
					Feature:       graph.NewFeature(seg, splitWords(seg)),
					DirectoryPath: prefix,
					Metadata:      &graph.Metadata{EntityType: "module"},
				}
				if ok, _ := p.Store.HasNode(ctx, nodeID); !ok {
					if err := p.Store.AddNode(ctx, node); err != nil {
						return fmt.Errorf("add high-level node %s: %w", nodeID, err)
					}
				}
				created[nodeID] = true
			}

			if parentID != "" {
				edge := graph.FunctionalEdge(parentID, nodeID, level, 0)
				if has, _ := hasFunctionalParentEdge(ctx, p.Store, parentID, nodeID); !has {
					if err := p.Store.AddEdge(ctx, edge); err != nil {
						logging.Get(logging.CategoryEncoder).Warn("phase2: link %s -> %s: %v", parentID, nodeID, err)
					}
				}
			}
			parentID = nodeID
		}

		fileID := filePath + ":file"
		if ok, _ := p.Store.HasNode(ctx, fileID); ok && parentID != "" {
			edge := graph.FunctionalEdge(parentID, fileID, len(segments), 0)
			if has, _ := hasFunctionalParentEdge(ctx, p.Store, parentID, fileID); !has {
				if err := p.Store.AddEdge(ctx, edge); err != nil {
					logging.Get(logging.CategoryEncoder).Warn("phase2: link %s -> %s: %v", parentID, fileID, err)
				}
			}
		}
	}

	return nil
}

func hasFunctionalParentEdge(ctx context.Context, st interface {
	GetParent(context.Context, string) (*graph.Node, error)
}, parentID, childID string) (bool, error) {
	p, err := st.GetParent(ctx, childID)
	if err != nil {
		return false, err
	}
	return p != nil && p.ID == parentID, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
