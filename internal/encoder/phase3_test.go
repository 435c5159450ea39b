package encoder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/graph"
)

// TestPhase3InjectsDependencyAndDataFlowEdgeForRelativeImport exercises
// spec.md §8 Scenario S1's relative-import case: src/main.ts imports
// ./utils, giving src/main.ts:file -> src/utils.ts:file.
func TestPhase3InjectsDependencyAndDataFlowEdgeForRelativeImport(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "src/main.ts", "import { helper } from \"./utils\";\n")
	writeSourceFile(t, dir, "src/utils.ts", "export function helper() {}\n")

	p, st := newTestPipeline(t, dir)

	// Build the file nodes phase1 would have created, directly, so this
	// test exercises phase3 in isolation from the tree-sitter parsers.
	for _, f := range []string{"src/main.ts", "src/utils.ts"} {
		node := graph.Node{
			ID:         f + ":file",
			Variant:    graph.LowLevel,
			Feature:    graph.NewFeature(f, nil),
			EntityKind: graph.EntityFile,
			Metadata:   &graph.Metadata{EntityType: string(graph.EntityFile), Path: f},
		}
		require.NoError(t, st.AddNode(context.Background(), node))
	}

	parseResults := map[string]rpgast.ParseResult{
		"src/main.ts": {
			Language: "typescript",
			Imports:  []rpgast.Import{{Module: "./utils"}},
		},
		"src/utils.ts": {Language: "typescript"},
	}

	warnings := p.phase3(context.Background(), parseResults)
	require.Empty(t, warnings)

	out, err := st.GetOutEdges(context.Background(), "src/main.ts:file", graph.Dependency)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "src/utils.ts:file", out[0].Target)

	dfEdges := p.DataFlowEdges()
	require.Len(t, dfEdges, 1)
	require.Equal(t, "src/main.ts:file", dfEdges[0].Source)
	require.Equal(t, "src/utils.ts:file", dfEdges[0].Target)
}

func TestResolveImportExpandsCandidateExtensionsAndIndexFallback(t *testing.T) {
	known := map[string]bool{"src/utils.ts": true}
	target, ok := resolveImport("src/main.ts", "./utils", known)
	require.True(t, ok)
	require.Equal(t, "src/utils.ts", target)

	knownIndex := map[string]bool{"src/lib/index.ts": true}
	target, ok = resolveImport("src/main.ts", "./lib", knownIndex)
	require.True(t, ok)
	require.Equal(t, "src/lib/index.ts", target)

	_, ok = resolveImport("src/main.ts", "./missing", known)
	require.False(t, ok)
}

func TestPropagateMetadataSetsLowestCommonAncestorPath(t *testing.T) {
	dir := t.TempDir()
	p, st := newTestPipeline(t, dir)
	ctx := context.Background()

	area := graph.Node{ID: "area:Core", Variant: graph.HighLevel, Feature: graph.NewFeature("Core", nil), Metadata: &graph.Metadata{EntityType: "module"}}
	require.NoError(t, st.AddNode(ctx, area))

	for _, f := range []string{"src/core/a.go", "src/core/b.go"} {
		node := graph.Node{
			ID: f + ":file", Variant: graph.LowLevel, Feature: graph.NewFeature(f, nil),
			EntityKind: graph.EntityFile, Metadata: &graph.Metadata{EntityType: string(graph.EntityFile), Path: f},
		}
		require.NoError(t, st.AddNode(ctx, node))
		require.NoError(t, st.AddEdge(ctx, graph.FunctionalEdge("area:Core", f+":file", 0, 0)))
	}

	require.NoError(t, p.propagateMetadata(ctx))

	node, err := st.GetNode(ctx, "area:Core")
	require.NoError(t, err)
	require.NotNil(t, node.Metadata)
	require.Equal(t, "src/core", node.Metadata.Path)
}
