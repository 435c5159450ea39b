package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleaseai/soop-sub000/internal/graph"
)

func fileNode(id, path string) graph.Node {
	return graph.Node{
		ID:         id,
		Variant:    graph.LowLevel,
		EntityKind: graph.EntityFile,
		Feature:    graph.NewFeature("handles "+path, []string{"handler", path}),
		Metadata:   &graph.Metadata{Path: path, EntityType: string(graph.EntityFile)},
	}
}

func TestMemStoreAddNodeDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddNode(ctx, fileNode("a", "a.go")))

	err := s.AddNode(ctx, fileNode("a", "a.go"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, graph.ErrDuplicateNode))
}

func TestMemStoreAddEdgeDanglingReference(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddNode(ctx, fileNode("a", "a.go")))

	err := s.AddEdge(ctx, graph.FunctionalEdge("a", "missing", 1, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, graph.ErrDanglingReference))
}

func TestMemStoreFunctionalSingleParent(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddNode(ctx, fileNode("root", "/")))
	require.NoError(t, s.AddNode(ctx, fileNode("a", "a.go")))
	require.NoError(t, s.AddNode(ctx, fileNode("b", "b.go")))

	require.NoError(t, s.AddEdge(ctx, graph.FunctionalEdge("root", "a", 1, 0)))
	err := s.AddEdge(ctx, graph.FunctionalEdge("b", "a", 1, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, graph.ErrMultipleParents))
}

func TestMemStoreFunctionalAcyclicity(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddNode(ctx, fileNode("a", "a.go")))
	require.NoError(t, s.AddNode(ctx, fileNode("b", "b.go")))
	require.NoError(t, s.AddEdge(ctx, graph.FunctionalEdge("a", "b", 1, 0)))

	err := s.AddEdge(ctx, graph.FunctionalEdge("b", "a", 1, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, graph.ErrFunctionalCycle))
}

func TestMemStoreRemoveNodeCascades(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddNode(ctx, fileNode("root", "/")))
	require.NoError(t, s.AddNode(ctx, fileNode("a", "a.go")))
	require.NoError(t, s.AddEdge(ctx, graph.FunctionalEdge("root", "a", 1, 0)))

	require.NoError(t, s.RemoveNode(ctx, "root"))

	edges, err := s.GetEdges(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, edges, "removing a node must cascade-delete its incident edges")
}

func TestMemStoreGetChildrenOrderedBySiblingOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddNode(ctx, fileNode("root", "/")))
	require.NoError(t, s.AddNode(ctx, fileNode("b", "b.go")))
	require.NoError(t, s.AddNode(ctx, fileNode("a", "a.go")))

	require.NoError(t, s.AddEdge(ctx, graph.FunctionalEdge("root", "b", 1, 1)))
	require.NoError(t, s.AddEdge(ctx, graph.FunctionalEdge("root", "a", 1, 0)))

	children, err := s.GetChildren(ctx, "root")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "a", children[0].ID)
	assert.Equal(t, "b", children[1].ID)
}

func TestMemStoreTraverseShortestPathWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.AddNode(ctx, fileNode(id, id+".go")))
	}
	// a -> b -> d and a -> d directly: d must be recorded at depth 1, not 2.
	require.NoError(t, s.AddEdge(ctx, graph.DependencyEdge("a", "b", graph.DepImport, 1, false)))
	require.NoError(t, s.AddEdge(ctx, graph.DependencyEdge("b", "d", graph.DepImport, 1, false)))
	require.NoError(t, s.AddEdge(ctx, graph.DependencyEdge("a", "d", graph.DepImport, 1, false)))
	require.NoError(t, s.AddEdge(ctx, graph.DependencyEdge("d", "a", graph.DepImport, 1, false))) // cycle, legal on dependency edges

	res, err := s.Traverse(ctx, "a", EdgeKindDependency, DirOut, 5, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.MaxDepthReached, 2)

	ids := make(map[string]bool)
	for _, n := range res.Nodes {
		ids[n.ID] = true
	}
	assert.True(t, ids["a"])
	assert.True(t, ids["b"])
	assert.True(t, ids["d"])
}

func TestMemStoreTraverseUnknownStart(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	_, err := s.Traverse(ctx, "nope", EdgeKindBoth, DirOut, 3, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, graph.ErrNodeNotFound))
}

func TestMemStoreSearchByFeatureReturnsOwnNode(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddNode(ctx, graph.Node{
		ID: "auth", Variant: graph.LowLevel, EntityKind: graph.EntityFunction,
		Feature: graph.NewFeature("authentication middleware", []string{"authentication", "middleware"}),
	}))
	require.NoError(t, s.AddNode(ctx, graph.Node{
		ID: "render", Variant: graph.LowLevel, EntityKind: graph.EntityFunction,
		Feature: graph.NewFeature("renders the homepage", []string{"render", "homepage"}),
	}))

	results, err := s.SearchByFeature(ctx, "auth", nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "auth", results[0].Node.ID)
}

func TestMemStoreSearchByFeatureScoped(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddNode(ctx, fileNode("areaA", "areaA")))
	require.NoError(t, s.AddNode(ctx, fileNode("areaB", "areaB")))
	require.NoError(t, s.AddNode(ctx, graph.Node{
		ID: "a.login", Variant: graph.LowLevel, EntityKind: graph.EntityFunction,
		Feature: graph.NewFeature("authentication login handler", []string{"authentication"}),
	}))
	require.NoError(t, s.AddNode(ctx, graph.Node{
		ID: "b.login", Variant: graph.LowLevel, EntityKind: graph.EntityFunction,
		Feature: graph.NewFeature("authentication login handler", []string{"authentication"}),
	}))
	require.NoError(t, s.AddEdge(ctx, graph.FunctionalEdge("areaA", "a.login", 1, 0)))
	require.NoError(t, s.AddEdge(ctx, graph.FunctionalEdge("areaB", "b.login", 1, 0)))

	scoped, err := s.SearchByFeature(ctx, "auth", []string{"areaA"})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "a.login", scoped[0].Node.ID)

	unscoped, err := s.SearchByFeature(ctx, "auth", nil)
	require.NoError(t, err)
	assert.Len(t, unscoped, 2)
}

func TestMemStoreSearchByPathGlob(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddNode(ctx, fileNode("a", "src/server/main.go")))
	require.NoError(t, s.AddNode(ctx, fileNode("b", "src/client/app.ts")))

	results, err := s.SearchByPath(ctx, "src/**/*.go")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestMemStoreTopologicalOrderRespectsDependencyEdges(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.AddNode(ctx, fileNode(id, id+".go")))
	}
	require.NoError(t, s.AddEdge(ctx, graph.DependencyEdge("a", "b", graph.DepImport, 1, false)))
	require.NoError(t, s.AddEdge(ctx, graph.DependencyEdge("b", "c", graph.DepImport, 1, false)))

	order, err := s.TopologicalOrder(ctx)
	require.NoError(t, err)

	index := make(map[string]int, len(order))
	for i, n := range order {
		index[n.ID] = i
	}
	assert.Less(t, index["c"], index["b"])
	assert.Less(t, index["b"], index["a"])
}

func TestMemStoreStatsIdempotentAfterInsertDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddNode(ctx, fileNode("a", "a.go")))

	before, err := s.Stats(ctx)
	require.NoError(t, err)

	require.NoError(t, s.AddNode(ctx, fileNode("b", "b.go")))
	require.NoError(t, s.RemoveNode(ctx, "b"))

	after, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMemStoreExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddNode(ctx, fileNode("root", "/")))
	require.NoError(t, s.AddNode(ctx, fileNode("a", "a.go")))
	require.NoError(t, s.AddEdge(ctx, graph.FunctionalEdge("root", "a", 1, 0)))
	require.NoError(t, s.AddEdge(ctx, graph.DependencyEdge("a", "root", graph.DepImport, 1, false)))

	cfg := graph.RepositoryConfig{Name: "demo"}
	env, err := s.Export(ctx, cfg, nil)
	require.NoError(t, err)

	restored := NewMemStore()
	require.NoError(t, restored.Import(ctx, env))

	reEnv, err := restored.Export(ctx, cfg, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(env.Nodes, reEnv.Nodes); diff != "" {
		t.Errorf("nodes mismatch after export/import round trip (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(env.Edges, reEnv.Edges); diff != "" {
		t.Errorf("edges mismatch after export/import round trip (-want +got):\n%s", diff)
	}
}

func TestMemStoreSearchHybridFallsBackToFTSWithoutVector(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddNode(ctx, graph.Node{
		ID: "auth", Variant: graph.LowLevel,
		Feature: graph.NewFeature("authentication middleware", []string{"authentication"}),
	}))

	results, err := s.SearchHybrid(ctx, "auth", nil, 10, 0.7, 60)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "auth", results[0].Node.ID)
}
