package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pleaseai/soop-sub000/internal/config"
	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/store"
)

func seededStore(t *testing.T) store.Store {
	t.Helper()
	st := store.NewMemStore()
	ctx := context.Background()

	area := graph.Node{
		ID: "area:UI", Variant: graph.HighLevel,
		Feature: graph.NewFeature("user interface components", []string{"ui", "widgets"}),
	}
	require.NoError(t, st.AddNode(ctx, area))

	file := graph.Node{
		ID: "widget.go:file", Variant: graph.LowLevel, EntityKind: graph.EntityFile,
		Feature:  graph.NewFeature("file rendering a widget", []string{"widget", "render"}),
		Metadata: &graph.Metadata{EntityType: "file", Path: "widget.go"},
	}
	require.NoError(t, st.AddNode(ctx, file))
	require.NoError(t, st.AddEdge(ctx, graph.FunctionalEdge("area:UI", "widget.go:file", 0, 0)))

	fn := graph.Node{
		ID: "widget.go:function:Render:5", Variant: graph.LowLevel, EntityKind: graph.EntityFunction,
		Feature:    graph.NewFeature("renders the widget to the screen", []string{"render", "widget", "screen"}),
		SourceCode: "func Render() {}",
	}
	require.NoError(t, st.AddNode(ctx, fn))
	require.NoError(t, st.AddEdge(ctx, graph.FunctionalEdge("widget.go:file", "widget.go:function:Render:5", 0, 0)))

	return st
}

func TestSearchFeaturesModeFindsNodeByDescriptionWords(t *testing.T) {
	st := seededStore(t)
	s := New(st, config.Default())

	results, err := s.Search(context.Background(), SearchRequest{Mode: ModeFeatures, FeatureTerms: "renders widget screen"})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	var found bool
	for _, r := range results {
		if r.Node.ID == "widget.go:function:Render:5" {
			found = true
		}
	}
	require.True(t, found)
}

func TestSearchAutoFallsBackToSnippetsWhenFeatureSearchEmpty(t *testing.T) {
	st := seededStore(t)
	s := New(st, config.Default())

	results, err := s.Search(context.Background(), SearchRequest{
		Mode:        ModeAuto,
		FeatureTerms: "zzz-nonexistent-term-zzz",
		FilePattern: "widget.go",
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestSearchRejectsUnknownMode(t *testing.T) {
	st := seededStore(t)
	s := New(st, config.Default())

	_, err := s.Search(context.Background(), SearchRequest{Mode: "bogus"})
	require.Error(t, err)
	var invalid *ErrInvalidRequest
	require.ErrorAs(t, err, &invalid)
}

func TestFetchReturnsNodeSnippetAndFeaturePath(t *testing.T) {
	st := seededStore(t)
	s := New(st, config.Default())

	result, err := s.Fetch(context.Background(), FetchRequest{CodeEntities: []string{"widget.go:function:Render:5"}})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Empty(t, result.NotFound)

	item := result.Items[0]
	require.Equal(t, "func Render() {}", item.Snippet)
	require.Equal(t, []string{
		"user interface components",
		"file rendering a widget",
		"renders the widget to the screen",
	}, item.FeaturePath)
}

func TestFetchReportsNotFoundForUnknownIDs(t *testing.T) {
	st := seededStore(t)
	s := New(st, config.Default())

	result, err := s.Fetch(context.Background(), FetchRequest{CodeEntities: []string{"does-not-exist"}})
	require.NoError(t, err)
	require.Empty(t, result.Items)
	require.Equal(t, []string{"does-not-exist"}, result.NotFound)
}

func TestFetchRequiresAtLeastOneIDList(t *testing.T) {
	st := seededStore(t)
	s := New(st, config.Default())

	_, err := s.Fetch(context.Background(), FetchRequest{})
	require.Error(t, err)
}

func TestExploreTraversesFromStart(t *testing.T) {
	st := seededStore(t)
	s := New(st, config.Default())

	result, err := s.Explore(context.Background(), ExploreRequest{
		Start: "area:UI", EdgeKind: store.EdgeKindFunctional, Direction: store.DirOut, MaxDepth: 5,
	})
	require.NoError(t, err)

	var ids []string
	for _, n := range result.Nodes {
		ids = append(ids, n.ID)
	}
	require.Contains(t, ids, "widget.go:file")
	require.Contains(t, ids, "widget.go:function:Render:5")
}

func TestExploreUnknownStartReturnsError(t *testing.T) {
	st := seededStore(t)
	s := New(st, config.Default())

	_, err := s.Explore(context.Background(), ExploreRequest{Start: "does-not-exist"})
	require.Error(t, err)
}
