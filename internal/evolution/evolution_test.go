package evolution

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/ast/goparse"
	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/store"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	full := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return name
}

func newRegistry() *rpgast.Registry {
	reg := rpgast.NewRegistry()
	reg.Register(goparse.New())
	return reg
}

func TestInsertPassAddsFileAndEntities(t *testing.T) {
	dir := t.TempDir()
	rel := writeFile(t, dir, "widget.go", `package demo

// Widget does a thing.
func Widget() int { return 1 }
`)

	st := store.NewMemStore()
	eng := New(st, newRegistry(), nil, dir)

	result := &Result{}
	require.NoError(t, eng.insertFile(context.Background(), rel, DefaultOptions(), result))

	ok, err := st.HasNode(context.Background(), rel+":file")
	require.NoError(t, err)
	require.True(t, ok)
	require.Greater(t, result.Inserted, 1)
}

func TestDeletePassPrunesFileAndChildren(t *testing.T) {
	dir := t.TempDir()
	rel := writeFile(t, dir, "gone.go", `package demo

func Gone() {}
`)

	ctx := context.Background()
	st := store.NewMemStore()
	eng := New(st, newRegistry(), nil, dir)
	require.NoError(t, eng.insertFile(ctx, rel, DefaultOptions(), &Result{}))

	result := &Result{}
	require.NoError(t, eng.deletePass(ctx, []string{rel}, result))

	ok, err := st.HasNode(ctx, rel+":file")
	require.NoError(t, err)
	require.False(t, ok)
	require.NotEmpty(t, result.PrunedNodes)
}

func TestModifyPassUpdatesFeatureWithoutDriftingWhenSimilar(t *testing.T) {
	dir := t.TempDir()
	rel := writeFile(t, dir, "calc.go", `package demo

// Add adds two numbers.
func Add(a, b int) int { return a + b }
`)

	ctx := context.Background()
	st := store.NewMemStore()
	eng := New(st, newRegistry(), nil, dir)
	require.NoError(t, eng.insertFile(ctx, rel, DefaultOptions(), &Result{}))

	// Same documentation, different body: a pure refactor should not drift.
	writeFile(t, dir, "calc.go", `package demo

// Add adds two numbers.
func Add(a, b int) int {
	sum := a + b
	return sum
}
`)

	result := &Result{}
	require.NoError(t, eng.modifyPass(ctx, []string{rel}, DefaultOptions(), result))
	require.Equal(t, 1, result.Modified)
	require.Equal(t, 0, result.Rerouted)
}

type recordingRouter struct {
	routed []string
}

func (r *recordingRouter) RouteDrifted(ctx context.Context, nodeID string, newFeature graph.Feature) error {
	r.routed = append(r.routed, nodeID)
	return nil
}

func TestModifyPassReroutesOnHighDrift(t *testing.T) {
	dir := t.TempDir()
	rel := writeFile(t, dir, "mixed.go", `package demo

// Render draws the UI widget.
func Render() {}
`)

	ctx := context.Background()
	st := store.NewMemStore()
	router := &recordingRouter{}
	eng := New(st, newRegistry(), router, dir)
	require.NoError(t, eng.insertFile(ctx, rel, DefaultOptions(), &Result{}))

	writeFile(t, dir, "mixed.go", `package demo

// PersistRecord writes a database transaction to disk.
func Render() {}
`)

	opts := DefaultOptions()
	result := &Result{}
	require.NoError(t, eng.modifyPass(ctx, []string{rel}, opts, result))
	require.Equal(t, 1, result.Rerouted)
	require.NotEmpty(t, router.routed)
}

func TestJaccardDistance(t *testing.T) {
	require.Equal(t, 0.0, jaccardDistance([]string{"auth", "login"}, []string{"auth", "login"}))
	require.Equal(t, 1.0, jaccardDistance([]string{"auth"}, []string{"render"}))
}

func TestForceRegenerateHintWhenChangeRatioExceedsThreshold(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	st := store.NewMemStore()
	require.NoError(t, st.AddNode(ctx, graph.Node{ID: "a:file", Variant: graph.LowLevel, EntityKind: graph.EntityFile, Feature: graph.NewFeature("a", nil)}))

	eng := New(st, newRegistry(), nil, dir)
	diff := EntityDiff{Insertions: []string{"b.go", "c.go"}}
	result, err := eng.Run(ctx, diff, Options{ForceRegenerateThreshold: 0.1})
	require.NoError(t, err)
	require.True(t, result.ForceRegenerateHint)
}
