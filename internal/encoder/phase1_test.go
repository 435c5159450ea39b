package encoder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/ast/goparse"
	"github.com/pleaseai/soop-sub000/internal/config"
	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/store"
)

func newTestPipeline(t *testing.T, repoRoot string) (*Pipeline, store.Store) {
	t.Helper()
	reg := rpgast.NewRegistry()
	reg.Register(goparse.New())
	st := store.NewMemStore()
	cfg := config.Default()
	return New(st, reg, nil, nil, cfg, repoRoot), st
}

const phase1Sample = `package widgets

// Render prints the widget.
func Render() {
	println("ok")
}
`

func TestPhase1LiftsFileAndEntityNodesWithFunctionalEdge(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "widget.go"), []byte(phase1Sample), 0o644))

	p, st := newTestPipeline(t, dir)
	results, warnings, cancelled := p.phase1(context.Background(), []string{"widget.go"})

	require.False(t, cancelled)
	require.Empty(t, warnings)
	require.Contains(t, results, "widget.go")

	fileNode, err := st.GetNode(context.Background(), "widget.go:file")
	require.NoError(t, err)
	require.NotNil(t, fileNode)
	require.Equal(t, graph.LowLevel, fileNode.Variant)

	out, err := st.GetOutEdges(context.Background(), "widget.go:file", graph.Functional)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Contains(t, out[0].Target, "Render")
}

func TestPhase1SkipsUnreadableFileAsWarning(t *testing.T) {
	dir := t.TempDir()
	p, _ := newTestPipeline(t, dir)

	results, warnings, cancelled := p.phase1(context.Background(), []string{"missing.go"})

	require.False(t, cancelled)
	require.NotEmpty(t, warnings)
	require.NotContains(t, results, "missing.go")
}

func TestPhase1ProcessesMultipleFilesConcurrently(t *testing.T) {
	dir := t.TempDir()
	files := []string{"a.go", "b.go", "c.go", "d.go"}
	for i, f := range files {
		src := "package widgets\n\nfunc F" + string(rune('A'+i)) + "() {}\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte(src), 0o644))
	}

	p, st := newTestPipeline(t, dir)
	results, warnings, cancelled := p.phase1(context.Background(), files)

	require.False(t, cancelled)
	require.Empty(t, warnings)
	require.Len(t, results, len(files))

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, stats.HighLevelNodes)
	require.Equal(t, len(files)*2, stats.LowLevelNodes) // one file node + one function node each
}

func TestPhase1CancelledContextStopsEarly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "widget.go"), []byte(phase1Sample), 0o644))

	p, _ := newTestPipeline(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, cancelled := p.phase1(ctx, []string{"widget.go"})
	require.True(t, cancelled)
}
