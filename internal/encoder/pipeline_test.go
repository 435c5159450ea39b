package encoder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/ast/goparse"
	"github.com/pleaseai/soop-sub000/internal/ast/tsparse"
	"github.com/pleaseai/soop-sub000/internal/config"
	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/llmcap"
	"github.com/pleaseai/soop-sub000/internal/store"
)

// TestEncodeScenarioS1TwoFilesWithImportDependency implements spec.md §8
// Scenario S1: a two-file repository where src/main.ts imports src/utils.ts,
// encoded without an LLM collaborator so Phase 2 is skipped and the graph
// ends up with only the Low-Level file/entity nodes plus the import-derived
// dependency and data-flow edges from Phase 3.
func TestEncodeScenarioS1TwoFilesWithImportDependency(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.ts"), []byte(
		"import { helper } from \"./utils\";\n\nfunction main() {\n  helper();\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "utils.ts"), []byte(
		"export function helper() {\n  return 1;\n}\n"), 0o644))

	reg := rpgast.NewRegistry()
	for _, p := range tsparse.NewAll() {
		reg.Register(p)
	}
	reg.Register(goparse.New())

	st := store.NewMemStore()
	cfg := config.Default()
	cfg.Discovery.Include = []string{"**/*.ts"}
	cfg.Discovery.RespectGitignore = false
	cfg.Semantic.UseLLM = false

	p := New(st, reg, nil, nil, cfg, dir)

	result, err := p.Encode(context.Background(), EncodeOptions{})
	require.NoError(t, err)
	require.False(t, result.Cancelled)
	require.Equal(t, 2, result.FilesDiscovered)
	require.Equal(t, 2, result.FilesProcessed)
	require.NotEmpty(t, result.Revision)

	out, err := st.GetOutEdges(context.Background(), "src/main.ts:file", graph.Dependency)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "src/utils.ts:file", out[0].Target)

	require.Len(t, p.DataFlowEdges(), 1)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, stats.HighLevelNodes)
	require.Equal(t, 1, stats.DependencyEdges)
}

func TestEncodeSkipsPhase2SilentlyWhenNoLLMConfigured(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\nfunc F() {}\n"), 0o644))

	reg := rpgast.NewRegistry()
	reg.Register(goparse.New())
	st := store.NewMemStore()
	cfg := config.Default()
	cfg.Discovery.Include = []string{"**/*.go"}
	cfg.Discovery.RespectGitignore = false
	cfg.Semantic.UseLLM = false

	p := New(st, reg, nil, nil, cfg, dir)
	result, err := p.Encode(context.Background(), EncodeOptions{})
	require.NoError(t, err)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, stats.HighLevelNodes)
	require.NotEmpty(t, result.Revision)
}

func TestEncodeFailsWhenLLMRequiredButMissing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\nfunc F() {}\n"), 0o644))

	reg := rpgast.NewRegistry()
	reg.Register(goparse.New())
	st := store.NewMemStore()
	cfg := config.Default()
	cfg.Discovery.Include = []string{"**/*.go"}
	cfg.Discovery.RespectGitignore = false

	p := New(st, reg, nil, nil, cfg, dir)
	_, err := p.Encode(context.Background(), EncodeOptions{RequireLLM: true})
	require.Error(t, err)

	var unavailable *llmcap.ErrUnavailable
	require.ErrorAs(t, err, &unavailable)
}
