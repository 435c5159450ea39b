package encoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/llmcap"
)

// stubCapability is a deterministic llmcap.Capability double for phase2
// tests; CompleteJSON delegates to a configurable func so tests can script
// domain discovery and hierarchy assignment independently of a real LLM.
type stubCapability struct {
	completeJSON func(ctx context.Context, req llmcap.CompleteJSONRequest) ([]byte, error)
}

func (s *stubCapability) CompleteText(ctx context.Context, req llmcap.CompleteTextRequest) (string, error) {
	return "", nil
}

func (s *stubCapability) CompleteJSON(ctx context.Context, req llmcap.CompleteJSONRequest) ([]byte, error) {
	return s.completeJSON(ctx, req)
}

func (s *stubCapability) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0}, nil
}

func (s *stubCapability) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0}
	}
	return out, nil
}

// isDomainDiscoveryRequest distinguishes the two CompleteJSON calls phase2
// makes by the schema shape each one carries.
func isDomainDiscoveryRequest(req llmcap.CompleteJSONRequest) bool {
	_, ok := req.Schema["properties"]
	return ok
}

func writeSourceFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func liftForPhase2(t *testing.T, p *Pipeline, files []string) map[string]rpgast.ParseResult {
	t.Helper()
	results, warnings, cancelled := p.phase1(context.Background(), files)
	require.False(t, cancelled)
	require.Empty(t, warnings)
	return results
}

func TestPhase2BuildsHierarchySpineFromLLMAssignments(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "src/main.go", "package src\n\nfunc Main() {}\n")
	writeSourceFile(t, dir, "src/utils.go", "package src\n\nfunc Util() {}\n")

	p, st := newTestPipeline(t, dir)
	parseResults := liftForPhase2(t, p, []string{"src/main.go", "src/utils.go"})

	p.LLM = &stubCapability{
		completeJSON: func(ctx context.Context, req llmcap.CompleteJSONRequest) ([]byte, error) {
			if isDomainDiscoveryRequest(req) {
				return []byte(`{"areas": ["Core"]}`), nil
			}
			return []byte(`{"src/main.go": "Core/entry/main", "src/utils.go": "Core/entry/helpers"}`), nil
		},
	}

	warnings, err := p.phase2(context.Background(), parseResults)
	require.NoError(t, err)
	require.Empty(t, warnings)

	node, err := st.GetNode(context.Background(), "area:Core")
	require.NoError(t, err)
	require.NotNil(t, node)
	require.Equal(t, graph.HighLevel, node.Variant)

	leaf, err := st.GetNode(context.Background(), "area:Core/entry/main")
	require.NoError(t, err)
	require.NotNil(t, leaf)

	parent, err := st.GetParent(context.Background(), "area:Core/entry/main")
	require.NoError(t, err)
	require.NotNil(t, parent)
	require.Equal(t, "area:Core/entry", parent.ID)
}

func TestPhase2FallsBackToDirectoryNamesWhenDomainDiscoveryFails(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "widgets/widget.go", "package widgets\n\nfunc F() {}\n")

	p, st := newTestPipeline(t, dir)
	parseResults := liftForPhase2(t, p, []string{"widgets/widget.go"})

	p.LLM = &stubCapability{
		completeJSON: func(ctx context.Context, req llmcap.CompleteJSONRequest) ([]byte, error) {
			if isDomainDiscoveryRequest(req) {
				return nil, errors.New("provider unavailable")
			}
			return []byte(`{"widgets/widget.go": "Widgets/widgets/general"}`), nil
		},
	}

	warnings, err := p.phase2(context.Background(), parseResults)
	require.NoError(t, err)
	require.NotEmpty(t, warnings)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	require.Greater(t, stats.HighLevelNodes, 0)
}

func TestPhase2NoFilesReturnsEmptyWithoutError(t *testing.T) {
	dir := t.TempDir()
	p, _ := newTestPipeline(t, dir)
	p.LLM = &stubCapability{completeJSON: func(ctx context.Context, req llmcap.CompleteJSONRequest) ([]byte, error) {
		t.Fatal("LLM should not be called when there are no parse results")
		return nil, nil
	}}

	warnings, err := p.phase2(context.Background(), map[string]rpgast.ParseResult{})
	require.NoError(t, err)
	require.Empty(t, warnings)
}
