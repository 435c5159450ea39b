package interactive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/ast/goparse"
	"github.com/pleaseai/soop-sub000/internal/config"
	"github.com/pleaseai/soop-sub000/internal/store"
)

func newTestSession(t *testing.T) (*Session, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "widget.go"), []byte(
		"package widgets\n\n// Render draws the widget.\nfunc Render() {\n\tprintln(\"ok\")\n}\n"), 0o644))

	reg := rpgast.NewRegistry()
	reg.Register(goparse.New())
	st := store.NewMemStore()
	cfg := config.Default()
	cfg.Discovery.Include = []string{"**/*.go"}
	cfg.Discovery.RespectGitignore = false

	s := NewSession(st, reg, cfg, dir)
	return s, dir
}

func TestBuildIndexDiscoversEntitiesAndPlaceholderNodes(t *testing.T) {
	s, _ := newTestSession(t)
	result, err := s.BuildIndex(context.Background(), s.Config.Discovery)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesDiscovered)
	require.Equal(t, 1, result.EntitiesFound)
	require.Equal(t, 1, result.BatchCount)
	require.Equal(t, "get_entity_batch", result.NextAction)
	require.NotEmpty(t, s.GraphRevision)

	node, err := s.Store.GetNode(context.Background(), "widget.go:file")
	require.NoError(t, err)
	require.NotNil(t, node)
}

func TestGetEntityBatchReturnsInstructionOnlyOnFirstBatch(t *testing.T) {
	s, _ := newTestSession(t)
	_, err := s.BuildIndex(context.Background(), s.Config.Discovery)
	require.NoError(t, err)

	view, err := s.GetEntityBatch("*", 0)
	require.NoError(t, err)
	require.Len(t, view.Entities, 1)
	require.Equal(t, "Render", view.Entities[0].Name)
	require.NotEmpty(t, view.Instruction)
}

func TestSubmitFeaturesUpdatesGraphAndUnknownIDErrors(t *testing.T) {
	s, _ := newTestSession(t)
	_, err := s.BuildIndex(context.Background(), s.Config.Discovery)
	require.NoError(t, err)

	entityID := s.Entities[0].ID
	result, err := s.SubmitFeatures(context.Background(), map[string][]string{
		entityID: {"draws", "widget", "render"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Accepted)
	require.Empty(t, result.Drifted)

	node, err := s.Store.GetNode(context.Background(), entityID)
	require.NoError(t, err)
	require.Contains(t, node.Feature.Keywords, "draws")

	_, err = s.SubmitFeatures(context.Background(), map[string][]string{"bogus:id": {"x"}})
	require.Error(t, err)
	var unknown *ErrUnknownEntity
	require.ErrorAs(t, err, &unknown)
}

func TestSubmitFeaturesQueuesRoutingOnHighDrift(t *testing.T) {
	s, _ := newTestSession(t)
	_, err := s.BuildIndex(context.Background(), s.Config.Discovery)
	require.NoError(t, err)
	entityID := s.Entities[0].ID

	_, err = s.SubmitFeatures(context.Background(), map[string][]string{entityID: {"draws", "widget"}})
	require.NoError(t, err)

	result, err := s.SubmitFeatures(context.Background(), map[string][]string{entityID: {"persists", "database", "transaction"}})
	require.NoError(t, err)
	require.Contains(t, result.Drifted, entityID)
	require.Len(t, s.PendingRouting, 1)
	require.Equal(t, "drifted", s.PendingRouting[0].Reason)
}

func TestFullProtocolFlowReachesDoneWithMatchingRevision(t *testing.T) {
	s, _ := newTestSession(t)
	_, err := s.BuildIndex(context.Background(), s.Config.Discovery)
	require.NoError(t, err)
	entityID := s.Entities[0].ID

	_, err = s.SubmitFeatures(context.Background(), map[string][]string{entityID: {"draws", "widget"}})
	require.NoError(t, err)

	finalizeResult, err := s.FinalizeFeatures(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, finalizeResult.FilesAggregated)
	require.Equal(t, "get_synthesis_batch", finalizeResult.NextAction)

	n, err := s.SubmitSynthesis(context.Background(), map[string][]string{"widget.go": {"renders", "widgets"}})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	hResult, err := s.SubmitHierarchy(context.Background(), map[string]string{"widget.go": "UI/widgets/core"})
	require.NoError(t, err)
	require.Equal(t, 3, hResult.NodesCreated)

	node, err := s.Store.GetNode(context.Background(), "area:UI/widgets/core")
	require.NoError(t, err)
	require.NotNil(t, node)

	require.Empty(t, s.PendingRouting)
	require.Equal(t, PhaseRouting, s.Phase)
}

func TestSubmitRoutingRejectsStaleRevision(t *testing.T) {
	s, _ := newTestSession(t)
	_, err := s.BuildIndex(context.Background(), s.Config.Discovery)
	require.NoError(t, err)
	entityID := s.Entities[0].ID

	_, err = s.SubmitFeatures(context.Background(), map[string][]string{entityID: {"draws", "widget"}})
	require.NoError(t, err)
	_, err = s.SubmitFeatures(context.Background(), map[string][]string{entityID: {"persists", "database", "transaction"}})
	require.NoError(t, err)
	require.Len(t, s.PendingRouting, 1)

	_, err = s.SubmitRouting(context.Background(), map[string]string{entityID: "keep"}, "not-the-current-revision")
	require.Error(t, err)
	var stale *ErrStaleRevision
	require.ErrorAs(t, err, &stale)
	require.False(t, s.PendingRouting[0].Resolved)

	result, err := s.SubmitRouting(context.Background(), map[string]string{entityID: "keep"}, s.GraphRevision)
	require.NoError(t, err)
	require.Equal(t, 1, result.Applied)
	require.True(t, s.PendingRouting[0].Resolved)
	require.Equal(t, PhaseDone, s.Phase)
}

func TestJaccardDistanceIdenticalSetsIsZero(t *testing.T) {
	require.Equal(t, 0.0, jaccardDistance([]string{"a", "b"}, []string{"b", "a"}))
	require.Equal(t, 1.0, jaccardDistance([]string{"a", "b"}, []string{"c", "d"}))
}
