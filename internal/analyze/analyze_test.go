package analyze

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pleaseai/soop-sub000/internal/graph"
)

func TestCheckClean(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	nodes := []graph.Node{
		{ID: "root", Variant: graph.HighLevel},
		{ID: "child", Variant: graph.LowLevel},
	}
	edges := []graph.Edge{graph.FunctionalEdge("root", "child", 0, 0)}

	violations, err := e.Check(nodes, edges)
	require.NoError(t, err)
	require.Empty(t, violations)
}

func TestCheckDetectsDanglingEdge(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	nodes := []graph.Node{{ID: "root", Variant: graph.HighLevel}}
	edges := []graph.Edge{graph.FunctionalEdge("root", "missing", 0, 0)}

	violations, err := e.Check(nodes, edges)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	require.Equal(t, "dangling", violations[0].Kind)
	require.Equal(t, "root", violations[0].Src)
	require.Equal(t, "missing", violations[0].Dst)
}

func TestCheckDetectsFunctionalCycle(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	nodes := []graph.Node{
		{ID: "a", Variant: graph.HighLevel},
		{ID: "b", Variant: graph.HighLevel},
	}
	edges := []graph.Edge{
		graph.FunctionalEdge("a", "b", 0, 0),
		graph.FunctionalEdge("b", "a", 0, 0),
	}

	violations, err := e.Check(nodes, edges)
	require.NoError(t, err)

	found := false
	for _, v := range violations {
		if v.Kind == "cycle" {
			found = true
		}
	}
	require.True(t, found, "expected a cycle violation among: %v", violations)
}
