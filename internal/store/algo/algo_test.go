package algo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello_world", "42", "foo"}, Tokenize("Hello_World, 42!! foo"))
}

func TestIndexSearchPrefix(t *testing.T) {
	idx := NewIndex()
	idx.Upsert("n1", "authentication and authorization module")
	idx.Upsert("n2", "rendering pipeline for the UI")

	results := idx.SearchPrefix([]string{"auth"})
	require.Len(t, results, 1)
	assert.Equal(t, "n1", results[0].ID)
}

func TestIndexUpsertReplaces(t *testing.T) {
	idx := NewIndex()
	idx.Upsert("n1", "parsing and validation")
	idx.Upsert("n1", "rendering output")
	results := idx.SearchPrefix([]string{"pars"})
	assert.Empty(t, results, "re-upserting should replace, not append to, the prior document")
}

func TestCompilePathPatternDoubleStar(t *testing.T) {
	re, err := CompilePathPattern("src/**/*.ts")
	require.NoError(t, err)
	assert.True(t, re.MatchString("src/a/b/c.ts"))
	assert.True(t, re.MatchString("src/c.ts"))
	assert.False(t, re.MatchString("src/a/b/c.js"))
}

func TestFuseRRF(t *testing.T) {
	vector := []string{"a", "b", "c"}
	fts := []string{"b", "a", "d"}
	fused := FuseRRF(vector, fts, 0.7, 60)
	require.NotEmpty(t, fused)
	// "a" and "b" both appear near the top of both lists, so one of them
	// should out-rank "d" which only appears in fts.
	idx := make(map[string]int, len(fused))
	for i, s := range fused {
		idx[s.ID] = i
	}
	assert.Less(t, idx["a"], idx["d"])
}

func TestTopologicalOrderRespectsDependencies(t *testing.T) {
	ids := []string{"a", "b", "c"}
	insertion := map[string]int{"a": 0, "b": 1, "c": 2}
	// a depends on b (a -> b), b depends on c.
	edges := []DepEdge{{Source: "a", Target: "b"}, {Source: "b", Target: "c"}}

	order := TopologicalOrder(ids, insertion, edges)
	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}

	assert.Less(t, index["c"], index["b"])
	assert.Less(t, index["b"], index["a"])
}
