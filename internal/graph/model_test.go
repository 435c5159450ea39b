package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKeywords(t *testing.T) {
	got := NormalizeKeywords([]string{"Auth", "  Login  ", "ok", "ok", "Auth", "no"})
	assert.Equal(t, []string{"auth", "login"}, got, "should lower-case, trim, dedupe, and drop tokens <= 2 chars")
}

func TestNewFeature(t *testing.T) {
	f := NewFeature("  Handles Authentication  ", []string{"Auth", "LOGIN"})
	assert.Equal(t, "handles authentication", f.Description)
	assert.Equal(t, []string{"auth", "login"}, f.Keywords)
}

func TestRevisionDeterministic(t *testing.T) {
	nodes := []Node{
		{ID: "b", Variant: LowLevel, Feature: NewFeature("second", nil)},
		{ID: "a", Variant: LowLevel, Feature: NewFeature("first", nil)},
	}
	edges := []Edge{FunctionalEdge("a", "b", 0, 0)}

	r1 := Revision(nodes, edges)
	require.Len(t, r1, 12)

	// Reordered input must produce the identical revision.
	reordered := []Node{nodes[1], nodes[0]}
	r2 := Revision(reordered, edges)
	assert.Equal(t, r1, r2, "revision must not depend on insertion order")

	// Changing a feature changes the revision.
	nodes[0].Feature = NewFeature("different", nil)
	r3 := Revision(nodes, edges)
	assert.NotEqual(t, r1, r3)
}
