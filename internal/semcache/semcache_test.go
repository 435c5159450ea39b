package semcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pleaseai/soop-sub000/internal/graph"
)

func testInput() Input {
	return Input{
		Key:           Key{FilePath: "widget.go", EntityKind: "function", EntityName: "Render"},
		Parent:        "",
		SourceSnippet: "func Render() {}",
		Documentation: "Render draws the widget.",
	}
}

func TestSetThenGetHitsOnUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "cache.json"), time.Hour)

	in := testInput()
	feature := graph.NewFeature("draws the widget", []string{"render", "widget"})
	c.Set(in, feature)

	got, ok := c.Get(in)
	require.True(t, ok)
	require.Equal(t, feature, got)
}

func TestGetMissesOnContentChange(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "cache.json"), time.Hour)

	in := testInput()
	c.Set(in, graph.NewFeature("draws the widget", []string{"render"}))

	changed := in
	changed.SourceSnippet = "func Render() { fmt.Println() }"
	_, ok := c.Get(changed)
	require.False(t, ok)

	// The stale entry is evicted, so even the original input now misses.
	_, ok = c.Get(in)
	require.False(t, ok)
}

func TestGetMissesAfterTTLExpiry(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "cache.json"), time.Nanosecond)

	in := testInput()
	c.Set(in, graph.NewFeature("draws the widget", []string{"render"}))
	time.Sleep(time.Millisecond)

	_, ok := c.Get(in)
	require.False(t, ok)
}

func TestSaveAndReloadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	c := New(path, time.Hour)
	in := testInput()
	feature := graph.NewFeature("draws the widget", []string{"render", "widget"})
	c.Set(in, feature)
	require.NoError(t, c.Save())

	reloaded := New(path, time.Hour)
	got, ok := reloaded.Get(in)
	require.True(t, ok)
	require.Equal(t, feature, got)
}

func TestVersionMismatchInvalidatesCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	c := New(path, time.Hour)
	in := testInput()
	c.Set(in, graph.NewFeature("draws the widget", []string{"render"}))
	require.NoError(t, c.Save())

	stale := New(path, time.Hour)
	stale.entries = nil // force a reload path exercising version check
	stale.loaded = false

	// Simulate a future incompatible format by writing a different version.
	badData := []byte(`{"version":"0.0.1","entries":{}}`)
	require.NoError(t, os.WriteFile(path, badData, 0o644))

	got, ok := stale.Get(in)
	require.False(t, ok)
	require.Equal(t, graph.Feature{}, got)
}

func TestDefaultTTLAppliedWhenNonPositive(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "cache.json"), 0)
	require.Equal(t, DefaultTTL, c.ttl)
}

func TestLenReflectsEntryCount(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "cache.json"), time.Hour)
	require.Equal(t, 0, c.Len())

	c.Set(testInput(), graph.NewFeature("draws the widget", nil))
	require.Equal(t, 1, c.Len())
}
