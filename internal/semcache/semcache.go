// Package semcache implements the Semantic Cache (spec.md §4.3): a
// content-addressed cache of entity -> semantic feature that lets the
// Encoder Pipeline skip re-running expensive feature extraction when an
// entity's content hash hasn't changed. Grounded on the teacher's
// internal/world/cache.go (lazy-load, dirty-flag, flush-on-demand FileCache),
// generalized from file-level (hash, mtime, size) keys to spec.md's
// entity-level (file_path, entity_kind, entity_name) keys.
package semcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/logging"
)

// FileVersion is the cache file's header tag; a mismatch invalidates the
// entire cache (spec.md §4.3 "a version tag in the file header invalidates
// the entire cache on mismatch").
const FileVersion = "1.0.0"

// DefaultTTL is the default cache entry lifetime (spec.md §4.3 "seven days").
const DefaultTTL = 7 * 24 * time.Hour

// Key identifies one cache entry (spec.md §3 "Cache Entry").
type Key struct {
	FilePath   string
	EntityKind string
	EntityName string
}

func (k Key) string() string {
	return k.FilePath + "\x00" + k.EntityKind + "\x00" + k.EntityName
}

// Input is everything ContentHash digests, plus the lookup Key. Parent,
// source, and documentation changing (even if name/kind/path do not) must
// invalidate the entry — spec.md §4.3 "Content hash: stable digest over
// (file_path, kind, name, parent, source_snippet, documentation)".
type Input struct {
	Key
	Parent        string
	SourceSnippet string
	Documentation string
}

// ContentHash computes the stable digest spec.md §4.3 requires, at least 64
// bits (we emit the full 256-bit SHA-256 hex digest).
func ContentHash(in Input) string {
	h := sha256.New()
	for _, part := range []string{in.FilePath, in.EntityKind, in.EntityName, in.Parent, in.SourceSnippet, in.Documentation} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// entry is one persisted cache row.
type entry struct {
	Feature     graph.Feature `json:"feature"`
	ContentHash string        `json:"hash"`
	CreatedAt   time.Time     `json:"created_at"`
}

// fileFormat is the on-disk shape (spec.md §6 "Semantic cache file").
type fileFormat struct {
	Version string           `json:"version"`
	Entries map[string]entry `json:"entries"`
}

// Cache is the content-addressed semantic feature cache. One Cache is owned
// by one encoder session; concurrent writers are not supported (spec.md
// §4.3 "external callers must serialise saves").
type Cache struct {
	mu       sync.Mutex
	path     string
	ttl      time.Duration
	entries  map[string]entry
	loaded   bool
	dirty    bool
}

// New creates a cache bound to path, with ttl (0 = DefaultTTL). Loading is
// lazy: the file is read on first Get/Set call, not here (spec.md §4.3
// "loaded lazily on first access").
func New(path string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{path: path, ttl: ttl, entries: make(map[string]entry)}
}

func (c *Cache) ensureLoadedLocked() {
	if c.loaded {
		return
	}
	c.loaded = true

	data, err := os.ReadFile(c.path)
	if err != nil {
		logging.Get(logging.CategoryCache).Debug("semcache: no existing cache at %s: %v", c.path, err)
		return
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		logging.Get(logging.CategoryCache).Warn("semcache: corrupt cache file %s, starting fresh: %v", c.path, err)
		return
	}
	if ff.Version != FileVersion {
		logging.Get(logging.CategoryCache).Info("semcache: cache version mismatch (%s != %s), invalidating", ff.Version, FileVersion)
		return
	}
	c.entries = ff.Entries
	logging.Get(logging.CategoryCache).Debug("semcache: loaded %d entries from %s", len(c.entries), c.path)
}

// Get returns the cached feature for in's key iff the stored content hash
// matches in's and the entry is younger than ttl; otherwise it evicts the
// stale/mismatched entry and returns (zero, false).
func (c *Cache) Get(in Input) (graph.Feature, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoadedLocked()

	k := in.Key.string()
	e, ok := c.entries[k]
	if !ok {
		return graph.Feature{}, false
	}

	wantHash := ContentHash(in)
	if e.ContentHash != wantHash || time.Since(e.CreatedAt) > c.ttl {
		delete(c.entries, k)
		c.dirty = true
		return graph.Feature{}, false
	}
	return e.Feature, true
}

// Set replaces (unconditionally) the cached feature for in's key.
func (c *Cache) Set(in Input, feature graph.Feature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoadedLocked()

	c.entries[in.Key.string()] = entry{
		Feature:     feature,
		ContentHash: ContentHash(in),
		CreatedAt:   time.Now(),
	}
	c.dirty = true
}

// Save flushes the cache to disk if it has unsaved changes (spec.md §4.3
// "flushed to a content file on demand"). Callers discipline concurrent
// writers themselves; Save does not lock against other processes.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("semcache: mkdir: %w", err)
	}

	ff := fileFormat{Version: FileVersion, Entries: c.entries}
	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return fmt.Errorf("semcache: marshal: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("semcache: write %s: %w", c.path, err)
	}

	c.dirty = false
	logging.Get(logging.CategoryCache).Info("semcache: saved %d entries to %s", len(c.entries), c.path)
	return nil
}

// Len reports the number of entries currently held in memory (loads first).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoadedLocked()
	return len(c.entries)
}
