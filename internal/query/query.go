// Package query implements the Query Surface (spec.md §4.7): Search, Fetch,
// and Explore, the three read-only operations downstream agents consume.
// Grounded on spec.md §4.7's literal contract; no single teacher file
// performs an equivalent read surface, so this package composes directly
// over internal/store's existing search/traverse/navigation methods rather
// than re-deriving them.
package query

import (
	"github.com/pleaseai/soop-sub000/internal/config"
	"github.com/pleaseai/soop-sub000/internal/store"
)

// Surface wraps a Graph Store with the three query operations. One Surface
// serves one graph; construction is cheap (no owned resources beyond the
// store reference).
type Surface struct {
	Store  store.Store
	Config *config.Config
}

// New builds a Surface over st, reading weights and the RRF constant from
// cfg.Search (spec.md §6 "Search: hybrid.vector_weight, RRF constant").
func New(st store.Store, cfg *config.Config) *Surface {
	return &Surface{Store: st, Config: cfg}
}

// ErrInvalidRequest covers malformed Fetch/Search/Explore requests
// (spec.md §7 "InvalidInput").
type ErrInvalidRequest struct{ Reason string }

func (e *ErrInvalidRequest) Error() string { return "query: invalid request: " + e.Reason }
