package query

import (
	"context"

	"github.com/pleaseai/soop-sub000/internal/logging"
	"github.com/pleaseai/soop-sub000/internal/store"
)

// ExploreRequest is one Explore call's parameters (spec.md §4.7: "same
// contract as Graph Store.traverse").
type ExploreRequest struct {
	Start    string
	EdgeKind store.EdgeKind
	MaxDepth int
	Direction store.Direction
	Filter   *store.NodeFilter
}

// Explore implements spec.md §4.7's Explore operation by delegating
// directly to Store.Traverse; an unknown start node surfaces as whatever
// NodeNotFound-wrapped error the store returns (spec.md §4.7 "Unknown
// start yields NodeNotFound").
func (s *Surface) Explore(ctx context.Context, req ExploreRequest) (*store.TraverseResult, error) {
	timer := logging.StartTimer(logging.CategoryQuery, "Surface.Explore")
	defer timer.Stop()

	if req.Start == "" {
		return nil, &ErrInvalidRequest{Reason: "start is required"}
	}

	edgeKind := req.EdgeKind
	if edgeKind == "" {
		edgeKind = store.EdgeKindBoth
	}
	direction := req.Direction
	if direction == "" {
		direction = store.DirOut
	}

	return s.Store.Traverse(ctx, req.Start, edgeKind, direction, req.MaxDepth, req.Filter)
}
