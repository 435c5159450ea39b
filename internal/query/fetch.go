package query

import (
	"context"

	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/logging"
)

// FetchRequest is one Fetch call's parameters (spec.md §4.7). At least one
// of CodeEntities / FeatureEntities must be non-empty.
type FetchRequest struct {
	CodeEntities    []string
	FeatureEntities []string
}

// FetchedItem is one resolved id: its node, source snippet (when
// available), and feature-path — the root-to-node chain of descriptions
// (spec.md §4.7 "feature-path (root-to-node description chain)").
type FetchedItem struct {
	Node        graph.Node
	Snippet     string
	FeaturePath []string
}

// FetchResult is the response to Fetch.
type FetchResult struct {
	Items    []FetchedItem
	NotFound []string
}

// Fetch implements spec.md §4.7's Fetch operation.
func (s *Surface) Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	timer := logging.StartTimer(logging.CategoryQuery, "Surface.Fetch")
	defer timer.Stop()

	if len(req.CodeEntities) == 0 && len(req.FeatureEntities) == 0 {
		return nil, &ErrInvalidRequest{Reason: "at least one of code_entities or feature_entities is required"}
	}

	result := &FetchResult{}
	ids := make([]string, 0, len(req.CodeEntities)+len(req.FeatureEntities))
	ids = append(ids, req.CodeEntities...)
	ids = append(ids, req.FeatureEntities...)

	for _, id := range ids {
		node, err := s.Store.GetNode(ctx, id)
		if err != nil || node == nil {
			result.NotFound = append(result.NotFound, id)
			continue
		}

		path, err := s.featurePath(ctx, *node)
		if err != nil {
			logging.Get(logging.CategoryQuery).Warn("query: feature path for %s: %v", id, err)
		}

		result.Items = append(result.Items, FetchedItem{
			Node:        *node,
			Snippet:     node.SourceCode,
			FeaturePath: path,
		})
	}

	return result, nil
}

// featurePath walks parent links from node up to the root, returning
// descriptions root-first.
func (s *Surface) featurePath(ctx context.Context, node graph.Node) ([]string, error) {
	var chain []string
	chain = append(chain, node.Feature.Description)

	cur := node
	for i := 0; i < 64; i++ { // functional edges are acyclic (spec.md §8 invariant 3); 64 is a defensive cap
		parent, err := s.Store.GetParent(ctx, cur.ID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		chain = append(chain, parent.Feature.Description)
		cur = *parent
	}

	reversed := make([]string, len(chain))
	for i, d := range chain {
		reversed[len(chain)-1-i] = d
	}
	return reversed, nil
}
