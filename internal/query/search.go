package query

import (
	"context"

	"github.com/pleaseai/soop-sub000/internal/logging"
	"github.com/pleaseai/soop-sub000/internal/store"
)

// Mode selects what a Search call matches against (spec.md §4.7).
type Mode string

const (
	ModeFeatures Mode = "features"
	ModeSnippets Mode = "snippets"
	ModeAuto     Mode = "auto"
)

// SearchRequest is one Search call's parameters (spec.md §4.7).
type SearchRequest struct {
	Mode         Mode
	FeatureTerms string
	FilePattern  string
	Scopes       []string
	Strategy     store.SearchStrategy
	QueryVector  []float32
	K            int
}

// Search implements spec.md §4.7's Search operation: in ModeAuto, feature
// search runs first and snippet search only runs if it came back empty
// (staged fallback); results are deduplicated by node id.
func (s *Surface) Search(ctx context.Context, req SearchRequest) ([]store.ScoredNode, error) {
	timer := logging.StartTimer(logging.CategoryQuery, "Surface.Search")
	defer timer.Stop()

	if req.Mode == "" {
		req.Mode = ModeAuto
	}
	k := req.K
	if k <= 0 {
		k = 10
	}

	var results []store.ScoredNode
	var err error

	switch req.Mode {
	case ModeFeatures:
		results, err = s.searchByFeature(ctx, req, k)
	case ModeSnippets:
		results, err = s.searchByPattern(ctx, req)
	case ModeAuto:
		results, err = s.searchByFeature(ctx, req, k)
		if err == nil && len(results) == 0 && req.FilePattern != "" {
			results, err = s.searchByPattern(ctx, req)
		}
	default:
		return nil, &ErrInvalidRequest{Reason: "unknown search mode: " + string(req.Mode)}
	}
	if err != nil {
		return nil, err
	}

	return dedupByNodeID(results), nil
}

func (s *Surface) searchByFeature(ctx context.Context, req SearchRequest, k int) ([]store.ScoredNode, error) {
	switch req.Strategy {
	case store.StrategyVector:
		return s.Store.SearchVector(ctx, req.QueryVector, k)
	case store.StrategyHybrid:
		weight, rrfK := s.hybridParams()
		return s.Store.SearchHybrid(ctx, req.FeatureTerms, req.QueryVector, k, weight, rrfK)
	case store.StrategyString, store.StrategyFTS, "":
		return s.Store.SearchByFeature(ctx, req.FeatureTerms, req.Scopes)
	default:
		return nil, &ErrInvalidRequest{Reason: "unknown search strategy: " + string(req.Strategy)}
	}
}

func (s *Surface) searchByPattern(ctx context.Context, req SearchRequest) ([]store.ScoredNode, error) {
	nodes, err := s.Store.SearchByPath(ctx, req.FilePattern)
	if err != nil {
		return nil, err
	}
	out := make([]store.ScoredNode, len(nodes))
	for i, n := range nodes {
		out[i] = store.ScoredNode{Node: n, Score: 1}
	}
	return out, nil
}

func (s *Surface) hybridParams() (float64, int) {
	weight, rrfK := 0.7, 60
	if s.Config != nil {
		if s.Config.Search.VectorWeight > 0 {
			weight = s.Config.Search.VectorWeight
		}
		if s.Config.Search.RRFConstant > 0 {
			rrfK = s.Config.Search.RRFConstant
		}
	}
	return weight, rrfK
}

func dedupByNodeID(in []store.ScoredNode) []store.ScoredNode {
	seen := make(map[string]bool, len(in))
	out := make([]store.ScoredNode, 0, len(in))
	for _, sn := range in {
		if seen[sn.Node.ID] {
			continue
		}
		seen[sn.Node.ID] = true
		out = append(out, sn)
	}
	return out
}
