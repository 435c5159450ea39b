package interactive

import (
	"context"
	"strings"
)

// EntityView is one rendered entity inside an EntityBatchView, with its
// source snippet truncated per spec.md §4.6 step 2 ("truncated to ~3000
// chars/entity").
type EntityView struct {
	ID      string
	Path    string
	Kind    string
	Name    string
	Parent  string
	Doc     string
	Snippet string
}

// EntityBatchView is the rendered response to get_entity_batch.
type EntityBatchView struct {
	BatchIndex  int
	BatchCount  int
	Entities    []EntityView
	Instruction string // non-empty only on batch 0, per spec.md §4.6 step 2
}

const instructionBlock = "For each entity id, return a short list of feature keywords/phrases describing what it does."

// GetEntityBatch implements spec.md §4.6 step 2. scope "*" returns the
// precomputed global batch at batchIndex; any other scope is treated as a
// path prefix and returns a single ad hoc batch over the matching entities
// (batchIndex is ignored in that case, since scoped views are not
// precomputed).
func (s *Session) GetEntityBatch(scope string, batchIndex int) (*EntityBatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scope == "" || scope == "*" {
		if batchIndex < 0 || batchIndex >= len(s.BatchBoundaries) {
			return nil, &ErrInvalidInput{Reason: "batch index out of range"}
		}
		b := s.BatchBoundaries[batchIndex]
		view := &EntityBatchView{BatchIndex: batchIndex, BatchCount: len(s.BatchBoundaries)}
		for _, e := range s.Entities[b.Start:b.End] {
			view.Entities = append(view.Entities, entityView(e))
		}
		if batchIndex == 0 {
			view.Instruction = instructionBlock
		}
		return view, nil
	}

	view := &EntityBatchView{BatchIndex: 0, BatchCount: 1, Instruction: instructionBlock}
	for _, e := range s.Entities {
		if strings.HasPrefix(e.Path, scope) {
			view.Entities = append(view.Entities, entityView(e))
		}
	}
	return view, nil
}

func entityView(e Entity) EntityView {
	snippet := e.Source
	if len(snippet) > maxSnippetChars {
		snippet = snippet[:maxSnippetChars]
	}
	return EntityView{ID: e.ID, Path: e.Path, Kind: string(e.Kind), Name: e.Name, Parent: e.Parent, Doc: e.Doc, Snippet: snippet}
}

// HierarchyContextView is the response to get_hierarchy_context: the
// discovered file features, for the agent to assign three-level paths
// against (spec.md §4.6 step 6).
type HierarchyContextView struct {
	Files []FileFeature
}

// FileFeature pairs a file path with its aggregated feature (spec.md §4.6
// step 4 "aggregates file-level features from child entities").
type FileFeature struct {
	Path        string
	Description string
	Keywords    []string
}

// GetHierarchyContext implements spec.md §4.6 step 6's read side.
func (s *Session) GetHierarchyContext() (*HierarchyContextView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := &HierarchyContextView{}
	for path, f := range s.FileFeatures {
		view.Files = append(view.Files, FileFeature{Path: path, Description: f.Description, Keywords: f.Keywords})
	}
	return view, nil
}

// RoutingView is one pending-routing decision rendered for get_routing_batch.
type RoutingView struct {
	EntityID       string
	Reason         string
	OldDescription string
	NewDescription string
}

// RoutingBatchView is the response to get_routing_batch, carrying the
// revision the agent must echo back in submit_routing (spec.md §4.6 step 7).
type RoutingBatchView struct {
	Items    []RoutingView
	Revision string
}

// GetRoutingBatch implements spec.md §4.6 step 7's read side. idx selects a
// maxEntitiesPerBatch-sized slice of the unresolved pending-routing queue.
func (s *Session) GetRoutingBatch(ctx context.Context, idx int) (*RoutingBatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var unresolved []PendingRouting
	for _, pr := range s.PendingRouting {
		if !pr.Resolved {
			unresolved = append(unresolved, pr)
		}
	}

	start := idx * maxEntitiesPerBatch
	if start < 0 || start > len(unresolved) {
		return nil, &ErrInvalidInput{Reason: "routing batch index out of range"}
	}
	end := start + maxEntitiesPerBatch
	if end > len(unresolved) {
		end = len(unresolved)
	}

	view := &RoutingBatchView{Revision: s.GraphRevision}
	for _, pr := range unresolved[start:end] {
		view.Items = append(view.Items, RoutingView{
			EntityID:       pr.EntityID,
			Reason:         pr.Reason,
			OldDescription: pr.OldFeature.Description,
			NewDescription: pr.NewFeature.Description,
		})
	}
	return view, nil
}

// SynthesisBatchView is the response to get_synthesis_batch: the file
// features computed by finalize_features, for holistic re-writing (spec.md
// §4.6 step 5).
type SynthesisBatchView struct {
	Files []FileFeature
}

// GetSynthesisBatch implements spec.md §4.6 step 5's read side. idx is
// currently advisory (one batch covers every file); it is accepted for
// forward-compatibility with a future paginated rendering.
func (s *Session) GetSynthesisBatch(idx int) (*SynthesisBatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := &SynthesisBatchView{}
	for path, f := range s.FileFeatures {
		view.Files = append(view.Files, FileFeature{Path: path, Description: f.Description, Keywords: f.Keywords})
	}
	return view, nil
}
