package interactive

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pleaseai/soop-sub000/internal/graph"
	"github.com/pleaseai/soop-sub000/internal/logging"
	"github.com/pleaseai/soop-sub000/internal/store"
)

// driftThreshold is spec.md §4.6 step 3's fixed re-routing trigger ("if >
// 0.5, queue a pending_routing entry"). Unlike the Evolution Engine's
// configurable DriftThreshold (spec.md §4.5), the interactive protocol's
// value is a protocol constant.
const driftThreshold = 0.5

// SubmitFeaturesResult reports how a submit_features call landed.
type SubmitFeaturesResult struct {
	Accepted int
	Drifted  []string
}

// SubmitFeatures implements spec.md §4.6 step 3: normalize each entity's
// submitted feature list into a graph.Feature, write it into the graph, and
// queue re-routing for any entity whose resubmitted feature drifted from
// its previous one by more than driftThreshold.
func (s *Session) SubmitFeatures(ctx context.Context, features map[string][]string) (*SubmitFeaturesResult, error) {
	timer := logging.StartTimer(logging.CategoryInteractive, "Session.SubmitFeatures")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(features))
	for id := range features {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := &SubmitFeaturesResult{}
	for _, id := range ids {
		entity, ok := s.entityByID(id)
		if !ok {
			return nil, &ErrUnknownEntity{ID: id}
		}

		terms := features[id]
		feature := graph.NewFeature(strings.Join(terms, "; "), append(append([]string{}, terms...), string(entity.Kind)))

		if old, existed := s.LiftedFeatures[id]; existed {
			if jaccardDistance(old.Keywords, feature.Keywords) > driftThreshold {
				s.PendingRouting = append(s.PendingRouting, PendingRouting{
					EntityID: id, Reason: "drifted", OldFeature: old, NewFeature: feature,
				})
				result.Drifted = append(result.Drifted, id)
			}
		}

		s.LiftedFeatures[id] = feature
		if err := s.Store.UpdateNode(ctx, id, store.Patch{Feature: &feature}); err != nil {
			logging.Get(logging.CategoryInteractive).Warn("interactive: update feature for %s: %v", id, err)
		}
		result.Accepted++
	}

	s.GraphRevision = s.computeRevision()
	s.persist(ctx)
	return result, nil
}

// FinalizeFeaturesResult reports the outcome of finalize_features.
type FinalizeFeaturesResult struct {
	FilesAggregated int
	NextAction      string
}

// FinalizeFeatures implements spec.md §4.6 step 4: aggregate file-level
// features from each file's lifted child entities.
func (s *Session) FinalizeFeatures(ctx context.Context) (*FinalizeFeaturesResult, error) {
	timer := logging.StartTimer(logging.CategoryInteractive, "Session.FinalizeFeatures")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	byFile := make(map[string][]graph.Feature)
	var order []string
	for _, e := range s.Entities {
		f, ok := s.LiftedFeatures[e.ID]
		if !ok {
			continue
		}
		if _, seen := byFile[e.Path]; !seen {
			order = append(order, e.Path)
		}
		byFile[e.Path] = append(byFile[e.Path], f)
	}
	sort.Strings(order)

	for _, path := range order {
		feature := aggregateFileFeature(path, byFile[path])
		s.FileFeatures[path] = feature
		if err := s.Store.UpdateNode(ctx, path+":file", store.Patch{Feature: &feature}); err != nil {
			logging.Get(logging.CategoryInteractive).Warn("interactive: update file feature for %s: %v", path, err)
		}
	}

	nextAction := "get_synthesis_batch"
	if len(s.PendingRouting) > 0 {
		nextAction = "get_routing_batch"
	}
	s.Phase = PhaseSynthesis

	s.GraphRevision = s.computeRevision()
	s.persist(ctx)

	return &FinalizeFeaturesResult{FilesAggregated: len(order), NextAction: nextAction}, nil
}

func aggregateFileFeature(path string, features []graph.Feature) graph.Feature {
	var keywords []string
	descs := make([]string, 0, len(features))
	seen := make(map[string]bool)
	for _, f := range features {
		if f.Description != "" && !seen[f.Description] {
			seen[f.Description] = true
			descs = append(descs, f.Description)
		}
		keywords = append(keywords, f.Keywords...)
	}
	if len(descs) > 5 {
		descs = descs[:5]
	}
	desc := "file providing: " + strings.Join(descs, "; ")
	return graph.NewFeature(desc, keywords)
}

// SubmitSynthesis implements spec.md §4.6 step 5: a holistic re-write of
// file-level features, overriding finalize_features' mechanical aggregation.
func (s *Session) SubmitSynthesis(ctx context.Context, synthesized map[string][]string) (int, error) {
	timer := logging.StartTimer(logging.CategoryInteractive, "Session.SubmitSynthesis")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(synthesized))
	for p := range synthesized {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if _, ok := s.FileFeatures[path]; !ok {
			return 0, &ErrUnknownEntity{ID: path}
		}
		terms := synthesized[path]
		feature := graph.NewFeature(strings.Join(terms, "; "), terms)
		s.SynthesizedFeatures[path] = feature
		s.FileFeatures[path] = feature
		if err := s.Store.UpdateNode(ctx, path+":file", store.Patch{Feature: &feature}); err != nil {
			logging.Get(logging.CategoryInteractive).Warn("interactive: update synthesized feature for %s: %v", path, err)
		}
	}

	s.Phase = PhaseHierarchy
	s.GraphRevision = s.computeRevision()
	s.persist(ctx)
	return len(paths), nil
}

// SubmitHierarchyResult reports how many High-Level nodes the hierarchy
// build produced.
type SubmitHierarchyResult struct {
	NodesCreated int
}

// SubmitHierarchy implements spec.md §4.6 step 6: build the High-Level
// spine from an "Area/category/subcategory" assignment per file,
// deduplicating shared ancestors, grounded on the same spine-building shape
// as internal/encoder's Phase 2 (spec.md §4.4 step 3).
func (s *Session) SubmitHierarchy(ctx context.Context, assignments map[string]string) (*SubmitHierarchyResult, error) {
	timer := logging.StartTimer(logging.CategoryInteractive, "Session.SubmitHierarchy")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(assignments))
	for p := range assignments {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	created := make(map[string]bool)
	for _, path := range paths {
		hierarchyPath := assignments[path]
		segments := strings.Split(strings.Trim(hierarchyPath, "/"), "/")
		if len(segments) == 0 || segments[0] == "" {
			return nil, &ErrInvalidInput{Reason: "empty hierarchy path for " + path}
		}
		s.HierarchyAssignments[path] = hierarchyPath

		var parentID, prefix string
		for level, seg := range segments {
			if prefix == "" {
				prefix = seg
			} else {
				prefix = prefix + "/" + seg
			}
			nodeID := "area:" + prefix
			if !created[nodeID] {
				if ok, _ := s.Store.HasNode(ctx, nodeID); !ok {
					node := graph.Node{
						ID: nodeID, Variant: graph.HighLevel,
						Feature:       graph.NewFeature(seg, strings.Fields(seg)),
						DirectoryPath: prefix,
						Metadata:      &graph.Metadata{EntityType: "module"},
					}
					if err := s.Store.AddNode(ctx, node); err != nil {
						return nil, fmt.Errorf("interactive: add hierarchy node %s: %w", nodeID, err)
					}
				}
				created[nodeID] = true
			}
			if parentID != "" {
				if parent, _ := s.Store.GetParent(ctx, nodeID); parent == nil || parent.ID != parentID {
					if err := s.Store.AddEdge(ctx, graph.FunctionalEdge(parentID, nodeID, level, 0)); err != nil {
						logging.Get(logging.CategoryInteractive).Warn("interactive: link %s -> %s: %v", parentID, nodeID, err)
					}
				}
			}
			parentID = nodeID
		}

		fileID := path + ":file"
		if ok, _ := s.Store.HasNode(ctx, fileID); ok {
			if parent, _ := s.Store.GetParent(ctx, fileID); parent == nil || parent.ID != parentID {
				if err := s.Store.AddEdge(ctx, graph.FunctionalEdge(parentID, fileID, len(segments), 0)); err != nil {
					logging.Get(logging.CategoryInteractive).Warn("interactive: link %s -> %s: %v", parentID, fileID, err)
				}
			}
		}
	}

	s.Phase = PhaseRouting
	s.GraphRevision = s.computeRevision()
	s.persist(ctx)
	return &SubmitHierarchyResult{NodesCreated: len(created)}, nil
}

// SubmitRoutingResult reports how a submit_routing call landed.
type SubmitRoutingResult struct {
	Applied int
	Skipped []string
}

// SubmitRouting implements spec.md §4.6 step 7: apply Keep/Move decisions
// to the pending-routing queue, after validating the caller's revision
// against the session's current graph_revision (spec.md §7 "StaleRevision",
// §8 testable property 10). Decisions of the form "move:<hierarchy path>"
// record that path as the entity's file's entry in HierarchyAssignments
// (the store's functional edges are not changed); "keep" simply
// resolves the queue entry without further mutation. Other decision
// strings are rejected per-item and collected in Skipped rather than
// aborting the whole batch — this includes "split", a named but
// unimplemented extension point: the spec gives it no semantics beyond
// the name, so it lands in Skipped like any other unrecognized decision.
func (s *Session) SubmitRouting(ctx context.Context, decisions map[string]string, revision string) (*SubmitRoutingResult, error) {
	timer := logging.StartTimer(logging.CategoryInteractive, "Session.SubmitRouting")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if revision != s.GraphRevision {
		return nil, &ErrStaleRevision{Got: revision, Want: s.GraphRevision}
	}

	result := &SubmitRoutingResult{}
	ids := make([]string, 0, len(decisions))
	for id := range decisions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		idx := -1
		for i, pr := range s.PendingRouting {
			if pr.EntityID == id && !pr.Resolved {
				idx = i
				break
			}
		}
		if idx < 0 {
			result.Skipped = append(result.Skipped, id)
			continue
		}

		decision := decisions[id]
		switch {
		case decision == "keep":
			s.PendingRouting[idx].Resolved = true
			result.Applied++
		case strings.HasPrefix(decision, "move:"):
			entity, ok := s.entityByID(id)
			if !ok {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			s.HierarchyAssignments[entity.Path] = strings.TrimPrefix(decision, "move:")
			s.PendingRouting[idx].Resolved = true
			result.Applied++
		default:
			result.Skipped = append(result.Skipped, id)
		}
	}

	allResolved := true
	for _, pr := range s.PendingRouting {
		if !pr.Resolved {
			allResolved = false
			break
		}
	}
	if allResolved {
		s.Phase = PhaseDone
	}

	s.GraphRevision = s.computeRevision()
	s.persist(ctx)
	return result, nil
}

func jaccardDistance(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, x := range a {
		setA[strings.ToLower(x)] = true
	}
	setB := make(map[string]bool, len(b))
	for _, x := range b {
		setB[strings.ToLower(x)] = true
	}

	union := make(map[string]bool, len(setA)+len(setB))
	intersection := 0
	for x := range setA {
		union[x] = true
		if setB[x] {
			intersection++
		}
	}
	for x := range setB {
		union[x] = true
	}
	if len(union) == 0 {
		return 0
	}
	return 1 - float64(intersection)/float64(len(union))
}
