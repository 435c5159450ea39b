package encoder

import (
	"regexp"
	"strings"

	rpgast "github.com/pleaseai/soop-sub000/internal/ast"
	"github.com/pleaseai/soop-sub000/internal/graph"
)

// extractHeuristicFeature is the deterministic fallback Semantic Extractor:
// it builds a Feature from an entity's documentation (if any) or, failing
// that, from its name, split into words. This is what the encoder uses when
// no LLM is configured (spec.md §9 "Hierarchy construction without LLM" —
// the analogous rule for per-entity feature extraction is the same:
// Phase 1 never requires an LLM) and what a timed-out LLM call falls back
// to (spec.md §5 "Timeouts").
func extractHeuristicFeature(entity rpgast.CodeEntity) graph.Feature {
	desc := strings.TrimSpace(entity.Doc)
	if desc == "" {
		desc = humanizeName(string(entity.Kind), entity.Name)
	} else if idx := strings.IndexByte(desc, '\n'); idx >= 0 {
		desc = desc[:idx]
	}

	keywords := splitWords(entity.Name)
	keywords = append(keywords, string(entity.Kind))
	if entity.Parent != "" {
		keywords = append(keywords, splitWords(entity.Parent)...)
	}

	return graph.NewFeature(desc, keywords)
}

// extractFileFeature builds a file-level Feature either by aggregating its
// direct children's features (spec.md §4.4 "(a) aggregating direct
// children's features if any exist") or, when the file has no lifted
// children, by extracting from the file name ("(b) extracting from file
// name").
func extractFileFeature(relPath string, childFeatures []graph.Feature) graph.Feature {
	if len(childFeatures) > 0 {
		var keywords []string
		descs := make([]string, 0, len(childFeatures))
		seen := make(map[string]bool)
		for _, f := range childFeatures {
			if f.Description != "" && !seen[f.Description] {
				seen[f.Description] = true
				descs = append(descs, f.Description)
			}
			keywords = append(keywords, f.Keywords...)
		}
		desc := "file providing: " + strings.Join(truncate(descs, 5), "; ")
		keywords = append(keywords, splitWords(baseName(relPath))...)
		return graph.NewFeature(desc, keywords)
	}

	name := baseName(relPath)
	return graph.NewFeature("file "+name, append(splitWords(name), "file"))
}

var wordSplitRe = regexp.MustCompile(`[A-Z]?[a-z0-9]+|[A-Z]+(?:[A-Z][a-z0-9]+)?`)

// splitWords splits a camelCase/snake_case/kebab-case identifier into
// lower-case words, used both for keyword extraction and for the humanized
// fallback description.
func splitWords(name string) []string {
	norm := strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(name)
	var words []string
	for _, field := range strings.Fields(norm) {
		for _, m := range wordSplitRe.FindAllString(field, -1) {
			words = append(words, strings.ToLower(m))
		}
	}
	return words
}

func humanizeName(kind, name string) string {
	words := splitWords(name)
	if len(words) == 0 {
		return kind + " " + name
	}
	return kind + " " + strings.Join(words, " ")
}

func baseName(relPath string) string {
	i := strings.LastIndexByte(relPath, '/')
	if i < 0 {
		return relPath
	}
	return relPath[i+1:]
}

func truncate(ss []string, n int) []string {
	if len(ss) <= n {
		return ss
	}
	return ss[:n]
}
