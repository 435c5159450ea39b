// Package algo holds the pure, backend-independent algorithms the Graph
// Store's two conformance implementations share: tokenisation, BM25
// scoring, Reciprocal Rank Fusion, glob-to-regex path matching, and Kahn's
// topological sort. They are plain functions over ids, token strings and
// DepEdge values rather than methods on a backend; BFS traversal lives in
// MemStore, and SQLiteStore answers every read through its in-memory
// MemStore, so both backends share one search/traversal semantics without
// duplicating the logic (spec.md §9 "Design Notes").
package algo

import (
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

// Tokenize splits text into lower-cased alphanumeric-and-underscore runs.
// spec.md §9 resolves the tokenisation Open Question as authoritative:
// "alphanumeric + underscore runs, prefix-matched."
func Tokenize(text string) []string {
	matches := tokenRe.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.ToLower(m))
	}
	return out
}

// BuildDocument concatenates the fields search_by_feature indexes
// (description + keywords + path + qualified_name), per spec.md §4.1
// "Text index."
func BuildDocument(description string, keywords []string, path, qualifiedName string) string {
	var b strings.Builder
	b.WriteString(description)
	for _, kw := range keywords {
		b.WriteByte(' ')
		b.WriteString(kw)
	}
	if path != "" {
		b.WriteByte(' ')
		b.WriteString(path)
	}
	if qualifiedName != "" {
		b.WriteByte(' ')
		b.WriteString(qualifiedName)
	}
	return b.String()
}
