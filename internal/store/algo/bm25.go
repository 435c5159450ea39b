package algo

import (
	"math"
	"sort"
	"strings"
)

// BM25 tuning constants (standard Okapi defaults).
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Doc is one document in a BM25 index: an opaque id plus its token stream.
type Doc struct {
	ID     string
	Tokens []string
}

// Index is an in-memory inverted index supporting prefix-matched BM25
// scoring. MemStore owns one and keeps it current through Upsert/Remove on
// every node write; SQLiteStore uses it through the MemStore it keeps
// hydrated, so the index is never rebuilt per query.
type Index struct {
	docTokens map[string][]string
	docLen    map[string]int
	totalLen  int
}

// NewIndex builds an empty index.
func NewIndex() *Index {
	return &Index{docTokens: make(map[string][]string), docLen: make(map[string]int)}
}

// Upsert (re)indexes a document, replacing any prior tokens for the same id.
// This is how the text index stays "maintained transactionally with the
// node" per spec.md §4.1.
func (idx *Index) Upsert(id string, document string) {
	idx.Remove(id)
	tokens := Tokenize(document)
	idx.docTokens[id] = tokens
	idx.docLen[id] = len(tokens)
	idx.totalLen += len(tokens)
}

// Remove deletes a document's entry from the index, if present.
func (idx *Index) Remove(id string) {
	if n, ok := idx.docLen[id]; ok {
		idx.totalLen -= n
		delete(idx.docLen, id)
		delete(idx.docTokens, id)
	}
}

func (idx *Index) avgDocLen() float64 {
	if len(idx.docLen) == 0 {
		return 0
	}
	return float64(idx.totalLen) / float64(len(idx.docLen))
}

// ScoredID pairs a document id with a ranking score.
type ScoredID struct {
	ID    string
	Score float64
}

// SearchPrefix scores every document against queryWords using prefix-match
// BM25: a document "contains" a query word if any of its tokens starts with
// that word; disjunction across words, per spec.md §4.1 "each word becomes
// a prefix-match constraint ... disjunction across words." Results are
// ordered best-first, ties broken by id ascending (spec.md §5).
func (idx *Index) SearchPrefix(queryWords []string) []ScoredID {
	if len(queryWords) == 0 || len(idx.docTokens) == 0 {
		return nil
	}
	avgdl := idx.avgDocLen()
	N := float64(len(idx.docTokens))

	// docFreq[w] = number of documents containing a token with prefix w.
	docFreq := make(map[string]int, len(queryWords))
	// matchCount[id][w] = number of tokens in doc id with prefix w.
	matchCount := make(map[string]map[string]int)

	for id, tokens := range idx.docTokens {
		perWord := make(map[string]int)
		for _, tok := range tokens {
			for _, w := range queryWords {
				if strings.HasPrefix(tok, w) {
					perWord[w]++
				}
			}
		}
		if len(perWord) == 0 {
			continue
		}
		matchCount[id] = perWord
		for w := range perWord {
			docFreq[w]++
		}
	}

	scores := make([]ScoredID, 0, len(matchCount))
	for id, perWord := range matchCount {
		dl := float64(idx.docLen[id])
		var score float64
		for w, tf := range perWord {
			idf := math.Log(1 + (N-float64(docFreq[w])+0.5)/(float64(docFreq[w])+0.5))
			denom := float64(tf) + bm25K1*(1-bm25B+bm25B*dl/maxFloat(avgdl, 1))
			score += idf * (float64(tf) * (bm25K1 + 1)) / denom
		}
		scores = append(scores, ScoredID{ID: id, Score: score})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ID < scores[j].ID
	})
	return scores
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
