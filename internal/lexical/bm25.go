package lexical

import (
	"math"
	"sort"
)

// BM25-Okapi constants. Fixed defaults, not tunable from outside the core.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// Result is one BM25 hit: the corpus index, its score and the stored text.
type Result struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// Index is an immutable BM25-Okapi index over a corpus of chunk texts.
// Build a fresh one instead of mutating; readers may hold the old index
// while a replacement is under construction.
type Index struct {
	docs      []string
	docTokens [][]string
	docFreq   map[string]int
	avgDocLen float64
}

// NewIndex tokenizes documents and computes the BM25 statistics.
func NewIndex(documents []string, tokenizer *Tokenizer) *Index {
	idx := &Index{
		docs:      append([]string(nil), documents...),
		docTokens: make([][]string, len(documents)),
		docFreq:   make(map[string]int),
	}

	totalLen := 0
	for i, doc := range documents {
		tokens := tokenizer.Tokenize(doc)
		idx.docTokens[i] = tokens
		totalLen += len(tokens)

		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			idx.docFreq[tok]++
		}
	}
	if len(documents) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(documents))
	}
	return idx
}

// DocumentCount returns the corpus size.
func (idx *Index) DocumentCount() int {
	return len(idx.docs)
}

// Document returns the stored text at i.
func (idx *Index) Document(i int) string {
	return idx.docs[i]
}

// idf uses the Lucene-style log(x+1) variant, which stays non-negative for
// terms present in most documents; classic Okapi IDF goes negative there
// and needs an epsilon floor. Rankings differ only for such stop-like terms.
func (idx *Index) idf(token string) float64 {
	df := idx.docFreq[token]
	n := float64(len(idx.docs))
	return math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
}

// Search scores every document against the query tokens and returns the
// positive-score hits sorted descending, truncated to topK.
func (idx *Index) Search(queryTokens []string, topK int) []Result {
	if len(idx.docs) == 0 || len(queryTokens) == 0 || topK <= 0 {
		return []Result{}
	}

	results := make([]Result, 0, topK)
	for i, tokens := range idx.docTokens {
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}

		docLen := float64(len(tokens))
		var score float64
		for _, q := range queryTokens {
			f := float64(tf[q])
			if f == 0 {
				continue
			}
			norm := bm25K1 * (1 - bm25B + bm25B*docLen/idx.avgDocLen)
			score += idx.idf(q) * f * (bm25K1 + 1) / (f + norm)
		}
		if score > 0 {
			results = append(results, Result{Index: i, Score: score, Text: idx.docs[i]})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
