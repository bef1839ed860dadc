package reranker

import (
	"context"
	"strings"
	"unicode"
)

// localBackend scores (query, document) pairs by token overlap. It is
// deterministic and runs in-process, which makes it the default when no
// remote cross-encoder is configured.
type localBackend struct{}

func newLocalBackend() *localBackend {
	return &localBackend{}
}

func (b *localBackend) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	queryTokens := tokenSet(query)
	scores := make([]float64, len(documents))
	if len(queryTokens) == 0 {
		return scores, nil
	}

	for i, doc := range documents {
		docTokens := tokenSet(doc)
		matched := 0
		for token := range queryTokens {
			if _, ok := docTokens[token]; ok {
				matched++
			}
		}
		scores[i] = float64(matched) / float64(len(queryTokens))
	}
	return scores, nil
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			set[current.String()] = struct{}{}
			current.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			set[string(r)] = struct{}{}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return set
}
