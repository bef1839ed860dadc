// Package lexical provides the in-memory BM25 keyword index used for the
// sparse half of hybrid search. Tokenization is script-aware: contiguous
// CJK runs go through a dictionary segmenter, everything else is lowercased
// and split on word boundaries, and token streams keep original order.
package lexical

import (
	"regexp"
	"strings"

	"github.com/go-ego/gse"
)

var wordPattern = regexp.MustCompile(`\w+`)

// Tokenizer segments text for indexing and querying. Construct once: the
// dictionary load is the expensive part.
type Tokenizer struct {
	seg gse.Segmenter
}

// NewTokenizer loads the segmentation dictionary.
func NewTokenizer() (*Tokenizer, error) {
	t := &Tokenizer{}
	if err := t.seg.LoadDict(); err != nil {
		return nil, err
	}
	return t, nil
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || (r >= 0x3400 && r <= 0x4DBF)
}

func containsCJK(text string) bool {
	for _, r := range text {
		if isCJK(r) {
			return true
		}
	}
	return false
}

// Tokenize splits text into search tokens. Pure Latin text never touches
// the segmenter; mixed text is carved into alternating CJK and non-CJK
// runs so a CJK run is never merged with an adjacent Latin run.
func (t *Tokenizer) Tokenize(text string) []string {
	if !containsCJK(text) {
		return latinTokens(text)
	}

	var tokens []string
	var run strings.Builder
	runCJK := false
	flush := func() {
		if run.Len() == 0 {
			return
		}
		if runCJK {
			for _, tok := range t.seg.Cut(run.String(), true) {
				tok = strings.TrimSpace(tok)
				if tok != "" {
					tokens = append(tokens, tok)
				}
			}
		} else {
			tokens = append(tokens, latinTokens(run.String())...)
		}
		run.Reset()
	}

	for _, r := range text {
		c := isCJK(r)
		if run.Len() > 0 && c != runCJK {
			flush()
		}
		runCJK = c
		run.WriteRune(r)
	}
	flush()
	return tokens
}

func latinTokens(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}
