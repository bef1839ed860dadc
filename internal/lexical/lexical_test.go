package lexical

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	tokenizer, err := NewTokenizer()
	require.NoError(t, err)
	return tokenizer
}

func TestTokenizeLatin(t *testing.T) {
	tokenizer := newTestTokenizer(t)

	tokens := tokenizer.Tokenize("The Quick, brown fox!")
	assert.Equal(t, []string{"the", "quick", "brown", "fox"}, tokens)
}

func TestTokenizeCJK(t *testing.T) {
	tokenizer := newTestTokenizer(t)

	tokens := tokenizer.Tokenize("机器学习")
	require.NotEmpty(t, tokens)
	for _, tok := range tokens {
		assert.True(t, containsCJK(tok), "token %q should be CJK", tok)
	}
}

func TestTokenizeMixedKeepsScriptsSeparate(t *testing.T) {
	tokenizer := newTestTokenizer(t)

	tokens := tokenizer.Tokenize("使用Docker部署应用")
	require.NotEmpty(t, tokens)

	assert.Contains(t, tokens, "docker")
	for _, tok := range tokens {
		// A token is either fully CJK or fully Latin, never a blend.
		if containsCJK(tok) {
			for _, r := range tok {
				assert.True(t, isCJK(r), "CJK token %q contains non-CJK rune", tok)
			}
		} else {
			assert.False(t, containsCJK(tok))
		}
	}
}

func TestTokenizeMixedPreservesOrder(t *testing.T) {
	tokenizer := newTestTokenizer(t)

	tokens := tokenizer.Tokenize("hello 世界 goodbye")
	require.GreaterOrEqual(t, len(tokens), 3)
	assert.Equal(t, "hello", tokens[0])
	assert.Equal(t, "goodbye", tokens[len(tokens)-1])
}

func TestIndexSearchRanksRelevantFirst(t *testing.T) {
	tokenizer := newTestTokenizer(t)
	idx := NewIndex([]string{
		"postgres replication and failover",
		"kafka partition rebalancing guide",
		"kafka kafka kafka tuning deep dive",
	}, tokenizer)

	results := idx.Search(tokenizer.Tokenize("kafka tuning"), 10)
	require.NotEmpty(t, results)
	assert.Equal(t, 2, results[0].Index)
	for _, r := range results {
		assert.Positive(t, r.Score)
		assert.NotEqual(t, 0, r.Index, "postgres doc must not match")
	}
}

func TestIndexSearchTruncatesToTopK(t *testing.T) {
	tokenizer := newTestTokenizer(t)
	idx := NewIndex([]string{
		"alpha common", "beta common", "gamma common", "delta common",
	}, tokenizer)

	results := idx.Search(tokenizer.Tokenize("common"), 2)
	assert.Len(t, results, 2)
}

func TestIndexSearchNoMatches(t *testing.T) {
	tokenizer := newTestTokenizer(t)
	idx := NewIndex([]string{"nothing relevant here"}, tokenizer)

	results := idx.Search(tokenizer.Tokenize("quantum chromodynamics"), 5)
	assert.Empty(t, results)
}

func TestIndexEmptyCorpus(t *testing.T) {
	tokenizer := newTestTokenizer(t)
	idx := NewIndex(nil, tokenizer)

	assert.Zero(t, idx.DocumentCount())
	assert.Empty(t, idx.Search([]string{"anything"}, 5))
}

func TestRegistrySearchMissingCollection(t *testing.T) {
	registry := NewRegistry(newTestTokenizer(t), testLogger())

	results := registry.Search("ghost", "query", 5)
	assert.Empty(t, results)
}

func TestRegistryBuildReplacesIndex(t *testing.T) {
	registry := NewRegistry(newTestTokenizer(t), testLogger())

	registry.Build("col", []string{"old content about dogs"})
	require.NotEmpty(t, registry.Search("col", "dogs", 5))

	registry.Build("col", []string{"new content about cats"})
	assert.Empty(t, registry.Search("col", "dogs", 5))
	assert.NotEmpty(t, registry.Search("col", "cats", 5))
}

func TestRegistryClear(t *testing.T) {
	registry := NewRegistry(newTestTokenizer(t), testLogger())

	registry.Build("col", []string{"some content"})
	require.NotNil(t, registry.Get("col"))

	registry.Clear("col")
	assert.Nil(t, registry.Get("col"))
	assert.Empty(t, registry.Search("col", "content", 5))
}
