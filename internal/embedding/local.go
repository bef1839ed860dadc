package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

// sparseVocabSize fixes the hashed vocabulary for sparse vectors. Large
// enough that collisions stay rare for document-sized inputs.
const sparseVocabSize = 1 << 18

// localBackend computes embeddings in-process with token feature hashing:
// each token is hashed into a fixed number of buckets and the resulting
// count vector is L2-normalized. Deterministic, dependency-free, and good
// enough for lexical-similarity retrieval when no model server is deployed.
// It is the only backend with sparse support.
type localBackend struct {
	model  string
	dim    int
	logger *logrus.Logger
}

func newLocalBackend(model string, dim int, logger *logrus.Logger) *localBackend {
	if dim <= 0 {
		dim = 384
	}
	logger.WithFields(logrus.Fields{
		"model":     model,
		"dimension": dim,
	}).Info("Initialized local embedding backend")
	return &localBackend{model: model, dim: dim, logger: logger}
}

func (b *localBackend) Dimension() int {
	return b.dim
}

func (b *localBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = b.embedOne(text)
	}
	return out, nil
}

func (b *localBackend) embedOne(text string) []float32 {
	vec := make([]float32, b.dim)
	for token, tf := range termFrequencies(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum32()
		bucket := sum % uint32(b.dim)
		// The high bit decides the sign so hash collisions tend to
		// cancel instead of pile up.
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vec[bucket] += sign * float32(1+math.Log(float64(tf)))
	}
	normalize(vec)
	return vec
}

func (b *localBackend) EmbedSparse(ctx context.Context, texts []string) ([]SparseVector, error) {
	out := make([]SparseVector, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = b.embedSparseOne(text)
	}
	return out, nil
}

func (b *localBackend) embedSparseOne(text string) SparseVector {
	weights := make(map[uint32]float32)
	for token, tf := range termFrequencies(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		idx := h.Sum32() % sparseVocabSize
		w := float32(1 + math.Log(float64(tf)))
		if w > weights[idx] {
			weights[idx] = w
		}
	}

	indices := make([]uint32, 0, len(weights))
	for idx := range weights {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = weights[idx]
	}
	return SparseVector{Indices: indices, Values: values}
}

// termFrequencies tokenizes on non-letter/digit boundaries, lowercased.
// CJK ideographs become single-rune tokens so multilingual text still
// produces usable term signal.
func termFrequencies(text string) map[string]int {
	freqs := make(map[string]int)
	var sb strings.Builder
	flush := func() {
		if sb.Len() > 0 {
			freqs[sb.String()]++
			sb.Reset()
		}
	}
	for _, r := range text {
		switch {
		case (r >= 0x4E00 && r <= 0x9FFF) || (r >= 0x3400 && r <= 0x4DBF):
			flush()
			freqs[string(r)]++
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return freqs
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
