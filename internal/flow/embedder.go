package flow

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/viterin/vek/vek32"
)

// Embedder turns request text into a vector comparable against flow
// embeddings. Production deployments plug in a model-backed
// implementation; the hashing embedder below is the self-contained
// default.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CosineSimilarity returns the cosine similarity of two vectors, or 0
// when dimensions differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	aNorm := math.Sqrt(float64(vek32.Dot(a, a)))
	bNorm := math.Sqrt(float64(vek32.Dot(b, b)))
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	return float64(vek32.Dot(a, b)) / (aNorm * bNorm)
}

// HashingEmbedder is a deterministic bag-of-words feature hasher. It
// captures token overlap well enough for template matching and needs
// no external model.
type HashingEmbedder struct {
	dim int
}

// NewHashingEmbedder creates a hashing embedder with the given
// dimensionality.
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashingEmbedder{dim: dim}
}

// Embed hashes each token into a bucket and L2-normalizes the result.
func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.dim)]++
	}

	norm := math.Sqrt(float64(vek32.Dot(vec, vec)))
	if norm > 0 {
		vek32.MulNumber_Inplace(vec, float32(1/norm))
	}
	return vec, nil
}
