package embeddings

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEmbedder derives a unit vector from a hash of the text. Equal texts
// get equal vectors, which is all the sinks need offline.
type MockEmbedder struct {
	dim int
}

// NewMockEmbedder creates a mock embedder with the given dimension.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{dim: dim}
}

func (e *MockEmbedder) Dimension() int {
	return e.dim
}

func (e *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dim)
	var norm float64
	for i := range vec {
		v := math.Sin(float64(seed%9973)*0.01 + float64(i+1)*0.37)
		vec[i] = float32(v)
		norm += v * v
	}

	if norm = math.Sqrt(norm); norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
