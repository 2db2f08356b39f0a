package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashingEmbedder is a deterministic bag-of-words embedder using signed
// feature hashing. It needs no model server.
type HashingEmbedder struct {
	dim int
}

func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashingEmbedder{dim: dim}
}

func (h *HashingEmbedder) Name() string {
	return fmt.Sprintf("hashing/%d", h.dim)
}

func (h *HashingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = h.embed(text)
	}
	return vectors, nil
}

func (h *HashingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.embed(text), nil
}

func (h *HashingEmbedder) embed(text string) []float32 {
	vec := make([]float32, h.dim)
	for _, token := range tokenize(text) {
		f := fnv.New64a()
		f.Write([]byte(token))
		sum := f.Sum64()

		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		vec[sum%uint64(h.dim)] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
