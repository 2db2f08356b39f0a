package index

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
)

// Flat is an exact, brute-force index held in memory.
type Flat struct {
	manifest Manifest
	chunks   []models.Chunk
	vectors  [][]float32
	norms    []float64
}

var _ Index = (*Flat)(nil)

func NewFlat(manifest Manifest, chunks []models.Chunk, vectors [][]float32) (*Flat, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%d chunks but %d vectors", len(chunks), len(vectors))
	}

	norms := make([]float64, len(vectors))
	for i, v := range vectors {
		if len(v) != manifest.Dimension {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), manifest.Dimension)
		}
		norms[i] = norm(v)
	}

	manifest.ChunkCount = len(chunks)
	return &Flat{
		manifest: manifest,
		chunks:   chunks,
		vectors:  vectors,
		norms:    norms,
	}, nil
}

func (f *Flat) Len() int           { return len(f.chunks) }
func (f *Flat) Manifest() Manifest { return f.manifest }

func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]models.Hit, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}
	if len(f.chunks) == 0 {
		return nil, nil
	}
	if len(query) != f.manifest.Dimension {
		return nil, fmt.Errorf("query has dimension %d, index has %d", len(query), f.manifest.Dimension)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qn := norm(query)
	scores := make([]float32, len(f.vectors))
	for i, v := range f.vectors {
		if qn == 0 || f.norms[i] == 0 {
			continue
		}
		var dot float64
		for j := range v {
			dot += float64(v[j]) * float64(query[j])
		}
		scores[i] = float32(dot / (qn * f.norms[i]))
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})

	k = min(k, len(order))
	hits := make([]models.Hit, k)
	for i := 0; i < k; i++ {
		hits[i] = models.Hit{Chunk: f.chunks[order[i]], Score: scores[order[i]]}
	}
	return hits, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
