// Package index builds, persists and reloads vector indexes over chunks.
//
// An index is addressed by Key: backend plus location. The key does not
// include the embedder or the chunking parameters, so two configurations
// pointing at the same location share one index. Registry logs a warning when
// a reused index was built differently but still reuses it.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
	"github.com/krish9495/documind-ai-hackrx/internal/types"
)

const (
	BackendMemory   = "memory"
	BackendDisk     = "disk"
	BackendPgvector = "pgvector"
)

// ErrIndexNotFound is returned by Store.Open when nothing is persisted.
var ErrIndexNotFound = errors.New("index not found")

// Index is a read-only, searchable vector index. Implementations are safe for
// concurrent searches.
type Index interface {
	// Search returns up to k hits by descending cosine similarity. Ties keep
	// chunk order.
	Search(ctx context.Context, query []float32, k int) ([]models.Hit, error)
	Len() int
	Manifest() Manifest
}

// Manifest describes how a persisted index was built.
type Manifest struct {
	Backend      string    `json:"backend"`
	Location     string    `json:"location"`
	Embedder     string    `json:"embedder"`
	Dimension    int       `json:"dimension"`
	ChunkCount   int       `json:"chunk_count"`
	ChunkSize    int       `json:"chunk_size,omitempty"`
	ChunkOverlap int       `json:"chunk_overlap,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Key struct {
	Backend  string
	Location string
}

func (k Key) String() string {
	return k.Backend + ":" + k.Location
}

// Store persists and restores the index at one key.
type Store interface {
	Key() Key
	// Save persists atomically: a failed or interrupted save never leaves
	// anything Open would return.
	Save(ctx context.Context, manifest Manifest, chunks []models.Chunk, vectors [][]float32) (Index, error)
	// Open returns ErrIndexNotFound when nothing is persisted at the key.
	Open(ctx context.Context) (Index, error)
}

type BuildOptions struct {
	ChunkSize    int
	ChunkOverlap int
	Now          func() time.Time
}

// Create embeds chunks and persists a new index through store.
func Create(ctx context.Context, store Store, chunks []models.Chunk, embedder types.Embedder, opts BuildOptions) (Index, error) {
	key := store.Key()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	var vectors [][]float32
	if len(texts) > 0 {
		var err error
		vectors, err = embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, &models.IndexUnavailableError{Key: key.String(), Err: fmt.Errorf("embed chunks: %w", err)}
		}
		if len(vectors) != len(texts) {
			return nil, &models.IndexUnavailableError{
				Key: key.String(),
				Err: fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(texts)),
			}
		}
	}

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	manifest := Manifest{
		Backend:      key.Backend,
		Location:     key.Location,
		Embedder:     embedder.Name(),
		Dimension:    dim,
		ChunkCount:   len(chunks),
		ChunkSize:    opts.ChunkSize,
		ChunkOverlap: opts.ChunkOverlap,
		CreatedAt:    now().UTC(),
	}

	idx, err := store.Save(ctx, manifest, chunks, vectors)
	if err != nil {
		return nil, &models.IndexUnavailableError{Key: key.String(), Err: fmt.Errorf("persist: %w", err)}
	}
	return idx, nil
}

// Load opens the index persisted at store's key. Any failure, including a
// corrupt index, is reported as not found so callers fall back to Create.
func Load(ctx context.Context, store Store, logger *slog.Logger) (Index, bool) {
	idx, err := store.Open(ctx)
	if err != nil {
		if !errors.Is(err, ErrIndexNotFound) && logger != nil {
			logger.Warn("could not load persisted index", "key", store.Key().String(), "error", err)
		}
		return nil, false
	}
	return idx, true
}
