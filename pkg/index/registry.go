package index

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
	"github.com/krish9495/documind-ai-hackrx/internal/types"
)

// buildTimeout bounds a shared build, which outlives the request that
// started it.
const buildTimeout = 10 * time.Minute

// Registry caches opened indexes by Key for the life of the process and makes
// sure concurrent requests for one key build or load it once.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	indexes map[Key]Index
	group   singleflight.Group
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger,
		indexes: make(map[Key]Index),
	}
}

type BuildRequest struct {
	Store    Store
	Chunks   []models.Chunk
	Embedder types.Embedder
	Options  BuildOptions
	// Reuse allows a cached or persisted index at the same key to answer
	// instead of building from Chunks.
	Reuse bool
}

// Get returns the cached index for key, if any.
func (r *Registry) Get(key Key) (Index, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.indexes[key]
	return idx, ok
}

// Forget drops key from the cache. The persisted index is left alone.
func (r *Registry) Forget(key Key) {
	r.mu.Lock()
	delete(r.indexes, key)
	r.mu.Unlock()
}

// BuildOrLoad returns an index for req.Store's key. With Reuse set it prefers
// the cached index, then a persisted one, and builds only when neither
// exists. The second return reports whether an existing index was reused.
func (r *Registry) BuildOrLoad(ctx context.Context, req BuildRequest) (Index, bool, error) {
	key := req.Store.Key()

	if req.Reuse {
		if idx, ok := r.Get(key); ok {
			r.checkManifest(idx, req)
			return idx, true, nil
		}
	}

	type result struct {
		idx    Index
		reused bool
	}

	// The build is shared by every caller waiting on key, so one caller's
	// cancellation must not fail the others. Each caller still stops waiting
	// when its own ctx ends.
	ch := r.group.DoChan(key.String(), func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), buildTimeout)
		defer cancel()

		if req.Reuse {
			if idx, ok := r.Get(key); ok {
				return result{idx, true}, nil
			}
			if idx, ok := Load(buildCtx, req.Store, r.logger); ok {
				r.logger.Info("loaded persisted index", "key", key.String(), "chunks", idx.Len())
				r.put(key, idx)
				return result{idx, true}, nil
			}
		}

		if len(req.Chunks) == 0 {
			r.logger.Warn("no chunks to index, answering without context", "key", key.String())
			idx, err := NewFlat(Manifest{Backend: key.Backend, Location: key.Location, Embedder: req.Embedder.Name()}, nil, nil)
			if err != nil {
				return nil, err
			}
			return result{idx, false}, nil
		}

		idx, err := Create(buildCtx, req.Store, req.Chunks, req.Embedder, req.Options)
		if err != nil {
			if !req.Reuse {
				// The caller rejected the cached index; a later caller
				// should go back to the store rather than find it here.
				r.Forget(key)
			}
			return nil, err
		}
		r.logger.Info("built index", "key", key.String(), "chunks", idx.Len(), "embedder", req.Embedder.Name())
		r.put(key, idx)
		return result{idx, false}, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, false, &models.IndexUnavailableError{Key: key.String(), Err: ctx.Err()}
	}
	if res.Err != nil {
		return nil, false, res.Err
	}

	out := res.Val.(result)
	if out.reused {
		r.checkManifest(out.idx, req)
	}
	return out.idx, out.reused, nil
}

func (r *Registry) put(key Key, idx Index) {
	r.mu.Lock()
	r.indexes[key] = idx
	r.mu.Unlock()
}

// checkManifest warns when a reused index was built with a different
// embedder or chunking than the request asks for.
func (r *Registry) checkManifest(idx Index, req BuildRequest) {
	m := idx.Manifest()
	if req.Embedder != nil && m.Embedder != req.Embedder.Name() {
		r.logger.Warn("reusing index built with a different embedder",
			"key", req.Store.Key().String(), "built_with", m.Embedder, "requested", req.Embedder.Name())
	}
	if (req.Options.ChunkSize != 0 && m.ChunkSize != req.Options.ChunkSize) ||
		(req.Options.ChunkOverlap != 0 && m.ChunkOverlap != req.Options.ChunkOverlap) {
		r.logger.Warn("reusing index built with different chunking",
			"key", req.Store.Key().String(),
			"built_chunk_size", m.ChunkSize, "built_chunk_overlap", m.ChunkOverlap,
			"requested_chunk_size", req.Options.ChunkSize, "requested_chunk_overlap", req.Options.ChunkOverlap)
	}
}
