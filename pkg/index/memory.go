package index

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
)

const snapshotFile = "index.snap.zst"

// MemoryStore keeps the whole index in process memory and snapshots it to a
// single zstd-compressed file under <dir>/memory_index.
type MemoryStore struct {
	dir string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(dir string) *MemoryStore {
	return &MemoryStore{dir: dir}
}

func (s *MemoryStore) Key() Key {
	return Key{Backend: BackendMemory, Location: s.dir}
}

// Path is where the snapshot lives.
func (s *MemoryStore) Path() string {
	return filepath.Join(s.dir, "memory_index", snapshotFile)
}

type snapshot struct {
	Manifest Manifest
	Chunks   []models.Chunk
	Vectors  [][]float32
}

func (s *MemoryStore) Save(ctx context.Context, manifest Manifest, chunks []models.Chunk, vectors [][]float32) (Index, error) {
	flat, err := NewFlat(manifest, chunks, vectors)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := s.Path()
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	err = writeFileAtomic(target, func(f *os.File) error {
		enc, err := zstd.NewWriter(f)
		if err != nil {
			return err
		}
		if err := gob.NewEncoder(enc).Encode(snapshot{Manifest: flat.manifest, Chunks: chunks, Vectors: vectors}); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	return flat, nil
}

func (s *MemoryStore) Open(ctx context.Context) (Index, error) {
	f, err := os.Open(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrIndexNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer dec.Close()

	var snap snapshot
	if err := gob.NewDecoder(dec).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return NewFlat(snap.Manifest, snap.Chunks, snap.Vectors)
}

// writeFileAtomic writes through a temp file in the target's directory and
// renames it into place once fully synced.
func writeFileAtomic(target string, write func(f *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, target)
}
