package index

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
)

const (
	manifestFile = "manifest.json"
	chunksFile   = "chunks.json"
	vectorsFile  = "vectors.f32"
)

// DiskStore persists an index as a directory under <dir>/disk_index holding a
// JSON manifest, the chunks and a little-endian float32 vector matrix. A new
// build is written to a sibling temp directory and swapped in by rename.
type DiskStore struct {
	dir string
}

var _ Store = (*DiskStore)(nil)

func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

func (s *DiskStore) Key() Key {
	return Key{Backend: BackendDisk, Location: s.dir}
}

// Path is the index directory.
func (s *DiskStore) Path() string {
	return filepath.Join(s.dir, "disk_index")
}

func (s *DiskStore) Save(ctx context.Context, manifest Manifest, chunks []models.Chunk, vectors [][]float32) (Index, error) {
	flat, err := NewFlat(manifest, chunks, vectors)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	tmp, err := os.MkdirTemp(s.dir, ".disk_index.tmp-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	if err := writeJSON(filepath.Join(tmp, chunksFile), chunks); err != nil {
		return nil, fmt.Errorf("write chunks: %w", err)
	}
	if err := writeVectors(filepath.Join(tmp, vectorsFile), vectors); err != nil {
		return nil, fmt.Errorf("write vectors: %w", err)
	}
	// The manifest goes last: a directory without one is never loadable.
	if err := writeJSON(filepath.Join(tmp, manifestFile), flat.manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := s.Path()
	var old string
	if _, err := os.Stat(target); err == nil {
		old = fmt.Sprintf("%s.old-%d", target, time.Now().UnixNano())
		if err := os.Rename(target, old); err != nil {
			return nil, fmt.Errorf("retire previous index: %w", err)
		}
	}
	if err := os.Rename(tmp, target); err != nil {
		return nil, fmt.Errorf("install index: %w", err)
	}
	if old != "" {
		os.RemoveAll(old)
	}
	return flat, nil
}

func (s *DiskStore) Open(_ context.Context) (Index, error) {
	dir := s.Path()

	var manifest Manifest
	if err := readJSON(filepath.Join(dir, manifestFile), &manifest); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrIndexNotFound
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var chunks []models.Chunk
	if err := readJSON(filepath.Join(dir, chunksFile), &chunks); err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}

	vectors, err := readVectors(filepath.Join(dir, vectorsFile), len(chunks), manifest.Dimension)
	if err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	return NewFlat(manifest, chunks, vectors)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeVectors(path string, vectors [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, v := range vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readVectors(path string, rows, dim int) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	vectors := make([][]float32, rows)
	for i := range vectors {
		vectors[i] = make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vectors[i]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, errors.New("trailing data after vectors")
	}
	return vectors, nil
}
