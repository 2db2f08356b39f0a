// Package store implements the pgvector index backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
	"github.com/krish9495/documind-ai-hackrx/pkg/index"
)

const manifestTable = "documind_manifests"

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	BatchSize  int
}

// VectorStore keeps one index in a PostgreSQL table. The table name is the
// index location.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

var _ index.Store = (*VectorStore)(nil)

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "documind_chunks"
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createManifests := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			location TEXT PRIMARY KEY,
			manifest JSONB NOT NULL
		)`, pgx.Identifier{manifestTable}.Sanitize())
	if _, err := vs.pool.Exec(ctx, createManifests); err != nil {
		return fmt.Errorf("failed to create manifest table: %w", err)
	}
	return nil
}

func (vs *VectorStore) Key() index.Key {
	return index.Key{Backend: index.BackendPgvector, Location: vs.config.TableName}
}

func (vs *VectorStore) table() string {
	return pgx.Identifier{vs.config.TableName}.Sanitize()
}

// Save replaces the table contents and the manifest in one transaction.
func (vs *VectorStore) Save(ctx context.Context, manifest index.Manifest, chunks []models.Chunk, vectors [][]float32) (index.Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%d chunks but %d vectors", len(chunks), len(vectors))
	}
	manifest.ChunkCount = len(chunks)

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	column := "vector"
	if manifest.Dimension > 0 {
		column = fmt.Sprintf("vector(%d)", manifest.Dimension)
	}

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+vs.table()); err != nil {
		return nil, fmt.Errorf("failed to drop table: %w", err)
	}
	createTable := fmt.Sprintf(`
		CREATE TABLE %s (
			chunk_id INTEGER PRIMARY KEY,
			content TEXT NOT NULL,
			size INTEGER NOT NULL,
			source TEXT,
			page INTEGER,
			start_offset INTEGER,
			end_offset INTEGER,
			created_at TIMESTAMPTZ,
			embedding %s
		)`, vs.table(), column)
	if _, err := tx.Exec(ctx, createTable); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (chunk_id, content, size, source, page, start_offset, end_offset, created_at, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, vs.table())

	for start := 0; start < len(chunks); start += vs.config.BatchSize {
		end := min(start+vs.config.BatchSize, len(chunks))

		batch := &pgx.Batch{}
		for i := start; i < end; i++ {
			c := chunks[i]
			batch.Queue(insert,
				c.ChunkID,
				sanitizeUTF8(c.Content),
				c.Size,
				sanitizeUTF8(c.Source),
				c.Page,
				c.Start,
				c.End,
				c.CreatedAt,
				pgvector.NewVector(vectors[i]),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("failed to insert chunks: %w", err)
		}
	}

	raw, err := json.Marshal(manifest)
	if err != nil {
		return nil, err
	}
	upsert := fmt.Sprintf(`
		INSERT INTO %s (location, manifest) VALUES ($1, $2)
		ON CONFLICT (location) DO UPDATE SET manifest = EXCLUDED.manifest`,
		pgx.Identifier{manifestTable}.Sanitize())
	if _, err := tx.Exec(ctx, upsert, vs.config.TableName, raw); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &Index{store: vs, manifest: manifest}, nil
}

// Open returns index.ErrIndexNotFound until a build has committed.
func (vs *VectorStore) Open(ctx context.Context) (index.Index, error) {
	query := fmt.Sprintf("SELECT manifest FROM %s WHERE location = $1", pgx.Identifier{manifestTable}.Sanitize())

	var raw []byte
	err := vs.pool.QueryRow(ctx, query, vs.config.TableName).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) || isUndefinedTable(err) {
		return nil, index.ErrIndexNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest index.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &Index{store: vs, manifest: manifest}, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// Index searches a pgvector table exactly, without an ANN index, so results
// match the in-process backends.
type Index struct {
	store    *VectorStore
	manifest index.Manifest
}

var _ index.Index = (*Index)(nil)

func (ix *Index) Len() int                 { return ix.manifest.ChunkCount }
func (ix *Index) Manifest() index.Manifest { return ix.manifest }

func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]models.Hit, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}
	if ix.manifest.ChunkCount == 0 {
		return nil, nil
	}
	if len(query) != ix.manifest.Dimension {
		return nil, fmt.Errorf("query has dimension %d, index has %d", len(query), ix.manifest.Dimension)
	}

	sql := fmt.Sprintf(`
		SELECT chunk_id, content, size, source, page, start_offset, end_offset, created_at,
			(1 - (embedding <=> $1))::real AS score
		FROM %s
		ORDER BY embedding <=> $1, chunk_id
		LIMIT $2`, ix.store.table())

	rows, err := ix.store.pool.Query(ctx, sql, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var hits []models.Hit
	for rows.Next() {
		var hit models.Hit
		c := &hit.Chunk
		if err := rows.Scan(&c.ChunkID, &c.Content, &c.Size, &c.Source, &c.Page, &c.Start, &c.End, &c.CreatedAt, &hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return hits, nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

// sanitizeUTF8 drops invalid bytes, which PostgreSQL rejects in TEXT columns.
func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
