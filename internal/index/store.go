// Package index provides the durable vector index backing document retrieval.
//
// All industries share a single SQLite database at a fixed path; queries
// filter on the industry column, never across it. Appends run inside a
// transaction, so concurrent ingestions cannot lose each other's rows.
package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite" // SQLite driver

	"multi-industry-rag/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT PRIMARY KEY,
	industry   TEXT NOT NULL,
	source     TEXT NOT NULL,
	page       INTEGER NOT NULL,
	text       TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_chunks_industry ON chunks(industry);
`

// Store is the SQLite-backed vector index.
type Store struct {
	db   *sql.DB
	path string
}

// Exists reports whether an index has been created at path. The file not
// existing means no document has ever been ingested.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Open opens (creating if needed) the index at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	// WAL mode for concurrent readers alongside the single writer
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing index schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the on-disk location of the index.
func (s *Store) Path() string {
	return s.path
}

// Add appends chunks with their embedding vectors in a single transaction.
// vectors[i] must correspond to chunks[i].
func (s *Store) Add(ctx context.Context, chunks []models.DocumentChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d != %d", len(chunks), len(vectors))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning index transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, industry, source, page, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		blob := float32SliceToBytes(vectors[i])
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.Industry, chunk.Source,
			chunk.Page, chunk.Text, blob); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index transaction: %w", err)
	}
	return nil
}

// Search returns the k chunks of the given industry most similar to the
// query vector, ranked by cosine similarity. Only rows whose industry tag
// equals the canonical tag are candidates.
func (s *Store) Search(ctx context.Context, vector []float32, industry string, k int) ([]models.ScoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, industry, source, page, text, embedding
		FROM chunks WHERE industry = ?`, industry)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var hits []models.ScoredChunk
	for rows.Next() {
		var chunk models.DocumentChunk
		var blob []byte
		if err := rows.Scan(&chunk.ID, &chunk.Industry, &chunk.Source,
			&chunk.Page, &chunk.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		score := cosineSimilarity(vector, bytesToFloat32Slice(blob))
		hits = append(hits, models.ScoredChunk{DocumentChunk: chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the total number of stored chunks across all industries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// cosineSimilarity returns the cosine of the angle between a and b,
// or 0 when either vector is zero-length or dimensions differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
