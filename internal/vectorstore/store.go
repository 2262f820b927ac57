// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vectorstore implements the Vector Store: a persisted key-value
// store of chunks and their embeddings, with top-k cosine similarity via
// either a registered SQL function (indexed path) or an in-memory fallback.
// Implements spec §4.3. Schema and single-writer-via-mutex pattern are
// grounded on the teacher's internal/knowledge/store.go.
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-engine/pkg/types"
)

const driverName = "sqlite3_cosine"

var registerDriverOnce sync.Once

// registerDriver registers a sqlite3 driver variant whose connections have
// cosine_sim(query_blob, vec_blob, dim) available, matching the
// "registering a user function" indexed path named in spec §4.3. It runs
// at most once per process since database/sql panics on duplicate
// registration.
func registerDriver() {
	registerDriverOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("cosine_sim", cosineSimSQL, true)
			},
		})
	})
}

// cosineSimSQL is the SQL-callable form of cosineSimilarity.
func cosineSimSQL(queryBlob, vecBlob []byte, dim int) (float64, error) {
	if dim <= 0 || len(queryBlob) < dim*4 || len(vecBlob) < dim*4 {
		return 0, nil
	}
	return cosineSimilarity(decodeVector(queryBlob, dim), decodeVector(vecBlob, dim)), nil
}

// Record is one chunk plus the metadata the persisted schema carries
// alongside it (url, title, text, created_at) — the Vector Store's unit of
// upsert.
type Record struct {
	Chunk types.Chunk
	Title string
}

// ScoredChunk pairs a persisted chunk with its cosine similarity score
// against a query embedding, in the raw [-1,1] range; callers that need
// the [0,1]-mapped score (spec §4.9) do that mapping themselves.
type ScoredChunk struct {
	Chunk types.Chunk
	Score float64
}

// Store is the Vector Store. Writes are serialized by mu in addition to
// the orchestrator's architectural single-writer guarantee (spec §5):
// belt-and-braces, since the underlying engine can deadlock under
// concurrent writers.
type Store struct {
	db      *sql.DB
	mu      sync.Mutex
	indexed bool
}

// Open creates or opens the SQLite database at path, creates the schema if
// absent, and probes whether the indexed (cosine_sim) path is usable.
func Open(path string) (*Store, error) {
	registerDriver()

	db, err := sql.Open(driverName, path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vector store schema: %w", err)
	}
	s.indexed = s.probeIndexedPath()
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS summaries (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			title TEXT,
			text TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			summary_id TEXT PRIMARY KEY REFERENCES summaries(id),
			dim INTEGER NOT NULL,
			vec_blob BLOB NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) probeIndexedPath() bool {
	var score float64
	err := s.db.QueryRow(`SELECT cosine_sim(x'00000000', x'00000000', 1)`).Scan(&score)
	return err == nil
}

// Upsert persists chunks (and their embeddings, when present). Per spec
// §3, once stored a chunk is immutable; Upsert here is idempotent by id
// for the common case of re-running a stage, not a mutation API.
func (s *Store) Upsert(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range records {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO summaries (id, url, title, text, created_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET url=excluded.url, title=excluded.title, text=excluded.text`,
			r.Chunk.ID, r.Chunk.SourceURL, r.Title, r.Chunk.Text, now,
		)
		if err != nil {
			return fmt.Errorf("upserting chunk %s: %w", r.Chunk.ID, err)
		}
		if r.Chunk.Embedding == nil {
			continue
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO embeddings (summary_id, dim, vec_blob) VALUES (?, ?, ?)
			 ON CONFLICT(summary_id) DO UPDATE SET dim=excluded.dim, vec_blob=excluded.vec_blob`,
			r.Chunk.ID, len(r.Chunk.Embedding), encodeVector(r.Chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("upserting embedding %s: %w", r.Chunk.ID, err)
		}
	}
	return tx.Commit()
}

// TopK returns up to k chunks ordered by descending cosine similarity to
// queryEmbedding, using the indexed SQL path when available and an
// in-memory fallback otherwise.
func (s *Store) TopK(ctx context.Context, queryEmbedding []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	if s.indexed {
		scored, err := s.topKIndexed(ctx, queryEmbedding, k)
		if err == nil {
			return scored, nil
		}
		// Indexed path degraded mid-run (e.g. function lost on a new
		// connection); fall back rather than failing the assemble stage.
		s.indexed = false
	}
	return s.topKFallback(ctx, queryEmbedding, k)
}

func (s *Store) topKIndexed(ctx context.Context, queryEmbedding []float32, k int) ([]ScoredChunk, error) {
	queryBlob := encodeVector(queryEmbedding)
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.url, s.text, e.dim, e.vec_blob,
		       cosine_sim(?, e.vec_blob, e.dim) AS score
		FROM summaries s
		JOIN embeddings e ON e.summary_id = s.id
		ORDER BY score DESC
		LIMIT ?`, queryBlob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScoredChunk
	for rows.Next() {
		var c types.Chunk
		var dim int
		var vecBlob []byte
		var score float64
		if err := rows.Scan(&c.ID, &c.SourceURL, &c.Text, &dim, &vecBlob, &score); err != nil {
			return nil, err
		}
		c.Embedding = decodeVector(vecBlob, dim)
		out = append(out, ScoredChunk{Chunk: c, Score: score})
	}
	return out, rows.Err()
}

func (s *Store) topKFallback(ctx context.Context, queryEmbedding []float32, k int) ([]ScoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.url, s.text, e.dim, e.vec_blob
		FROM summaries s
		JOIN embeddings e ON e.summary_id = s.id`)
	if err != nil {
		return nil, fmt.Errorf("loading chunks for in-memory ranking: %w", err)
	}
	defer rows.Close()

	var all []ScoredChunk
	for rows.Next() {
		var c types.Chunk
		var dim int
		var vecBlob []byte
		if err := rows.Scan(&c.ID, &c.SourceURL, &c.Text, &dim, &vecBlob); err != nil {
			return nil, err
		}
		c.Embedding = decodeVector(vecBlob, dim)
		all = append(all, ScoredChunk{Chunk: c, Score: cosineSimilarity(queryEmbedding, c.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if len(all) > k {
		all = all[:k]
	}
	return all, nil
}
