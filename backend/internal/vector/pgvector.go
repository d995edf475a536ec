package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	apperrors "vault-graph-sync/backend/pkg/errors"
)

// PgVectorStore implements Store backed by Postgres + pgvector.
// Rows are scoped by collection so several vaults can share a table.
type PgVectorStore struct {
	dsn        string
	collection string
	dimension  int
	logger     *zap.Logger

	mu sync.RWMutex
	db *sql.DB
}

var _ Store = (*PgVectorStore)(nil)

// NewPgVectorStore creates a store; the connection is opened by Connect
func NewPgVectorStore(dsn, collection string, dimension int, log *zap.Logger) *PgVectorStore {
	if dimension <= 0 {
		dimension = 1536
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PgVectorStore{dsn: dsn, collection: collection, dimension: dimension, logger: log}
}

// NewPgVectorStoreFromDB reuses an existing *sql.DB
func NewPgVectorStoreFromDB(ctx context.Context, db *sql.DB, collection string, dimension int, log *zap.Logger) (*PgVectorStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	s := NewPgVectorStore("", collection, dimension, log)
	if err := s.ensureTables(ctx, db); err != nil {
		return nil, err
	}
	s.db = db
	return s, nil
}

// Connect opens the pool and ensures the table exists
func (s *PgVectorStore) Connect(ctx context.Context) error {
	db, err := sql.Open("postgres", s.dsn)
	if err != nil {
		return apperrors.NewUpstreamError("pgvector", "open", err)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return apperrors.NewUpstreamError("pgvector", "ping", err)
	}
	if err := s.ensureTables(ctx, db); err != nil {
		_ = db.Close()
		return apperrors.NewUpstreamError("pgvector", "ensure tables", err)
	}

	s.mu.Lock()
	old := s.db
	s.db = db
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	s.logger.Info("pgvector store ready", zap.String("collection", s.collection))
	return nil
}

func (s *PgVectorStore) ensureTables(ctx context.Context, db *sql.DB) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS note_embeddings (
  collection  text NOT NULL,
  note_id     text NOT NULL,
  payload     jsonb,
  embedding   vector(%d),
  created_at  timestamptz NOT NULL DEFAULT now(),
  updated_at  timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (collection, note_id)
);
CREATE INDEX IF NOT EXISTS note_embeddings_collection_idx ON note_embeddings (collection);
`, s.dimension)
	_, err := db.ExecContext(ctx, ddl)
	return err
}

// IsConnected reports whether a pool is open
func (s *PgVectorStore) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

func (s *PgVectorStore) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, apperrors.NewStoreUnavailable("vector")
	}
	return s.db, nil
}

// UpsertEmbedding inserts or replaces the embedding for a note
func (s *PgVectorStore) UpsertEmbedding(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	embLit, err := toVectorLiteral(vector, s.dimension)
	if err != nil {
		return apperrors.NewUpstreamError("pgvector", "upsert", err)
	}
	payloadBytes, _ := json.Marshal(payload)

	_, err = db.ExecContext(ctx, `
INSERT INTO note_embeddings (collection, note_id, payload, embedding, updated_at)
 VALUES ($1, $2, $3, $4, $5)
 ON CONFLICT (collection, note_id) DO UPDATE SET
   payload=EXCLUDED.payload,
   embedding=EXCLUDED.embedding,
   updated_at=now();
`, s.collection, id, payloadBytes, embLit, time.Now().UTC())
	if err != nil {
		return apperrors.NewUpstreamError("pgvector", "upsert", err)
	}
	return nil
}

// DeleteEmbedding removes the embedding for a note
func (s *PgVectorStore) DeleteEmbedding(ctx context.Context, id string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM note_embeddings WHERE collection = $1 AND note_id = $2`, s.collection, id); err != nil {
		return apperrors.NewUpstreamError("pgvector", "delete", err)
	}
	return nil
}

// Search performs cosine similarity search within the collection
func (s *PgVectorStore) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 10
	}
	embLit, err := toVectorLiteral(vector, s.dimension)
	if err != nil {
		return nil, apperrors.NewUpstreamError("pgvector", "search", err)
	}

	rows, err := db.QueryContext(ctx, `
SELECT note_id, 1 - (embedding <=> $2::vector) AS score, payload
FROM note_embeddings
WHERE collection = $1
ORDER BY embedding <=> $2::vector
LIMIT $3;
`, s.collection, embLit, k)
	if err != nil {
		return nil, apperrors.NewUpstreamError("pgvector", "search", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var payloadBytes []byte
		if err := rows.Scan(&m.ID, &m.Score, &payloadBytes); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(payloadBytes, &m.Payload)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Clear removes every row of this collection
func (s *PgVectorStore) Clear(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM note_embeddings WHERE collection = $1`, s.collection); err != nil {
		return apperrors.NewUpstreamError("pgvector", "clear", err)
	}
	return nil
}

// Close releases the pool
func (s *PgVectorStore) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()
	if db != nil {
		return db.Close()
	}
	return nil
}

func toVectorLiteral(embedding []float32, dim int) (string, error) {
	if len(embedding) == 0 {
		return "", errors.New("embedding is required")
	}
	if dim > 0 && len(embedding) != dim {
		return "", fmt.Errorf("embedding length %d does not match dimension %d", len(embedding), dim)
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ",")), nil
}
