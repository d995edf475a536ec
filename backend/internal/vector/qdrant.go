package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "vault-graph-sync/backend/pkg/errors"
)

// pointNamespace scopes the deterministic point ids derived from note ids
var pointNamespace = uuid.MustParse("6f0c8b55-2f7e-4f4f-9a43-8f1d0c2d7a11")

// QdrantConfig holds connection details for a Qdrant collection
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// QdrantStore is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection on Connect.
type QdrantStore struct {
	cfg    QdrantConfig
	client *http.Client
	logger *zap.Logger

	mu        sync.RWMutex
	connected bool
}

var _ Store = (*QdrantStore)(nil)

// NewQdrantStore creates a Qdrant-backed store; call Connect before use
func NewQdrantStore(cfg QdrantConfig, log *zap.Logger) *QdrantStore {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &QdrantStore{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log,
	}
}

// PointID maps a note id onto a stable Qdrant point UUID
func PointID(noteID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(noteID)).String()
}

// Connect creates the collection if missing
func (s *QdrantStore) Connect(ctx context.Context) error {
	if s.cfg.Dimension <= 0 {
		return apperrors.NewConfigValidationFailed("EMBEDDING_DIMENSION", "must be positive")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.Dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant answers 409 when the collection exists already
	status, err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
	if err != nil && status != http.StatusConflict {
		return apperrors.NewUpstreamError("qdrant", "create collection", err)
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	s.logger.Info("Qdrant collection ready",
		zap.String("collection", s.cfg.Collection),
		zap.Int("dimension", s.cfg.Dimension),
	)
	return nil
}

// IsConnected reports whether Connect has succeeded
func (s *QdrantStore) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// UpsertEmbedding writes one point; the note id is kept in the payload
func (s *QdrantStore) UpsertEmbedding(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	if !s.IsConnected() {
		return apperrors.NewStoreUnavailable("vector")
	}
	p := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		p[k] = v
	}
	p["note_id"] = id

	body := map[string]any{
		"points": []map[string]any{{
			"id":      PointID(id),
			"vector":  vector,
			"payload": p,
		}},
	}
	if _, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil); err != nil {
		return apperrors.NewUpstreamError("qdrant", "upsert", err)
	}
	return nil
}

// DeleteEmbedding removes the point for a note id
func (s *QdrantStore) DeleteEmbedding(ctx context.Context, id string) error {
	if !s.IsConnected() {
		return apperrors.NewStoreUnavailable("vector")
	}
	body := map[string]any{"points": []string{PointID(id)}}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"), body, nil); err != nil {
		return apperrors.NewUpstreamError("qdrant", "delete", err)
	}
	return nil
}

// Search returns the k nearest points
func (s *QdrantStore) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if !s.IsConnected() {
		return nil, apperrors.NewStoreUnavailable("vector")
	}
	if k <= 0 {
		k = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, apperrors.NewUpstreamError("qdrant", "search", err)
	}

	matches := make([]Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		id, _ := r.Payload["note_id"].(string)
		if id == "" {
			continue
		}
		matches = append(matches, Match{ID: id, Score: r.Score, Payload: r.Payload})
	}
	return matches, nil
}

// Clear drops the collection and recreates it empty
func (s *QdrantStore) Clear(ctx context.Context) error {
	if _, err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil); err != nil {
		s.logger.Warn("Failed to drop Qdrant collection", zap.Error(err))
	}
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return s.Connect(ctx)
}

// Close marks the store disconnected; the HTTP client has nothing to release
func (s *QdrantStore) Close() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *QdrantStore) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.cfg.URL, s.cfg.Collection, suffix)
}

func (s *QdrantStore) do(ctx context.Context, method, url string, body any, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}
