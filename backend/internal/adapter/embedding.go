package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"vault-graph-sync/backend/internal/vector"
	apperrors "vault-graph-sync/backend/pkg/errors"
)

// maxEmbeddingChars caps the text sent per request
const maxEmbeddingChars = 8000

// EmbeddingAdapter generates embeddings through an OpenAI-compatible endpoint (e.g. LiteLLM)
type EmbeddingAdapter struct {
	client  *openai.Client
	model   string
	mu      sync.RWMutex // Protects model field for concurrent access
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ vector.Embedder = (*EmbeddingAdapter)(nil)

// NewEmbeddingAdapter creates a new embedding adapter.
// requestsPerSecond <= 0 disables rate limiting.
func NewEmbeddingAdapter(baseURL, apiKey, modelID string, requestsPerSecond float64, log *zap.Logger) *EmbeddingAdapter {
	// For LiteLLM, we can use a dummy API key if not provided
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"

	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &EmbeddingAdapter{
		client:  openai.NewClientWithConfig(config),
		model:   modelID,
		limiter: rate.NewLimiter(limit, burst),
		logger:  log,
	}
}

// SetModel updates the model used by this adapter
func (a *EmbeddingAdapter) SetModel(model string) {
	if model != "" {
		a.mu.Lock()
		a.model = model
		a.mu.Unlock()
		a.logger.Debug("Embedding model updated", zap.String("model", model))
	}
}

// GetModel returns the current model
func (a *EmbeddingAdapter) GetModel() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// Embed returns the embedding vector for text
func (a *EmbeddingAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	model := a.GetModel()
	if model == "" {
		return nil, apperrors.ErrEmbeddingNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewEmbeddingUnavailable("empty input", nil)
	}
	if len(text) > maxEmbeddingChars {
		text = text[:maxEmbeddingChars]
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewEmbeddingUnavailable("rate limiter", err)
	}

	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	}

	// Retry with linear backoff
	var resp openai.EmbeddingResponse
	var err error
	maxRetries := 2
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			a.logger.Warn("Retrying embedding request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return nil, apperrors.NewEmbeddingUnavailable("cancelled", ctx.Err())
			case <-time.After(backoff):
			}
		}

		resp, err = a.client.CreateEmbeddings(ctx, req)
		if err == nil {
			break
		}
		a.logger.Error("Embedding request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("model", model),
		)
	}
	if err != nil {
		return nil, apperrors.NewEmbeddingUnavailable(fmt.Sprintf("request failed after %d attempts", maxRetries), err)
	}
	if len(resp.Data) == 0 {
		return nil, apperrors.NewEmbeddingUnavailable("no data in embedding response", nil)
	}

	return resp.Data[0].Embedding, nil
}
