package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "vault-graph-sync/backend/pkg/errors"
)

func TestEmbeddingAdapter_Embed(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel, _ = body["model"].(string)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}],"model":"test-embed"}`))
	}))
	defer srv.Close()

	a := NewEmbeddingAdapter(srv.URL, "", "test-embed", 0, nil)
	vec, err := a.Embed(context.Background(), "hello vault")
	require.NoError(t, err)

	assert.Equal(t, "test-embed", gotModel)
	assert.Len(t, vec, 3)
	assert.InDelta(t, 0.2, vec[1], 1e-6)
}

func TestEmbeddingAdapter_NotConfigured(t *testing.T) {
	a := NewEmbeddingAdapter("http://localhost:1", "", "", 0, nil)
	_, err := a.Embed(context.Background(), "text")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeEmbedding))
}

func TestEmbeddingAdapter_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewEmbeddingAdapter(srv.URL, "", "test-embed", 0, nil)
	_, err := a.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeEmbedding))
}

func TestEmbeddingAdapter_SetModel(t *testing.T) {
	a := NewEmbeddingAdapter("http://localhost:1", "", "a", 0, nil)
	a.SetModel("")
	assert.Equal(t, "a", a.GetModel())
	a.SetModel("b")
	assert.Equal(t, "b", a.GetModel())
}
