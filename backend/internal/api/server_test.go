package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-graph-sync/backend/internal/graph"
	"vault-graph-sync/backend/internal/identity"
	"vault-graph-sync/backend/internal/metrics"
	"vault-graph-sync/backend/internal/semantic"
	"vault-graph-sync/backend/internal/status"
	"vault-graph-sync/backend/internal/vault"
	"vault-graph-sync/backend/internal/vaultsync"
	"vault-graph-sync/backend/pkg/config"
	apperrors "vault-graph-sync/backend/pkg/errors"
)

type testEnv struct {
	router  *gin.Engine
	store   *graph.MemoryStore
	svc     *vaultsync.Service
	hub     *status.Hub
	tracker *metrics.Tracker
	root    string
}

func newEnv(t *testing.T) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v, err := vault.NewStore(t.TempDir())
	require.NoError(t, err)
	store := graph.NewMemoryStore()
	b := semantic.NewBuilder(store, config.DefaultRelationships(), nil)
	svc := vaultsync.NewService(store, v, "v1", b, nil, nil)
	tracker := metrics.NewTracker()
	hub := status.NewHub(status.Sources{
		Store:   store,
		VaultID: "v1",
		State:   func() string { return svc.State().String() },
		Metrics: tracker.Snapshot,
	}, nil)

	router := NewRouter(Deps{Service: svc, Hub: hub, Metrics: tracker.Snapshot}, false, nil)
	return testEnv{router: router, store: store, svc: svc, hub: hub, tracker: tracker, root: v.Root()}
}

func (e testEnv) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(e.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestSyncThenStatus(t *testing.T) {
	env := newEnv(t)
	env.write(t, "a.md", "alpha #one")
	env.write(t, "b.md", "bravo #one")

	w := env.do(t, http.MethodPost, "/api/sync", "")
	require.Equal(t, http.StatusOK, w.Code)
	report := decode(t, w)
	assert.Equal(t, float64(2), report["notes"])
	assert.Equal(t, float64(1), report["tag_relationships"])

	w = env.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode(t, w)
	assert.Equal(t, true, snap["connected"])
	assert.Equal(t, "idle", snap["state"])
	assert.Equal(t, "synced 2 notes", snap["last_sync_result"])
	assert.NotNil(t, snap["last_sync_time"])
	counts := snap["counts"].(map[string]any)
	assert.Equal(t, float64(2), counts["notes"])
}

func TestSyncFailureIsReported(t *testing.T) {
	env := newEnv(t)
	env.write(t, "a.md", "alpha")
	env.store.FailUpsert = func(graph.Note) error { return errors.New("refused") }

	w := env.do(t, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decode(t, w)["detail"], "a.md")

	snap := env.hub.Snapshot(context.Background())
	assert.True(t, strings.HasPrefix(snap.LastSyncResult, "failed: "))
}

func TestSyncFile(t *testing.T) {
	env := newEnv(t)
	env.write(t, "notes/one.md", "first")

	w := env.do(t, http.MethodPost, "/api/sync/file", `{"path":"notes/one.md"}`)
	require.Equal(t, http.StatusOK, w.Code)

	note, err := env.store.GetNote(context.Background(), identity.NoteID("v1", "notes/one.md"))
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.Equal(t, "first", note.Content)
}

func TestSyncFile_WithContentSaves(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodPost, "/api/sync/file", `{"path":"new.md","content":"saved body"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	data, err := os.ReadFile(filepath.Join(env.root, "new.md"))
	require.NoError(t, err)
	assert.Equal(t, "saved body", string(data))
	assert.Len(t, env.store.Notes(), 1)
}

func TestSyncFile_BadRequests(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodPost, "/api/sync/file", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/sync/file", `{"path":"../outside.md"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetNote(t *testing.T) {
	env := newEnv(t)
	path := env.write(t, "a.md", "alpha")
	require.NoError(t, env.svc.SyncSingleFile(context.Background(), path))
	id := identity.NoteID("v1", "a.md")

	w := env.do(t, http.MethodGet, "/api/notes/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a", decode(t, w)["title"])

	w = env.do(t, http.MethodGet, "/api/notes/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRelatedNotes(t *testing.T) {
	env := newEnv(t)
	env.write(t, "a.md", "alpha #shared")
	env.write(t, "b.md", "bravo #shared")
	_, err := env.svc.InitialSync(context.Background())
	require.NoError(t, err)
	id := identity.NoteID("v1", "a.md")

	w := env.do(t, http.MethodGet, "/api/notes/"+id+"/related?type=SHARES_TAG", "")
	require.Equal(t, http.StatusOK, w.Code)
	notes := decode(t, w)["notes"].([]any)
	require.Len(t, notes, 1)
	assert.Equal(t, "b.md", notes[0].(map[string]any)["path"])

	w = env.do(t, http.MethodGet, "/api/notes/"+id+"/related?type=NOPE", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/notes/"+id+"/related?depth=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuery(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodPost, "/api/query", `{"query":"MATCH (n) RETURN count(n)"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"MATCH (n) RETURN count(n)"}, env.store.Queries())

	w = env.do(t, http.MethodPost, "/api/query", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearch_FallsBackToFulltext(t *testing.T) {
	env := newEnv(t)
	env.write(t, "kafka.md", "consumer lag on the kafka cluster")
	env.write(t, "garden.md", "tomatoes and basil")
	_, err := env.svc.InitialSync(context.Background())
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/search?q=kafka", "")
	require.Equal(t, http.StatusOK, w.Code)
	hits := decode(t, w)["hits"].([]any)
	require.Len(t, hits, 1)
	hit := hits[0].(map[string]any)
	assert.Equal(t, "fulltext", hit["method"])

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/search", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/search?q=x&k=0", "").Code)
}

func TestClearVault(t *testing.T) {
	env := newEnv(t)
	env.write(t, "a.md", "alpha")
	_, err := env.svc.InitialSync(context.Background())
	require.NoError(t, err)

	w := env.do(t, http.MethodDelete, "/api/vault", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.store.Notes())
}

func TestMetricsAndQueue(t *testing.T) {
	env := newEnv(t)
	env.tracker.RecordSync(10 * time.Millisecond)

	w := env.do(t, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total_syncs"])

	w = env.do(t, http.MethodGet, "/api/queue", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["size"])
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusCode(apperrors.NewPathError("/x", "/vault")))
	assert.Equal(t, http.StatusServiceUnavailable, statusCode(apperrors.NewStoreUnavailable("graph")))
	assert.Equal(t, http.StatusGatewayTimeout, statusCode(apperrors.NewTimeout("connect", time.Second)))
	assert.Equal(t, http.StatusBadGateway, statusCode(apperrors.NewUpstreamError("neo4j", "run", errors.New("x"))))
	assert.Equal(t, http.StatusNotFound, statusCode(graph.ErrNoteNotFound{ID: "n"}))
	assert.Equal(t, http.StatusInternalServerError, statusCode(errors.New("other")))
}

func TestStatusStream(t *testing.T) {
	env := newEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/status/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first status.Snapshot
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "v1", first.VaultID)

	require.Eventually(t, func() bool { return env.hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	env.hub.SyncCompleted("pushed")
	env.hub.Publish(context.Background())

	var next status.Snapshot
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, "pushed", next.LastSyncResult)
}
