// Package api exposes the sync pipeline to operators over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vault-graph-sync/backend/internal/graph"
	"vault-graph-sync/backend/internal/metrics"
	"vault-graph-sync/backend/internal/queue"
	"vault-graph-sync/backend/internal/status"
	"vault-graph-sync/backend/internal/vaultsync"
	apperrors "vault-graph-sync/backend/pkg/errors"
	"vault-graph-sync/backend/pkg/logger"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

// Queue is the part of the update queue the API reads
type Queue interface {
	QueueSize() int
	Pending() []queue.PendingUpdate
	Flush(ctx context.Context) error
}

// Deps are the collaborators behind the routes. Queue and Metrics may be nil.
type Deps struct {
	Service *vaultsync.Service
	Hub     *status.Hub
	Queue   Queue
	Metrics func() metrics.Snapshot
}

// Server holds the route handlers
type Server struct {
	deps   Deps
	logger *zap.Logger
}

// NewRouter builds the gin engine with every route registered
func NewRouter(deps Deps, production bool, log *zap.Logger) *gin.Engine {
	log = logger.OrNop(log)
	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{deps: deps, logger: log}

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(cors())

	router.GET("/health", s.health)

	api := router.Group("/api")
	{
		api.GET("/status", s.status)
		api.GET("/status/stream", s.statusStream)
		api.GET("/metrics", s.metrics)
		api.GET("/queue", s.pending)

		api.POST("/sync", s.syncVault)
		api.POST("/sync/file", s.syncFile)
		api.POST("/sync/flush", s.flush)

		api.GET("/notes/:id", s.getNote)
		api.GET("/notes/:id/related", s.relatedNotes)
		api.POST("/query", s.query)
		api.GET("/search", s.search)

		api.DELETE("/vault", s.clearVault)
	}
	return router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Hub.Snapshot(c.Request.Context()))
}

func (s *Server) metrics(c *gin.Context) {
	if s.deps.Metrics == nil {
		c.JSON(http.StatusOK, metrics.Snapshot{})
		return
	}
	c.JSON(http.StatusOK, s.deps.Metrics())
}

func (s *Server) pending(c *gin.Context) {
	if s.deps.Queue == nil {
		c.JSON(http.StatusOK, gin.H{"size": 0, "pending": []queue.PendingUpdate{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"size":    s.deps.Queue.QueueSize(),
		"pending": s.deps.Queue.Pending(),
	})
}

func (s *Server) syncVault(c *gin.Context) {
	ctx := c.Request.Context()
	report, err := s.deps.Service.InitialSync(ctx)
	if err != nil {
		s.deps.Hub.SyncFailed(err)
		s.deps.Hub.Publish(ctx)
		s.writeError(c, "Initial sync failed", err)
		return
	}
	s.deps.Hub.SyncCompleted(fmt.Sprintf("synced %d notes", report.Notes))
	s.deps.Hub.Publish(ctx)
	c.JSON(http.StatusOK, report)
}

func (s *Server) syncFile(c *gin.Context) {
	var req struct {
		Path    string  `json:"path" binding:"required"`
		Content *string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	// with content the file is written first and the graph sync is scheduled
	if req.Content != nil {
		abs, err := s.deps.Service.SaveFile(ctx, req.Path, *req.Content)
		if err != nil {
			s.writeError(c, "Failed to save file", err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"path": abs, "scheduled": true})
		return
	}

	if err := s.deps.Service.SyncSingleFile(ctx, req.Path); err != nil {
		s.deps.Hub.SyncFailed(err)
		s.writeError(c, "File sync failed", err)
		return
	}
	s.deps.Hub.SyncCompleted("synced " + req.Path)
	s.deps.Hub.Publish(ctx)
	c.JSON(http.StatusOK, gin.H{"path": req.Path, "synced": true})
}

func (s *Server) flush(c *gin.Context) {
	if s.deps.Queue == nil {
		c.JSON(http.StatusOK, gin.H{"flushed": true})
		return
	}
	if err := s.deps.Queue.Flush(c.Request.Context()); err != nil {
		s.writeError(c, "Queue flush failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flushed": true})
}

func (s *Server) getNote(c *gin.Context) {
	note, err := s.deps.Service.Store().GetNote(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, "Failed to fetch note", err)
		return
	}
	if note == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	c.JSON(http.StatusOK, note)
}

func (s *Server) relatedNotes(c *gin.Context) {
	var relType graph.RelType
	if raw := c.Query("type"); raw != "" {
		t, err := graph.ParseRelType(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		relType = t
	}
	depth, err := strconv.Atoi(c.DefaultQuery("depth", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "depth must be an integer"})
		return
	}

	notes, err := s.deps.Service.Store().GetRelatedNotes(c.Request.Context(), c.Param("id"), relType, depth)
	if err != nil {
		s.writeError(c, "Failed to fetch related notes", err)
		return
	}
	if notes == nil {
		notes = []graph.Note{}
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

func (s *Server) query(c *gin.Context) {
	var req struct {
		Query  string         `json:"query" binding:"required"`
		Params map[string]any `json:"params"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rows, err := s.deps.Service.Store().ExecuteQuery(c.Request.Context(), req.Query, req.Params)
	if err != nil {
		s.writeError(c, "Query failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (s *Server) search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	k, err := strconv.Atoi(c.DefaultQuery("k", strconv.Itoa(defaultSearchLimit)))
	if err != nil || k < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "k must be a positive integer"})
		return
	}
	if k > maxSearchLimit {
		k = maxSearchLimit
	}

	svc := s.deps.Service
	hits, err := graph.SearchSimilar(c.Request.Context(), svc.Store(), svc.VaultID(), q, k, s.logger)
	if err != nil {
		s.writeError(c, "Search failed", err)
		return
	}
	if hits == nil {
		hits = []graph.SearchHit{}
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits})
}

func (s *Server) clearVault(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.deps.Service.ClearVault(ctx); err != nil {
		s.writeError(c, "Failed to clear vault", err)
		return
	}
	s.deps.Hub.SyncCompleted("vault cleared")
	s.deps.Hub.Publish(ctx)
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func (s *Server) writeError(c *gin.Context, msg string, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	}
	c.JSON(code, gin.H{"error": msg, "detail": err.Error()})
}

func statusCode(err error) int {
	switch {
	case apperrors.IsErrorType(err, apperrors.ErrorTypePath):
		return http.StatusBadRequest
	case apperrors.IsErrorType(err, apperrors.ErrorTypeStore):
		return http.StatusServiceUnavailable
	case apperrors.IsErrorType(err, apperrors.ErrorTypeTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case apperrors.IsErrorType(err, apperrors.ErrorTypeUpstream):
		return http.StatusBadGateway
	}
	var notFound graph.ErrNoteNotFound
	if errors.As(err, &notFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
