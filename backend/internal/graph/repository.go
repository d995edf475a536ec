package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"vault-graph-sync/backend/internal/constants"
	apperrors "vault-graph-sync/backend/pkg/errors"
)

// Repository handles all Neo4j database operations
type Repository struct {
	capabilities

	mu             sync.RWMutex // guards driver; never held across a network call
	driver         neo4j.DriverWithContext
	connectTimeout time.Duration
	logger         *zap.Logger
}

var _ Store = (*Repository)(nil)

// NewRepository creates a disconnected repository; call Connect before use
func NewRepository(log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{
		connectTimeout: constants.ConnectTimeout,
		logger:         log,
	}
}

// NewRepositoryWithDriver wraps an already verified driver
func NewRepositoryWithDriver(driver neo4j.DriverWithContext, log *zap.Logger) *Repository {
	r := NewRepository(log)
	r.driver = driver
	return r
}

// SetConnectTimeout overrides the connection establishment bound
func (r *Repository) SetConnectTimeout(d time.Duration) {
	if d > 0 {
		r.connectTimeout = d
	}
}

// Connect opens the driver and verifies it within bounded time
func (r *Repository) Connect(ctx context.Context, uri, user, password string) error {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return apperrors.NewUpstreamError("neo4j", "create driver", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, r.connectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(context.Background())
		if errors.Is(verifyCtx.Err(), context.DeadlineExceeded) {
			return apperrors.NewTimeout("neo4j connect", r.connectTimeout)
		}
		return apperrors.NewUpstreamError("neo4j", "verify connectivity", err)
	}

	if err := healthCheck(ctx, driver); err != nil {
		_ = driver.Close(context.Background())
		return err
	}

	r.mu.Lock()
	old := r.driver
	r.driver = driver
	r.mu.Unlock()
	if old != nil {
		_ = old.Close(context.Background())
	}

	r.logger.Info("Connected to Neo4j", zap.String("uri", uri))
	return nil
}

func healthCheck(ctx context.Context, driver neo4j.DriverWithContext) error {
	checkCtx, cancel := context.WithTimeout(ctx, constants.HealthCheckTimeout)
	defer cancel()

	session := driver.NewSession(checkCtx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(context.Background())

	result, err := session.Run(checkCtx, "RETURN 1 AS ok", nil)
	if err == nil {
		_, err = result.Single(checkCtx)
	}
	if err != nil {
		if errors.Is(checkCtx.Err(), context.DeadlineExceeded) {
			return apperrors.NewTimeout("neo4j health check", constants.HealthCheckTimeout)
		}
		return apperrors.NewUpstreamError("neo4j", "health check", err)
	}
	return nil
}

// Disconnect closes the Neo4j driver connection
func (r *Repository) Disconnect(ctx context.Context) error {
	r.mu.Lock()
	driver := r.driver
	r.driver = nil
	r.mu.Unlock()

	if driver == nil {
		return nil
	}
	return driver.Close(ctx)
}

// IsConnected reports whether a driver is held
func (r *Repository) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.driver != nil
}

func (r *Repository) session(ctx context.Context, mode neo4j.AccessMode) (neo4j.SessionWithContext, error) {
	r.mu.RLock()
	driver := r.driver
	r.mu.RUnlock()

	if driver == nil {
		return nil, apperrors.NewStoreUnavailable("graph")
	}
	return driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode}), nil
}

// run executes a query in its own session and collects every record
func (r *Repository) run(ctx context.Context, mode neo4j.AccessMode, op, query string, params map[string]any) ([]*neo4j.Record, error) {
	session, err := r.session(ctx, mode)
	if err != nil {
		return nil, err
	}
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, apperrors.NewUpstreamError("neo4j", op, err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, apperrors.NewUpstreamError("neo4j", op, err)
	}
	return records, nil
}

// ============================================================================
// Note Operations
// ============================================================================

func noteParams(note Note) map[string]any {
	return map[string]any{
		"id":       note.ID,
		"vault_id": note.VaultID,
		"path":     note.Path,
		"title":    note.Title,
		"content":  note.Content,
		"created":  note.Created.UTC().Unix(),
		"modified": note.Modified.UTC().Unix(),
	}
}

// UpsertNote creates or updates a note keyed by (id, vault_id)
func (r *Repository) UpsertNote(ctx context.Context, note Note) (string, error) {
	query := `
		MERGE (n:Note {id: $id, vault_id: $vault_id})
		SET n.path = $path,
		    n.title = $title,
		    n.content = $content,
		    n.created = $created,
		    n.modified = $modified
		RETURN n.id AS id
	`

	records, err := r.run(ctx, neo4j.AccessModeWrite, "upsert note", query, noteParams(note))
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", apperrors.NewUpstreamError("neo4j", "upsert note", fmt.Errorf("no id returned for %s", note.Path))
	}

	r.logger.Debug("Note upserted",
		zap.String("note_id", note.ID),
		zap.String("path", note.Path),
	)
	return getStringFromRecord(records[0], "id"), nil
}

// UpdateNote overwrites an existing note
func (r *Repository) UpdateNote(ctx context.Context, note Note) error {
	query := `
		MATCH (n:Note {id: $id, vault_id: $vault_id})
		SET n.path = $path,
		    n.title = $title,
		    n.content = $content,
		    n.created = $created,
		    n.modified = $modified
		RETURN n.id AS id
	`

	records, err := r.run(ctx, neo4j.AccessModeWrite, "update note", query, noteParams(note))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrNoteNotFound{ID: note.ID}
	}
	return nil
}

// DeleteNote removes a note and its edges
func (r *Repository) DeleteNote(ctx context.Context, id string) error {
	_, err := r.run(ctx, neo4j.AccessModeWrite, "delete note",
		`MATCH (n:Note {id: $id}) DETACH DELETE n`,
		map[string]any{"id": id},
	)
	if err != nil {
		return err
	}
	r.logger.Debug("Note deleted", zap.String("note_id", id))
	return nil
}

// GetNote returns the note or nil when absent
func (r *Repository) GetNote(ctx context.Context, id string) (*Note, error) {
	records, err := r.run(ctx, neo4j.AccessModeRead, "get note", `
		MATCH (n:Note {id: $id})
		RETURN `+noteReturn("n"),
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	note := noteFromRecord(records[0])
	return &note, nil
}

// ExecuteQuery runs an arbitrary Cypher query and returns rows as maps
func (r *Repository) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	records, err := r.run(ctx, neo4j.AccessModeWrite, "execute query", query, params)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rec.AsMap())
	}
	return rows, nil
}

// Counts returns note, tag and relationship totals for a vault
func (r *Repository) Counts(ctx context.Context, vaultID string) (Counts, error) {
	records, err := r.run(ctx, neo4j.AccessModeRead, "counts", `
		OPTIONAL MATCH (n:Note {vault_id: $vault_id})
		WITH count(n) AS notes
		OPTIONAL MATCH (t:Tag {vault_id: $vault_id})
		WITH notes, count(t) AS tags
		OPTIONAL MATCH (:Note {vault_id: $vault_id})-[r]->()
		RETURN notes, tags, count(r) AS relationships
	`, map[string]any{"vault_id": vaultID})
	if err != nil {
		return Counts{}, err
	}
	if len(records) == 0 {
		return Counts{}, nil
	}
	return Counts{
		Notes:         getInt64FromRecord(records[0], "notes"),
		Tags:          getInt64FromRecord(records[0], "tags"),
		Relationships: getInt64FromRecord(records[0], "relationships"),
	}, nil
}

// ClearVault deletes every node of the vault along with its edges
func (r *Repository) ClearVault(ctx context.Context, vaultID string) error {
	params := map[string]any{"vault_id": vaultID}
	if _, err := r.run(ctx, neo4j.AccessModeWrite, "clear relationships",
		`MATCH (n {vault_id: $vault_id})-[r]-() DELETE r`, params); err != nil {
		return err
	}
	if _, err := r.run(ctx, neo4j.AccessModeWrite, "clear nodes",
		`MATCH (n {vault_id: $vault_id}) DELETE n`, params); err != nil {
		return err
	}
	r.logger.Info("Vault graph data cleared", zap.String("vault_id", vaultID))
	return nil
}
