package graph

import (
	"context"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"vault-graph-sync/backend/internal/constants"
	apperrors "vault-graph-sync/backend/pkg/errors"
)

var schemaStatements = []string{
	"CREATE CONSTRAINT note_id_unique IF NOT EXISTS FOR (n:Note) REQUIRE n.id IS UNIQUE",
	"CREATE CONSTRAINT tag_id_unique IF NOT EXISTS FOR (t:Tag) REQUIRE t.id IS UNIQUE",
	"CREATE INDEX note_title IF NOT EXISTS FOR (n:Note) ON (n.title)",
	"CREATE INDEX note_created IF NOT EXISTS FOR (n:Note) ON (n.created)",
	"CREATE INDEX note_modified IF NOT EXISTS FOR (n:Note) ON (n.modified)",
	"CREATE INDEX note_vault IF NOT EXISTS FOR (n:Note) ON (n.vault_id)",
	"CREATE FULLTEXT INDEX note_content IF NOT EXISTS FOR (n:Note) ON EACH [n.content, n.title]",
}

// EnsureSchema creates constraints and indexes. Each statement is time-bounded
// and "already exists" answers count as success.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		stmtCtx, cancel := context.WithTimeout(ctx, constants.SchemaStmtTimeout)
		_, err := r.run(stmtCtx, neo4j.AccessModeWrite, "schema", stmt, nil)
		timedOut := errors.Is(stmtCtx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil || apperrors.IsAlreadyExists(err) {
			continue
		}
		if timedOut {
			return apperrors.NewTimeout("schema: "+stmt, constants.SchemaStmtTimeout)
		}
		return err
	}

	r.logger.Info("Graph schema ready", zap.Int("statements", len(schemaStatements)))
	return nil
}
