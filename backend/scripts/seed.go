package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"vault-graph-sync/backend/internal/services"
	"vault-graph-sync/backend/internal/vault"
	"vault-graph-sync/backend/pkg/config"
	"vault-graph-sync/backend/pkg/logger"
)

// sampleNotes cover every relationship rule: shared tags, near-duplicates,
// title containment, one domain, two domains and an enhancement note.
var sampleNotes = map[string]string{
	"projects/Roadmap.md": `# Roadmap
#project-x #planning

Project milestones for the quarter: deliver the sync engine, the graph schema
and the operator dashboard. Deadline review every sprint with the team.`,

	"projects/Roadmap Review.md": `# Roadmap review
#project-x

Milestones slipped by one sprint. The deadline for the operator dashboard moves,
the sync engine and graph schema stay on plan.`,

	"tech/Graph Schema.md": `# Graph schema
#architecture

Neo database schema: unique constraint on note id, index on vault id, fulltext
index over title and content. Query planner uses the index for path lookups.`,

	"tech/Schema Migration.md": `# Schema migration
#architecture

Database schema migration runbook: create constraint, create index, verify query
plans, then backfill the fulltext index.`,

	"meetings/Standup 2024-05-02.md": `# Standup
#meeting #project-x

Attendees discussed the agenda: sync engine status, dashboard blockers and the
next sprint. Action items recorded below.`,

	"ideas/Improve Search.md": `# Improve search
#ideas

Enhancement idea: rank fulltext hits by recency and blend in semantic matches
from the vector index when embeddings are available.`,

	"journal/Garden.md": `# Garden
Tomatoes are ripening, basil needs water. Nothing to do with work.`,
}

func main() {
	vaultPath := flag.String("vault", "", "Vault directory to seed (defaults to VAULT_PATH)")
	force := flag.Bool("force", false, "Overwrite notes that already exist")
	sync := flag.Bool("sync", false, "Run the initial graph sync after seeding")
	flag.Parse()

	log, err := logger.New("development")
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync(log)

	log.Info("Starting vault seeding...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if *vaultPath != "" {
		cfg.VaultPath = *vaultPath
	}
	if err := os.MkdirAll(cfg.VaultPath, 0o755); err != nil {
		log.Fatal("Failed to create vault directory", zap.Error(err))
	}

	v, err := vault.NewStore(cfg.VaultPath)
	if err != nil {
		log.Fatal("Failed to open vault", zap.Error(err))
	}

	written := 0
	for rel, content := range sampleNotes {
		abs := filepath.Join(v.Root(), filepath.FromSlash(rel))
		if _, err := os.Stat(abs); err == nil && !*force {
			log.Info("Note already exists, skipping (use -force to overwrite)", zap.String("path", rel))
			continue
		}
		if _, err := v.WriteFile(rel, content); err != nil {
			log.Fatal("Failed to write note", zap.String("path", rel), zap.Error(err))
		}
		written++
	}
	log.Info("Vault seeded", zap.String("vault", v.Root()), zap.Int("written", written))

	if !*sync {
		return
	}

	ctx := context.Background()
	sm := services.NewServiceManager(cfg, log, services.WithoutQueue())
	if err := sm.StartAll(ctx); err != nil {
		log.Fatal("Failed to start services", zap.Error(err))
	}
	defer sm.StopAll(ctx)

	report, err := sm.Service().InitialSync(ctx)
	if err != nil {
		log.Error("Initial sync failed", zap.Error(err))
		return
	}
	log.Info("Initial sync complete",
		zap.Int("notes", report.Notes),
		zap.Int("tag_relationships", report.TagRelationships),
		zap.Int("semantic_relationships", report.SemanticRelationships),
	)
}
