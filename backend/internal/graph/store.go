package graph

import (
	"context"
	"sync"
)

// Store is the graph store consumed by the sync pipeline.
// Repository is the Neo4j variant and MemoryStore the in-process one.
type Store interface {
	Connect(ctx context.Context, uri, user, password string) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	// UpsertNote creates or updates the note keyed by (ID, VaultID)
	UpsertNote(ctx context.Context, note Note) (string, error)
	// UpdateNote fails with ErrNoteNotFound when the note is absent
	UpdateNote(ctx context.Context, note Note) error
	DeleteNote(ctx context.Context, id string) error
	GetNote(ctx context.Context, id string) (*Note, error)

	// CreateRelationship merges on (from, to, type), keeping the max confidence and similarity
	CreateRelationship(ctx context.Context, rel Relationship) (string, error)
	RelationshipExists(ctx context.Context, fromID, toID string, relType RelType) (bool, error)
	// TagNote links a note to its vault-scoped Tag node
	TagNote(ctx context.Context, vaultID, noteID, tag string) error

	ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

	ListNotes(ctx context.Context, vaultID string) ([]Note, error)
	GetRelatedNotes(ctx context.Context, id string, relType RelType, depth int) ([]Note, error)
	SearchNotes(ctx context.Context, vaultID, query string, limit int) ([]Note, error)
	Counts(ctx context.Context, vaultID string) (Counts, error)
	ClearVault(ctx context.Context, vaultID string) error

	// Embeddings returns the semantic search capability, or nil when none is attached
	Embeddings() *Embeddings
}

// capabilities carries the optional extras shared by every Store variant
type capabilities struct {
	mu         sync.RWMutex
	embeddings *Embeddings
}

// Embeddings returns the attached embedding capability, or nil
func (c *capabilities) Embeddings() *Embeddings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddings
}

// AttachEmbeddings wires an embedding capability into the store
func (c *capabilities) AttachEmbeddings(e *Embeddings) {
	c.mu.Lock()
	c.embeddings = e
	c.mu.Unlock()
}
