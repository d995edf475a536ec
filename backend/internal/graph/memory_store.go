package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "vault-graph-sync/backend/pkg/errors"
)

type edgeKey struct {
	from, to string
	relType  RelType
}

type tagNode struct {
	name    string
	vaultID string
}

// MemoryStore is an in-process Store used by tests and by the CLI dry-run mode.
// It honours the same merge semantics as the Neo4j repository.
type MemoryStore struct {
	capabilities

	mu        sync.RWMutex
	connected bool
	notes     map[string]Note
	edges     map[edgeKey]Relationship
	edgeOrder []edgeKey
	tags      map[string]tagNode
	queries   []string

	// Fault hooks, consulted before the matching write
	FailUpsert       func(Note) error
	FailRelationship func(Relationship) error
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a connected, empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		connected: true,
		notes:     make(map[string]Note),
		edges:     make(map[edgeKey]Relationship),
		tags:      make(map[string]tagNode),
	}
}

func (m *MemoryStore) Connect(ctx context.Context, uri, user, password string) error {
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *MemoryStore) UpsertNote(ctx context.Context, note Note) (string, error) {
	if m.FailUpsert != nil {
		if err := m.FailUpsert(note); err != nil {
			return "", apperrors.NewUpstreamError("memory", "upsert note", err)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return "", apperrors.NewStoreUnavailable("graph")
	}
	m.notes[note.ID] = note
	return note.ID, nil
}

func (m *MemoryStore) UpdateNote(ctx context.Context, note Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return apperrors.NewStoreUnavailable("graph")
	}
	existing, ok := m.notes[note.ID]
	if !ok || existing.VaultID != note.VaultID {
		return ErrNoteNotFound{ID: note.ID}
	}
	m.notes[note.ID] = note
	return nil
}

func (m *MemoryStore) DeleteNote(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return apperrors.NewStoreUnavailable("graph")
	}
	delete(m.notes, id)
	m.dropEdgesLocked(func(k edgeKey) bool { return k.from == id || k.to == id })
	return nil
}

func (m *MemoryStore) GetNote(ctx context.Context, id string) (*Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected {
		return nil, apperrors.NewStoreUnavailable("graph")
	}
	note, ok := m.notes[id]
	if !ok {
		return nil, nil
	}
	return &note, nil
}

func (m *MemoryStore) CreateRelationship(ctx context.Context, rel Relationship) (string, error) {
	if !rel.Type.Valid() {
		return "", fmt.Errorf("invalid relationship type %q", rel.Type)
	}
	if m.FailRelationship != nil {
		if err := m.FailRelationship(rel); err != nil {
			return "", apperrors.NewUpstreamError("memory", "create relationship", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return "", apperrors.NewStoreUnavailable("graph")
	}
	if _, ok := m.notes[rel.FromID]; !ok {
		return "", ErrNoteNotFound{ID: rel.FromID}
	}
	if _, ok := m.notes[rel.ToID]; !ok {
		return "", ErrNoteNotFound{ID: rel.ToID}
	}

	key := edgeKey{from: rel.FromID, to: rel.ToID, relType: rel.Type}
	props := make(map[string]any, len(rel.Properties))
	for k, v := range rel.Properties {
		props[k] = v
	}

	if existing, ok := m.edges[key]; ok {
		if c := existing.Confidence(); c > rel.Confidence() {
			props[PropConfidence] = c
		}
		if s := existing.Similarity(); s > rel.Similarity() {
			props[PropSimilarity] = s
		}
	} else {
		m.edgeOrder = append(m.edgeOrder, key)
	}
	m.edges[key] = Relationship{FromID: rel.FromID, ToID: rel.ToID, Type: rel.Type, Properties: props}

	return fmt.Sprintf("%s-%s->%s", rel.FromID, rel.Type, rel.ToID), nil
}

func (m *MemoryStore) RelationshipExists(ctx context.Context, fromID, toID string, relType RelType) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.edges[edgeKey{from: fromID, to: toID, relType: relType}]
	return ok, nil
}

func (m *MemoryStore) TagNote(ctx context.Context, vaultID, noteID, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return apperrors.NewStoreUnavailable("graph")
	}
	if _, ok := m.notes[noteID]; !ok {
		return ErrNoteNotFound{ID: noteID}
	}
	tagID := TagID(vaultID, tag)
	if _, ok := m.tags[tagID]; !ok {
		m.tags[tagID] = tagNode{name: tag, vaultID: vaultID}
	}
	key := edgeKey{from: noteID, to: tagID, relType: RelTaggedWith}
	if _, ok := m.edges[key]; !ok {
		m.edges[key] = Relationship{FromID: noteID, ToID: tagID, Type: RelTaggedWith, Properties: map[string]any{}}
		m.edgeOrder = append(m.edgeOrder, key)
	}
	return nil
}

// ExecuteQuery records the query text and returns no rows
func (m *MemoryStore) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, apperrors.NewStoreUnavailable("graph")
	}
	m.queries = append(m.queries, query)
	return []map[string]any{}, nil
}

func (m *MemoryStore) GetRelatedNotes(ctx context.Context, id string, relType RelType, depth int) ([]Note, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > maxRelatedDepth {
		depth = maxRelatedDepth
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	adjacency := make(map[string][]string)
	for _, k := range m.edgeOrder {
		if relType != "" && k.relType != relType {
			continue
		}
		adjacency[k.from] = append(adjacency[k.from], k.to)
		adjacency[k.to] = append(adjacency[k.to], k.from)
	}

	seen := map[string]bool{id: true}
	frontier := []string{id}
	var related []Note
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, cur := range frontier {
			for _, nb := range adjacency[cur] {
				if seen[nb] {
					continue
				}
				seen[nb] = true
				next = append(next, nb)
				if note, ok := m.notes[nb]; ok {
					related = append(related, note)
				}
			}
		}
		frontier = next
	}
	return related, nil
}

func (m *MemoryStore) ListNotes(ctx context.Context, vaultID string) ([]Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected {
		return nil, apperrors.NewStoreUnavailable("graph")
	}
	notes := make([]Note, 0, len(m.notes))
	for _, n := range m.notes {
		if n.VaultID == vaultID {
			notes = append(notes, n)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].Path < notes[j].Path })
	return notes, nil
}

// SearchNotes does a case-insensitive substring match over title and content
func (m *MemoryStore) SearchNotes(ctx context.Context, vaultID, query string, limit int) ([]Note, error) {
	if limit < 1 {
		limit = 10
	}
	q := strings.ToLower(query)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Note
	for _, n := range m.notes {
		if n.VaultID != vaultID {
			continue
		}
		if strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.Content), q) {
			hits = append(hits, n)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Path < hits[j].Path })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MemoryStore) Counts(ctx context.Context, vaultID string) (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var c Counts
	for _, n := range m.notes {
		if n.VaultID == vaultID {
			c.Notes++
		}
	}
	for _, t := range m.tags {
		if t.vaultID == vaultID {
			c.Tags++
		}
	}
	for k := range m.edges {
		if n, ok := m.notes[k.from]; ok && n.VaultID == vaultID {
			c.Relationships++
		}
	}
	return c, nil
}

func (m *MemoryStore) ClearVault(ctx context.Context, vaultID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return apperrors.NewStoreUnavailable("graph")
	}

	removed := make(map[string]bool)
	for id, n := range m.notes {
		if n.VaultID == vaultID {
			removed[id] = true
			delete(m.notes, id)
		}
	}
	for id, t := range m.tags {
		if t.vaultID == vaultID {
			removed[id] = true
			delete(m.tags, id)
		}
	}
	m.dropEdgesLocked(func(k edgeKey) bool { return removed[k.from] || removed[k.to] })
	return nil
}

func (m *MemoryStore) dropEdgesLocked(match func(edgeKey) bool) {
	kept := m.edgeOrder[:0]
	for _, k := range m.edgeOrder {
		if match(k) {
			delete(m.edges, k)
			continue
		}
		kept = append(kept, k)
	}
	m.edgeOrder = kept
}

// Notes returns every stored note sorted by path
func (m *MemoryStore) Notes() []Note {
	m.mu.RLock()
	defer m.mu.RUnlock()
	notes := make([]Note, 0, len(m.notes))
	for _, n := range m.notes {
		notes = append(notes, n)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].Path < notes[j].Path })
	return notes
}

// Relationships returns stored edges of the given types (all when none given), in creation order
func (m *MemoryStore) Relationships(types ...RelType) []Relationship {
	want := make(map[RelType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var rels []Relationship
	for _, k := range m.edgeOrder {
		if len(want) > 0 && !want[k.relType] {
			continue
		}
		rels = append(rels, m.edges[k])
	}
	return rels
}

// Queries returns the query texts passed to ExecuteQuery
func (m *MemoryStore) Queries() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.queries...)
}
