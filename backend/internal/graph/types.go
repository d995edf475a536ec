package graph

import (
	"fmt"
	"time"
)

// ============================================================================
// Graph Types
// ============================================================================

// Note is the synced state of one markdown file
type Note struct {
	ID       string    `json:"id"`
	VaultID  string    `json:"vault_id"`
	Path     string    `json:"path"` // vault-relative, slash separated
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// RelType is the vocabulary of edge types
type RelType string

const (
	RelHighlyRelated     RelType = "HIGHLY_RELATED"
	RelRelatedTo         RelType = "RELATED_TO"
	RelContains          RelType = "CONTAINS"
	RelSameDomain        RelType = "SAME_DOMAIN"
	RelCrossDomain       RelType = "CROSS_DOMAIN"
	RelEnhances          RelType = "ENHANCES"
	RelLooselyRelated    RelType = "LOOSELY_RELATED"
	RelTemporalProximity RelType = "TEMPORAL_PROXIMITY"
	RelSharesTag         RelType = "SHARES_TAG"
	RelTaggedWith        RelType = "TAGGED_WITH"
)

var validRelTypes = map[RelType]struct{}{
	RelHighlyRelated:     {},
	RelRelatedTo:         {},
	RelContains:          {},
	RelSameDomain:        {},
	RelCrossDomain:       {},
	RelEnhances:          {},
	RelLooselyRelated:    {},
	RelTemporalProximity: {},
	RelSharesTag:         {},
	RelTaggedWith:        {},
}

// Valid reports whether t is part of the vocabulary.
// Relationship types are interpolated into Cypher, so only these are accepted.
func (t RelType) Valid() bool {
	_, ok := validRelTypes[t]
	return ok
}

// ParseRelType validates a relationship type name
func ParseRelType(s string) (RelType, error) {
	t := RelType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown relationship type: %s", s)
	}
	return t, nil
}

// Property keys written on relationships
const (
	PropConfidence      = "confidence"
	PropSimilarity      = "similarity"
	PropMethod          = "method"
	PropKeywordsOverlap = "keywords_overlap"
	PropTag             = "tag"
)

// Relationship is a directed, typed edge between two notes
type Relationship struct {
	FromID     string         `json:"from_id"`
	ToID       string         `json:"to_id"`
	Type       RelType        `json:"rel_type"`
	Properties map[string]any `json:"properties"`
}

// Confidence returns the confidence property, or 0 when unset
func (r Relationship) Confidence() float64 {
	return floatProp(r.Properties, PropConfidence)
}

// Similarity returns the similarity property, or 0 when unset
func (r Relationship) Similarity() float64 {
	return floatProp(r.Properties, PropSimilarity)
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// TagID returns the id of a vault-scoped tag node
func TagID(vaultID, tag string) string {
	return fmt.Sprintf("tag_%s_%s", vaultID, tag)
}

// Counts summarises the graph contents of a vault
type Counts struct {
	Notes         int64 `json:"notes"`
	Tags          int64 `json:"tags"`
	Relationships int64 `json:"relationships"`
}

// ErrNoteNotFound is returned when an update or relationship refers to a missing note
type ErrNoteNotFound struct {
	ID string
}

func (e ErrNoteNotFound) Error() string {
	return fmt.Sprintf("note not found: %s", e.ID)
}
