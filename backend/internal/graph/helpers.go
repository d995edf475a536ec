package graph

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Helper Functions
// ============================================================================

// noteReturn projects the note properties of variable v
func noteReturn(v string) string {
	return fmt.Sprintf(`%[1]s.id AS id, %[1]s.vault_id AS vault_id, %[1]s.path AS path,
		%[1]s.title AS title, %[1]s.content AS content,
		%[1]s.created AS created, %[1]s.modified AS modified`, v)
}

func noteFromRecord(record *neo4j.Record) Note {
	return Note{
		ID:       getStringFromRecord(record, "id"),
		VaultID:  getStringFromRecord(record, "vault_id"),
		Path:     getStringFromRecord(record, "path"),
		Title:    getStringFromRecord(record, "title"),
		Content:  getStringFromRecord(record, "content"),
		Created:  getUnixTimeFromRecord(record, "created"),
		Modified: getUnixTimeFromRecord(record, "modified"),
	}
}

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getInt64FromRecord(record *neo4j.Record, key string) int64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return i
	}
	if i, ok := val.(int); ok {
		return int64(i)
	}
	return 0
}

func getBoolFromRecord(record *neo4j.Record, key string) bool {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return false
	}
	b, _ := val.(bool)
	return b
}

// getUnixTimeFromRecord reads a unix-seconds property; Neo4j datetimes are accepted too
func getUnixTimeFromRecord(record *neo4j.Record, key string) time.Time {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return time.Time{}
	}
	switch v := val.(type) {
	case int64:
		return time.Unix(v, 0).UTC()
	case time.Time:
		return v.UTC()
	}
	return time.Time{}
}
