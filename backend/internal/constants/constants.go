package constants

import "time"

// Vault scanning
const (
	// MarkdownExt is the only file extension that is synced
	MarkdownExt = ".md"

	// MaxWalkDepth bounds directory recursion when listing vault files
	MaxWalkDepth = 10

	// StateDir holds sync state inside the vault and is never scanned
	StateDir = ".vault-graph"

	// UntitledNote is used when a file has no stem
	UntitledNote = "Untitled"
)

// Update queue defaults
const (
	DefaultMaxBatchSize  = 10
	DefaultBatchInterval = 30 * time.Second

	// Debounce windows grow with file size
	SmallFileLimit  = 10 * 1024
	MediumFileLimit = 100 * 1024

	SmallFileDebounce  = 2 * time.Second
	MediumFileDebounce = 5 * time.Second
	LargeFileDebounce  = 10 * time.Second
)

// Metrics
const (
	// MetricsWindowSize is the number of samples kept for rolling averages
	MetricsWindowSize = 100
)

// Graph store timeouts
const (
	ConnectTimeout     = 10 * time.Second
	HealthCheckTimeout = 5 * time.Second
	SchemaStmtTimeout  = 5 * time.Second
)

// Relationship inference
const (
	// TemporalWindow is the modified-time gap under which notes are temporally close
	TemporalWindow = time.Hour
)
