package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypePath represents a file path outside the vault root
	ErrorTypePath ErrorType = "path"
	// ErrorTypeStore represents a graph or vector store that is not connected
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeUpstream represents a failed graph or vector store call
	ErrorTypeUpstream ErrorType = "upstream"
	// ErrorTypeTimeout represents a bounded external call that did not finish in time
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeEmbedding represents embedding generation being unavailable
	ErrorTypeEmbedding ErrorType = "embedding"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Path Errors

// ErrPathOutsideVault is returned when a file is not under the vault root
type ErrPathOutsideVault struct {
	*BaseError
	Path string
	Root string
}

func NewPathError(path, root string) *ErrPathOutsideVault {
	return &ErrPathOutsideVault{
		BaseError: NewBaseError(ErrorTypePath, fmt.Sprintf("path %s is not under vault root %s", path, root), nil),
		Path:      path,
		Root:      root,
	}
}

// Store Errors

// ErrStoreUnavailable is returned when a store handle is not connected
type ErrStoreUnavailable struct {
	*BaseError
	Store string
}

func NewStoreUnavailable(store string) *ErrStoreUnavailable {
	return &ErrStoreUnavailable{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("%s store not connected", store), nil),
		Store:     store,
	}
}

// ErrUpstreamFailed is returned when a store call fails
type ErrUpstreamFailed struct {
	*BaseError
	Store     string
	Operation string
}

func NewUpstreamError(store, operation string, err error) *ErrUpstreamFailed {
	return &ErrUpstreamFailed{
		BaseError: NewBaseError(ErrorTypeUpstream, fmt.Sprintf("%s %s failed", store, operation), err),
		Store:     store,
		Operation: operation,
	}
}

// ErrTimeout is returned when a bounded call exceeds its deadline
type ErrTimeout struct {
	*BaseError
	Operation string
	Timeout   time.Duration
}

func NewTimeout(operation string, timeout time.Duration) *ErrTimeout {
	return &ErrTimeout{
		BaseError: NewBaseError(ErrorTypeTimeout, fmt.Sprintf("operation timed out: %s (timeout: %v)", operation, timeout), nil),
		Operation: operation,
		Timeout:   timeout,
	}
}

// Embedding Errors

// ErrEmbeddingNotConfigured is returned when no embedding generator is wired
var ErrEmbeddingNotConfigured = NewBaseError(ErrorTypeEmbedding, "embedding generator not configured", nil)

// ErrEmbeddingUnavailable is returned when embedding generation fails
type ErrEmbeddingUnavailable struct {
	*BaseError
	Reason string
}

func NewEmbeddingUnavailable(reason string, err error) *ErrEmbeddingUnavailable {
	return &ErrEmbeddingUnavailable{
		BaseError: NewBaseError(ErrorTypeEmbedding, fmt.Sprintf("embedding unavailable: %s", reason), err),
		Reason:    reason,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

// typedError is satisfied by *BaseError and every struct embedding it
type typedError interface {
	error
	ErrorType() ErrorType
}

// ErrorType returns the error category
func (e *BaseError) ErrorType() ErrorType {
	return e.Type
}

// IsErrorType checks if an error (or anything it wraps) is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		var te typedError
		if !errors.As(err, &te) {
			return false
		}
		if te.ErrorType() == errType {
			return true
		}
		err = errors.Unwrap(te)
	}
	return false
}

// IsAlreadyExists reports whether a store error means the object is already present.
// Schema setup treats these as success.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "equivalentschemarulealreadyexists")
}

// IsRetryable checks if an error is worth retrying by the caller.
// Nothing in the sync core retries on its own; the next debounced save is the retry.
func IsRetryable(err error) bool {
	if IsErrorType(err, ErrorTypePath) || IsErrorType(err, ErrorTypeConfig) {
		return false
	}
	return IsErrorType(err, ErrorTypeTimeout) || IsErrorType(err, ErrorTypeStore)
}
