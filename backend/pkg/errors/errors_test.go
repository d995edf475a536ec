package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsErrorType_Embedded(t *testing.T) {
	err := NewPathError("/tmp/other/a.md", "/tmp/vault")

	assert.True(t, IsErrorType(err, ErrorTypePath))
	assert.False(t, IsErrorType(err, ErrorTypeStore))
	assert.Contains(t, err.Error(), "/tmp/vault")
}

func TestIsErrorType_Wrapped(t *testing.T) {
	inner := NewStoreUnavailable("graph")
	wrapped := fmt.Errorf("sync a.md: %w", inner)

	assert.True(t, IsErrorType(wrapped, ErrorTypeStore))

	var target *ErrStoreUnavailable
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "graph", target.Store)
}

func TestIsErrorType_NestedBaseErrors(t *testing.T) {
	timeout := NewTimeout("verify connectivity", 5*time.Second)
	upstream := NewUpstreamError("neo4j", "connect", timeout)

	assert.True(t, IsErrorType(upstream, ErrorTypeUpstream))
	assert.True(t, IsErrorType(upstream, ErrorTypeTimeout))
	assert.False(t, IsErrorType(upstream, ErrorTypeEmbedding))
}

func TestIsErrorType_PlainError(t *testing.T) {
	assert.False(t, IsErrorType(errors.New("boom"), ErrorTypeUpstream))
	assert.False(t, IsErrorType(nil, ErrorTypeUpstream))
}

func TestIsAlreadyExists(t *testing.T) {
	assert.True(t, IsAlreadyExists(errors.New("Neo.ClientError.Schema.EquivalentSchemaRuleAlreadyExists")))
	assert.True(t, IsAlreadyExists(errors.New("An index already exists")))
	assert.False(t, IsAlreadyExists(errors.New("syntax error")))
	assert.False(t, IsAlreadyExists(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewTimeout("connect", time.Second)))
	assert.True(t, IsRetryable(NewStoreUnavailable("graph")))
	assert.False(t, IsRetryable(NewPathError("a", "b")))
	assert.False(t, IsRetryable(NewConfigMissingRequired("NEO4J_URI")))
	assert.False(t, IsRetryable(NewUpstreamError("neo4j", "query", errors.New("syntax"))))
}
