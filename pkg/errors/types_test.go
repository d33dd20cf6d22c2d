package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:      "version",
		Message:    "must be X.Y.Z",
		Suggestion: "use a full semantic version like 1.0.0",
	}

	assert.Equal(t, "validation failed on version: must be X.Y.Z", err.Error())
	assert.Equal(t, "validation", err.ErrorType())
	assert.False(t, err.IsRetryable())
}

func TestValidationError_NoField(t *testing.T) {
	err := &ValidationError{Message: "document is empty"}
	assert.Equal(t, "validation failed: document is empty", err.Error())
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{Resource: "capability", ID: "computeMargin"}
	assert.Equal(t, "capability not found: computeMargin", err.Error())
	assert.False(t, err.IsRetryable())
}

func TestVersionError(t *testing.T) {
	err := &VersionError{ID: "computeMargin", Requested: "2.0.0", Available: []string{"1.0.0", "1.1.0"}}
	assert.Contains(t, err.Error(), "no version 2.0.0")
	assert.Contains(t, err.Error(), "1.1.0")
	assert.False(t, err.IsRetryable())
}

func TestSecurityError(t *testing.T) {
	err := &SecurityError{
		Check:   "path_containment",
		Path:    "/tmp/evil.go",
		Message: "implementation escapes package directory",
	}
	assert.Contains(t, err.Error(), "path_containment")
	assert.Contains(t, err.Error(), "/tmp/evil.go")
	assert.Equal(t, "security", err.ErrorType())
	assert.False(t, err.IsRetryable())
}

func TestConfigError_Unwrap(t *testing.T) {
	cause := New("file missing")
	err := &ConfigError{Key: "capability_root", Reason: "cannot read", Cause: cause}

	assert.Contains(t, err.Error(), "capability_root")
	assert.Equal(t, cause, Unwrap(err))
}

func TestWrap(t *testing.T) {
	base := New("boom")
	wrapped := Wrap(base, "running step")

	require.Error(t, wrapped)
	assert.Equal(t, "running step: boom", wrapped.Error())
	assert.True(t, Is(wrapped, base))

	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestWrapf(t *testing.T) {
	base := New("boom")
	wrapped := Wrapf(base, "step %s attempt %d", "alert", 2)

	assert.Equal(t, "step alert attempt 2: boom", wrapped.Error())
	assert.Nil(t, Wrapf(nil, "ignored %d", 1))
}

func TestAs(t *testing.T) {
	var target *NotFoundError
	err := Wrap(&NotFoundError{Resource: "capability", ID: "x"}, "resolving")

	require.True(t, As(err, &target))
	assert.Equal(t, "x", target.ID)
}

func TestIsRetryable(t *testing.T) {
	// Classified errors report their own retryability.
	assert.False(t, IsRetryable(&NotFoundError{Resource: "capability", ID: "x"}))
	assert.False(t, IsRetryable(Wrap(&SecurityError{Check: "content_hash"}, "loading")))

	// Unclassified errors default to retryable.
	assert.True(t, IsRetryable(fmt.Errorf("connection reset")))
	assert.True(t, IsRetryable(nil))
}
