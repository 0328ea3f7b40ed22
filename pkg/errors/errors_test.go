package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := Wrap(ErrorTypeFetch, fmt.Errorf("connection refused"), "page fetch failed").
		WithEntry("comic").
		WithURL("https://example.com/1")

	assert.Equal(t, "comic: fetch: page fetch failed (https://example.com/1): connection refused", err.Error())
}

func TestTypeOfAndIs(t *testing.T) {
	cause := &Error{Type: ErrorTypeServerError, Code: 503}
	err := Wrap(ErrorTypeFetch, cause, "page fetch failed")
	wrapped := fmt.Errorf("entry loop: %w", err)

	assert.Equal(t, ErrorTypeFetch, TypeOf(wrapped))
	assert.True(t, Is(wrapped, ErrorTypeFetch))
	assert.True(t, Is(wrapped, ErrorTypeServerError))
	assert.False(t, Is(wrapped, ErrorTypeWrite))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errType  ErrorType
		expected bool
	}{
		{ErrorTypeNetwork, true},
		{ErrorTypeRateLimit, true},
		{ErrorTypeServerError, true},
		{ErrorTypeNotFound, false},
		{ErrorTypeExtractionMiss, false},
		{ErrorTypeWrite, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.errType))
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, ErrorTypeNetwork, ClassifyStatus(0))
	assert.Equal(t, ErrorTypeRateLimit, ClassifyStatus(429))
	assert.Equal(t, ErrorTypeNotFound, ClassifyStatus(404))
	assert.Equal(t, ErrorTypeServerError, ClassifyStatus(502))
	assert.Equal(t, ErrorTypeUnknown, ClassifyStatus(403))

	assert.True(t, IsRetryableStatusCode(503))
	assert.False(t, IsRetryableStatusCode(403))
}
