package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := NewError(ErrGenerationTimeout, "generation timed out")
	assert.Equal(t, "[GENERATION_TIMEOUT] generation timed out", err.Error())

	wrapped := NewError(ErrRetrievalFailure, "vector search failed").WithCause(errors.New("connection refused"))
	assert.Contains(t, wrapped.Error(), "RETRIEVAL_FAILURE")
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrGenerationService, "upstream failed").WithCause(cause)
	assert.ErrorIs(t, err, cause)
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"tagged error", NewError(ErrInputValidation, "missing question"), ErrInputValidation},
		{"wrapped tagged error", fmt.Errorf("outer: %w", NewError(ErrGenerationParse, "bad json")), ErrGenerationParse},
		{"plain error", errors.New("plain"), ErrorCode("")},
		{"nil", nil, ErrorCode("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorCode(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewError(ErrGenerationService, "rate limited").WithRetryable(true)))
	assert.False(t, IsRetryable(NewError(ErrInputValidation, "bad input")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestIsCode(t *testing.T) {
	err := NewError(ErrRetrievalFailure, "embed failed")
	assert.True(t, IsCode(err, ErrRetrievalFailure))
	assert.False(t, IsCode(err, ErrGenerationTimeout))
}
