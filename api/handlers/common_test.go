package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/tutorflow/types"
)

// =============================================================================
// 🧪 Common 函数测试
// =============================================================================

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		data       any
		wantStatus int
	}{
		{
			name:       "simple object",
			data:       map[string]string{"message": "hello"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "array",
			data:       []int{1, 2, 3},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteJSON(w, tt.wantStatus, tt.data)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestWriteError_StatusMapping(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		err        *types.Error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "input validation",
			err:        types.NewError(types.ErrInputValidation, "question is required"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INPUT_VALIDATION",
		},
		{
			name:       "unauthorized",
			err:        types.NewError(types.ErrUnauthorized, "invalid api key"),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "rate limited",
			err:        types.NewError(types.ErrRateLimited, "too many requests"),
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "RATE_LIMITED",
		},
		{
			name:       "generation timeout",
			err:        types.NewError(types.ErrGenerationTimeout, "timed out"),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "GENERATION_TIMEOUT",
		},
		{
			name:       "generation service",
			err:        types.NewError(types.ErrGenerationService, "upstream 500"),
			wantStatus: http.StatusBadGateway,
			wantCode:   "GENERATION_SERVICE",
		},
		{
			name:       "generation parse",
			err:        types.NewError(types.ErrGenerationParse, "bad payload"),
			wantStatus: http.StatusBadGateway,
			wantCode:   "GENERATION_PARSE",
		},
		{
			name:       "retrieval failure",
			err:        types.NewError(types.ErrRetrievalFailure, "vector index down"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "RETRIEVAL_FAILURE",
		},
		{
			name:       "cache consistency",
			err:        types.NewError(types.ErrCacheConsistency, "invariant broken"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "CACHE_CONSISTENCY",
		},
		{
			name:       "explicit http status wins",
			err:        types.NewError(types.ErrInternalError, "oops").WithHTTPStatus(http.StatusTeapot),
			wantStatus: http.StatusTeapot,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err, logger)

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.False(t, resp.Timestamp.IsZero())
		})
	}
}

func TestWriteError_RetryableFlag(t *testing.T) {
	w := httptest.NewRecorder()
	err := types.NewError(types.ErrGenerationService, "try again").WithRetryable(true)
	WriteError(w, err, zap.NewNop())

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.True(t, resp.Error.Retryable)
}

func TestDecodeJSONBody(t *testing.T) {
	logger := zap.NewNop()

	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"name":"alice"}`))
		w := httptest.NewRecorder()

		var p payload
		require.NoError(t, DecodeJSONBody(w, r, &p, logger))
		assert.Equal(t, "alice", p.Name)
	})

	t.Run("malformed json", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"name":`))
		w := httptest.NewRecorder()

		var p payload
		require.Error(t, DecodeJSONBody(w, r, &p, logger))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"name":"a","extra":1}`))
		w := httptest.NewRecorder()

		var p payload
		require.Error(t, DecodeJSONBody(w, r, &p, logger))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestValidateContentType(t *testing.T) {
	logger := zap.NewNop()

	t.Run("json accepted", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader(nil))
		r.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		assert.True(t, ValidateContentType(w, r, logger))
	})

	t.Run("json with charset accepted", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader(nil))
		r.Header.Set("Content-Type", "application/json; charset=utf-8")
		w := httptest.NewRecorder()

		assert.True(t, ValidateContentType(w, r, logger))
	})

	t.Run("other type rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader(nil))
		r.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()

		assert.False(t, ValidateContentType(w, r, logger))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestResponseWriter_CapturesStatus(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	rw.WriteHeader(http.StatusAccepted)
	_, err := rw.Write([]byte("ok"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, rw.StatusCode)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestResponseWriter_DefaultsTo200(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	_, err := rw.Write([]byte("ok"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rw.StatusCode)
}
