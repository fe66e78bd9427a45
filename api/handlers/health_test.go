package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 HealthHandler 测试
// =============================================================================

func TestHealthHandler_HandleHealth(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.HandleHealth(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthHandler_HandleHealthz(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.HandleHealthz(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler_HandleReady_AllPass(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck(NewPingHealthCheck("vector_index", func(ctx context.Context) error { return nil }))
	h.RegisterCheck(NewPingHealthCheck("llm_provider", func(ctx context.Context) error { return nil }))

	r := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	h.HandleReady(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	require.Len(t, status.Checks, 2)
	assert.Equal(t, "pass", status.Checks["vector_index"].Status)
	assert.Equal(t, "pass", status.Checks["llm_provider"].Status)
	assert.NotEmpty(t, status.Checks["vector_index"].Latency)
}

func TestHealthHandler_HandleReady_OneFails(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck(NewPingHealthCheck("vector_index", func(ctx context.Context) error { return nil }))
	h.RegisterCheck(NewPingHealthCheck("llm_provider", func(ctx context.Context) error {
		return errors.New("connection refused")
	}))

	r := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	h.HandleReady(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "pass", status.Checks["vector_index"].Status)
	assert.Equal(t, "fail", status.Checks["llm_provider"].Status)
	assert.Contains(t, status.Checks["llm_provider"].Message, "connection refused")
}

func TestHealthHandler_HandleReady_NoChecks(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	h.HandleReady(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	handler := h.HandleVersion("1.2.3", "2026-01-02", "abc1234")

	r := httptest.NewRequest(http.MethodGet, "/version", nil)
	w := httptest.NewRecorder()
	handler(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "1.2.3", resp.Data["version"])
	assert.Equal(t, "2026-01-02", resp.Data["build_time"])
	assert.Equal(t, "abc1234", resp.Data["git_commit"])
}
