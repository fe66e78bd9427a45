package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/tutorflow/types"
)

func newChatServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OpenAICompatProvider) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := NewOpenAICompatProvider(OpenAICompatConfig{
		BaseURL: server.URL,
		APIKey:  "sk-test",
		Model:   "gpt-4o-mini",
	}, zap.NewNop())
	return server, provider
}

func TestCompletion_Success(t *testing.T) {
	var gotAuth string
	var gotBody openAIChatRequest

	_, provider := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-1",
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": "Ubiquitous means everywhere."}},
			},
			"usage": map[string]int{"prompt_tokens": 42, "completion_tokens": 8, "total_tokens": 50},
		})
	})

	resp, err := provider.Completion(context.Background(), &ChatRequest{
		UserID:   "u-1",
		Messages: []Message{{Role: RoleUser, Content: "What does ubiquitous mean?"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody.Model, "未指定模型时应回落到配置默认值")

	text, err := AnswerText(resp)
	require.NoError(t, err)
	assert.Equal(t, "Ubiquitous means everywhere.", text)
	assert.Equal(t, 50, resp.Usage.TotalTokens)
}

func TestCompletion_ServiceError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  types.ErrorCode
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, types.ErrGenerationService, true},
		{"unauthorized", http.StatusUnauthorized, types.ErrGenerationService, false},
		{"upstream 500", http.StatusInternalServerError, types.ErrGenerationService, true},
		{"upstream gateway timeout", http.StatusGatewayTimeout, types.ErrGenerationTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, provider := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"message":"upstream says no"}}`))
			})

			_, err := provider.Completion(context.Background(), &ChatRequest{
				Messages: []Message{{Role: RoleUser, Content: "q"}},
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, types.GetErrorCode(err))
			assert.Equal(t, tt.retryable, types.IsRetryable(err))
		})
	}
}

func TestCompletion_TimeoutClassification(t *testing.T) {
	_, provider := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	})

	_, err := provider.Completion(context.Background(), &ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "q"}},
		Timeout:  20 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrGenerationTimeout),
		"deadline 超出必须归类为 GENERATION_TIMEOUT，而非一般服务错误")
}

func TestHealthCheck(t *testing.T) {
	_, provider := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Write([]byte(`{"data":[]}`))
	})

	status, err := provider.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}
