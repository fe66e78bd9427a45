package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OpenAICompatConfig 配置 OpenAI 兼容的生成 Provider。
// 任何实现 /v1/chat/completions 协议的服务均可接入。
type OpenAICompatConfig struct {
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"api_key"`
	Model   string        `json:"model"`   // 默认模型，请求可覆盖
	Timeout time.Duration `json:"timeout"` // HTTP 客户端超时兜底
}

// OpenAICompatProvider 通过 OpenAI 兼容 REST API 实现 Provider。
type OpenAICompatProvider struct {
	cfg    OpenAICompatConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAICompatProvider 创建 OpenAI 兼容 Provider。
func NewOpenAICompatProvider(cfg OpenAICompatConfig, logger *zap.Logger) *OpenAICompatProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &OpenAICompatProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "openai_provider")),
	}
}

func (p *OpenAICompatProvider) Name() string { return "openai-compat" }

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
	User        string          `json:"user,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		FinishReason string        `json:"finish_reason"`
		Message      openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Completion 实现 Provider.Completion。
// req.Timeout 为正时收紧 ctx deadline；deadline 超出归类为超时错误。
func (p *OpenAICompatProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, fmt.Errorf("chat request requires at least one message")
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body := openAIChatRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		User:        req.UserID,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, openAIMessage{Role: string(m.Role), Content: m.Content})
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		// ctx 超时优先于一般网络错误分类
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, ClassifyTransportError(err, p.Name())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ClassifyTransportError(err, p.Name())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractErrorMessage(data)
		p.logger.Warn("generation request rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("model", model))
		return nil, MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, MapHTTPError(resp.StatusCode, "malformed completion payload", p.Name()).WithCause(err)
	}

	out := &ChatResponse{
		ID:        parsed.ID,
		Provider:  p.Name(),
		Model:     parsed.Model,
		CreatedAt: time.Now(),
		Usage: ChatUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}
	for _, c := range parsed.Choices {
		out.Choices = append(out.Choices, ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      Message{Role: Role(c.Message.Role), Content: c.Message.Content},
		})
	}

	p.logger.Debug("completion finished",
		zap.String("model", model),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)))

	return out, nil
}

// HealthCheck 以 GET /models 做轻量探活。
func (p *OpenAICompatProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return &HealthStatus{Healthy: false, Latency: latency, Message: err.Error()}, nil
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	healthy := resp.StatusCode >= 200 && resp.StatusCode < 300
	status := &HealthStatus{Healthy: healthy, Latency: latency}
	if !healthy {
		status.Message = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return status, nil
}

func extractErrorMessage(data []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
