// MockProvider 的生成模型测试模拟实现。
//
// 支持固定响应、延迟与错误注入场景。
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/tutorflow/llm"
)

// MockProvider 是 llm.Provider 的模拟实现
type MockProvider struct {
	mu sync.Mutex

	// 响应配置
	response string
	err      error

	// Token 使用统计
	promptTokens     int
	completionTokens int

	// 行为控制
	delay     time.Duration // 模拟延迟
	failFirst int           // 前 N 次调用失败，之后成功

	// 调用记录
	calls []llm.ChatRequest

	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)
}

// NewMockProvider 创建新的 MockProvider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		response:         "Mock response",
		promptTokens:     10,
		completionTokens: 20,
	}
}

// WithResponse 设置固定响应内容
func (m *MockProvider) WithResponse(response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithError 设置返回错误
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay 设置每次调用的模拟延迟
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithFailFirst 设置前 N 次调用失败（需配合 WithError）
func (m *MockProvider) WithFailFirst(n int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFirst = n
	return m
}

// WithCompletionFunc 完全自定义响应逻辑
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFunc = fn
	return m
}

// CallCount 返回 Completion 被调用的次数
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls 返回全部调用记录的副本
func (m *MockProvider) Calls() []llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.ChatRequest(nil), m.calls...)
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, *req)
	callNum := len(m.calls)
	response := m.response
	err := m.err
	delay := m.delay
	failFirst := m.failFirst
	fn := m.completionFunc
	promptTokens := m.promptTokens
	completionTokens := m.completionTokens
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err != nil && (failFirst == 0 || callNum <= failFirst) {
		return nil, err
	}

	return &llm.ChatResponse{
		Model: req.Model,
		Choices: []llm.ChatChoice{
			{Message: llm.Message{Role: llm.RoleAssistant, Content: response}},
		},
		Usage: llm.ChatUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
		CreatedAt: time.Now(),
	}, nil
}

func (m *MockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}
