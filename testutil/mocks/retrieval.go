// 检索侧的 Mock 实现：检索器与题目上下文源。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/tutorflow/rag"
	"github.com/BaSui01/tutorflow/types"
)

// MockRetriever 是 tutor.Retriever 的模拟实现
type MockRetriever struct {
	mu sync.Mutex

	results []rag.SearchResult
	err     error
	calls   int
}

// NewMockRetriever 创建返回固定结果的检索器
func NewMockRetriever(results ...rag.SearchResult) *MockRetriever {
	return &MockRetriever{results: results}
}

// WithError 设置检索失败
func (m *MockRetriever) WithError(err error) *MockRetriever {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFailure 设置检索失败为 RETRIEVAL_FAILURE 错误
func (m *MockRetriever) WithFailure(msg string) *MockRetriever {
	return m.WithError(types.NewError(types.ErrRetrievalFailure, msg))
}

// CallCount 返回 Retrieve 被调用的次数
func (m *MockRetriever) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockRetriever) Retrieve(ctx context.Context, question string, filter map[string]any) ([]rag.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]rag.SearchResult(nil), m.results...), nil
}

// MapQuestionSource 是 tutor.QuestionContextSource 的内存实现
type MapQuestionSource struct {
	Contexts map[string]string
	Err      error
}

func (s *MapQuestionSource) Resolve(ctx context.Context, questionID string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	qc, ok := s.Contexts[questionID]
	if !ok {
		return "", types.NewErrorf(types.ErrInputValidation, "unknown question %q", questionID)
	}
	return qc, nil
}
