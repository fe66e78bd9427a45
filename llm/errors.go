package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/BaSui01/tutorflow/types"
)

// ClassifyTransportError 将传输层错误归入生成错误分类。
// context 超时归为 GENERATION_TIMEOUT，其余网络错误归为
// GENERATION_SERVICE（可重试）。
func ClassifyTransportError(err error, provider string) *types.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrGenerationTimeout, "generation call exceeded deadline").
			WithHTTPStatus(http.StatusGatewayTimeout).
			WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return types.NewError(types.ErrGenerationService, "generation call canceled").
			WithCause(err)
	}
	return types.NewError(types.ErrGenerationService, "generation request failed: "+provider).
		WithHTTPStatus(http.StatusBadGateway).
		WithRetryable(true).
		WithCause(err)
}

// MapHTTPError 将上游 HTTP 状态映射为生成服务错误。
// 429 与 5xx 可重试，4xx 不可重试。
func MapHTTPError(status int, msg string, provider string) *types.Error {
	e := types.NewErrorf(types.ErrGenerationService, "%s: %s", provider, msg).
		WithHTTPStatus(status)

	switch {
	case status == http.StatusTooManyRequests:
		return e.WithRetryable(true)
	case status == http.StatusGatewayTimeout:
		return types.NewErrorf(types.ErrGenerationTimeout, "%s: %s", provider, msg).
			WithHTTPStatus(status).
			WithRetryable(true)
	case status >= 500:
		return e.WithRetryable(true)
	default:
		return e
	}
}
