package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/tutorflow/cache"
	"github.com/BaSui01/tutorflow/tutor"
	"github.com/BaSui01/tutorflow/types"
)

// =============================================================================
// ❓ 答疑 Handler
// =============================================================================

// AskHandler 答疑请求处理器
type AskHandler struct {
	svc    tutor.Service
	logger *zap.Logger
}

// AskRequest 答疑请求体
type AskRequest struct {
	UserID          string `json:"user_id"`
	Question        string `json:"question"`
	QuestionID      string `json:"question_id,omitempty"`
	QuestionContext string `json:"question_context,omitempty"`
}

// AskResponse 答疑响应体
type AskResponse struct {
	Answer     string            `json:"answer"`
	Sources    []cache.SourceRef `json:"sources"`
	Confidence float64           `json:"confidence"`
	Cached     bool              `json:"cached"`
	Degraded   bool              `json:"degraded"`
}

// NewAskHandler 创建答疑处理器
func NewAskHandler(svc tutor.Service, logger *zap.Logger) *AskHandler {
	return &AskHandler{
		svc:    svc,
		logger: logger.With(zap.String("component", "ask_handler")),
	}
}

// HandleAsk 处理答疑请求
// @Summary 提问
// @Description 回答学生问题，优先命中缓存，未命中走检索增强生成
// @Tags 答疑
// @Accept json
// @Produce json
// @Param request body AskRequest true "答疑请求"
// @Success 200 {object} Response{data=AskResponse} "回答"
// @Failure 400 {object} Response "请求无效"
// @Failure 502 {object} Response "生成失败"
// @Failure 504 {object} Response "生成超时"
// @Router /api/v1/ask [post]
func (h *AskHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Question) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInputValidation,
			"user_id and question are required", h.logger)
		return
	}

	ans, err := h.svc.Ask(r.Context(), tutor.AskRequest{
		UserID:          req.UserID,
		Question:        req.Question,
		QuestionID:      req.QuestionID,
		QuestionContext: req.QuestionContext,
	})
	if err != nil {
		WriteError(w, sanitizePipelineError(err), h.logger)
		return
	}

	resp := AskResponse{
		Answer:     ans.Answer,
		Sources:    ans.Sources,
		Confidence: ans.Confidence,
		Cached:     ans.Cached,
		Degraded:   ans.Degraded,
	}
	if resp.Sources == nil {
		resp.Sources = []cache.SourceRef{}
	}

	WriteSuccess(w, resp)
}

// sanitizePipelineError 将流水线错误翻译为对外安全的错误：
// 保留错误码与可重试标记，但生成侧的上游错误文本不透出。
func sanitizePipelineError(err error) *types.Error {
	var tErr *types.Error
	if !errors.As(err, &tErr) {
		return types.NewError(types.ErrInternalError, "internal error").WithCause(err)
	}

	switch tErr.Code {
	case types.ErrInputValidation:
		return tErr
	case types.ErrGenerationTimeout:
		return types.NewError(types.ErrGenerationTimeout, "answer generation timed out, please retry").
			WithRetryable(true).WithCause(err)
	case types.ErrGenerationService, types.ErrGenerationParse:
		return types.NewError(tErr.Code, "answer generation failed, please retry").
			WithRetryable(tErr.Retryable).WithCause(err)
	default:
		return types.NewError(tErr.Code, "request could not be completed").
			WithRetryable(tErr.Retryable).WithCause(err)
	}
}
