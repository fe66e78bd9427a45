package handlers

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/tutorflow/tutor"
	"github.com/BaSui01/tutorflow/types"
)

// =============================================================================
// 💾 缓存运维 Handler
// =============================================================================

// CacheHandler 缓存运维处理器
type CacheHandler struct {
	svc    tutor.Service
	logger *zap.Logger
}

// CacheCleanupResponse 过期清理结果
type CacheCleanupResponse struct {
	Removed int `json:"removed"`
}

// CacheActionRequest 缓存运维动作请求体
type CacheActionRequest struct {
	Action string `json:"action"` // "clear" 或 "cleanup"
}

// CacheClearResponse 清空结果
type CacheClearResponse struct {
	Cleared bool `json:"cleared"`
}

// NewCacheHandler 创建缓存运维处理器
func NewCacheHandler(svc tutor.Service, logger *zap.Logger) *CacheHandler {
	return &CacheHandler{
		svc:    svc,
		logger: logger.With(zap.String("component", "cache_handler")),
	}
}

// HandleStats 返回缓存统计
// @Summary 缓存统计
// @Description 返回命中/未命中计数、命中率与当前容量
// @Tags 缓存
// @Produce json
// @Success 200 {object} Response{data=cache.Stats} "统计信息"
// @Router /api/v1/cache/stats [get]
func (h *CacheHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.svc.CacheStats())
}

// HandleClear 清空缓存
// @Summary 清空缓存
// @Description 移除全部条目，命中/未命中计数保留
// @Tags 缓存
// @Produce json
// @Success 200 {object} Response{data=cache.Stats} "清空后的统计"
// @Router /api/v1/cache/clear [post]
func (h *CacheHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearCache()
	h.logger.Info("cache cleared via API")
	WriteSuccess(w, h.svc.CacheStats())
}

// HandleAction 按动作分发缓存运维操作
// @Summary 缓存运维动作
// @Description action=clear 清空缓存；action=cleanup 清理过期条目；其余动作返回 400
// @Tags 缓存
// @Accept json
// @Produce json
// @Param request body CacheActionRequest true "动作"
// @Success 200 {object} Response "执行结果"
// @Failure 400 {object} Response "未知动作"
// @Router /api/v1/cache [post]
func (h *CacheHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	var req CacheActionRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	switch req.Action {
	case "clear":
		h.svc.ClearCache()
		h.logger.Info("cache cleared via API")
		WriteSuccess(w, CacheClearResponse{Cleared: true})
	case "cleanup":
		WriteSuccess(w, CacheCleanupResponse{Removed: h.svc.CleanupCache()})
	default:
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInputValidation,
			fmt.Sprintf("unknown cache action: %q", req.Action), h.logger)
	}
}

// HandleCleanup 立即清理过期条目
// @Summary 清理过期条目
// @Description 同步执行一次过期扫描，返回清理数量
// @Tags 缓存
// @Produce json
// @Success 200 {object} Response{data=CacheCleanupResponse} "清理结果"
// @Router /api/v1/cache/cleanup [post]
func (h *CacheHandler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	removed := h.svc.CleanupCache()
	WriteSuccess(w, CacheCleanupResponse{Removed: removed})
}
