// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 问答流水线指标
	askRequestsTotal *prometheus.CounterVec
	askDuration      *prometheus.HistogramVec
	degradedTotal    prometheus.Counter

	// 缓存指标
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec
	cacheSize      *prometheus.GaugeVec

	// 检索指标
	retrievalDuration *prometheus.HistogramVec
	retrievalPassages prometheus.Histogram

	// 生成指标
	generationRequestsTotal *prometheus.CounterVec
	generationDuration      *prometheus.HistogramVec
	generationTokensUsed    *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 问答流水线指标
	c.askRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ask_requests_total",
			Help:      "Total number of answered questions",
		},
		[]string{"outcome"}, // hit, miss, degraded, error
	)

	c.askDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ask_duration_seconds",
			Help:      "End-to-end question answering duration in seconds",
			Buckets:   []float64{0.005, 0.05, 0.25, 1, 2, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	c.degradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_answers_total",
			Help:      "Total number of answers generated without retrieved context",
		},
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	c.cacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of cache entries removed by expiry or capacity",
		},
		[]string{"cache_type", "reason"}, // reason: expired, capacity, clear
	)

	c.cacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_size",
			Help:      "Current number of cache entries",
		},
		[]string{"cache_type"},
	)

	// 检索指标
	c.retrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Embedding plus vector search duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"}, // ok, error
	)

	c.retrievalPassages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_passages",
			Help:      "Number of passages returned per retrieval",
			Buckets:   []float64{0, 1, 2, 4, 8, 16},
		},
	)

	// 生成指标
	c.generationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "Total number of generation calls",
		},
		[]string{"provider", "model", "status"},
	)

	c.generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Generation call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.generationTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// ❓ 问答流水线指标记录
// =============================================================================

// RecordAsk 记录一次问答请求（outcome: hit/miss/degraded/error）
func (c *Collector) RecordAsk(outcome string, duration time.Duration) {
	c.askRequestsTotal.WithLabelValues(outcome).Inc()
	c.askDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordDegraded 记录一次降级回答
func (c *Collector) RecordDegraded() {
	c.degradedTotal.Inc()
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordCacheEviction 记录缓存驱逐（reason: expired/capacity/clear）
func (c *Collector) RecordCacheEviction(cacheType, reason string, count int) {
	if count <= 0 {
		return
	}
	c.cacheEvictions.WithLabelValues(cacheType, reason).Add(float64(count))
}

// SetCacheSize 更新缓存条目数
func (c *Collector) SetCacheSize(cacheType string, size int) {
	c.cacheSize.WithLabelValues(cacheType).Set(float64(size))
}

// =============================================================================
// 🔍 检索指标记录
// =============================================================================

// RecordRetrieval 记录一次检索
func (c *Collector) RecordRetrieval(status string, duration time.Duration, passages int) {
	c.retrievalDuration.WithLabelValues(status).Observe(duration.Seconds())
	if status == "ok" {
		c.retrievalPassages.Observe(float64(passages))
	}
}

// =============================================================================
// 🤖 生成指标记录
// =============================================================================

// RecordGeneration 记录一次生成调用
func (c *Collector) RecordGeneration(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.generationRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.generationDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.generationTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.generationTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
