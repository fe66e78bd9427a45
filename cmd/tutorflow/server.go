package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/tutorflow/api/handlers"
	"github.com/BaSui01/tutorflow/cache"
	"github.com/BaSui01/tutorflow/config"
	"github.com/BaSui01/tutorflow/internal/metrics"
	"github.com/BaSui01/tutorflow/internal/server"
	"github.com/BaSui01/tutorflow/internal/telemetry"
	"github.com/BaSui01/tutorflow/llm"
	"github.com/BaSui01/tutorflow/llm/retry"
	"github.com/BaSui01/tutorflow/llm/tokenizer"
	"github.com/BaSui01/tutorflow/rag"
	"github.com/BaSui01/tutorflow/tutor"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 TutorFlow 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	// 核心协作对象
	responseCache    *cache.ResponseCache
	sweeper          *cache.Sweeper
	orchestrator     *tutor.Orchestrator
	provider         llm.Provider
	vectorIndex      rag.VectorIndex
	metricsCollector *metrics.Collector

	// Handlers
	healthHandler *handlers.HealthHandler
	askHandler    *handlers.AskHandler
	cacheHandler  *handlers.CacheHandler

	// 遥测与限流生命周期
	otelProviders     *telemetry.Providers
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: otelProviders,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("tutorflow", s.logger)

	// 2. 组装答疑流水线
	if err := s.initPipeline(); err != nil {
		return fmt.Errorf("failed to init pipeline: %w", err)
	}

	// 3. 初始化 Handlers
	s.initHandlers()

	// 4. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 5. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("vector_backend", s.cfg.Vector.Backend),
	)

	return nil
}

// =============================================================================
// 🔧 流水线组装
// =============================================================================

// initPipeline 构建 缓存 → 检索 → 组装 → 生成 的完整依赖链
func (s *Server) initPipeline() error {
	// 响应缓存与后台清理
	responseCache, err := cache.New(cache.Config{
		TTL:     s.cfg.Cache.TTL,
		MaxSize: s.cfg.Cache.MaxSize,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("create response cache: %w", err)
	}
	s.responseCache = responseCache

	if s.cfg.Cache.SweepInterval > 0 {
		s.sweeper = cache.NewSweeper(responseCache, s.cfg.Cache.SweepInterval, s.logger)
		s.sweeper.Start()
	}

	// 嵌入服务
	embedder := rag.NewOpenAIEmbedder(rag.OpenAIEmbedderConfig{
		BaseURL:    s.cfg.Embedding.BaseURL,
		APIKey:     s.cfg.Embedding.APIKey,
		Model:      s.cfg.Embedding.Model,
		Dimensions: s.cfg.Embedding.Dimensions,
		Timeout:    s.cfg.Embedding.Timeout,
	}, s.logger)

	// 向量索引后端
	index, err := s.buildVectorIndex()
	if err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	s.vectorIndex = index

	// 检索器
	retriever, err := rag.NewRetriever(embedder, index, rag.RetrieverConfig{
		TopK: s.cfg.RAG.TopK,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("create retriever: %w", err)
	}

	// 提示词组装器
	builder := rag.NewPromptBuilder(tokenizer.ForModel(s.cfg.LLM.Model), rag.PromptBuilderConfig{
		MaxPromptTokens: s.cfg.RAG.MaxPromptTokens,
	}, s.logger)

	// 生成 Provider
	s.provider = llm.NewOpenAICompatProvider(llm.OpenAICompatConfig{
		BaseURL: s.cfg.LLM.BaseURL,
		APIKey:  s.cfg.LLM.APIKey,
		Model:   s.cfg.LLM.Model,
		Timeout: s.cfg.LLM.Timeout,
	}, s.logger)

	// 重试策略
	policy := retry.DefaultPolicy()
	policy.MaxRetries = s.cfg.LLM.MaxRetries
	retryer := retry.NewBackoffRetryer(policy, s.logger)

	// 编排器
	s.orchestrator = tutor.NewOrchestrator(
		tutor.Config{
			GenerationTimeout: s.cfg.LLM.Timeout,
			MaxAnswerTokens:   s.cfg.LLM.MaxAnswerTokens,
		},
		responseCache,
		cache.NewFingerprinter(s.cfg.LLM.Model),
		retriever,
		builder,
		s.provider,
		retryer,
		nil, // 练习题上下文源：按需注入
		s.metricsCollector,
		s.logger,
	)

	return nil
}

// buildVectorIndex 根据配置选择向量索引后端
func (s *Server) buildVectorIndex() (rag.VectorIndex, error) {
	switch s.cfg.Vector.Backend {
	case "pinecone":
		return rag.NewPineconeIndex(rag.PineconeConfig{
			APIKey:     s.cfg.Vector.Pinecone.APIKey,
			Index:      s.cfg.Vector.Pinecone.Index,
			BaseURL:    s.cfg.Vector.Pinecone.BaseURL,
			Namespace:  s.cfg.Vector.Pinecone.Namespace,
			Timeout:    s.cfg.Vector.Pinecone.Timeout,
			Dimensions: s.cfg.Embedding.Dimensions,
		}, s.logger)
	case "memory", "":
		return rag.NewMemoryIndex(s.cfg.Embedding.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported vector backend: %s", s.cfg.Vector.Backend)
	}
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.askHandler = handlers.NewAskHandler(s.orchestrator, s.logger)
	s.cacheHandler = handlers.NewCacheHandler(s.orchestrator, s.logger)

	// 就绪检查：向量索引可达 + 生成服务可达
	s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("vector_index", func(ctx context.Context) error {
		_, err := s.vectorIndex.Count(ctx)
		return err
	}))
	s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("llm_provider", func(ctx context.Context) error {
		_, err := s.provider.HealthCheck(ctx)
		return err
	}))
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// API 路由
	mux.HandleFunc("/api/v1/ask", requirePost(s.askHandler.HandleAsk))
	mux.HandleFunc("/api/v1/cache", requirePost(s.cacheHandler.HandleAction))
	mux.HandleFunc("/api/v1/cache/stats", s.cacheHandler.HandleStats)
	mux.HandleFunc("/api/v1/cache/clear", requirePost(s.cacheHandler.HandleClear))
	mux.HandleFunc("/api/v1/cache/cleanup", requirePost(s.cacheHandler.HandleCleanup))

	// 中间件链
	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		OTelTracing(),
		MetricsMiddleware(s.metricsCollector),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKey, skipAuthPaths, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// requirePost 只放行 POST 方法
func requirePost(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 0. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 停止缓存后台清理
	if s.sweeper != nil {
		s.sweeper.Stop()
	}

	// 2. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 4. 关闭遥测
	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
