package tutor

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/tutorflow/cache"
	"github.com/BaSui01/tutorflow/internal/metrics"
	"github.com/BaSui01/tutorflow/llm"
	"github.com/BaSui01/tutorflow/llm/retry"
	"github.com/BaSui01/tutorflow/rag"
	"github.com/BaSui01/tutorflow/types"
)

// AskRequest 一次答疑请求。
type AskRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`

	// QuestionID 关联的练习题 ID，可选。设置后会通过
	// QuestionContextSource 解析题干作为提示词上下文。
	QuestionID string `json:"question_id,omitempty"`

	// QuestionContext 直接给出的题目上下文（题干、选项），可选。
	// 与 QuestionID 同时设置时优先使用本字段。
	QuestionContext string `json:"question_context,omitempty"`
}

// Answer 答疑结果。
type Answer struct {
	Answer     string            `json:"answer"`
	Sources    []cache.SourceRef `json:"sources"`
	Confidence float64           `json:"confidence"`
	Cached     bool              `json:"cached"`
	Degraded   bool              `json:"degraded"`
}

// Service 是 API 层依赖的编排器接口。
type Service interface {
	Ask(ctx context.Context, req AskRequest) (*Answer, error)
	CacheStats() cache.Stats
	ClearCache()
	CleanupCache() int
}

// QuestionContextSource 将练习题 ID 解析为题干文本。
// 题库存储是外部协作方，这里只定义契约。
type QuestionContextSource interface {
	Resolve(ctx context.Context, questionID string) (string, error)
}

// Retriever 是编排器依赖的检索契约，由 *rag.Retriever 实现。
type Retriever interface {
	Retrieve(ctx context.Context, question string, filter map[string]any) ([]rag.SearchResult, error)
}

// PromptBuilder 是编排器依赖的提示词组装契约。
type PromptBuilder interface {
	Build(question string, passages []rag.SearchResult, questionContext string) (string, []cache.SourceRef)
}

// Config 编排器配置。
type Config struct {
	// GenerationTimeout 单次生成调用的硬超时。默认 30s。
	GenerationTimeout time.Duration

	// MaxAnswerTokens 生成回答的最大 token 数。默认 1024。
	MaxAnswerTokens int

	// DegradedConfidence 降级回答的固定置信度。默认 0.3。
	DegradedConfidence float64
}

// Orchestrator 按 缓存 → 检索 → 组装 → 生成 → 回填 的顺序处理
// 每个答疑请求。
type Orchestrator struct {
	cfg         Config
	cache       *cache.ResponseCache
	fingerprint *cache.Fingerprinter
	retriever   Retriever
	builder     PromptBuilder
	provider    llm.Provider
	retryer     retry.Retryer
	ctxSource   QuestionContextSource // 可为 nil
	collector   *metrics.Collector    // 可为 nil
	tracer      trace.Tracer
	logger      *zap.Logger

	group singleflight.Group
}

// NewOrchestrator 组装编排器。ctxSource 与 collector 允许为 nil。
func NewOrchestrator(
	cfg Config,
	responseCache *cache.ResponseCache,
	fingerprinter *cache.Fingerprinter,
	retriever Retriever,
	builder PromptBuilder,
	provider llm.Provider,
	retryer retry.Retryer,
	ctxSource QuestionContextSource,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 30 * time.Second
	}
	if cfg.MaxAnswerTokens <= 0 {
		cfg.MaxAnswerTokens = 1024
	}
	if cfg.DegradedConfidence <= 0 {
		cfg.DegradedConfidence = 0.3
	}
	if retryer == nil {
		retryer = retry.NewBackoffRetryer(retry.DefaultPolicy(), logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		cfg:         cfg,
		cache:       responseCache,
		fingerprint: fingerprinter,
		retriever:   retriever,
		builder:     builder,
		provider:    provider,
		retryer:     retryer,
		ctxSource:   ctxSource,
		collector:   collector,
		tracer:      otel.Tracer("tutorflow/tutor"),
		logger:      logger.With(zap.String("component", "orchestrator")),
	}
}

// Ask 回答一个问题。缓存命中直接返回；未命中走完整流水线。
// 输入校验失败返回 INPUT_VALIDATION 错误；检索失败降级为无上下文
// 生成；生成失败经一次有界重试后返回带错误码的失败。
func (o *Orchestrator) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "tutor.Ask")
	defer span.End()

	if strings.TrimSpace(req.UserID) == "" {
		return nil, types.NewError(types.ErrInputValidation, "user_id is required")
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, types.NewError(types.ErrInputValidation, "question is required")
	}

	fp := o.fingerprint.Fingerprint(req.Question, req.QuestionID)
	span.SetAttributes(attribute.String("tutor.fingerprint", fp))

	_, lookupSpan := o.tracer.Start(ctx, "cache.lookup")
	entry, ok := o.cache.Lookup(fp)
	lookupSpan.SetAttributes(attribute.Bool("cache.hit", ok))
	lookupSpan.End()

	if ok {
		o.recordCacheOutcome(true)
		o.recordAsk("hit", start)
		span.SetAttributes(attribute.Bool("tutor.cache_hit", true))

		o.logger.Debug("cache hit",
			zap.String("fingerprint", fp),
			zap.String("user_id", req.UserID),
		)
		return &Answer{
			Answer:     entry.Answer,
			Sources:    entry.Sources,
			Confidence: entry.Confidence,
			Cached:     true,
		}, nil
	}
	o.recordCacheOutcome(false)
	span.SetAttributes(attribute.Bool("tutor.cache_hit", false))

	// 相同指纹的并发未命中合并为一次流水线执行。
	v, err, shared := o.group.Do(fp, func() (any, error) {
		return o.answerMiss(ctx, req, fp)
	})
	if err != nil {
		o.recordAsk("error", start)
		return nil, err
	}

	ans := v.(*Answer)
	if shared {
		// 合并调用共享同一结果，复制一份避免调用方相互干扰。
		cp := *ans
		cp.Sources = append([]cache.SourceRef(nil), ans.Sources...)
		ans = &cp
	}

	if ans.Degraded {
		o.recordAsk("degraded", start)
	} else {
		o.recordAsk("miss", start)
	}
	return ans, nil
}

// answerMiss 执行未命中流水线：检索 → 组装 → 生成 → 回填缓存。
func (o *Orchestrator) answerMiss(ctx context.Context, req AskRequest, fp string) (*Answer, error) {
	questionContext, err := o.resolveQuestionContext(ctx, req)
	if err != nil {
		return nil, err
	}

	passages, degraded := o.retrieve(ctx, req.Question)
	if err := ctx.Err(); err != nil {
		return nil, llm.ClassifyTransportError(err, o.provider.Name())
	}

	prompt, sources := o.builder.Build(req.Question, passages, questionContext)

	answerText, err := o.generate(ctx, req, prompt)
	if err != nil {
		return nil, err
	}

	ans := &Answer{
		Answer:     answerText,
		Sources:    sources,
		Confidence: o.confidence(sources, degraded),
		Degraded:   degraded,
	}
	if degraded {
		ans.Sources = []cache.SourceRef{}
	}

	// 降级回答不回填：条目会在 TTL 内屏蔽后续的正常检索。
	// 请求已取消时也不回填，调用方已放弃该结果。
	if !degraded && ctx.Err() == nil {
		o.cache.Store(fp, &cache.Entry{
			Answer:     ans.Answer,
			Sources:    ans.Sources,
			Confidence: ans.Confidence,
		})
		if o.collector != nil {
			o.collector.SetCacheSize("response", o.cache.Stats().Size)
		}
	}

	return ans, nil
}

// retrieve 执行检索，检索失败（RETRIEVAL_FAILURE）时降级为空段落集。
func (o *Orchestrator) retrieve(ctx context.Context, question string) (passages []rag.SearchResult, degraded bool) {
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "rag.retrieve")
	defer span.End()

	results, err := o.retriever.Retrieve(ctx, question, nil)
	if err != nil {
		if o.collector != nil {
			o.collector.RecordRetrieval("error", time.Since(start), 0)
		}
		if ctx.Err() != nil {
			// 请求已取消，answerMiss 中的 ctx 检查会终止流水线。
			return nil, false
		}
		o.logger.Warn("retrieval failed, degrading to no-context generation",
			zap.String("code", string(types.GetErrorCode(err))),
			zap.Error(err),
		)
		if o.collector != nil {
			o.collector.RecordDegraded()
		}
		return nil, true
	}

	if o.collector != nil {
		o.collector.RecordRetrieval("ok", time.Since(start), len(results))
	}
	span.SetAttributes(attribute.Int("rag.passages", len(results)))
	return results, false
}

// generate 调用生成模型，失败时按策略重试一次。
func (o *Orchestrator) generate(ctx context.Context, req AskRequest, prompt string) (string, error) {
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "llm.generate")
	defer span.End()

	chatReq := &llm.ChatRequest{
		UserID: req.UserID,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens: o.cfg.MaxAnswerTokens,
		Timeout:   o.cfg.GenerationTimeout,
	}

	var answer string
	err := o.retryer.Do(ctx, func() error {
		resp, err := o.provider.Completion(ctx, chatReq)
		if err != nil {
			return err
		}

		text, err := llm.AnswerText(resp)
		if err != nil {
			return err
		}
		answer = text

		if o.collector != nil {
			o.collector.RecordGeneration(o.provider.Name(), resp.Model, "ok",
				time.Since(start), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		}
		return nil
	})
	if err != nil {
		if o.collector != nil {
			o.collector.RecordGeneration(o.provider.Name(), chatReq.Model, "error", time.Since(start), 0, 0)
		}
		o.logger.Error("generation failed",
			zap.String("user_id", req.UserID),
			zap.String("code", string(types.GetErrorCode(err))),
			zap.Error(err),
		)
		return "", err
	}

	return answer, nil
}

// resolveQuestionContext 取题目上下文：显式字段优先，其次按 ID 解析。
// 解析失败只降级为无上下文，不使整个请求失败。
func (o *Orchestrator) resolveQuestionContext(ctx context.Context, req AskRequest) (string, error) {
	if qc := strings.TrimSpace(req.QuestionContext); qc != "" {
		return qc, nil
	}
	if req.QuestionID == "" || o.ctxSource == nil {
		return "", nil
	}

	qc, err := o.ctxSource.Resolve(ctx, req.QuestionID)
	if err != nil {
		if ctx.Err() != nil {
			return "", llm.ClassifyTransportError(ctx.Err(), "question-context")
		}
		o.logger.Warn("question context unavailable",
			zap.String("question_id", req.QuestionID),
			zap.Error(err),
		)
		return "", nil
	}
	return qc, nil
}

// confidence 由检索相似度推导置信度：取各来源分数裁剪到 [0,1] 后的
// 均值；降级时使用固定的低置信度。
func (o *Orchestrator) confidence(sources []cache.SourceRef, degraded bool) float64 {
	if degraded || len(sources) == 0 {
		return o.cfg.DegradedConfidence
	}

	var sum float64
	for _, s := range sources {
		score := s.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		sum += score
	}
	return sum / float64(len(sources))
}

// CacheStats 返回响应缓存当前统计。
func (o *Orchestrator) CacheStats() cache.Stats {
	return o.cache.Stats()
}

// ClearCache 清空响应缓存，命中/未命中计数保留。
func (o *Orchestrator) ClearCache() {
	o.cache.Clear()
	if o.collector != nil {
		stats := o.cache.Stats()
		o.collector.SetCacheSize("response", stats.Size)
		o.collector.RecordCacheEviction("response", "clear", 1)
	}
	o.logger.Info("response cache cleared")
}

// CleanupCache 立即清理过期条目，返回清理数量。
func (o *Orchestrator) CleanupCache() int {
	removed := o.cache.Cleanup()
	if o.collector != nil {
		o.collector.RecordCacheEviction("response", "expired", removed)
		o.collector.SetCacheSize("response", o.cache.Stats().Size)
	}
	if removed > 0 {
		o.logger.Info("expired cache entries removed", zap.Int("count", removed))
	}
	return removed
}

func (o *Orchestrator) recordCacheOutcome(hit bool) {
	if o.collector == nil {
		return
	}
	if hit {
		o.collector.RecordCacheHit("response")
	} else {
		o.collector.RecordCacheMiss("response")
	}
}

func (o *Orchestrator) recordAsk(outcome string, start time.Time) {
	if o.collector != nil {
		o.collector.RecordAsk(outcome, time.Since(start))
	}
}
