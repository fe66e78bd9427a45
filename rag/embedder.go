package rag

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

	"github.com/BaSui01/tutorflow/types"
)

// Embedder converts a question into a dense vector for similarity search.
type Embedder interface {
	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float64, error)

	// Dimensions returns the dimensionality of produced vectors.
	Dimensions() int

	// Name returns an identifier used in logs and error messages.
	Name() string
}

// OpenAIEmbedderConfig configures the OpenAI-compatible embedding client.
type OpenAIEmbedderConfig struct {
	BaseURL    string        `json:"base_url,omitempty"` // Default: https://api.openai.com/v1
	APIKey     string        `json:"api_key"`
	Model      string        `json:"model,omitempty"` // Default: text-embedding-3-small
	Dimensions int           `json:"dimensions,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	cfg    OpenAIEmbedderConfig
	logger *zap.Logger
	client *http.Client
}

// NewOpenAIEmbedder creates an embedding client.
func NewOpenAIEmbedder(cfg OpenAIEmbedderConfig, logger *zap.Logger) *OpenAIEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 1536
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &OpenAIEmbedder{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "openai_embedder")),
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (e *OpenAIEmbedder) Name() string    { return "openai-embedder/" + e.cfg.Model }
func (e *OpenAIEmbedder) Dimensions() int { return e.cfg.Dimensions }

func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.NewError(types.ErrRetrievalFailure, "embedding input is empty")
	}

	reqBody := struct {
		Input string `json:"input"`
		Model string `json:"model"`
	}{
		Input: text,
		Model: e.cfg.Model,
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, types.NewError(types.ErrRetrievalFailure, "marshal embedding request").WithCause(err)
	}

	endpoint := strings.TrimRight(e.cfg.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, types.NewError(types.ErrRetrievalFailure, "build embedding request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrRetrievalFailure, "embedding service unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, types.NewErrorf(types.ErrRetrievalFailure,
			"embedding request failed: status=%d body=%s", resp.StatusCode, string(raw)).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}

	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.NewError(types.ErrRetrievalFailure, "decode embedding response").WithCause(err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, types.NewError(types.ErrRetrievalFailure, "embedding response contains no vectors")
	}

	vec := out.Data[0].Embedding
	if len(vec) != e.cfg.Dimensions {
		return nil, types.NewError(types.ErrRetrievalFailure,
			fmt.Sprintf("embedding has %d dimensions, expected %d", len(vec), e.cfg.Dimensions))
	}
	return vec, nil
}
