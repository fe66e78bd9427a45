package rag

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/tutorflow/types"
)

// RetrieverConfig configures the embed-then-search combiner.
type RetrieverConfig struct {
	TopK int `json:"top_k,omitempty"` // Default: 4
}

// Retriever embeds a question and searches the vector index for
// relevant course material.
type Retriever struct {
	embedder Embedder
	index    VectorIndex
	topK     int
	logger   *zap.Logger
}

// NewRetriever wires an embedder to a vector index. The embedder's output
// dimensionality must match what the index expects; the mismatch is
// rejected here rather than surfacing as a failed search later.
func NewRetriever(embedder Embedder, index VectorIndex, cfg RetrieverConfig, logger *zap.Logger) (*Retriever, error) {
	if embedder == nil {
		return nil, types.NewError(types.ErrRetrievalFailure, "embedder is required")
	}
	if index == nil {
		return nil, types.NewError(types.ErrRetrievalFailure, "vector index is required")
	}
	if embedder.Dimensions() != index.Dimensions() {
		return nil, types.NewErrorf(types.ErrRetrievalFailure,
			"embedder %q produces %d dimensions, index expects %d",
			embedder.Name(), embedder.Dimensions(), index.Dimensions())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 4
	}

	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		logger:   logger.With(zap.String("component", "retriever")),
	}, nil
}

// Retrieve embeds the question and returns the topK most similar
// passages. filter restricts the search by metadata equality; an empty
// map is treated as no filter.
func (r *Retriever) Retrieve(ctx context.Context, question string, filter map[string]any) ([]SearchResult, error) {
	start := time.Now()

	vec, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		r.logger.Warn("embedding failed", zap.Error(err))
		return nil, err
	}

	if len(filter) == 0 {
		filter = nil
	}

	results, err := r.index.Search(ctx, vec, r.topK, filter)
	if err != nil {
		r.logger.Warn("vector search failed", zap.Error(err))
		return nil, err
	}

	r.logger.Debug("retrieval completed",
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}
