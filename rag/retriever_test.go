package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/tutorflow/types"
)

// fakeEmbedder maps known texts onto fixed vectors.
type fakeEmbedder struct {
	dims    int
	vectors map[string][]float64
	err     error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	v := make([]float64, f.dims)
	v[0] = 1
	return v, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }
func (f *fakeEmbedder) Name() string    { return "fake-embedder" }

func TestNewRetriever_DimensionMismatchRejected(t *testing.T) {
	emb := &fakeEmbedder{dims: 5}
	idx := NewMemoryIndex(3)

	_, err := NewRetriever(emb, idx, RetrieverConfig{}, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrRetrievalFailure, types.GetErrorCode(err))
}

func TestRetriever_Retrieve(t *testing.T) {
	idx := seedIndex(t)
	emb := &fakeEmbedder{dims: 3, vectors: map[string][]float64{
		"vocab question": {1, 0, 0},
	}}

	r, err := NewRetriever(emb, idx, RetrieverConfig{TopK: 2}, nil)
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "vocab question", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Document.ID)
}

func TestRetriever_EmbeddingFailurePropagates(t *testing.T) {
	idx := seedIndex(t)
	emb := &fakeEmbedder{dims: 3, err: types.NewError(types.ErrRetrievalFailure, "embedding service down")}

	r, err := NewRetriever(emb, idx, RetrieverConfig{}, nil)
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "question", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrRetrievalFailure, types.GetErrorCode(err))
}

func TestRetriever_EmptyFilterNormalized(t *testing.T) {
	idx := seedIndex(t)
	emb := &fakeEmbedder{dims: 3, vectors: map[string][]float64{
		"q": {1, 0, 0},
	}}

	r, err := NewRetriever(emb, idx, RetrieverConfig{TopK: 10}, nil)
	require.NoError(t, err)

	withNil, err := r.Retrieve(context.Background(), "q", nil)
	require.NoError(t, err)
	withEmpty, err := r.Retrieve(context.Background(), "q", map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, withNil, withEmpty)
}
