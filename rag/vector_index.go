package rag

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/BaSui01/tutorflow/types"
)

// VectorIndex is the storage abstraction for similarity search over
// course-material embeddings.
type VectorIndex interface {
	// Search returns up to topK documents ranked by similarity to the
	// query vector. filter restricts results to documents whose metadata
	// matches every key/value pair; nil or empty means no restriction.
	Search(ctx context.Context, vector []float64, topK int, filter map[string]any) ([]SearchResult, error)

	// Upsert inserts or replaces documents by ID.
	Upsert(ctx context.Context, docs []Document) error

	// Delete removes documents by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)

	// Dimensions returns the embedding dimensionality the index expects.
	Dimensions() int
}

// MemoryIndex is an in-process VectorIndex using exact cosine similarity.
// Suitable for tests and small corpora.
type MemoryIndex struct {
	dims int

	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryIndex creates an in-memory index for vectors of the given
// dimensionality.
func NewMemoryIndex(dims int) *MemoryIndex {
	return &MemoryIndex{
		dims: dims,
		docs: make(map[string]Document),
	}
}

func (m *MemoryIndex) Dimensions() int { return m.dims }

func (m *MemoryIndex) Upsert(ctx context.Context, docs []Document) error {
	for i, doc := range docs {
		if doc.ID == "" {
			return types.NewErrorf(types.ErrRetrievalFailure, "document[%d] has empty id", i)
		}
		if len(doc.Embedding) != m.dims {
			return types.NewErrorf(types.ErrRetrievalFailure,
				"document %q embedding has %d dimensions, index expects %d", doc.ID, len(doc.Embedding), m.dims)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		m.docs[doc.ID] = doc
	}
	return nil
}

func (m *MemoryIndex) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.docs, id)
	}
	return nil
}

func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

func (m *MemoryIndex) Search(ctx context.Context, vector []float64, topK int, filter map[string]any) ([]SearchResult, error) {
	if topK <= 0 {
		return []SearchResult{}, nil
	}
	if len(vector) != m.dims {
		return nil, types.NewErrorf(types.ErrRetrievalFailure,
			"query vector has %d dimensions, index expects %d", len(vector), m.dims)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]SearchResult, 0, len(m.docs))
	for _, doc := range m.docs {
		if !matchesFilter(doc.Metadata, filter) {
			continue
		}
		score := cosineSimilarity(vector, doc.Embedding)
		results = append(results, SearchResult{Document: doc, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// matchesFilter applies exact-equality metadata filtering.
func matchesFilter(metadata, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
