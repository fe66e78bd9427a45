package rag

// Document is a unit of indexed course material.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Embedding []float64      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SearchResult is a document matched by a similarity search.
type SearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}
