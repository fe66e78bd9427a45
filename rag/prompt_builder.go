package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/BaSui01/tutorflow/cache"
	"github.com/BaSui01/tutorflow/llm/tokenizer"
)

// PromptBuilderConfig configures prompt assembly.
type PromptBuilderConfig struct {
	// MaxPromptTokens bounds the assembled prompt. Default: 3000.
	MaxPromptTokens int `json:"max_prompt_tokens,omitempty"`

	// ExcerptRunes bounds the per-source excerpt length reported back
	// to callers. Default: 200.
	ExcerptRunes int `json:"excerpt_runes,omitempty"`
}

// PromptBuilder assembles the generation prompt from the question,
// ranked passages, and optional practice-question context.
//
// Passages are included in rank order until the token budget runs out.
// A passage that does not fit entirely is dropped, never cut mid-passage.
type PromptBuilder struct {
	tok          tokenizer.Tokenizer
	fallback     tokenizer.Tokenizer
	maxTokens    int
	excerptRunes int
	logger       *zap.Logger
}

// NewPromptBuilder creates a builder counting tokens with the given
// tokenizer (use tokenizer.ForModel to match the generation model).
func NewPromptBuilder(tok tokenizer.Tokenizer, cfg PromptBuilderConfig, logger *zap.Logger) *PromptBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxTokens := cfg.MaxPromptTokens
	if maxTokens <= 0 {
		maxTokens = 3000
	}
	excerptRunes := cfg.ExcerptRunes
	if excerptRunes <= 0 {
		excerptRunes = 200
	}

	return &PromptBuilder{
		tok:          tok,
		fallback:     tokenizer.NewEstimatorTokenizer("", 0),
		maxTokens:    maxTokens,
		excerptRunes: excerptRunes,
		logger:       logger.With(zap.String("component", "prompt_builder")),
	}
}

func (b *PromptBuilder) count(text string) int {
	n, err := b.tok.CountTokens(text)
	if err != nil {
		n, _ = b.fallback.CountTokens(text)
	}
	return n
}

const promptInstruction = "You are a helpful tutor. Answer the student's question using the reference material below. " +
	"If the material does not cover the question, answer from general knowledge and say so."

// Build assembles the prompt and returns it together with the sources
// actually included, in the same order they appear in the prompt.
// Deterministic for identical inputs.
func (b *PromptBuilder) Build(question string, passages []SearchResult, questionContext string) (string, []cache.SourceRef) {
	var sb strings.Builder
	sb.WriteString(promptInstruction)
	sb.WriteString("\n\n")

	if qc := strings.TrimSpace(questionContext); qc != "" {
		sb.WriteString("Practice question context:\n")
		sb.WriteString(qc)
		sb.WriteString("\n\n")
	}

	footer := fmt.Sprintf("\nStudent's question: %s\n", question)

	budget := b.maxTokens - b.count(sb.String()) - b.count(footer)

	included := make([]cache.SourceRef, 0, len(passages))
	if len(passages) > 0 && budget > 0 {
		header := "Reference material:\n"
		headerTokens := b.count(header)
		wroteHeader := false

		for i, p := range passages {
			text := strings.TrimSpace(p.Document.Content)
			if text == "" {
				continue
			}
			block := fmt.Sprintf("[%d] %s\n\n", i+1, text)

			cost := b.count(block)
			if !wroteHeader {
				cost += headerTokens
			}
			if cost > budget {
				// Tail-drop: this and all lower-ranked passages are out.
				b.logger.Debug("prompt budget reached",
					zap.Int("included", len(included)),
					zap.Int("dropped", len(passages)-i),
				)
				break
			}

			if !wroteHeader {
				sb.WriteString(header)
				budget -= headerTokens
				wroteHeader = true
			}
			sb.WriteString(block)
			budget -= b.count(block)

			included = append(included, cache.SourceRef{
				ID:      p.Document.ID,
				Score:   p.Score,
				Excerpt: excerpt(text, b.excerptRunes),
			})
		}
	}

	sb.WriteString(footer)
	return sb.String(), included
}

// excerpt returns the leading maxRunes runes of text, never splitting a
// multi-byte character.
func excerpt(text string, maxRunes int) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes])
}
