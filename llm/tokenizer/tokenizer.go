package tokenizer

// Tokenizer 是统一的 token 计数接口。
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数。
	CountTokens(text string) (int, error)

	// MaxTokens 返回模型的最大上下文长度。
	MaxTokens() int

	// Name 返回分词器的名称。
	Name() string
}

// ForModel 返回给定模型的分词器：优先 tiktoken，初始化失败时
// 回落到字符估算器。
func ForModel(model string) Tokenizer {
	tok, err := NewTiktokenTokenizer(model)
	if err != nil {
		return NewEstimatorTokenizer(model, 0)
	}
	return tok
}
