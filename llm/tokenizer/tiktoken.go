package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 基于 tiktoken 的分词器，适配 OpenAI 系模型。
// 编码数据懒加载，首次计数时初始化。
type TiktokenTokenizer struct {
	model     string
	encoding  string
	maxTokens int

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// modelEncodings 将模型名称映射到 tiktoken 编码与上下文大小。
var modelEncodings = map[string]struct {
	encoding  string
	maxTokens int
}{
	"gpt-4o":                 {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4o-mini":            {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4-turbo":            {encoding: "cl100k_base", maxTokens: 128000},
	"gpt-4":                  {encoding: "cl100k_base", maxTokens: 8192},
	"gpt-3.5-turbo":          {encoding: "cl100k_base", maxTokens: 16385},
	"text-embedding-3-large": {encoding: "cl100k_base", maxTokens: 8191},
	"text-embedding-3-small": {encoding: "cl100k_base", maxTokens: 8191},
}

// NewTiktokenTokenizer 为给定模型创建 tiktoken 分词器。
// 未知模型先做前缀匹配，再回落到 cl100k_base。
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	info, ok := modelEncodings[model]
	if !ok {
		for prefix, i := range modelEncodings {
			if strings.HasPrefix(model, prefix) {
				info = i
				ok = true
				break
			}
		}
	}
	if !ok {
		info = struct {
			encoding  string
			maxTokens int
		}{encoding: "cl100k_base", maxTokens: 8192}
	}

	return &TiktokenTokenizer{
		model:     model,
		encoding:  info.encoding,
		maxTokens: info.maxTokens,
	}, nil
}

func (t *TiktokenTokenizer) init() {
	t.once.Do(func() {
		t.enc, t.initErr = tiktoken.GetEncoding(t.encoding)
	})
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	t.init()
	if t.initErr != nil {
		return 0, t.initErr
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) MaxTokens() int { return t.maxTokens }

func (t *TiktokenTokenizer) Name() string { return "tiktoken/" + t.encoding }
