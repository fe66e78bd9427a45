package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprinter 生成响应缓存的指纹键。
//
// 指纹由规范化后的问题文本、可选的上下文标识（通常为练习题 ID）
// 与模型标签共同决定：同一问题挂接不同练习题时产生不同指纹，
// 切换模型后旧缓存自然失效。
//
// 指纹是全局作用域的：userId 不参与指纹计算，相同问题跨用户共享
// 缓存答案（知识库答案不含用户私有数据）。
type Fingerprinter struct {
	modelTag string
}

// NewFingerprinter 创建指纹生成器。modelTag 标识生成模型及其版本。
func NewFingerprinter(modelTag string) *Fingerprinter {
	return &Fingerprinter{modelTag: modelTag}
}

// Fingerprint 返回确定性的 64 位十六进制缓存键。
// contextID 为空表示自由提问，不挂接任何练习题。
func (f *Fingerprinter) Fingerprint(question, contextID string) string {
	normalized := NormalizeQuestion(question)

	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(contextID))
	h.Write([]byte{0})
	h.Write([]byte(f.modelTag))

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// NormalizeQuestion 规范化问题文本：trim、小写、折叠空白。
// 仅字节级规范化，措辞不同但语义相同的问题不会合并。
func NormalizeQuestion(question string) string {
	fields := strings.Fields(strings.ToLower(question))
	return strings.Join(fields, " ")
}
