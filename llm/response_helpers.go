package llm

import (
	"strings"

	"github.com/BaSui01/tutorflow/types"
)

// FirstChoice safely returns the first choice from a ChatResponse.
// Returns an error if the response is nil or has no choices.
func FirstChoice(resp *ChatResponse) (ChatChoice, error) {
	if resp == nil {
		return ChatChoice{}, types.NewError(types.ErrGenerationService, "nil ChatResponse")
	}
	if len(resp.Choices) == 0 {
		return ChatChoice{}, types.NewError(types.ErrGenerationService, "model returned no choices")
	}
	return resp.Choices[0], nil
}

// AnswerText 返回首个 choice 的文本内容；空响应或空文本报错。
func AnswerText(resp *ChatResponse) (string, error) {
	choice, err := FirstChoice(resp)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", types.NewError(types.ErrGenerationService, "model returned empty answer")
	}
	return text, nil
}

// ExtractJSON 从模型输出中提取 JSON 文本。
//
// 已观测到的失败模式：模型把 JSON 包在 ```json 代码栅栏或说明性
// 文字里。本函数剥离栅栏与前后缀文字，返回首个完整的 JSON 对象或
// 数组；找不到时返回 GENERATION_PARSE 错误。
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	// 剥离 ``` / ```json 代码栅栏
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.Index(s, "\n"); idx >= 0 && !strings.ContainsAny(s[:idx], "{[") {
			// 首行是语言标记（如 "json"）
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", types.NewError(types.ErrGenerationParse, "no JSON value found in model output")
	}

	open := s[start]
	var closer byte = '}'
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", types.NewError(types.ErrGenerationParse, "unbalanced JSON value in model output")
}
