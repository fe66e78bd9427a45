package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/tutorflow/types"
)

func TestFirstChoice(t *testing.T) {
	_, err := FirstChoice(nil)
	assert.Error(t, err)

	_, err = FirstChoice(&ChatResponse{})
	assert.Error(t, err)

	resp := &ChatResponse{Choices: []ChatChoice{{Message: Message{Content: "hi"}}}}
	choice, err := FirstChoice(resp)
	require.NoError(t, err)
	assert.Equal(t, "hi", choice.Message.Content)
}

func TestAnswerText(t *testing.T) {
	resp := &ChatResponse{Choices: []ChatChoice{{Message: Message{Content: "  an answer \n"}}}}
	text, err := AnswerText(resp)
	require.NoError(t, err)
	assert.Equal(t, "an answer", text)

	empty := &ChatResponse{Choices: []ChatChoice{{Message: Message{Content: "   "}}}}
	_, err = AnswerText(empty)
	assert.True(t, types.IsCode(err, types.ErrGenerationService))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "plain object",
			raw:  `{"answer":"yes"}`,
			want: `{"answer":"yes"}`,
		},
		{
			name: "json code fence",
			raw:  "```json\n{\"answer\":\"yes\"}\n```",
			want: `{"answer":"yes"}`,
		},
		{
			name: "bare code fence",
			raw:  "```\n{\"answer\":\"yes\"}\n```",
			want: `{"answer":"yes"}`,
		},
		{
			name: "prose wrapped object",
			raw:  "Sure! Here is the result:\n{\"answer\":\"yes\"}\nHope it helps.",
			want: `{"answer":"yes"}`,
		},
		{
			name: "array value",
			raw:  "result: [1, 2, 3] done",
			want: `[1, 2, 3]`,
		},
		{
			name: "nested braces in strings",
			raw:  `note {"text":"a } inside","n":{"x":1}} trailing`,
			want: `{"text":"a } inside","n":{"x":1}}`,
		},
		{
			name:    "no json at all",
			raw:     "I cannot answer that.",
			wantErr: true,
		},
		{
			name:    "unbalanced",
			raw:     `{"answer":"yes"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, types.IsCode(err, types.ErrGenerationParse),
					"解析失败必须携带 GENERATION_PARSE 标签")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
