package prompt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatTemplate_RAGAnswerFormatsVariables(t *testing.T) {
	r := NewRegistry()
	tpl, err := r.ChatTemplate(PromptRAGAnswerV1)
	require.NoError(t, err)

	msgs, err := tpl.Format(context.Background(), map[string]any{
		"context":  "[Source 1: a.pdf]\nalpha",
		"question": "what is alpha?",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "what is alpha?")
	assert.Contains(t, msgs[1].Content, "[Source 1: a.pdf]")

	again, err := r.ChatTemplate(PromptRAGAnswerV1)
	require.NoError(t, err)
	assert.Same(t, tpl, again)
}

func TestChatTemplate_SystemOnlyPrompt(t *testing.T) {
	_, err := NewRegistry().ChatTemplate(PromptVisionDescribeV1)
	assert.ErrorIs(t, err, ErrNoUserTemplate)

	text, err := NewRegistry().SystemText(PromptVisionDescribeV1)
	require.NoError(t, err)
	assert.Contains(t, text, "Describe this image")
}

func TestChatTemplate_UnknownID(t *testing.T) {
	_, err := NewRegistry().ChatTemplate("nope")
	assert.Error(t, err)
}
