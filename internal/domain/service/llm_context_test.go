package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLLMCallLabels(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", WorkflowFromContext(ctx))
	assert.Equal(t, "unknown", ProviderFromContext(ctx))

	ctx = WithWorkflowProvider(ctx, "rag_answer", " openai ")
	assert.Equal(t, "rag_answer", WorkflowFromContext(ctx))
	assert.Equal(t, "openai", ProviderFromContext(ctx))

	// 空提供商不覆盖已有标注
	ctx = WithWorkflowProvider(ctx, "query_classify", "")
	assert.Equal(t, LLMCall{Workflow: "query_classify", Provider: "openai"}, LLMCallFromContext(ctx))
}
