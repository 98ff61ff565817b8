// Package service 跨层共享的领域辅助
package service

import (
	"context"
	"strings"
)

const unknownLabel = "unknown"

// LLMCall 标注一次模型调用所属的工作流与提供商，供回调打指标与 span 标签。
// 工作流取值：query_classify、rag_answer、vision。
type LLMCall struct {
	Workflow string
	Provider string
}

type llmCallKey struct{}

// WithWorkflowProvider 空值保留上层已有标注
func WithWorkflowProvider(ctx context.Context, workflow, provider string) context.Context {
	call := LLMCallFromContext(ctx)
	if w := strings.TrimSpace(workflow); w != "" {
		call.Workflow = w
	}
	if p := strings.TrimSpace(provider); p != "" {
		call.Provider = p
	}
	return context.WithValue(ctx, llmCallKey{}, call)
}

// LLMCallFromContext 缺失字段为空串
func LLMCallFromContext(ctx context.Context) LLMCall {
	if ctx == nil {
		return LLMCall{}
	}
	call, _ := ctx.Value(llmCallKey{}).(LLMCall)
	return call
}

func WorkflowFromContext(ctx context.Context) string {
	return labelOrUnknown(LLMCallFromContext(ctx).Workflow)
}

func ProviderFromContext(ctx context.Context) string {
	return labelOrUnknown(LLMCallFromContext(ctx).Provider)
}

func labelOrUnknown(s string) string {
	if s == "" {
		return unknownLabel
	}
	return s
}
