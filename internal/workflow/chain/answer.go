package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "rag-chat-api/internal/domain/service"
	wfmodel "rag-chat-api/internal/workflow/model"
	workflowport "rag-chat-api/internal/workflow/port"
	workflowprompt "rag-chat-api/internal/workflow/prompt"
)

type AnswerChain struct {
	factory workflowport.ChatModelFactory
	prompts *workflowprompt.Registry
}

func NewAnswerChain(factory workflowport.ChatModelFactory, prompts *workflowprompt.Registry) *AnswerChain {
	if prompts == nil {
		prompts = workflowprompt.NewRegistry()
	}
	return &AnswerChain{factory: factory, prompts: prompts}
}

// Stream 返回 Eino StreamReader；调用方负责 Close()。
// 约定：流可能在最后返回一个 Content 为空但包含 Usage 的消息，用于 Token 统计。
func (c *AnswerChain) Stream(ctx context.Context, in *wfmodel.AnswerInput) (*schema.StreamReader[*schema.Message], error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil || strings.TrimSpace(in.Question) == "" {
		return nil, fmt.Errorf("question is required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "rag_answer", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	msgs, err := c.formatMessages(ctx, in)
	if err != nil {
		return nil, err
	}
	return chatModel.Stream(ctx, msgs, buildAnswerOptions(in)...)
}

func (c *AnswerChain) formatMessages(ctx context.Context, in *wfmodel.AnswerInput) ([]*schema.Message, error) {
	tpl, err := c.prompts.ChatTemplate(workflowprompt.PromptRAGAnswerV1)
	if err != nil {
		return nil, err
	}
	return tpl.Format(ctx, map[string]any{
		"context":                 strings.TrimSpace(in.Context),
		"question":                strings.TrimSpace(in.Question),
		workflowprompt.HistoryKey: in.History,
	})
}

func buildAnswerOptions(in *wfmodel.AnswerInput) []model.Option {
	opts := make([]model.Option, 0, 3)
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if strings.TrimSpace(in.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(in.Model)))
	}
	return opts
}
