package chain

import (
	"context"
	"fmt"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	llmctx "rag-chat-api/internal/domain/service"
	wfmodel "rag-chat-api/internal/workflow/model"
	"rag-chat-api/internal/workflow/node"
	workflowport "rag-chat-api/internal/workflow/port"
	workflowprompt "rag-chat-api/internal/workflow/prompt"
	"rag-chat-api/pkg/logger"
)

const classifierMaxTokens = 50

type ClassifyChain struct {
	factory workflowport.ChatModelFactory
	prompts *workflowprompt.Registry
}

func NewClassifyChain(factory workflowport.ChatModelFactory, prompts *workflowprompt.Registry) *ClassifyChain {
	if prompts == nil {
		prompts = workflowprompt.NewRegistry()
	}
	return &ClassifyChain{factory: factory, prompts: prompts}
}

// Invoke 返回模型原始输出（已截取 JSON 部分），标签校验由调用方负责
func (c *ClassifyChain) Invoke(ctx context.Context, in *wfmodel.ClassifyInput) (string, error) {
	if c == nil || c.factory == nil {
		return "", fmt.Errorf("llm factory not configured")
	}
	if in == nil || strings.TrimSpace(in.Message) == "" {
		return "", fmt.Errorf("message is required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "query_classify", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return "", err
	}

	tpl, err := c.prompts.ChatTemplate(workflowprompt.PromptClassifierV1)
	if err != nil {
		return "", err
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"message":                 strings.TrimSpace(in.Message),
		workflowprompt.HistoryKey: in.History,
	})
	if err != nil {
		return "", err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildClassifyOptions(true)...)
	if err != nil && node.IsResponseFormatUnsupportedError(err) {
		logger.Warn(ctx, "llm json mode not supported, fallback to prompt-only",
			"provider", in.Provider,
			"error", err.Error(),
		)
		outMsg, err = chatModel.Generate(ctx, msgs, buildClassifyOptions(false)...)
	}
	if err != nil {
		return "", err
	}
	if outMsg == nil {
		return "", fmt.Errorf("empty llm response")
	}
	return node.ExtractJSONObject(outMsg.Content), nil
}

func buildClassifyOptions(jsonMode bool) []model.Option {
	opts := []model.Option{
		model.WithTemperature(0),
		model.WithMaxTokens(classifierMaxTokens),
	}
	if jsonMode {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{"type": "json_object"},
		}))
	}
	return opts
}
