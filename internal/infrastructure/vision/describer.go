// Package vision 通过视觉模型为图片生成文字描述
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"rag-chat-api/internal/config"
	workflowprompt "rag-chat-api/internal/workflow/prompt"
	"rag-chat-api/pkg/metrics"
)

const (
	workflowName     = "vision"
	providerName     = "openai"
	defaultMaxTokens = 300
)

type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Describer OpenAI 兼容视觉模型客户端
type Describer struct {
	client    completer
	model     string
	maxTokens int
	timeout   time.Duration
	prompt    string
}

func NewDescriber(cfg *config.VisionConfig, prompts *workflowprompt.Registry) (*Describer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vision api_key is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return newDescriber(openai.NewClientWithConfig(oc), cfg, prompts)
}

func newDescriber(client completer, cfg *config.VisionConfig, prompts *workflowprompt.Registry) (*Describer, error) {
	if prompts == nil {
		prompts = workflowprompt.NewRegistry()
	}
	system, err := prompts.SystemText(workflowprompt.PromptVisionDescribeV1)
	if err != nil {
		return nil, err
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Describer{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		timeout:   cfg.Timeout,
		prompt:    system,
	}, nil
}

// Describe 图片以 data URL 形式内联发送
func (d *Describer) Describe(ctx context.Context, image []byte, mime string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
	req := openai.ChatCompletionRequest{
		Model:     d.model,
		MaxTokens: d.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: d.prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}

	start := time.Now()
	resp, err := d.client.CreateChatCompletion(ctx, req)
	metrics.LLMCallDuration.WithLabelValues(workflowName, providerName, d.model).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(workflowName, providerName, d.model, "error").Inc()
		return "", fmt.Errorf("vision completion failed: %w", err)
	}
	metrics.LLMCallTotal.WithLabelValues(workflowName, providerName, d.model, "success").Inc()
	metrics.LLMTokensUsed.WithLabelValues(workflowName, providerName, d.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(workflowName, providerName, d.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
