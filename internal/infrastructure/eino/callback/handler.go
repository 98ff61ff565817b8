package callback

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rag-chat-api/internal/domain/service"
	"rag-chat-api/pkg/logger"
	"rag-chat-api/pkg/metrics"
)

type startTimeKey struct{}

// Usage 单次模型调用的 token 消耗
type Usage struct {
	Workflow         string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
}

// UsageObserver 接收每次成功调用的用量，nil 时仅记录指标与日志
type UsageObserver func(ctx context.Context, u Usage)

func newChatModelCallbackHandler(observe UsageObserver) *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())

			attrs := []attribute.KeyValue{
				attribute.String("eino.workflow", service.WorkflowFromContext(ctx)),
				attribute.String("llm.provider", service.ProviderFromContext(ctx)),
				attribute.String("llm.model", modelNameFromInput(input)),
			}
			if info != nil {
				attrs = append(attrs,
					attribute.String("eino.node_name", info.Name),
					attribute.String("eino.type", info.Type),
				)
			}

			ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			usage := Usage{
				Workflow: service.WorkflowFromContext(ctx),
				Provider: service.ProviderFromContext(ctx),
				Model:    modelNameFromOutput(output),
				Duration: elapsed(ctx),
			}
			if output != nil && output.TokenUsage != nil {
				usage.PromptTokens = output.TokenUsage.PromptTokens
				usage.CompletionTokens = output.TokenUsage.CompletionTokens
			}
			record(ctx, usage, "success")
			if observe != nil {
				observe(ctx, usage)
			}

			span := trace.SpanFromContext(ctx)
			span.SetAttributes(
				attribute.Int("llm.prompt_tokens", usage.PromptTokens),
				attribute.Int("llm.completion_tokens", usage.CompletionTokens),
			)
			span.End()
			return ctx
		},

		// 流式输出的 token 用量只在最后一个分片里，逐片读取后再上报
		OnEndWithStreamOutput: func(ctx context.Context, _ *einocb.RunInfo, output *einoStream) context.Context {
			go func() {
				defer output.Close()
				usage := Usage{
					Workflow: service.WorkflowFromContext(ctx),
					Provider: service.ProviderFromContext(ctx),
				}
				for {
					chunk, err := output.Recv()
					if err != nil {
						break
					}
					if chunk == nil {
						continue
					}
					if m := modelNameFromOutput(chunk); m != "" {
						usage.Model = m
					}
					if chunk.TokenUsage != nil {
						usage.PromptTokens = chunk.TokenUsage.PromptTokens
						usage.CompletionTokens = chunk.TokenUsage.CompletionTokens
					}
				}
				usage.Duration = elapsed(ctx)
				record(ctx, usage, "success")
				if observe != nil {
					observe(ctx, usage)
				}
				trace.SpanFromContext(ctx).End()
			}()
			return ctx
		},

		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			modelName := ""
			if info != nil {
				modelName = info.Type
			}
			record(ctx, Usage{
				Workflow: service.WorkflowFromContext(ctx),
				Provider: service.ProviderFromContext(ctx),
				Model:    modelName,
				Duration: elapsed(ctx),
			}, "error")

			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return ctx
		},
	}
}

func record(ctx context.Context, u Usage, status string) {
	metrics.LLMCallTotal.WithLabelValues(u.Workflow, u.Provider, u.Model, status).Inc()
	if u.Duration > 0 {
		metrics.LLMCallDuration.WithLabelValues(u.Workflow, u.Provider, u.Model).Observe(u.Duration.Seconds())
	}
	if status != "success" {
		return
	}
	metrics.LLMTokensUsed.WithLabelValues(u.Workflow, u.Provider, u.Model, "prompt").Add(float64(u.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(u.Workflow, u.Provider, u.Model, "completion").Add(float64(u.CompletionTokens))
	logger.Debug(ctx, "llm call finished",
		"workflow", u.Workflow,
		"provider", u.Provider,
		"model", u.Model,
		"prompt_tokens", u.PromptTokens,
		"completion_tokens", u.CompletionTokens,
		"duration_ms", u.Duration.Milliseconds(),
	)
}

func elapsed(ctx context.Context) time.Duration {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start)
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
