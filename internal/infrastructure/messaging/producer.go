package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rag-chat-api/internal/domain/entity"
	"rag-chat-api/pkg/logger"
	"rag-chat-api/pkg/tracer"
)

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{client: client, maxLen: maxLen}
}

// Publish 写入流，返回流内消息 ID
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		msg.SetMetadata("request_id", reqID)
	}
	if traceID := tracer.TraceID(ctx); traceID != "" {
		msg.SetMetadata("trace_id", traceID)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{"data": string(data)},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}
	return id, nil
}

// AssetEvents 将资产生命周期事件发布到 StreamAssetEvents
type AssetEvents struct {
	producer *Producer
}

func NewAssetEvents(producer *Producer) *AssetEvents {
	return &AssetEvents{producer: producer}
}

func (e *AssetEvents) AssetIngested(ctx context.Context, asset *entity.Asset) error {
	return e.publish(ctx, TypeAssetIngested, asset)
}

func (e *AssetEvents) AssetDeleted(ctx context.Context, asset *entity.Asset) error {
	return e.publish(ctx, TypeAssetDeleted, asset)
}

func (e *AssetEvents) publish(ctx context.Context, msgType string, asset *entity.Asset) error {
	if e == nil || e.producer == nil || asset == nil {
		return fmt.Errorf("asset events not configured")
	}
	msg, err := NewMessage(msgType, asset.UserID, AssetEventPayload{
		AssetID:    asset.ID,
		UserID:     asset.UserID,
		Kind:       string(asset.Kind),
		StorageURL: asset.StorageURL,
		ChunkCount: asset.ChunkCount,
		CreatedAt:  asset.CreatedAt,
	})
	if err != nil {
		return err
	}
	_, err = e.producer.Publish(ctx, StreamAssetEvents, msg)
	return err
}
