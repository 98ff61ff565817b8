package messaging

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"rag-chat-api/internal/application/ingestion"
	"rag-chat-api/internal/application/retrieval"
	"rag-chat-api/internal/domain/entity"
	"rag-chat-api/pkg/logger"
)

// AssetJanitor 消费资产事件：删除事件触发向量与原始文件清理
type AssetJanitor struct {
	vector retrieval.VectorStore
	blobs  ingestion.BlobStorage
}

func NewAssetJanitor(vector retrieval.VectorStore, blobs ingestion.BlobStorage) *AssetJanitor {
	return &AssetJanitor{vector: vector, blobs: blobs}
}

// Register 将处理函数挂到消费者上
func (j *AssetJanitor) Register(c *Consumer) {
	c.RegisterHandler(TypeAssetDeleted, j.HandleDeleted)
	c.RegisterHandler(TypeAssetIngested, j.HandleIngested)
}

// HandleDeleted 清理失败返回错误，消息按退避重投
func (j *AssetJanitor) HandleDeleted(ctx context.Context, msg *Message) error {
	var p AssetEventPayload
	if err := msg.UnmarshalPayload(&p); err != nil {
		return fmt.Errorf("invalid asset.deleted payload: %w", err)
	}
	if p.AssetID == "" || p.UserID == "" {
		logger.Warn(ctx, "skip asset.deleted without ids", "message_id", msg.ID)
		return nil
	}
	ctx = logger.WithContext(ctx, logger.AssetIDKey, p.AssetID)
	asset := &entity.Asset{
		ID:         p.AssetID,
		UserID:     p.UserID,
		Kind:       entity.AssetKind(p.Kind),
		StorageURL: p.StorageURL,
	}
	if err := ingestion.PurgeAssetData(ctx, j.vector, j.blobs, asset); err != nil {
		return err
	}
	logger.Info(ctx, "asset data purged", "storage_url", p.StorageURL)
	return nil
}

func (j *AssetJanitor) HandleIngested(ctx context.Context, msg *Message) error {
	var p AssetEventPayload
	if err := msg.UnmarshalPayload(&p); err != nil {
		return fmt.Errorf("invalid asset.ingested payload: %w", err)
	}
	logger.Info(ctx, "asset ingested event", "asset_id", p.AssetID, "kind", p.Kind, "chunks", p.ChunkCount)
	return nil
}

// NewJanitorConsumer 创建资产清理消费者组成员
func NewJanitorConsumer(client *redis.Client, cfg ConsumerConfig, janitor *AssetJanitor) *Consumer {
	if cfg.Stream == "" {
		cfg.Stream = StreamAssetEvents
	}
	if cfg.Group == "" {
		cfg.Group = ConsumerGroupAssetJanitor
	}
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = HostConsumerName()
	}
	c := NewConsumer(client, cfg)
	janitor.Register(c)
	return c
}

// HostConsumerName 主机名加进程号，保证组内唯一
func HostConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
