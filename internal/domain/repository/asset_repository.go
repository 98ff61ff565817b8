// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"rag-chat-api/internal/domain/entity"
)

// AssetRepository 上传文件仓储，所有查询均按 userID 限定
type AssetRepository interface {
	Create(ctx context.Context, asset *entity.Asset) error
	GetByID(ctx context.Context, userID, id string) (*entity.Asset, error)
	ListByUser(ctx context.Context, userID string, pagination Pagination) (*PagedResult[*entity.Asset], error)
	Delete(ctx context.Context, userID, id string) error
}

// ChunkRepository 文档切片仓储
type ChunkRepository interface {
	CreateBatch(ctx context.Context, chunks []*entity.DocumentChunk) error
	// GetByIDs 按 ID 批量加载（预载 Asset），结果仅包含属于 userID 的切片
	GetByIDs(ctx context.Context, userID string, ids []string) ([]*entity.DocumentChunk, error)
}
