package postgres

import (
	"context"
	"fmt"

	"rag-chat-api/internal/domain/entity"
)

const chunkInsertBatch = 200

type ChunkRepository struct {
	client *Client
}

func NewChunkRepository(client *Client) *ChunkRepository {
	return &ChunkRepository{client: client}
}

func (r *ChunkRepository) CreateBatch(ctx context.Context, chunks []*entity.DocumentChunk) error {
	ctx, span := tracer.Start(ctx, "postgres.ChunkRepository.CreateBatch")
	defer span.End()

	if len(chunks) == 0 {
		return nil
	}
	db := getDB(ctx, r.client.db)
	if err := db.Omit("Asset").CreateInBatches(chunks, chunkInsertBatch).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create document chunks: %w", err)
	}
	return nil
}

func (r *ChunkRepository) GetByIDs(ctx context.Context, userID string, ids []string) ([]*entity.DocumentChunk, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChunkRepository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}
	db := getDB(ctx, r.client.db)
	var chunks []*entity.DocumentChunk
	if err := db.Preload("Asset").
		Where("id IN ? AND user_id = ?", ids, userID).
		Find(&chunks).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get document chunks: %w", err)
	}
	return chunks, nil
}
