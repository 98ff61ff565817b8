package postgres

import (
	"context"
	"fmt"

	"rag-chat-api/internal/domain/entity"
)

type ChatMessageRepository struct {
	client *Client
}

func NewChatMessageRepository(client *Client) *ChatMessageRepository {
	return &ChatMessageRepository{client: client}
}

func (r *ChatMessageRepository) CreateBatch(ctx context.Context, messages []*entity.ChatMessage) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatMessageRepository.CreateBatch")
	defer span.End()

	if len(messages) == 0 {
		return nil
	}
	db := getDB(ctx, r.client.db)
	if err := db.Create(&messages).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chat messages: %w", err)
	}
	return nil
}

func (r *ChatMessageRepository) ListRecent(ctx context.Context, sessionID string, limit int) ([]*entity.ChatMessage, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatMessageRepository.ListRecent")
	defer span.End()

	if limit <= 0 {
		return nil, nil
	}
	db := getDB(ctx, r.client.db)
	var msgs []*entity.ChatMessage
	if err := db.Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list recent chat messages: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *ChatMessageRepository) ListBySession(ctx context.Context, sessionID string) ([]*entity.ChatMessage, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatMessageRepository.ListBySession")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var msgs []*entity.ChatMessage
	if err := db.Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	return msgs, nil
}
