package repository

import (
	"context"
	"time"

	"rag-chat-api/internal/domain/entity"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	// GetByID 未找到时返回 nil, nil
	GetByID(ctx context.Context, userID, id string) (*entity.ChatSession, error)
	GetByIDForUpdate(ctx context.Context, userID, id string) (*entity.ChatSession, error)
	ListByUser(ctx context.Context, userID string, pagination Pagination) (*PagedResult[*entity.ChatSession], error)
	Touch(ctx context.Context, id string, updatedAt time.Time, lastMessage *string) error
	Delete(ctx context.Context, userID, id string) error
}

type ChatMessageRepository interface {
	CreateBatch(ctx context.Context, messages []*entity.ChatMessage) error
	// ListRecent 返回最近 limit 条消息，按创建时间正序
	ListRecent(ctx context.Context, sessionID string, limit int) ([]*entity.ChatMessage, error)
	ListBySession(ctx context.Context, sessionID string) ([]*entity.ChatMessage, error)
}
