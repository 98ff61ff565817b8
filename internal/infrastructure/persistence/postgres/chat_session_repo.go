package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rag-chat-api/internal/domain/entity"
	"rag-chat-api/internal/domain/repository"
)

type ChatSessionRepository struct {
	client *Client
}

func NewChatSessionRepository(client *Client) *ChatSessionRepository {
	return &ChatSessionRepository{client: client}
}

const messageCountSelect = "chat_sessions.*, (SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = chat_sessions.id) AS message_count"

func (r *ChatSessionRepository) Create(ctx context.Context, session *entity.ChatSession) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(session).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chat session: %w", err)
	}
	return nil
}

func (r *ChatSessionRepository) GetByID(ctx context.Context, userID, id string) (*entity.ChatSession, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var session entity.ChatSession
	err := db.Select(messageCountSelect).
		Where("id = ? AND user_id = ?", id, userID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}
	return &session, nil
}

func (r *ChatSessionRepository) GetByIDForUpdate(ctx context.Context, userID, id string) (*entity.ChatSession, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.GetByIDForUpdate")
	defer span.End()

	db := getDB(ctx, r.client.db).Clauses(clause.Locking{Strength: "UPDATE"})
	var session entity.ChatSession
	if err := db.First(&session, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chat session for update: %w", err)
	}
	return &session, nil
}

// ListByUser 按最近活跃倒序
func (r *ChatSessionRepository) ListByUser(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ChatSession], error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.ListByUser")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var total int64
	if err := db.Model(&entity.ChatSession{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count chat sessions: %w", err)
	}

	var sessions []*entity.ChatSession
	if err := db.Model(&entity.ChatSession{}).
		Select(messageCountSelect).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&sessions).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chat sessions: %w", err)
	}

	return repository.NewPagedResult(sessions, total, pagination), nil
}

func (r *ChatSessionRepository) Touch(ctx context.Context, id string, updatedAt time.Time, lastMessage *string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.Touch")
	defer span.End()

	db := getDB(ctx, r.client.db)
	res := db.Model(&entity.ChatSession{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"updated_at":   updatedAt,
			"last_message": lastMessage,
		})
	if res.Error != nil {
		span.RecordError(res.Error)
		return fmt.Errorf("failed to touch chat session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to touch chat session: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *ChatSessionRepository) Delete(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Where("id = ? AND user_id = ?", id, userID).Delete(&entity.ChatSession{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chat session: %w", err)
	}
	return nil
}
