package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"rag-chat-api/internal/domain/entity"
	"rag-chat-api/internal/domain/repository"
	apperrors "rag-chat-api/pkg/errors"
	"rag-chat-api/pkg/logger"
)

// SessionManager 会话与消息的持久化
type SessionManager struct {
	sessions repository.ChatSessionRepository
	messages repository.ChatMessageRepository
	tx       repository.Transactor
}

func NewSessionManager(sessions repository.ChatSessionRepository, messages repository.ChatMessageRepository, tx repository.Transactor) *SessionManager {
	return &SessionManager{sessions: sessions, messages: messages, tx: tx}
}

// SessionDetail 会话及全部消息
type SessionDetail struct {
	Session  *entity.ChatSession
	Messages []*entity.ChatMessage
}

// Resolve 未传 sessionID 时新建会话；否则加载并校验归属。
// 会话不存在或不属于该用户一律返回 ErrSessionNotFound。
func (m *SessionManager) Resolve(ctx context.Context, userID, sessionID string) (*entity.ChatSession, bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		session := entity.NewChatSession(userID)
		if err := m.sessions.Create(ctx, session); err != nil {
			return nil, false, apperrors.Wrap(err, apperrors.CodeDatabaseError, "create session failed")
		}
		logger.Info(ctx, "chat session created", "session_id", session.ID)
		return session, true, nil
	}

	session, err := m.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, false, err
	}
	return session, false, nil
}

// Get 按 ID 读取当前用户的会话
func (m *SessionManager) Get(ctx context.Context, userID, sessionID string) (*entity.ChatSession, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, apperrors.ErrSessionNotFound
	}
	session, err := m.sessions.GetByID(ctx, userID, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "load session failed")
	}
	if session == nil || session.UserID != userID {
		return nil, apperrors.ErrSessionNotFound
	}
	return session, nil
}

// Detail 会话及按时间正序的全部消息
func (m *SessionManager) Detail(ctx context.Context, userID, sessionID string) (*SessionDetail, error) {
	session, err := m.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := m.messages.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "load messages failed")
	}
	return &SessionDetail{Session: session, Messages: msgs}, nil
}

// History 最近 limit 条消息，按时间正序
func (m *SessionManager) History(ctx context.Context, sessionID string, limit int) ([]*entity.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	msgs, err := m.messages.ListRecent(ctx, sessionID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "load history failed")
	}
	return msgs, nil
}

func (m *SessionManager) List(ctx context.Context, userID string, page repository.Pagination) (*repository.PagedResult[*entity.ChatSession], error) {
	res, err := m.sessions.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "list sessions failed")
	}
	return res, nil
}

// Delete 删除会话，消息级联删除
func (m *SessionManager) Delete(ctx context.Context, userID, sessionID string) error {
	if _, err := m.Get(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := m.sessions.Delete(ctx, userID, sessionID); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "delete session failed")
	}
	logger.Info(ctx, "chat session deleted", "session_id", sessionID)
	return nil
}

// Append 在同一事务内写入一轮问答并刷新会话预览
func (m *SessionManager) Append(ctx context.Context, session *entity.ChatSession, user, assistant *entity.ChatMessage) error {
	return m.append(ctx, session, user, assistant)
}

// AppendUser 仅写入用户消息，用于生成失败的轮次
func (m *SessionManager) AppendUser(ctx context.Context, session *entity.ChatSession, user *entity.ChatMessage) error {
	return m.append(ctx, session, user, nil)
}

func (m *SessionManager) append(ctx context.Context, session *entity.ChatSession, user, assistant *entity.ChatMessage) error {
	if session == nil || user == nil {
		return apperrors.ErrInvalidParam.WithDetail("session and user message are required")
	}

	batch := []*entity.ChatMessage{user}
	if assistant != nil {
		if !assistant.CreatedAt.After(user.CreatedAt) {
			assistant.CreatedAt = user.CreatedAt.Add(time.Microsecond)
		}
		batch = append(batch, assistant)
	}
	for _, msg := range batch {
		msg.SessionID = session.ID
	}
	updatedAt := batch[len(batch)-1].CreatedAt
	preview := entity.Preview(user, assistant)

	// 先锁定会话行，避免与并发的删除交错
	write := func(ctx context.Context) error {
		locked, err := m.sessions.GetByIDForUpdate(ctx, session.UserID, session.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return apperrors.ErrSessionNotFound
		}
		if err := m.messages.CreateBatch(ctx, batch); err != nil {
			return err
		}
		return m.sessions.Touch(ctx, session.ID, updatedAt, preview)
	}

	var err error
	if m.tx != nil {
		err = m.tx.WithTransaction(ctx, write)
	} else {
		err = write(ctx)
	}
	if apperrors.IsCode(err, apperrors.CodeSessionNotFound) {
		return err
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "persist chat turn failed")
	}

	session.UpdatedAt = updatedAt
	session.LastMessage = preview
	session.MessageCount += int64(len(batch))
	return nil
}
