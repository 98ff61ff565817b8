package dto

import (
	"time"

	"rag-chat-api/internal/application/chat"
	"rag-chat-api/internal/domain/entity"
)

// ChatRequest 对话请求，session_id 为空时新建会话
type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id" binding:"omitempty,uuid"`
}

// SourceResponse 引用来源
type SourceResponse struct {
	AssetID string `json:"asset_id"`
	Excerpt string `json:"excerpt"`
}

func ToSources(refs []entity.SourceRef) []SourceResponse {
	out := make([]SourceResponse, 0, len(refs))
	for _, r := range refs {
		out = append(out, SourceResponse{AssetID: r.AssetID, Excerpt: r.Excerpt})
	}
	return out
}

// ChatResponse 非流式对话结果
type ChatResponse struct {
	SessionID   string           `json:"session_id"`
	Message     string           `json:"message"`
	UsedContext bool             `json:"used_context"`
	Sources     []SourceResponse `json:"sources"`
}

func ToChatResponse(r *chat.TurnReply) *ChatResponse {
	return &ChatResponse{
		SessionID:   r.SessionID,
		Message:     r.Message,
		UsedContext: r.UsedContext,
		Sources:     ToSources(r.Sources),
	}
}

// SessionResponse 会话列表项
type SessionResponse struct {
	ID           string    `json:"id"`
	MessageCount int64     `json:"message_count"`
	LastMessage  *string   `json:"last_message"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func ToSessionResponse(s *entity.ChatSession) *SessionResponse {
	return &SessionResponse{
		ID:           s.ID,
		MessageCount: s.MessageCount,
		LastMessage:  s.LastMessage,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func ToSessionList(items []*entity.ChatSession) []*SessionResponse {
	out := make([]*SessionResponse, 0, len(items))
	for _, s := range items {
		out = append(out, ToSessionResponse(s))
	}
	return out
}

// MessageResponse 会话中的一条消息
type MessageResponse struct {
	ID          string           `json:"id"`
	Role        string           `json:"role"`
	Content     string           `json:"content"`
	UsedContext bool             `json:"used_context"`
	Sources     []SourceResponse `json:"sources,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// SessionDetailResponse 会话详情
type SessionDetailResponse struct {
	SessionResponse
	Messages []*MessageResponse `json:"messages"`
}

func ToSessionDetail(d *chat.SessionDetail) *SessionDetailResponse {
	msgs := make([]*MessageResponse, 0, len(d.Messages))
	for _, m := range d.Messages {
		mr := &MessageResponse{
			ID:          m.ID,
			Role:        string(m.Role),
			Content:     m.Content,
			UsedContext: m.UsedContext,
			CreatedAt:   m.CreatedAt,
		}
		if len(m.Sources) > 0 {
			mr.Sources = ToSources(m.Sources)
		}
		msgs = append(msgs, mr)
	}
	session := ToSessionResponse(d.Session)
	if session.MessageCount == 0 {
		session.MessageCount = int64(len(msgs))
	}
	return &SessionDetailResponse{
		SessionResponse: *session,
		Messages:        msgs,
	}
}
