package entity

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// PreviewMaxRunes 会话最后消息预览长度
const PreviewMaxRunes = 100

// SourceRef 回答引用的来源片段
type SourceRef struct {
	AssetID string `json:"asset_id"`
	Excerpt string `json:"excerpt"`
}

// ChatSession 对话会话
type ChatSession struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID      string    `json:"user_id" gorm:"type:varchar(64);index;not null"`
	LastMessage *string   `json:"last_message" gorm:"type:varchar(400)"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"index"`

	// MessageCount 查询时由子查询计算
	MessageCount int64 `json:"message_count" gorm:"->;-:migration"`

	Messages []ChatMessage `json:"-" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

func NewChatSession(userID string) *ChatSession {
	now := time.Now()
	return &ChatSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ChatMessage 对话中的一条消息，写入后不可变
type ChatMessage struct {
	ID          string      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID   string      `json:"session_id" gorm:"type:uuid;index:idx_chat_messages_session_created,priority:1;not null"`
	Role        Role        `json:"role" gorm:"type:varchar(16);not null"`
	Content     string      `json:"content" gorm:"type:text;not null"`
	UsedContext bool        `json:"used_context" gorm:"not null;default:false"`
	Sources     []SourceRef `json:"sources,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt   time.Time   `json:"created_at" gorm:"index:idx_chat_messages_session_created,priority:2"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func NewUserMessage(sessionID, content string) *ChatMessage {
	return &ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func NewAssistantMessage(sessionID, content string, usedContext bool, sources []SourceRef) *ChatMessage {
	if !usedContext {
		sources = nil
	}
	return &ChatMessage{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Role:        RoleAssistant,
		Content:     content,
		UsedContext: usedContext,
		Sources:     sources,
		CreatedAt:   time.Now(),
	}
}

// Preview 计算会话预览：优先助手回复，否则用户消息，截断到 100 字符
func Preview(user, assistant *ChatMessage) *string {
	var content string
	switch {
	case assistant != nil && assistant.Content != "":
		content = assistant.Content
	case user != nil:
		content = user.Content
	default:
		return nil
	}
	p := TruncateRunes(content, PreviewMaxRunes)
	return &p
}

// TruncateRunes 按字符截断
func TruncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
