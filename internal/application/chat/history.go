package chat

import (
	"github.com/cloudwego/eino/schema"

	"rag-chat-api/internal/domain/entity"
)

// toSchemaHistory 取最近 limit 条消息转换为模型消息，limit<=0 表示不截断
func toSchemaHistory(history []*entity.ChatMessage, limit int) []*schema.Message {
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		if m == nil || m.Content == "" {
			continue
		}
		switch m.Role {
		case entity.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case entity.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		}
	}
	return out
}
