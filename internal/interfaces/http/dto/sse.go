package dto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"rag-chat-api/internal/application/chat"
)

type sessionPayload struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type tokenPayload struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type donePayload struct {
	Type        string           `json:"type"`
	UsedContext bool             `json:"used_context"`
	Sources     []SourceResponse `json:"sources,omitempty"`
}

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// EncodeSSE 编码为一帧 `data: <json>\n\n`；未使用上下文时省略 sources
func EncodeSSE(ev chat.StreamEvent) ([]byte, error) {
	var payload any
	switch e := ev.(type) {
	case chat.SessionEvent:
		payload = sessionPayload{Type: string(chat.EventSession), SessionID: e.SessionID}
	case chat.TokenEvent:
		payload = tokenPayload{Type: string(chat.EventToken), Content: e.Content}
	case chat.DoneEvent:
		p := donePayload{Type: string(chat.EventDone), UsedContext: e.UsedContext}
		if e.UsedContext {
			p.Sources = ToSources(e.Sources)
		}
		payload = p
	case chat.ErrorEvent:
		payload = errorPayload{Type: string(chat.EventError), Message: e.Message}
	default:
		return nil, fmt.Errorf("unknown stream event %T", ev)
	}

	var buf bytes.Buffer
	buf.WriteString("data: ")
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encode 自带一个换行
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
