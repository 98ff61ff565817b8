package chat

import "rag-chat-api/internal/domain/entity"

// EventType 流式事件类型
type EventType string

const (
	EventSession EventType = "session"
	EventToken   EventType = "token"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// StreamEvent 流式对话事件，封闭集合：SessionEvent / TokenEvent / DoneEvent / ErrorEvent
type StreamEvent interface {
	Type() EventType
	sealed()
}

type SessionEvent struct {
	SessionID string
}

type TokenEvent struct {
	Content string
}

type DoneEvent struct {
	UsedContext bool
	Sources     []entity.SourceRef
}

type ErrorEvent struct {
	Message string
}

func (SessionEvent) Type() EventType { return EventSession }
func (TokenEvent) Type() EventType   { return EventToken }
func (DoneEvent) Type() EventType    { return EventDone }
func (ErrorEvent) Type() EventType   { return EventError }

func (SessionEvent) sealed() {}
func (TokenEvent) sealed()   {}
func (DoneEvent) sealed()    {}
func (ErrorEvent) sealed()   {}

// Terminal Done 与 Error 为终止事件
func Terminal(ev StreamEvent) bool {
	switch ev.(type) {
	case DoneEvent, ErrorEvent:
		return true
	default:
		return false
	}
}
