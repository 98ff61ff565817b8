package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"rag-chat-api/internal/application/chat"
	"rag-chat-api/internal/interfaces/http/dto"
	apperrors "rag-chat-api/pkg/errors"
	"rag-chat-api/pkg/logger"
)

// ChatTurns 对话轮次执行
type ChatTurns interface {
	Stream(ctx context.Context, in chat.TurnInput, emit chat.EmitFunc) error
	Chat(ctx context.Context, in chat.TurnInput) (*chat.TurnReply, error)
}

// ChatHandler 对话处理器
type ChatHandler struct {
	turns ChatTurns
}

func NewChatHandler(turns ChatTurns) *ChatHandler {
	return &ChatHandler{turns: turns}
}

func (h *ChatHandler) bind(c *gin.Context) (chat.TurnInput, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return chat.TurnInput{}, false
	}
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.AppError(c, apperrors.ErrInvalidParam.WithDetail(err.Error()))
		return chat.TurnInput{}, false
	}
	return chat.TurnInput{UserID: userID, SessionID: req.SessionID, Message: req.Message}, true
}

// Chat 非流式对话
// @Summary 发送消息（完整回复）
// @Tags Chat
// @Accept json
// @Produce json
// @Param body body dto.ChatRequest true "消息"
// @Success 200 {object} dto.Response[dto.ChatResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	in, ok := h.bind(c)
	if !ok {
		return
	}
	reply, err := h.turns.Chat(c.Request.Context(), in)
	if err != nil {
		if c.Request.Context().Err() != nil {
			c.Abort()
			return
		}
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.ToChatResponse(reply))
}

// Stream SSE 流式对话。会话建立前的错误以 JSON 返回；
// 之后的错误以 error 事件结束流。
// @Summary 发送消息（流式）
// @Tags Chat
// @Accept json
// @Produce text/event-stream
// @Param body body dto.ChatRequest true "消息"
// @Success 200 "SSE stream"
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/chat/stream [post]
func (h *ChatHandler) Stream(c *gin.Context) {
	in, ok := h.bind(c)
	if !ok {
		return
	}

	w := &sseWriter{c: c}
	err := h.turns.Stream(c.Request.Context(), in, w.emit)
	if err == nil {
		return
	}
	if w.started {
		logger.Warn(c.Request.Context(), "stream ended with error after headers", "error", err.Error())
		return
	}
	dto.AppError(c, err)
}

// sseWriter 首个事件到达时才写响应头，之前的失败仍可返回 JSON 错误
type sseWriter struct {
	c       *gin.Context
	started bool
}

func (w *sseWriter) emit(ev chat.StreamEvent) error {
	frame, err := dto.EncodeSSE(ev)
	if err != nil {
		return err
	}
	if !w.started {
		h := w.c.Writer.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.c.Status(http.StatusOK)
		w.started = true
	}
	if _, err := w.c.Writer.Write(frame); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}
