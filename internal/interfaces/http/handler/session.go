package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"rag-chat-api/internal/application/chat"
	"rag-chat-api/internal/domain/entity"
	"rag-chat-api/internal/domain/repository"
	"rag-chat-api/internal/interfaces/http/dto"
)

// SessionQueries 会话查询与删除
type SessionQueries interface {
	List(ctx context.Context, userID string, page repository.Pagination) (*repository.PagedResult[*entity.ChatSession], error)
	Detail(ctx context.Context, userID, sessionID string) (*chat.SessionDetail, error)
	Delete(ctx context.Context, userID, sessionID string) error
}

// SessionHandler 会话处理器
type SessionHandler struct {
	sessions SessionQueries
}

func NewSessionHandler(sessions SessionQueries) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// List 会话列表，按最近更新倒序
// @Summary 会话列表
// @Tags Sessions
// @Produce json
// @Success 200 {object} dto.Response[[]dto.SessionResponse]
// @Router /v1/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page := pagination(c)
	res, err := h.sessions.List(c.Request.Context(), userID, page)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.ToSessionList(res.Items), dto.FromPaged(page.Page, page.PageSize, res.Total))
}

// Get 会话详情及全部消息
// @Router /v1/sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}
	detail, err := h.sessions.Detail(c.Request.Context(), userID, id)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.ToSessionDetail(detail))
}

// Delete 删除会话
// @Router /v1/sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), userID, id); err != nil {
		dto.AppError(c, err)
		return
	}
	dto.NoContent(c)
}
