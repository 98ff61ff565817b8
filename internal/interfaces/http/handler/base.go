// Package handler 提供 HTTP 请求处理器
package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"rag-chat-api/internal/domain/repository"
	"rag-chat-api/internal/interfaces/http/dto"
	"rag-chat-api/internal/interfaces/http/middleware"
	apperrors "rag-chat-api/pkg/errors"
)

// currentUser 取认证中间件注入的用户；缺失时直接写 401
func currentUser(c *gin.Context) (string, bool) {
	userID := strings.TrimSpace(c.GetString(middleware.UserIDKey))
	if userID == "" {
		dto.AppError(c, apperrors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

// bindID 绑定并校验路径中的 :id
func bindID(c *gin.Context) (string, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		dto.AppError(c, apperrors.ErrInvalidParam.WithDetail("id must be a uuid"))
		return "", false
	}
	return req.ID, true
}

func pagination(c *gin.Context) repository.Pagination {
	page := dto.BindPage(c)
	return repository.NewPagination(page.Page, page.PageSize)
}
