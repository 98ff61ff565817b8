package dto

import (
	"github.com/gin-gonic/gin"

	apperrors "rag-chat-api/pkg/errors"
	"rag-chat-api/pkg/logger"
)

// AppError 将错误翻译为统一错误响应；非 AppError 一律按 500 处理且不暴露细节
func AppError(c *gin.Context, err error) {
	if !apperrors.IsAppError(err) {
		logger.Error(c.Request.Context(), "unhandled error", err, "path", c.FullPath())
		ErrorWithDetail(c, 500, "internal server error", &ErrorDetail{
			ErrorCode: string(apperrors.CodeInternalError),
		})
		return
	}

	appErr := apperrors.AsAppError(err)
	status := appErr.HTTPStatus
	if status == 0 {
		status = 500
	}
	if status >= 500 {
		logger.Error(c.Request.Context(), "request failed", err, "code", string(appErr.Code), "path", c.FullPath())
	}
	ErrorWithDetail(c, status, appErr.Message, &ErrorDetail{
		ErrorCode: string(appErr.Code),
		Details:   appErr.Detail,
	})
}
