package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	apperrors "rag-chat-api/pkg/errors"
	"rag-chat-api/pkg/logger"
)

// Recovery 捕获 panic。流式响应已写出头部时只能中断连接，不再写 JSON。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered", fmt.Errorf("%v", rec),
				"stack", string(debug.Stack()),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			abortWithError(c, apperrors.ErrInternalError)
		}()
		c.Next()
	}
}
