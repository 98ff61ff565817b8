// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h *Handlers) {
	// 资产
	assets := v1.Group("/assets")
	{
		assets.POST("", h.Assets.Upload)
		assets.GET("", h.Assets.List)
		assets.GET("/:id", h.Assets.Get)
		assets.GET("/:id/file", h.Assets.File)
		assets.DELETE("/:id", h.Assets.Delete)
	}

	// 对话
	chat := v1.Group("/chat")
	{
		chat.POST("", h.Chat.Chat)
		chat.POST("/stream", h.Chat.Stream) // SSE
	}

	// 会话
	sessions := v1.Group("/sessions")
	{
		sessions.GET("", h.Sessions.List)
		sessions.GET("/:id", h.Sessions.Get)
		sessions.DELETE("/:id", h.Sessions.Delete)
	}
}
