package router

import (
	"github.com/gin-gonic/gin"

	"z-novel-copilot/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, assistantHandler *handler.AssistantHandler) {
	assistant := v1.Group("/assistant")
	{
		// 检索助手
		assistant.POST("/search", assistantHandler.Search)

		// 指令提取（无状态）
		assistant.POST("/directives/extract", assistantHandler.ExtractDirective)

		// 主编会话
		sessions := assistant.Group("/sessions")
		{
			sessions.POST("", assistantHandler.CreateSession)
			sessions.DELETE("/:sid", assistantHandler.DeleteSession)
			sessions.GET("/:sid/messages", assistantHandler.ListMessages)
			sessions.POST("/:sid/review", assistantHandler.Review)     // SSE
			sessions.POST("/:sid/dialogue", assistantHandler.Dialogue) // SSE
			sessions.POST("/:sid/directives", assistantHandler.ApplyDirective)
		}
	}
}
