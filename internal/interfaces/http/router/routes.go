package router

import (
	"github.com/gin-gonic/gin"

	"storyloom-ai-api/internal/interfaces/http/handler"
)

// RegisterAIRoutes 注册 AI 能力路由
func RegisterAIRoutes(g *gin.RouterGroup, h *handler.AIHandler) {
	// 角色一致性
	consistency := g.Group("/consistency")
	{
		consistency.POST("", h.Consistency)
		consistency.GET("/report", h.ConsistencyReport)
	}

	// 文本生成
	g.POST("/enhance", h.Enhance)
	g.POST("/summary", h.Summary)
	g.POST("/style-transfer", h.StyleTransfer)

	// 图片生成
	g.POST("/avatar", h.Avatar)
	g.POST("/cover-art", h.CoverArt)

	// 用量
	g.GET("/usage", h.Usage)
}
