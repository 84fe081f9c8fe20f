package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storyloom-ai-api/internal/config"
)

var (
	defaultCORSMethods = []string{"GET", "POST", "OPTIONS"}
	defaultCORSHeaders = []string{"Origin", "Content-Type", "Authorization", RequestIDHeader, UserIDHeader}
	// Retry-After 需要暴露给浏览器端，前端据此提示配额重置时间
	corsExposeHeaders = []string{RequestIDHeader, TraceIDHeader, "Retry-After"}
)

// CORS 跨域中间件，未配置的项使用默认值
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowOrigins:     orDefault(cfg.AllowedOrigins, []string{"*"}),
		AllowMethods:     orDefault(cfg.AllowedMethods, defaultCORSMethods),
		AllowHeaders:     orDefault(cfg.AllowedHeaders, defaultCORSHeaders),
		ExposeHeaders:    corsExposeHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	return cors.New(cc)
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
