package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"storyloom-ai-api/pkg/logger"
)

// AccessLog 请求日志中间件，5xx 记为 Warn
func AccessLog(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
			"user_id", c.GetString("user_id"),
			"body_size", c.Writer.Size(),
		}
		if c.Writer.Status() >= 500 {
			logger.Warn(c.Request.Context(), "api request failed", args...)
			return
		}
		logger.Info(c.Request.Context(), "api request", args...)
	}
}
