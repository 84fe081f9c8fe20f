// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"storyloom-ai-api/internal/interfaces/http/dto"
	"storyloom-ai-api/pkg/logger"
	"storyloom-ai-api/pkg/utils"
)

// UserIDHeader 未启用认证时（本地开发）用于指定调用者
const UserIDHeader = "X-User-ID"

// AuthConfig 认证配置
type AuthConfig struct {
	// Secret JWT 密钥
	Secret string
	// Issuer JWT 签发者
	Issuer string
	// SkipPaths 跳过认证的路径
	SkipPaths []string
	// Enabled 是否启用认证
	Enabled bool
}

// Auth 认证中间件：校验 Bearer AccessToken 并注入 user_id
func Auth(cfg AuthConfig) gin.HandlerFunc {
	jwtManager := utils.NewJWTManager(cfg.Secret, cfg.Issuer)

	return func(c *gin.Context) {
		if isSkipped(c.Request.URL.Path, cfg.SkipPaths) {
			c.Next()
			return
		}

		if !cfg.Enabled {
			if userID := strings.TrimSpace(c.GetHeader(UserIDHeader)); userID != "" {
				setUser(c, userID, "")
			}
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "invalid authorization format")
			return
		}

		claims, err := jwtManager.ParseToken(parts[1])
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, utils.ErrExpiredToken) {
				msg = "token expired"
			}
			abortUnauthorized(c, msg)
			return
		}

		// 确保是 AccessToken
		if claims.Type != utils.TokenTypeAccess {
			abortUnauthorized(c, "invalid token type")
			return
		}

		setUser(c, claims.UserID, claims.Role)
		c.Next()
	}
}

func setUser(c *gin.Context, userID, role string) {
	c.Set("user_id", userID)
	if role != "" {
		c.Set("role", role)
	}
	ctx := logger.WithContext(c.Request.Context(), logger.UserIDKey, userID)
	c.Request = c.Request.WithContext(ctx)
}

func isSkipped(path string, skipPaths []string) bool {
	for _, p := range skipPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// abortUnauthorized 终止请求并返回 401
func abortUnauthorized(c *gin.Context, msg string) {
	c.Abort()
	dto.Unauthorized(c, msg)
}

// DefaultSkipPaths 默认跳过认证的路径
var DefaultSkipPaths = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
}
