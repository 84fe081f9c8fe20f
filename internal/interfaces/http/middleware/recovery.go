package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"storyloom-ai-api/internal/interfaces/http/dto"
	apperrors "storyloom-ai-api/pkg/errors"
	"storyloom-ai-api/pkg/logger"
)

// Recovery 捕获 handler 中的 panic，按统一错误体返回 500
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered", fmt.Errorf("%v", rec),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"stack", string(debug.Stack()),
			)

			c.Abort()
			dto.ErrorWithCode(c, apperrors.ErrInternalError.HTTPStatus,
				apperrors.ErrInternalError.Message, string(apperrors.CodeInternalError), false)
		}()

		c.Next()
	}
}
