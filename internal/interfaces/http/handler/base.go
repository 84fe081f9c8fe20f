package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"storyloom-ai-api/internal/application/quota"
	"storyloom-ai-api/internal/interfaces/http/dto"
	apperrors "storyloom-ai-api/pkg/errors"
	"storyloom-ai-api/pkg/logger"
)

// statusClientClosedRequest 客户端主动断开
const statusClientClosedRequest = 499

// currentUser 读取认证中间件注入的 user_id，缺失时返回 401
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		dto.Unauthorized(c, apperrors.ErrUnauthorized.Message)
		return "", false
	}
	return userID, true
}

// respondError 将应用错误映射为 HTTP 响应
func respondError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	if errors.Is(err, context.Canceled) {
		logger.Info(ctx, "request cancelled by client", "path", c.FullPath())
		dto.Error(c, statusClientClosedRequest, "request cancelled")
		return
	}

	var rle *quota.RateLimitExceededError
	if errors.As(err, &rle) {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(rle.RetryAfter)))
	}

	appErr := apperrors.AsAppError(err)
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	message := appErr.Message
	if status >= http.StatusInternalServerError {
		logger.Error(ctx, "request failed", err, "code", appErr.Code, "path", c.FullPath())
		if appErr.Code == apperrors.CodeUnknown {
			message = apperrors.ErrInternalError.Message
		}
	} else if appErr.Detail != "" {
		message += ": " + appErr.Detail
	}

	dto.ErrorWithCode(c, status, message, string(appErr.Code), appErr.Retryable)
}

// retryAfterSeconds 向上取整，至少 1 秒
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}
