// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storyloom-ai-api/pkg/tracer"
)

// Response 统一成功响应结构
type Response[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Cached  bool `json:"cached"`
}

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// Success 返回成功响应
func Success[T any](c *gin.Context, data T, cached bool) {
	c.JSON(http.StatusOK, Response[T]{
		Success: true,
		Data:    data,
		Cached:  cached,
	})
}

// Error 返回错误响应
func Error(c *gin.Context, httpCode int, message string) {
	c.JSON(httpCode, ErrorResponse{
		Error:   message,
		TraceID: traceID(c),
	})
}

// ErrorWithCode 返回带错误码的错误响应
func ErrorWithCode(c *gin.Context, httpCode int, message, code string, retryable bool) {
	c.JSON(httpCode, ErrorResponse{
		Error:     message,
		Code:      code,
		Retryable: retryable,
		TraceID:   traceID(c),
	})
}

// BadRequest 返回 400 错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 返回 401 错误
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// InternalError 返回 500 错误
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

func traceID(c *gin.Context) string {
	if id := c.GetString("trace_id"); id != "" {
		return id
	}
	if c.Request == nil {
		return ""
	}
	return tracer.TraceID(c.Request.Context())
}
