// Package logger 提供结构化日志功能
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

// ContextKey 用于从 context 中提取值的键类型
type ContextKey string

// 预定义的 context 键
const (
	TraceIDKey   ContextKey = "trace_id"
	SpanIDKey    ContextKey = "span_id"
	RequestIDKey ContextKey = "request_id"
	UserIDKey    ContextKey = "user_id"
	StoryIDKey   ContextKey = "story_id"
	AIKindKey    ContextKey = "ai_kind"
)

// contextKeys FromContext 注入日志的键，顺序即输出顺序
var contextKeys = []ContextKey{TraceIDKey, SpanIDKey, RequestIDKey, UserIDKey, StoryIDKey, AIKindKey}

var defaultLogger atomic.Pointer[slog.Logger]

// Init 初始化日志器（输出到 stdout）
func Init(level string, format string) {
	InitWithWriter(os.Stdout, level, format)
}

// InitWithWriter 初始化日志器并指定输出，同时替换 slog 默认日志器
func InitWithWriter(w io.Writer, level string, format string) {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler)
	defaultLogger.Store(l)
	slog.SetDefault(l)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default 未初始化时退回 slog 默认日志器
func Default() *slog.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// FromContext 返回附带 ctx 中 trace/request/user 等字段的日志器
func FromContext(ctx context.Context) *slog.Logger {
	l := Default()
	if ctx == nil {
		return l
	}
	var attrs []any
	for _, key := range contextKeys {
		if v := ctx.Value(key); v != nil {
			attrs = append(attrs, string(key), v)
		}
	}
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

// WithContext 将日志字段写入 context
func WithContext(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

func Info(ctx context.Context, msg string, args ...any) {
	write(ctx, slog.LevelInfo, msg, args)
}

func Debug(ctx context.Context, msg string, args ...any) {
	write(ctx, slog.LevelDebug, msg, args)
}

func Warn(ctx context.Context, msg string, args ...any) {
	write(ctx, slog.LevelWarn, msg, args)
}

// Error err 以 error 字段输出
func Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	write(ctx, slog.LevelError, msg, args)
}

// Fatal 记录错误后退出进程
func Fatal(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	write(ctx, slog.LevelError, msg, args)
	os.Exit(1)
}

// write 跳过本包的调用栈，source 字段指向真正的调用方
func write(ctx context.Context, level slog.Level, msg string, args []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	l := FromContext(ctx)
	if !l.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // Callers, write, 导出函数
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.Handler().Handle(ctx, r)
}
