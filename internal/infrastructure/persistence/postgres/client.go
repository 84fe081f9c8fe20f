// Package postgres 提供 PostgreSQL 数据库访问层实现
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"storyloom-ai-api/internal/config"
)

var tracer = otel.Tracer("postgres")

const (
	slowQueryThreshold = 500 * time.Millisecond
	connectTimeout     = 5 * time.Second
)

// Client 包装 gorm 连接
type Client struct {
	db *gorm.DB
}

// NewClient 打开连接池并 ping 一次
func NewClient(cfg *config.PostgresConfig) (*Client, error) {
	db, err := gorm.Open(postgres.Open(buildDSN(cfg)), &gorm.Config{
		Logger: newGormLogger(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Client{db: db}, nil
}

// NewClientFromDB 包装已打开的连接（测试中传入 sqlite）
func NewClientFromDB(db *gorm.DB) *Client {
	return &Client{db: db}
}

func (c *Client) DB() *gorm.DB {
	return c.db
}

func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck 供 /ready 使用
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "postgres.HealthCheck")
	defer span.End()

	sqlDB, err := c.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("postgres unhealthy: %w", err)
	}
	return nil
}

// buildDSN 会话时区固定为 UTC，配额按 UTC 日期切分
func buildDSN(cfg *config.PostgresConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode)
}

// slogWriter 把 gorm 的日志行转给 slog
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Default().Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "gorm")
}

func newGormLogger(level string) gormlogger.Interface {
	return gormlogger.New(slogWriter{}, gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  parseLogLevel(level),
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})
}

func parseLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
