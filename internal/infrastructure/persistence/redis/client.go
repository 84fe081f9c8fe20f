// Package redis 提供 Redis 缓存、配额计数与限流实现
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"storyloom-ai-api/internal/config"
)

var tracer = otel.Tracer("redis")

const pingTimeout = 5 * time.Second

// Client 持有 go-redis 连接，缓存、配额、限流与消息流共用一个连接池
type Client struct {
	rdb *redis.Client
}

// NewClient 建立连接并确认可用
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(options(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", rdb.Options().Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

func options(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// NewClientFromRedis 包装已有连接（测试中传入 miniredis）
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Redis 返回底层连接，供 messaging 使用
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck 供 /ready 使用
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.HealthCheck")
	defer span.End()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis unhealthy: %w", err)
	}
	return nil
}

// IsNil key 不存在
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
