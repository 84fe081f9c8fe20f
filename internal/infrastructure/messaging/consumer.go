package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storyloom-ai-api/pkg/logger"
	"storyloom-ai-api/pkg/metrics"
)

const (
	readBatch        = 10
	pendingBatch     = 20
	minReclaimIdle   = 5 * time.Minute
	readErrorBackoff = time.Second
)

var errRetriesExhausted = errors.New("retry limit reached")

// MessageHandler 返回错误时消息留在 pending 中等待重试
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerConfig 消费者配置，零值字段使用默认值
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

// Consumer 消费者组中的一个成员
//
// 失败的消息不立即重投：每轮读取前检查自己名下的 pending，空闲时间超过退避间隔的重新处理；
// 每隔 ClaimInterval 认领其他成员长时间未确认的消息。投递次数达到 RetryLimit 后移入死信流。
type Consumer struct {
	client        *redis.Client
	stream        Stream
	group         ConsumerGroup
	consumerName  string
	blockTimeout  time.Duration
	claimInterval time.Duration
	reclaimIdle   time.Duration
	retryLimit    int
	backoff       BackoffConfig

	mu       sync.Mutex
	handlers map[string]MessageHandler
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}

	return &Consumer{
		client:        client,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumerName:  cfg.ConsumerName,
		blockTimeout:  cfg.BlockTimeout,
		claimInterval: cfg.ClaimInterval,
		reclaimIdle:   max(minReclaimIdle, 2*cfg.Backoff.Max),
		retryLimit:    cfg.RetryLimit,
		backoff:       cfg.Backoff,
		handlers:      make(map[string]MessageHandler),
	}
}

// RegisterHandler 同一类型重复注册时后者覆盖前者
func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

func (c *Consumer) handlerFor(msgType string) (MessageHandler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handlers[msgType]
	return h, ok
}

// Start 创建消费者组（已存在则忽略）并在后台开始消费
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("consumer %s already running", c.consumerName)
	}

	err := c.client.XGroupCreateMkStream(ctx, string(c.stream), string(c.group), "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", c.group, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(runCtx, c.done)
	return nil
}

// Stop 停止消费并等待当前消息处理完成
func (c *Consumer) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Consumer) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	log := logger.FromContext(ctx)
	log.Info("consumer started", "stream", c.stream, "group", c.group, "consumer", c.consumerName)
	defer log.Info("consumer stopped", "stream", c.stream, "consumer", c.consumerName)

	lastReclaim := time.Time{}
	for ctx.Err() == nil {
		c.sweepPending(ctx, false)
		if time.Since(lastReclaim) >= c.claimInterval {
			c.sweepPending(ctx, true)
			c.reportDeadLetters(ctx)
			lastReclaim = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    string(c.group),
			Consumer: c.consumerName,
			Streams:  []string{string(c.stream), ">"},
			Count:    readBatch,
			Block:    c.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			log.Error("failed to read from stream", "error", err, "stream", c.stream)
			select {
			case <-ctx.Done():
			case <-time.After(readErrorBackoff):
			}
			continue
		}

		for _, s := range streams {
			for _, xmsg := range s.Messages {
				c.handle(ctx, xmsg)
			}
		}
	}
}

// handle 处理一条消息：成功或无法处理时确认，失败时视投递次数决定重试或进入死信流
func (c *Consumer) handle(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "messaging.Handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.stream", string(c.stream)),
			attribute.String("messaging.stream_id", xmsg.ID),
		))
	defer span.End()

	msg, err := decodeMessage(xmsg.Values)
	if err != nil {
		span.RecordError(err)
		c.deadLetter(ctx, xmsg, err)
		return
	}
	ctx = messageContext(ctx, msg)
	span.SetAttributes(attribute.String("messaging.message_type", msg.Type))

	handler, ok := c.handlerFor(msg.Type)
	if !ok {
		logger.Warn(ctx, "no handler for message type, dropping", "type", msg.Type, "message_id", msg.ID)
		c.ack(ctx, xmsg.ID)
		return
	}

	if err := handler(ctx, msg); err != nil {
		span.RecordError(err)
		metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "error").Inc()

		deliveries := c.deliveryCount(ctx, xmsg.ID)
		if deliveries >= c.retryLimit {
			c.deadLetter(ctx, xmsg, err)
			return
		}
		logger.Warn(ctx, "message handler failed, will retry",
			"error", err, "message_id", msg.ID, "deliveries", deliveries)
		return
	}

	metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "success").Inc()
	c.ack(ctx, xmsg.ID)
}

// messageContext 恢复生产端的日志字段
func messageContext(ctx context.Context, msg *Message) context.Context {
	fields := []struct {
		key   logger.ContextKey
		value string
	}{
		{logger.UserIDKey, msg.UserID},
		{logger.StoryIDKey, msg.StoryID},
		{logger.RequestIDKey, msg.Meta(metaRequestID)},
		{logger.TraceIDKey, msg.Meta(metaTraceID)},
		{logger.AIKindKey, msg.Meta(metaKind)},
	}
	for _, f := range fields {
		if f.value != "" {
			ctx = logger.WithContext(ctx, f.key, f.value)
		}
	}
	return ctx
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, string(c.stream), string(c.group), id).Err(); err != nil {
		logger.Error(ctx, "failed to ack message", err, "stream_id", id)
	}
}

// deliveryCount 读取 XPENDING 中的投递次数，查询失败按 0 处理
func (c *Consumer) deliveryCount(ctx context.Context, id string) int {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.stream),
		Group:  string(c.group),
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 0
	}
	return int(pending[0].RetryCount)
}

// deadLetter 原样转存消息体到死信流后确认原消息；转存失败时保留 pending，下轮再试
func (c *Consumer) deadLetter(ctx context.Context, xmsg redis.XMessage, cause error) {
	body, _ := xmsg.Values[streamField].(string)
	err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream.DLQStream(),
		Values: map[string]any{
			"original_stream": string(c.stream),
			"stream_id":       xmsg.ID,
			streamField:       body,
			"error":           cause.Error(),
			"failed_at":       time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		logger.Error(ctx, "failed to move message to DLQ", err, "stream_id", xmsg.ID)
		return
	}

	logger.Warn(ctx, "message moved to DLQ", "stream_id", xmsg.ID, "cause", cause.Error())
	metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "dlq").Inc()
	c.ack(ctx, xmsg.ID)
}

// sweepPending 重新处理到期的 pending 消息
// others 为 false 时只看自己名下的（按退避间隔），为 true 时认领其他成员空闲超过 reclaimIdle 的
func (c *Consumer) sweepPending(ctx context.Context, others bool) {
	args := &redis.XPendingExtArgs{
		Stream: string(c.stream),
		Group:  string(c.group),
		Start:  "-",
		End:    "+",
		Count:  pendingBatch,
	}
	if !others {
		args.Consumer = c.consumerName
	}
	pending, err := c.client.XPendingExt(ctx, args).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			logger.Error(ctx, "failed to list pending messages", err, "stream", string(c.stream))
		}
		return
	}

	for _, p := range pending {
		own := p.Consumer == c.consumerName
		if others == own {
			continue
		}

		exhausted := int(p.RetryCount) >= c.retryLimit
		minIdle := c.reclaimIdle
		if own {
			minIdle = c.backoff.CalculateBackoff(int(p.RetryCount))
			if exhausted {
				minIdle = 0
			}
		}
		if p.Idle < minIdle {
			continue
		}

		claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   string(c.stream),
			Group:    string(c.group),
			Consumer: c.consumerName,
			MinIdle:  minIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			logger.Error(ctx, "failed to claim pending message", err, "stream_id", p.ID)
			continue
		}
		for _, xmsg := range claimed {
			if exhausted {
				c.deadLetter(ctx, xmsg, errRetriesExhausted)
				continue
			}
			c.handle(ctx, xmsg)
		}
	}
}

func (c *Consumer) reportDeadLetters(ctx context.Context) {
	n, err := c.client.XLen(ctx, c.stream.DLQStream()).Result()
	if err != nil || n == 0 {
		return
	}
	logger.Warn(ctx, "dead letter stream is not empty", "stream", c.stream.DLQStream(), "count", n)
}
