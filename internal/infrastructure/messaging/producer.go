package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/pkg/logger"
)

var tracer = otel.Tracer("messaging")

const defaultStreamMaxLen = 100000

// Producer 向 Redis Stream 追加消息，流长度近似裁剪到 maxLen
type Producer struct {
	client *redis.Client
	maxLen int64
}

func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &Producer{client: client, maxLen: maxLen}
}

// Publish 返回 Redis 分配的流 ID
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "messaging.Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.stream", string(stream)),
			attribute.String("messaging.message_type", msg.Type),
		))
	defer span.End()

	body, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("marshal message: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{streamField: string(body)},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}

// PublishCostEntry 以流水 ID 作为消息 ID，消费端按此去重
func (p *Producer) PublishCostEntry(ctx context.Context, entry *entity.CostLedgerEntry) (string, error) {
	msg, err := NewMessage(entry.ID, MessageTypeCostEntry, entry.UserID, entry.StoryID, entry)
	if err != nil {
		return "", err
	}
	msg.SetMeta(metaKind, string(entry.Kind))
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		msg.SetMeta(metaRequestID, reqID)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		msg.SetMeta(metaTraceID, sc.TraceID().String())
	}
	return p.Publish(ctx, StreamAICost, msg)
}
