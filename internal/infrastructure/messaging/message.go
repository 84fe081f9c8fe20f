// Package messaging 提供基于 Redis Stream 的消息队列实现
package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stream 流名称
type Stream string

// StreamAICost 成本流水，由 job-worker 落库
const StreamAICost Stream = "stream:ai:cost"

// DLQStream 对应的死信流
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费者组
type ConsumerGroup string

const ConsumerGroupLedgerWriter ConsumerGroup = "cg-ledger-writer"

// WithPrefix 按部署环境为消费者组加前缀
func (g ConsumerGroup) WithPrefix(prefix string) ConsumerGroup {
	if prefix == "" {
		return g
	}
	return ConsumerGroup(prefix + string(g))
}

// MessageTypeCostEntry 载荷为 entity.CostLedgerEntry
const MessageTypeCostEntry = "ai_cost_entry"

// 元数据键
const (
	metaKind      = "kind"
	metaRequestID = "request_id"
	metaTraceID   = "trace_id"
)

// streamField 消息体在 XADD 中的字段名
const streamField = "data"

// Message 流中的消息信封
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	StoryID   string            `json:"story_id,omitempty"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 序列化载荷并生成信封
func NewMessage(id, msgType, userID, storyID string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return &Message{
		ID:        id,
		Type:      msgType,
		UserID:    userID,
		StoryID:   storyID,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// SetMeta 空值不写入
func (m *Message) SetMeta(key, value string) {
	if value == "" {
		return
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]string, 3)
	}
	m.Metadata[key] = value
}

func (m *Message) Meta(key string) string {
	return m.Metadata[key]
}

// UnmarshalPayload 解析载荷
func (m *Message) UnmarshalPayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// decodeMessage 从 XREADGROUP/XCLAIM 的结果中取出信封
func decodeMessage(values map[string]any) (*Message, error) {
	raw, ok := values[streamField].(string)
	if !ok {
		return nil, fmt.Errorf("missing %q field", streamField)
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}
