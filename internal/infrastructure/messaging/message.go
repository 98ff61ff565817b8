// Package messaging 基于 Redis Streams 的资产事件投递
package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message 流中的消息信封，序列化后放在 data 字段
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	UserID    string            `json:"user_id"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func NewMessage(msgType, userID string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		UserID:    userID,
		Payload:   raw,
		CreatedAt: time.Now(),
	}, nil
}

func (m *Message) SetMetadata(key, value string) {
	if value == "" {
		return
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

func (m *Message) GetMetadata(key string) string {
	return m.Metadata[key]
}

func (m *Message) UnmarshalPayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Stream 流名称
type Stream string

const StreamAssetEvents Stream = "stream:asset:events"

// DLQStream 死信流
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

const (
	TypeAssetIngested = "asset.ingested"
	TypeAssetDeleted  = "asset.deleted"
)

// ConsumerGroup 消费者组
type ConsumerGroup string

const ConsumerGroupAssetJanitor ConsumerGroup = "cg-asset-janitor"

// AssetEventPayload asset.* 事件载荷
type AssetEventPayload struct {
	AssetID    string    `json:"asset_id"`
	UserID     string    `json:"user_id"`
	Kind       string    `json:"kind"`
	StorageURL string    `json:"storage_url"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// BackoffConfig 重试退避
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// Delay 第 attempt 次重投前的等待时间
func (c BackoffConfig) Delay(attempt int) time.Duration {
	d := c.Initial
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * c.Multiplier)
		if d >= c.Max {
			return c.Max
		}
	}
	return d
}
