package ws

import (
	"encoding/json"
	"time"
)

// 出站事件类型
const (
	TypeConnected              = "connected"
	TypeHeartbeat              = "heartbeat"
	TypeNewNotification        = "newNotification"
	TypeModerationQueueUpdated = "moderationQueueUpdated"
	TypePong                   = "pong"
	TypeJoined                 = "joined"
	TypeLeft                   = "left"
	TypeNotificationMarkedRead = "notificationMarkedAsRead"
	TypeChannelBroadcast       = "channel_broadcast"
	TypeError                  = "error"
)

// Envelope 所有传输方式共用的出站消息结构
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewEnvelope 以给定时间构造 Envelope，时间统一为 UTC RFC3339
func NewEnvelope(typ string, data interface{}, at time.Time) Envelope {
	return Envelope{
		Type:      typ,
		Data:      data,
		Timestamp: FormatTime(at),
	}
}

// Encode 序列化，Timestamp 为空时用 at 补齐
func (e Envelope) Encode(at time.Time) ([]byte, error) {
	if e.Timestamp == "" {
		e.Timestamp = FormatTime(at)
	}
	return json.Marshal(e)
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
