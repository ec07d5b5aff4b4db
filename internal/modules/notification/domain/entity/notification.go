package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Metadata 通知附加信息，以 JSON 存储
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("notification metadata: unsupported scan type")
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	out := Metadata{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// Notification 持久化的通知记录，拉取接口以此为准
type Notification struct {
	Id          int64      `gorm:"column:id;primaryKey;comment:自增id"`
	Uuid        string     `gorm:"column:uuid;uniqueIndex;type:char(36);not null;comment:通知id"`
	UserId      string     `gorm:"column:user_id;type:char(36);not null;index:idx_notification_user_read,priority:1;comment:接收人"`
	Type        string     `gorm:"column:type;type:varchar(32);not null;comment:通知类型"`
	Title       string     `gorm:"column:title;type:varchar(128);not null"`
	Message     string     `gorm:"column:message;type:varchar(1000)"`
	RelatedId   string     `gorm:"column:related_id;type:char(36);index"`
	RelatedType string     `gorm:"column:related_type;type:varchar(16)"`
	Metadata    Metadata   `gorm:"column:metadata;type:json"`
	IsRead      bool       `gorm:"column:is_read;not null;default:false;index:idx_notification_user_read,priority:2"`
	ReadAt      *time.Time `gorm:"column:read_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;index"`
}

func (Notification) TableName() string {
	return "notification"
}
