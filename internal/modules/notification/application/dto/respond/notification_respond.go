package respond

import (
	"time"

	"Inkwell/internal/modules/notification/domain/entity"
)

// NotificationRespond 推送与拉取共用的通知结构
type NotificationRespond struct {
	Id          string                 `json:"id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	RelatedId   string                 `json:"relatedId,omitempty"`
	RelatedType string                 `json:"relatedType,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	IsRead      bool                   `json:"isRead"`
	ReadAt      *string                `json:"readAt,omitempty"`
	CreatedAt   string                 `json:"createdAt"`
}

func FromEntity(n *entity.Notification) NotificationRespond {
	r := NotificationRespond{
		Id:          n.Uuid,
		Type:        n.Type,
		Title:       n.Title,
		Message:     n.Message,
		RelatedId:   n.RelatedId,
		RelatedType: n.RelatedType,
		Metadata:    n.Metadata,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt.UTC().Format(time.RFC3339),
	}
	if n.ReadAt != nil {
		s := n.ReadAt.UTC().Format(time.RFC3339)
		r.ReadAt = &s
	}
	return r
}

type NotificationListRespond struct {
	List        []NotificationRespond `json:"list"`
	Total       int64                 `json:"total"`
	UnreadCount int64                 `json:"unreadCount"`
	Page        int                   `json:"page"`
	PageSize    int                   `json:"pageSize"`
}

type UnreadCountRespond struct {
	UnreadCount int64 `json:"unreadCount"`
}

type MarkAllRespond struct {
	Updated int64 `json:"updated"`
}
