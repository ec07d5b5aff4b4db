package repository

import (
	"time"

	"Inkwell/internal/modules/notification/domain/entity"
)

type NotificationRepository interface {
	Create(n *entity.Notification) error
	// FindByUUID 不存在时返回 nil, nil
	FindByUUID(uuid string) (*entity.Notification, error)
	ListByUser(userID string, unreadOnly bool, offset, limit int) ([]entity.Notification, int64, error)
	CountUnread(userID string) (int64, error)
	MarkAsRead(uuid string, at time.Time) error
	MarkAllAsRead(userID string, at time.Time) (int64, error)
	DeleteReadOlderThan(before time.Time) (int64, error)
}
