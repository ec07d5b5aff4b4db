package persistence

import (
	"errors"
	"time"

	"Inkwell/internal/modules/notification/domain/entity"
	"Inkwell/internal/modules/notification/domain/repository"

	"gorm.io/gorm"
)

type notificationRepositoryImpl struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) repository.NotificationRepository {
	return &notificationRepositoryImpl{db: db}
}

func (r *notificationRepositoryImpl) Create(n *entity.Notification) error {
	return r.db.Create(n).Error
}

func (r *notificationRepositoryImpl) FindByUUID(uuid string) (*entity.Notification, error) {
	var n entity.Notification
	err := r.db.Where("uuid = ?", uuid).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepositoryImpl) ListByUser(userID string, unreadOnly bool, offset, limit int) ([]entity.Notification, int64, error) {
	q := r.db.Model(&entity.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []entity.Notification
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *notificationRepositoryImpl) CountUnread(userID string) (int64, error) {
	var n int64
	err := r.db.Model(&entity.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

func (r *notificationRepositoryImpl) MarkAsRead(uuid string, at time.Time) error {
	return r.db.Model(&entity.Notification{}).
		Where("uuid = ? AND is_read = ?", uuid, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at}).Error
}

func (r *notificationRepositoryImpl) MarkAllAsRead(userID string, at time.Time) (int64, error) {
	res := r.db.Model(&entity.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

// DeleteReadOlderThan 删除已读且早于 before 的通知
func (r *notificationRepositoryImpl) DeleteReadOlderThan(before time.Time) (int64, error) {
	res := r.db.Where("is_read = ? AND created_at < ?", true, before).
		Delete(&entity.Notification{})
	return res.RowsAffected, res.Error
}
