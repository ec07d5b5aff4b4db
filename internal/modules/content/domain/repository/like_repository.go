package repository

import (
	"time"

	"Inkwell/internal/modules/content/domain/moderation"
)

type LikeRepository interface {
	// Toggle 已点赞则取消，否则新增；返回切换后的状态
	Toggle(userID string, kind moderation.Kind, targetID string, at time.Time) (bool, error)
	Count(kind moderation.Kind, targetID string) (int64, error)
}
