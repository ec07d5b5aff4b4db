package persistence

import (
	"errors"
	"time"

	"Inkwell/internal/modules/content/domain/entity"
	"Inkwell/internal/modules/content/domain/moderation"
	"Inkwell/internal/modules/content/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type likeRepositoryImpl struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) repository.LikeRepository {
	return &likeRepositoryImpl{db: db}
}

func (r *likeRepositoryImpl) Toggle(userID string, kind moderation.Kind, targetID string, at time.Time) (bool, error) {
	liked := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing entity.Like
		err := tx.Where("user_id = ? AND target_type = ? AND target_id = ?", userID, string(kind), targetID).
			First(&existing).Error
		if err == nil {
			return tx.Delete(&existing).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		// 并发重复点赞命中唯一索引时按已点赞处理
		liked = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entity.Like{
			UserId:     userID,
			TargetType: string(kind),
			TargetId:   targetID,
			CreatedAt:  at,
		}).Error
	})
	if err != nil {
		return false, err
	}
	return liked, nil
}

func (r *likeRepositoryImpl) Count(kind moderation.Kind, targetID string) (int64, error) {
	var n int64
	err := r.db.Model(&entity.Like{}).
		Where("target_type = ? AND target_id = ?", string(kind), targetID).
		Count(&n).Error
	return n, err
}
