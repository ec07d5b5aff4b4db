package entity

import "time"

// Like 用户对已公开内容的点赞，同一用户对同一内容至多一条
type Like struct {
	Id         int64     `gorm:"column:id;primaryKey;comment:自增id"`
	UserId     string    `gorm:"column:user_id;type:char(36);not null;uniqueIndex:uk_like_user_target,priority:1"`
	TargetType string    `gorm:"column:target_type;type:varchar(16);not null;uniqueIndex:uk_like_user_target,priority:2;index:idx_like_target,priority:1"`
	TargetId   string    `gorm:"column:target_id;type:char(36);not null;uniqueIndex:uk_like_user_target,priority:3;index:idx_like_target,priority:2"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (Like) TableName() string { return "content_like" }
