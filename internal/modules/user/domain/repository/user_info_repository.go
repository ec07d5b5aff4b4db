package repository

import "Inkwell/internal/modules/user/domain/entity"

// UserInfoRepository 接口定义
type UserInfoRepository interface {
	// GetUserBriefByUUID 用户不存在时返回 nil, nil
	GetUserBriefByUUID(uuid string) (*entity.UserBrief, error)
	// FindActiveUUIDsByRole 持有指定角色的正常用户
	FindActiveUUIDsByRole(role string) ([]string, error)
}
