package persistence

import (
	"errors"
	"strings"

	"Inkwell/internal/modules/user/domain/entity"
	"Inkwell/internal/modules/user/domain/repository"

	"gorm.io/gorm"
)

type userInfoRepositoryImpl struct {
	db *gorm.DB
}

func NewUserInfoRepository(db *gorm.DB) repository.UserInfoRepository {
	return &userInfoRepositoryImpl{db: db}
}

func (r *userInfoRepositoryImpl) GetUserBriefByUUID(uuid string) (*entity.UserBrief, error) {
	var user entity.UserBrief
	err := r.db.Model(&entity.UserInfo{}).
		Select("uuid", "username", "nickname", "avatar", "roles", "status").
		Where("uuid = ?", uuid).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userInfoRepositoryImpl) FindActiveUUIDsByRole(role string) ([]string, error) {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" {
		return []string{}, nil
	}
	var uuids []string
	// roles 为逗号分隔串
	err := r.db.Model(&entity.UserInfo{}).
		Where("status = ? AND FIND_IN_SET(?, roles) > 0", entity.StatusActive, role).
		Order("id ASC").
		Pluck("uuid", &uuids).Error
	if err != nil {
		return nil, err
	}
	return uuids, nil
}
