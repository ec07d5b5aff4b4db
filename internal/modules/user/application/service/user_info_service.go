package service

import (
	"Inkwell/internal/modules/user/application/dto/respond"
	"Inkwell/internal/modules/user/domain/repository"
	"Inkwell/pkg/xerr"
	"Inkwell/pkg/zlog"

	"go.uber.org/zap"
)

// Presence 在线状态查询，由连接注册表提供
type Presence interface {
	IsUserOnline(userID string) bool
}

// UserInfoService 接口定义 (Application Service)
type UserInfoService interface {
	GetProfile(uuid string) (*respond.UserProfileRespond, error)
}

type userInfoServiceImpl struct {
	repo     repository.UserInfoRepository
	presence Presence
}

// NewUserInfoService 构造函数
func NewUserInfoService(repo repository.UserInfoRepository, presence Presence) UserInfoService {
	return &userInfoServiceImpl{repo: repo, presence: presence}
}

func (u *userInfoServiceImpl) GetProfile(uuid string) (*respond.UserProfileRespond, error) {
	if uuid == "" {
		return nil, xerr.ErrUnauthorized
	}
	user, err := u.repo.GetUserBriefByUUID(uuid)
	if err != nil {
		zlog.Error("get user brief failed", zap.String("uuid", uuid), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	if user == nil {
		return nil, xerr.New(xerr.NotFound, "用户不存在")
	}

	online := false
	if u.presence != nil {
		online = u.presence.IsUserOnline(uuid)
	}
	return &respond.UserProfileRespond{
		Uuid:        user.Uuid,
		Username:    user.Username,
		Nickname:    user.Nickname,
		DisplayName: user.DisplayName(),
		Avatar:      user.Avatar,
		Roles:       user.RoleList(),
		Status:      user.Status,
		Online:      online,
	}, nil
}
