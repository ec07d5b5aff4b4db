package entity

import (
	"strings"
	"time"
)

// 角色
const (
	RoleAdmin     = "ADMIN"
	RoleModerator = "MODERATOR"
	RoleUser      = "USER"
)

// 账号状态
const (
	StatusActive   int8 = 0
	StatusDisabled int8 = 1
)

type UserInfo struct {
	Id        int64     `gorm:"column:id;primaryKey;comment:自增id"`
	Uuid      string    `gorm:"column:uuid;uniqueIndex;type:char(36);not null;comment:用户唯一id"`
	Username  string    `gorm:"column:username;uniqueIndex;type:varchar(32);not null;comment:用户名"`
	Nickname  string    `gorm:"column:nickname;type:varchar(32);comment:昵称"`
	Avatar    string    `gorm:"column:avatar;type:varchar(255);comment:头像"`
	Roles     string    `gorm:"column:roles;type:varchar(64);not null;default:USER;comment:角色，逗号分隔"`
	Status    int8      `gorm:"column:status;index;not null;default:0;comment:0正常 1禁用"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserInfo) TableName() string {
	return "user_info"
}

// UserBrief 推送与鉴权只需要的字段
type UserBrief struct {
	Uuid     string `gorm:"column:uuid"`
	Username string `gorm:"column:username"`
	Nickname string `gorm:"column:nickname"`
	Avatar   string `gorm:"column:avatar"`
	Roles    string `gorm:"column:roles"`
	Status   int8   `gorm:"column:status"`
}

func (b *UserBrief) IsActive() bool {
	return b != nil && b.Status == StatusActive
}

// DisplayName 昵称为空时退回用户名
func (b *UserBrief) DisplayName() string {
	if b == nil {
		return ""
	}
	if n := strings.TrimSpace(b.Nickname); n != "" {
		return n
	}
	return b.Username
}

func (b *UserBrief) RoleList() []string {
	return ParseRoles(b.Roles)
}

// ParseRoles 解析逗号分隔的角色串，统一大写
func ParseRoles(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// HasAnyRole 判断角色集合中是否包含任一目标角色
func HasAnyRole(roles []string, want ...string) bool {
	for _, r := range roles {
		for _, w := range want {
			if strings.EqualFold(r, w) {
				return true
			}
		}
	}
	return false
}
