package service

import (
	"context"
	"net/http"
	"strings"

	userEntity "Inkwell/internal/modules/user/domain/entity"
	userRepository "Inkwell/internal/modules/user/domain/repository"
	"Inkwell/pkg/util/myjwt"
	"Inkwell/pkg/xerr"
	"Inkwell/pkg/zlog"

	"go.uber.org/zap"
)

// SubprotocolAuth 浏览器无法自定义握手头时，令牌放在 Sec-WebSocket-Protocol: access_token, <jwt>
const SubprotocolAuth = "access_token"

var (
	ErrMissingToken = xerr.New(xerr.Unauthorized, "缺少访问令牌")
	ErrInvalidToken = xerr.New(xerr.Unauthorized, "访问令牌无效或已过期")
	ErrUnknownUser  = xerr.New(xerr.Unauthorized, "用户不存在")
	ErrInactiveUser = xerr.New(xerr.Unauthorized, "用户已被禁用")
)

// TokenVerifier 由 myjwt.Verifier 实现
type TokenVerifier interface {
	ParseToken(raw string) (*myjwt.CustomClaims, error)
}

// Principal 通过认证的连接身份
type Principal struct {
	UserID      string
	Username    string
	DisplayName string
	Roles       []string
}

type ConnectionAuthenticator interface {
	ExtractToken(r *http.Request) string
	Authenticate(ctx context.Context, raw string) (*Principal, error)
}

type connectionAuthenticatorImpl struct {
	verifier TokenVerifier
	userRepo userRepository.UserInfoRepository
}

func NewConnectionAuthenticator(verifier TokenVerifier, userRepo userRepository.UserInfoRepository) ConnectionAuthenticator {
	return &connectionAuthenticatorImpl{verifier: verifier, userRepo: userRepo}
}

// ExtractToken 依次取 Authorization: Bearer、Sec-WebSocket-Protocol、?token=
func (a *connectionAuthenticatorImpl) ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); tok != "" {
			return tok
		}
	}
	if tok := tokenFromSubprotocol(r.Header.Values("Sec-WebSocket-Protocol")); tok != "" {
		return tok
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func tokenFromSubprotocol(values []string) string {
	var parts []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
	}
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == SubprotocolAuth {
			return parts[i+1]
		}
	}
	return ""
}

// Authenticate 校验令牌并确认用户仍处于正常状态，角色以用户记录为准
func (a *connectionAuthenticatorImpl) Authenticate(ctx context.Context, raw string) (*Principal, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}
	claims, err := a.verifier.ParseToken(raw)
	if err != nil {
		zlog.Debug("parse token failed", zap.Error(err))
		return nil, ErrInvalidToken
	}

	user, err := a.userRepo.GetUserBriefByUUID(claims.Uuid)
	if err != nil {
		zlog.Error("load user for connection failed", zap.String("uuid", claims.Uuid), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	if user == nil {
		return nil, ErrUnknownUser
	}
	if !user.IsActive() {
		return nil, ErrInactiveUser
	}

	roles := user.RoleList()
	if len(roles) == 0 {
		roles = userEntity.ParseRoles(strings.Join(claims.Roles, ","))
	}
	return &Principal{
		UserID:      user.Uuid,
		Username:    user.Username,
		DisplayName: user.DisplayName(),
		Roles:       roles,
	}, nil
}
