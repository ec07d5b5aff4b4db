package jwt

import (
	"strings"

	userEntity "Inkwell/internal/modules/user/domain/entity"
	"Inkwell/pkg/back"
	"Inkwell/pkg/util/myjwt"
	"Inkwell/pkg/xerr"

	"github.com/gin-gonic/gin"
)

// TokenParser 由 myjwt.Verifier 实现
type TokenParser interface {
	ParseToken(raw string) (*myjwt.CustomClaims, error)
}

// Auth 校验 Bearer 令牌，将 uuid、username、roles 写入上下文
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			back.Error(c, xerr.Unauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := parser.ParseToken(tokenString)
		if err != nil {
			back.Error(c, xerr.Unauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set("uuid", claims.Uuid)
		c.Set("username", claims.Username)
		c.Set("roles", userEntity.ParseRoles(strings.Join(claims.Roles, ",")))
		c.Next()
	}
}

// RequireRole 需持有任一角色，须挂在 Auth 之后
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !userEntity.HasAnyRole(c.GetStringSlice("roles"), roles...) {
			back.Abort(c, xerr.ErrForbidden)
			return
		}
		c.Next()
	}
}
