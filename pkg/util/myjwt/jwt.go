package myjwt

import (
	"errors"
	"time"

	"Inkwell/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

var (
	ErrEmptyKey     = errors.New("jwt key is empty")
	ErrInvalidToken = errors.New("invalid token")
)

type CustomClaims struct {
	Uuid     string   `json:"uuid"`
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Verifier 签发与校验 HS256 令牌
type Verifier struct {
	key    []byte
	issuer string
	expire time.Duration
	clock  clockwork.Clock
}

func NewVerifier(conf config.JwtConfig, clock clockwork.Clock) (*Verifier, error) {
	if conf.Key == "" {
		return nil, ErrEmptyKey
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	expireHours := conf.ExpireHours
	if expireHours <= 0 {
		expireHours = 24
	}
	return &Verifier{
		key:    []byte(conf.Key),
		issuer: conf.Issuer,
		expire: time.Duration(expireHours) * time.Hour,
		clock:  clock,
	}, nil
}

func (v *Verifier) GenerateToken(uuid, username string, roles []string) (string, error) {
	now := v.clock.Now()
	claims := CustomClaims{
		Uuid:     uuid,
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(v.expire)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    v.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.key)
}

// ParseToken 校验签名与有效期，返回声明
func (v *Verifier) ParseToken(tokenString string) (*CustomClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.key, nil
	}, jwt.WithTimeFunc(v.clock.Now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.Uuid == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
