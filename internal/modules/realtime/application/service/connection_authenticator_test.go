package service

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"Inkwell/internal/config"
	userEntity "Inkwell/internal/modules/user/domain/entity"
	"Inkwell/pkg/util/myjwt"
	"Inkwell/pkg/xerr"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUserRepo struct {
	users map[string]*userEntity.UserBrief
	err   error
}

func (s *stubUserRepo) GetUserBriefByUUID(uuid string) (*userEntity.UserBrief, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.users[uuid], nil
}

func (s *stubUserRepo) FindActiveUUIDsByRole(string) ([]string, error) { return nil, nil }

func newVerifier(t *testing.T, clock clockwork.Clock) *myjwt.Verifier {
	t.Helper()
	v, err := myjwt.NewVerifier(config.JwtConfig{Key: "test-key", ExpireHours: 1, Issuer: "inkwell"}, clock)
	require.NoError(t, err)
	return v
}

func TestExtractToken_Priority(t *testing.T) {
	a := NewConnectionAuthenticator(nil, nil)

	r := httptest.NewRequest("GET", "/notifications/ws?token=from-query", nil)
	assert.Equal(t, "from-query", a.ExtractToken(r))

	r.Header.Set("Sec-WebSocket-Protocol", "access_token, from-protocol")
	assert.Equal(t, "from-protocol", a.ExtractToken(r))

	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", a.ExtractToken(r))

	r = httptest.NewRequest("GET", "/notifications/ws", nil)
	r.Header.Set("Sec-WebSocket-Protocol", "chat")
	assert.Equal(t, "", a.ExtractToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", a.ExtractToken(r))
}

func TestAuthenticate(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	v := newVerifier(t, clock)
	repo := &stubUserRepo{users: map[string]*userEntity.UserBrief{
		"mod":    {Uuid: "mod", Username: "mod", Nickname: "审核员", Roles: "moderator,user", Status: userEntity.StatusActive},
		"bare":   {Uuid: "bare", Username: "bare", Status: userEntity.StatusActive},
		"banned": {Uuid: "banned", Username: "banned", Roles: "USER", Status: userEntity.StatusDisabled},
	}}
	a := NewConnectionAuthenticator(v, repo)
	ctx := context.Background()

	tok, err := v.GenerateToken("mod", "mod", []string{"USER"})
	require.NoError(t, err)
	p, err := a.Authenticate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "mod", p.UserID)
	assert.Equal(t, "审核员", p.DisplayName)
	assert.Equal(t, []string{"MODERATOR", "USER"}, p.Roles)

	tok, _ = v.GenerateToken("bare", "bare", []string{"user"})
	p, err = a.Authenticate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, []string{"USER"}, p.Roles)

	cases := map[string]string{
		"missing": "",
		"garbage": "not-a-jwt",
	}
	for name, raw := range cases {
		_, err := a.Authenticate(ctx, raw)
		assert.True(t, xerr.Is(err, xerr.Unauthorized), name)
	}

	tok, _ = v.GenerateToken("ghost", "ghost", nil)
	_, err = a.Authenticate(ctx, tok)
	assert.Equal(t, ErrUnknownUser, err)

	tok, _ = v.GenerateToken("banned", "banned", nil)
	_, err = a.Authenticate(ctx, tok)
	assert.Equal(t, ErrInactiveUser, err)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	v := newVerifier(t, clock)
	repo := &stubUserRepo{users: map[string]*userEntity.UserBrief{
		"u1": {Uuid: "u1", Username: "u1", Roles: "USER", Status: userEntity.StatusActive},
	}}
	a := NewConnectionAuthenticator(v, repo)

	tok, err := v.GenerateToken("u1", "u1", nil)
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	_, err = a.Authenticate(context.Background(), tok)
	assert.Equal(t, ErrInvalidToken, err)
}

func TestAuthenticate_LookupFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	v := newVerifier(t, clock)
	a := NewConnectionAuthenticator(v, &stubUserRepo{err: errors.New("db down")})

	tok, err := v.GenerateToken("u1", "u1", nil)
	require.NoError(t, err)
	_, err = a.Authenticate(context.Background(), tok)
	assert.True(t, xerr.Is(err, xerr.InternalServerError))
}
