package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"Inkwell/internal/modules/content/domain/entity"
	"Inkwell/internal/modules/content/domain/moderation"
	notificationService "Inkwell/internal/modules/notification/application/service"
	notificationEntity "Inkwell/internal/modules/notification/domain/entity"
	userEntity "Inkwell/internal/modules/user/domain/entity"
	"Inkwell/pkg/ws"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type fakeContentRepo struct {
	items     map[string]entity.Moderatable
	createErr error
	findErr   error
	saveErr   error
	// stale 模拟并发修改：条件更新影响 0 行
	stale bool
	saves int
}

func newFakeContentRepo() *fakeContentRepo {
	return &fakeContentRepo{items: map[string]entity.Moderatable{}}
}

func key(kind moderation.Kind, id string) string { return string(kind) + ":" + id }

func clone(m entity.Moderatable) entity.Moderatable {
	switch v := m.(type) {
	case *entity.Article:
		cp := *v
		return &cp
	case *entity.Project:
		cp := *v
		return &cp
	case *entity.Comment:
		cp := *v
		return &cp
	}
	panic("unknown moderatable")
}

func (f *fakeContentRepo) put(m entity.Moderatable) {
	f.items[key(m.ModerationKind(), m.EntityID())] = clone(m)
}

func (f *fakeContentRepo) get(kind moderation.Kind, id string) entity.Moderatable {
	return f.items[key(kind, id)]
}

func (f *fakeContentRepo) create(m entity.Moderatable) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.put(m)
	return nil
}

func (f *fakeContentRepo) CreateArticle(a *entity.Article) error { return f.create(a) }
func (f *fakeContentRepo) CreateProject(p *entity.Project) error { return f.create(p) }
func (f *fakeContentRepo) CreateComment(c *entity.Comment) error { return f.create(c) }

func (f *fakeContentRepo) FindModeratable(kind moderation.Kind, uuid string) (entity.Moderatable, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	m, ok := f.items[key(kind, uuid)]
	if !ok {
		return nil, nil
	}
	return clone(m), nil
}

func (f *fakeContentRepo) SaveTransition(item entity.Moderatable, from moderation.Status) (bool, error) {
	return f.conditionalSave(item, from)
}

func (f *fakeContentRepo) SaveEdit(item entity.Moderatable, from moderation.Status) (bool, error) {
	return f.conditionalSave(item, from)
}

func (f *fakeContentRepo) conditionalSave(item entity.Moderatable, from moderation.Status) (bool, error) {
	if f.saveErr != nil {
		return false, f.saveErr
	}
	stored, ok := f.items[key(item.ModerationKind(), item.EntityID())]
	if f.stale || !ok || stored.ModerationState().Status != from {
		return false, nil
	}
	f.saves++
	f.put(item)
	return true, nil
}

func (f *fakeContentRepo) ListByStatus(kind moderation.Kind, status moderation.Status, offset, limit int) ([]entity.Moderatable, int64, error) {
	var all []entity.Moderatable
	for _, m := range f.items {
		if m.ModerationKind() == kind && m.ModerationState().Status == status {
			all = append(all, clone(m))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].EntityID() < all[j].EntityID() })
	total := int64(len(all))
	if offset >= len(all) {
		return []entity.Moderatable{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

type fakeUserRepo struct {
	users map[string]*userEntity.UserBrief
}

func newFakeUserRepo(users ...*userEntity.UserBrief) *fakeUserRepo {
	f := &fakeUserRepo{users: map[string]*userEntity.UserBrief{}}
	for _, u := range users {
		f.users[u.Uuid] = u
	}
	return f
}

func (f *fakeUserRepo) GetUserBriefByUUID(uuid string) (*userEntity.UserBrief, error) {
	if uuid == "broken" {
		return nil, errors.New("db down")
	}
	return f.users[uuid], nil
}

func (f *fakeUserRepo) FindActiveUUIDsByRole(role string) ([]string, error) {
	var out []string
	for id, u := range f.users {
		if u.IsActive() && userEntity.HasAnyRole(u.RoleList(), role) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

type ownerCall struct {
	userID string
	ev     notificationEntity.Event
}

type roleCall struct {
	role string
	ev   notificationEntity.Event
}

type fakeNotifier struct {
	owner      []ownerCall
	roles      []roleCall
	ownerRes   notificationService.EmitResult
	roleResult notificationService.RoleEmitResult
}

func (n *fakeNotifier) EmitOwnerNotification(_ context.Context, userID string, ev notificationEntity.Event) notificationService.EmitResult {
	n.owner = append(n.owner, ownerCall{userID: userID, ev: ev})
	return n.ownerRes
}

func (n *fakeNotifier) EmitRoleNotification(_ context.Context, role string, ev notificationEntity.Event) notificationService.RoleEmitResult {
	n.roles = append(n.roles, roleCall{role: role, ev: ev})
	return n.roleResult
}

type groupCall struct {
	group string
	env   ws.Envelope
}

type roleDispatch struct {
	roles []string
	env   ws.Envelope
}

type fakeBroadcaster struct {
	roleCalls  []roleDispatch
	groupCalls []groupCall
}

func (b *fakeBroadcaster) DispatchToRoles(roles []string, env ws.Envelope) int {
	b.roleCalls = append(b.roleCalls, roleDispatch{roles: roles, env: env})
	return 0
}

func (b *fakeBroadcaster) DispatchToGroup(group string, env ws.Envelope) int {
	b.groupCalls = append(b.groupCalls, groupCall{group: group, env: env})
	return 0
}

type fakeRecorder struct {
	decisions []string
}

func (r *fakeRecorder) ModerationDecided(kind, status string) {
	r.decisions = append(r.decisions, kind+"/"+status)
}

// captureHandle 记录收到的帧
type captureHandle struct {
	mu   sync.Mutex
	kind ws.TransportKind
	msgs [][]byte
}

func (h *captureHandle) Send(msg []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
	return true
}

func (h *captureHandle) Close() {}

func (h *captureHandle) Kind() ws.TransportKind { return h.kind }

func (h *captureHandle) envelopes(t *testing.T) []ws.Envelope {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ws.Envelope, 0, len(h.msgs))
	for _, m := range h.msgs {
		var env ws.Envelope
		require.NoError(t, json.Unmarshal(m, &env))
		out = append(out, env)
	}
	return out
}

func user(id, nickname string, roles string) *userEntity.UserBrief {
	return &userEntity.UserBrief{
		Uuid:     id,
		Username: "user_" + id,
		Nickname: nickname,
		Roles:    roles,
		Status:   userEntity.StatusActive,
	}
}

func pendingArticle(id, author string) *entity.Article {
	return &entity.Article{
		Uuid:      id,
		AuthorId:  author,
		Title:     "Go 并发模式",
		Content:   "channel 与 select",
		State:     moderation.NewState(),
		CreatedAt: fixedNow.Add(-time.Hour),
		UpdatedAt: fixedNow.Add(-time.Hour),
	}
}
