package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"Inkwell/internal/modules/notification/application/dto/request"
	"Inkwell/internal/modules/notification/application/dto/respond"
	"Inkwell/internal/modules/notification/domain/entity"
	"Inkwell/internal/modules/notification/infrastructure/mq"
	userEntity "Inkwell/internal/modules/user/domain/entity"
	"Inkwell/pkg/ws"
	"Inkwell/pkg/xerr"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotificationRepo struct {
	records   map[string]*entity.Notification
	order     []string
	createErr error
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{records: map[string]*entity.Notification{}}
}

// Create 经过 Metadata 的 Value/Scan，模拟落库再读出
func (f *fakeNotificationRepo) Create(n *entity.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	stored := *n
	v, err := n.Metadata.Value()
	if err != nil {
		return err
	}
	var meta entity.Metadata
	if err := meta.Scan(v); err != nil {
		return err
	}
	stored.Metadata = meta
	f.records[n.Uuid] = &stored
	f.order = append(f.order, n.Uuid)
	return nil
}

func (f *fakeNotificationRepo) FindByUUID(uuid string) (*entity.Notification, error) {
	n, ok := f.records[uuid]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNotificationRepo) forUser(userID string, unreadOnly bool) []entity.Notification {
	var out []entity.Notification
	for _, id := range f.order {
		n := f.records[id]
		if n == nil || n.UserId != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, *n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeNotificationRepo) ListByUser(userID string, unreadOnly bool, offset, limit int) ([]entity.Notification, int64, error) {
	all := f.forUser(userID, unreadOnly)
	total := int64(len(all))
	if offset >= len(all) {
		return []entity.Notification{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (f *fakeNotificationRepo) CountUnread(userID string) (int64, error) {
	return int64(len(f.forUser(userID, true))), nil
}

func (f *fakeNotificationRepo) MarkAsRead(uuid string, at time.Time) error {
	if n, ok := f.records[uuid]; ok && !n.IsRead {
		n.IsRead = true
		n.ReadAt = &at
	}
	return nil
}

func (f *fakeNotificationRepo) MarkAllAsRead(userID string, at time.Time) (int64, error) {
	var n int64
	for _, rec := range f.records {
		if rec.UserId == userID && !rec.IsRead {
			rec.IsRead = true
			rec.ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (f *fakeNotificationRepo) DeleteReadOlderThan(before time.Time) (int64, error) {
	var n int64
	for id, rec := range f.records {
		if rec.IsRead && rec.CreatedAt.Before(before) {
			delete(f.records, id)
			n++
		}
	}
	return n, nil
}

type fakeUserRepo struct {
	users     map[string]*userEntity.UserBrief
	failFor   map[string]bool
	byRoleErr error
}

func (f *fakeUserRepo) GetUserBriefByUUID(uuid string) (*userEntity.UserBrief, error) {
	if f.failFor[uuid] {
		return nil, errors.New("lookup failed")
	}
	return f.users[uuid], nil
}

func (f *fakeUserRepo) FindActiveUUIDsByRole(role string) ([]string, error) {
	if f.byRoleErr != nil {
		return nil, f.byRoleErr
	}
	var out []string
	for id, u := range f.users {
		if u.IsActive() && userEntity.HasAnyRole(u.RoleList(), role) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

type dispatchCall struct {
	userID string
	env    ws.Envelope
}

// recordingDispatcher 记录推送时仓库里是否已有对应记录
type recordingDispatcher struct {
	repo        *fakeNotificationRepo
	calls       []dispatchCall
	persistedAt []bool
	delivered   int
}

func (d *recordingDispatcher) DispatchToUser(userID string, env ws.Envelope) int {
	d.calls = append(d.calls, dispatchCall{userID: userID, env: env})
	if p, ok := env.Data.(respond.NotificationRespond); ok && d.repo != nil {
		_, persisted := d.repo.records[p.Id]
		d.persistedAt = append(d.persistedAt, persisted)
	}
	return d.delivered
}

type fakePublisher struct {
	msgs []mq.Message
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg mq.Message) (mq.PublishResult, error) {
	p.msgs = append(p.msgs, msg)
	return mq.PublishResult{}, p.err
}

func (p *fakePublisher) Close() error { return nil }

type fakeCache struct {
	values      map[string]int64
	invalidated []string
}

func (c *fakeCache) Get(_ context.Context, userID string) (int64, bool, error) {
	n, ok := c.values[userID]
	return n, ok, nil
}

func (c *fakeCache) Set(_ context.Context, userID string, count int64) error {
	c.values[userID] = count
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, userID string) error {
	delete(c.values, userID)
	c.invalidated = append(c.invalidated, userID)
	return nil
}

type fakeRecorder struct {
	outcomes map[string]int
	publish  int
	swept    int64
}

func (r *fakeRecorder) NotificationEmitted(typ, outcome string) { r.outcomes[typ+"/"+outcome]++ }
func (r *fakeRecorder) PublishFailed()                          { r.publish++ }
func (r *fakeRecorder) RetentionSwept(n int64)                  { r.swept += n }

var testNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	repo     *fakeNotificationRepo
	users    *fakeUserRepo
	disp     *recordingDispatcher
	pub      *fakePublisher
	cache    *fakeCache
	recorder *fakeRecorder
	clock    *clockwork.FakeClock
	svc      NotificationService
}

func newFixture() *fixture {
	f := &fixture{
		repo: newFakeNotificationRepo(),
		users: &fakeUserRepo{users: map[string]*userEntity.UserBrief{
			"owner": {Uuid: "owner", Username: "owner01", Roles: "USER"},
			"mod-a": {Uuid: "mod-a", Username: "moda", Roles: "MODERATOR"},
			"mod-b": {Uuid: "mod-b", Username: "modb", Roles: "MODERATOR,ADMIN"},
			"ghost": {Uuid: "ghost", Username: "ghost", Roles: "USER", Status: userEntity.StatusDisabled},
		}, failFor: map[string]bool{}},
		pub:      &fakePublisher{},
		cache:    &fakeCache{values: map[string]int64{}},
		recorder: &fakeRecorder{outcomes: map[string]int{}},
		clock:    clockwork.NewFakeClockAt(testNow),
	}
	f.disp = &recordingDispatcher{repo: f.repo, delivered: 1}
	f.svc = NewNotificationService(f.repo, f.users, f.disp,
		WithPublisher(f.pub, "inkwell.notifications"),
		WithUnreadCache(f.cache),
		WithRecorder(f.recorder),
		WithClock(f.clock),
		WithPageSizeMax(50),
	)
	return f
}

func approvedEvent() entity.Event {
	return entity.Event{
		Type:              "ARTICLE_APPROVED",
		Title:             "文章审核通过",
		Message:           "你的文章《Go 并发》已通过审核",
		RelatedEntityID:   "a-1",
		RelatedEntityType: "ARTICLE",
		Metadata:          entity.Metadata{"link": "/articles/a-1", "moderatorId": "mod-a", "resubmitted": false},
	}
}

func TestBuild_RoundTripThroughStore(t *testing.T) {
	f := newFixture()
	ev := approvedEvent()
	ev.TargetUserID = "owner"

	rec := f.svc.Build(ev)
	assert.NotEmpty(t, rec.Uuid)
	assert.Equal(t, testNow, rec.CreatedAt)
	assert.False(t, rec.IsRead)

	require.NoError(t, f.repo.Create(rec))
	got, err := f.repo.FindByUUID(rec.Uuid)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, ev.Type, got.Type)
	assert.Equal(t, ev.Title, got.Title)
	assert.Equal(t, ev.Message, got.Message)
	assert.Equal(t, ev.RelatedEntityID, got.RelatedId)
	assert.Equal(t, ev.RelatedEntityType, got.RelatedType)
	assert.Equal(t, ev.Metadata, got.Metadata)
	assert.Equal(t, "owner", got.UserId)
}

func TestBuild_CopiesMetadata(t *testing.T) {
	f := newFixture()
	ev := approvedEvent()
	rec := f.svc.Build(ev)
	ev.Metadata["link"] = "changed"
	assert.Equal(t, "/articles/a-1", rec.Metadata["link"])
}

func TestEmitOwnerNotification_PersistsBeforeDispatch(t *testing.T) {
	f := newFixture()

	res := f.svc.EmitOwnerNotification(context.Background(), "owner", approvedEvent())

	assert.True(t, res.Persisted)
	assert.NotEmpty(t, res.RecordID)
	assert.Equal(t, 1, res.Delivered)
	require.Len(t, f.disp.calls, 1)
	assert.Equal(t, []bool{true}, f.disp.persistedAt)
	assert.Equal(t, ws.TypeNewNotification, f.disp.calls[0].env.Type)
	assert.Equal(t, "owner", f.repo.records[res.RecordID].UserId)

	require.Len(t, f.pub.msgs, 1)
	assert.Equal(t, "inkwell.notifications", f.pub.msgs[0].Topic)
	assert.Equal(t, []byte("owner"), f.pub.msgs[0].Key)
	assert.Equal(t, "ARTICLE_APPROVED", f.pub.msgs[0].Headers["type"])
	assert.Contains(t, string(f.pub.msgs[0].Value), res.RecordID)

	assert.Equal(t, []string{"owner"}, f.cache.invalidated)
	assert.Equal(t, 1, f.recorder.outcomes["ARTICLE_APPROVED/persisted"])
}

func TestEmitOwnerNotification_ZeroDeliveredIsStillSuccess(t *testing.T) {
	f := newFixture()
	f.disp.delivered = 0

	res := f.svc.EmitOwnerNotification(context.Background(), "owner", approvedEvent())
	assert.True(t, res.Persisted)
	assert.Equal(t, 0, res.Delivered)
}

func TestEmitOwnerNotification_PersistFailureSkipsPush(t *testing.T) {
	f := newFixture()
	f.repo.createErr = errors.New("disk full")

	res := f.svc.EmitOwnerNotification(context.Background(), "owner", approvedEvent())
	assert.False(t, res.Persisted)
	assert.Empty(t, res.RecordID)
	assert.Empty(t, f.disp.calls)
	assert.Empty(t, f.pub.msgs)
	assert.Equal(t, 1, f.recorder.outcomes["ARTICLE_APPROVED/failed"])
}

func TestEmitOwnerNotification_PublishFailureDoesNotMatter(t *testing.T) {
	f := newFixture()
	f.pub.err = errors.New("broker down")

	res := f.svc.EmitOwnerNotification(context.Background(), "owner", approvedEvent())
	assert.True(t, res.Persisted)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, 1, f.recorder.publish)
}

func TestEmitOwnerNotification_InactiveOrUnknownRecipient(t *testing.T) {
	f := newFixture()
	for _, id := range []string{"ghost", "nobody", ""} {
		res := f.svc.EmitOwnerNotification(context.Background(), id, approvedEvent())
		assert.False(t, res.Persisted, id)
	}
	assert.Empty(t, f.repo.records)
	assert.Empty(t, f.disp.calls)
}

func TestEmitRoleNotification_OneRecordPerModerator(t *testing.T) {
	f := newFixture()
	ev := entity.Event{Type: "ARTICLE_PENDING", Title: "新的文章待审核", ActorID: "owner"}

	res := f.svc.EmitRoleNotification(context.Background(), "moderator", ev)

	assert.Equal(t, RoleEmitResult{Recipients: 2, Persisted: 2, Delivered: 2}, res)
	require.Len(t, f.disp.calls, 2)
	assert.ElementsMatch(t, []string{"mod-a", "mod-b"}, []string{f.disp.calls[0].userID, f.disp.calls[1].userID})
	for _, rec := range f.repo.records {
		assert.Equal(t, "ARTICLE_PENDING", rec.Type)
	}
}

func TestEmitRoleNotification_PartialFailureContinues(t *testing.T) {
	f := newFixture()
	f.users.failFor["mod-a"] = true

	res := f.svc.EmitRoleNotification(context.Background(), "MODERATOR", entity.Event{Type: "PROJECT_PENDING"})

	assert.Equal(t, 2, res.Recipients)
	assert.Equal(t, 1, res.Persisted)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, f.disp.calls, 1)
	assert.Equal(t, "mod-b", f.disp.calls[0].userID)
}

func TestEmitRoleNotification_SkipsActor(t *testing.T) {
	f := newFixture()
	res := f.svc.EmitRoleNotification(context.Background(), "MODERATOR", entity.Event{Type: "COMMENT_PENDING", ActorID: "mod-a"})
	assert.Equal(t, 1, res.Recipients)
	assert.Equal(t, 1, res.Persisted)
}

func TestEmitRoleNotification_LookupError(t *testing.T) {
	f := newFixture()
	f.users.byRoleErr = errors.New("db down")
	res := f.svc.EmitRoleNotification(context.Background(), "MODERATOR", entity.Event{Type: "ARTICLE_PENDING"})
	assert.Equal(t, RoleEmitResult{}, res)
}

func TestUnreadCount_UsesCache(t *testing.T) {
	f := newFixture()
	f.svc.EmitOwnerNotification(context.Background(), "owner", approvedEvent())

	got, err := f.svc.UnreadCount(context.Background(), "owner")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UnreadCount)
	assert.Equal(t, int64(1), f.cache.values["owner"])

	f.cache.values["owner"] = 42
	got, err = f.svc.UnreadCount(context.Background(), "owner")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.UnreadCount)

	_, err = f.svc.UnreadCount(context.Background(), "")
	assert.True(t, xerr.Is(err, xerr.Unauthorized))
}

func TestList_PaginatesNewestFirst(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		f.svc.EmitOwnerNotification(context.Background(), "owner", approvedEvent())
		f.clock.Advance(time.Minute)
	}

	page, err := f.svc.List(context.Background(), "owner", request.ListNotificationRequest{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, int64(3), page.UnreadCount)
	require.Len(t, page.List, 2)
	assert.Equal(t, "2024-06-01T08:02:00Z", page.List[0].CreatedAt)

	page, err = f.svc.List(context.Background(), "owner", request.ListNotificationRequest{Page: 0, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.PageSize)
	assert.Len(t, page.List, 3)
}

func TestMarkAsRead(t *testing.T) {
	f := newFixture()
	res := f.svc.EmitOwnerNotification(context.Background(), "owner", approvedEvent())
	f.disp.calls = nil

	_, err := f.svc.MarkAsRead(context.Background(), "mod-a", res.RecordID)
	assert.True(t, xerr.Is(err, xerr.Forbidden))

	_, err = f.svc.MarkAsRead(context.Background(), "owner", "missing")
	assert.True(t, xerr.Is(err, xerr.NotFound))

	_, err = f.svc.MarkAsRead(context.Background(), "owner", "")
	assert.True(t, xerr.Is(err, xerr.BadRequest))

	got, err := f.svc.MarkAsRead(context.Background(), "owner", res.RecordID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	require.NotNil(t, got.ReadAt)
	require.Len(t, f.disp.calls, 1)
	assert.Equal(t, ws.TypeNotificationMarkedRead, f.disp.calls[0].env.Type)

	// 已读再次标记不重复推送
	_, err = f.svc.MarkAsRead(context.Background(), "owner", res.RecordID)
	require.NoError(t, err)
	assert.Len(t, f.disp.calls, 1)

	again, changed, err := f.svc.MarkRead(context.Background(), "owner", res.RecordID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, again.IsRead)
	assert.Len(t, f.disp.calls, 1)

	count, err := f.svc.UnreadCount(context.Background(), "owner")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count.UnreadCount)
}

func TestMarkAllAsRead(t *testing.T) {
	f := newFixture()
	f.svc.EmitOwnerNotification(context.Background(), "owner", approvedEvent())
	f.svc.EmitOwnerNotification(context.Background(), "owner", approvedEvent())

	got, err := f.svc.MarkAllAsRead(context.Background(), "owner")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Updated)

	got, err = f.svc.MarkAllAsRead(context.Background(), "owner")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Updated)
}

func TestPurgeRead(t *testing.T) {
	f := newFixture()
	res := f.svc.EmitOwnerNotification(context.Background(), "owner", approvedEvent())
	f.svc.EmitOwnerNotification(context.Background(), "owner", approvedEvent())
	_, err := f.svc.MarkAsRead(context.Background(), "owner", res.RecordID)
	require.NoError(t, err)

	n, err := f.svc.PurgeRead(context.Background(), testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), f.recorder.swept)
	assert.Len(t, f.repo.records, 1)
}
