package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"Inkwell/internal/modules/notification/application/dto/request"
	"Inkwell/internal/modules/notification/application/dto/respond"
	"Inkwell/internal/modules/notification/domain/entity"
	"Inkwell/internal/modules/notification/domain/repository"
	"Inkwell/internal/modules/notification/infrastructure/cache"
	"Inkwell/internal/modules/notification/infrastructure/mq"
	userRepository "Inkwell/internal/modules/user/domain/repository"
	"Inkwell/pkg/util"
	"Inkwell/pkg/ws"
	"Inkwell/pkg/xerr"
	"Inkwell/pkg/zlog"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// UserDispatcher 按用户推送，由 ws.Dispatcher 实现
type UserDispatcher interface {
	DispatchToUser(userID string, env ws.Envelope) int
}

// Recorder 通知相关指标
type Recorder interface {
	NotificationEmitted(typ, outcome string)
	PublishFailed()
	RetentionSwept(n int64)
}

// 单个接收人的处理结果
const (
	OutcomePersisted = "persisted"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// EmitResult 单用户通知结果。Persisted 为 false 时不会推送
type EmitResult struct {
	Persisted bool
	Skipped   bool
	RecordID  string
	Delivered int
}

// RoleEmitResult 角色群发结果，单个接收人失败只计数
type RoleEmitResult struct {
	Recipients int
	Persisted  int
	Skipped    int
	Failed     int
	Delivered  int
}

type NotificationService interface {
	Build(ev entity.Event) *entity.Notification
	EmitOwnerNotification(ctx context.Context, userID string, ev entity.Event) EmitResult
	EmitRoleNotification(ctx context.Context, role string, ev entity.Event) RoleEmitResult

	List(ctx context.Context, userID string, req request.ListNotificationRequest) (*respond.NotificationListRespond, error)
	UnreadCount(ctx context.Context, userID string) (*respond.UnreadCountRespond, error)
	MarkAsRead(ctx context.Context, userID, notificationID string) (*respond.NotificationRespond, error)
	// MarkRead 同 MarkAsRead，changed 为 false 表示此前已读，不会推送
	MarkRead(ctx context.Context, userID, notificationID string) (out *respond.NotificationRespond, changed bool, err error)
	MarkAllAsRead(ctx context.Context, userID string) (*respond.MarkAllRespond, error)
	PurgeRead(ctx context.Context, before time.Time) (int64, error)
}

type Option func(*notificationServiceImpl)

// WithPublisher 持久化后镜像到消息队列
func WithPublisher(pub mq.Publisher, topic string) Option {
	return func(s *notificationServiceImpl) {
		s.publisher = pub
		s.topic = topic
	}
}

func WithUnreadCache(c cache.UnreadCache) Option {
	return func(s *notificationServiceImpl) { s.cache = c }
}

func WithRecorder(r Recorder) Option {
	return func(s *notificationServiceImpl) { s.recorder = r }
}

func WithClock(c clockwork.Clock) Option {
	return func(s *notificationServiceImpl) { s.clock = c }
}

func WithPageSizeMax(n int) Option {
	return func(s *notificationServiceImpl) { s.pageSizeMax = n }
}

type notificationServiceImpl struct {
	repo       repository.NotificationRepository
	userRepo   userRepository.UserInfoRepository
	dispatcher UserDispatcher

	publisher   mq.Publisher
	topic       string
	cache       cache.UnreadCache
	recorder    Recorder
	clock       clockwork.Clock
	pageSizeMax int
}

func NewNotificationService(
	repo repository.NotificationRepository,
	userRepo userRepository.UserInfoRepository,
	dispatcher UserDispatcher,
	opts ...Option,
) NotificationService {
	s := &notificationServiceImpl{
		repo:        repo,
		userRepo:    userRepo,
		dispatcher:  dispatcher,
		clock:       clockwork.NewRealClock(),
		pageSizeMax: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build 由事件构造待持久化的记录，接收人取 TargetUserID
func (s *notificationServiceImpl) Build(ev entity.Event) *entity.Notification {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}
	var meta entity.Metadata
	if len(ev.Metadata) > 0 {
		meta = make(entity.Metadata, len(ev.Metadata))
		for k, v := range ev.Metadata {
			meta[k] = v
		}
	}
	return &entity.Notification{
		Uuid:        util.GenerateUUID(),
		UserId:      ev.TargetUserID,
		Type:        ev.Type,
		Title:       ev.Title,
		Message:     ev.Message,
		RelatedId:   ev.RelatedEntityID,
		RelatedType: ev.RelatedEntityType,
		Metadata:    meta,
		CreatedAt:   createdAt,
	}
}

// EmitOwnerNotification 先落库再推送，落库失败时不推送，推送失败不影响结果
func (s *notificationServiceImpl) EmitOwnerNotification(ctx context.Context, userID string, ev entity.Event) EmitResult {
	res := s.emitToUser(ctx, userID, ev)
	switch {
	case res.Persisted:
		s.record(ev.Type, OutcomePersisted)
	case res.Skipped:
		s.record(ev.Type, OutcomeSkipped)
	default:
		s.record(ev.Type, OutcomeFailed)
	}
	return res
}

// EmitRoleNotification 为持有角色的每个正常用户各生成一条记录
func (s *notificationServiceImpl) EmitRoleNotification(ctx context.Context, role string, ev entity.Event) RoleEmitResult {
	var out RoleEmitResult
	role = strings.ToUpper(strings.TrimSpace(role))
	uuids, err := s.userRepo.FindActiveUUIDsByRole(role)
	if err != nil {
		zlog.Error("find users by role failed", zap.String("role", role), zap.Error(err))
		s.record(ev.Type, OutcomeFailed)
		return out
	}

	for _, uid := range uuids {
		if uid == ev.ActorID {
			continue
		}
		out.Recipients++
		evCopy := ev
		evCopy.TargetRole = role
		res := s.emitToUser(ctx, uid, evCopy)
		switch {
		case res.Persisted:
			out.Persisted++
			out.Delivered += res.Delivered
		case res.Skipped:
			out.Skipped++
		default:
			out.Failed++
		}
	}

	if out.Persisted > 0 {
		s.record(ev.Type, OutcomePersisted)
	}
	if out.Failed > 0 {
		zlog.Warn("role notification partially failed",
			zap.String("role", role),
			zap.String("type", ev.Type),
			zap.Int("recipients", out.Recipients),
			zap.Int("failed", out.Failed))
		s.record(ev.Type, OutcomeFailed)
	}
	return out
}

func (s *notificationServiceImpl) emitToUser(ctx context.Context, userID string, ev entity.Event) EmitResult {
	var res EmitResult
	if userID == "" {
		zlog.Warn("notification without recipient", zap.String("type", ev.Type))
		return res
	}

	user, err := s.userRepo.GetUserBriefByUUID(userID)
	if err != nil {
		zlog.Error("lookup notification recipient failed", zap.String("userId", userID), zap.Error(err))
		return res
	}
	if !user.IsActive() {
		res.Skipped = true
		return res
	}

	ev.TargetUserID = userID
	rec := s.Build(ev)
	if err := s.repo.Create(rec); err != nil {
		zlog.Error("persist notification failed",
			zap.String("userId", userID),
			zap.String("type", ev.Type),
			zap.Error(err))
		return res
	}
	res.Persisted = true
	res.RecordID = rec.Uuid

	s.invalidateUnread(ctx, userID)

	payload := respond.FromEntity(rec)
	res.Delivered = s.dispatcher.DispatchToUser(userID, ws.NewEnvelope(ws.TypeNewNotification, payload, s.clock.Now()))

	s.publish(ctx, userID, payload)
	return res
}

func (s *notificationServiceImpl) publish(ctx context.Context, userID string, payload respond.NotificationRespond) {
	if s.publisher == nil || s.topic == "" {
		return
	}
	body, err := json.Marshal(struct {
		UserId string `json:"userId"`
		respond.NotificationRespond
	}{UserId: userID, NotificationRespond: payload})
	if err != nil {
		zlog.Error("marshal notification message failed", zap.Error(err))
		return
	}
	_, err = s.publisher.Publish(ctx, mq.Message{
		Topic:   s.topic,
		Key:     []byte(userID),
		Value:   body,
		Headers: map[string]string{"type": payload.Type},
	})
	if err != nil {
		zlog.Warn("publish notification failed", zap.String("id", payload.Id), zap.Error(err))
		if s.recorder != nil {
			s.recorder.PublishFailed()
		}
	}
}

func (s *notificationServiceImpl) List(ctx context.Context, userID string, req request.ListNotificationRequest) (*respond.NotificationListRespond, error) {
	if userID == "" {
		return nil, xerr.ErrUnauthorized
	}
	page, size := util.ClampPage(req.Page, req.PageSize, s.pageSizeMax)
	list, total, err := s.repo.ListByUser(userID, req.UnreadOnly, (page-1)*size, size)
	if err != nil {
		zlog.Error("list notifications failed", zap.String("userId", userID), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	unread, err := s.unreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := &respond.NotificationListRespond{
		List:        make([]respond.NotificationRespond, 0, len(list)),
		Total:       total,
		UnreadCount: unread,
		Page:        page,
		PageSize:    size,
	}
	for i := range list {
		out.List = append(out.List, respond.FromEntity(&list[i]))
	}
	return out, nil
}

func (s *notificationServiceImpl) UnreadCount(ctx context.Context, userID string) (*respond.UnreadCountRespond, error) {
	if userID == "" {
		return nil, xerr.ErrUnauthorized
	}
	n, err := s.unreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &respond.UnreadCountRespond{UnreadCount: n}, nil
}

func (s *notificationServiceImpl) unreadCount(ctx context.Context, userID string) (int64, error) {
	if s.cache != nil {
		n, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			zlog.Warn("read unread cache failed", zap.String("userId", userID), zap.Error(err))
		} else if ok {
			return n, nil
		}
	}
	n, err := s.repo.CountUnread(userID)
	if err != nil {
		zlog.Error("count unread failed", zap.String("userId", userID), zap.Error(err))
		return 0, xerr.ErrServerError
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, n); err != nil {
			zlog.Warn("write unread cache failed", zap.String("userId", userID), zap.Error(err))
		}
	}
	return n, nil
}

// MarkAsRead 只能标记自己的通知，成功后同步给该用户的所有连接
func (s *notificationServiceImpl) MarkAsRead(ctx context.Context, userID, notificationID string) (*respond.NotificationRespond, error) {
	out, _, err := s.MarkRead(ctx, userID, notificationID)
	return out, err
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, userID, notificationID string) (*respond.NotificationRespond, bool, error) {
	if userID == "" {
		return nil, false, xerr.ErrUnauthorized
	}
	if notificationID == "" {
		return nil, false, xerr.ErrParam
	}
	n, err := s.repo.FindByUUID(notificationID)
	if err != nil {
		zlog.Error("find notification failed", zap.String("id", notificationID), zap.Error(err))
		return nil, false, xerr.ErrServerError
	}
	if n == nil {
		return nil, false, xerr.New(xerr.NotFound, "通知不存在")
	}
	if n.UserId != userID {
		return nil, false, xerr.New(xerr.Forbidden, "无权操作该通知")
	}

	changed := !n.IsRead
	if changed {
		now := s.clock.Now()
		if err := s.repo.MarkAsRead(notificationID, now); err != nil {
			zlog.Error("mark notification read failed", zap.String("id", notificationID), zap.Error(err))
			return nil, false, xerr.ErrServerError
		}
		n.IsRead = true
		n.ReadAt = &now
		s.invalidateUnread(ctx, userID)
		s.dispatcher.DispatchToUser(userID, ws.NewEnvelope(ws.TypeNotificationMarkedRead,
			map[string]string{"notificationId": notificationID}, now))
	}
	out := respond.FromEntity(n)
	return &out, changed, nil
}

func (s *notificationServiceImpl) MarkAllAsRead(ctx context.Context, userID string) (*respond.MarkAllRespond, error) {
	if userID == "" {
		return nil, xerr.ErrUnauthorized
	}
	now := s.clock.Now()
	updated, err := s.repo.MarkAllAsRead(userID, now)
	if err != nil {
		zlog.Error("mark all read failed", zap.String("userId", userID), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	if updated > 0 {
		s.invalidateUnread(ctx, userID)
		s.dispatcher.DispatchToUser(userID, ws.NewEnvelope(ws.TypeNotificationMarkedRead,
			map[string]interface{}{"all": true, "updated": updated}, now))
	}
	return &respond.MarkAllRespond{Updated: updated}, nil
}

// PurgeRead 删除 before 之前的已读通知
func (s *notificationServiceImpl) PurgeRead(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.repo.DeleteReadOlderThan(before)
	if err != nil {
		return 0, err
	}
	if s.recorder != nil {
		s.recorder.RetentionSwept(n)
	}
	return n, nil
}

func (s *notificationServiceImpl) invalidateUnread(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		zlog.Warn("invalidate unread cache failed", zap.String("userId", userID), zap.Error(err))
	}
}

func (s *notificationServiceImpl) record(typ, outcome string) {
	if s.recorder != nil {
		s.recorder.NotificationEmitted(typ, outcome)
	}
}
