package service

import (
	"context"
	"strings"
	"time"

	"Inkwell/internal/modules/content/application/dto/request"
	"Inkwell/internal/modules/content/application/dto/respond"
	"Inkwell/internal/modules/content/domain/entity"
	"Inkwell/internal/modules/content/domain/moderation"
	"Inkwell/internal/modules/content/domain/repository"
	notificationEntity "Inkwell/internal/modules/notification/domain/entity"
	userEntity "Inkwell/internal/modules/user/domain/entity"
	userRepository "Inkwell/internal/modules/user/domain/repository"
	"Inkwell/pkg/util"
	"Inkwell/pkg/ws"
	"Inkwell/pkg/xerr"
	"Inkwell/pkg/zlog"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Broadcaster 审核后的瞬时推送，由 ws.Dispatcher 实现
type Broadcaster interface {
	DispatchToRoles(roles []string, env ws.Envelope) int
	DispatchToGroup(group string, env ws.Envelope) int
}

// DecisionRecorder 审核指标
type DecisionRecorder interface {
	ModerationDecided(kind, status string)
}

// QueueUpdate moderationQueueUpdated 的负载
type QueueUpdate struct {
	Kind        string `json:"kind"`
	EntityId    string `json:"entityId"`
	Status      string `json:"status"`
	ModeratorId string `json:"moderatorId"`
}

// ChannelMessage channel_broadcast 的负载
type ChannelMessage struct {
	Event   string                 `json:"event"`
	Group   string                 `json:"group"`
	Comment respond.ContentRespond `json:"comment"`
}

type ModerationService interface {
	Approve(ctx context.Context, actor moderation.Actor, kind moderation.Kind, id string) (*respond.ModerationRespond, error)
	Reject(ctx context.Context, actor moderation.Actor, kind moderation.Kind, id, reason string) (*respond.ModerationRespond, error)
	Archive(ctx context.Context, actor moderation.Actor, kind moderation.Kind, id string) (*respond.ContentRespond, error)
	ListPending(ctx context.Context, actor moderation.Actor, kind moderation.Kind, req request.ListPendingRequest) (*respond.PendingListRespond, error)
}

type moderationServiceImpl struct {
	repo        repository.ContentRepository
	userRepo    userRepository.UserInfoRepository
	notifier    Notifier
	broadcaster Broadcaster
	recorder    DecisionRecorder
	clock       clockwork.Clock
	pageSizeMax int
}

func NewModerationService(
	repo repository.ContentRepository,
	userRepo userRepository.UserInfoRepository,
	notifier Notifier,
	broadcaster Broadcaster,
	recorder DecisionRecorder,
	clock clockwork.Clock,
) ModerationService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &moderationServiceImpl{
		repo:        repo,
		userRepo:    userRepo,
		notifier:    notifier,
		broadcaster: broadcaster,
		recorder:    recorder,
		clock:       clock,
		pageSizeMax: 100,
	}
}

func (s *moderationServiceImpl) Approve(ctx context.Context, actor moderation.Actor, kind moderation.Kind, id string) (*respond.ModerationRespond, error) {
	return s.decide(ctx, kind, id, func(t moderation.Target, now time.Time) (moderation.Transition, error) {
		return moderation.Approve(t, actor, now)
	})
}

func (s *moderationServiceImpl) Reject(ctx context.Context, actor moderation.Actor, kind moderation.Kind, id, reason string) (*respond.ModerationRespond, error) {
	return s.decide(ctx, kind, id, func(t moderation.Target, now time.Time) (moderation.Transition, error) {
		return moderation.Reject(t, actor, reason, now)
	})
}

func (s *moderationServiceImpl) Archive(ctx context.Context, actor moderation.Actor, kind moderation.Kind, id string) (*respond.ContentRespond, error) {
	item, err := s.load(kind, id)
	if err != nil {
		return nil, err
	}
	from := item.ModerationState().Status
	tr, err := moderation.Archive(entity.Target(item), actor, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.save(item, from); err != nil {
		return nil, err
	}
	s.record(tr)
	zlog.Info("content archived",
		zap.String("kind", string(kind)),
		zap.String("id", tr.EntityID),
		zap.String("actor", tr.ActorID))

	out := respond.FromModeratable(item)
	return &out, nil
}

func (s *moderationServiceImpl) ListPending(ctx context.Context, actor moderation.Actor, kind moderation.Kind, req request.ListPendingRequest) (*respond.PendingListRespond, error) {
	if !actor.IsModerator() {
		return nil, moderation.ErrNotModerator
	}
	page, size := util.ClampPage(req.Page, req.PageSize, s.pageSizeMax)
	items, total, err := s.repo.ListByStatus(kind, moderation.StatusPending, (page-1)*size, size)
	if err != nil {
		zlog.Error("list pending failed", zap.String("kind", string(kind)), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	out := &respond.PendingListRespond{
		List:     make([]respond.ContentRespond, 0, len(items)),
		Total:    total,
		Page:     page,
		PageSize: size,
	}
	for _, it := range items {
		out.List = append(out.List, respond.FromModeratable(it))
	}
	return out, nil
}

// decide 审核通过或驳回：状态机校验、条件写入、通知作者、刷新审核队列
func (s *moderationServiceImpl) decide(
	ctx context.Context,
	kind moderation.Kind,
	id string,
	apply func(moderation.Target, time.Time) (moderation.Transition, error),
) (*respond.ModerationRespond, error) {
	item, err := s.load(kind, id)
	if err != nil {
		return nil, err
	}
	from := item.ModerationState().Status
	tr, err := apply(entity.Target(item), s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.save(item, from); err != nil {
		return nil, err
	}
	s.record(tr)
	zlog.Info("content moderated",
		zap.String("kind", string(kind)),
		zap.String("id", tr.EntityID),
		zap.String("status", string(tr.To)),
		zap.String("moderator", tr.ActorID))

	out := &respond.ModerationRespond{Item: respond.FromModeratable(item)}
	if s.notifier != nil {
		res := s.notifier.EmitOwnerNotification(ctx, item.OwnerID(), decisionEvent(item, tr))
		out.OwnerNotified = res.Persisted
		out.RealTimeNotificationSent = res.Delivered > 0
		if c, ok := item.(*entity.Comment); ok && tr.To == moderation.StatusApproved {
			out.InteractionsNotified = s.notifyInteractions(ctx, c, tr.At)
		}
	}
	s.broadcast(item, tr, out.Item)
	return out, nil
}

// notifyInteractions 评论公开后通知被回复者与被评论内容的作者。
// 同一人只收一条，优先回复通知；评论者本人不收
func (s *moderationServiceImpl) notifyInteractions(ctx context.Context, c *entity.Comment, at time.Time) int {
	name := displayName(s.userRepo, c.AuthorId)
	notified := map[string]struct{}{c.AuthorId: {}}
	sent := 0

	emit := func(userID string, ev notificationEntity.Event) {
		if _, done := notified[userID]; done || userID == "" {
			return
		}
		notified[userID] = struct{}{}
		if s.notifier.EmitOwnerNotification(ctx, userID, ev).Persisted {
			sent++
		}
	}

	if c.ParentId != "" {
		if p, ok := s.lookup(moderation.KindComment, c.ParentId).(*entity.Comment); ok {
			emit(p.AuthorId, replyEvent(c, p, name, at))
		}
	}
	if kind, ok := moderation.ParseKind(c.TargetType); ok {
		if target := s.lookup(kind, c.TargetId); target != nil {
			emit(target.OwnerID(), commentEvent(c, target, name, at))
		}
	}
	return sent
}

// lookup 通知用的尽力查询，出错按不存在处理
func (s *moderationServiceImpl) lookup(kind moderation.Kind, id string) entity.Moderatable {
	item, err := s.repo.FindModeratable(kind, id)
	if err != nil {
		zlog.Warn("load related content failed", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		return nil
	}
	return item
}

func (s *moderationServiceImpl) broadcast(item entity.Moderatable, tr moderation.Transition, view respond.ContentRespond) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.DispatchToRoles(
		[]string{userEntity.RoleModerator, userEntity.RoleAdmin},
		ws.NewEnvelope(ws.TypeModerationQueueUpdated, QueueUpdate{
			Kind:        string(tr.Kind),
			EntityId:    tr.EntityID,
			Status:      string(tr.To),
			ModeratorId: tr.ActorID,
		}, tr.At),
	)

	c, ok := item.(*entity.Comment)
	if !ok || tr.To != moderation.StatusApproved {
		return
	}
	group := c.Group()
	n := s.broadcaster.DispatchToGroup(group, ws.NewEnvelope(ws.TypeChannelBroadcast, ChannelMessage{
		Event:   "commentApproved",
		Group:   group,
		Comment: view,
	}, tr.At))
	zlog.Debug("comment broadcast", zap.String("group", group), zap.Int("delivered", n))
}

func (s *moderationServiceImpl) load(kind moderation.Kind, id string) (entity.Moderatable, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, xerr.ErrParam
	}
	item, err := s.repo.FindModeratable(kind, id)
	if err != nil {
		zlog.Error("find content failed", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	if item == nil {
		return nil, errContentNotFound
	}
	return item, nil
}

func (s *moderationServiceImpl) save(item entity.Moderatable, from moderation.Status) error {
	ok, err := s.repo.SaveTransition(item, from)
	if err != nil {
		zlog.Error("save moderation failed",
			zap.String("kind", string(item.ModerationKind())),
			zap.String("id", item.EntityID()),
			zap.Error(err))
		return xerr.ErrServerError
	}
	if !ok {
		return errStateChanged
	}
	return nil
}

func (s *moderationServiceImpl) record(tr moderation.Transition) {
	if s.recorder != nil {
		s.recorder.ModerationDecided(string(tr.Kind), string(tr.To))
	}
}
