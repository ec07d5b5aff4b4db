package service

import (
	"context"
	"strings"

	"Inkwell/internal/modules/content/application/dto/respond"
	"Inkwell/internal/modules/content/domain/entity"
	"Inkwell/internal/modules/content/domain/moderation"
	"Inkwell/internal/modules/content/domain/repository"
	userRepository "Inkwell/internal/modules/user/domain/repository"
	"Inkwell/pkg/ws"
	"Inkwell/pkg/xerr"
	"Inkwell/pkg/zlog"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var errNotPublic = xerr.New(xerr.Conflict, "内容尚未公开，暂不能点赞")

// LikeUpdate likeUpdated 的负载
type LikeUpdate struct {
	TargetType string `json:"targetType"`
	TargetId   string `json:"targetId"`
	UserId     string `json:"userId"`
	Liked      bool   `json:"liked"`
	LikesCount int64  `json:"likesCount"`
}

// LikeMessage 点赞变化推送到内容的兴趣组
type LikeMessage struct {
	Event string     `json:"event"`
	Group string     `json:"group"`
	Like  LikeUpdate `json:"like"`
}

type LikeService interface {
	ToggleLike(ctx context.Context, userID string, kind moderation.Kind, id string) (*respond.LikeRespond, error)
}

type likeServiceImpl struct {
	repo        repository.ContentRepository
	likes       repository.LikeRepository
	userRepo    userRepository.UserInfoRepository
	notifier    Notifier
	broadcaster Broadcaster
	clock       clockwork.Clock
}

func NewLikeService(
	repo repository.ContentRepository,
	likes repository.LikeRepository,
	userRepo userRepository.UserInfoRepository,
	notifier Notifier,
	broadcaster Broadcaster,
	clock clockwork.Clock,
) LikeService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &likeServiceImpl{
		repo:        repo,
		likes:       likes,
		userRepo:    userRepo,
		notifier:    notifier,
		broadcaster: broadcaster,
		clock:       clock,
	}
}

// ToggleLike 只能对已公开内容点赞；点赞时通知作者，点赞与取消都推送到兴趣组
func (s *likeServiceImpl) ToggleLike(ctx context.Context, userID string, kind moderation.Kind, id string) (*respond.LikeRespond, error) {
	liker, err := activeUser(s.userRepo, userID)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, xerr.ErrParam
	}
	item, err := s.repo.FindModeratable(kind, id)
	if err != nil {
		zlog.Error("find like target failed", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	if item == nil {
		return nil, errContentNotFound
	}
	if item.ModerationState().Status != moderation.StatusApproved {
		return nil, errNotPublic
	}

	now := s.clock.Now()
	liked, err := s.likes.Toggle(userID, kind, id, now)
	if err != nil {
		zlog.Error("toggle like failed", zap.String("user", userID), zap.String("id", id), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	count, err := s.likes.Count(kind, id)
	if err != nil {
		zlog.Warn("count likes failed", zap.String("id", id), zap.Error(err))
	}

	out := &respond.LikeRespond{
		TargetType: string(kind),
		TargetId:   id,
		Liked:      liked,
		LikesCount: count,
	}
	if s.broadcaster != nil {
		group := entity.GroupOf(kind, id)
		n := s.broadcaster.DispatchToGroup(group, ws.NewEnvelope(ws.TypeChannelBroadcast, LikeMessage{
			Event: "likeUpdated",
			Group: group,
			Like: LikeUpdate{
				TargetType: string(kind),
				TargetId:   id,
				UserId:     userID,
				Liked:      liked,
				LikesCount: count,
			},
		}, now))
		out.RealTimeBroadcast = n > 0
	}
	if liked && item.OwnerID() != userID && s.notifier != nil {
		res := s.notifier.EmitOwnerNotification(ctx, item.OwnerID(), likeEvent(item, userID, liker.DisplayName(), count, now))
		out.OwnerNotified = res.Persisted
	}
	zlog.Info("like toggled",
		zap.String("kind", string(kind)),
		zap.String("id", id),
		zap.String("user", userID),
		zap.Bool("liked", liked))
	return out, nil
}
