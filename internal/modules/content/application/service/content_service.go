package service

import (
	"context"
	"strings"

	"Inkwell/internal/modules/content/application/dto/request"
	"Inkwell/internal/modules/content/application/dto/respond"
	"Inkwell/internal/modules/content/domain/entity"
	"Inkwell/internal/modules/content/domain/moderation"
	"Inkwell/internal/modules/content/domain/repository"
	notificationService "Inkwell/internal/modules/notification/application/service"
	notificationEntity "Inkwell/internal/modules/notification/domain/entity"
	userEntity "Inkwell/internal/modules/user/domain/entity"
	userRepository "Inkwell/internal/modules/user/domain/repository"
	"Inkwell/pkg/util"
	"Inkwell/pkg/xerr"
	"Inkwell/pkg/zlog"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	maxTitleLength   = 200
	maxNameLength    = 120
	maxSummaryLength = 500
	maxCommentLength = 2000
)

var (
	errTitleRequired   = xerr.New(xerr.BadRequest, "标题不能为空")
	errTitleTooLong    = xerr.New(xerr.BadRequest, "标题不能超过 200 个字符")
	errSummaryTooLong  = xerr.New(xerr.BadRequest, "摘要不能超过 500 个字符")
	errContentRequired = xerr.New(xerr.BadRequest, "内容不能为空")
	errNameRequired    = xerr.New(xerr.BadRequest, "项目名称不能为空")
	errNameTooLong     = xerr.New(xerr.BadRequest, "项目名称不能超过 120 个字符")
	errCommentTooLong  = xerr.New(xerr.BadRequest, "评论不能超过 2000 个字符")
	errBadTarget       = xerr.New(xerr.BadRequest, "评论只能挂在文章或项目下")
	errTargetNotFound  = xerr.New(xerr.NotFound, "评论对象不存在")
	errTargetArchived  = xerr.New(xerr.Conflict, "评论对象已归档")
	errParentNotFound  = xerr.New(xerr.NotFound, "被回复的评论不存在")
	errParentMismatch  = xerr.New(xerr.BadRequest, "被回复的评论不属于该内容")
	errParentArchived  = xerr.New(xerr.Conflict, "被回复的评论已归档")
	errContentNotFound = xerr.New(xerr.NotFound, "内容不存在")
	errStateChanged    = xerr.New(xerr.Conflict, "内容状态已变更，请刷新后重试")
)

// Notifier 通知出口，由 NotificationService 实现
type Notifier interface {
	EmitOwnerNotification(ctx context.Context, userID string, ev notificationEntity.Event) notificationService.EmitResult
	EmitRoleNotification(ctx context.Context, role string, ev notificationEntity.Event) notificationService.RoleEmitResult
}

// ContentService 内容提交与作者编辑
type ContentService interface {
	SubmitArticle(ctx context.Context, authorID string, req request.SubmitArticleRequest) (*respond.SubmitRespond, error)
	SubmitProject(ctx context.Context, ownerID string, req request.SubmitProjectRequest) (*respond.SubmitRespond, error)
	SubmitComment(ctx context.Context, authorID string, req request.SubmitCommentRequest) (*respond.SubmitRespond, error)

	EditArticle(ctx context.Context, editorID, id string, req request.SubmitArticleRequest) (*respond.EditRespond, error)
	EditProject(ctx context.Context, editorID, id string, req request.SubmitProjectRequest) (*respond.EditRespond, error)
	EditComment(ctx context.Context, editorID, id string, req request.EditCommentRequest) (*respond.EditRespond, error)
}

type contentServiceImpl struct {
	repo     repository.ContentRepository
	userRepo userRepository.UserInfoRepository
	notifier Notifier
	clock    clockwork.Clock
}

func NewContentService(
	repo repository.ContentRepository,
	userRepo userRepository.UserInfoRepository,
	notifier Notifier,
	clock clockwork.Clock,
) ContentService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &contentServiceImpl{repo: repo, userRepo: userRepo, notifier: notifier, clock: clock}
}

func (s *contentServiceImpl) SubmitArticle(ctx context.Context, authorID string, req request.SubmitArticleRequest) (*respond.SubmitRespond, error) {
	author, err := s.activeUser(authorID)
	if err != nil {
		return nil, err
	}
	if err := validateArticle(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	a := &entity.Article{
		Uuid:      util.GenerateUUID(),
		AuthorId:  authorID,
		Title:     strings.TrimSpace(req.Title),
		Summary:   strings.TrimSpace(req.Summary),
		Content:   req.Content,
		State:     moderation.NewState(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateArticle(a); err != nil {
		zlog.Error("create article failed", zap.String("author", authorID), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	return s.submitted(ctx, a, author), nil
}

func (s *contentServiceImpl) SubmitProject(ctx context.Context, ownerID string, req request.SubmitProjectRequest) (*respond.SubmitRespond, error) {
	owner, err := s.activeUser(ownerID)
	if err != nil {
		return nil, err
	}
	if err := validateProject(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	p := &entity.Project{
		Uuid:          util.GenerateUUID(),
		OwnerUserId:   ownerID,
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		RepositoryUrl: strings.TrimSpace(req.RepositoryUrl),
		State:         moderation.NewState(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateProject(p); err != nil {
		zlog.Error("create project failed", zap.String("owner", ownerID), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	return s.submitted(ctx, p, owner), nil
}

func (s *contentServiceImpl) SubmitComment(ctx context.Context, authorID string, req request.SubmitCommentRequest) (*respond.SubmitRespond, error) {
	author, err := s.activeUser(authorID)
	if err != nil {
		return nil, err
	}
	kind, ok := moderation.ParseKind(req.TargetType)
	if !ok || kind == moderation.KindComment {
		return nil, errBadTarget
	}
	if err := validateComment(req.Content); err != nil {
		return nil, err
	}
	target, err := s.repo.FindModeratable(kind, strings.TrimSpace(req.TargetId))
	if err != nil {
		zlog.Error("find comment target failed", zap.String("kind", string(kind)), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	if target == nil {
		return nil, errTargetNotFound
	}
	if target.ModerationState().Status == moderation.StatusArchived {
		return nil, errTargetArchived
	}
	parentID := strings.TrimSpace(req.ParentId)
	if parentID != "" {
		if err := s.checkParent(kind, target.EntityID(), parentID); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	c := &entity.Comment{
		Uuid:       util.GenerateUUID(),
		AuthorId:   authorID,
		TargetType: string(kind),
		TargetId:   target.EntityID(),
		ParentId:   parentID,
		Content:    strings.TrimSpace(req.Content),
		State:      moderation.NewState(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateComment(c); err != nil {
		zlog.Error("create comment failed", zap.String("author", authorID), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	return s.submitted(ctx, c, author), nil
}

// checkParent 回复必须挂在同一内容下未归档的评论上
func (s *contentServiceImpl) checkParent(kind moderation.Kind, targetID, parentID string) error {
	item, err := s.repo.FindModeratable(moderation.KindComment, parentID)
	if err != nil {
		zlog.Error("find parent comment failed", zap.String("parent", parentID), zap.Error(err))
		return xerr.ErrServerError
	}
	parent, ok := item.(*entity.Comment)
	if !ok {
		return errParentNotFound
	}
	if parent.TargetType != string(kind) || parent.TargetId != targetID {
		return errParentMismatch
	}
	if parent.Status == moderation.StatusArchived {
		return errParentArchived
	}
	return nil
}

func (s *contentServiceImpl) EditArticle(ctx context.Context, editorID, id string, req request.SubmitArticleRequest) (*respond.EditRespond, error) {
	if err := validateArticle(req); err != nil {
		return nil, err
	}
	return s.edit(ctx, moderation.KindArticle, editorID, id, func(item entity.Moderatable) {
		a := item.(*entity.Article)
		a.Title = strings.TrimSpace(req.Title)
		a.Summary = strings.TrimSpace(req.Summary)
		a.Content = req.Content
		a.UpdatedAt = s.clock.Now()
	})
}

func (s *contentServiceImpl) EditProject(ctx context.Context, editorID, id string, req request.SubmitProjectRequest) (*respond.EditRespond, error) {
	if err := validateProject(req); err != nil {
		return nil, err
	}
	return s.edit(ctx, moderation.KindProject, editorID, id, func(item entity.Moderatable) {
		p := item.(*entity.Project)
		p.Name = strings.TrimSpace(req.Name)
		p.Description = req.Description
		p.RepositoryUrl = strings.TrimSpace(req.RepositoryUrl)
		p.UpdatedAt = s.clock.Now()
	})
}

func (s *contentServiceImpl) EditComment(ctx context.Context, editorID, id string, req request.EditCommentRequest) (*respond.EditRespond, error) {
	if err := validateComment(req.Content); err != nil {
		return nil, err
	}
	return s.edit(ctx, moderation.KindComment, editorID, id, func(item entity.Moderatable) {
		c := item.(*entity.Comment)
		c.Content = strings.TrimSpace(req.Content)
		c.UpdatedAt = s.clock.Now()
	})
}

// edit 作者编辑：先过状态机再改正文，条件写入后按需通知审核员
func (s *contentServiceImpl) edit(ctx context.Context, kind moderation.Kind, editorID, id string, apply func(entity.Moderatable)) (*respond.EditRespond, error) {
	if editorID == "" {
		return nil, xerr.ErrUnauthorized
	}
	item, err := s.repo.FindModeratable(kind, strings.TrimSpace(id))
	if err != nil {
		zlog.Error("find content failed", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	if item == nil {
		return nil, errContentNotFound
	}

	from := item.ModerationState().Status
	tr, err := moderation.ResetOnEdit(entity.Target(item), editorID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	apply(item)

	ok, err := s.repo.SaveEdit(item, from)
	if err != nil {
		zlog.Error("save content edit failed", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	if !ok {
		return nil, errStateChanged
	}

	out := &respond.EditRespond{Item: respond.FromModeratable(item), Resubmitted: tr != nil}
	if tr != nil {
		zlog.Info("content resubmitted",
			zap.String("kind", string(kind)),
			zap.String("id", item.EntityID()),
			zap.String("from", string(tr.From)))
		out.ModeratorsNotified = s.notifyModerators(ctx, item, true)
	}
	return out, nil
}

func (s *contentServiceImpl) submitted(ctx context.Context, item entity.Moderatable, creator *userEntity.UserBrief) *respond.SubmitRespond {
	zlog.Info("content submitted",
		zap.String("kind", string(item.ModerationKind())),
		zap.String("id", item.EntityID()),
		zap.String("owner", item.OwnerID()))
	return &respond.SubmitRespond{
		Item:               respond.FromModeratable(item),
		ModeratorsNotified: s.notify(ctx, item, creator.DisplayName(), false),
	}
}

func (s *contentServiceImpl) notifyModerators(ctx context.Context, item entity.Moderatable, resubmitted bool) int {
	return s.notify(ctx, item, displayName(s.userRepo, item.OwnerID()), resubmitted)
}

// displayName 查不到用户时退回 uuid
func displayName(repo userRepository.UserInfoRepository, uuid string) string {
	if repo == nil {
		return uuid
	}
	u, err := repo.GetUserBriefByUUID(uuid)
	if err != nil {
		zlog.Warn("load user failed", zap.String("uuid", uuid), zap.Error(err))
		return uuid
	}
	if u == nil {
		return uuid
	}
	return u.DisplayName()
}

func (s *contentServiceImpl) notify(ctx context.Context, item entity.Moderatable, creatorName string, resubmitted bool) int {
	if s.notifier == nil {
		return 0
	}
	ev := pendingEvent(item, creatorName, resubmitted, s.clock.Now())
	res := s.notifier.EmitRoleNotification(ctx, userEntity.RoleModerator, ev)
	if res.Failed > 0 {
		zlog.Warn("notify moderators partially failed",
			zap.String("type", ev.Type),
			zap.Int("failed", res.Failed),
			zap.Int("persisted", res.Persisted))
	}
	return res.Persisted
}

func (s *contentServiceImpl) activeUser(uuid string) (*userEntity.UserBrief, error) {
	return activeUser(s.userRepo, uuid)
}

// activeUser 操作人必须是正常状态的用户
func activeUser(repo userRepository.UserInfoRepository, uuid string) (*userEntity.UserBrief, error) {
	if uuid == "" {
		return nil, xerr.ErrUnauthorized
	}
	u, err := repo.GetUserBriefByUUID(uuid)
	if err != nil {
		zlog.Error("load user failed", zap.String("uuid", uuid), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	if !u.IsActive() {
		return nil, xerr.ErrUnauthorized
	}
	return u, nil
}

func validateArticle(req request.SubmitArticleRequest) error {
	switch n := util.RuneLen(req.Title); {
	case n == 0:
		return errTitleRequired
	case n > maxTitleLength:
		return errTitleTooLong
	}
	if util.RuneLen(req.Summary) > maxSummaryLength {
		return errSummaryTooLong
	}
	if util.RuneLen(req.Content) == 0 {
		return errContentRequired
	}
	return nil
}

func validateProject(req request.SubmitProjectRequest) error {
	switch n := util.RuneLen(req.Name); {
	case n == 0:
		return errNameRequired
	case n > maxNameLength:
		return errNameTooLong
	}
	return nil
}

func validateComment(content string) error {
	switch n := util.RuneLen(content); {
	case n == 0:
		return errContentRequired
	case n > maxCommentLength:
		return errCommentTooLong
	}
	return nil
}
