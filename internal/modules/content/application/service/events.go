package service

import (
	"fmt"
	"time"

	"Inkwell/pkg/util"

	"Inkwell/internal/modules/content/domain/entity"
	"Inkwell/internal/modules/content/domain/moderation"
	notificationEntity "Inkwell/internal/modules/notification/domain/entity"
)

// 通知类型形如 ARTICLE_PENDING、PROJECT_APPROVED、COMMENT_REJECTED
func notificationType(kind moderation.Kind, suffix string) string {
	return string(kind) + "_" + suffix
}

// pendingEvent 提交或重新提交后发给审核员
func pendingEvent(item entity.Moderatable, creatorName string, resubmitted bool, at time.Time) notificationEntity.Event {
	kind := item.ModerationKind()
	title := fmt.Sprintf("新%s待审核", kind.Label())
	message := fmt.Sprintf("%s 提交了%s「%s」，等待审核", creatorName, kind.Label(), item.DisplayTitle())
	if resubmitted {
		title = fmt.Sprintf("%s已修改，待重新审核", kind.Label())
		message = fmt.Sprintf("%s 修改了%s「%s」，等待重新审核", creatorName, kind.Label(), item.DisplayTitle())
	}
	meta := notificationEntity.Metadata{
		"title":       item.DisplayTitle(),
		"creatorName": creatorName,
		"action":      "moderate",
		"url":         fmt.Sprintf("/moderation/%s/%s", kind.Path(), item.EntityID()),
	}
	if resubmitted {
		meta["resubmitted"] = true
	}
	if c, ok := item.(*entity.Comment); ok {
		meta["targetType"] = c.TargetType
		meta["targetId"] = c.TargetId
		if c.ParentId != "" {
			meta["parentId"] = c.ParentId
		}
	}
	return notificationEntity.Event{
		Type:              notificationType(kind, "PENDING"),
		Title:             title,
		Message:           message,
		RelatedEntityID:   item.EntityID(),
		RelatedEntityType: string(kind),
		Metadata:          meta,
		ActorID:           item.OwnerID(),
		CreatedAt:         at,
	}
}

// decisionEvent 审核通过或驳回后发给作者
func decisionEvent(item entity.Moderatable, tr moderation.Transition) notificationEntity.Event {
	kind := item.ModerationKind()
	ev := notificationEntity.Event{
		TargetUserID:      item.OwnerID(),
		RelatedEntityID:   item.EntityID(),
		RelatedEntityType: string(kind),
		ActorID:           tr.ActorID,
		CreatedAt:         tr.At,
	}
	meta := notificationEntity.Metadata{
		"title":       item.DisplayTitle(),
		"moderatorId": tr.ActorID,
	}
	link := fmt.Sprintf("/%s/%s", kind.Path(), item.EntityID())

	switch tr.To {
	case moderation.StatusApproved:
		ev.Type = notificationType(kind, "APPROVED")
		ev.Title = fmt.Sprintf("%s审核通过", kind.Label())
		ev.Message = fmt.Sprintf("你的%s「%s」已通过审核并公开发布", kind.Label(), item.DisplayTitle())
		meta["action"] = "view"
		meta["url"] = link
	case moderation.StatusRejected:
		ev.Type = notificationType(kind, "REJECTED")
		ev.Title = fmt.Sprintf("%s需要修改", kind.Label())
		ev.Message = fmt.Sprintf("你的%s「%s」未通过审核。原因：%s", kind.Label(), item.DisplayTitle(), tr.Reason)
		meta["action"] = "edit"
		meta["url"] = link + "/edit"
		meta["rejectionReason"] = tr.Reason
	}
	ev.Metadata = meta
	return ev
}

const (
	TypeNewComment   = "NEW_COMMENT"
	TypeCommentReply = "COMMENT_REPLY"

	excerptLength = 100
)

// commentEvent 评论公开后发给被评论内容的作者
func commentEvent(c *entity.Comment, target entity.Moderatable, authorName string, at time.Time) notificationEntity.Event {
	kind := target.ModerationKind()
	return notificationEntity.Event{
		Type:              TypeNewComment,
		Title:             "新评论",
		Message:           fmt.Sprintf("%s 评论了你的%s「%s」", authorName, kind.Label(), target.DisplayTitle()),
		TargetUserID:      target.OwnerID(),
		RelatedEntityID:   c.Uuid,
		RelatedEntityType: string(moderation.KindComment),
		ActorID:           c.AuthorId,
		CreatedAt:         at,
		Metadata: notificationEntity.Metadata{
			"commentId":  c.Uuid,
			"targetType": c.TargetType,
			"targetId":   c.TargetId,
			"authorName": authorName,
			"content":    util.Truncate(c.Content, excerptLength),
			"action":     "view",
			"url":        fmt.Sprintf("/%s/%s", kind.Path(), c.TargetId),
		},
	}
}

// replyEvent 回复公开后发给被回复评论的作者
func replyEvent(c *entity.Comment, parent *entity.Comment, authorName string, at time.Time) notificationEntity.Event {
	kind := moderation.Kind(c.TargetType)
	return notificationEntity.Event{
		Type:              TypeCommentReply,
		Title:             "新回复",
		Message:           fmt.Sprintf("%s 回复了你的评论「%s」", authorName, parent.DisplayTitle()),
		TargetUserID:      parent.AuthorId,
		RelatedEntityID:   c.Uuid,
		RelatedEntityType: string(moderation.KindComment),
		ActorID:           c.AuthorId,
		CreatedAt:         at,
		Metadata: notificationEntity.Metadata{
			"commentId":       c.Uuid,
			"parentCommentId": parent.Uuid,
			"targetType":      c.TargetType,
			"targetId":        c.TargetId,
			"authorName":      authorName,
			"content":         util.Truncate(c.Content, excerptLength),
			"action":          "view",
			"url":             fmt.Sprintf("/%s/%s", kind.Path(), c.TargetId),
		},
	}
}

// likeEvent 点赞后发给内容作者，取消点赞不通知
func likeEvent(item entity.Moderatable, likerID, likerName string, likes int64, at time.Time) notificationEntity.Event {
	kind := item.ModerationKind()
	return notificationEntity.Event{
		Type:              notificationType(kind, "LIKED"),
		Title:             "收到新的点赞",
		Message:           fmt.Sprintf("%s 赞了你的%s「%s」", likerName, kind.Label(), item.DisplayTitle()),
		TargetUserID:      item.OwnerID(),
		RelatedEntityID:   item.EntityID(),
		RelatedEntityType: string(kind),
		ActorID:           likerID,
		CreatedAt:         at,
		Metadata: notificationEntity.Metadata{
			"title":      item.DisplayTitle(),
			"likerName":  likerName,
			"likesCount": likes,
			"action":     "view",
			"url":        fmt.Sprintf("/%s/%s", kind.Path(), item.EntityID()),
		},
	}
}
