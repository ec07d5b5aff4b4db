package repository

import (
	"Inkwell/internal/modules/content/domain/entity"
	"Inkwell/internal/modules/content/domain/moderation"
)

type ContentRepository interface {
	CreateArticle(a *entity.Article) error
	CreateProject(p *entity.Project) error
	CreateComment(c *entity.Comment) error

	// FindModeratable 不存在时返回 nil, nil
	FindModeratable(kind moderation.Kind, uuid string) (entity.Moderatable, error)
	// SaveTransition 仅当库中状态仍为 from 时写入审核字段，返回是否写入
	SaveTransition(item entity.Moderatable, from moderation.Status) (bool, error)
	// SaveEdit 写入内容字段与审核字段
	SaveEdit(item entity.Moderatable, from moderation.Status) (bool, error)
	ListByStatus(kind moderation.Kind, status moderation.Status, offset, limit int) ([]entity.Moderatable, int64, error)
}
