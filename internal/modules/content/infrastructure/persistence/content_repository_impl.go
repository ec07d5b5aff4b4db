package persistence

import (
	"errors"
	"fmt"

	"Inkwell/internal/modules/content/domain/entity"
	"Inkwell/internal/modules/content/domain/moderation"
	"Inkwell/internal/modules/content/domain/repository"

	"gorm.io/gorm"
)

type contentRepositoryImpl struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) repository.ContentRepository {
	return &contentRepositoryImpl{db: db}
}

func (r *contentRepositoryImpl) CreateArticle(a *entity.Article) error {
	return r.db.Create(a).Error
}

func (r *contentRepositoryImpl) CreateProject(p *entity.Project) error {
	return r.db.Create(p).Error
}

func (r *contentRepositoryImpl) CreateComment(c *entity.Comment) error {
	return r.db.Create(c).Error
}

func (r *contentRepositoryImpl) FindModeratable(kind moderation.Kind, uuid string) (entity.Moderatable, error) {
	item, err := newItem(kind)
	if err != nil {
		return nil, err
	}
	err = r.db.Where("uuid = ?", uuid).First(item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *contentRepositoryImpl) SaveTransition(item entity.Moderatable, from moderation.Status) (bool, error) {
	return r.conditionalUpdate(item, from, item.ModerationState().Values())
}

func (r *contentRepositoryImpl) SaveEdit(item entity.Moderatable, from moderation.Status) (bool, error) {
	cols := item.ModerationState().Values()
	switch v := item.(type) {
	case *entity.Article:
		cols["title"] = v.Title
		cols["summary"] = v.Summary
		cols["content"] = v.Content
		cols["updated_at"] = v.UpdatedAt
	case *entity.Project:
		cols["name"] = v.Name
		cols["description"] = v.Description
		cols["repository_url"] = v.RepositoryUrl
		cols["updated_at"] = v.UpdatedAt
	case *entity.Comment:
		cols["content"] = v.Content
		cols["updated_at"] = v.UpdatedAt
	default:
		return false, fmt.Errorf("unsupported moderatable %T", item)
	}
	return r.conditionalUpdate(item, from, cols)
}

// conditionalUpdate 以读取时的状态为条件更新，并发审核时后到者影响 0 行
func (r *contentRepositoryImpl) conditionalUpdate(item entity.Moderatable, from moderation.Status, cols map[string]interface{}) (bool, error) {
	res := r.db.Model(item).
		Where("uuid = ? AND status = ?", item.EntityID(), from).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *contentRepositoryImpl) ListByStatus(kind moderation.Kind, status moderation.Status, offset, limit int) ([]entity.Moderatable, int64, error) {
	switch kind {
	case moderation.KindArticle:
		var list []*entity.Article
		total, err := r.page(&entity.Article{}, status, offset, limit, &list)
		return toModeratable(list), total, err
	case moderation.KindProject:
		var list []*entity.Project
		total, err := r.page(&entity.Project{}, status, offset, limit, &list)
		return toModeratable(list), total, err
	case moderation.KindComment:
		var list []*entity.Comment
		total, err := r.page(&entity.Comment{}, status, offset, limit, &list)
		return toModeratable(list), total, err
	}
	return nil, 0, fmt.Errorf("unknown moderation kind %q", kind)
}

func (r *contentRepositoryImpl) page(model interface{}, status moderation.Status, offset, limit int, dest interface{}) (int64, error) {
	q := r.db.Model(model).Where("status = ?", status).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, err
	}
	// 待审核队列按提交先后处理
	err := q.Order("created_at ASC, id ASC").Offset(offset).Limit(limit).Find(dest).Error
	return total, err
}

func newItem(kind moderation.Kind) (entity.Moderatable, error) {
	switch kind {
	case moderation.KindArticle:
		return &entity.Article{}, nil
	case moderation.KindProject:
		return &entity.Project{}, nil
	case moderation.KindComment:
		return &entity.Comment{}, nil
	}
	return nil, fmt.Errorf("unknown moderation kind %q", kind)
}

func toModeratable[T entity.Moderatable](list []T) []entity.Moderatable {
	out := make([]entity.Moderatable, 0, len(list))
	for _, v := range list {
		out = append(out, v)
	}
	return out
}
