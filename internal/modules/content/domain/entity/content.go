package entity

import (
	"time"

	"Inkwell/internal/modules/content/domain/moderation"
	"Inkwell/pkg/util"
)

// Moderatable 文章、项目、评论共用的审核视图
type Moderatable interface {
	ModerationKind() moderation.Kind
	EntityID() string
	OwnerID() string
	DisplayTitle() string
	ModerationState() *moderation.State
}

// Target 构造状态机入参
func Target(m Moderatable) moderation.Target {
	return moderation.Target{
		Kind:    m.ModerationKind(),
		ID:      m.EntityID(),
		OwnerID: m.OwnerID(),
		State:   m.ModerationState(),
	}
}

type Article struct {
	Id               int64  `gorm:"column:id;primaryKey;comment:自增id"`
	Uuid             string `gorm:"column:uuid;uniqueIndex;type:char(36);not null"`
	AuthorId         string `gorm:"column:author_id;type:char(36);index;not null"`
	Title            string `gorm:"column:title;type:varchar(200);not null"`
	Summary          string `gorm:"column:summary;type:varchar(500)"`
	Content          string `gorm:"column:content;type:longtext"`
	moderation.State `gorm:"embedded"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (Article) TableName() string { return "article" }

func (a *Article) ModerationKind() moderation.Kind     { return moderation.KindArticle }
func (a *Article) EntityID() string                    { return a.Uuid }
func (a *Article) OwnerID() string                     { return a.AuthorId }
func (a *Article) DisplayTitle() string                { return a.Title }
func (a *Article) ModerationState() *moderation.State { return &a.State }

type Project struct {
	Id               int64  `gorm:"column:id;primaryKey;comment:自增id"`
	Uuid             string `gorm:"column:uuid;uniqueIndex;type:char(36);not null"`
	OwnerUserId      string `gorm:"column:owner_id;type:char(36);index;not null"`
	Name             string `gorm:"column:name;type:varchar(120);not null"`
	Description      string `gorm:"column:description;type:text"`
	RepositoryUrl    string `gorm:"column:repository_url;type:varchar(255)"`
	moderation.State `gorm:"embedded"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (Project) TableName() string { return "project" }

func (p *Project) ModerationKind() moderation.Kind     { return moderation.KindProject }
func (p *Project) EntityID() string                    { return p.Uuid }
func (p *Project) OwnerID() string                     { return p.OwnerUserId }
func (p *Project) DisplayTitle() string                { return p.Name }
func (p *Project) ModerationState() *moderation.State { return &p.State }

// Comment 评论挂在文章或项目下
type Comment struct {
	Id               int64  `gorm:"column:id;primaryKey;comment:自增id"`
	Uuid             string `gorm:"column:uuid;uniqueIndex;type:char(36);not null"`
	AuthorId         string `gorm:"column:author_id;type:char(36);index;not null"`
	TargetType       string `gorm:"column:target_type;type:varchar(16);not null;index:idx_comment_target,priority:1"`
	TargetId         string `gorm:"column:target_id;type:char(36);not null;index:idx_comment_target,priority:2"`
	ParentId         string `gorm:"column:parent_id;type:char(36);index;comment:被回复的评论"`
	Content          string `gorm:"column:content;type:text;not null"`
	moderation.State `gorm:"embedded"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (Comment) TableName() string { return "comment" }

func (c *Comment) ModerationKind() moderation.Kind     { return moderation.KindComment }
func (c *Comment) EntityID() string                    { return c.Uuid }
func (c *Comment) OwnerID() string                     { return c.AuthorId }
func (c *Comment) DisplayTitle() string                { return util.Truncate(c.Content, 30) }
func (c *Comment) ModerationState() *moderation.State { return &c.State }

// Group 评论所属内容的兴趣组名
func (c *Comment) Group() string {
	return GroupOf(moderation.Kind(c.TargetType), c.TargetId)
}

// GroupOf 内容实体的兴趣组名，与客户端 join 的写法一致
func GroupOf(kind moderation.Kind, id string) string {
	return string(kind) + ":" + id
}
