package moderation

import (
	"strings"
	"time"
)

// Status 审核状态
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusArchived Status = "ARCHIVED"
)

// Kind 可审核内容的类别
type Kind string

const (
	KindArticle Kind = "ARTICLE"
	KindProject Kind = "PROJECT"
	KindComment Kind = "COMMENT"
)

var kindLabels = map[Kind]string{
	KindArticle: "文章",
	KindProject: "项目",
	KindComment: "评论",
}

// ParseKind 接受 article / ARTICLE / articles 等写法
func ParseKind(raw string) (Kind, bool) {
	k := Kind(strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(raw)), "S"))
	_, ok := kindLabels[k]
	return k, ok
}

// Label 中文名，用于通知文案
func (k Kind) Label() string { return kindLabels[k] }

// Path 复数小写形式，用于链接
func (k Kind) Path() string { return strings.ToLower(string(k)) + "s" }

// State 嵌入到文章、项目、评论中的审核字段
type State struct {
	Status          Status     `gorm:"column:status;type:varchar(16);index;not null;default:PENDING;comment:审核状态"`
	ApprovedById    *string    `gorm:"column:approved_by_id;type:char(36);comment:审核通过人"`
	ApprovedAt      *time.Time `gorm:"column:approved_at;comment:审核通过时间"`
	RejectionReason *string    `gorm:"column:rejection_reason;type:varchar(500);comment:驳回原因"`
}

// NewState 新建内容一律进入待审核
func NewState() State {
	return State{Status: StatusPending}
}

// Consistent 审核人/时间当且仅当 APPROVED 时存在，驳回原因当且仅当 REJECTED 时存在
func (s State) Consistent() bool {
	approved := s.ApprovedById != nil && s.ApprovedAt != nil
	noApproval := s.ApprovedById == nil && s.ApprovedAt == nil
	switch s.Status {
	case StatusApproved:
		return approved && s.RejectionReason == nil
	case StatusRejected:
		return noApproval && s.RejectionReason != nil
	case StatusPending, StatusArchived:
		return noApproval && s.RejectionReason == nil
	default:
		return false
	}
}

func (s *State) clear() {
	s.ApprovedById = nil
	s.ApprovedAt = nil
	s.RejectionReason = nil
}

// Values 持久化审核结果时需要更新的列，nil 字段写为 NULL
func (s *State) Values() map[string]interface{} {
	return map[string]interface{}{
		"status":           s.Status,
		"approved_by_id":   s.ApprovedById,
		"approved_at":      s.ApprovedAt,
		"rejection_reason": s.RejectionReason,
	}
}
