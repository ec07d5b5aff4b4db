package moderation

import (
	"strings"
	"time"

	"Inkwell/internal/modules/user/domain/entity"
	"Inkwell/pkg/util"
	"Inkwell/pkg/xerr"
)

const (
	MinReasonLength = 10
	MaxReasonLength = 500
)

var (
	ErrNotModerator     = xerr.New(xerr.Forbidden, "需要审核员或管理员权限")
	ErrSelfModeration   = xerr.New(xerr.Forbidden, "不能审核自己提交的内容")
	ErrNotOwner         = xerr.New(xerr.Forbidden, "只有作者可以修改该内容")
	ErrArchiveForbidden = xerr.New(xerr.Forbidden, "只有作者或管理员可以归档该内容")
	ErrNotPending       = xerr.New(xerr.Conflict, "只有待审核的内容可以审核")
	ErrArchived         = xerr.New(xerr.Conflict, "内容已归档")
	ErrReasonRequired   = xerr.New(xerr.BadRequest, "驳回原因不能为空")
	ErrReasonTooShort   = xerr.New(xerr.BadRequest, "驳回原因至少 10 个字符")
	ErrReasonTooLong    = xerr.New(xerr.BadRequest, "驳回原因不能超过 500 个字符")
)

// Actor 执行操作的用户
type Actor struct {
	ID    string
	Roles []string
}

func (a Actor) IsModerator() bool {
	return entity.HasAnyRole(a.Roles, entity.RoleModerator, entity.RoleAdmin)
}

func (a Actor) IsAdmin() bool {
	return entity.HasAnyRole(a.Roles, entity.RoleAdmin)
}

// Target 一条可审核内容
type Target struct {
	Kind    Kind
	ID      string
	OwnerID string
	State   *State
}

// Transition 状态迁移成功后产生的领域事件
type Transition struct {
	Kind     Kind
	EntityID string
	OwnerID  string
	ActorID  string
	From     Status
	To       Status
	Reason   string
	At       time.Time
}

// Approve PENDING -> APPROVED
func Approve(t Target, actor Actor, now time.Time) (Transition, error) {
	if err := checkModerator(t, actor); err != nil {
		return Transition{}, err
	}
	if t.State.Status != StatusPending {
		return Transition{}, ErrNotPending
	}

	from := t.State.Status
	by := actor.ID
	at := now
	t.State.clear()
	t.State.Status = StatusApproved
	t.State.ApprovedById = &by
	t.State.ApprovedAt = &at
	return newTransition(t, actor.ID, from, "", now), nil
}

// Reject PENDING -> REJECTED，原因去除首尾空白后长度需在 10 到 500 之间
func Reject(t Target, actor Actor, reason string, now time.Time) (Transition, error) {
	if err := checkModerator(t, actor); err != nil {
		return Transition{}, err
	}
	if t.State.Status != StatusPending {
		return Transition{}, ErrNotPending
	}
	reason = strings.TrimSpace(reason)
	switch n := util.RuneLen(reason); {
	case n == 0:
		return Transition{}, ErrReasonRequired
	case n < MinReasonLength:
		return Transition{}, ErrReasonTooShort
	case n > MaxReasonLength:
		return Transition{}, ErrReasonTooLong
	}

	from := t.State.Status
	t.State.clear()
	t.State.Status = StatusRejected
	t.State.RejectionReason = &reason
	return newTransition(t, actor.ID, from, reason, now), nil
}

// ResetOnEdit 作者编辑后 APPROVED/REJECTED 回到 PENDING。
// 已是 PENDING 时返回 nil；已归档的内容不可编辑。
func ResetOnEdit(t Target, editorID string, now time.Time) (*Transition, error) {
	if editorID == "" || editorID != t.OwnerID {
		return nil, ErrNotOwner
	}
	switch t.State.Status {
	case StatusArchived:
		return nil, ErrArchived
	case StatusPending:
		return nil, nil
	}

	from := t.State.Status
	t.State.clear()
	t.State.Status = StatusPending
	tr := newTransition(t, editorID, from, "", now)
	return &tr, nil
}

// Archive 任意非归档状态 -> ARCHIVED，仅作者或管理员
func Archive(t Target, actor Actor, now time.Time) (Transition, error) {
	if actor.ID == "" || (actor.ID != t.OwnerID && !actor.IsAdmin()) {
		return Transition{}, ErrArchiveForbidden
	}
	if t.State.Status == StatusArchived {
		return Transition{}, ErrArchived
	}

	from := t.State.Status
	t.State.clear()
	t.State.Status = StatusArchived
	return newTransition(t, actor.ID, from, "", now), nil
}

func checkModerator(t Target, actor Actor) error {
	if actor.ID == "" || !actor.IsModerator() {
		return ErrNotModerator
	}
	if actor.ID == t.OwnerID {
		return ErrSelfModeration
	}
	return nil
}

func newTransition(t Target, actorID string, from Status, reason string, at time.Time) Transition {
	return Transition{
		Kind:     t.Kind,
		EntityID: t.ID,
		OwnerID:  t.OwnerID,
		ActorID:  actorID,
		From:     from,
		To:       t.State.Status,
		Reason:   reason,
		At:       at,
	}
}
