package respond

import (
	"time"

	"Inkwell/internal/modules/content/domain/entity"
)

// ContentRespond 三类内容的统一视图，正文字段按类别填充
type ContentRespond struct {
	Id              string     `json:"id"`
	Kind            string     `json:"kind"`
	OwnerId         string     `json:"ownerId"`
	Title           string     `json:"title"`
	Status          string     `json:"status"`
	ApprovedById    *string    `json:"approvedById"`
	ApprovedAt      *time.Time `json:"approvedAt"`
	RejectionReason *string    `json:"rejectionReason"`

	Summary       string `json:"summary,omitempty"`
	Content       string `json:"content,omitempty"`
	Description   string `json:"description,omitempty"`
	RepositoryUrl string `json:"repositoryUrl,omitempty"`
	TargetType    string `json:"targetType,omitempty"`
	TargetId      string `json:"targetId,omitempty"`
	ParentId      string `json:"parentId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func FromModeratable(m entity.Moderatable) ContentRespond {
	st := m.ModerationState()
	out := ContentRespond{
		Id:              m.EntityID(),
		Kind:            string(m.ModerationKind()),
		OwnerId:         m.OwnerID(),
		Title:           m.DisplayTitle(),
		Status:          string(st.Status),
		ApprovedById:    st.ApprovedById,
		ApprovedAt:      st.ApprovedAt,
		RejectionReason: st.RejectionReason,
	}
	switch v := m.(type) {
	case *entity.Article:
		out.Summary = v.Summary
		out.Content = v.Content
		out.CreatedAt, out.UpdatedAt = v.CreatedAt, v.UpdatedAt
	case *entity.Project:
		out.Description = v.Description
		out.RepositoryUrl = v.RepositoryUrl
		out.CreatedAt, out.UpdatedAt = v.CreatedAt, v.UpdatedAt
	case *entity.Comment:
		out.Content = v.Content
		out.TargetType = v.TargetType
		out.TargetId = v.TargetId
		out.ParentId = v.ParentId
		out.CreatedAt, out.UpdatedAt = v.CreatedAt, v.UpdatedAt
	}
	return out
}

type SubmitRespond struct {
	Item               ContentRespond `json:"item"`
	ModeratorsNotified int            `json:"moderatorsNotified"`
}

// EditRespond Resubmitted 表示内容由已审核状态回到待审核
type EditRespond struct {
	Item               ContentRespond `json:"item"`
	Resubmitted        bool           `json:"resubmitted"`
	ModeratorsNotified int            `json:"moderatorsNotified"`
}

// ModerationRespond 通知结果仅作参考，不影响审核本身
type ModerationRespond struct {
	Item                     ContentRespond `json:"item"`
	OwnerNotified            bool           `json:"ownerNotified"`
	RealTimeNotificationSent bool           `json:"realTimeNotificationSent"`
	// InteractionsNotified 评论通过后通知到的被评论者与被回复者人数
	InteractionsNotified int `json:"interactionsNotified"`
}

type PendingListRespond struct {
	List     []ContentRespond `json:"list"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

// LikeRespond 点赞切换结果
type LikeRespond struct {
	TargetType        string `json:"targetType"`
	TargetId          string `json:"targetId"`
	Liked             bool   `json:"liked"`
	LikesCount        int64  `json:"likesCount"`
	RealTimeBroadcast bool   `json:"realTimeBroadcast"`
	OwnerNotified     bool   `json:"ownerNotified"`
}
