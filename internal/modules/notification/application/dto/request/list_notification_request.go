package request

type ListNotificationRequest struct {
	Page       int  `form:"page"`
	PageSize   int  `form:"pageSize"`
	UnreadOnly bool `form:"unreadOnly"`
}
