package request

// RejectRequest 原因长度由审核规则校验
type RejectRequest struct {
	Reason string `json:"reason"`
}

type ListPendingRequest struct {
	Page     int `form:"page"`
	PageSize int `form:"pageSize"`
}
