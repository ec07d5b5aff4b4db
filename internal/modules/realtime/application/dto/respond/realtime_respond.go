package respond

import "Inkwell/pkg/ws"

// ConnectedRespond connected 握手帧的负载
type ConnectedRespond struct {
	ConnectionId string   `json:"connectionId"`
	UserId       string   `json:"userId"`
	Roles        []string `json:"roles"`
	Transport    string   `json:"transport"`
}

// GroupRespond joined / left 帧的负载
type GroupRespond struct {
	Group string `json:"group"`
}

// ErrorRespond error 帧的负载
type ErrorRespond struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// StatusRespond GET /notifications/ws-status
type StatusRespond struct {
	ws.Status
	ModeratorsConnected int `json:"moderatorsConnected"`
}

// MarkedReadRespond 已读通知被重复标记时只回执给请求的连接
type MarkedReadRespond struct {
	NotificationId string `json:"notificationId"`
	AlreadyRead    bool   `json:"alreadyRead"`
}
