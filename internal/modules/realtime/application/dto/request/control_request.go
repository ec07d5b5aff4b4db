package request

// 双工连接上客户端可发送的动作
const (
	ActionPing       = "ping"
	ActionJoin       = "join"
	ActionLeave      = "leave"
	ActionMarkAsRead = "markAsRead"
)

// ControlRequest 客户端控制消息
type ControlRequest struct {
	Action         string `json:"action"`
	EntityType     string `json:"entityType,omitempty"`
	EntityId       string `json:"entityId,omitempty"`
	NotificationId string `json:"notificationId,omitempty"`
}
