package entity

import "time"

// Event 内存中的通知事件，构建记录后即丢弃
type Event struct {
	Type              string
	Title             string
	Message           string
	TargetUserID      string
	TargetRole        string
	RelatedEntityID   string
	RelatedEntityType string
	Metadata          Metadata
	// ActorID 触发者，角色群发时不通知自己
	ActorID   string
	CreatedAt time.Time
}
