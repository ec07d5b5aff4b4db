package ws

import (
	"Inkwell/pkg/zlog"

	"go.uber.org/zap"
)

// Dispatcher 将事件扇出到注册表中的连接。
// 每个方法返回成功入队的连接数，0 表示无人在线，不视为错误。
type Dispatcher struct {
	hub      *Hub
	observer Observer
}

func NewDispatcher(hub *Hub, observer Observer) *Dispatcher {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Dispatcher{hub: hub, observer: observer}
}

func (d *Dispatcher) Hub() *Hub { return d.hub }

func (d *Dispatcher) DispatchToUser(userID string, env Envelope) int {
	if userID == "" {
		return 0
	}
	return d.deliver("user", d.hub.HandlesFor(userID), env)
}

func (d *Dispatcher) DispatchToRole(role string, env Envelope) int {
	return d.deliver("role", d.hub.HandlesForRole(role), env)
}

// DispatchToRoles 同时持有多个角色的连接只收到一次
func (d *Dispatcher) DispatchToRoles(roles []string, env Envelope) int {
	seen := make(map[string]struct{})
	var conns []*Connection
	for _, role := range roles {
		for _, c := range d.hub.HandlesForRole(role) {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			conns = append(conns, c)
		}
	}
	return d.deliver("role", conns, env)
}

func (d *Dispatcher) DispatchToGroup(group string, env Envelope) int {
	return d.deliver("group", d.hub.HandlesForGroup(group), env)
}

func (d *Dispatcher) Broadcast(env Envelope) int {
	return d.deliver("all", d.hub.Snapshot(), env)
}

// deliver 序列化一次，逐个连接入队；入队失败的连接被移出注册表
func (d *Dispatcher) deliver(target string, conns []*Connection, env Envelope) int {
	if len(conns) == 0 {
		d.observer.Delivered(target, 0)
		return 0
	}
	msg, err := env.Encode(d.hub.Clock().Now())
	if err != nil {
		zlog.Error("encode envelope failed", zap.String("type", env.Type), zap.Error(err))
		return 0
	}

	delivered := 0
	for _, c := range conns {
		if safeSend(c.handle, msg) {
			delivered++
			continue
		}
		d.observer.DeliveryFailed(target)
		if d.hub.Unregister(c.ID) {
			zlog.Warn("drop unreachable connection",
				zap.String("connId", c.ID),
				zap.String("userId", c.UserID),
				zap.String("type", env.Type))
		}
	}
	d.observer.Delivered(target, delivered)
	return delivered
}

// safeSend 隔离单个 handle 的异常，panic 视为发送失败
func safeSend(h Handle, msg []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error("handle send panic", zap.Any("recover", r))
			ok = false
		}
	}()
	return h.Send(msg)
}
