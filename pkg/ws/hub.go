package ws

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"Inkwell/pkg/util"

	"github.com/jonboulle/clockwork"
)

var (
	ErrInvalidConnection  = errors.New("ws: userID and handle are required")
	ErrAlreadyRegistered  = errors.New("ws: handle already registered")
	ErrTooManyConnections = errors.New("ws: too many connections for user")
	ErrUnknownConnection  = errors.New("ws: unknown connection")
	ErrHubClosed          = errors.New("ws: hub closed")
)

// Connection 注册表中的一条连接记录
type Connection struct {
	ID          string
	UserID      string
	Roles       []string
	Kind        TransportKind
	ConnectedAt time.Time

	handle   Handle
	lastSeen atomic.Int64
}

func (c *Connection) Handle() Handle { return c.handle }

// LastLivenessAt 最近一次确认连接存活的时间
func (c *Connection) LastLivenessAt() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

func (c *Connection) touch(at time.Time) {
	c.lastSeen.Store(at.UnixNano())
}

// Hub 进程内连接注册表。
// users 中每个 bucket 只做整体替换不做原地修改，读者拿到的切片永远完整。
type Hub struct {
	mu       sync.RWMutex
	users    map[string][]*Connection
	byID     map[string]*Connection
	byHandle map[Handle]string
	roles    map[string]map[string]*Connection
	groups   map[string]map[string]*Connection
	memberOf map[string]map[string]struct{}
	// closed 在 CloseAll 后置位，之后拒绝新连接
	closed bool

	clock      clockwork.Clock
	maxPerUser int
	observer   Observer
}

type HubOption func(*Hub)

func WithClock(clock clockwork.Clock) HubOption {
	return func(h *Hub) { h.clock = clock }
}

// WithMaxConnectionsPerUser 0 表示不限制
func WithMaxConnectionsPerUser(n int) HubOption {
	return func(h *Hub) { h.maxPerUser = n }
}

func WithObserver(o Observer) HubOption {
	return func(h *Hub) {
		if o != nil {
			h.observer = o
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		users:    make(map[string][]*Connection),
		byID:     make(map[string]*Connection),
		byHandle: make(map[Handle]string),
		roles:    make(map[string]map[string]*Connection),
		groups:   make(map[string]map[string]*Connection),
		memberOf: make(map[string]map[string]struct{}),
		clock:    clockwork.NewRealClock(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Clock() clockwork.Clock { return h.clock }

// Register 登记连接并返回 connectionId，同一 handle 只能登记一次
func (h *Hub) Register(userID string, roles []string, handle Handle) (string, error) {
	if userID == "" || handle == nil {
		return "", ErrInvalidConnection
	}
	now := h.clock.Now()
	conn := &Connection{
		ID:          util.GenerateUUID(),
		UserID:      userID,
		Roles:       normalizeRoles(roles),
		Kind:        handle.Kind(),
		ConnectedAt: now,
		handle:      handle,
	}
	conn.touch(now)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", ErrHubClosed
	}
	if _, ok := h.byHandle[handle]; ok {
		h.mu.Unlock()
		return "", ErrAlreadyRegistered
	}
	bucket := h.users[userID]
	if h.maxPerUser > 0 && len(bucket) >= h.maxPerUser {
		h.mu.Unlock()
		return "", ErrTooManyConnections
	}
	next := make([]*Connection, len(bucket), len(bucket)+1)
	copy(next, bucket)
	h.users[userID] = append(next, conn)
	h.byID[conn.ID] = conn
	h.byHandle[handle] = conn.ID
	for _, r := range conn.Roles {
		set := h.roles[r]
		if set == nil {
			set = make(map[string]*Connection)
			h.roles[r] = set
		}
		set[conn.ID] = conn
	}
	h.mu.Unlock()

	h.observer.ConnectionOpened(conn.Kind)
	return conn.ID, nil
}

// Unregister 从所有索引移除连接并关闭 handle；未知 id 返回 false，可重复调用
func (h *Hub) Unregister(connID string) bool {
	h.mu.Lock()
	conn, ok := h.byID[connID]
	if !ok {
		h.mu.Unlock()
		return false
	}
	delete(h.byID, connID)
	delete(h.byHandle, conn.handle)

	bucket := h.users[conn.UserID]
	if len(bucket) <= 1 {
		delete(h.users, conn.UserID)
	} else {
		next := make([]*Connection, 0, len(bucket)-1)
		for _, c := range bucket {
			if c.ID != connID {
				next = append(next, c)
			}
		}
		h.users[conn.UserID] = next
	}

	for _, r := range conn.Roles {
		if set := h.roles[r]; set != nil {
			delete(set, connID)
			if len(set) == 0 {
				delete(h.roles, r)
			}
		}
	}
	for g := range h.memberOf[connID] {
		if set := h.groups[g]; set != nil {
			delete(set, connID)
			if len(set) == 0 {
				delete(h.groups, g)
			}
		}
	}
	delete(h.memberOf, connID)
	h.mu.Unlock()

	// 网络关闭放在锁外
	conn.handle.Close()
	h.observer.ConnectionClosed(conn.Kind)
	return true
}

// Lookup 按 connectionId 查找
func (h *Hub) Lookup(connID string) (*Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.byID[connID]
	return c, ok
}

// HandlesFor 用户当前全部连接，返回的切片只读
func (h *Hub) HandlesFor(userID string) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.users[userID]
}

// HandlesForRole 持有指定角色的全部连接
func (h *Hub) HandlesForRole(role string) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return collect(h.roles[strings.ToUpper(role)])
}

// Join 将连接加入兴趣组
func (h *Hub) Join(connID, group string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.byID[connID]
	if !ok {
		return ErrUnknownConnection
	}
	set := h.groups[group]
	if set == nil {
		set = make(map[string]*Connection)
		h.groups[group] = set
	}
	set[connID] = conn
	member := h.memberOf[connID]
	if member == nil {
		member = make(map[string]struct{})
		h.memberOf[connID] = member
	}
	member[group] = struct{}{}
	return nil
}

// Leave 退出兴趣组，不在组内时什么也不做
func (h *Hub) Leave(connID, group string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.byID[connID]; !ok {
		return ErrUnknownConnection
	}
	if set := h.groups[group]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(h.groups, group)
		}
	}
	if member := h.memberOf[connID]; member != nil {
		delete(member, group)
	}
	return nil
}

func (h *Hub) HandlesForGroup(group string) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return collect(h.groups[group])
}

// Snapshot 全部连接的时间点快照
func (h *Hub) Snapshot() []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return collect(h.byID)
}

// Touch 刷新连接的存活时间
func (h *Hub) Touch(connID string) {
	h.mu.RLock()
	conn, ok := h.byID[connID]
	h.mu.RUnlock()
	if ok {
		conn.touch(h.clock.Now())
	}
}

func (h *Hub) IsUserOnline(userID string) bool {
	return len(h.HandlesFor(userID)) > 0
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byID)
}

func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

// UserStatus 单个用户的连接概况
type UserStatus struct {
	UserID      string    `json:"userId"`
	Connections int       `json:"connections"`
	Roles       []string  `json:"roles"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Status 注册表概况
type Status struct {
	TotalConnections int          `json:"totalConnections"`
	DuplexCount      int          `json:"duplexConnections"`
	StreamCount      int          `json:"streamConnections"`
	OnlineUsers      int          `json:"onlineUsers"`
	Groups           int          `json:"groups"`
	Users            []UserStatus `json:"users"`
}

func (h *Hub) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	st := Status{
		TotalConnections: len(h.byID),
		OnlineUsers:      len(h.users),
		Groups:           len(h.groups),
		Users:            make([]UserStatus, 0, len(h.users)),
	}
	for _, c := range h.byID {
		if c.Kind == KindStream {
			st.StreamCount++
		} else {
			st.DuplexCount++
		}
	}
	for uid, bucket := range h.users {
		us := UserStatus{UserID: uid, Connections: len(bucket)}
		for _, c := range bucket {
			if us.ConnectedAt.IsZero() || c.ConnectedAt.Before(us.ConnectedAt) {
				us.ConnectedAt = c.ConnectedAt
			}
			if us.Roles == nil {
				us.Roles = c.Roles
			}
		}
		st.Users = append(st.Users, us)
	}
	return st
}

// CloseAll 关闭并清空全部连接，返回关闭数量。之后 Register 返回 ErrHubClosed
func (h *Hub) CloseAll() int {
	h.mu.Lock()
	h.closed = true
	conns := collect(h.byID)
	h.users = make(map[string][]*Connection)
	h.byID = make(map[string]*Connection)
	h.byHandle = make(map[Handle]string)
	h.roles = make(map[string]map[string]*Connection)
	h.groups = make(map[string]map[string]*Connection)
	h.memberOf = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, c := range conns {
		c.handle.Close()
		h.observer.ConnectionClosed(c.Kind)
	}
	return len(conns)
}

func collect(set map[string]*Connection) []*Connection {
	if len(set) == 0 {
		return nil
	}
	out := make([]*Connection, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		r = strings.ToUpper(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
