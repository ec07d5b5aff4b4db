package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"Inkwell/internal/config"
	contentEntity "Inkwell/internal/modules/content/domain/entity"
	contentModeration "Inkwell/internal/modules/content/domain/moderation"
	notificationRespond "Inkwell/internal/modules/notification/application/dto/respond"
	"Inkwell/internal/modules/realtime/application/dto/request"
	"Inkwell/internal/modules/realtime/application/dto/respond"
	"Inkwell/internal/modules/realtime/application/service"
	userEntity "Inkwell/internal/modules/user/domain/entity"
	"Inkwell/pkg/back"
	"Inkwell/pkg/ws"
	"Inkwell/pkg/xerr"
	"Inkwell/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	errBadControl     = xerr.New(xerr.BadRequest, "无法解析的控制消息")
	errUnknownAction  = xerr.New(xerr.BadRequest, "不支持的动作")
	errBadGroupTarget = xerr.New(xerr.BadRequest, "entityType 或 entityId 无效")
	errTooManyConns   = xerr.New(http.StatusTooManyRequests, "连接数已达上限")
	errShuttingDown   = xerr.New(http.StatusServiceUnavailable, "服务正在关闭")
)

// ReadMarker 标记已读，由 NotificationService 实现；状态变化时由其向该用户全部连接推送
type ReadMarker interface {
	MarkRead(ctx context.Context, userID, notificationID string) (*notificationRespond.NotificationRespond, bool, error)
}

type RealtimeHandler struct {
	auth       service.ConnectionAuthenticator
	hub        *ws.Hub
	marker     ReadMarker
	upgrader   websocket.Upgrader
	bufferSize int
	// pingEvery 双工连接的 ping 间隔，取心跳间隔使 pong 能在每轮探测前刷新存活时间
	pingEvery time.Duration
}

func NewRealtimeHandler(auth service.ConnectionAuthenticator, hub *ws.Hub, marker ReadMarker, conf config.RealtimeConfig) *RealtimeHandler {
	return &RealtimeHandler{
		auth:       auth,
		hub:        hub,
		marker:     marker,
		bufferSize: conf.SendBufferSize,
		pingEvery:  conf.HeartbeatInterval(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{service.SubprotocolAuth},
			CheckOrigin:     originChecker(conf.AllowedOrigins),
		},
	}
}

// originChecker 未配置或包含 * 时放行；无 Origin 头的非浏览器客户端放行
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

// authenticate 失败时直接以 HTTP 401 结束请求，连接不会被注册
func (h *RealtimeHandler) authenticate(c *gin.Context) (*service.Principal, bool) {
	p, err := h.auth.Authenticate(c.Request.Context(), h.auth.ExtractToken(c.Request))
	if err != nil {
		status := http.StatusUnauthorized
		if !xerr.Is(err, xerr.Unauthorized) {
			status = http.StatusInternalServerError
		}
		abortJSON(c, status, err)
		return nil, false
	}
	return p, true
}

func abortJSON(c *gin.Context, status int, err error) {
	var ce *xerr.CodeError
	if !errors.As(err, &ce) {
		ce = xerr.ErrServerError
	}
	c.AbortWithStatusJSON(status, back.Response{Code: ce.Code, Message: ce.Message})
}

// Connect GET /notifications/ws
func (h *RealtimeHandler) Connect(c *gin.Context) {
	p, ok := h.authenticate(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zlog.Warn("websocket upgrade failed", zap.String("userId", p.UserID), zap.Error(err))
		return
	}

	client := ws.NewClient(conn, h.bufferSize, h.pingEvery)
	connID, err := h.hub.Register(p.UserID, p.Roles, client)
	if err != nil {
		zlog.Warn("register connection failed", zap.String("userId", p.UserID), zap.Error(err))
		if msg, encErr := h.envelope(ws.TypeError, registerError(err)); encErr == nil {
			_ = conn.WriteMessage(websocket.TextMessage, msg)
		}
		client.Close()
		return
	}
	defer h.hub.Unregister(connID)

	client.SetOnAlive(func() { h.hub.Touch(connID) })
	// 握手帧在写协程启动前直接写出，保证先于注册后入队的推送
	msg, err := h.envelope(ws.TypeConnected, respond.ConnectedRespond{
		ConnectionId: connID,
		UserId:       p.UserID,
		Roles:        p.Roles,
		Transport:    string(ws.KindDuplex),
	})
	if err != nil {
		return
	}
	if err := client.WriteNow(msg); err != nil {
		zlog.Debug("write connected frame failed", zap.String("connId", connID), zap.Error(err))
		return
	}
	go client.WritePump()
	zlog.Info("websocket connected", zap.String("connId", connID), zap.String("userId", p.UserID))

	client.PrepareRead()
	for {
		data, err := client.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zlog.Debug("websocket read closed", zap.String("connId", connID), zap.Error(err))
			}
			return
		}
		h.handleControl(c.Request.Context(), connID, p, client, data)
	}
}

func (h *RealtimeHandler) handleControl(ctx context.Context, connID string, p *service.Principal, client ws.Handle, data []byte) {
	var req request.ControlRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.replyError(client, errBadControl)
		return
	}

	switch req.Action {
	case request.ActionPing:
		h.reply(client, ws.TypePong, nil)
	case request.ActionJoin, request.ActionLeave:
		group, ok := groupName(req.EntityType, req.EntityId)
		if !ok {
			h.replyError(client, errBadGroupTarget)
			return
		}
		if req.Action == request.ActionJoin {
			if err := h.hub.Join(connID, group); err != nil {
				h.replyError(client, xerr.ErrServerError)
				return
			}
			h.reply(client, ws.TypeJoined, respond.GroupRespond{Group: group})
			return
		}
		if err := h.hub.Leave(connID, group); err != nil {
			h.replyError(client, xerr.ErrServerError)
			return
		}
		h.reply(client, ws.TypeLeft, respond.GroupRespond{Group: group})
	case request.ActionMarkAsRead:
		if h.marker == nil {
			h.replyError(client, errUnknownAction)
			return
		}
		id := strings.TrimSpace(req.NotificationId)
		_, changed, err := h.marker.MarkRead(ctx, p.UserID, id)
		if err != nil {
			h.replyError(client, err)
			return
		}
		// 此前已读时没有广播，单独回执给请求方
		if !changed {
			h.reply(client, ws.TypeNotificationMarkedRead, respond.MarkedReadRespond{NotificationId: id, AlreadyRead: true})
		}
	default:
		h.replyError(client, errUnknownAction)
	}
}

// groupName 兴趣组形如 ARTICLE:<id>
func groupName(entityType, entityID string) (string, bool) {
	kind, ok := contentModeration.ParseKind(entityType)
	entityID = strings.TrimSpace(entityID)
	if !ok || entityID == "" {
		return "", false
	}
	return contentEntity.GroupOf(kind, entityID), true
}

// Stream GET /notifications/stream
func (h *RealtimeHandler) Stream(c *gin.Context) {
	p, ok := h.authenticate(c)
	if !ok {
		return
	}

	stream := ws.NewStreamClient(h.bufferSize)
	connID, err := h.hub.Register(p.UserID, p.Roles, stream)
	if err != nil {
		zlog.Warn("register stream failed", zap.String("userId", p.UserID), zap.Error(err))
		ce := registerError(err)
		abortJSON(c, ce.Code, ce)
		return
	}
	defer h.hub.Unregister(connID)
	stream.SetOnAlive(func() { h.hub.Touch(connID) })

	ws.PrepareHeaders(c.Writer)
	c.Status(http.StatusOK)
	// 握手帧直接写出，保证先于队列中的任何推送
	msg, err := h.envelope(ws.TypeConnected, respond.ConnectedRespond{
		ConnectionId: connID,
		UserId:       p.UserID,
		Roles:        p.Roles,
		Transport:    string(ws.KindStream),
	})
	if err != nil {
		return
	}
	if err := ws.WriteFrame(c.Writer, msg); err != nil {
		return
	}
	zlog.Info("stream connected", zap.String("connId", connID), zap.String("userId", p.UserID))

	if err := stream.Serve(c.Request.Context(), c.Writer); err != nil {
		zlog.Debug("stream write failed", zap.String("connId", connID), zap.Error(err))
	}
}

// Status GET /notifications/ws-status，仅管理员
func (h *RealtimeHandler) Status(c *gin.Context) {
	back.Success(c, respond.StatusRespond{
		Status:              h.hub.Status(),
		ModeratorsConnected: len(h.hub.HandlesForRole(userEntity.RoleModerator)),
	})
}

func (h *RealtimeHandler) envelope(typ string, data interface{}) ([]byte, error) {
	now := h.hub.Clock().Now()
	msg, err := ws.NewEnvelope(typ, data, now).Encode(now)
	if err != nil {
		zlog.Error("encode envelope failed", zap.String("type", typ), zap.Error(err))
	}
	return msg, err
}

// reply 只发给当前连接
func (h *RealtimeHandler) reply(client ws.Handle, typ string, data interface{}) {
	msg, err := h.envelope(typ, data)
	if err != nil {
		return
	}
	client.Send(msg)
}

func (h *RealtimeHandler) replyError(client ws.Handle, err error) {
	var ce *xerr.CodeError
	if !errors.As(err, &ce) {
		ce = xerr.ErrServerError
	}
	h.reply(client, ws.TypeError, respond.ErrorRespond{Code: ce.Code, Message: ce.Message})
}

func registerError(err error) *xerr.CodeError {
	switch {
	case errors.Is(err, ws.ErrTooManyConnections):
		return errTooManyConns
	case errors.Is(err, ws.ErrHubClosed):
		return errShuttingDown
	}
	return xerr.ErrServerError
}
