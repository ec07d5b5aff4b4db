package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"Inkwell/internal/config"
	notificationRespond "Inkwell/internal/modules/notification/application/dto/respond"
	"Inkwell/internal/modules/realtime/application/service"
	userEntity "Inkwell/internal/modules/user/domain/entity"
	"Inkwell/pkg/back"
	"Inkwell/pkg/util/myjwt"
	"Inkwell/pkg/ws"
	"Inkwell/pkg/xerr"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUserRepo struct {
	users map[string]*userEntity.UserBrief
}

func (s *stubUserRepo) GetUserBriefByUUID(uuid string) (*userEntity.UserBrief, error) {
	return s.users[uuid], nil
}

func (s *stubUserRepo) FindActiveUUIDsByRole(string) ([]string, error) { return nil, nil }

type stubMarker struct {
	mu    sync.Mutex
	calls []string
	read  map[string]bool
	err   error
}

func (m *stubMarker) MarkRead(_ context.Context, userID, notificationID string) (*notificationRespond.NotificationRespond, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, userID+"/"+notificationID)
	if m.err != nil {
		return nil, false, m.err
	}
	if m.read == nil {
		m.read = map[string]bool{}
	}
	changed := !m.read[notificationID]
	m.read[notificationID] = true
	return &notificationRespond.NotificationRespond{Id: notificationID, IsRead: true}, changed, nil
}

func (m *stubMarker) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *stubMarker) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type testServer struct {
	*httptest.Server
	hub        *ws.Hub
	dispatcher *ws.Dispatcher
	verifier   *myjwt.Verifier
	marker     *stubMarker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	verifier, err := myjwt.NewVerifier(config.JwtConfig{Key: "test-key", ExpireHours: 1}, nil)
	require.NoError(t, err)
	users := &stubUserRepo{users: map[string]*userEntity.UserBrief{
		"u1":     {Uuid: "u1", Username: "u1", Roles: "USER", Status: userEntity.StatusActive},
		"mod":    {Uuid: "mod", Username: "mod", Roles: "MODERATOR", Status: userEntity.StatusActive},
		"banned": {Uuid: "banned", Username: "banned", Roles: "USER", Status: userEntity.StatusDisabled},
	}}
	hub := ws.NewHub()
	marker := &stubMarker{}
	h := NewRealtimeHandler(
		service.NewConnectionAuthenticator(verifier, users),
		hub,
		marker,
		config.RealtimeConfig{SendBufferSize: 16, AllowedOrigins: []string{"*"}},
	)

	r := gin.New()
	r.GET("/notifications/ws", h.Connect)
	r.GET("/notifications/stream", h.Stream)
	r.GET("/notifications/ws-status", h.Status)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	return &testServer{
		Server:     srv,
		hub:        hub,
		dispatcher: ws.NewDispatcher(hub, nil),
		verifier:   verifier,
		marker:     marker,
	}
}

func (s *testServer) token(t *testing.T, uuid string) string {
	t.Helper()
	tok, err := s.verifier.GenerateToken(uuid, uuid, nil)
	require.NoError(t, err)
	return tok
}

func (s *testServer) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + path
}

func readEnvelope(t *testing.T, conn *websocket.Conn) ws.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env ws.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestConnect_RejectsBeforeUpgrade(t *testing.T) {
	s := newTestServer(t)

	for name, url := range map[string]string{
		"missing":  s.wsURL("/notifications/ws"),
		"garbage":  s.wsURL("/notifications/ws?token=garbage"),
		"inactive": s.wsURL("/notifications/ws?token=" + s.token(t, "banned")),
		"unknown":  s.wsURL("/notifications/ws?token=" + s.token(t, "ghost")),
	} {
		t.Run(name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
			require.Error(t, err)
			if conn != nil {
				conn.Close()
			}
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			var body back.Response
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, xerr.Unauthorized, body.Code)
		})
	}
	assert.Equal(t, 0, s.hub.ConnectionCount())
}

func TestConnect_HandshakeAndControlMessages(t *testing.T) {
	s := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL("/notifications/ws?token="+s.token(t, "mod")), nil)
	require.NoError(t, err)
	defer conn.Close()

	env := readEnvelope(t, conn)
	require.Equal(t, ws.TypeConnected, env.Type)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, "mod", data["userId"])
	assert.Equal(t, "duplex", data["transport"])
	assert.Equal(t, []interface{}{"MODERATOR"}, data["roles"])
	assert.Equal(t, 1, s.hub.ConnectionCount())
	assert.Len(t, s.hub.HandlesForRole("MODERATOR"), 1)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "ping"}))
	assert.Equal(t, ws.TypePong, readEnvelope(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "join", "entityType": "article", "entityId": "a1"}))
	env = readEnvelope(t, conn)
	assert.Equal(t, ws.TypeJoined, env.Type)
	assert.Equal(t, "ARTICLE:a1", env.Data.(map[string]interface{})["group"])

	assert.Equal(t, 1, s.dispatcher.DispatchToGroup("ARTICLE:a1", ws.Envelope{Type: ws.TypeChannelBroadcast}))
	assert.Equal(t, ws.TypeChannelBroadcast, readEnvelope(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "leave", "entityType": "ARTICLE", "entityId": "a1"}))
	assert.Equal(t, ws.TypeLeft, readEnvelope(t, conn).Type)
	assert.Empty(t, s.hub.HandlesForGroup("ARTICLE:a1"))

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "join", "entityType": "video", "entityId": "v1"}))
	env = readEnvelope(t, conn)
	assert.Equal(t, ws.TypeError, env.Type)
	assert.Equal(t, float64(xerr.BadRequest), env.Data.(map[string]interface{})["code"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
	assert.Equal(t, ws.TypeError, readEnvelope(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "dance"}))
	assert.Equal(t, ws.TypeError, readEnvelope(t, conn).Type)
}

func TestConnect_SubprotocolToken(t *testing.T) {
	s := newTestServer(t)

	dialer := websocket.Dialer{Subprotocols: []string{service.SubprotocolAuth, s.token(t, "u1")}}
	conn, resp, err := dialer.Dial(s.wsURL("/notifications/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, service.SubprotocolAuth, resp.Header.Get("Sec-WebSocket-Protocol"))
	assert.Equal(t, ws.TypeConnected, readEnvelope(t, conn).Type)
}

func TestConnect_MarkAsRead(t *testing.T) {
	s := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL("/notifications/ws?token="+s.token(t, "u1")), nil)
	require.NoError(t, err)
	defer conn.Close()
	readEnvelope(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "markAsRead", "notificationId": "n1"}))
	require.Eventually(t, func() bool { return s.marker.callCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"u1/n1"}, s.marker.recorded())

	s.marker.mu.Lock()
	s.marker.err = xerr.New(xerr.Forbidden, "无权操作该通知")
	s.marker.mu.Unlock()
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "markAsRead", "notificationId": "n2"}))
	env := readEnvelope(t, conn)
	assert.Equal(t, ws.TypeError, env.Type)
	assert.Equal(t, float64(xerr.Forbidden), env.Data.(map[string]interface{})["code"])
}

func TestConnect_ConnectedFrameComesFirst(t *testing.T) {
	s := newTestServer(t)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				s.dispatcher.DispatchToUser("u1", ws.NewEnvelope(ws.TypeHeartbeat, nil, time.Now()))
				time.Sleep(time.Millisecond)
			}
		}
	}()

	for i := 0; i < 5; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(s.wsURL("/notifications/ws?token="+s.token(t, "u1")), nil)
		require.NoError(t, err)
		assert.Equal(t, ws.TypeConnected, readEnvelope(t, conn).Type)
		require.NoError(t, conn.Close())
	}
}

func TestConnect_MarkAsReadAlreadyReadAcksRequester(t *testing.T) {
	s := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL("/notifications/ws?token="+s.token(t, "u1")), nil)
	require.NoError(t, err)
	defer conn.Close()
	readEnvelope(t, conn)

	s.marker.mu.Lock()
	s.marker.read = map[string]bool{"n1": true}
	s.marker.mu.Unlock()

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "markAsRead", "notificationId": " n1 "}))
	env := readEnvelope(t, conn)
	assert.Equal(t, ws.TypeNotificationMarkedRead, env.Type)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, "n1", data["notificationId"])
	assert.Equal(t, true, data["alreadyRead"])
	assert.Equal(t, []string{"u1/n1"}, s.marker.recorded())
}

func TestConnect_CloseUnregisters(t *testing.T) {
	s := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL("/notifications/ws?token="+s.token(t, "u1")), nil)
	require.NoError(t, err)
	readEnvelope(t, conn)
	require.Equal(t, 1, s.hub.ConnectionCount())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return s.hub.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, s.hub.IsUserOnline("u1"))
}

func TestStream_HandshakeThenDispatch(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"/notifications/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.token(t, "u1"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	first := readFrame(t, reader)
	assert.Equal(t, ws.TypeConnected, first.Type)
	assert.Equal(t, "stream", first.Data.(map[string]interface{})["transport"])

	require.Equal(t, 1, s.dispatcher.DispatchToUser("u1", ws.Envelope{Type: ws.TypeNewNotification, Data: map[string]string{"id": "n1"}}))
	second := readFrame(t, reader)
	assert.Equal(t, ws.TypeNewNotification, second.Type)

	cancel()
	require.Eventually(t, func() bool { return s.hub.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStream_Unauthorized(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Get(s.URL + "/notifications/stream?token=garbage")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, s.hub.ConnectionCount())
}

func TestStatus(t *testing.T) {
	s := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL("/notifications/ws?token="+s.token(t, "mod")), nil)
	require.NoError(t, err)
	defer conn.Close()
	readEnvelope(t, conn)

	resp, err := http.Get(s.URL + "/notifications/ws-status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Code int                    `json:"code"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, xerr.OK, body.Code)
	assert.Equal(t, float64(1), body.Data["totalConnections"])
	assert.Equal(t, float64(1), body.Data["moderatorsConnected"])
	assert.Equal(t, float64(1), body.Data["onlineUsers"])
}

// readFrame 读取一帧 SSE data
func readFrame(t *testing.T, r *bufio.Reader) ws.Envelope {
	t.Helper()
	type result struct {
		env ws.Envelope
		err error
	}
	ch := make(chan result, 1)
	go func() {
		var payload string
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				ch <- result{err: err}
				return
			}
			line = strings.TrimRight(line, "\r\n")
			if strings.HasPrefix(line, "data:") {
				payload += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				continue
			}
			if line == "" && payload != "" {
				var env ws.Envelope
				err := json.Unmarshal([]byte(payload), &env)
				ch <- result{env: env, err: err}
				return
			}
		}
	}()
	select {
	case res := <-ch:
		require.NoError(t, res.err)
		return res.env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return ws.Envelope{}
	}
}
