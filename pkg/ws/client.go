package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"Inkwell/pkg/zlog"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	pingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 4096
)

var ErrPumpStarted = errors.New("ws: write pump already started")

// Client 双工 websocket 连接，写操作全部由 WritePump 串行完成
type Client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	pingPeriod time.Duration
	pongWait   time.Duration

	closeOnce sync.Once
	closed    atomic.Bool
	pumping   atomic.Bool

	// onAlive 收到 pong 或入站消息时回调，用于刷新存活时间
	onAlive atomic.Value
}

// NewClient ping 间隔应不大于心跳间隔，否则存活时间刷新不及时；<=0 取默认值
func NewClient(conn *websocket.Conn, bufferSize int, ping time.Duration) *Client {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if ping <= 0 {
		ping = pingPeriod
	}
	wait := PongWait
	if w := ping * 10 / 9; w > wait {
		wait = w
	}
	return &Client{
		conn:       conn,
		send:       make(chan []byte, bufferSize),
		done:       make(chan struct{}),
		pingPeriod: ping,
		pongWait:   wait,
	}
}

func (c *Client) Kind() TransportKind { return KindDuplex }

// SetOnAlive 注册存活回调
func (c *Client) SetOnAlive(fn func()) {
	if fn != nil {
		c.onAlive.Store(fn)
	}
}

func (c *Client) alive() {
	if fn, ok := c.onAlive.Load().(func()); ok {
		fn()
	}
}

// Send 入队，关闭或缓冲满时返回 false
func (c *Client) Send(msg []byte) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Done 连接关闭后可读
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		if c.conn != nil {
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = c.conn.Close()
		}
	})
}

// WriteNow 在 WritePump 启动前直接写出一帧，用于必须先于队列消息到达的握手帧
func (c *Client) WriteNow(msg []byte) error {
	if c.pumping.Load() {
		return ErrPumpStarted
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// WritePump 将发送队列写到网络，并周期发送 ping 帧
func (c *Client) WritePump() {
	if c.conn == nil {
		return
	}
	c.pumping.Store(true)
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				zlog.Warn("ws write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				zlog.Warn("ws ping failed", zap.Error(err))
				return
			}
		}
	}
}

// PrepareRead 设置读限制与 pong 处理，需在读循环开始前调用
func (c *Client) PrepareRead() {
	c.conn.SetReadLimit(MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.alive()
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})
}

// ReadMessage 读取一条入站消息并顺延读超时
func (c *Client) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	c.alive()
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	return data, nil
}
