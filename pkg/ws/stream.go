package ws

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-contrib/sse"
)

// StreamClient 单向 SSE 连接。入队与 Client 相同，写出由 Serve 所在的请求协程完成
type StreamClient struct {
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
	closed    atomic.Bool
	onAlive   atomic.Value
}

func NewStreamClient(bufferSize int) *StreamClient {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &StreamClient{
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
}

func (s *StreamClient) Kind() TransportKind { return KindStream }

func (s *StreamClient) SetOnAlive(fn func()) {
	if fn != nil {
		s.onAlive.Store(fn)
	}
}

func (s *StreamClient) Send(msg []byte) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

func (s *StreamClient) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
	})
}

func (s *StreamClient) Done() <-chan struct{} { return s.done }

// PrepareHeaders 写入 SSE 响应头
func PrepareHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// WriteFrame 写出一帧 data 并立即 flush
func WriteFrame(w io.Writer, msg []byte) error {
	if err := sse.Encode(w, sse.Event{Data: string(msg)}); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// Serve 阻塞直到 ctx 结束、连接被关闭或写出失败
func (s *StreamClient) Serve(ctx context.Context, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return nil
		case <-s.done:
			return nil
		case msg := <-s.send:
			if err := WriteFrame(w, msg); err != nil {
				s.Close()
				return err
			}
			if fn, ok := s.onAlive.Load().(func()); ok {
				fn()
			}
		}
	}
}
