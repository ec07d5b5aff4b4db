package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	mu     sync.Mutex
	kind   TransportKind
	msgs   [][]byte
	closed bool
	fail   bool
	panics bool
}

func newFakeHandle() *fakeHandle { return &fakeHandle{kind: KindDuplex} }

func (f *fakeHandle) Send(msg []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	if f.closed || f.fail {
		return false
	}
	f.msgs = append(f.msgs, msg)
	return true
}

func (f *fakeHandle) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeHandle) Kind() TransportKind { return f.kind }

func (f *fakeHandle) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeHandle) envelopes(t *testing.T) []Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Envelope, 0, len(f.msgs))
	for _, m := range f.msgs {
		var env Envelope
		require.NoError(t, json.Unmarshal(m, &env))
		out = append(out, env)
	}
	return out
}

func (f *fakeHandle) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func newTestConnPair(t *testing.T) (server *websocket.Conn, client *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ready := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		ready <- conn
	}))
	t.Cleanup(func() { srv.Close() })

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-ready
	t.Cleanup(func() { serverConn.Close() })
	return serverConn, clientConn
}
