package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoServer struct {
	mu       sync.Mutex
	received []string
}

func (s *echoServer) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, string(frame))
			s.mu.Unlock()
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}

func (s *echoServer) frames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func newTestClient(t *testing.T) (*Client, *echoServer) {
	srv := &echoServer{}
	ts := httptest.NewServer(srv.handler(t))
	t.Cleanup(ts.Close)

	c := New(strings.TrimPrefix(ts.URL, "http://"))
	t.Cleanup(func() { c.Close() })
	return c, srv
}

func TestDialFailure(t *testing.T) {
	c := New("127.0.0.1:1")
	err := c.Dial(context.TODO())
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot connect")
}

func TestQueueFlushedInOrder(t *testing.T) {
	c, srv := newTestClient(t)

	c.Send([]byte("first"))
	c.Send([]byte("second"))
	require.NoError(t, c.Dial(context.TODO()))
	c.Send([]byte("third"))

	require.Eventually(t, func() bool {
		return len(srv.frames()) == 3
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"first", "second", "third"}, srv.frames())
}

func TestRecv(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Dial(context.TODO()))

	c.Send([]byte("ping"))
	select {
	case frame := <-c.Recv():
		assert.Equal(t, "ping", string(frame))
	case <-time.After(time.Second):
		t.Fatal("no frame received")
	}
}

func TestServerCloseSignalsClosed(t *testing.T) {
	srv := &echoServer{}
	upgraded := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		upgraded <- conn
	}))
	t.Cleanup(ts.Close)
	_ = srv

	c := New(strings.TrimPrefix(ts.URL, "http://"))
	require.NoError(t, c.Dial(context.TODO()))
	t.Cleanup(func() { c.Close() })

	(<-upgraded).Close()

	select {
	case <-c.Closed():
	case <-time.After(time.Second):
		t.Fatal("Closed not signalled")
	}
	assert.Error(t, c.Err())
}

func TestCloseIdempotent(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Dial(context.TODO()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.NoError(t, c.Err())
}
