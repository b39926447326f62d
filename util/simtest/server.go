package simtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// Envelope is one decoded client request.
type Envelope struct {
	Request bool            `json:"request"`
	Type    string          `json:"type"`
	Token   string          `json:"token"`
	Payload json.RawMessage `json:"payload"`
}

// Handler produces the success payload for a request, or an error that
// is reported back as an error-status response.
type Handler func(env Envelope) (any, error)

// Server is a scripted in-process simulator runtime: a websocket
// endpoint that answers requests per registered handler (empty object
// by default) and can push unsolicited break events.
type Server struct {
	t  *testing.T
	ts *httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]Handler
	seen     map[string][]Envelope
	ready    chan struct{}
	once     sync.Once
}

func New(t *testing.T) *Server {
	s := &Server{
		t:        t,
		handlers: make(map[string]Handler),
		seen:     make(map[string][]Envelope),
		ready:    make(chan struct{}),
	}
	upgrader := websocket.Upgrader{}
	s.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conn = conn
		s.once.Do(func() { close(s.ready) })
		s.mu.Unlock()
		s.serve(conn)
	}))
	t.Cleanup(s.Close)
	return s
}

// Addr returns the host:port of the endpoint.
func (s *Server) Addr() string {
	return strings.TrimPrefix(s.ts.URL, "http://")
}

// Handle scripts the response for one request type.
func (s *Server) Handle(typ string, fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[typ] = fn
}

// Requests returns every request of the given type seen so far.
func (s *Server) Requests(typ string) []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Envelope(nil), s.seen[typ]...)
}

func (s *Server) serve(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			continue
		}

		s.mu.Lock()
		s.seen[env.Type] = append(s.seen[env.Type], env)
		fn := s.handlers[env.Type]
		s.mu.Unlock()

		var (
			payload any = struct{}{}
			status      = "success"
		)
		if fn != nil {
			p, err := fn(env)
			if err != nil {
				status = "error"
				payload = map[string]string{"reason": err.Error()}
			} else if p != nil {
				payload = p
			}
		}

		resp := map[string]any{
			"token":   env.Token,
			"status":  status,
			"payload": payload,
		}
		s.write(resp)
	}
}

// PushBreak sends an unsolicited break event to the client.
func (s *Server) PushBreak(payload any) {
	<-s.ready
	s.write(map[string]any{
		"type":    "breakpoint",
		"status":  "success",
		"payload": payload,
	})
}

func (s *Server) write(v any) {
	dt, err := json.Marshal(v)
	if err != nil {
		s.t.Errorf("simtest: marshal: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, dt); err != nil {
		s.t.Logf("simtest: write: %v", err)
	}
}

// Drop severs the connection without a close handshake, simulating a
// mid-session runtime crash.
func (s *Server) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *Server) Close() {
	s.Drop()
	s.ts.Close()
}
