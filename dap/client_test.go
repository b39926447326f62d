package dap

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-dap"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Client is a minimal in-process DAP client for exercising the
// adapter in tests.
type Client struct {
	conn Conn

	requests   map[int]chan<- dap.ResponseMessage
	requestsMu sync.Mutex

	events   map[string]func(dap.EventMessage)
	eventsMu sync.RWMutex

	seq    atomic.Int64
	eg     *errgroup.Group
	cancel context.CancelCauseFunc
}

func NewClient(conn Conn) *Client {
	c := &Client{
		conn:     conn,
		requests: make(map[int]chan<- dap.ResponseMessage),
		events:   make(map[string]func(dap.EventMessage)),
	}

	var ctx context.Context
	ctx, c.cancel = context.WithCancelCause(context.Background())

	c.eg, _ = errgroup.WithContext(context.Background())
	c.eg.Go(func() error {
		for {
			m, err := conn.RecvMsg(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			switch m := m.(type) {
			case dap.ResponseMessage:
				c.requestsMu.Lock()
				ch, ok := c.requests[m.GetResponse().RequestSeq]
				if ok {
					delete(c.requests, m.GetResponse().RequestSeq)
				}
				c.requestsMu.Unlock()
				if ok {
					ch <- m
				}
			case dap.EventMessage:
				c.eventsMu.RLock()
				fn := c.events[m.GetEvent().Event]
				c.eventsMu.RUnlock()
				if fn != nil {
					fn(m)
				}
			}
		}
	})
	return c
}

func (c *Client) RegisterEvent(name string, fn func(dap.EventMessage)) {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	c.events[name] = fn
}

func (c *Client) Close() {
	c.cancel(context.Canceled)
	c.eg.Wait()
}

func (c *Client) nextSeq() int {
	return int(c.seq.Add(1))
}

// DoRequest sends req and returns a channel yielding its typed
// response.
func DoRequest[Resp dap.ResponseMessage](t *testing.T, c *Client, req dap.RequestMessage) <-chan Resp {
	t.Helper()

	seq := c.nextSeq()
	req.GetRequest().Seq = seq
	req.GetRequest().Type = "request"

	out := make(chan Resp, 1)
	respCh := make(chan dap.ResponseMessage, 1)

	c.requestsMu.Lock()
	c.requests[seq] = respCh
	c.requestsMu.Unlock()

	if err := c.conn.SendMsg(req); err != nil {
		t.Errorf("send %s: %v", req.GetRequest().Command, err)
		close(out)
		return out
	}

	go func() {
		defer close(out)
		m, ok := <-respCh
		if !ok {
			return
		}
		typed, ok := m.(Resp)
		if !ok {
			t.Errorf("unexpected response type %T for %s", m, req.GetRequest().Command)
			return
		}
		out <- typed
	}()
	return out
}
