package transport

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	handshakeTimeout = 10 * time.Second
	closeTimeout     = 5 * time.Second
	sendBuffer       = 32
)

// Client is a websocket connection to the simulator runtime. One text
// frame per Send, no fragmentation. Payloads sent before the dial
// completes are queued and flushed in order on connect.
type Client struct {
	url string
	log *logrus.Entry

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	queue     [][]byte

	sendCh chan []byte
	recvCh chan []byte

	closeOnce sync.Once
	closed    chan struct{}
	err       error
	errMu     sync.Mutex

	eg *errgroup.Group
}

// New creates a client for ws://addr. The connection is not opened
// until Dial.
func New(addr string) *Client {
	u := url.URL{Scheme: "ws", Host: addr}
	return &Client{
		url:    u.String(),
		log:    logrus.WithField("component", "transport"),
		sendCh: make(chan []byte, sendBuffer),
		recvCh: make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// Dial opens the connection, flushes the pre-connect queue in FIFO
// order, and starts the read and write loops. A dial failure carries a
// user-visible reason.
func (c *Client) Dial(ctx context.Context) error {
	wsd := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, _, err := wsd.DialContext(ctx, c.url, nil)
	if err != nil {
		return errors.Wrapf(err, "cannot connect to %s", c.url)
	}

	c.mu.Lock()
	c.conn = conn
	for _, p := range c.queue {
		if err := conn.WriteMessage(websocket.TextMessage, p); err != nil {
			c.mu.Unlock()
			c.fail(err)
			return errors.Wrap(err, "failed to flush queued requests")
		}
	}
	c.queue = nil
	c.connected = true
	c.mu.Unlock()

	c.eg, _ = errgroup.WithContext(context.Background())
	c.eg.Go(c.readLoop)
	c.eg.Go(c.writeLoop)
	return nil
}

// Send queues or writes one text frame. It never blocks on the socket
// itself; ordering across calls is preserved.
func (c *Client) Send(payload []byte) {
	c.mu.Lock()
	if !c.connected {
		c.queue = append(c.queue, payload)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	select {
	case c.sendCh <- payload:
	case <-c.closed:
	}
}

// Recv exposes inbound text frames. The channel is closed when the
// connection ends.
func (c *Client) Recv() <-chan []byte {
	return c.recvCh
}

// Closed is closed once the connection has terminated for any reason.
func (c *Client) Closed() <-chan struct{} {
	return c.closed
}

// Err reports the terminal error after Closed, nil for a local Close.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) readLoop() error {
	defer close(c.recvCh)
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return nil
		}
		c.log.Debugf("recv: %s", frame)
		select {
		case c.recvCh <- frame:
		case <-c.closed:
			return nil
		}
	}
}

func (c *Client) writeLoop() error {
	for {
		select {
		case p := <-c.sendCh:
			c.log.Debugf("send: %s", p)
			if err := c.conn.WriteMessage(websocket.TextMessage, p); err != nil {
				c.fail(err)
				return nil
			}
		case <-c.closed:
			return nil
		}
	}
}

func (c *Client) fail(err error) {
	c.closeOnce.Do(func() {
		if !isExpectedClose(err) {
			c.errMu.Lock()
			c.err = err
			c.errMu.Unlock()
		}
		if c.conn != nil {
			c.conn.Close()
		}
		close(c.closed)
	})
}

func isExpectedClose(err error) bool {
	return err == nil ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// Close shuts the connection down. It is idempotent and safe before
// Dial.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(closeTimeout))
			conn.Close()
		}
		close(c.closed)
	})
	if c.eg != nil {
		c.eg.Wait()
	}
	return nil
}
