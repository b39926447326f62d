package waitmap

import (
	"context"
	"sync"
)

// Map correlates in-flight request tokens with their eventual results.
// A token must be registered before Resolve can deliver to it, so
// results arriving for unknown tokens can be dropped by the caller.
// Each token resolves at most once.
type Map struct {
	mu     sync.Mutex
	ch     map[string]chan any
	closed bool
	err    error
}

func New() *Map {
	return &Map{
		ch: make(map[string]chan any),
	}
}

// Register reserves a slot for token. It returns false if the map has
// been closed or the token is already pending.
func (m *Map) Register(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	if _, ok := m.ch[token]; ok {
		return false
	}
	m.ch[token] = make(chan any, 1)
	return true
}

// Resolve delivers value to the slot registered under token. It returns
// false when no registration exists or the token already resolved.
func (m *Map) Resolve(token string, value any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.ch[token]
	if !ok {
		return false
	}
	select {
	case ch <- value:
		return true
	default:
		// Already resolved, waiting to be consumed.
		return false
	}
}

// Wait blocks until the token is resolved, the context is done, or the
// map is closed. The registration is removed once consumed or abandoned.
func (m *Map) Wait(ctx context.Context, token string) (any, error) {
	m.mu.Lock()
	if m.closed {
		err := m.err
		m.mu.Unlock()
		return nil, err
	}
	ch, ok := m.ch[token]
	m.mu.Unlock()

	if !ok {
		return nil, context.Canceled
	}

	select {
	case v, ok := <-ch:
		m.mu.Lock()
		delete(m.ch, token)
		err := m.err
		m.mu.Unlock()
		if !ok {
			return nil, err
		}
		return v, nil
	case <-ctx.Done():
		m.mu.Lock()
		delete(m.ch, token)
		m.mu.Unlock()
		return nil, context.Cause(ctx)
	}
}

// Close fails every pending waiter with err and rejects future
// registrations. Closing twice is a no-op.
func (m *Map) Close(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.err = err
	for token, ch := range m.ch {
		close(ch)
		delete(m.ch, token)
	}
}

// Pending reports the number of registered tokens not yet consumed.
func (m *Map) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ch)
}
