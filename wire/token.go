package wire

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// TokenSource mints session-unique request tokens: a monotonic counter
// rendered as decimal behind a front-end tag. The tag keeps two
// adapters sharing one simulator from colliding.
type TokenSource struct {
	tag string
	n   atomic.Uint64
}

// NewTokenSource creates a source with the given tag. An empty tag is
// replaced with a random one.
func NewTokenSource(tag string) *TokenSource {
	if tag == "" {
		tag = uuid.NewString()[:8]
	}
	return &TokenSource{tag: tag}
}

func (t *TokenSource) Next() string {
	n := t.n.Add(1)
	return t.tag + "-" + strconv.FormatUint(n-1, 10)
}
