package dap

import (
	"fmt"
	"strings"
	"sync"
)

// Top-level variable scope kinds. A nested handle's kind is the
// logical dotted path of the sub-object instead, with sub naming which
// top-level map it came from.
const (
	kindLocal     = "local"
	kindGenerator = "generator"
	kindSimulator = "simulator"
)

// handle identifies what a variablesReference points at. The encoded
// key packs the same tuple the reference stands for, so identical
// requests reuse one reference.
type handle struct {
	kind string
	sub  string
	iid  uint64
	sid  int

	// parent and name link back towards the scope root so the full
	// dotted variable name can be reconstructed for set requests.
	parent int
	name   string
}

func (h *handle) key() string {
	if h.sub == "" {
		return fmt.Sprintf("%s-%d-%d", h.kind, h.iid, h.sid)
	}
	return fmt.Sprintf("%s-%d-%d-%s", h.kind, h.iid, h.sid, h.sub)
}

// path is the logical variable path this handle lists; empty for the
// scope roots.
func (h *handle) path() string {
	if h.sub == "" {
		return ""
	}
	return h.kind
}

// mapKind names the flat map the handle walks.
func (h *handle) mapKind() string {
	if h.sub != "" {
		return h.sub
	}
	return h.kind
}

// handleTable mints the small integers DAP clients pass back as
// variablesReference values. References are invalidated wholesale on
// every new break.
type handleTable struct {
	mu    sync.Mutex
	byID  map[int]*handle
	byKey map[string]int
	next  int
}

func newHandleTable() *handleTable {
	t := &handleTable{}
	t.reset()
	return t
}

func (t *handleTable) ref(h handle) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := h.key()
	if id, ok := t.byKey[key]; ok {
		return id
	}
	t.next++
	id := t.next
	t.byID[id] = &h
	t.byKey[key] = id
	return id
}

func (t *handleTable) get(id int) (*handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.byID[id]
	return h, ok
}

func (t *handleTable) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID = make(map[int]*handle)
	t.byKey = make(map[string]int)
	t.next = 0
}

// fullName walks the parent chain from ref and appends leaf, yielding
// the dotted name the server knows the variable by.
func (t *handleTable) fullName(ref int, leaf string) (string, bool) {
	leaf = unrenderSegment(leaf)

	var segs []string
	for ref != 0 {
		h, ok := t.get(ref)
		if !ok {
			return "", false
		}
		if h.sub == "" {
			break
		}
		segs = append(segs, unrenderSegment(h.name))
		ref = h.parent
	}

	var b strings.Builder
	for i := len(segs) - 1; i >= 0; i-- {
		b.WriteString(segs[i])
		b.WriteString(".")
	}
	b.WriteString(leaf)
	return b.String(), true
}

// unrenderSegment undoes the [n] display form of numeric segments.
func unrenderSegment(s string) string {
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return s[1 : len(s)-1]
	}
	return s
}
