package console

import (
	"os"
	"strings"
	"sync"
)

// history persists executed command lines to a file, keeping at most
// size entries.
type history struct {
	mu    sync.Mutex
	path  string
	size  int
	lines []string
}

func newHistory(path string, size int) *history {
	h := &history{path: path, size: size}
	if dt, err := os.ReadFile(path); err == nil {
		for _, l := range strings.Split(string(dt), "\n") {
			if l != "" {
				h.lines = append(h.lines, l)
			}
		}
	}
	return h
}

func (h *history) append(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lines = append(h.lines, line)
	if h.size > 0 && len(h.lines) > h.size {
		h.lines = h.lines[len(h.lines)-h.size:]
	}
	os.WriteFile(h.path, []byte(strings.Join(h.lines, "\n")+"\n"), 0o600)
}
