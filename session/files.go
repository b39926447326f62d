package session

import (
	"path/filepath"
	"strings"
	"sync"
)

// FileIndex maps between the server's absolute filenames and the short
// names users type. A bare basename resolves only when exactly one
// server file carries it; the reverse direction yields the shortest
// suffix that is unique across the file list.
type FileIndex struct {
	mu      sync.RWMutex
	forward map[string]string
	display map[string]string
	all     []string
}

func NewFileIndex() *FileIndex {
	return &FileIndex{
		forward: make(map[string]string),
		display: make(map[string]string),
	}
}

// Build populates the index from the server's file list. Ambiguous
// basenames are left out of the forward map entirely.
func (x *FileIndex) Build(filenames []string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.forward = make(map[string]string, len(filenames)*2)
	x.display = make(map[string]string, len(filenames))
	x.all = append([]string(nil), filenames...)

	byBase := make(map[string][]string)
	for _, f := range filenames {
		x.forward[f] = f
		byBase[filepath.Base(f)] = append(byBase[filepath.Base(f)], f)
	}
	for base, files := range byBase {
		if len(files) == 1 {
			x.forward[base] = files[0]
		}
	}

	for _, f := range filenames {
		x.display[f] = shortestUniqueSuffix(f, filenames)
	}
}

func shortestUniqueSuffix(path string, all []string) string {
	segs := strings.Split(path, "/")
	for n := 1; n <= len(segs); n++ {
		suffix := strings.Join(segs[len(segs)-n:], "/")
		count := 0
		for _, f := range all {
			if f == path || strings.HasSuffix(f, "/"+suffix) || f == suffix {
				count++
			}
		}
		if count == 1 {
			return suffix
		}
	}
	return path
}

// Resolve expands a user-typed name to the server's full path. Unknown
// names return ok=false; callers fall back to the literal path.
func (x *FileIndex) Resolve(name string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	full, ok := x.forward[name]
	return full, ok
}

// Display returns the shortest unique rendering of a full path, or the
// path itself when it was never indexed.
func (x *FileIndex) Display(full string) string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if d, ok := x.display[full]; ok {
		return d
	}
	return full
}

// Filenames returns the indexed file list.
func (x *FileIndex) Filenames() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]string(nil), x.all...)
}

// PathMap rewrites one remote source prefix to a local one and back.
// Zero values pass paths through untouched.
type PathMap struct {
	Remote string
	Local  string
}

func (m PathMap) ToLocal(path string) string {
	if m.Remote == "" || !strings.HasPrefix(path, m.Remote) {
		return path
	}
	return m.Local + strings.TrimPrefix(path, m.Remote)
}

func (m PathMap) ToRemote(path string) string {
	if m.Local == "" || !strings.HasPrefix(path, m.Local) {
		return path
	}
	return m.Remote + strings.TrimPrefix(path, m.Local)
}
