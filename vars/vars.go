package vars

import (
	"sort"
	"strconv"
	"strings"
)

// Flat is a variable map with normalized dotted keys: every bracketed
// index `[k]` has been rewritten to `.k`.
type Flat map[string]string

// Normalize rewrites bracketed indices to dotted segments. It is
// idempotent: keys already in dotted form pass through unchanged.
func Normalize(key string) string {
	if !strings.ContainsRune(key, '[') {
		return key
	}
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '[':
			b.WriteByte('.')
		case ']':
		default:
			b.WriteByte(key[i])
		}
	}
	return b.String()
}

// NormalizeMap normalizes every key of a raw server variable map.
func NormalizeMap(raw map[string]string) Flat {
	f := make(Flat, len(raw))
	for k, v := range raw {
		f[Normalize(k)] = v
	}
	return f
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Get resolves a dot/bracket expression to a leaf value.
func (f Flat) Get(expr string) (string, bool) {
	v, ok := f[Normalize(expr)]
	return v, ok
}

// Child is one entry of a variable listing at some logical path.
type Child struct {
	// Name is the raw path segment; Display renders numeric segments
	// as [n].
	Name    string
	Display string

	// Compound children expand further; Array marks a compound whose
	// own first segment is numeric.
	Compound bool
	Array    bool

	// Value is set for leaves.
	Value string

	// Path is the full logical path of this child.
	Path string
}

// List returns the immediate children under the given logical path,
// leaves and compounds alike. An empty path lists the top level. A
// child named self is always an object: only segments after self.
// participate in array detection.
func (f Flat) List(path string) []Child {
	prefix := ""
	if path != "" {
		prefix = path + "."
	}

	type agg struct {
		leafValue string
		leaf      bool
		compound  bool
		array     bool
	}
	seen := make(map[string]*agg)
	var order []string

	for key, value := range f {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		seg, tail, more := strings.Cut(rest, ".")
		a := seen[seg]
		if a == nil {
			a = &agg{}
			seen[seg] = a
			order = append(order, seg)
		}
		if !more {
			a.leaf = true
			a.leafValue = value
			continue
		}
		a.compound = true
		next, _, _ := strings.Cut(tail, ".")
		if isDigits(next) && seg != "self" {
			a.array = true
		}
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if isDigits(a) && isDigits(b) {
			ai, _ := strconv.Atoi(a)
			bi, _ := strconv.Atoi(b)
			return ai < bi
		}
		return a < b
	})

	children := make([]Child, 0, len(order))
	for _, seg := range order {
		a := seen[seg]
		c := Child{
			Name:    seg,
			Display: seg,
			Path:    prefix + seg,
		}
		if isDigits(seg) {
			c.Display = "[" + seg + "]"
		}
		if a.compound {
			c.Compound = true
			c.Array = a.array
		} else {
			c.Value = a.leafValue
		}
		children = append(children, c)
	}
	return children
}
