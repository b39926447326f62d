package session

import (
	"github.com/hgdb-sim/hgdb/vars"
	"github.com/hgdb-sim/hgdb/wire"
)

// Kind is how an instance stopped.
type Kind string

const (
	KindNormal Kind = "normal"
	KindData   Kind = "data"
)

// Stop reasons surfaced to the front-ends.
const (
	ReasonBreakpoint     = "breakpoint"
	ReasonDataBreakpoint = "data breakpoint"
	ReasonException      = "exception"
)

// Scope is one activation of an instance at the current break, holding
// the dot-normalized local and generator variables.
type Scope struct {
	Local     vars.Flat
	Generator vars.Flat

	localTree *vars.Node
	genTree   *vars.Node
}

// LocalTree lazily builds the hierarchical view of the locals.
func (sc *Scope) LocalTree() *vars.Node {
	if sc.localTree == nil {
		sc.localTree = vars.BuildTree(sc.Local)
	}
	return sc.localTree
}

func (sc *Scope) GeneratorTree() *vars.Node {
	if sc.genTree == nil {
		sc.genTree = vars.BuildTree(sc.Generator)
	}
	return sc.genTree
}

// breakState is the full context of the last break event. It is
// rebuilt atomically on every break and discarded wholesale on the
// next one.
type breakState struct {
	valid    bool
	filename string
	line     int
	column   int
	time     uint64

	currentInstanceIndex int

	// Parallel per-instance maps, keyed by composite instance id.
	// Their key sets are identical at all times.
	order  []uint64
	scopes map[uint64][]*Scope
	names  map[uint64]string
	bpIDs  map[uint64]uint64
	kinds  map[uint64]Kind

	// namespaces tracks the raw server namespace per instance.
	namespaces map[uint64]uint32

	// setValues holds variable names overridden since this break.
	setValues map[string]struct{}
}

func newBreakState() breakState {
	return breakState{
		scopes:     make(map[uint64][]*Scope),
		names:      make(map[uint64]string),
		bpIDs:      make(map[uint64]uint64),
		kinds:      make(map[uint64]Kind),
		namespaces: make(map[uint64]uint32),
		setValues:  make(map[string]struct{}),
	}
}

// StopEvent is the per-instance notification fanned out after a break
// event has been ingested.
type StopEvent struct {
	InstanceID uint64
	Reason     string
}

// ingestBreak replaces the break context with the payload's content and
// returns the per-instance stop events to emit. Caller holds s.mu.
func (s *Session) ingestBreak(bp wire.BreakPayload) []StopEvent {
	st := newBreakState()
	st.valid = true
	st.filename = bp.Filename
	st.line = bp.LineNum
	st.column = bp.ColumnNum
	st.time = bp.Time

	reason := ReasonBreakpoint
	if bp.Reason == ReasonException {
		reason = ReasonException
	}

	for _, inst := range bp.Instances {
		cid := PackComposite(inst.NamespaceID, inst.InstanceID)
		if _, ok := st.scopes[cid]; !ok {
			st.order = append(st.order, cid)
		}
		st.scopes[cid] = append(st.scopes[cid], &Scope{
			Local:     vars.NormalizeMap(inst.Local),
			Generator: vars.NormalizeMap(inst.Generator),
		})
		st.names[cid] = inst.InstanceName
		st.bpIDs[cid] = inst.BreakpointID
		st.namespaces[cid] = inst.NamespaceID
		st.kinds[cid] = KindNormal
		if inst.BPType == wire.BreakKindData {
			st.kinds[cid] = KindData
			if reason != ReasonException {
				reason = ReasonDataBreakpoint
			}
		}
	}

	s.brk = st

	events := make([]StopEvent, 0, len(st.order))
	for _, cid := range st.order {
		events = append(events, StopEvent{InstanceID: cid, Reason: reason})
	}
	return events
}

// Location is a read-only snapshot of where execution stopped.
type Location struct {
	Valid    bool
	Filename string
	Line     int
	Column   int
	Time     uint64
}

func (s *Session) Location() Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Location{
		Valid:    s.brk.valid,
		Filename: s.brk.filename,
		Line:     s.brk.line,
		Column:   s.brk.column,
		Time:     s.brk.time,
	}
}

// Instances returns the composite instance ids of the current break in
// arrival order.
func (s *Session) Instances() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.brk.order...)
}

func (s *Session) InstanceName(id uint64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brk.names[id]
}

func (s *Session) InstanceKind(id uint64) (Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.brk.kinds[id]
	return k, ok
}

// Scopes returns the scope list of one instance, most recent last.
func (s *Session) Scopes(id uint64) []*Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Scope(nil), s.brk.scopes[id]...)
}

func (s *Session) Scope(id uint64, stackIndex int) (*Scope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scopes := s.brk.scopes[id]
	if stackIndex < 0 || stackIndex >= len(scopes) {
		return nil, false
	}
	return scopes[stackIndex], true
}

// BreakpointIDOf returns the server breakpoint id the instance stopped
// on, with its namespace.
func (s *Session) BreakpointIDOf(id uint64) (bpID uint64, namespaceID uint32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bpID, ok = s.brk.bpIDs[id]
	return bpID, s.brk.namespaces[id], ok
}

// CurrentInstance returns the instance selected by the console's
// thread command, defaulting to the first one.
func (s *Session) CurrentInstance() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.brk.order) == 0 {
		return 0, false
	}
	idx := s.brk.currentInstanceIndex
	if idx < 0 || idx >= len(s.brk.order) {
		idx = 0
	}
	return s.brk.order[idx], true
}

// SelectInstance switches the current instance index. Unknown ids are
// rejected.
func (s *Session) SelectInstance(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cid := range s.brk.order {
		if cid == id {
			s.brk.currentInstanceIndex = i
			return true
		}
	}
	return false
}

// CurrentBreakpointID is the breakpoint id and namespace of the
// currently selected instance.
func (s *Session) CurrentBreakpointID() (bpID uint64, namespaceID uint32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.brk.order) == 0 {
		return 0, 0, false
	}
	idx := s.brk.currentInstanceIndex
	if idx < 0 || idx >= len(s.brk.order) {
		idx = 0
	}
	cid := s.brk.order[idx]
	bpID, ok = s.brk.bpIDs[cid]
	return bpID, s.brk.namespaces[cid], ok
}

// MarkSet records a variable override so the console stops answering
// for it from the cache until the next break.
func (s *Session) MarkSet(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brk.setValues[name] = struct{}{}
}

func (s *Session) WasSet(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.brk.setValues[name]
	return ok
}
