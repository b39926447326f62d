package breakpoint

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/hgdb-sim/hgdb/wire"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Requester is the slice of the session the manager needs: tokenized
// requests, fire-and-forget posts, and the current break context's
// breakpoint id for an instance.
type Requester interface {
	Request(ctx context.Context, typ string, payload any) (json.RawMessage, error)
	Post(typ string, payload any) error
	BreakpointIDOf(instanceID uint64) (bpID uint64, namespaceID uint32, ok bool)
}

// Record is one verified breakpoint.
type Record struct {
	ID        uint64
	Filename  string
	Line      int
	Column    int
	Valid     bool
	Condition string
}

// DataRecord is one active watchpoint.
type DataRecord struct {
	InstanceID   uint64
	BreakpointID uint64
	VarName      string
	Condition    string
}

// Manager verifies breakpoints against the server and tracks the ids
// it handed back.
type Manager struct {
	req Requester
	log *logrus.Entry

	mu       sync.Mutex
	table    map[uint64]Record
	data     []DataRecord
	onVerify func(Record)
}

func NewManager(req Requester) *Manager {
	return &Manager{
		req:   req,
		log:   logrus.WithField("component", "breakpoint"),
		table: make(map[uint64]Record),
	}
}

// OnVerified registers a callback fired once per verified record.
func (m *Manager) OnVerified(fn func(Record)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onVerify = fn
}

// Verify asks the server which breakpoints exist at (file, line[, col])
// and inserts every returned id into the table. The column is optional;
// zero matches any column.
func (m *Manager) Verify(ctx context.Context, filename string, line, column int) ([]Record, error) {
	payload, err := m.req.Request(ctx, wire.TypeBPLocation, wire.BPLocationPayload{
		Filename:  filename,
		LineNum:   line,
		ColumnNum: column,
	})
	if err != nil {
		return nil, err
	}

	var entries []wire.BPLocationEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, errors.Wrap(err, "malformed bp-location response")
	}

	m.mu.Lock()
	fn := m.onVerify
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		r := Record{
			ID:       e.ID,
			Filename: filename,
			Line:     e.LineNum,
			Column:   e.ColumnNum,
			Valid:    true,
		}
		m.table[r.ID] = r
		records = append(records, r)
	}
	m.mu.Unlock()

	if fn != nil {
		for _, r := range records {
			fn(r)
		}
	}
	return records, nil
}

// SetByID commits a verified id, attaching a condition when given.
func (m *Manager) SetByID(ctx context.Context, id uint64, condition string) error {
	_, err := m.req.Request(ctx, wire.TypeBreakpointID, wire.BreakpointIDPayload{
		ID:        id,
		Action:    wire.ActionAdd,
		Condition: condition,
	})
	if err != nil {
		return err
	}
	m.mu.Lock()
	if r, ok := m.table[id]; ok {
		r.Condition = condition
		m.table[id] = r
	}
	m.mu.Unlock()
	return nil
}

// ClearByFile removes every breakpoint in an absolute path, both from
// the server and the local table.
func (m *Manager) ClearByFile(filename string) error {
	err := m.req.Post(wire.TypeBreakpoint, wire.RemoveFilePayload{
		Filename: filename,
		Action:   wire.ActionRemove,
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	for id, r := range m.table {
		if r.Filename == filename {
			delete(m.table, id)
		}
	}
	m.mu.Unlock()
	return nil
}

// RemoveByID deletes one breakpoint.
func (m *Manager) RemoveByID(ctx context.Context, id uint64) error {
	_, err := m.req.Request(ctx, wire.TypeBreakpointID, wire.BreakpointIDPayload{
		ID:     id,
		Action: wire.ActionRemove,
	})
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.table, id)
	m.mu.Unlock()
	return nil
}

// Condition attaches a condition to an already-committed id.
func (m *Manager) Condition(ctx context.Context, id uint64, condition string) error {
	return m.SetByID(ctx, id, condition)
}

// Locations returns the distinct columns with a breakpoint at
// (file, line), for the editor's inline markers.
func (m *Manager) Locations(ctx context.Context, filename string, line int) ([]int, error) {
	payload, err := m.req.Request(ctx, wire.TypeBPLocation, wire.BPLocationPayload{
		Filename: filename,
		LineNum:  line,
	})
	if err != nil {
		return nil, err
	}
	var entries []wire.BPLocationEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, errors.Wrap(err, "malformed bp-location response")
	}

	seen := make(map[int]struct{})
	var cols []int
	for _, e := range entries {
		if _, ok := seen[e.ColumnNum]; !ok {
			seen[e.ColumnNum] = struct{}{}
			cols = append(cols, e.ColumnNum)
		}
	}
	sort.Ints(cols)
	return cols, nil
}

// AddData places a watchpoint on a variable of an instance present in
// the current break.
func (m *Manager) AddData(ctx context.Context, instanceID uint64, varName, condition string) error {
	bpID, _, ok := m.req.BreakpointIDOf(instanceID)
	if !ok {
		return errors.Errorf("instance %d is not part of the current break", instanceID)
	}

	_, err := m.req.Request(ctx, wire.TypeDataBreakpoint, wire.DataBreakpointPayload{
		VarName:      varName,
		BreakpointID: bpID,
		Action:       wire.ActionAdd,
		Condition:    condition,
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data = append(m.data, DataRecord{
		InstanceID:   instanceID,
		BreakpointID: bpID,
		VarName:      varName,
		Condition:    condition,
	})
	m.mu.Unlock()
	return nil
}

// ValidateData checks whether a watchpoint on the variable would be
// accepted. Any non-error response counts as valid.
func (m *Manager) ValidateData(ctx context.Context, instanceID uint64, varName string) bool {
	bpID, _, ok := m.req.BreakpointIDOf(instanceID)
	if !ok {
		return false
	}
	_, err := m.req.Request(ctx, wire.TypeDataBreakpoint, wire.DataBreakpointPayload{
		VarName:      varName,
		BreakpointID: bpID,
		Action:       wire.ActionInfo,
	})
	return err == nil
}

// ClearData removes every watchpoint, server-side and local.
func (m *Manager) ClearData(ctx context.Context) error {
	_, err := m.req.Request(ctx, wire.TypeDataBreakpoint, wire.DataBreakpointPayload{
		Action: wire.ActionClear,
	})
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
	return nil
}

// ListNormal snapshots the breakpoint table sorted by id.
func (m *Manager) ListNormal() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.table))
	for _, r := range m.table {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListData snapshots the active watchpoints.
func (m *Manager) ListData() []DataRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DataRecord(nil), m.data...)
}
