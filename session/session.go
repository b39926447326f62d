package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hgdb-sim/hgdb/transport"
	"github.com/hgdb-sim/hgdb/wire"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Session owns the connection to one simulator runtime: the websocket
// transport, the request token registry, and the state of the last
// break event. All front-ends go through it; nothing else writes to
// the socket.
type Session struct {
	mu sync.Mutex

	tr     *transport.Client
	disp   *wire.Dispatcher
	tokens *wire.TokenSource
	log    *logrus.Entry

	brk   breakState
	files *FileIndex

	stopObservers []func(StopEvent)
	endObservers  []func(error)

	// broadcast closed on each break-event ingestion.
	broadcast chan struct{}
	gen       int

	started bool
}

func New(addr, tokenTag string) *Session {
	s := &Session{
		tr:        transport.New(addr),
		tokens:    wire.NewTokenSource(tokenTag),
		log:       logrus.WithField("component", "session"),
		brk:       newBreakState(),
		files:     NewFileIndex(),
		broadcast: make(chan struct{}),
	}
	s.disp = wire.NewDispatcher(s.handleBreak)
	return s
}

// OnStop registers a per-instance stop observer. Observers run on the
// receive pump after each break-event ingestion completes.
func (s *Session) OnStop(fn func(StopEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopObservers = append(s.stopObservers, fn)
}

// OnEnd registers a session-end observer, invoked once with the
// transport's terminal error (nil for a local close).
func (s *Session) OnEnd(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endObservers = append(s.endObservers, fn)
}

// Start dials the runtime and begins pumping inbound frames.
func (s *Session) Start(ctx context.Context) error {
	if err := s.tr.Dial(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	go s.pump()
	return nil
}

func (s *Session) pump() {
	for frame := range s.tr.Recv() {
		s.disp.Dispatch(frame)
	}

	err := s.tr.Err()
	if err != nil {
		err = errors.Wrap(err, "session ended")
	}
	s.disp.Fail(err)

	s.mu.Lock()
	observers := append([]func(error)(nil), s.endObservers...)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(err)
	}
}

// Handshake issues the connection request carrying the symbol-table
// filename and optional path mapping, then builds the filename index
// from the server's file list. A rejection is fatal to the session.
func (s *Session) Handshake(ctx context.Context, db string, mapping map[string]string) error {
	_, err := s.Request(ctx, wire.TypeConnection, wire.ConnectionPayload{
		DBFilename:  db,
		PathMapping: mapping,
	})
	if err != nil {
		s.Close()
		return errors.Errorf("Failed to connect to simulator. Reason: %v", err)
	}

	if err := s.buildFileIndex(ctx); err != nil {
		// Not fatal: older runtimes do not serve filenames.
		s.log.WithError(err).Warn("could not build filename index")
	}
	return nil
}

func (s *Session) buildFileIndex(ctx context.Context) error {
	payload, err := s.Request(ctx, wire.TypeDebuggerInfo, wire.DebuggerInfoPayload{
		Command: wire.InfoFilenames,
	})
	if err != nil {
		return err
	}
	var info wire.FilenamesInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		return errors.Wrap(err, "malformed filenames info")
	}
	s.files.Build(info.Filenames)
	return nil
}

// Files exposes the filename index built during the handshake.
func (s *Session) Files() *FileIndex {
	return s.files
}

// Request sends one tokenized request and blocks until its response
// arrives. Server-side errors surface as errors carrying the reported
// reason; they never end the session.
func (s *Session) Request(ctx context.Context, typ string, payload any) (json.RawMessage, error) {
	token := s.tokens.Next()
	req := wire.NewRequest(typ, token, payload)
	dt, err := req.Marshal()
	if err != nil {
		return nil, err
	}

	if !s.disp.Register(token) {
		return nil, wire.ErrSessionEnded
	}
	s.tr.Send(dt)
	return s.disp.Wait(ctx, token)
}

// Post sends a request without awaiting any response.
func (s *Session) Post(typ string, payload any) error {
	req := wire.NewRequest(typ, s.tokens.Next(), payload)
	dt, err := req.Marshal()
	if err != nil {
		return err
	}
	s.tr.Send(dt)
	return nil
}

func (s *Session) handleBreak(bp wire.BreakPayload) {
	s.mu.Lock()
	events := s.ingestBreak(bp)
	observers := append([]func(StopEvent)(nil), s.stopObservers...)
	prev := s.broadcast
	s.broadcast = make(chan struct{})
	s.gen++
	s.mu.Unlock()

	close(prev)
	for _, ev := range events {
		for _, fn := range observers {
			fn(ev)
		}
	}
}

// Generation counts ingested break events.
func (s *Session) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// WaitForStop blocks until the next break event has been ingested.
func (s *Session) WaitForStop(ctx context.Context) error {
	return s.WaitForGeneration(ctx, s.Generation()+1)
}

// WaitForGeneration blocks until at least n break events have been
// ingested. Callers capture the generation before issuing a flow
// command so the resulting break cannot slip past them.
func (s *Session) WaitForGeneration(ctx context.Context, n int) error {
	for {
		s.mu.Lock()
		if s.gen >= n {
			s.mu.Unlock()
			return nil
		}
		ch := s.broadcast
		s.mu.Unlock()

		select {
		case <-ch:
		case <-s.tr.Closed():
			return wire.ErrSessionEnded
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
}

// Flow commands. Each returns once the server has acknowledged the
// command; the resulting stop arrives later as a break event.

func (s *Session) Continue(ctx context.Context) error {
	return s.command(ctx, wire.CommandContinue, nil)
}

func (s *Session) StepOver(ctx context.Context) error {
	return s.command(ctx, wire.CommandStepOver, nil)
}

func (s *Session) StepBack(ctx context.Context) error {
	return s.command(ctx, wire.CommandStepBack, nil)
}

func (s *Session) ReverseContinue(ctx context.Context) error {
	return s.command(ctx, wire.CommandReverseContinue, nil)
}

func (s *Session) Stop(ctx context.Context) error {
	return s.command(ctx, wire.CommandStop, nil)
}

// Jump moves simulation time; only meaningful when the runtime replays
// a trace.
func (s *Session) Jump(ctx context.Context, time uint64) error {
	return s.command(ctx, wire.CommandJump, &time)
}

func (s *Session) command(ctx context.Context, cmd string, time *uint64) error {
	_, err := s.Request(ctx, wire.TypeCommand, wire.CommandPayload{Command: cmd, Time: time})
	return err
}

// Evaluate forwards an expression to the simulator. Both the
// breakpoint id and the namespace id are passed through verbatim.
func (s *Session) Evaluate(ctx context.Context, expr, breakpointID string, namespaceID *uint32) (string, error) {
	payload, err := s.Request(ctx, wire.TypeEvaluation, wire.EvaluationPayload{
		BreakpointID: breakpointID,
		Expression:   expr,
		NamespaceID:  namespaceID,
	})
	if err != nil {
		return "", err
	}
	var res wire.EvaluationResult
	if err := json.Unmarshal(payload, &res); err != nil || res.Result == nil {
		return "", errors.New("Error in protocol setup")
	}
	return *res.Result, nil
}

// SetTarget names the scope a set-value applies to: the enclosing
// breakpoint for locals, the instance for generator variables.
type SetTarget struct {
	BreakpointID *uint64
	InstanceID   *uint64
	NamespaceID  *uint32
}

// SetValue overrides a variable with an integer value and records the
// override for the rest of this break.
func (s *Session) SetValue(ctx context.Context, name string, value int64, target SetTarget) error {
	if target.BreakpointID == nil && target.InstanceID == nil {
		return errors.New("no scope to set value in")
	}
	_, err := s.Request(ctx, wire.TypeSetValue, wire.SetValuePayload{
		VarName:      name,
		Value:        value,
		BreakpointID: target.BreakpointID,
		InstanceID:   target.InstanceID,
		NamespaceID:  target.NamespaceID,
	})
	if err != nil {
		return err
	}
	s.MarkSet(name)
	return nil
}

// Info issues a debugger-info query and returns the raw payload.
func (s *Session) Info(ctx context.Context, command string) (json.RawMessage, error) {
	return s.Request(ctx, wire.TypeDebuggerInfo, wire.DebuggerInfoPayload{Command: command})
}

// Close tears the transport down; pending requests fail with a session
// ended error.
func (s *Session) Close() error {
	return s.tr.Close()
}
