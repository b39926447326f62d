package dap

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/go-dap"
	"github.com/hgdb-sim/hgdb/breakpoint"
	"github.com/hgdb-sim/hgdb/session"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// configurationTimeout bounds how long launch waits for the client's
// configurationDone before connecting anyway.
const configurationTimeout = time.Second

// LaunchConfig is the set of launch attributes the IDE sends.
type LaunchConfig struct {
	// Program is the symbol-table file the runtime should load.
	Program string `json:"program"`

	RuntimeIP   string `json:"runtimeIP,omitempty"`
	RuntimePort int    `json:"runtimePort,omitempty"`

	// SrcPath/DstPath rewrite the remote source prefix to a local one.
	SrcPath string `json:"srcPath,omitempty"`
	DstPath string `json:"dstPath,omitempty"`
}

func (c *LaunchConfig) addr() string {
	ip := c.RuntimeIP
	if ip == "" {
		ip = "0.0.0.0"
	}
	port := c.RuntimePort
	if port == 0 {
		port = 8888
	}
	return fmt.Sprintf("%s:%d", ip, port)
}

// Adapter bridges one IDE to one simulator runtime. The debugger's
// single logical stop fans out into one DAP thread per hardware
// instance.
type Adapter struct {
	srv *Server
	eg  *errgroup.Group
	log *logrus.Entry

	initialized   chan struct{}
	configuration chan struct{}

	sess    *session.Session
	bps     *breakpoint.Manager
	handles *handleTable
	pathMap session.PathMap

	// newSession is swapped by tests.
	newSession func(addr string) *session.Session

	lastGen atomic.Int64
}

func New() *Adapter {
	a := &Adapter{
		log:           logrus.WithField("component", "dap"),
		initialized:   make(chan struct{}),
		configuration: make(chan struct{}),
		handles:       newHandleTable(),
		newSession: func(addr string) *session.Session {
			return session.New(addr, "vscode")
		},
	}
	a.srv = NewServer(a.dapHandler())
	return a
}

// Serve runs the adapter over one IDE connection until it ends.
func (a *Adapter) Serve(ctx context.Context, conn Conn) error {
	a.eg, _ = errgroup.WithContext(ctx)
	a.eg.Go(func() error {
		return a.srv.Serve(ctx, conn)
	})
	return a.eg.Wait()
}

func (a *Adapter) Stop() error {
	if a.sess != nil {
		a.sess.Close()
	}
	a.srv.Stop()
	if a.eg == nil {
		return nil
	}
	err := a.eg.Wait()
	a.eg = nil
	return err
}

func (a *Adapter) dapHandler() Handler {
	return Handler{
		Initialize:          a.Initialize,
		Launch:              a.Launch,
		SetBreakpoints:      a.SetBreakpoints,
		BreakpointLocations: a.BreakpointLocations,
		ConfigurationDone:   a.ConfigurationDone,
		Disconnect:          a.Disconnect,
		Terminate:           a.Terminate,
		Continue:            a.Continue,
		Next:                a.Next,
		StepBack:            a.StepBack,
		ReverseContinue:     a.ReverseContinue,
		Threads:             a.Threads,
		StackTrace:          a.StackTrace,
		Scopes:              a.Scopes,
		Variables:           a.Variables,
		SetVariable:         a.SetVariable,
		Evaluate:            a.Evaluate,
		DataBreakpointInfo:  a.DataBreakpointInfo,
		SetDataBreakpoints:  a.SetDataBreakpoints,
	}
}

func (a *Adapter) Initialize(c Context, req *dap.InitializeRequest, resp *dap.InitializeResponse) error {
	close(a.initialized)

	resp.Body.SupportsConfigurationDoneRequest = true
	resp.Body.SupportsConditionalBreakpoints = true
	resp.Body.SupportsBreakpointLocationsRequest = true
	resp.Body.SupportsDataBreakpoints = true
	resp.Body.SupportsStepBack = true
	resp.Body.SupportsSetVariable = true
	resp.Body.SupportsTerminateRequest = true
	resp.Body.SupportsCancelRequest = true
	return nil
}

func (a *Adapter) Launch(c Context, req *dap.LaunchRequest, resp *dap.LaunchResponse) error {
	var cfg LaunchConfig
	if err := json.Unmarshal(req.Arguments, &cfg); err != nil {
		return errors.Wrap(err, "malformed launch arguments")
	}
	if cfg.Program == "" {
		return errors.New("launch requires a program attribute")
	}

	a.pathMap = session.PathMap{Remote: cfg.SrcPath, Local: cfg.DstPath}
	a.sess = a.newSession(cfg.addr())
	a.bps = breakpoint.NewManager(a.sess)
	a.registerObservers()

	// Early setBreakpoints requests queue on the transport until the
	// dial below completes.
	c.C() <- &dap.InitializedEvent{
		Event: dap.Event{Event: "initialized"},
	}

	select {
	case <-a.configuration:
	case <-time.After(configurationTimeout):
	case <-c.Done():
		return context.Cause(c)
	}

	if err := a.sess.Start(c); err != nil {
		return err
	}

	var mapping map[string]string
	if cfg.SrcPath != "" && cfg.DstPath != "" {
		mapping = map[string]string{cfg.SrcPath: cfg.DstPath}
	}
	if err := a.sess.Handshake(c, cfg.Program, mapping); err != nil {
		return errors.Wrapf(err, "Failed to connect to %s", cfg.addr())
	}
	return nil
}

func (a *Adapter) registerObservers() {
	a.sess.OnStop(func(ev session.StopEvent) {
		a.srv.Go(func(c Context) {
			// References from the previous break are void.
			if gen := int64(a.sess.Generation()); a.lastGen.Load() != gen {
				if a.lastGen.Swap(gen) != gen {
					a.handles.reset()
				}
			}
			c.C() <- &dap.StoppedEvent{
				Event: dap.Event{Event: "stopped"},
				Body: dap.StoppedEventBody{
					Reason:   ev.Reason,
					ThreadId: int(ev.InstanceID),
				},
			}
		})
	})
	a.sess.OnEnd(func(err error) {
		a.srv.Go(func(c Context) {
			c.C() <- &dap.TerminatedEvent{
				Event: dap.Event{Event: "terminated"},
			}
		})
	})
	a.bps.OnVerified(func(r breakpoint.Record) {
		a.srv.Go(func(c Context) {
			c.C() <- &dap.BreakpointEvent{
				Event: dap.Event{Event: "breakpoint"},
				Body: dap.BreakpointEventBody{
					Reason:     "changed",
					Breakpoint: a.dapBreakpoint(r),
				},
			}
		})
	})
}

func (a *Adapter) dapBreakpoint(r breakpoint.Record) dap.Breakpoint {
	return dap.Breakpoint{
		Id:       int(r.ID),
		Verified: r.Valid,
		Line:     r.Line,
		Column:   r.Column,
		Source: &dap.Source{
			Path: a.pathMap.ToLocal(r.Filename),
		},
	}
}

func (a *Adapter) ConfigurationDone(c Context, req *dap.ConfigurationDoneRequest, resp *dap.ConfigurationDoneResponse) error {
	select {
	case <-a.configuration:
	default:
		close(a.configuration)
	}
	return nil
}

func (a *Adapter) SetBreakpoints(c Context, req *dap.SetBreakpointsRequest, resp *dap.SetBreakpointsResponse) error {
	if a.bps == nil {
		return errors.New("no session")
	}

	remote := a.pathMap.ToRemote(req.Arguments.Source.Path)
	if err := a.bps.ClearByFile(remote); err != nil {
		return err
	}

	resp.Body.Breakpoints = []dap.Breakpoint{}
	for _, sbp := range req.Arguments.Breakpoints {
		records, err := a.bps.Verify(c, remote, sbp.Line, sbp.Column)
		if err != nil || len(records) == 0 {
			bp := dap.Breakpoint{Line: sbp.Line, Verified: false}
			if err != nil {
				bp.Message = err.Error()
			}
			resp.Body.Breakpoints = append(resp.Body.Breakpoints, bp)
			continue
		}

		// One source location may map to many instances. Only the
		// first column is reported unless the user pinned a column.
		report := records[:1]
		if sbp.Column > 0 {
			report = records
		}
		for _, r := range report {
			if err := a.bps.SetByID(c, r.ID, sbp.Condition); err != nil {
				a.log.WithError(err).Warnf("could not commit breakpoint %d", r.ID)
				continue
			}
			resp.Body.Breakpoints = append(resp.Body.Breakpoints, a.dapBreakpoint(r))
		}
	}
	return nil
}

func (a *Adapter) BreakpointLocations(c Context, req *dap.BreakpointLocationsRequest, resp *dap.BreakpointLocationsResponse) error {
	resp.Body.Breakpoints = []dap.BreakpointLocation{}
	if a.bps == nil || req.Arguments == nil {
		return nil
	}

	remote := a.pathMap.ToRemote(req.Arguments.Source.Path)
	cols, err := a.bps.Locations(c, remote, req.Arguments.Line)
	if err != nil {
		return err
	}
	for _, col := range cols {
		resp.Body.Breakpoints = append(resp.Body.Breakpoints, dap.BreakpointLocation{
			Line:   req.Arguments.Line,
			Column: col,
		})
	}
	return nil
}

func (a *Adapter) Threads(c Context, req *dap.ThreadsRequest, resp *dap.ThreadsResponse) error {
	resp.Body.Threads = []dap.Thread{}
	if a.sess == nil {
		resp.Body.Threads = append(resp.Body.Threads, dap.Thread{Id: 1, Name: "main"})
		return nil
	}

	for _, iid := range a.sess.Instances() {
		resp.Body.Threads = append(resp.Body.Threads, dap.Thread{
			Id:   int(iid),
			Name: a.threadName(iid),
		})
	}
	if len(resp.Body.Threads) == 0 {
		resp.Body.Threads = append(resp.Body.Threads, dap.Thread{Id: 1, Name: "main"})
	}
	return nil
}

func (a *Adapter) threadName(iid uint64) string {
	return fmt.Sprintf("[%d]: %s", iid, a.sess.InstanceName(iid))
}

func (a *Adapter) StackTrace(c Context, req *dap.StackTraceRequest, resp *dap.StackTraceResponse) error {
	if a.sess == nil {
		return errors.New("no session")
	}

	iid := uint64(req.Arguments.ThreadId)
	scopes := a.sess.Scopes(iid)
	loc := a.sess.Location()

	src := &dap.Source{Path: a.pathMap.ToLocal(loc.Filename)}
	resp.Body.StackFrames = []dap.StackFrame{}
	for i := len(scopes) - 1; i >= 0; i-- {
		resp.Body.StackFrames = append(resp.Body.StackFrames, dap.StackFrame{
			Id:     int(session.PackFrameID(iid, i)),
			Name:   a.threadName(iid),
			Source: src,
			Line:   loc.Line,
			Column: loc.Column,
		})
	}
	resp.Body.TotalFrames = len(scopes)
	return nil
}

func (a *Adapter) Scopes(c Context, req *dap.ScopesRequest, resp *dap.ScopesResponse) error {
	iid, sid := session.UnpackFrameID(int64(req.Arguments.FrameId))
	if _, ok := a.sess.Scope(iid, sid); !ok {
		return errors.Errorf("no such frame id: %d", req.Arguments.FrameId)
	}

	resp.Body.Scopes = []dap.Scope{
		{
			Name:               "Local",
			PresentationHint:   "locals",
			VariablesReference: a.handles.ref(handle{kind: kindLocal, iid: iid, sid: sid}),
		},
		{
			Name:               "Generator Variables",
			VariablesReference: a.handles.ref(handle{kind: kindGenerator, iid: iid, sid: sid}),
		},
		{
			Name:               "Simulator Values",
			VariablesReference: a.handles.ref(handle{kind: kindSimulator, iid: iid, sid: sid}),
			Expensive:          true,
		},
	}
	return nil
}

func (a *Adapter) Variables(c Context, req *dap.VariablesRequest, resp *dap.VariablesResponse) error {
	resp.Body.Variables = []dap.Variable{}

	h, ok := a.handles.get(req.Arguments.VariablesReference)
	if !ok {
		return errors.Errorf("no such variables reference: %d", req.Arguments.VariablesReference)
	}

	if h.kind == kindSimulator {
		resp.Body.Variables = append(resp.Body.Variables, dap.Variable{
			Name:  "Time",
			Value: strconv.FormatUint(a.sess.Location().Time, 10),
		})
		return nil
	}

	sc, ok := a.sess.Scope(h.iid, h.sid)
	if !ok {
		// The break moved on; stale reference.
		return nil
	}

	flat := sc.Local
	if h.mapKind() == kindGenerator {
		flat = sc.Generator
	}

	ref := req.Arguments.VariablesReference
	for _, child := range flat.List(h.path()) {
		v := dap.Variable{Name: child.Display}
		if child.Compound {
			v.Value = "Object"
			if child.Array {
				v.Value = "Array"
			}
			v.VariablesReference = a.handles.ref(handle{
				kind:   child.Path,
				sub:    h.mapKind(),
				iid:    h.iid,
				sid:    h.sid,
				parent: ref,
				name:   child.Display,
			})
		} else {
			v.Value = child.Value
		}
		resp.Body.Variables = append(resp.Body.Variables, v)
	}
	return nil
}

func (a *Adapter) SetVariable(c Context, req *dap.SetVariableRequest, resp *dap.SetVariableResponse) error {
	if a.sess == nil {
		return errors.New("no session")
	}

	h, ok := a.handles.get(req.Arguments.VariablesReference)
	if !ok {
		return errors.Errorf("no such variables reference: %d", req.Arguments.VariablesReference)
	}
	if h.kind == kindSimulator {
		return errors.New("simulator values are read only")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(req.Arguments.Value), 10, 64)
	if err != nil {
		return errors.Errorf("%q is not an integer", req.Arguments.Value)
	}

	name, ok := a.handles.fullName(req.Arguments.VariablesReference, req.Arguments.Name)
	if !ok {
		return errors.New("cannot reconstruct variable name")
	}

	target := session.SetTarget{}
	bpID, ns, ok := a.sess.BreakpointIDOf(h.iid)
	if !ok {
		return errors.New("instance is not part of the current break")
	}
	nsCopy := ns
	target.NamespaceID = &nsCopy
	if h.mapKind() == kindGenerator {
		_, raw := session.UnpackComposite(h.iid)
		target.InstanceID = &raw
	} else {
		target.BreakpointID = &bpID
	}

	if err := a.sess.SetValue(c, name, value, target); err != nil {
		return err
	}
	resp.Body.Value = req.Arguments.Value
	return nil
}

func (a *Adapter) Evaluate(c Context, req *dap.EvaluateRequest, resp *dap.EvaluateResponse) error {
	if a.sess == nil {
		return errors.New("no session")
	}

	var (
		bpID uint64
		ns   uint32
		ok   bool
	)
	if req.Arguments.Context == "watch" && req.Arguments.FrameId > 0 {
		iid, _ := session.UnpackFrameID(int64(req.Arguments.FrameId))
		bpID, ns, ok = a.sess.BreakpointIDOf(iid)
	} else {
		bpID, ns, ok = a.sess.CurrentBreakpointID()
	}
	if !ok {
		return errors.New("no breakpoint scope to evaluate in")
	}

	nsCopy := ns
	result, err := a.sess.Evaluate(c, req.Arguments.Expression, strconv.FormatUint(bpID, 10), &nsCopy)
	if err != nil {
		return err
	}
	resp.Body.Result = result
	return nil
}

func (a *Adapter) DataBreakpointInfo(c Context, req *dap.DataBreakpointInfoRequest, resp *dap.DataBreakpointInfoResponse) error {
	h, ok := a.handles.get(req.Arguments.VariablesReference)
	if !ok || h.kind == kindSimulator {
		resp.Body.Description = "cannot watch this variable"
		return nil
	}

	name, ok := a.handles.fullName(req.Arguments.VariablesReference, req.Arguments.Name)
	if !ok || !a.bps.ValidateData(c, h.iid, name) {
		resp.Body.Description = "cannot watch this variable"
		return nil
	}

	resp.Body.DataId = fmt.Sprintf("%d:%s", h.iid, name)
	resp.Body.Description = name
	resp.Body.AccessTypes = []dap.DataBreakpointAccessType{"write"}
	return nil
}

func (a *Adapter) SetDataBreakpoints(c Context, req *dap.SetDataBreakpointsRequest, resp *dap.SetDataBreakpointsResponse) error {
	if a.bps == nil {
		return errors.New("no session")
	}

	// The client resends the full set every time.
	if err := a.bps.ClearData(c); err != nil {
		return err
	}

	resp.Body.Breakpoints = []dap.Breakpoint{}
	for _, dbp := range req.Arguments.Breakpoints {
		iid, name, ok := parseDataID(dbp.DataId)
		verified := false
		if ok {
			verified = a.bps.AddData(c, iid, name, dbp.Condition) == nil
		}
		resp.Body.Breakpoints = append(resp.Body.Breakpoints, dap.Breakpoint{
			Verified: verified,
		})
	}
	return nil
}

func parseDataID(dataID string) (uint64, string, bool) {
	idStr, name, ok := strings.Cut(dataID, ":")
	if !ok {
		return 0, "", false
	}
	iid, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return iid, name, true
}

func (a *Adapter) Continue(c Context, req *dap.ContinueRequest, resp *dap.ContinueResponse) error {
	resp.Body.AllThreadsContinued = true
	return a.sess.Continue(c)
}

func (a *Adapter) Next(c Context, req *dap.NextRequest, resp *dap.NextResponse) error {
	return a.sess.StepOver(c)
}

func (a *Adapter) StepBack(c Context, req *dap.StepBackRequest, resp *dap.StepBackResponse) error {
	return a.sess.StepBack(c)
}

func (a *Adapter) ReverseContinue(c Context, req *dap.ReverseContinueRequest, resp *dap.ReverseContinueResponse) error {
	return a.sess.ReverseContinue(c)
}

func (a *Adapter) Terminate(c Context, req *dap.TerminateRequest, resp *dap.TerminateResponse) error {
	if a.sess == nil {
		return nil
	}
	return a.sess.Stop(c)
}

func (a *Adapter) Disconnect(c Context, req *dap.DisconnectRequest, resp *dap.DisconnectResponse) error {
	if a.sess != nil {
		a.sess.Close()
	}
	return nil
}
