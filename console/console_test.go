package console

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hgdb-sim/hgdb/breakpoint"
	"github.com/hgdb-sim/hgdb/session"
	"github.com/hgdb-sim/hgdb/util/simtest"
	"github.com/hgdb-sim/hgdb/wire"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type consoleEnv struct {
	console *Console
	sess    *session.Session
	backend *simtest.Server
	out     *bytes.Buffer
}

func newConsoleEnv(t *testing.T, opts Options) *consoleEnv {
	e := &consoleEnv{backend: simtest.New(t), out: &bytes.Buffer{}}

	e.sess = session.New(e.backend.Addr(), "repl")
	require.NoError(t, e.sess.Start(context.TODO()))
	t.Cleanup(func() { e.sess.Close() })

	e.console = New(e.sess, breakpoint.NewManager(e.sess), opts)
	e.console.out = e.out
	return e
}

func (e *consoleEnv) pushBreak(t *testing.T, line int, local map[string]string) {
	t.Helper()
	gen := e.sess.Generation()
	e.backend.PushBreak(map[string]any{
		"filename":   "/tmp/test.py",
		"line_num":   line,
		"column_num": 0,
		"time":       uint64(100),
		"instances": []map[string]any{{
			"instance_id":   uint64(1),
			"instance_name": "mod",
			"breakpoint_id": uint64(3),
			"namespace_id":  uint32(0),
			"bp_type":       "normal",
			"local":         local,
			"generator":     map[string]string{},
		}},
	})
	require.Eventually(t, func() bool {
		return e.sess.Generation() > gen
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBreakCommand(t *testing.T) {
	e := newConsoleEnv(t, Options{})
	e.backend.Handle(wire.TypeBPLocation, func(simtest.Envelope) (any, error) {
		return []wire.BPLocationEntry{{ID: 0, LineNum: 1, ColumnNum: 0}}, nil
	})

	require.NoError(t, e.console.Dispatch(context.TODO(), "b /tmp/test.py:1"))
	assert.Contains(t, e.out.String(), "breakpoint 0 at /tmp/test.py:1")

	commits := e.backend.Requests(wire.TypeBreakpointID)
	require.Len(t, commits, 1)
	assert.Contains(t, string(commits[0].Payload), `"add"`)
}

func TestBreakCommandParseError(t *testing.T) {
	e := newConsoleEnv(t, Options{})

	err := e.console.Dispatch(context.TODO(), "b /tmp/test.py:abc")
	require.Error(t, err)
	// Nothing was sent.
	assert.Empty(t, e.backend.Requests(wire.TypeBPLocation))
}

func TestPrintCached(t *testing.T) {
	e := newConsoleEnv(t, Options{})
	e.pushBreak(t, 1, map[string]string{"a": "1", "b[0]": "7"})

	require.NoError(t, e.console.Dispatch(context.TODO(), "p a"))
	assert.Equal(t, "1\n", e.out.String())

	e.out.Reset()
	require.NoError(t, e.console.Dispatch(context.TODO(), "p b[0]"))
	assert.Equal(t, "7\n", e.out.String())

	// Cached lookups never touch the server.
	assert.Empty(t, e.backend.Requests(wire.TypeEvaluation))
}

func TestPrintPseudoValues(t *testing.T) {
	e := newConsoleEnv(t, Options{})
	e.pushBreak(t, 1, map[string]string{})

	require.NoError(t, e.console.Dispatch(context.TODO(), "p breakpoint-id"))
	assert.Equal(t, "3\n", e.out.String())

	e.out.Reset()
	require.NoError(t, e.console.Dispatch(context.TODO(), "p namespace-id"))
	assert.Equal(t, "0\n", e.out.String())
}

func TestPrintForwardsExpressions(t *testing.T) {
	e := newConsoleEnv(t, Options{})
	e.backend.Handle(wire.TypeEvaluation, func(env simtest.Envelope) (any, error) {
		var p wire.EvaluationPayload
		assert.NoError(t, json.Unmarshal(env.Payload, &p))
		assert.Equal(t, "1 + a", p.Expression)
		return map[string]string{"result": "2"}, nil
	})
	e.pushBreak(t, 1, map[string]string{"a": "1"})

	require.NoError(t, e.console.Dispatch(context.TODO(), "p 1 + a"))
	assert.Equal(t, "2\n", e.out.String())
}

func TestPrintSetOverrideForwards(t *testing.T) {
	e := newConsoleEnv(t, Options{})
	e.backend.Handle(wire.TypeEvaluation, func(simtest.Envelope) (any, error) {
		return map[string]string{"result": "42"}, nil
	})
	e.pushBreak(t, 1, map[string]string{"a": "1"})

	require.NoError(t, e.console.Dispatch(context.TODO(), "set a=42"))
	require.NoError(t, e.console.Dispatch(context.TODO(), "p a"))

	// The stale cached value 1 must not be reported.
	assert.Equal(t, "42\n", e.out.String())
	assert.Len(t, e.backend.Requests(wire.TypeEvaluation), 1)
}

func TestSetRejectsNonInteger(t *testing.T) {
	e := newConsoleEnv(t, Options{})
	e.pushBreak(t, 1, map[string]string{"a": "1"})

	err := e.console.Dispatch(context.TODO(), "set a=hello")
	require.Error(t, err)
	assert.Empty(t, e.backend.Requests(wire.TypeSetValue))
}

func TestSetRequiresBreakContext(t *testing.T) {
	e := newConsoleEnv(t, Options{})

	err := e.console.Dispatch(context.TODO(), "set a=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no breakpoint scope")
}

func TestContinueAwaitsStop(t *testing.T) {
	e := newConsoleEnv(t, Options{})

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- e.console.Dispatch(ctx, "c")
	}()

	require.Eventually(t, func() bool {
		return len(e.backend.Requests(wire.TypeCommand)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	e.backend.PushBreak(map[string]any{
		"filename":   "/tmp/test.py",
		"line_num":   5,
		"column_num": 0,
		"time":       uint64(200),
		"instances": []map[string]any{{
			"instance_id":   uint64(1),
			"instance_name": "mod",
			"breakpoint_id": uint64(3),
			"namespace_id":  uint32(0),
			"bp_type":       "normal",
			"local":         map[string]string{},
			"generator":     map[string]string{},
		}},
	})

	require.NoError(t, <-done)
	assert.Contains(t, e.out.String(), "stopped at")
	assert.Contains(t, e.out.String(), ":5")
}

func TestInfoBreakpoints(t *testing.T) {
	e := newConsoleEnv(t, Options{})
	e.backend.Handle(wire.TypeBPLocation, func(simtest.Envelope) (any, error) {
		return []wire.BPLocationEntry{{ID: 2, LineNum: 4, ColumnNum: 8}}, nil
	})

	require.NoError(t, e.console.Dispatch(context.TODO(), "b /tmp/test.py:4"))
	e.out.Reset()

	require.NoError(t, e.console.Dispatch(context.TODO(), "info breakpoint"))
	assert.Contains(t, e.out.String(), "2: ")
	assert.Contains(t, e.out.String(), ":4:8")
}

func TestInfoTime(t *testing.T) {
	e := newConsoleEnv(t, Options{})
	e.pushBreak(t, 1, map[string]string{})

	require.NoError(t, e.console.Dispatch(context.TODO(), "info time"))
	assert.Equal(t, "100\n", e.out.String())
}

func TestThreadSwitch(t *testing.T) {
	e := newConsoleEnv(t, Options{})
	e.pushBreak(t, 1, map[string]string{})

	err := e.console.Dispatch(context.TODO(), "thread 9")
	require.Error(t, err)

	require.NoError(t, e.console.Dispatch(context.TODO(), "thread 1"))
	assert.Contains(t, e.out.String(), "[1]: mod")
}

func TestClearNoArgNotImplemented(t *testing.T) {
	e := newConsoleEnv(t, Options{})

	require.NoError(t, e.console.Dispatch(context.TODO(), "clear"))
	assert.Equal(t, "not implemented\n", e.out.String())
}

func TestWatchRequiresBreak(t *testing.T) {
	e := newConsoleEnv(t, Options{})

	err := e.console.Dispatch(context.TODO(), "w a")
	require.Error(t, err)

	e.pushBreak(t, 1, map[string]string{"a": "1"})
	require.NoError(t, e.console.Dispatch(context.TODO(), "w a --cond a > 2"))

	reqs := e.backend.Requests(wire.TypeDataBreakpoint)
	require.Len(t, reqs, 2)
	assert.Contains(t, string(reqs[0].Payload), `"info"`)
	assert.Contains(t, string(reqs[1].Payload), `"add"`)
}

func TestListSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "test.py")
	require.NoError(t, os.WriteFile(src, []byte("one\ntwo\nthree\nfour\n"), 0o644))

	e := newConsoleEnv(t, Options{})
	require.NoError(t, e.console.Dispatch(context.TODO(), "l "+src+":2 -n 1"))

	out := e.out.String()
	assert.Contains(t, out, "one")
	assert.Contains(t, out, "-> ")
	assert.Contains(t, out, "two")
	assert.Contains(t, out, "three")
	assert.NotContains(t, out, "four")
}

func TestUnknownCommand(t *testing.T) {
	e := newConsoleEnv(t, Options{})
	err := e.console.Dispatch(context.TODO(), "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestQuit(t *testing.T) {
	e := newConsoleEnv(t, Options{})
	require.NoError(t, e.console.Dispatch(context.TODO(), "q"))
	assert.True(t, e.console.exiting.Load())
}

func TestEvaluationErrorSurfaced(t *testing.T) {
	e := newConsoleEnv(t, Options{})
	e.backend.Handle(wire.TypeEvaluation, func(simtest.Envelope) (any, error) {
		return nil, errors.New("unknown symbol")
	})
	e.pushBreak(t, 1, map[string]string{})

	err := e.console.Dispatch(context.TODO(), "p x + 1")
	require.EqualError(t, err, "unknown symbol")
}
