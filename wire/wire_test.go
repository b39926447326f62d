package wire

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMarshal(t *testing.T) {
	req := NewRequest(TypeBPLocation, "cli-0", BPLocationPayload{
		Filename: "/tmp/test.py",
		LineNum:  1,
	})
	dt, err := req.Marshal()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(dt, &m))
	assert.Equal(t, true, m["request"])
	assert.Equal(t, "bp-location", m["type"])
	assert.Equal(t, "cli-0", m["token"])

	payload := m["payload"].(map[string]any)
	assert.Equal(t, "/tmp/test.py", payload["filename"])
	assert.Equal(t, float64(1), payload["line_num"])
	assert.NotContains(t, payload, "column_num")
}

func TestResponseErr(t *testing.T) {
	resp := &Response{Status: StatusError, Payload: json.RawMessage(`{"reason":"no such file"}`)}
	require.EqualError(t, resp.Err(), "no such file")

	resp = &Response{Status: StatusSuccess, Payload: json.RawMessage(`{}`)}
	require.NoError(t, resp.Err())
}

func TestTokenSource(t *testing.T) {
	ts := NewTokenSource("vscode")
	assert.Equal(t, "vscode-0", ts.Next())
	assert.Equal(t, "vscode-1", ts.Next())
	assert.Equal(t, "vscode-2", ts.Next())
}

func TestTokenSourceDefaultTag(t *testing.T) {
	a, b := NewTokenSource(""), NewTokenSource("")
	ta, tb := a.Next(), b.Next()
	assert.True(t, strings.HasSuffix(ta, "-0"))
	assert.NotEqual(t, ta, tb)
}

func TestDispatchResponse(t *testing.T) {
	d := NewDispatcher(func(BreakPayload) { t.Fatal("not a break event") })

	require.True(t, d.Register("cli-0"))
	d.Dispatch([]byte(`{"token":"cli-0","status":"success","payload":{"result":"2"}}`))

	payload, err := d.Wait(context.TODO(), "cli-0")
	require.NoError(t, err)

	var res EvaluationResult
	require.NoError(t, json.Unmarshal(payload, &res))
	require.NotNil(t, res.Result)
	assert.Equal(t, "2", *res.Result)
}

func TestDispatchErrorStatus(t *testing.T) {
	d := NewDispatcher(func(BreakPayload) {})

	require.True(t, d.Register("cli-1"))
	d.Dispatch([]byte(`{"token":"cli-1","status":"error","payload":{"reason":"bad expression"}}`))

	_, err := d.Wait(context.TODO(), "cli-1")
	require.EqualError(t, err, "bad expression")
}

func TestDispatchBreakEvent(t *testing.T) {
	var got BreakPayload
	d := NewDispatcher(func(bp BreakPayload) { got = bp })

	d.Dispatch([]byte(`{"type":"breakpoint","status":"success","payload":{
		"filename":"/tmp/test.py","line_num":5,"column_num":0,"time":100,
		"instances":[{"instance_id":1,"instance_name":"mod","breakpoint_id":3,
			"namespace_id":0,"bp_type":"normal","local":{"a":"1"},"generator":{}}]}}`))

	assert.Equal(t, "/tmp/test.py", got.Filename)
	assert.Equal(t, 5, got.LineNum)
	assert.Equal(t, uint64(100), got.Time)
	require.Len(t, got.Instances, 1)
	assert.Equal(t, "mod", got.Instances[0].InstanceName)
	assert.Equal(t, map[string]string{"a": "1"}, got.Instances[0].Local)
}

func TestDispatchBreakEventMissingFilename(t *testing.T) {
	called := false
	d := NewDispatcher(func(BreakPayload) { called = true })
	d.Dispatch([]byte(`{"type":"breakpoint","payload":{"line_num":5}}`))
	assert.False(t, called)
}

func TestDispatchUnknownTokenDropped(t *testing.T) {
	d := NewDispatcher(func(BreakPayload) {})
	// Must not panic or block.
	d.Dispatch([]byte(`{"token":"nope","status":"success","payload":{}}`))
}

func TestDispatchMalformedFrame(t *testing.T) {
	d := NewDispatcher(func(BreakPayload) { t.Fatal("unexpected break") })
	d.Dispatch([]byte(`{"token":`))
}

func TestFailPending(t *testing.T) {
	d := NewDispatcher(func(BreakPayload) {})
	require.True(t, d.Register("cli-2"))

	d.Fail(nil)

	_, err := d.Wait(context.TODO(), "cli-2")
	require.ErrorIs(t, err, ErrSessionEnded)
}
