package wire

import (
	"context"
	"encoding/json"

	"github.com/hgdb-sim/hgdb/util/waitmap"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// BreakHandler receives server-initiated break events.
type BreakHandler func(BreakPayload)

// Dispatcher routes inbound frames: breakpoint messages go to the break
// handler regardless of token, everything else resolves the pending
// request registered under its token. Frames that parse but match no
// pending token are dropped silently.
type Dispatcher struct {
	pending *waitmap.Map
	onBreak BreakHandler
	log     *logrus.Entry
}

func NewDispatcher(onBreak BreakHandler) *Dispatcher {
	return &Dispatcher{
		pending: waitmap.New(),
		onBreak: onBreak,
		log:     logrus.WithField("component", "wire"),
	}
}

// Register reserves the token ahead of the send so the response cannot
// race the registration.
func (d *Dispatcher) Register(token string) bool {
	return d.pending.Register(token)
}

// Wait blocks until the token's response arrives. An error-status
// response surfaces as an error carrying payload.reason.
func (d *Dispatcher) Wait(ctx context.Context, token string) (json.RawMessage, error) {
	v, err := d.pending.Wait(ctx, token)
	if err != nil {
		return nil, err
	}
	resp := v.(*Response)
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// Dispatch classifies and routes one frame.
func (d *Dispatcher) Dispatch(frame []byte) {
	if !gjson.ValidBytes(frame) {
		d.log.Errorf("dropping malformed frame: %.80s", frame)
		return
	}

	if gjson.GetBytes(frame, "type").String() == TypeBreakpoint &&
		!gjson.GetBytes(frame, "request").Bool() {
		var resp Response
		if err := json.Unmarshal(frame, &resp); err != nil {
			d.log.WithError(err).Error("dropping malformed break event")
			return
		}
		var bp BreakPayload
		if err := json.Unmarshal(resp.Payload, &bp); err != nil {
			d.log.WithError(err).Error("dropping malformed break payload")
			return
		}
		if bp.Filename == "" {
			// Protocol error, not fatal.
			d.log.Error("break event missing filename")
			return
		}
		d.onBreak(bp)
		return
	}

	token := gjson.GetBytes(frame, "token").String()
	if token == "" {
		return
	}

	resp, err := ParseResponse(frame)
	if err != nil {
		d.log.WithError(err).Error("dropping unparseable response")
		return
	}
	if !d.pending.Resolve(token, resp) {
		d.log.Debugf("dropping response for unknown token %s", token)
	}
}

var ErrSessionEnded = errors.New("session ended")

// Fail terminates every pending request, typically on transport loss.
func (d *Dispatcher) Fail(err error) {
	if err == nil {
		err = ErrSessionEnded
	}
	d.pending.Close(err)
}
