package wire

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Request is the outbound envelope. Every request carries a token
// unique within the session; the server echoes it on the response.
type Request struct {
	Request bool   `json:"request"`
	Type    string `json:"type"`
	Token   string `json:"token"`
	Payload any    `json:"payload"`
}

func NewRequest(typ, token string, payload any) *Request {
	return &Request{
		Request: true,
		Type:    typ,
		Token:   token,
		Payload: payload,
	}
}

func (r *Request) Marshal() ([]byte, error) {
	dt, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s request", r.Type)
	}
	return dt, nil
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the inbound envelope. Type and Token are optional;
// server-initiated messages carry no token at all.
type Response struct {
	Type    string          `json:"type,omitempty"`
	Token   string          `json:"token,omitempty"`
	Status  string          `json:"status"`
	Payload json.RawMessage `json:"payload"`
}

// errorPayload is the payload shape of an error-status response.
type errorPayload struct {
	Reason string `json:"reason"`
}

// Err returns nil for success responses and an error carrying
// payload.reason otherwise.
func (r *Response) Err() error {
	if r.Status != StatusError {
		return nil
	}
	var p errorPayload
	if err := json.Unmarshal(r.Payload, &p); err != nil || p.Reason == "" {
		return errors.New("request failed")
	}
	return errors.New(p.Reason)
}

// Decode unmarshals the response payload into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return errors.Wrap(err, "failed to decode response payload")
	}
	return nil
}

func ParseResponse(frame []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(frame, &r); err != nil {
		return nil, errors.Wrap(err, "failed to parse frame")
	}
	return &r, nil
}
