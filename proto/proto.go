// Package proto defines the JSON-RPC 2.0 messages exchanged with the
// speech-recognition sidecar process, and the codec interface used to move
// them over a byte stream.
package proto

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/murmurapp/sidecar/helper"
)

// Version is the protocol version tag carried by every message.
const Version = "2.0"

// Request is a call sent to the sidecar. Immutable once written.
type Request struct {
	Version string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds a Request for method, marshaling params if non-nil.
func NewRequest(id ID, method string, params interface{}) (*Request, error) {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal params for %q", method)
		}
		raw = b
	}
	return &Request{Version: Version, ID: id, Method: method, Params: raw}, nil
}

// Response is the sidecar's reply to a Request. The id is kept raw because
// the sidecar omits it (or sends null) for top-level parse failures it
// cannot attribute to a request.
type Response struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// RequestID returns the id this response answers. ok is false when the id
// is absent, null, or not a number/string.
func (r *Response) RequestID() (ID, bool) {
	if len(r.ID) == 0 || helper.IsNull(r.ID) {
		return ID{}, false
	}
	var id ID
	if err := id.UnmarshalJSON(r.ID); err != nil {
		return ID{}, false
	}
	return id, true
}

// ErrorObject is the error member of a failed Response. The numeric code is
// transport-level; business logic branches on the stable kind string inside
// Data instead.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// KindString extracts the stable "kind" discriminator from Data.
func (e *ErrorObject) KindString() (string, bool) {
	raw, ok := helper.ObjectField(e.Data, "kind")
	if !ok {
		return "", false
	}
	return helper.Raw2String(raw)
}

// Details returns the free-form "details" member of Data, or nil.
func (e *ErrorObject) Details() json.RawMessage {
	raw, ok := helper.ObjectField(e.Data, "details")
	if !ok {
		return nil
	}
	return raw
}

// Notification is an unsolicited sidecar message. It carries no id and
// never receives a reply.
type Notification struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// emptyParams is what Notification params default to when absent.
var emptyParams = json.RawMessage(`{}`)

// Incoming is one message read off the transport: exactly one of the two
// fields is set.
type Incoming struct {
	Response     *Response
	Notification *Notification
}

// ParseIncoming decodes one wire line. A message with a "method" member is
// a Notification, anything else is a Response; every Response field is
// optional, so shape-based inference would misread notifications.
// It never panics, whatever the byte content.
func ParseIncoming(line []byte) (*Incoming, error) {
	var probe struct {
		Method *string `json:"method"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil, &ParseError{Line: line, Err: err}
	}
	if probe.Method != nil {
		var n Notification
		if err := json.Unmarshal(line, &n); err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		if len(n.Params) == 0 || helper.IsNull(n.Params) {
			n.Params = emptyParams
		}
		return &Incoming{Notification: &n}, nil
	}
	var r Response
	if err := json.Unmarshal(line, &r); err != nil {
		return nil, &ParseError{Line: line, Err: err}
	}
	return &Incoming{Response: &r}, nil
}

// ParseError reports a wire line that could not be decoded. Readers drop
// the line and keep the transport loop running.
type ParseError struct {
	Line []byte
	Err  error
}

func (e *ParseError) Error() string {
	return "undecodable message: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// A ClientCodec frames and unframes messages for the client side of a
// sidecar session. WriteRequest may be called concurrently; ReadMessage is
// driven by a single reader.
type ClientCodec interface {
	WriteRequest(*Request) error
	ReadMessage() (*Incoming, error)

	Close() error
}
