package sidecar

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/murmurapp/sidecar/errkind"
)

// Client-local error codes, outside the JSON-RPC reserved range. They mark
// failures the sidecar never saw.
const (
	CodeInvalidResponse = -42700
	CodeShutdown        = -42701
)

// ErrShutdown resolves every outstanding call when the connection to the
// sidecar is lost or the client is closed.
var ErrShutdown = errors.New("connection is shut down")

// ErrDeadline is returned by Call when the per-method deadline elapses. It
// is a client-local condition, not a sidecar ErrorKind: the sidecar may
// still complete the work, so callers should follow up with an idempotent
// status query instead of assuming nothing happened.
var ErrDeadline = errors.New("call timed out")

// CallError is a failure reported by (or attributed to) the sidecar for a
// specific call. Kind is the only field business logic should branch on;
// it is errkind.Internal when the sidecar supplied no recognizable kind or
// the response violated the protocol.
type CallError struct {
	Code    int
	Message string
	Kind    errkind.Kind
	Details json.RawMessage
}

func (e *CallError) Error() string {
	return fmt.Sprintf("sidecar: %s (%s)", e.Message, e.Kind)
}
