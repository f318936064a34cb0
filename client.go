// Package sidecar coordinates a foreground control process with a
// long-lived speech-recognition worker over line-oriented JSON-RPC 2.0:
// request/response correlation, per-method deadlines, notification fan-out
// and the stable cross-process error vocabulary.
package sidecar

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/murmurapp/sidecar/errkind"
	"github.com/murmurapp/sidecar/proto"
)

// Call represents an active RPC.
type Call struct {
	Method string
	Params interface{}     // the argument to the method (marshaled once)
	Result json.RawMessage // the raw result payload on success
	Error  error           // *CallError, ErrShutdown, or a write failure
	Done   chan *Call      // receives *Call when the call is complete

	id proto.ID
}

// Client owns the transport to one sidecar process. There may be many
// outstanding Calls at once and a Client may be used by multiple goroutines
// simultaneously; responses are matched by id, never by send order.
type Client struct {
	codec    proto.ClientCodec
	log      logrus.FieldLogger
	timeouts *Timeouts

	reqMutex sync.Mutex // serializes request writes

	mutex    sync.Mutex // protects following
	seq      uint64
	pending  map[proto.ID]*Call
	closing  bool // user has called Close
	shutdown bool // the transport has failed

	subMutex sync.Mutex
	subs     map[uuid.UUID]*Subscription

	done chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for wire noise and drop warnings.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// WithTimeouts replaces the default per-method deadline policy.
func WithTimeouts(t *Timeouts) Option {
	return func(c *Client) { c.timeouts = t }
}

// NewClient wraps a codec and starts the reader loop. The caller hands over
// ownership of the codec; nothing else may read from or write to it.
func NewClient(codec proto.ClientCodec, opts ...Option) *Client {
	client := &Client{
		codec:   codec,
		seq:     1,
		pending: make(map[proto.ID]*Call),
		subs:    make(map[uuid.UUID]*Subscription),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(client)
	}
	if client.log == nil {
		client.log = logrus.StandardLogger()
	}
	if client.timeouts == nil {
		client.timeouts = DefaultTimeouts()
	}
	go client.input()
	return client
}

// Done is closed once the transport has failed or the client was closed,
// after all pending calls were resolved with ErrShutdown and all
// notification subscriptions were closed.
func (client *Client) Done() <-chan struct{} {
	return client.done
}

func (client *Client) send(call *Call) {
	client.reqMutex.Lock()
	defer client.reqMutex.Unlock()

	// Register this call.
	client.mutex.Lock()
	if client.shutdown || client.closing {
		client.mutex.Unlock()
		call.Error = errors.Wrap(ErrShutdown, call.Method)
		call.done(client.log)
		return
	}
	call.id = proto.NumberID(client.seq)
	client.seq++
	client.pending[call.id] = call
	client.mutex.Unlock()

	id := call.id
	req, err := proto.NewRequest(id, call.Method, call.Params)
	if err == nil {
		err = client.codec.WriteRequest(req)
	}
	if err != nil {
		client.mutex.Lock()
		call = client.pending[id]
		delete(client.pending, id)
		client.mutex.Unlock()
		if call != nil {
			call.Error = errors.Wrapf(err, "send %q", call.Method)
			call.done(client.log)
		}
	}
}

func (client *Client) input() {
	var err error
	for {
		var msg *proto.Incoming
		msg, err = client.codec.ReadMessage()
		if err != nil {
			var perr *proto.ParseError
			if errors.As(err, &perr) {
				// Malformed bytes are a logged drop, never fatal.
				client.log.WithError(perr.Err).Warn("dropping undecodable line")
				continue
			}
			break
		}
		switch {
		case msg.Notification != nil:
			client.fanout(*msg.Notification)
		case msg.Response != nil:
			client.dispatch(msg.Response)
		}
	}

	// Terminate pending calls.
	client.reqMutex.Lock()
	client.mutex.Lock()
	client.shutdown = true
	closing := client.closing
	for _, call := range client.pending {
		call.Error = errors.Wrap(ErrShutdown, call.Method)
		call.done(client.log)
	}
	client.pending = make(map[proto.ID]*Call)
	client.mutex.Unlock()
	client.reqMutex.Unlock()

	client.closeSubscriptions()
	close(client.done)
	if !closing {
		client.log.WithError(err).Warn("sidecar connection lost")
	}
}

// dispatch resolves one response against the pending table. Responses with
// no attributable id, and late responses whose slot is already gone, are
// logged and discarded.
func (client *Client) dispatch(resp *proto.Response) {
	id, ok := resp.RequestID()
	if !ok {
		client.log.Warn("discarding response with unattributable id")
		return
	}

	client.mutex.Lock()
	call := client.pending[id]
	delete(client.pending, id)
	client.mutex.Unlock()

	if call == nil {
		client.log.WithField("id", id.String()).Debug("discarding response with no pending call")
		return
	}
	call.Result, call.Error = client.resolve(resp)
	call.done(client.log)
}

// resolve classifies one well-correlated response. Exactly one of result
// and error must be present; anything else is a protocol violation reported
// as an internal failure, never a silent success.
func (client *Client) resolve(resp *proto.Response) (json.RawMessage, error) {
	hasResult := len(resp.Result) > 0
	hasError := resp.Error != nil
	switch {
	case hasResult && hasError:
		return nil, &CallError{
			Code:    CodeInvalidResponse,
			Message: "response carries both result and error",
			Kind:    errkind.Internal,
		}
	case !hasResult && !hasError:
		return nil, &CallError{
			Code:    CodeInvalidResponse,
			Message: "response carries neither result nor error",
			Kind:    errkind.Internal,
		}
	case hasError:
		return nil, client.callError(resp.Error)
	default:
		return resp.Result, nil
	}
}

func (client *Client) callError(eo *proto.ErrorObject) *CallError {
	kind := errkind.Internal
	if s, ok := eo.KindString(); ok {
		if k, known := errkind.FromWire(s); known {
			kind = k
		} else {
			client.log.WithField("kind", s).Warn("unknown error kind from sidecar")
		}
	}
	return &CallError{
		Code:    eo.Code,
		Message: eo.Message,
		Kind:    kind,
		Details: eo.Details(),
	}
}

func (call *Call) done(log logrus.FieldLogger) {
	select {
	case call.Done <- call:
		// ok
	default:
		// We don't want to block here. It is the caller's responsibility to
		// make sure the channel has enough buffer space. See comment in Go().
		log.WithField("method", call.Method).Debug("discarding call resolution due to insufficient Done chan capacity")
	}
}

// Go invokes the method asynchronously. It returns the Call structure
// representing the invocation. The done channel will signal when the call
// is complete by returning the same Call object. If done is nil, Go will
// allocate a new channel. If non-nil, done must be buffered or Go will
// deliberately crash.
func (client *Client) Go(method string, params interface{}, done chan *Call) *Call {
	call := &Call{Method: method, Params: params}
	if done == nil {
		done = make(chan *Call, 1) // buffered.
	} else {
		// If caller passes done != nil, it must arrange that done has enough
		// buffer for the number of simultaneous RPCs that will be using that
		// channel. If the channel is totally unbuffered, it's best not to
		// run at all.
		if cap(done) == 0 {
			client.log.Panic("sidecar: done channel is unbuffered")
		}
	}
	call.Done = done
	client.send(call)
	return call
}

// Call invokes the method, waits for a matching response up to the
// per-method deadline, and returns the raw result payload. On timeout the
// pending slot is removed, ErrDeadline is returned and a late response is
// discarded by the reader; the request is not cancelled on the wire.
func (client *Client) Call(method string, params interface{}) (json.RawMessage, error) {
	call := client.Go(method, params, make(chan *Call, 1))
	timeout := client.timeouts.Get(method)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case done := <-call.Done:
		return done.Result, done.Error
	case <-timer.C:
	}

	client.mutex.Lock()
	if _, outstanding := client.pending[call.id]; outstanding {
		delete(client.pending, call.id)
		client.mutex.Unlock()
		client.log.WithFields(logrus.Fields{"method": method, "timeout": timeout}).Warn("call timed out")
		return nil, errors.Wrapf(ErrDeadline, "%s after %s", method, timeout)
	}
	client.mutex.Unlock()
	// The resolution raced the deadline and won; take it.
	done := <-call.Done
	return done.Result, done.Error
}

// Close shuts the transport down. Pending calls resolve with ErrShutdown
// once the reader loop notices. If the client is already closing,
// ErrShutdown is returned.
func (client *Client) Close() error {
	client.mutex.Lock()
	if client.closing {
		client.mutex.Unlock()
		return ErrShutdown
	}
	client.closing = true
	client.mutex.Unlock()
	return client.codec.Close()
}
