package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/murmurapp/sidecar/sequence"
)

// Event is an immutable snapshot of the machine, broadcast on every
// accepted transition and every enabled-flag change. Seq numbers are
// strictly increasing so subscribers can detect missed events.
type Event struct {
	Seq         uint64
	State       AppState
	Enabled     bool
	ErrorDetail string
	At          time.Time
}

// Machine owns the lifecycle state, the hotkey-listening flag and the last
// error detail. Construct one per application (or per test) and share it;
// all operations are safe for concurrent use and the transition
// check-and-set is atomic under one lock.
type Machine struct {
	log logrus.FieldLogger
	seq *sequence.Sequence

	mu      sync.Mutex
	state   AppState
	enabled bool
	detail  string
	lastSeq uint64
	subs    map[uuid.UUID]*Subscription
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger used for transition tracing and drop warnings.
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Machine) { m.log = log }
}

// WithSequence shares an event counter with other emitters.
func WithSequence(seq *sequence.Sequence) Option {
	return func(m *Machine) { m.seq = seq }
}

// NewMachine returns a Machine in Idle with listening enabled.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		state:   Idle,
		enabled: true,
		subs:    make(map[uuid.UUID]*Subscription),
	}
	for _, o := range opts {
		o(m)
	}
	if m.log == nil {
		m.log = logrus.StandardLogger()
	}
	if m.seq == nil {
		m.seq = &sequence.Sequence{}
	}
	return m
}

// Transition moves the machine to the given state. Attempts not present in
// the transition table are rejected with *InvalidTransitionError and leave
// the state untouched. A transition to the current state is accepted as a
// no-op: it re-broadcasts but clears nothing. Idle to Recording is
// additionally rejected while listening is paused.
func (m *Machine) Transition(to AppState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state
	if to == from {
		m.broadcastLocked()
		return nil
	}
	if from == Idle && to == Recording && !m.enabled {
		return &InvalidTransitionError{From: from, To: to}
	}
	if !allowed(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	m.state = to
	if to != Error {
		m.detail = ""
	}
	m.log.WithFields(logrus.Fields{"from": from, "to": to}).Debug("state transition")
	m.broadcastLocked()
	return nil
}

// Fault forces the machine into Error with the given detail, from any
// state. It always succeeds. Re-entering Error with an empty detail keeps
// the detail of the prior fault.
func (m *Machine) Fault(detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if detail != "" || m.state != Error {
		m.detail = detail
	}
	from := m.state
	m.state = Error
	m.log.WithFields(logrus.Fields{"from": from, "detail": m.detail}).Debug("fault")
	m.broadcastLocked()
}

// SetEnabled flips the hotkey-listening flag, broadcasting when it changes.
func (m *Machine) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enabled == enabled {
		return
	}
	m.enabled = enabled
	m.broadcastLocked()
}

// CanStartRecording classifies a hypothetical start attempt without
// mutating anything. Exactly one decision applies at any instant.
func (m *Machine) CanStartRecording() StartDecision {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case LoadingModel:
		return StartModelLoading
	case Recording:
		return StartAlreadyRecording
	case Transcribing:
		return StartStillTranscribing
	case Error:
		return StartInErrorState
	}
	if !m.enabled {
		return StartPaused
	}
	return StartPermitted
}

// Snapshot returns the current state without racing a broadcast: its Seq is
// the one of the last emitted event.
func (m *Machine) Snapshot() Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Event {
	return Event{
		Seq:         m.lastSeq,
		State:       m.state,
		Enabled:     m.enabled,
		ErrorDetail: m.detail,
		At:          time.Now(),
	}
}

// broadcastLocked emits a fresh event to every subscriber. Sends are
// non-blocking: a subscriber whose buffer is full misses the event
// (best-effort fan-out, not a durable log).
func (m *Machine) broadcastLocked() {
	ev := m.snapshotLocked()
	ev.Seq = m.seq.Next()
	m.lastSeq = ev.Seq
	for _, sub := range m.subs {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped.Add(1)
			m.log.WithField("seq", ev.Seq).Warn("dropping state event for slow subscriber")
		}
	}
}

// Subscription delivers state events on C until Cancel. Events are dropped,
// not queued, once the buffer is full; Dropped counts them.
type Subscription struct {
	C <-chan Event

	id      uuid.UUID
	ch      chan Event
	machine *Machine
	once    sync.Once
	dropped atomic.Uint64
}

// Subscribe registers a new subscriber with the given buffer (minimum 1).
// Only events emitted after the call are delivered; use Snapshot for the
// current state.
func (m *Machine) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	sub := &Subscription{
		id:      uuid.New(),
		ch:      make(chan Event, buffer),
		machine: m,
	}
	sub.C = sub.ch

	m.mu.Lock()
	m.subs[sub.id] = sub
	m.mu.Unlock()
	return sub
}

// Cancel removes the subscriber and closes its channel. Safe to call twice.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.machine.mu.Lock()
		delete(s.machine.subs, s.id)
		s.machine.mu.Unlock()
		close(s.ch)
	})
}

// Dropped reports how many events were lost to a full buffer.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}
