package state

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine() *Machine {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewMachine(WithLogger(log))
}

func TestMachineStartsIdleEnabled(t *testing.T) {
	m := newTestMachine()
	snap := m.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.True(t, snap.Enabled)
	assert.Empty(t, snap.ErrorDetail)
	assert.Zero(t, snap.Seq, "no events emitted yet")
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to AppState
		ok       bool
	}{
		{Idle, LoadingModel, true},
		{Idle, Recording, true},
		{Idle, Error, true},
		{Idle, Transcribing, false},
		{LoadingModel, Idle, true},
		{LoadingModel, Recording, false},
		{LoadingModel, Transcribing, false},
		{Recording, Transcribing, true},
		{Recording, Idle, true},
		{Recording, LoadingModel, false},
		{Transcribing, Idle, true},
		{Transcribing, Recording, false},
		{Transcribing, LoadingModel, false},
		{Error, Idle, true},
		{Error, LoadingModel, true},
		{Error, Recording, false},
		{Error, Transcribing, false},
	}
	for _, tc := range cases {
		m := newTestMachine()
		if tc.from == Error {
			m.Fault("seed")
		} else {
			forceTo(t, m, tc.from)
		}

		err := m.Transition(tc.to)
		if tc.ok {
			assert.NoError(t, err, "%s -> %s", tc.from, tc.to)
			assert.Equal(t, tc.to, m.Snapshot().State)
		} else {
			var invalid *InvalidTransitionError
			require.ErrorAs(t, err, &invalid, "%s -> %s", tc.from, tc.to)
			assert.Equal(t, tc.from, invalid.From)
			assert.Equal(t, tc.to, invalid.To)
			assert.Equal(t, tc.from, m.Snapshot().State, "state must be untouched")
		}
	}
}

// forceTo walks the machine into the wanted state through valid transitions.
func forceTo(t *testing.T, m *Machine, want AppState) {
	t.Helper()
	switch want {
	case Idle:
	case LoadingModel:
		require.NoError(t, m.Transition(LoadingModel))
	case Recording:
		require.NoError(t, m.Transition(Recording))
	case Transcribing:
		require.NoError(t, m.Transition(Recording))
		require.NoError(t, m.Transition(Transcribing))
	case Error:
		m.Fault("forced")
	}
	require.Equal(t, want, m.Snapshot().State)
}

func TestNoPathFromTranscribingBackToRecording(t *testing.T) {
	m := newTestMachine()
	assert.Error(t, m.Transition(Transcribing), "Idle -> Transcribing rejected")
	require.NoError(t, m.Transition(Recording))
	require.NoError(t, m.Transition(Transcribing))
	assert.Error(t, m.Transition(Recording))
}

func TestSelfTransitionIsAcceptedNoOp(t *testing.T) {
	m := newTestMachine()
	m.Fault("something broke")
	sub := m.Subscribe(4)
	defer sub.Cancel()

	require.NoError(t, m.Transition(Error))
	snap := m.Snapshot()
	assert.Equal(t, Error, snap.State)
	assert.Equal(t, "something broke", snap.ErrorDetail, "self-transition must not clear detail")

	select {
	case ev := <-sub.C:
		assert.Equal(t, Error, ev.State)
	case <-time.After(time.Second):
		t.Fatal("self-transition did not emit an event")
	}
}

func TestPausedGatingOnIdleToRecording(t *testing.T) {
	m := newTestMachine()
	m.SetEnabled(false)

	err := m.Transition(Recording)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, Idle, m.Snapshot().State)

	m.SetEnabled(true)
	assert.NoError(t, m.Transition(Recording), "same call succeeds once re-enabled")
}

func TestFaultFromEveryStateAndDetailClearing(t *testing.T) {
	for _, from := range []AppState{Idle, LoadingModel, Recording, Transcribing, Error} {
		m := newTestMachine()
		if from == Error {
			m.Fault("earlier")
		} else {
			forceTo(t, m, from)
		}

		m.Fault("x")
		snap := m.Snapshot()
		assert.Equal(t, Error, snap.State, "fault from %s", from)
		assert.Equal(t, "x", snap.ErrorDetail)

		require.NoError(t, m.Transition(Idle))
		snap = m.Snapshot()
		assert.Equal(t, Idle, snap.State)
		assert.Empty(t, snap.ErrorDetail, "leaving Error clears the detail")
	}
}

func TestRefaultWithEmptyDetailKeepsPrior(t *testing.T) {
	m := newTestMachine()
	m.Fault("disk full")
	m.Fault("")
	assert.Equal(t, "disk full", m.Snapshot().ErrorDetail)

	// From a non-Error state an empty detail is taken literally.
	require.NoError(t, m.Transition(Idle))
	m.Fault("")
	assert.Empty(t, m.Snapshot().ErrorDetail)
}

func TestCanStartRecordingDecisions(t *testing.T) {
	m := newTestMachine()
	assert.Equal(t, StartPermitted, m.CanStartRecording())

	m.SetEnabled(false)
	assert.Equal(t, StartPaused, m.CanStartRecording())
	m.SetEnabled(true)

	require.NoError(t, m.Transition(LoadingModel))
	assert.Equal(t, StartModelLoading, m.CanStartRecording())
	require.NoError(t, m.Transition(Idle))

	require.NoError(t, m.Transition(Recording))
	assert.Equal(t, StartAlreadyRecording, m.CanStartRecording())

	require.NoError(t, m.Transition(Transcribing))
	assert.Equal(t, StartStillTranscribing, m.CanStartRecording())

	m.Fault("x")
	assert.Equal(t, StartInErrorState, m.CanStartRecording())
}

func TestEventsCarryIncreasingSeqAndFlagChangesEmit(t *testing.T) {
	m := newTestMachine()
	sub := m.Subscribe(8)
	defer sub.Cancel()

	require.NoError(t, m.Transition(Recording))
	m.SetEnabled(false)
	m.SetEnabled(false) // no change, no event
	m.Fault("boom")

	var events []Event
	for i := 0; i < 3; i++ {
		select {
		case ev := <-sub.C:
			events = append(events, ev)
		case <-time.After(time.Second):
			t.Fatalf("missing event %d", i)
		}
	}
	assert.Equal(t, Recording, events[0].State)
	assert.False(t, events[1].Enabled)
	assert.Equal(t, Error, events[2].State)
	assert.Equal(t, "boom", events[2].ErrorDetail)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}

	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	m := newTestMachine()
	sub := m.Subscribe(1)
	defer sub.Cancel()

	require.NoError(t, m.Transition(LoadingModel))
	require.NoError(t, m.Transition(Idle))
	require.NoError(t, m.Transition(Recording))

	assert.Equal(t, uint64(2), sub.Dropped())
	ev := <-sub.C
	assert.Equal(t, LoadingModel, ev.State, "drop-newest keeps the oldest buffered event")
}

func TestConcurrentTransitionsExactlyOneWins(t *testing.T) {
	for i := 0; i < 50; i++ {
		m := newTestMachine()
		var wg sync.WaitGroup
		errs := make([]error, 2)
		targets := []AppState{Recording, LoadingModel}
		for j := range targets {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				errs[j] = m.Transition(targets[j])
			}(j)
		}
		wg.Wait()

		// Both targets are valid from Idle but not from each other, so
		// exactly one attempt may succeed.
		var okCount int
		for _, err := range errs {
			if err == nil {
				okCount++
			}
		}
		require.Equal(t, 1, okCount, "run %d: %v", i, errs)

		final := m.Snapshot().State
		assert.Contains(t, targets, final)
	}
}

func TestSubscribeAfterCancelIsIndependent(t *testing.T) {
	m := newTestMachine()
	sub := m.Subscribe(1)
	sub.Cancel()
	sub.Cancel() // idempotent

	_, ok := <-sub.C
	assert.False(t, ok)

	fresh := m.Subscribe(1)
	defer fresh.Cancel()
	require.NoError(t, m.Transition(Recording))
	select {
	case ev := <-fresh.C:
		assert.Equal(t, Recording, ev.State)
	case <-time.After(time.Second):
		t.Fatal("fresh subscriber missed the event")
	}
}
