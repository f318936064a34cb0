package sidecar

import (
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurapp/sidecar/state"
)

func newTestDriver(t *testing.T, handle func(f *fakeSidecar, req wireRequest)) (*Driver, *state.Machine, *fakeSidecar) {
	t.Helper()
	client, f := newFake(t, handle)
	log := logrus.New()
	log.SetOutput(io.Discard)
	machine := state.NewMachine(state.WithLogger(log))
	driver := NewDriver(client, machine, log)
	go driver.Run()
	return driver, machine, f
}

func awaitState(t *testing.T, m *state.Machine, want state.AppState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.Snapshot().State == want
	}, time.Second, 5*time.Millisecond, "machine never reached %s", want)
}

func TestDriverInitialize(t *testing.T) {
	driver, machine, _ := newTestDriver(t, echoHandler)

	sub := machine.Subscribe(8)
	defer sub.Cancel()

	require.NoError(t, driver.Initialize(nil))
	assert.Equal(t, state.Idle, machine.Snapshot().State)

	first := <-sub.C
	assert.Equal(t, state.LoadingModel, first.State, "machine sits in LoadingModel during the call")
}

func TestDriverInitializeFailureFaults(t *testing.T) {
	driver, machine, _ := newTestDriver(t, func(f *fakeSidecar, req wireRequest) {
		f.sendError(req.ID, -32000, "model archive corrupt", `{"kind":"E_MODEL_CHECKSUM"}`)
	})

	err := driver.Initialize(nil)
	require.Error(t, err)

	snap := machine.Snapshot()
	assert.Equal(t, state.Error, snap.State)
	assert.Contains(t, snap.ErrorDetail, "model archive corrupt")
}

func TestDriverRecordingLifecycle(t *testing.T) {
	driver, machine, f := newTestDriver(t, echoHandler)

	require.NoError(t, driver.StartRecording())
	assert.Equal(t, state.Recording, machine.Snapshot().State)

	require.NoError(t, driver.StopRecording())
	assert.Equal(t, state.Transcribing, machine.Snapshot().State)

	// The worker finishes transcription asynchronously.
	f.sendLine(`{"jsonrpc":"2.0","method":"asr.transcription","params":{"text":"hello world"}}`)
	awaitState(t, machine, state.Idle)
}

func TestDriverCancelRecording(t *testing.T) {
	driver, machine, _ := newTestDriver(t, echoHandler)

	require.NoError(t, driver.StartRecording())
	require.NoError(t, driver.CancelRecording())
	assert.Equal(t, state.Idle, machine.Snapshot().State)
}

func TestDriverStartRefusedWithoutTouchingWorker(t *testing.T) {
	var requests atomic.Int64
	driver, machine, _ := newTestDriver(t, func(f *fakeSidecar, req wireRequest) {
		requests.Add(1)
		echoHandler(f, req)
	})

	machine.SetEnabled(false)
	err := driver.StartRecording()
	var refused *StartRefusedError
	require.ErrorAs(t, err, &refused)
	assert.Equal(t, state.StartPaused, refused.Decision)
	assert.Equal(t, int64(0), requests.Load(), "gating must short-circuit before the wire")

	machine.SetEnabled(true)
	require.NoError(t, driver.StartRecording())
}

func TestDriverWorkerRefusalLeavesStateAlone(t *testing.T) {
	driver, machine, _ := newTestDriver(t, func(f *fakeSidecar, req wireRequest) {
		f.sendError(req.ID, -32000, "not initialized", `{"kind":"E_NOT_INITIALIZED"}`)
	})

	err := driver.StartRecording()
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, state.Idle, machine.Snapshot().State, "unconfirmed start must not transition")
}

func TestDriverFatalNotificationFaults(t *testing.T) {
	_, machine, f := newTestDriver(t, echoHandler)

	f.sendLine(`{"jsonrpc":"2.0","method":"system.fatal","params":{"message":"gpu wedged"}}`)

	awaitState(t, machine, state.Error)
	assert.Equal(t, "gpu wedged", machine.Snapshot().ErrorDetail)
}

func TestDriverDisconnectFaults(t *testing.T) {
	_, machine, f := newTestDriver(t, echoHandler)

	require.NoError(t, f.conn.Close())
	awaitState(t, machine, state.Error)
	assert.Equal(t, "sidecar disconnected", machine.Snapshot().ErrorDetail)
}
