package sidecar

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/murmurapp/sidecar/helper"
	"github.com/murmurapp/sidecar/proto"
	"github.com/murmurapp/sidecar/state"
)

// Notification methods emitted by the sidecar without a prior request.
const (
	NotifyModelReady        = "asr.model_ready"
	NotifyModelLoadProgress = "asr.model_load_progress"
	NotifyTranscription     = "asr.transcription"
	NotifyAudioLevel        = "audio.level"
	NotifyFatal             = "system.fatal"
)

// StartRefusedError reports why a recording could not start.
type StartRefusedError struct {
	Decision state.StartDecision
}

func (e *StartRefusedError) Error() string {
	return fmt.Sprintf("cannot start recording: %s", e.Decision)
}

// Driver applies sidecar call outcomes and notifications to the lifecycle
// machine, so the recorded state never drifts from what the worker is
// actually doing: transitions happen only after the sidecar confirmed the
// corresponding operation.
type Driver struct {
	client  *Client
	machine *state.Machine
	log     logrus.FieldLogger
}

// NewDriver wires a client to a machine. A nil log falls back to the
// standard logger.
func NewDriver(client *Client, machine *state.Machine, log logrus.FieldLogger) *Driver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Driver{client: client, machine: machine, log: log}
}

// Run consumes sidecar notifications until the connection closes, applying
// worker-driven transitions. It is meant to run on its own goroutine; it
// returns once the client is done.
func (d *Driver) Run() {
	sub := d.client.Notifications(16)
	defer sub.Cancel()
	for n := range sub.C {
		d.apply(n)
	}
	d.machine.Fault("sidecar disconnected")
}

func (d *Driver) apply(n proto.Notification) {
	switch n.Method {
	case NotifyModelReady:
		if err := d.machine.Transition(state.Idle); err != nil {
			d.log.WithError(err).Warn("model ready in unexpected state")
		}
	case NotifyTranscription:
		if err := d.machine.Transition(state.Idle); err != nil {
			d.log.WithError(err).Warn("transcription finished in unexpected state")
		}
	case NotifyFatal:
		detail := "sidecar fault"
		if raw, ok := helper.ObjectField(n.Params, "message"); ok {
			if s, ok := helper.Raw2String(raw); ok && s != "" {
				detail = s
			}
		}
		d.machine.Fault(detail)
	case NotifyModelLoadProgress, NotifyAudioLevel:
		// Progress and meter levels are for the UI; no lifecycle meaning.
	default:
		d.log.WithField("method", n.Method).Debug("ignoring notification")
	}
}

// Initialize asks the sidecar to load (and on first run download) the
// model. The machine sits in LoadingModel for the duration; on a timeout
// the worker keeps going and the later model-ready notification recovers
// the state.
func (d *Driver) Initialize(params interface{}) error {
	if err := d.machine.Transition(state.LoadingModel); err != nil {
		return err
	}
	if _, err := d.client.Call(MethodInitialize, params); err != nil {
		d.machine.Fault(err.Error())
		return err
	}
	return d.machine.Transition(state.Idle)
}

// StartRecording begins capture. The gating decision is surfaced as
// *StartRefusedError without touching the sidecar; the transition happens
// only once the sidecar confirmed it is recording.
func (d *Driver) StartRecording() error {
	if decision := d.machine.CanStartRecording(); decision != state.StartPermitted {
		return &StartRefusedError{Decision: decision}
	}
	if _, err := d.client.Call(MethodStartRecording, nil); err != nil {
		return err
	}
	return d.machine.Transition(state.Recording)
}

// StopRecording ends capture and leaves the machine in Transcribing; the
// transcription notification brings it back to Idle.
func (d *Driver) StopRecording() error {
	if _, err := d.client.Call(MethodStopRecording, nil); err != nil {
		return err
	}
	return d.machine.Transition(state.Transcribing)
}

// CancelRecording discards the in-flight capture.
func (d *Driver) CancelRecording() error {
	if _, err := d.client.Call(MethodCancelRecording, nil); err != nil {
		return err
	}
	return d.machine.Transition(state.Idle)
}
