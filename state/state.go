// Package state holds the authoritative record of what the recording
// pipeline is doing. All transitions are validated against a fixed table
// and every accepted change is broadcast to subscribers.
package state

import "fmt"

// AppState is the current phase of the recording lifecycle.
type AppState int

const (
	Idle AppState = iota
	LoadingModel
	Recording
	Transcribing
	Error
)

func (s AppState) String() string {
	switch s {
	case Idle:
		return "idle"
	case LoadingModel:
		return "loading_model"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("AppState(%d)", int(s))
	}
}

// transitions is the complete valid-transition table. Self-transitions are
// accepted as no-ops without consulting it, and Fault reaches Error from
// anywhere regardless of it.
var transitions = map[AppState][]AppState{
	Idle:         {LoadingModel, Recording, Error},
	LoadingModel: {Idle, Error},
	Recording:    {Transcribing, Idle, Error},
	Transcribing: {Idle, Error},
	Error:        {Idle, LoadingModel},
}

func allowed(from, to AppState) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError identifies a rejected from/to pair. The machine's
// state is unchanged when it is returned.
type InvalidTransitionError struct {
	From AppState
	To   AppState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// StartDecision classifies whether a recording may start right now.
type StartDecision int

const (
	StartPermitted StartDecision = iota
	StartPaused
	StartModelLoading
	StartAlreadyRecording
	StartStillTranscribing
	StartInErrorState
)

func (d StartDecision) String() string {
	switch d {
	case StartPermitted:
		return "permitted"
	case StartPaused:
		return "paused"
	case StartModelLoading:
		return "model-loading"
	case StartAlreadyRecording:
		return "already-recording"
	case StartStillTranscribing:
		return "still-transcribing"
	case StartInErrorState:
		return "in-error-state"
	default:
		return fmt.Sprintf("StartDecision(%d)", int(d))
	}
}
