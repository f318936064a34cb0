package sidecar

import "time"

// Method names understood by the sidecar. Methods are namespaced by dots;
// the client treats them as opaque beyond timeout lookup.
const (
	MethodPing            = "system.ping"
	MethodStatus          = "system.status"
	MethodListDevices     = "audio.list_devices"
	MethodMeterStart      = "audio.meter_start"
	MethodMeterStop       = "audio.meter_stop"
	MethodInitialize      = "asr.initialize"
	MethodStartRecording  = "asr.start_recording"
	MethodStopRecording   = "asr.stop_recording"
	MethodCancelRecording = "asr.cancel_recording"
	MethodPurgeCache      = "models.purge_cache"
)

// DefaultTimeout applies to methods without an explicit entry.
const DefaultTimeout = 5 * time.Second

// Timeouts maps method names to the maximum time Call waits for a matching
// response. Cheap queries get tight deadlines; first-run initialization may
// download a model, so it gets twenty minutes.
type Timeouts struct {
	def      time.Duration
	byMethod map[string]time.Duration
}

// NewTimeouts builds a policy with the given default and overrides. The
// overrides map is copied.
func NewTimeouts(def time.Duration, overrides map[string]time.Duration) *Timeouts {
	byMethod := make(map[string]time.Duration, len(overrides))
	for m, d := range overrides {
		byMethod[m] = d
	}
	return &Timeouts{def: def, byMethod: byMethod}
}

// DefaultTimeouts is the production policy.
func DefaultTimeouts() *Timeouts {
	return NewTimeouts(DefaultTimeout, map[string]time.Duration{
		MethodPing:            time.Second,
		MethodStatus:          time.Second,
		MethodListDevices:     1500 * time.Millisecond,
		MethodMeterStart:      1500 * time.Millisecond,
		MethodMeterStop:       1500 * time.Millisecond,
		MethodStartRecording:  1500 * time.Millisecond,
		MethodStopRecording:   1500 * time.Millisecond,
		MethodCancelRecording: 1500 * time.Millisecond,
		MethodPurgeCache:      10 * time.Second,
		MethodInitialize:      20 * time.Minute,
	})
}

// Get returns the deadline for method, falling back to the default.
func (t *Timeouts) Get(method string) time.Duration {
	if d, ok := t.byMethod[method]; ok {
		return d
	}
	return t.def
}
