// Package errkind defines the stable error vocabulary shared with the
// speech-recognition sidecar. Kinds travel on the wire as E_-prefixed
// strings inside the error data of a JSON-RPC response; the numeric
// JSON-RPC code is transport plumbing and nothing here depends on it.
package errkind

// Kind is one stable error category. The zero value is Internal so that an
// unclassified failure degrades to the log-only bucket.
type Kind int

const (
	Internal Kind = iota
	MicPermission
	MicInUse
	DeviceNotFound
	DeviceDisconnected
	AudioBackend
	AlreadyRecording
	NotRecording
	NotInitialized
	AlreadyInitialized
	ModelNotFound
	ModelLoad
	ModelDownload
	ModelChecksum
	DiskFull
	CacheWrite
	Transcription
	EmptyAudio
	AudioTooLong
	SampleRate
	GpuInit
	OutOfMemory
	Timeout
	Canceled
	UnsupportedLanguage
	ConfigInvalid
	Parse
	MethodNotFound
	InvalidParams
)

var wire = map[Kind]string{
	Internal:            "E_INTERNAL",
	MicPermission:       "E_MIC_PERMISSION",
	MicInUse:            "E_MIC_IN_USE",
	DeviceNotFound:      "E_DEVICE_NOT_FOUND",
	DeviceDisconnected:  "E_DEVICE_DISCONNECTED",
	AudioBackend:        "E_AUDIO_BACKEND",
	AlreadyRecording:    "E_ALREADY_RECORDING",
	NotRecording:        "E_NOT_RECORDING",
	NotInitialized:      "E_NOT_INITIALIZED",
	AlreadyInitialized:  "E_ALREADY_INITIALIZED",
	ModelNotFound:       "E_MODEL_NOT_FOUND",
	ModelLoad:           "E_MODEL_LOAD",
	ModelDownload:       "E_MODEL_DOWNLOAD",
	ModelChecksum:       "E_MODEL_CHECKSUM",
	DiskFull:            "E_DISK_FULL",
	CacheWrite:          "E_CACHE_WRITE",
	Transcription:       "E_TRANSCRIPTION",
	EmptyAudio:          "E_EMPTY_AUDIO",
	AudioTooLong:        "E_AUDIO_TOO_LONG",
	SampleRate:          "E_SAMPLE_RATE",
	GpuInit:             "E_GPU_INIT",
	OutOfMemory:         "E_OUT_OF_MEMORY",
	Timeout:             "E_TIMEOUT",
	Canceled:            "E_CANCELED",
	UnsupportedLanguage: "E_UNSUPPORTED_LANGUAGE",
	ConfigInvalid:       "E_CONFIG_INVALID",
	Parse:               "E_PARSE",
	MethodNotFound:      "E_METHOD_NOT_FOUND",
	InvalidParams:       "E_INVALID_PARAMS",
}

// aliases are historical wire spellings still emitted by older sidecars.
var aliases = map[string]Kind{
	"E_TRANSCRIBE": Transcription,
}

var kinds map[string]Kind

func init() {
	kinds = make(map[string]Kind, len(wire)+len(aliases))
	for k, s := range wire {
		kinds[s] = k
	}
	for s, k := range aliases {
		kinds[s] = k
	}
}

// Wire returns the stable wire spelling of k.
func (k Kind) Wire() string {
	s, ok := wire[k]
	if !ok {
		return wire[Internal]
	}
	return s
}

// String is the wire spelling; kinds log as E_* identifiers.
func (k Kind) String() string { return k.Wire() }

// FromWire resolves a wire spelling, including historical aliases. Unknown
// spellings resolve to no kind rather than an error.
func FromWire(s string) (Kind, bool) {
	k, ok := kinds[s]
	return k, ok
}

// All lists every kind in the taxonomy, in declaration order.
func All() []Kind {
	out := make([]Kind, 0, len(wire))
	for k := Internal; int(k) < len(wire); k++ {
		out = append(out, k)
	}
	return out
}

var recoverable = map[Kind]bool{
	MicInUse:           true,
	DeviceDisconnected: true,
	NotInitialized:     true,
	ModelLoad:          true,
	ModelDownload:      true,
	ModelChecksum:      true,
	Transcription:      true,
	GpuInit:            true,
	OutOfMemory:        true,
	Timeout:            true,
}

var needsUserAction = map[Kind]bool{
	MicPermission:       true,
	DeviceNotFound:      true,
	ModelNotFound:       true,
	DiskFull:            true,
	AudioTooLong:        true,
	UnsupportedLanguage: true,
	ConfigInvalid:       true,
}

var internalOnly = map[Kind]bool{
	AudioBackend:   true,
	CacheWrite:     true,
	SampleRate:     true,
	Parse:          true,
	MethodNotFound: true,
	InvalidParams:  true,
	Internal:       true,
}

// IsRecoverable reports whether retrying the operation may succeed without
// any user intervention.
func (k Kind) IsRecoverable() bool { return recoverable[k] }

// NeedsUserAction reports whether the failure requires a settings or
// permission change before a retry can help.
func (k Kind) NeedsUserAction() bool { return needsUserAction[k] }

// IsInternal reports whether the failure is log-only and should not be
// shown to the user.
func (k Kind) IsInternal() bool { return internalOnly[k] }
