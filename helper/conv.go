// Package helper holds small JSON coercion utilities shared by the wire
// packages. All of them tolerate arbitrary input and report failure through
// the ok result instead of erroring.
package helper

import (
	"bytes"
	"encoding/json"
)

// IsNull reports whether v is the JSON null literal.
func IsNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// Raw2String unpacks a JSON string value. null is not a string; unmarshal
// alone would accept it as a no-op.
func Raw2String(v json.RawMessage) (rv string, ok bool) {
	if len(v) == 0 || IsNull(v) {
		return
	}
	if err := json.Unmarshal(v, &rv); err != nil {
		return "", false
	}
	return rv, true
}

// Raw2Uint64 unpacks a JSON non-negative integer; null is rejected.
func Raw2Uint64(v json.RawMessage) (rv uint64, ok bool) {
	if len(v) == 0 || IsNull(v) {
		return
	}
	if err := json.Unmarshal(v, &rv); err != nil {
		return 0, false
	}
	return rv, true
}

// Raw2Object unpacks a JSON object into its raw members.
func Raw2Object(v json.RawMessage) (rv map[string]json.RawMessage, ok bool) {
	if len(v) == 0 || IsNull(v) {
		return
	}
	if err := json.Unmarshal(v, &rv); err != nil {
		return nil, false
	}
	return rv, true
}

// ObjectField returns one member of a JSON object. ok is false when v is
// not an object or the member is absent.
func ObjectField(v json.RawMessage, key string) (rv json.RawMessage, ok bool) {
	obj, ok := Raw2Object(v)
	if !ok {
		return nil, false
	}
	rv, ok = obj[key]
	return
}
