package proto

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// ID is a request identifier: an unsigned integer or a string. IDs compare
// with == (usable as map keys) and round-trip through JSON byte-for-byte.
// The zero value is the number 0.
type ID struct {
	str      string
	num      uint64
	isString bool
}

// NumberID returns a numeric id.
func NumberID(n uint64) ID { return ID{num: n} }

// StringID returns a string id.
func StringID(s string) ID { return ID{str: s, isString: true} }

// IsString reports whether the id is the string flavor.
func (id ID) IsString() bool { return id.isString }

// Number returns the numeric value; 0 for string ids.
func (id ID) Number() uint64 {
	if id.isString {
		return 0
	}
	return id.num
}

// String renders the id for logs.
func (id ID) String() string {
	if id.isString {
		return id.str
	}
	return strconv.FormatUint(id.num, 10)
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.isString {
		return json.Marshal(id.str)
	}
	return []byte(strconv.FormatUint(id.num, 10)), nil
}

// UnmarshalJSON implements json.Unmarshaler. Anything other than a string
// or a non-negative integer is rejected.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return errors.New("empty request id")
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return errors.Wrap(err, "parse string id")
		}
		*id = ID{str: s, isString: true}
		return nil
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return errors.Errorf("request id %q is not a string or unsigned integer", b)
	}
	*id = ID{num: n}
	return nil
}
