// Package sequence provides the monotonic counter used to tag broadcast
// event payloads, so subscribers can detect gaps and reordering.
package sequence

import "sync/atomic"

// Sequence hands out strictly increasing numbers starting at 1. The zero
// value is ready to use and safe for concurrent callers.
type Sequence struct {
	n atomic.Uint64
}

// Next reserves and returns the next number.
func (s *Sequence) Next() uint64 {
	return s.n.Add(1)
}

// Current returns the most recently handed out number, 0 if none yet.
func (s *Sequence) Current() uint64 {
	return s.n.Load()
}
