package library

import "sync/atomic"

// Sequence hands out strictly increasing ids. It is safe for concurrent use;
// each call to Next returns a value no other call will see.
type Sequence struct {
	n atomic.Int64
}

// NewSequenceAt creates a sequence whose first Next returns start+1.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.n.Store(start)
	return s
}

// Next increments the sequence and returns the new value.
func (s *Sequence) Next() int64 { return s.n.Add(1) }

// current returns the last value handed out without incrementing.
func (s *Sequence) current() int64 { return s.n.Load() }
