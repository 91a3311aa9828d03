package util

import "sync/atomic"

// Sequencer hands out strictly monotonic sequence numbers. It is safe for
// concurrent use.
type Sequencer struct {
	last atomic.Uint64
}

// NewSequencer starts after `start`; the first Next returns start+1.
func NewSequencer(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 { return s.last.Add(1) }

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 { return s.last.Load() }
