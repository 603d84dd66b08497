package sequence

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Sequencer issues the command sequence numbers journaled to the entry
// WAL. Numbers are strictly increasing and survive restarts through Resume.
type Sequencer struct {
	last atomic.Uint64
}

// New starts a sequencer whose first issued number is start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current is the last issued number, 0 before the first.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Resume moves the sequencer to last after a snapshot load or WAL replay.
// Moving backwards would reissue journaled numbers and panics.
func (s *Sequencer) Resume(last uint64) {
	for {
		cur := s.last.Load()
		if last < cur {
			panic(errors.AssertionFailedf("SEQUENCE_REWIND: resume at %d below %d", last, cur))
		}
		if s.last.CompareAndSwap(cur, last) {
			return
		}
	}
}
