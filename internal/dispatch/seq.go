package dispatch

import (
	"strconv"
	"sync/atomic"
)

// Seq is a delivery sequence number.
type Seq uint32

// NoSeq is the reserved "no sequence" value. It is never issued.
const NoSeq Seq = 0

// String returns the decimal sequence number.
func (s Seq) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// Sequencer issues sequence numbers. The zero value is ready to use and
// issues 1 first. It is safe for concurrent use.
type Sequencer struct {
	last atomic.Uint32
}

// NewSequencerAt returns a sequencer whose next value follows last.
func NewSequencerAt(last Seq) *Sequencer {
	s := &Sequencer{}
	s.last.Store(uint32(last))
	return s
}

// Next returns the next sequence number, skipping NoSeq on wraparound.
func (s *Sequencer) Next() Seq {
	for {
		if n := s.last.Add(1); n != uint32(NoSeq) {
			return Seq(n)
		}
	}
}

var processSequencer Sequencer

// NextSeq returns the next process-wide sequence number.
func NextSeq() Seq {
	return processSequencer.Next()
}
