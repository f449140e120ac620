package stream

import (
	"sync"
	"time"
)

type pendingFrame struct {
	VideoFrame
	receivedAt time.Time
}

// frameSlot is a single-slot mailbox. Put overwrites an unconsumed frame, so
// the consumer always sees the newest frame and frames are never reordered.
type frameSlot struct {
	mu      sync.Mutex
	cond    *sync.Cond
	frame   *pendingFrame
	dropped uint64
	closed  bool
}

func newFrameSlot() *frameSlot {
	s := &frameSlot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Put stores f and reports whether an older frame was overwritten.
func (s *frameSlot) Put(f *pendingFrame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	overwrote := s.frame != nil
	if overwrote {
		s.dropped++
	}
	s.frame = f
	s.cond.Signal()
	return overwrote
}

// Next blocks until a frame is available. It returns false once the slot is
// closed; a frame still pending at close is discarded.
func (s *frameSlot) Next() (*pendingFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.frame == nil && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return nil, false
	}
	f := s.frame
	s.frame = nil
	return f, true
}

func (s *frameSlot) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *frameSlot) Close() {
	s.mu.Lock()
	s.closed = true
	s.frame = nil
	s.mu.Unlock()
	s.cond.Broadcast()
}
