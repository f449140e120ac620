package stream

import (
	"testing"
	"time"
)

func frameAt(ts int64) *pendingFrame {
	return &pendingFrame{VideoFrame: VideoFrame{Timestamp: ts}, receivedAt: time.Now()}
}

func TestFrameSlot_Overwrite(t *testing.T) {
	s := newFrameSlot()

	if s.Put(frameAt(1)) {
		t.Error("first put should not overwrite")
	}
	if !s.Put(frameAt(2)) {
		t.Error("second put should overwrite")
	}
	if !s.Put(frameAt(3)) {
		t.Error("third put should overwrite")
	}

	f, ok := s.Next()
	if !ok || f.Timestamp != 3 {
		t.Fatalf("expected newest frame 3, got %+v (ok=%v)", f, ok)
	}
	if s.Dropped() != 2 {
		t.Errorf("expected 2 dropped, got %d", s.Dropped())
	}
}

func TestFrameSlot_NextBlocksUntilPut(t *testing.T) {
	s := newFrameSlot()
	got := make(chan int64, 1)

	go func() {
		f, ok := s.Next()
		if ok {
			got <- f.Timestamp
		}
	}()

	select {
	case <-got:
		t.Fatal("Next returned before any frame was put")
	case <-time.After(20 * time.Millisecond):
	}

	s.Put(frameAt(7))
	select {
	case ts := <-got:
		if ts != 7 {
			t.Errorf("expected 7, got %d", ts)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not wake up")
	}
}

func TestFrameSlot_PreservesOrder(t *testing.T) {
	s := newFrameSlot()
	done := make(chan []int64)

	go func() {
		var seen []int64
		for {
			f, ok := s.Next()
			if !ok {
				done <- seen
				return
			}
			seen = append(seen, f.Timestamp)
		}
	}()

	for i := int64(1); i <= 200; i++ {
		s.Put(frameAt(i))
		if i%10 == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	time.Sleep(10 * time.Millisecond)
	s.Close()

	seen := <-done
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("frames reordered: %d after %d", seen[i], seen[i-1])
		}
	}
}

func TestFrameSlot_Close(t *testing.T) {
	s := newFrameSlot()
	s.Put(frameAt(1))
	s.Close()

	if _, ok := s.Next(); ok {
		t.Error("Next after Close should return false")
	}
	if s.Put(frameAt(2)) {
		t.Error("Put after Close should be ignored")
	}
	s.Close()
}
