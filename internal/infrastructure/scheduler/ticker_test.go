package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerRunsImmediatelyAndRepeats(t *testing.T) {
	t.Parallel()

	s := NewTickerScheduler(10*time.Millisecond, time.UTC)
	var runs int32
	if err := s.Start(context.Background(), func(time.Time) { atomic.AddInt32(&runs, 1) }); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&runs) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected at least 3 runs, got %d", atomic.LoadInt32(&runs))
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	after := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt32(&runs); got != after {
		t.Fatalf("job ran after stop: %d -> %d", after, got)
	}
}

func TestTickerStopWithoutStart(t *testing.T) {
	t.Parallel()

	if err := NewTickerScheduler(0, nil).Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
}
