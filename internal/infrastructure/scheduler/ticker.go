package scheduler

import (
	"context"
	"sync"
	"time"

	"FeedIngestor/internal/ports"
)

const defaultInterval = time.Hour

// TickerScheduler fires the job once on start and then every interval.
type TickerScheduler struct {
	interval time.Duration
	loc      *time.Location

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*TickerScheduler)(nil)

// NewTickerScheduler builds a scheduler; trigger times are reported in loc.
func NewTickerScheduler(interval time.Duration, loc *time.Location) *TickerScheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TickerScheduler{interval: interval, loc: loc}
}

// Start begins ticking. Calling it again while running is a no-op.
func (s *TickerScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		job(time.Now().In(s.loc))
		for {
			select {
			case t := <-ticker.C:
				job(t.In(s.loc))
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine and waits for it, or for ctx.
func (s *TickerScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
