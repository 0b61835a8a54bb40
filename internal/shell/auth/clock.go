package auth

import (
	"context"
	"sync/atomic"
	"time"
)

// Clock abstracts waiting between poll ticks so tests can run without
// wall-clock delays.
type Clock interface {
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock waits on real timers.
type SystemClock struct{}

// Sleep implements Clock. The timer is always stopped before returning.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CancelFlag is a cooperative cancellation token. Setting it does not
// interrupt a request in flight; pollers check it at tick boundaries.
type CancelFlag struct {
	cancelled atomic.Bool
}

// Cancel requests cancellation.
func (f *CancelFlag) Cancel() {
	f.cancelled.Store(true)
}

// Reset clears a previous cancellation request.
func (f *CancelFlag) Reset() {
	f.cancelled.Store(false)
}

// Cancelled reports whether cancellation was requested. A nil flag is never cancelled.
func (f *CancelFlag) Cancelled() bool {
	if f == nil {
		return false
	}
	return f.cancelled.Load()
}
