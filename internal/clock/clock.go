// Package clock holds the suspension points of long-running loops so tests
// can drive them without sleeping in real time.
package clock

import (
	"context"
	"sync"
	"time"
)

// Sleeper blocks for d or until ctx is done, whichever comes first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Real sleeps on a timer.
type Real struct{}

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fake records requested sleeps and returns immediately. When Limit is
// positive, the sleep after Limit recorded sleeps returns ErrStopped, which
// ends loops under test.
type Fake struct {
	mu     sync.Mutex
	sleeps []time.Duration
	Limit  int
}

var ErrStopped = context.Canceled

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Limit > 0 && len(f.sleeps) >= f.Limit {
		return ErrStopped
	}
	f.sleeps = append(f.sleeps, d)
	return ctx.Err()
}

// Sleeps returns a copy of the recorded durations.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}
