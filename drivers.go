package avespeed

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// driverSet owns the goroutines started for one Playing period. They share
// a cancellable context and an epoch: whenever a new set is started the
// epoch moves on, so a driver that outlived a timed out stop notices it
// is stale at its next sleep slice and exits without touching the device.
type driverSet struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group
	done   chan struct{}
	err    error // valid after done is closed
}

type driverFunc func(ctx context.Context) error

// newDriverSet creates an idle set. The cancel function exists before any
// driver runs, so drivers can be handed callbacks that cancel their peers.
func newDriverSet() *driverSet {
	ctx, cancel := context.WithCancel(context.Background())
	return &driverSet{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// start launches the given drivers. It must be called exactly once.
func (s *driverSet) start(drivers ...driverFunc) {
	for _, drive := range drivers {
		s.group.Go(func() error { return drive(s.ctx) })
	}
	go func() {
		s.err = s.group.Wait()
		close(s.done)
	}()
}

// stop signals every driver and waits for them up to timeout. On timeout it
// returns ErrDriverStopTimeout and the drivers are left to exit on their own.
// Otherwise it returns the first error reported by a driver, if any.
func (s *driverSet) stop(timeout time.Duration) error {
	s.cancel()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.done:
		return s.err
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrDriverStopTimeout, timeout)
	}
}

// running reports whether any driver goroutine is still alive.
func (s *driverSet) running() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// epochGuard tells a driver whether it still belongs to the current
// Playing period.
type epochGuard struct {
	epoch *atomic.Uint64
	mine  uint64
}

func (g epochGuard) alive() bool { return g.epoch.Load() == g.mine }

// sleepUntil blocks until deadline, waking at least every slice to check
// for cancellation. It returns false if the driver must exit.
func sleepUntil(ctx context.Context, deadline time.Time, slice time.Duration, guard epochGuard) bool {
	for {
		if ctx.Err() != nil || !guard.alive() {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		timer := time.NewTimer(min(remaining, slice))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}
