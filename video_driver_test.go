package avespeed

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func runVideoDriver(t *testing.T, clock *Clock, speed float64) (cancel func() time.Duration, renders, ends *atomic.Int32) {
	t.Helper()
	guard, _ := testGuard()
	renders, ends = &atomic.Int32{}, &atomic.Int32{}
	driver := &videoDriver{
		clock:  clock,
		speed:  speed,
		slice:  10 * time.Millisecond,
		guard:  guard,
		render: func() { renders.Add(1) },
		onEnd:  func() { ends.Add(1) },
	}
	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := driver.run(ctx); err != nil {
			t.Errorf("video driver: %v", err)
		}
	}()
	return func() time.Duration {
		start := time.Now()
		cancelCtx()
		<-done
		return time.Since(start)
	}, renders, ends
}

func TestVideoDriverRate(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		want  int
	}{
		{"unity", 1.0, 50},
		{"double", 2.0, 100},
		{"half", 0.5, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewClock(100, 10000)
			stop, renders, _ := runVideoDriver(t, clock, tt.speed)
			time.Sleep(500 * time.Millisecond)
			stop()

			if got := clock.Get(); !within(got, tt.want, 4) {
				t.Errorf("clock advanced %d frames in 500ms at %vx, want about %d", got, tt.speed, tt.want)
			}
			if int(renders.Load()) != clock.Get() {
				t.Errorf("%d render requests for %d ticks", renders.Load(), clock.Get())
			}
		})
	}
}

func TestVideoDriverStopsWithinSlice(t *testing.T) {
	clock := NewClock(1, 100) // one tick per second
	stop, _, _ := runVideoDriver(t, clock, 1.0)
	time.Sleep(30 * time.Millisecond)
	if elapsed := stop(); elapsed > 100*time.Millisecond {
		t.Errorf("driver took %s to honor cancellation", elapsed)
	}
}

func TestVideoDriverSignalsEnd(t *testing.T) {
	clock := NewClock(100, 5)
	stop, _, ends := runVideoDriver(t, clock, 1.0)
	waitFor(t, time.Second, "end of media", func() bool { return ends.Load() > 0 })
	stop()

	if clock.Get() != 4 {
		t.Errorf("clock = %d at end, want 4", clock.Get())
	}
	if ends.Load() != 1 {
		t.Errorf("end signaled %d times", ends.Load())
	}
}

func TestVideoDriverTickSuperseded(t *testing.T) {
	tests := []struct {
		name  string
		start int
	}{
		{"mid media", 5},
		{"last frame", 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard, epoch := testGuard()
			clock := NewClock(30, 10)
			clock.Set(tt.start)
			var renders, ends int
			driver := &videoDriver{
				clock:  clock,
				speed:  1,
				slice:  10 * time.Millisecond,
				guard:  guard,
				render: func() { renders++ },
				onEnd:  func() { ends++ },
			}
			epoch.Add(1) // a newer driver took over

			if driver.tick() {
				t.Error("superseded driver kept running")
			}
			if clock.Get() != tt.start || renders != 0 || ends != 0 {
				t.Errorf("superseded driver acted: frame %d, %d renders, %d ends", clock.Get(), renders, ends)
			}
		})
	}
}
