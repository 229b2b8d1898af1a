package avespeed

import (
	"context"
	"time"
)

// videoDriver advances the clock at fps*speed frames per second and asks
// the control context to redraw after every tick. It never decodes.
type videoDriver struct {
	clock  *Clock
	speed  float64
	slice  time.Duration
	guard  epochGuard
	render func() // posts a render request, must not block
	onEnd  func() // called once when the clock can't advance anymore
}

func (d *videoDriver) run(ctx context.Context) error {
	frameTime := time.Duration(float64(time.Second) / d.clock.FPS() / d.speed)

	// deadlines accumulate from the previous one instead of time.Now(), so
	// the overshoot of each sleep doesn't add up into clock drift
	deadline := time.Now()
	for {
		deadline = deadline.Add(frameTime)
		if now := time.Now(); now.Sub(deadline) > frameTime {
			// fell behind by more than a frame, don't catch up in a burst
			deadline = now
		}
		if !sleepUntil(ctx, deadline, d.slice, d.guard) || !d.tick() {
			return nil
		}
	}
}

// tick advances the clock by one frame and requests a redraw. It returns
// false when the driver must exit: it was superseded or the media ended.
func (d *videoDriver) tick() bool {
	if !d.guard.alive() {
		return false
	}
	if !d.clock.Advance() {
		d.onEnd()
		return false
	}
	d.render()
	return true
}
