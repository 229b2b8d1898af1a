package avespeed

import (
	"sync/atomic"
	"time"
)

// Clock is the authoritative playback position, expressed as a frame
// index. The video driver is its only writer while playing; the audio
// driver and the control context read it concurrently.
//
// The zero value is not usable, create clocks with [NewClock]().
type Clock struct {
	current atomic.Int64
	fps     float64
	total   int
}

// NewClock creates a clock positioned at frame 0. A total below 1 is
// treated as a single frame clip.
func NewClock(fps float64, totalFrames int) *Clock {
	if totalFrames < 1 {
		totalFrames = 1
	}
	return &Clock{fps: fps, total: totalFrames}
}

// Get returns the current frame index.
func (c *Clock) Get() int { return int(c.current.Load()) }

// Set moves the clock to the given frame, clamped to [0, TotalFrames()-1],
// and returns the frame actually set.
func (c *Clock) Set(frame int) int {
	frame = c.clamp(frame)
	c.current.Store(int64(frame))
	return frame
}

// Step moves the clock by delta frames, clamped like [Clock.Set]().
func (c *Clock) Step(delta int) int {
	return c.Set(c.Get() + delta)
}

// Advance moves the clock forward by one frame. It returns false, leaving
// the clock untouched, when the last frame had already been reached.
func (c *Clock) Advance() bool {
	for {
		cur := c.current.Load()
		if cur >= int64(c.total-1) {
			return false
		}
		if c.current.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// AtEnd reports whether the clock sits on the last frame.
func (c *Clock) AtEnd() bool { return c.Get() >= c.total-1 }

func (c *Clock) FPS() float64     { return c.fps }
func (c *Clock) TotalFrames() int { return c.total }

// Position returns the presentation time of the current frame.
func (c *Clock) Position() time.Duration {
	return frameToDuration(c.Get(), c.fps)
}

// Duration returns the presentation time of the whole clip.
func (c *Clock) Duration() time.Duration {
	return frameToDuration(c.total, c.fps)
}

func (c *Clock) clamp(frame int) int {
	return max(0, min(frame, c.total-1))
}

func frameToDuration(frame int, fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(frame) / fps * float64(time.Second))
}
