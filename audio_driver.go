package avespeed

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// audioDriver feeds the audio output from the position of the clock. It
// only ever reads the clock: video is the single timing authority.
//
// At unity speed the whole remaining buffer is handed to the output in one
// request. At any other speed the buffer is consumed in chunks that are
// time-stretched one by one, and the start of each chunk is recomputed
// from the clock so the audio keeps re-locking to the video position.
type audioDriver struct {
	clock   *Clock
	buf     AudioBuffer
	out     AudioOutput
	speed   float64
	tunings Tunings
	guard   epochGuard

	onDeviceBusy func(error)
}

func (d *audioDriver) run(ctx context.Context) error {
	defer func() {
		// a stale driver must not silence the output of its successor
		if d.guard.alive() {
			d.out.Stop()
		}
	}()

	if d.speed == 1.0 {
		return d.runUnity(ctx)
	}
	return d.runChunked(ctx)
}

func (d *audioDriver) runUnity(ctx context.Context) error {
	start := d.startSample()
	frames := d.buf.Frames()
	if start >= frames {
		return nil
	}
	if err := d.play(d.buf.Slice(start, frames)); err != nil {
		return err
	}

	for {
		if !d.sleep(ctx, d.tunings.AudioPollInterval) {
			return nil
		}
		if !d.out.Active() {
			return nil
		}
	}
}

func (d *audioDriver) runChunked(ctx context.Context) error {
	rate := d.buf.SampleRate
	frames := d.buf.Frames()
	chunkFrames := max(1, int(d.tunings.ChunkDuration.Seconds()*float64(rate)))
	band := d.tunings.ContinuityBand.Seconds() * float64(rate)

	var lastEnd int
	for ctx.Err() == nil && d.guard.alive() {
		start := chunkStart(d.startSample(), lastEnd, band)
		if start >= frames {
			return nil
		}
		end := min(start+chunkFrames, frames)
		chunk := d.buf.Slice(start, end)
		if chunk.Frames() == 0 {
			return nil
		}

		stretched, err := Stretch(chunk, d.speed, d.tunings.StretchQuality)
		if err != nil {
			pkgLogger.Printf("WARNING: failed to stretch audio chunk [%d, %d): %s", start, end, err)
			stretched = chunk
		}
		if err := d.play(stretched); err != nil {
			return err
		}
		lastEnd = end

		// wake up a bit before the chunk runs out, so the next one can be
		// prepared while this one is still audible
		wait := time.Duration(float64(stretched.Duration()) * d.tunings.ChunkSleepFraction)
		intervals := max(1, int(wait/d.tunings.AudioPollInterval))
		for range intervals {
			if !d.sleep(ctx, d.tunings.AudioPollInterval) {
				return nil
			}
		}
	}
	return nil
}

// startSample returns the sample frame matching the current clock position.
func (d *audioDriver) startSample() int {
	return samplePosition(d.clock.Get(), d.clock.FPS(), d.buf.SampleRate)
}

func (d *audioDriver) play(buf AudioBuffer) error {
	if !d.guard.alive() {
		return nil
	}
	err := d.out.Play(buf)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrDeviceBusy) {
		err = fmt.Errorf("%w: %w", ErrDeviceBusy, err)
	}
	if d.onDeviceBusy != nil {
		d.onDeviceBusy(err)
	}
	return err
}

func (d *audioDriver) sleep(ctx context.Context, duration time.Duration) bool {
	return sleepUntil(ctx, time.Now().Add(duration), duration, d.guard)
}

// chunkStart applies the continuity heuristic: when the position derived
// from the clock is within band samples of where the previous chunk ended,
// the previous end wins, so clock jitter doesn't cause audible restarts.
func chunkStart(clockStart, lastEnd int, band float64) int {
	if lastEnd > 0 && float64(abs(clockStart-lastEnd)) < band {
		return lastEnd
	}
	return clockStart
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
