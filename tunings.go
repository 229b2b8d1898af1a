package avespeed

import "time"

// Tunings groups the timing parameters of the playback engine. The
// continuity band and the chunk sleep fraction are empirical values: they
// trade audible chunk restarts against drift from the video position and
// can be adjusted freely.
type Tunings struct {
	VideoSleepSlice    time.Duration // max sleep between stop checks in the video driver
	AudioPollInterval  time.Duration // sleep slice of the audio driver
	ChunkDuration      time.Duration // source audio covered by one chunk
	ContinuityBand     time.Duration // max distance to reuse the previous chunk end
	ChunkSleepFraction float64       // portion of a stretched chunk slept before the next one
	StopTimeout        time.Duration // bounded join for pause, speed change and close
	SeekStopTimeout    time.Duration // bounded join when seeking while playing
	SpeedSettleDelay   time.Duration // delay before restarting after a speed change
	ResizeDebounce     time.Duration // min interval between resize triggered redraws
	SkipSeconds        float64       // default jump of Player.Skip
	StretchQuality     string        // see QualityBest and friends
}

// DefaultTunings returns the tunings used when none are configured.
func DefaultTunings() Tunings {
	return Tunings{
		VideoSleepSlice:    10 * time.Millisecond,
		AudioPollInterval:  100 * time.Millisecond,
		ChunkDuration:      time.Second,
		ContinuityBand:     200 * time.Millisecond,
		ChunkSleepFraction: 0.9,
		StopTimeout:        time.Second,
		SeekStopTimeout:    500 * time.Millisecond,
		SpeedSettleDelay:   200 * time.Millisecond,
		ResizeDebounce:     100 * time.Millisecond,
		SkipSeconds:        10,
		StretchQuality:     QualityFastest,
	}
}
