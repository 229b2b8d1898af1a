package avespeed

import "time"

// AudioBuffer holds interleaved float32 PCM samples normalized to [-1, 1].
// Mono buffers have one sample per frame, stereo buffers a left/right pair.
//
// Buffers are treated as immutable once loaded: slicing shares the
// underlying array and no code path writes into a loaded buffer.
type AudioBuffer struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// Frames returns the number of sample frames (samples per channel).
func (b AudioBuffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length at the buffer's own sample rate.
func (b AudioBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Slice returns the frames in [start, end), clamped to the buffer bounds.
func (b AudioBuffer) Slice(start, end int) AudioBuffer {
	frames := b.Frames()
	start = max(0, min(start, frames))
	end = max(start, min(end, frames))
	return AudioBuffer{
		Samples:    b.Samples[start*b.Channels : end*b.Channels],
		Channels:   b.Channels,
		SampleRate: b.SampleRate,
	}
}

// Channel returns a de-interleaved copy of the given channel.
func (b AudioBuffer) Channel(ch int) []float32 {
	frames := b.Frames()
	out := make([]float32, frames)
	for i := range frames {
		out[i] = b.Samples[i*b.Channels+ch]
	}
	return out
}

// interleave builds a buffer out of per-channel sample slices of equal length.
func interleave(channels [][]float32, sampleRate int) AudioBuffer {
	numChans := len(channels)
	if numChans == 0 {
		return AudioBuffer{SampleRate: sampleRate}
	}
	frames := len(channels[0])
	samples := make([]float32, frames*numChans)
	for ch, data := range channels {
		for i, s := range data {
			samples[i*numChans+ch] = s
		}
	}
	return AudioBuffer{Samples: samples, Channels: numChans, SampleRate: sampleRate}
}

// samplePosition converts a frame index of the video clock into the
// audio sample frame that plays at the same presentation time.
func samplePosition(frame int, fps float64, sampleRate int) int {
	if fps <= 0 {
		return 0
	}
	return int(float64(frame)/fps*float64(sampleRate) + 0.5)
}
