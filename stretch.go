package avespeed

import (
	"errors"
	"fmt"
	"math"

	"github.com/dh1tw/gosamplerate"
)

var ErrInvalidStretch = errors.New("stretch factor must be positive and finite")

// Resampler qualities, mapped to libsamplerate converter types. Sinc
// converters are band-limited; "linear" is only meant for slow machines.
const (
	QualityBest    = "best"
	QualityMedium  = "medium"
	QualityFastest = "fastest"
	QualityLinear  = "linear"
)

// ValidQuality reports whether quality is one of the Quality* constants.
func ValidQuality(quality string) bool {
	switch quality {
	case QualityBest, QualityMedium, QualityFastest, QualityLinear:
		return true
	}
	return false
}

func converterType(quality string) int {
	switch quality {
	case QualityBest:
		return gosamplerate.SRC_SINC_BEST_QUALITY
	case QualityMedium:
		return gosamplerate.SRC_SINC_MEDIUM_QUALITY
	case QualityLinear:
		return gosamplerate.SRC_LINEAR
	default:
		return gosamplerate.SRC_SINC_FASTEST
	}
}

// Stretch resamples seg so that it lasts 1/speed of its original duration
// at the same sample rate. The result has exactly floor(frames/speed)
// frames. Channels are resampled one at a time and never mixed.
//
// Speed 1 is not special-cased here: callers that want to skip the work
// (like the audio driver in unity mode) must do so themselves.
func Stretch(seg AudioBuffer, speed float64, quality string) (AudioBuffer, error) {
	if speed <= 0 || math.IsInf(speed, 0) || math.IsNaN(speed) {
		return AudioBuffer{}, fmt.Errorf("%w: %v", ErrInvalidStretch, speed)
	}
	outFrames := int(float64(seg.Frames()) / speed)
	return resampleChannels(seg, 1/speed, outFrames, seg.SampleRate, quality)
}

// Resample converts buf to the given sample rate, keeping its duration.
func Resample(buf AudioBuffer, toRate int, quality string) (AudioBuffer, error) {
	if toRate <= 0 || buf.SampleRate <= 0 {
		return AudioBuffer{}, fmt.Errorf("%w: %d -> %d Hz", ErrInvalidStretch, buf.SampleRate, toRate)
	}
	if toRate == buf.SampleRate {
		return buf, nil
	}
	ratio := float64(toRate) / float64(buf.SampleRate)
	outFrames := int(float64(buf.Frames()) * ratio)
	return resampleChannels(buf, ratio, outFrames, toRate, quality)
}

func resampleChannels(buf AudioBuffer, ratio float64, outFrames, outRate int, quality string) (AudioBuffer, error) {
	if buf.Channels <= 0 {
		return AudioBuffer{SampleRate: outRate}, nil
	}
	channels := make([][]float32, buf.Channels)
	for ch := range buf.Channels {
		in := buf.Channel(ch)
		var out []float32
		if len(in) > 0 && outFrames > 0 {
			var err error
			out, err = gosamplerate.Simple(in, ratio, 1, converterType(quality))
			if err != nil {
				return AudioBuffer{}, fmt.Errorf("resampling channel %d: %w", ch, err)
			}
		}
		channels[ch] = fitLength(out, outFrames)
	}
	return interleave(channels, outRate), nil
}

// libsamplerate may produce a few frames more or less than the exact
// ratio; pad with the last produced sample or truncate.
func fitLength(data []float32, n int) []float32 {
	if len(data) >= n {
		return data[:n]
	}
	out := make([]float32, n)
	copy(out, data)
	if len(data) > 0 {
		last := data[len(data)-1]
		for i := len(data); i < n; i++ {
			out[i] = last
		}
	}
	return out
}
