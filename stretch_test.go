package avespeed

import (
	"errors"
	"math"
	"testing"
)

func TestStretchLength(t *testing.T) {
	seg := *sineBuffer(0.125, 8000, 1) // 1000 frames

	for _, speed := range []float64{0.25, 0.5, 0.75, 1.25, 1.5, 2.0} {
		for _, quality := range []string{QualityFastest, QualityLinear} {
			out, err := Stretch(seg, speed, quality)
			if err != nil {
				t.Fatalf("Stretch(%v, %s): %v", speed, quality, err)
			}
			want := int(math.Floor(1000 / speed))
			if out.Frames() != want {
				t.Errorf("Stretch(%v, %s) produced %d frames, want %d", speed, quality, out.Frames(), want)
			}
			if out.SampleRate != seg.SampleRate || out.Channels != 1 {
				t.Errorf("Stretch(%v) changed format to %d ch @ %d Hz", speed, out.Channels, out.SampleRate)
			}
		}
	}
}

func TestStretchKeepsChannelsIndependent(t *testing.T) {
	mono := sineBuffer(0.25, 8000, 1)
	stereo := AudioBuffer{
		Samples:    make([]float32, len(mono.Samples)*2),
		Channels:   2,
		SampleRate: 8000,
	}
	for i, s := range mono.Samples {
		stereo.Samples[i*2] = s // left: tone, right: silence
	}

	out, err := Stretch(stereo, 0.5, QualityFastest)
	if err != nil {
		t.Fatal(err)
	}
	if out.Channels != 2 || out.Frames() != mono.Frames()*2 {
		t.Fatalf("got %d ch, %d frames; want 2 ch, %d frames", out.Channels, out.Frames(), mono.Frames()*2)
	}

	var leftEnergy float64
	for i, s := range out.Channel(1) {
		if math.Abs(float64(s)) > 1e-4 {
			t.Fatalf("right channel sample %d = %v, silence leaked from the left channel", i, s)
		}
	}
	for _, s := range out.Channel(0) {
		leftEnergy += float64(s) * float64(s)
	}
	if leftEnergy == 0 {
		t.Error("left channel lost its signal")
	}
}

func TestStretchRejectsInvalidSpeed(t *testing.T) {
	seg := *sineBuffer(0.1, 8000, 1)
	for _, speed := range []float64{0, -1, math.Inf(1), math.NaN()} {
		if _, err := Stretch(seg, speed, QualityFastest); !errors.Is(err, ErrInvalidStretch) {
			t.Errorf("Stretch(speed = %v) error = %v, want ErrInvalidStretch", speed, err)
		}
	}
}

func TestStretchEmpty(t *testing.T) {
	out, err := Stretch(AudioBuffer{Channels: 2, SampleRate: 8000}, 0.5, QualityFastest)
	if err != nil {
		t.Fatal(err)
	}
	if out.Frames() != 0 {
		t.Errorf("empty input produced %d frames", out.Frames())
	}
}

func TestResample(t *testing.T) {
	buf := *sineBuffer(0.5, 8000, 2)
	out, err := Resample(buf, 16000, QualityFastest)
	if err != nil {
		t.Fatal(err)
	}
	if out.SampleRate != 16000 || out.Frames() != buf.Frames()*2 {
		t.Errorf("got %d frames @ %d Hz, want %d @ 16000", out.Frames(), out.SampleRate, buf.Frames()*2)
	}
	if out.Duration() != buf.Duration() {
		t.Errorf("duration changed from %s to %s", buf.Duration(), out.Duration())
	}

	same, err := Resample(buf, 8000, QualityFastest)
	if err != nil || same.Frames() != buf.Frames() {
		t.Errorf("same rate resample changed the buffer (err = %v)", err)
	}
}

func TestFitLength(t *testing.T) {
	if got := fitLength([]float32{1, 2, 3}, 2); len(got) != 2 || got[1] != 2 {
		t.Errorf("truncate: got %v", got)
	}
	got := fitLength([]float32{1, 2}, 4)
	if len(got) != 4 || got[2] != 2 || got[3] != 2 {
		t.Errorf("pad with last sample: got %v", got)
	}
}

func TestValidQuality(t *testing.T) {
	for _, q := range []string{QualityBest, QualityMedium, QualityFastest, QualityLinear} {
		if !ValidQuality(q) {
			t.Errorf("ValidQuality(%q) = false", q)
		}
	}
	if ValidQuality("ultra") {
		t.Error("ValidQuality(\"ultra\") = true")
	}
}
