package avespeed

import (
	"errors"
	"image"
	"image/color"
	"math"
	"sync"
	"testing"
	"time"
)

// fakeDecoder produces 2x2 frames whose first pixel encodes the frame index.
type fakeDecoder struct {
	mutex   sync.Mutex
	info    MediaInfo
	openErr error
	opened  bool
	decodes int
	closes  int
}

func newFakeDecoder(fps float64, totalFrames int) *fakeDecoder {
	return &fakeDecoder{info: MediaInfo{FPS: fps, TotalFrames: totalFrames, Width: 2, Height: 2}}
}

func (d *fakeDecoder) Open(path string) (MediaInfo, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.openErr != nil {
		return MediaInfo{}, d.openErr
	}
	d.opened = true
	return d.info, nil
}

func (d *fakeDecoder) DecodeFrame(index int) (*image.RGBA, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if !d.opened || index < 0 || index >= d.info.TotalFrames {
		return nil, ErrDecode
	}
	d.decodes++
	img := image.NewRGBA(image.Rect(0, 0, d.info.Width, d.info.Height))
	img.Set(0, 0, color.RGBA{uint8(index % 256), uint8(index / 256), 0, 255})
	return img, nil
}

func (d *fakeDecoder) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.opened = false
	d.closes++
	return nil
}

func frameIndexOf(img image.Image) int {
	r, g, _, _ := img.At(0, 0).RGBA()
	return int(r>>8) + int(g>>8)*256
}

type fakeExtractor struct {
	mutex  sync.Mutex
	buf    *AudioBuffer
	err    error
	closes int
}

func (e *fakeExtractor) Extract(path string) (*AudioBuffer, error) {
	return e.buf, e.err
}

func (e *fakeExtractor) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.closes++
	return nil
}

type fakeRenderer struct {
	mutex  sync.Mutex
	frames []image.Image
	width  int
	height int
}

func (r *fakeRenderer) Display(frame image.Image) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *fakeRenderer) CanvasSize() (int, int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.width, r.height
}

func (r *fakeRenderer) count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.frames)
}

func (r *fakeRenderer) last() image.Image {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}

// fakeOutput records playback requests. A request stays active until it
// is stopped or replaced.
type fakeOutput struct {
	mutex   sync.Mutex
	plays   []AudioBuffer
	active  bool
	stops   int
	rate    int
	playErr error
	volume  float64
	muted   bool
}

func (o *fakeOutput) Play(buf AudioBuffer) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.playErr != nil {
		return o.playErr
	}
	o.plays = append(o.plays, buf)
	o.active = true
	return nil
}

func (o *fakeOutput) Active() bool {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.active
}

func (o *fakeOutput) Stop() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.active = false
	o.stops++
}

func (o *fakeOutput) SampleRate() int { return o.rate }

func (o *fakeOutput) SetVolume(volume float64) { o.volume = volume }
func (o *fakeOutput) GetVolume() float64       { return o.volume }
func (o *fakeOutput) SetMuted(muted bool)      { o.muted = muted }
func (o *fakeOutput) GetMuted() bool           { return o.muted }

func (o *fakeOutput) played() []AudioBuffer {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return append([]AudioBuffer(nil), o.plays...)
}

var errFakeBusy = errors.New("fake device busy")

// sineBuffer returns seconds of a 440Hz tone on every channel.
func sineBuffer(seconds float64, sampleRate, channels int) *AudioBuffer {
	frames := int(seconds * float64(sampleRate))
	samples := make([]float32, frames*channels)
	for i := range frames {
		v := float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		for ch := range channels {
			samples[i*channels+ch] = v
		}
	}
	return &AudioBuffer{Samples: samples, Channels: channels, SampleRate: sampleRate}
}

// fastTunings keeps the timing structure of the defaults but shortens
// the waits that don't affect clock rates.
func fastTunings() Tunings {
	tunings := DefaultTunings()
	tunings.SpeedSettleDelay = 50 * time.Millisecond
	tunings.ResizeDebounce = 20 * time.Millisecond
	return tunings
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %s waiting for %s", timeout, what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func within(got, want, tolerance int) bool {
	return got >= want-tolerance && got <= want+tolerance
}
