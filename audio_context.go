package avespeed

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erparts/reisen"
	"github.com/hajimehoshi/ebiten/v2/audio"
)

var (
	ErrNonNilAudioContext = errors.New("audio context already initialized")
	ErrNilAudioContext    = errors.New("audio.Context is not initialized")
	ErrBadSampleRate      = errors.New("audio buffer and audio context sample rates don't match")
)

const playerBufferSize time.Duration = 200 * time.Millisecond

// Creates an ebitengine audio context based on the given media.
func CreateAudioContextForMedia(videoFilename string) error {
	if audio.CurrentContext() != nil {
		return ErrNonNilAudioContext
	}

	sampleRate, err := GetMediaAudioSampleRate(videoFilename)
	if err != nil {
		return err
	}
	_ = audio.NewContext(sampleRate)
	return nil
}

// If the media has no audio, [ErrNoAudio] will be returned.
func GetMediaAudioSampleRate(videoFilename string) (int, error) {
	container, err := reisen.NewMedia(videoFilename)
	if err != nil {
		return 0, err
	}
	defer container.Close()

	audioStreams := container.AudioStreams()
	if len(audioStreams) == 0 {
		return 0, ErrNoAudio
	}

	return audioStreams[0].SampleRate(), nil
}

var _ AudioOutput = (*EbitenAudioOutput)(nil)

// EbitenAudioOutput is an [AudioOutput] on top of the current ebitengine
// audio context. Only one playback request exists at a time: playing a
// new buffer closes the previous audio player first.
type EbitenAudioOutput struct {
	mutex   sync.Mutex
	context *audio.Context
	player  *audio.Player
	volume  float64
	muted   bool
}

// NewEbitenAudioOutput returns [ErrNilAudioContext] if no ebitengine audio
// context has been created yet.
func NewEbitenAudioOutput() (*EbitenAudioOutput, error) {
	context := audio.CurrentContext()
	if context == nil {
		return nil, ErrNilAudioContext
	}
	return &EbitenAudioOutput{context: context, volume: 1.0}, nil
}

func (o *EbitenAudioOutput) Play(buf AudioBuffer) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.noLockStop()

	if o.context == nil {
		return fmt.Errorf("%w: %w", ErrDeviceBusy, ErrNilAudioContext)
	}
	if buf.SampleRate != o.context.SampleRate() {
		pkgLogger.Printf("WARNING: context sample rate = %d, buffer sample rate = %d\n", o.context.SampleRate(), buf.SampleRate)
		return ErrBadSampleRate
	}

	o.player = o.context.NewPlayerFromBytes(stereoS16LE(buf))
	o.player.SetBufferSize(playerBufferSize)
	o.player.SetVolume(o.noLockEffectiveVolume())
	o.player.Play()
	return nil
}

func (o *EbitenAudioOutput) Active() bool {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.player != nil && o.player.IsPlaying()
}

func (o *EbitenAudioOutput) Stop() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.noLockStop()
}

// preconditions: o.mutex is locked
func (o *EbitenAudioOutput) noLockStop() {
	if o.player == nil {
		return
	}
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		pkgLogger.Printf("WARNING: failed to close audio player: %s", err)
	}
	o.player = nil
}

// SampleRate returns the rate of the underlying audio context.
func (o *EbitenAudioOutput) SampleRate() int {
	if o.context == nil {
		return 0
	}
	return o.context.SampleRate()
}

func (o *EbitenAudioOutput) GetVolume() float64 {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.volume
}

func (o *EbitenAudioOutput) SetVolume(volume float64) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.volume = volume
	if o.player != nil {
		o.player.SetVolume(o.noLockEffectiveVolume())
	}
}

func (o *EbitenAudioOutput) GetMuted() bool {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.muted
}

func (o *EbitenAudioOutput) SetMuted(muted bool) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.muted = muted
	if o.player != nil {
		o.player.SetVolume(o.noLockEffectiveVolume())
	}
}

func (o *EbitenAudioOutput) noLockEffectiveVolume() float64 {
	if o.muted {
		return 0.0
	}
	return o.volume
}

// stereoS16LE converts the buffer into the format ebitengine audio players
// read: interleaved signed 16 bit little endian stereo. Mono is duplicated
// into both channels, extra channels are dropped.
func stereoS16LE(buf AudioBuffer) []byte {
	frames := buf.Frames()
	out := make([]byte, frames*4)
	for i := range frames {
		left := buf.Samples[i*buf.Channels]
		right := left
		if buf.Channels > 1 {
			right = buf.Samples[i*buf.Channels+1]
		}
		putS16LE(out[i*4:], left)
		putS16LE(out[i*4+2:], right)
	}
	return out
}

func putS16LE(dst []byte, sample float32) {
	v := int16(max(-1, min(1, sample)) * 32767)
	dst[0] = byte(v)
	dst[1] = byte(uint16(v) >> 8)
}
