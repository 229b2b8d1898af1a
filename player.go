package avespeed

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// A collection of errors defined by this package. Decoder and extractor
// specific errors are wrapped by them.
var (
	ErrMediaOpen         = errors.New("media could not be opened")
	ErrNoVideo           = errors.New("file doesn't include any video stream")
	ErrDecode            = errors.New("video frame could not be decoded")
	ErrAudioExtraction   = errors.New("audio track could not be extracted")
	ErrDeviceBusy        = errors.New("audio output device unavailable")
	ErrDriverStopTimeout = errors.New("playback driver didn't stop in time")
	ErrInvalidSpeed      = errors.New("playback speed out of range")
)

// fallback for containers that don't report a usable frame rate
const defaultFPS = 30.0

// session holds everything tied to one opened media file.
type session struct {
	path  string
	info  MediaInfo
	clock *Clock
	audio *AudioBuffer // nil when playing video only
}

// A [Player] is the transport controller of a variable speed video player.
//
// The player keeps a frame based playback clock. While playing, a video
// driver goroutine advances the clock at fps*speed and an audio driver
// goroutine keeps the audio output locked to the clock, time-stretching
// the audio when the speed is not 1.
//
// All methods are safe for concurrent use, but displaying frames only
// happens inside [Player] methods and [Player.Update](), so the goroutine
// calling them is the "control context" from the point of view of the
// [Renderer]. Typical usage:
//   - Create a player with [NewPlayer]() or [NewDefaultPlayer]().
//   - [Player.Open]() a file, [Player.Play]() it.
//   - Call [Player.Update]() on every tick of the UI loop.
//
// Operations on a player without opened media are no-ops.
type Player struct {
	mutex     sync.Mutex
	decoder   MediaDecoder
	extractor AudioExtractor
	renderer  Renderer
	output    AudioOutput
	exporter  FrameExporter
	tunings   Tunings

	// state variables
	session      *session
	state        PlaybackState
	speed        float64
	seeking      bool
	looping      bool
	audioStatus  AudioStatus
	lastResize   time.Time
	drivers      *driverSet
	restartTimer *time.Timer

	// shared with the drivers
	epoch      atomic.Uint64
	ended      atomic.Bool
	deviceBusy atomic.Bool
	queue      *renderQueue
}

// PlayerOption configures optional collaborators of a [Player].
type PlayerOption func(*Player)

// WithAudioExtractor enables audio. Without an extractor media is played
// as video only.
func WithAudioExtractor(extractor AudioExtractor) PlayerOption {
	return func(p *Player) { p.extractor = extractor }
}

// WithAudioOutput sets the audio device. Without an output audio is
// extracted but never played.
func WithAudioOutput(output AudioOutput) PlayerOption {
	return func(p *Player) { p.output = output }
}

// WithRenderer sets the display collaborator.
func WithRenderer(renderer Renderer) PlayerOption {
	return func(p *Player) { p.renderer = renderer }
}

// WithFrameExporter replaces the default [ImageFileExporter].
func WithFrameExporter(exporter FrameExporter) PlayerOption {
	return func(p *Player) { p.exporter = exporter }
}

// WithTunings replaces [DefaultTunings]().
func WithTunings(tunings Tunings) PlayerOption {
	return func(p *Player) { p.tunings = tunings }
}

// NewPlayer creates a player around the given decoder.
func NewPlayer(decoder MediaDecoder, opts ...PlayerOption) *Player {
	if decoder == nil {
		panic("nil media decoder")
	}
	p := &Player{
		decoder:  decoder,
		exporter: ImageFileExporter{},
		tunings:  DefaultTunings(),
		state:    Stopped,
		speed:    1.0,
		queue:    newRenderQueue(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewDefaultPlayer creates a player using reisen for decoding and the
// current ebitengine audio context for output. If no audio context exists
// media will be played without sound, see [CreateAudioContextForMedia]().
func NewDefaultPlayer(renderer Renderer, opts ...PlayerOption) *Player {
	base := []PlayerOption{
		WithRenderer(renderer),
		WithAudioExtractor(NewReisenAudioExtractor()),
	}
	if output, err := NewEbitenAudioOutput(); err == nil {
		base = append(base, WithAudioOutput(output))
	} else {
		pkgLogger.Printf("WARNING: %s, audio disabled", err)
	}
	return NewPlayer(NewReisenDecoder(), append(base, opts...)...)
}

// --- media ---

// Open loads the given media, replacing the current one. The clock is
// reset to frame 0 and the player is left [Stopped].
//
// Failing to open the video returns an error wrapping [ErrMediaOpen] and
// leaves the player without media. Audio problems are never returned:
// the media plays as video only and [Player.AudioStatus]() tells why.
func (p *Player) Open(path string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.noLockStopDrivers(p.tunings.StopTimeout)
	p.noLockRelease()

	info, err := p.decoder.Open(path)
	if err != nil {
		return fmt.Errorf("%w: '%s': %w", ErrMediaOpen, filepath.Base(path), err)
	}
	if info.FPS <= 0 || math.IsNaN(info.FPS) || math.IsInf(info.FPS, 0) {
		pkgLogger.Printf("WARNING: '%s' reports fps = %v; assuming %v", filepath.Base(path), info.FPS, defaultFPS)
		info.FPS = defaultFPS
	}

	sess := &session{
		path:  path,
		info:  info,
		clock: NewClock(info.FPS, info.TotalFrames),
	}
	sess.audio, p.audioStatus = p.noLockLoadAudio(path)
	p.session = sess
	p.noLockShowFrame()
	return nil
}

func (p *Player) noLockLoadAudio(path string) (*AudioBuffer, AudioStatus) {
	if p.extractor == nil {
		return nil, AudioMissing
	}
	buf, err := p.extractor.Extract(path)
	if err != nil {
		pkgLogger.Printf("WARNING: '%s': %s", filepath.Base(path), err)
		return nil, AudioFailed
	}
	if buf == nil || buf.Frames() == 0 {
		return nil, AudioMissing
	}
	if p.output != nil {
		if rate := p.output.SampleRate(); rate > 0 && rate != buf.SampleRate {
			conformed, err := Resample(*buf, rate, p.tunings.StretchQuality)
			if err != nil {
				pkgLogger.Printf("WARNING: '%s': can't convert audio from %d to %d Hz: %s", filepath.Base(path), buf.SampleRate, rate, err)
				return nil, AudioFailed
			}
			buf = &conformed
		}
	}
	return buf, AudioLoaded
}

// Close stops playback and releases the media, including the temporary
// audio artifact. The player can open new media afterwards.
func (p *Player) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.noLockStopDrivers(p.tunings.StopTimeout)
	return p.noLockRelease()
}

func (p *Player) noLockRelease() error {
	var errs []error
	if p.session != nil {
		errs = append(errs, p.decoder.Close())
	}
	if p.extractor != nil {
		errs = append(errs, p.extractor.Close())
	}
	p.session = nil
	p.state = Stopped
	p.seeking = false
	p.audioStatus = AudioNone
	p.ended.Store(false)
	p.deviceBusy.Store(false)
	return errors.Join(errs...)
}

// --- transport ---

// Play starts or resumes playback. If the player is already playing,
// nothing happens. Playing a clip that reached its end restarts it.
func (p *Player) Play() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil {
		return nil
	}
	p.noLockHandleEnd()
	if p.state == Playing {
		return nil
	}
	if p.state == Stopped && p.session.clock.AtEnd() {
		p.session.clock.Set(0)
		p.noLockShowFrame()
	}
	p.state = Playing
	if !p.seeking {
		p.noLockStartDrivers()
	}
	return nil
}

// Pause stops both drivers and keeps the current position. Pausing a
// player that isn't playing does nothing.
func (p *Player) Pause() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil {
		return nil
	}
	p.noLockHandleEnd()
	if p.state != Playing {
		return nil
	}
	p.noLockStopDrivers(p.tunings.StopTimeout)
	p.state = Paused
	return nil
}

// TogglePlay pauses a playing player and plays otherwise.
func (p *Player) TogglePlay() error {
	if p.State() == Playing {
		return p.Pause()
	}
	return p.Play()
}

// Stop stops playback and rewinds to the first frame.
func (p *Player) Stop() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil {
		return nil
	}
	p.noLockStopDrivers(p.tunings.StopTimeout)
	p.state = Stopped
	p.session.clock.Set(0)
	p.noLockShowFrame()
	return nil
}

// ChangeSpeed sets the playback speed multiplier, which must be within
// [MinSpeed, MaxSpeed]. If the player is playing, both drivers are stopped
// and restarted after [Tunings].SpeedSettleDelay, giving the audio device
// time to be released before it's opened again. The player reports
// [Playing] during that delay.
func (p *Player) ChangeSpeed(speed float64) error {
	if !(speed >= MinSpeed && speed <= MaxSpeed) {
		return fmt.Errorf("%w: %v (valid range is [%v, %v])", ErrInvalidSpeed, speed, MinSpeed, MaxSpeed)
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session != nil {
		p.noLockHandleEnd()
	}
	if p.session == nil || p.state != Playing || p.seeking {
		p.speed = speed
		return nil
	}

	p.noLockStopDrivers(p.tunings.StopTimeout)
	p.speed = speed
	epoch := p.epoch.Load()
	p.restartTimer = time.AfterFunc(p.tunings.SpeedSettleDelay, func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()
		// any transport operation in between moves the epoch on
		if p.epoch.Load() != epoch || p.session == nil || p.state != Playing || p.drivers != nil {
			return
		}
		p.restartTimer = nil
		p.noLockStartDrivers()
	})
	return nil
}

// Speed returns the current playback speed multiplier.
func (p *Player) Speed() float64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.speed
}

// State returns [Stopped], [Playing] or [Paused]. Reaching the end of the
// media is detected and applied here as a side effect.
func (p *Player) State() PlaybackState {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.noLockHandleEnd()
	return p.state
}

// Update must be called periodically from the control context. It applies
// end-of-media transitions and serves the redraw requests posted by the
// video driver. Redraws are skipped while the position slider is held.
func (p *Player) Update() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil {
		p.queue.take()
		return
	}
	p.noLockHandleEnd()
	if p.queue.take() && !p.seeking {
		p.noLockShowFrame()
	}
}

// RenderRequests returns a channel that receives a value whenever a redraw
// is pending. Event driven control loops can select on it and then call
// [Player.Update]().
func (p *Player) RenderRequests() <-chan struct{} { return p.queue.C() }

// --- driver management ---

// preconditions: p.mutex is locked, p.session != nil
func (p *Player) noLockStartDrivers() {
	sess := p.session
	guard := epochGuard{epoch: &p.epoch, mine: p.epoch.Add(1)}
	set := newDriverSet()
	p.ended.Store(false)

	video := &videoDriver{
		clock:  sess.clock,
		speed:  p.speed,
		slice:  p.tunings.VideoSleepSlice,
		guard:  guard,
		render: p.queue.post,
		onEnd: func() {
			if !guard.alive() {
				return
			}
			p.ended.Store(true)
			set.cancel() // silence audio right away, Update() does the rest
			p.queue.post()
		},
	}
	drivers := []driverFunc{video.run}

	if p.noLockAudioEnabled() {
		audio := &audioDriver{
			clock:   sess.clock,
			buf:     *sess.audio,
			out:     p.output,
			speed:   p.speed,
			tunings: p.tunings,
			guard:   guard,
			onDeviceBusy: func(err error) {
				if !p.deviceBusy.Swap(true) {
					pkgLogger.Printf("WARNING: %s; continuing without audio", err)
				}
			},
		}
		drivers = append(drivers, audio.run)
	}

	set.start(drivers...)
	p.drivers = set
}

// Stops any running drivers and cancels a pending restart. Never blocks
// longer than timeout; a driver that doesn't stop in time is abandoned and
// exits on its own once it sees the epoch moved on.
//
// preconditions: p.mutex is locked
func (p *Player) noLockStopDrivers(timeout time.Duration) {
	p.epoch.Add(1)
	if p.restartTimer != nil {
		p.restartTimer.Stop()
		p.restartTimer = nil
	}
	if p.drivers == nil {
		return
	}

	err := p.drivers.stop(timeout)
	p.drivers = nil
	if p.output != nil {
		p.output.Stop()
	}
	switch {
	case err == nil, errors.Is(err, ErrDeviceBusy):
		// device failures were already reported by the audio driver
	case errors.Is(err, ErrDriverStopTimeout):
		pkgLogger.Printf("WARNING: %s; proceeding anyway", err)
	default:
		pkgLogger.Printf("WARNING: playback driver failed: %s", err)
	}
}

// Applies the end-of-media transition signaled by the video driver.
//
// preconditions: p.mutex is locked
func (p *Player) noLockHandleEnd() {
	if p.state != Playing || !p.ended.CompareAndSwap(true, false) {
		return
	}
	p.noLockStopDrivers(p.tunings.StopTimeout)
	if p.looping {
		p.session.clock.Set(0)
		p.noLockShowFrame()
		p.noLockStartDrivers()
		return
	}
	p.state = Stopped
}

// preconditions: p.mutex is locked
func (p *Player) noLockAudioEnabled() bool {
	return p.session.audio != nil && p.output != nil && !p.seeking && !p.deviceBusy.Load()
}

// driversRunning reports whether driver goroutines are alive. Test helper.
func (p *Player) driversRunning() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.drivers != nil && p.drivers.running()
}

// --- display ---

// preconditions: p.mutex is locked, p.session != nil
func (p *Player) noLockShowFrame() {
	frame, err := p.decoder.DecodeFrame(p.session.clock.Get())
	if err != nil {
		pkgLogger.Printf("WARNING: %s", err)
		return
	}
	if p.renderer == nil {
		return
	}
	w, h := p.renderer.CanvasSize()
	p.renderer.Display(FitFrame(frame, w, h))
}

// NotifyResize tells the player the canvas changed size. The current
// frame is redrawn on the next [Player.Update](), at most once every
// [Tunings].ResizeDebounce.
func (p *Player) NotifyResize() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil {
		return
	}
	now := time.Now()
	if now.Sub(p.lastResize) > p.tunings.ResizeDebounce {
		p.lastResize = now
		p.queue.post()
	}
}

// CaptureFrame decodes the current frame and saves it to path. The image
// format is chosen from the file extension, see [ImageFileExporter].
func (p *Player) CaptureFrame(path string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil {
		return nil
	}
	frame, err := p.decoder.DecodeFrame(p.session.clock.Get())
	if err != nil {
		return err
	}
	return p.exporter.SaveImage(frame, path)
}

// DefaultCaptureName returns a file name suggestion for [Player.CaptureFrame]().
func (p *Player) DefaultCaptureName() string {
	return fmt.Sprintf("frame_%d.png", p.CurrentFrame())
}

// --- position and metadata ---

// CurrentFrame returns the frame index of the playback clock.
func (p *Player) CurrentFrame() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil {
		return 0
	}
	return p.session.clock.Get()
}

// TotalFrames returns the number of frames of the media, or 0.
func (p *Player) TotalFrames() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil {
		return 0
	}
	return p.session.clock.TotalFrames()
}

// Position returns the presentation time of the current frame.
func (p *Player) Position() time.Duration {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil {
		return 0
	}
	return p.session.clock.Position()
}

// Duration returns the media duration.
func (p *Player) Duration() time.Duration {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil {
		return 0
	}
	return p.session.clock.Duration()
}

// Info returns the metadata of the opened media.
func (p *Player) Info() MediaInfo {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.session == nil {
		return MediaInfo{}
	}
	return p.session.info
}

// TimeLabel returns "m:ss / m:ss" for the current position and duration.
func (p *Player) TimeLabel() string {
	return FormatTime(p.Position()) + " / " + FormatTime(p.Duration())
}

// FormatTime formats a duration as minutes and zero padded seconds.
func FormatTime(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// --- audio ---

// HasAudio returns whether the opened media has a playable audio buffer.
func (p *Player) HasAudio() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.session != nil && p.session.audio != nil && !p.deviceBusy.Load()
}

// AudioStatus tells what happened with the audio of the opened media.
func (p *Player) AudioStatus() AudioStatus {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.audioStatus == AudioLoaded && p.deviceBusy.Load() {
		return AudioUnavailable
	}
	return p.audioStatus
}

// volumeController is implemented by outputs supporting volume control,
// like [EbitenAudioOutput].
type volumeController interface {
	SetVolume(volume float64)
	GetVolume() float64
	SetMuted(muted bool)
	GetMuted() bool
}

// Gets the output volume. If the output has no volume control, 0 is returned.
func (p *Player) GetVolume() float64 {
	if vc, ok := p.output.(volumeController); ok {
		return vc.GetVolume()
	}
	return 0
}

// Sets the output volume. Without volume control this has no effect.
func (p *Player) SetVolume(volume float64) {
	if vc, ok := p.output.(volumeController); ok {
		vc.SetVolume(volume)
	}
}

// Returns whether the output is muted. Without volume control, true is returned.
func (p *Player) GetMuted() bool {
	if vc, ok := p.output.(volumeController); ok {
		return vc.GetMuted()
	}
	return true
}

// Mutes or unmutes the output. Without volume control this has no effect.
func (p *Player) SetMuted(muted bool) {
	if vc, ok := p.output.(volumeController); ok {
		vc.SetMuted(muted)
	}
}

// SetLooping configures whether playback restarts from the first frame
// when the end of the media is reached.
func (p *Player) SetLooping(loop bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.looping = loop
}

// GetLooping returns whether the player loops. See [Player.SetLooping]().
func (p *Player) GetLooping() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.looping
}

// SetTunings replaces the timing parameters. Running drivers keep the old
// values until they are restarted.
func (p *Player) SetTunings(tunings Tunings) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.tunings = tunings
}
