package avespeed

import "image"

// MediaInfo holds the static video metadata reported by a [MediaDecoder].
type MediaInfo struct {
	FPS         float64
	TotalFrames int
	Width       int
	Height      int
}

// A MediaDecoder gives random access to the frames of a video file.
// Decoding always happens on the control context, never from a driver.
type MediaDecoder interface {
	// Opens the given file, releasing any previously opened one.
	Open(path string) (MediaInfo, error)

	// Seeks to the given frame and decodes it. Failures wrap [ErrDecode].
	DecodeFrame(index int) (*image.RGBA, error)

	// Releases the decoder resources. The decoder can be opened again.
	Close() error
}

// An AudioExtractor produces the whole decoded audio track of a media file.
type AudioExtractor interface {
	// Returns nil and no error if the media has no audio track.
	Extract(path string) (*AudioBuffer, error)

	// Removes any temporary artifact created by the last extraction.
	Close() error
}

// A Renderer is the display collaborator. Display is only ever called
// from the control context, inside [Player] methods or [Player.Update]().
type Renderer interface {
	Display(frame image.Image)

	// Returns the current canvas size. Values below 2 mean "unknown", in
	// which case frames are displayed at their native resolution.
	CanvasSize() (int, int)
}

// A FrameExporter saves a decoded frame to disk.
type FrameExporter interface {
	SaveImage(frame image.Image, path string) error
}

// An AudioOutput is the audio device. Only one playback request can be
// outstanding at a time: Play must synchronously stop the previous one.
type AudioOutput interface {
	// Starts non-blocking playback of the given buffer. Failures to
	// acquire the device wrap [ErrDeviceBusy].
	Play(buf AudioBuffer) error

	// Reports whether the last playback request is still producing sound.
	Active() bool

	// Stops any outstanding playback request.
	Stop()

	// Returns the sample rate the device runs at, or 0 if any rate is fine.
	SampleRate() int
}
