package avespeed

import (
	"fmt"
	"image"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/erparts/reisen"
)

var _ MediaDecoder = (*ReisenDecoder)(nil)

// ReisenDecoder is the [MediaDecoder] backed by [reisen] (FFmpeg).
//
// reisen streams can only be read forward, so random access is done by
// rewinding to the target position and reading frames until the one
// covering it comes up. Short forward jumps, which is what playback does
// even when redraws get coalesced, skip the rewind and keep reading.
type ReisenDecoder struct {
	mutex  sync.Mutex
	media  *reisen.Media
	stream *reisen.VideoStream

	// static data
	info          MediaInfo
	frameDuration time.Duration

	// state variables
	lastIndex int // -1 if no frame has been read since the last rewind
	lastFrame *image.RGBA
}

// maxForwardRead is the largest forward jump, in frames, served by reading
// on instead of rewinding to the closest keyframe.
const maxForwardRead = 48

type decodeAction int

const (
	decodeReuse   decodeAction = iota // same frame as last time
	decodeForward                     // keep reading from the current position
	decodeRewind                      // seek back to a keyframe first
)

// planDecode chooses how to reach frame index when lastIndex was the last
// frame read (-1 if none since the last rewind).
func planDecode(lastIndex, index, maxForward int) decodeAction {
	switch {
	case lastIndex < 0:
		return decodeRewind
	case index == lastIndex:
		return decodeReuse
	case index > lastIndex && index-lastIndex <= maxForward:
		return decodeForward
	default:
		return decodeRewind
	}
}

// NewReisenDecoder creates a decoder without media. See [ReisenDecoder.Open]().
func NewReisenDecoder() *ReisenDecoder {
	return &ReisenDecoder{lastIndex: -1}
}

func (d *ReisenDecoder) Open(path string) (MediaInfo, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if err := d.noLockClose(); err != nil {
		pkgLogger.Printf("WARNING: failed to close previous media: %s", err)
	}

	media, err := reisen.NewMedia(path)
	if err != nil {
		return MediaInfo{}, err
	}
	videoStreams := media.VideoStreams()
	if len(videoStreams) == 0 {
		media.Close()
		return MediaInfo{}, ErrNoVideo
	}
	if len(videoStreams) > 1 {
		pkgLogger.Printf("WARNING: '%s' has multiple video streams; defaulting to the first", filepath.Base(path))
	}
	stream := videoStreams[0]

	var fps float64
	frNum, frDenom := stream.FrameRate()
	if frNum > 0 && frDenom > 0 {
		fps = float64(frNum) / float64(frDenom)
	}
	duration, err := stream.Duration()
	if err != nil {
		media.Close()
		return MediaInfo{}, err
	}

	if err := media.OpenDecode(); err != nil {
		media.Close()
		return MediaInfo{}, err
	}
	if err := stream.Open(); err != nil {
		media.CloseDecode()
		media.Close()
		return MediaInfo{}, err
	}

	d.media = media
	d.stream = stream
	d.info = MediaInfo{
		FPS:         fps,
		TotalFrames: max(1, int(math.Round(duration.Seconds()*fps))),
		Width:       stream.Width(),
		Height:      stream.Height(),
	}
	if fps > 0 {
		d.frameDuration = time.Duration(float64(time.Second) / fps)
	} else {
		d.frameDuration = time.Duration(float64(time.Second) / defaultFPS)
	}
	d.lastIndex = -1
	d.lastFrame = nil
	return d.info, nil
}

// DecodeFrame returns the frame with the given index. The returned image
// is owned by the caller.
func (d *ReisenDecoder) DecodeFrame(index int) (*image.RGBA, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.media == nil {
		return nil, fmt.Errorf("%w: no media opened", ErrDecode)
	}
	if index < 0 || index >= d.info.TotalFrames {
		return nil, fmt.Errorf("%w: frame %d out of range [0, %d)", ErrDecode, index, d.info.TotalFrames)
	}

	target := d.frameDuration * time.Duration(index)
	switch planDecode(d.lastIndex, index, maxForwardRead) {
	case decodeReuse:
		return cloneRGBA(d.lastFrame), nil
	case decodeRewind:
		if err := d.stream.Rewind(target); err != nil {
			return nil, fmt.Errorf("%w: rewind to %s: %w", ErrDecode, target, err)
		}
		d.lastIndex = -1
	}

	var found *reisen.VideoFrame
	for {
		frame, err := d.internalReadVideoFrame()
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %w", ErrDecode, index, err)
		}
		if frame == nil {
			break // keep the latest frame we got, if any
		}
		found = frame
		presOffset, err := frame.PresentationOffset()
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %w", ErrDecode, index, err)
		}
		if presOffset+d.frameDuration/2 >= target {
			break
		}
	}
	if found == nil {
		if d.lastFrame != nil {
			// trailing frames some containers declare but don't store
			return cloneRGBA(d.lastFrame), nil
		}
		return nil, fmt.Errorf("%w: frame %d: end of stream", ErrDecode, index)
	}
	return d.noLockKeep(index, found)
}

// preconditions: d.mutex is locked
func (d *ReisenDecoder) noLockKeep(index int, frame *reisen.VideoFrame) (*image.RGBA, error) {
	w, h := d.info.Width, d.info.Height
	data := frame.Data()
	if len(data) < w*h*4 {
		return nil, fmt.Errorf("%w: frame %d: got %d bytes for %dx%d RGBA", ErrDecode, index, len(data), w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, data)
	d.lastIndex = index
	d.lastFrame = img
	return cloneRGBA(img), nil
}

func (d *ReisenDecoder) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.noLockClose()
}

// preconditions: d.mutex is locked
func (d *ReisenDecoder) noLockClose() error {
	if d.media == nil {
		return nil
	}
	err := d.stream.Close()
	if cerr := d.media.CloseDecode(); err == nil {
		err = cerr
	}
	d.media.Close()
	d.media = nil
	d.stream = nil
	d.lastIndex = -1
	d.lastFrame = nil
	return err
}

// preconditions: d.mutex is locked
func (d *ReisenDecoder) internalReadVideoFrame() (*reisen.VideoFrame, error) {
	// read packets until we come across the next video frame packet
	for {
		packet, packetFound, err := d.media.ReadPacket()
		if err != nil {
			return nil, err
		}
		if !packetFound {
			return nil, nil
		}

		if packet.Type() == reisen.StreamVideo && packet.StreamIndex() == d.stream.Index() {
			frame, frameFound, err := d.stream.ReadVideoFrame()
			if err != nil {
				return nil, err
			}
			_ = frameFound // frameFound can be true while frame is nil: that's a frame skip
			if frame != nil {
				return frame, nil
			}
		}
	}
}

func cloneRGBA(img *image.RGBA) *image.RGBA {
	clone := &image.RGBA{
		Pix:    make([]byte, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(clone.Pix, img.Pix)
	return clone
}
