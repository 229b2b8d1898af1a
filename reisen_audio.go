package avespeed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/erparts/reisen"
)

var ErrNoAudio error = errors.New("media contains no audio")

var _ AudioExtractor = (*ReisenAudioExtractor)(nil)

// ReisenAudioExtractor decodes the first audio stream of a media file with
// [reisen], stores it as a temporary WAV file and loads it back as an
// [AudioBuffer]. The temporary file is removed on the next extraction and
// on [ReisenAudioExtractor.Close]().
type ReisenAudioExtractor struct {
	mutex    sync.Mutex
	artifact string
	tempDir  string
}

// NewReisenAudioExtractor creates an extractor using [os.TempDir]().
func NewReisenAudioExtractor() *ReisenAudioExtractor {
	return &ReisenAudioExtractor{}
}

// Extract returns nil and no error if the media has no audio stream.
// Any other failure wraps [ErrAudioExtraction].
func (e *ReisenAudioExtractor) Extract(path string) (*AudioBuffer, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.noLockRemoveArtifact()

	pcm, sampleRate, err := decodeAudioTrack(path)
	if errors.Is(err, ErrNoAudio) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAudioExtraction, err)
	}

	f, err := os.CreateTemp(e.tempDir, "avespeed-audio-*.wav")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAudioExtraction, err)
	}
	f.Close()
	e.artifact = f.Name()

	if err := WriteWAV(e.artifact, pcm16ToBuffer(pcm, sampleRate)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAudioExtraction, err)
	}
	buf, err := LoadWAV(e.artifact)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAudioExtraction, err)
	}
	return buf, nil
}

// Artifact returns the path of the current temporary WAV file, if any.
func (e *ReisenAudioExtractor) Artifact() string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.artifact
}

func (e *ReisenAudioExtractor) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.noLockRemoveArtifact()
}

// preconditions: e.mutex is locked
func (e *ReisenAudioExtractor) noLockRemoveArtifact() error {
	if e.artifact == "" {
		return nil
	}
	err := os.Remove(e.artifact)
	e.artifact = ""
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// decodeAudioTrack reads the whole first audio stream. reisen delivers
// audio frames as interleaved s16le stereo.
func decodeAudioTrack(path string) ([]byte, int, error) {
	media, err := reisen.NewMedia(path)
	if err != nil {
		return nil, 0, err
	}
	defer media.Close()

	audioStreams := media.AudioStreams()
	if len(audioStreams) == 0 {
		return nil, 0, ErrNoAudio
	}
	if len(audioStreams) > 1 {
		pkgLogger.Printf("WARNING: '%s' has multiple audio streams; defaulting to the first", filepath.Base(path))
	}
	stream := audioStreams[0]

	if err := media.OpenDecode(); err != nil {
		return nil, 0, err
	}
	defer media.CloseDecode()
	if err := stream.Open(); err != nil {
		return nil, 0, err
	}
	defer stream.Close()

	var pcm []byte
	for {
		packet, packetFound, err := media.ReadPacket()
		if err != nil {
			return nil, 0, err
		}
		if !packetFound {
			break
		}
		if packet.Type() != reisen.StreamAudio || packet.StreamIndex() != stream.Index() {
			continue
		}
		frame, frameFound, err := stream.ReadAudioFrame()
		if err != nil {
			return nil, 0, err
		}
		_ = frameFound // frameFound can be true while frame is nil: that's a frame skip
		if frame != nil {
			pcm = append(pcm, frame.Data()...)
		}
	}
	if len(pcm) < 4 {
		return nil, 0, ErrNoAudio
	}
	return pcm, stream.SampleRate(), nil
}

// pcm16ToBuffer converts s16le stereo bytes into a normalized buffer.
func pcm16ToBuffer(pcm []byte, sampleRate int) AudioBuffer {
	n := len(pcm) / 4 * 2
	samples := make([]float32, n)
	for i := range n {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return AudioBuffer{Samples: samples, Channels: 2, SampleRate: sampleRate}
}
