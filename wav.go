package avespeed

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV stores the buffer as a 16 bit PCM WAV file.
func WriteWAV(path string, buf AudioBuffer) error {
	if buf.Channels < 1 || buf.SampleRate < 1 {
		return fmt.Errorf("can't write WAV with %d channels at %d Hz", buf.Channels, buf.SampleRate)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, buf.SampleRate, 16, buf.Channels, 1)
	intBuf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: buf.Channels,
			SampleRate:  buf.SampleRate,
		},
		Data:           make([]int, len(buf.Samples)),
		SourceBitDepth: 16,
	}
	for i, sample := range buf.Samples {
		intBuf.Data[i] = int(max(-1, min(1, sample)) * 32767)
	}
	if err := enc.Write(intBuf); err != nil {
		return err
	}
	return enc.Close()
}

// LoadWAV reads a PCM WAV file into a normalized [AudioBuffer].
func LoadWAV(path string) (*AudioBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}
	if err := decoder.FwdToPCM(); err != nil {
		return nil, err
	}
	format := decoder.Format()
	bitDepth := int(decoder.SampleBitDepth())
	if bitDepth == 0 {
		return nil, fmt.Errorf("unknown bit depth for WAV file: %s", path)
	}
	if format.NumChannels < 1 {
		return nil, fmt.Errorf("no audio channels in WAV file: %s", path)
	}

	bytesPerSample := (bitDepth-1)/8 + 1
	nsamples := int(decoder.PCMLen()) / bytesPerSample
	nsamples -= nsamples % format.NumChannels
	intBuf := &audio.IntBuffer{
		Format:         format,
		Data:           make([]int, nsamples),
		SourceBitDepth: bitDepth,
	}
	n, err := decoder.PCMBuffer(intBuf)
	if err != nil {
		return nil, err
	}
	n -= n % format.NumChannels

	factor := float32(math.Pow(2, float64(bitDepth-1)))
	samples := make([]float32, n)
	for i := range n {
		samples[i] = float32(intBuf.Data[i]) / factor
	}
	return &AudioBuffer{
		Samples:    samples,
		Channels:   format.NumChannels,
		SampleRate: format.SampleRate,
	}, nil
}
