package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// DefaultSampleRate is used when a source is created without one.
const DefaultSampleRate = 44100

// Source produces mono samples in [-1, 1]. Read never blocks.
type Source interface {
	Open(ctx context.Context) error
	Read(dst []float32) (int, error)
	SampleRate() int
	Close() error
}

// WAVSource loops a decoded WAV file as if it were a capture device.
type WAVSource struct {
	path    string
	rate    int
	samples []float32
	pos     int
}

// NewWAVSource creates a source for path, resampled to rate.
func NewWAVSource(path string, rate int) *WAVSource {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return &WAVSource{path: path, rate: rate}
}

// Open decodes the whole file. A missing or empty file is ErrUnavailable.
func (s *WAVSource) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.path == "" {
		return fmt.Errorf("%w: no input file", ErrUnavailable)
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	stream, err := wav.DecodeWithSampleRate(s.rate, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decoding %q: %w", s.path, err)
	}
	pcm, err := io.ReadAll(stream)
	if err != nil {
		return fmt.Errorf("reading decoded %q: %w", s.path, err)
	}
	samples := downmix(pcm)
	if len(samples) == 0 {
		return fmt.Errorf("%w: %q has no samples", ErrUnavailable, s.path)
	}
	s.samples, s.pos = samples, 0
	return nil
}

// downmix averages 16-bit little-endian stereo frames to mono.
func downmix(pcm []byte) []float32 {
	frames := len(pcm) / 4
	out := make([]float32, frames)
	for i := range out {
		o := i * 4
		l := int16(binary.LittleEndian.Uint16(pcm[o : o+2]))
		r := int16(binary.LittleEndian.Uint16(pcm[o+2 : o+4]))
		out[i] = (float32(l) + float32(r)) * (0.5 / 32768.0)
	}
	return out
}

func (s *WAVSource) Read(dst []float32) (int, error) {
	if len(s.samples) == 0 {
		return 0, ErrUnavailable
	}
	for i := range dst {
		dst[i] = s.samples[s.pos]
		s.pos++
		if s.pos == len(s.samples) {
			s.pos = 0
		}
	}
	return len(dst), nil
}

func (s *WAVSource) SampleRate() int { return s.rate }

func (s *WAVSource) Close() error {
	s.samples = nil
	return nil
}
