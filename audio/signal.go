// Package audio turns a sample source into a smoothed amplitude and
// spectrum for audio-reactive emitters.
package audio

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable is returned when no capture source can be opened.
var ErrUnavailable = errors.New("audio input unavailable")

// Band selects part of the spectrum.
type Band int

const (
	BandAll Band = iota
	BandLow
	BandMid
	BandHigh
)

func (b Band) String() string {
	switch b {
	case BandAll:
		return "all"
	case BandLow:
		return "low"
	case BandMid:
		return "mid"
	case BandHigh:
		return "high"
	}
	return fmt.Sprintf("band(%d)", int(b))
}

// ParseBand parses low, mid, high or all. Empty means all.
func ParseBand(s string) (Band, error) {
	switch strings.ToLower(s) {
	case "", "all":
		return BandAll, nil
	case "low":
		return BandLow, nil
	case "mid":
		return BandMid, nil
	case "high":
		return BandHigh, nil
	}
	return 0, fmt.Errorf("unknown audio band %q", s)
}

// Range returns the bin range [lo, hi) of the band over n bins: low is the
// first tenth, mid up to half, high the rest.
func (b Band) Range(n int) (lo, hi int) {
	switch b {
	case BandLow:
		return 0, max(n/10, 1)
	case BandMid:
		return n / 10, max(n/2, n/10+1)
	case BandHigh:
		return n / 2, n
	}
	return 0, n
}

// Signal is one analysis frame. Amplitude is smoothed; Frequencies holds
// the normalized magnitude of every bin scaled by the input intensity.
type Signal struct {
	Amplitude   float32
	Frequencies []float32
}

// Level returns the mean of the band's bins, or the amplitude for BandAll
// and for an empty spectrum.
func (s Signal) Level(b Band) float32 {
	if b == BandAll || len(s.Frequencies) == 0 {
		return s.Amplitude
	}
	lo, hi := b.Range(len(s.Frequencies))
	hi = min(hi, len(s.Frequencies))
	if lo >= hi {
		return 0
	}
	var sum float32
	for _, v := range s.Frequencies[lo:hi] {
		sum += v
	}
	return sum / float32(hi-lo)
}
