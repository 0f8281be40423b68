package audio

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/ojrac/opensimplex-go"
)

// Synthetic is the fallback source: a few sinusoids whose gains wander on
// simplex noise. The same seed always produces the same samples.
type Synthetic struct {
	rate  int
	noise opensimplex.Noise
	tones []tone
	n     int64
}

type tone struct {
	freq, gain, phase float64
}

// NewSynthetic creates a generator. A zero seed uses the current time.
func NewSynthetic(seed int64, rate int) *Synthetic {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	rng := rand.New(rand.NewPCG(uint64(seed), 0x5eed))
	// One tone per band, so every binding sees movement.
	bases := []float64{80, 600, 4000}
	tones := make([]tone, len(bases))
	for i, f := range bases {
		tones[i] = tone{
			freq:  f * (0.8 + 0.4*rng.Float64()),
			gain:  0.15 + 0.15*rng.Float64(),
			phase: 2 * math.Pi * rng.Float64(),
		}
	}
	return &Synthetic{rate: rate, noise: opensimplex.NewNormalized(seed), tones: tones}
}

func (s *Synthetic) Open(context.Context) error { return nil }

func (s *Synthetic) Read(dst []float32) (int, error) {
	rate := float64(s.rate)
	for i := range dst {
		t := float64(s.n) / rate
		var v float64
		for k, tn := range s.tones {
			// Gains drift over a few seconds.
			g := tn.gain * (0.25 + 1.5*s.noise.Eval2(t*0.4, float64(k)*10))
			v += g * math.Sin(2*math.Pi*tn.freq*t+tn.phase)
		}
		dst[i] = float32(min(max(v, -1), 1))
		s.n++
	}
	return len(dst), nil
}

func (s *Synthetic) SampleRate() int { return s.rate }

func (s *Synthetic) Close() error { return nil }
