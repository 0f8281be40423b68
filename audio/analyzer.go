package audio

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Analyzer defaults.
const (
	DefaultFFTSize   = 1024
	DefaultSmoothing = 0.8
)

// Analyzer reduces a window of samples to a Signal. The amplitude is the
// larger of the window RMS and the selected band's mean magnitude, scaled
// by intensity and smoothed exponentially across frames.
type Analyzer struct {
	fft       *fourier.FFT
	size      int
	band      Band
	intensity float32
	smoothing float32

	window   []float64
	coeffs   []complex128
	smoothed float32
}

// NewAnalyzer creates an analyzer over size-sample windows.
func NewAnalyzer(size int, band Band, intensity, smoothing float32) *Analyzer {
	if size < 2 {
		size = DefaultFFTSize
	}
	return &Analyzer{
		fft:       fourier.NewFFT(size),
		size:      size,
		band:      band,
		intensity: min(max(intensity, 0), 2),
		smoothing: min(max(smoothing, 0), 1),
		window:    make([]float64, size),
	}
}

// Size returns the window length in samples.
func (a *Analyzer) Size() int { return a.size }

// SetBand selects the band that feeds the amplitude.
func (a *Analyzer) SetBand(b Band) { a.band = b }

// SetIntensity scales later frames, clamped to [0, 2].
func (a *Analyzer) SetIntensity(v float32) { a.intensity = min(max(v, 0), 2) }

// Process analyzes samples, zero-padded or truncated to the window size.
func (a *Analyzer) Process(samples []float32) Signal {
	var sumSq float64
	for i := range a.window {
		var v float64
		if i < len(samples) {
			v = float64(samples[i])
		}
		sumSq += v * v
		// Hann window.
		a.window[i] = v * 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(a.size-1)))
	}
	rms := float32(math.Sqrt(sumSq / float64(a.size)))

	a.coeffs = a.fft.Coefficients(a.coeffs, a.window)
	// Drop the DC bin; a full-scale sine peaks near size/4 after the window.
	bins := a.coeffs[1:]
	norm := 4 / float64(a.size)
	freqs := make([]float32, len(bins))
	for i, c := range bins {
		freqs[i] = float32(min(cmplx.Abs(c)*norm, 1)) * a.intensity
	}

	lo, hi := a.band.Range(len(freqs))
	var bandSum float32
	for _, v := range freqs[lo:hi] {
		bandSum += v
	}
	bandAvg := bandSum / float32(max(hi-lo, 1))

	combined := max(rms*a.intensity, bandAvg)
	a.smoothed = a.smoothed*a.smoothing + combined*(1-a.smoothing)
	return Signal{Amplitude: a.smoothed, Frequencies: freqs}
}

// Reset clears the smoothing state.
func (a *Analyzer) Reset() { a.smoothed = 0 }
