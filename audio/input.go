package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Input retry defaults.
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

// InputOptions configures an Input.
type InputOptions struct {
	Attempts   int
	RetryDelay time.Duration
	FFTSize    int
	Band       Band
	Intensity  float32
	Smoothing  float32
	// Seed of the synthetic fallback. Zero seeds from the clock.
	Seed   int64
	Logger *slog.Logger
}

// Input owns the active source and the latest Signal. Enable may run on
// its own goroutine; Update and Signal are called from the render thread.
type Input struct {
	opts     InputOptions
	logger   *slog.Logger
	analyzer *Analyzer

	mu        sync.Mutex
	source    Source
	synthetic bool
	window    []float32
	chunk     []float32
	signal    Signal
}

// NewInput creates a disabled input.
func NewInput(opts InputOptions) *Input {
	if opts.Attempts < 1 {
		opts.Attempts = DefaultAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.FFTSize < 2 {
		opts.FFTSize = DefaultFFTSize
	}
	if opts.Intensity == 0 {
		opts.Intensity = 1
	}
	if opts.Smoothing == 0 {
		opts.Smoothing = DefaultSmoothing
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	a := NewAnalyzer(opts.FFTSize, opts.Band, opts.Intensity, opts.Smoothing)
	return &Input{
		opts:     opts,
		logger:   opts.Logger,
		analyzer: a,
		window:   make([]float32, a.Size()),
	}
}

// Enable opens src, retrying with a constant delay. When every attempt
// fails the input switches to the synthetic signal and Enable returns nil;
// only a cancelled ctx is reported.
func (in *Input) Enable(ctx context.Context, src Source) error {
	attempt := 0
	open := func() error {
		attempt++
		if src == nil {
			return backoff.Permanent(fmt.Errorf("%w: no source", ErrUnavailable))
		}
		return src.Open(ctx)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(in.opts.RetryDelay), uint64(in.opts.Attempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(open, policy, func(err error, wait time.Duration) {
		in.logger.Warn("audio open failed", "attempt", attempt, "retry_in", wait, "error", err)
	})
	if err == nil {
		in.swap(src, false)
		in.logger.Info("audio enabled", "sample_rate", src.SampleRate())
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	in.logger.Warn("audio unavailable, using synthetic signal", "attempts", attempt, "error", err)
	in.swap(NewSynthetic(in.opts.Seed, DefaultSampleRate), true)
	return nil
}

// EnableSynthetic switches straight to the fallback signal.
func (in *Input) EnableSynthetic() {
	in.swap(NewSynthetic(in.opts.Seed, DefaultSampleRate), true)
}

func (in *Input) swap(src Source, synthetic bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.source != nil {
		in.source.Close()
	}
	in.source, in.synthetic = src, synthetic
	clear(in.window)
	in.analyzer.Reset()
}

// Enabled reports whether a source is active.
func (in *Input) Enabled() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.source != nil
}

// Synthetic reports whether the fallback signal is active.
func (in *Input) Synthetic() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.synthetic
}

// SetBand selects the band that feeds the amplitude.
func (in *Input) SetBand(b Band) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.analyzer.SetBand(b)
}

// SetIntensity scales the signal.
func (in *Input) SetIntensity(v float32) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.analyzer.SetIntensity(v)
}

// Update pulls dt seconds of samples from the source and reanalyzes the
// latest window. A source read error drops to the synthetic signal.
func (in *Input) Update(dt float64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.source == nil {
		return
	}
	n := min(max(int(dt*float64(in.source.SampleRate())), 1), len(in.window))
	if cap(in.chunk) < n {
		in.chunk = make([]float32, n)
	}
	chunk := in.chunk[:n]
	read, err := in.source.Read(chunk)
	if err != nil {
		in.logger.Warn("audio read failed, using synthetic signal", "error", err)
		in.source.Close()
		in.source, in.synthetic = NewSynthetic(in.opts.Seed, DefaultSampleRate), true
		return
	}
	copy(in.window, in.window[read:])
	copy(in.window[len(in.window)-read:], chunk[:read])
	in.signal = in.analyzer.Process(in.window)
}

// Signal returns the latest analysis frame. It never blocks on the source.
func (in *Input) Signal() Signal {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.signal
}

// Disable closes the source and zeroes the signal.
func (in *Input) Disable() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.source != nil {
		in.source.Close()
	}
	in.source, in.synthetic, in.signal = nil, false, Signal{}
}
