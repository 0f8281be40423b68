// Package fluid assembles the simulation: one device, its resources and
// fields, the solver and compositor on top, and the inputs that drive them.
// Everything hangs off a Simulation value, so several can share a process.
package fluid

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/artinkavousi/Webfluidsystem/audio"
	"github.com/artinkavousi/Webfluidsystem/compositor"
	"github.com/artinkavousi/Webfluidsystem/config"
	"github.com/artinkavousi/Webfluidsystem/emitter"
	"github.com/artinkavousi/Webfluidsystem/field"
	"github.com/artinkavousi/Webfluidsystem/gpu"
	"github.com/artinkavousi/Webfluidsystem/inject"
	"github.com/artinkavousi/Webfluidsystem/quality"
	"github.com/artinkavousi/Webfluidsystem/resource"
	"github.com/artinkavousi/Webfluidsystem/shaders"
	"github.com/artinkavousi/Webfluidsystem/solver"
	"github.com/artinkavousi/Webfluidsystem/telemetry"
)

var (
	// ErrNotStarted is returned by Tick and Render before Start or after Stop.
	ErrNotStarted = errors.New("fluid: simulation not started")
	// ErrDisposed is returned by every operation after Dispose.
	ErrDisposed = errors.New("fluid: simulation disposed")
)

// Options configures a Simulation.
type Options struct {
	// Config supplies every knob. Nil uses the embedded defaults.
	Config *config.Config
	Logger *slog.Logger
	// Seed drives random splats and colors. Zero seeds from the clock.
	Seed uint64
	// Clock is read for resource sweeps and quality windows.
	Clock func() time.Time
	// Autopilot lets a wandering pointer stir the fluid when hover is on.
	// Hosts without a real pointer set it.
	Autopilot bool
	// FixedStep makes frame timing follow dt instead of the wall clock.
	FixedStep bool
	// Quiet skips the burst of random splats queued by Start.
	Quiet bool
}

// Simulation owns one GPU context's worth of state.
type Simulation struct {
	cfg    *config.Config
	logger *slog.Logger
	clock  func() time.Time
	opts   Options

	dev     *gpu.StateCache
	caps    gpu.Capabilities
	mgr     *resource.Manager
	progs   *shaders.Set
	store   *field.Store
	solver  *solver.Solver
	inject  *inject.Injector
	comp    *compositor.Compositor
	quality *quality.Controller
	audio   *audio.Input
	perf    *telemetry.PerfCollector

	rng     *rand.Rand
	palette *inject.Palette

	// Guards everything written by input handlers.
	inputMu  sync.Mutex
	emitters *emitter.Manager
	pending  []func()
	bursts   []int
	mouse    pointer
	touches  map[int]*pointer
	pilot    *autopilot

	width, height int
	running       bool
	disposed      bool
	tickOpen      bool
	ticks         int64
	simTime       float64
	colorTimer    float64
	lastFrame     gpu.FrameCounters
	onQuality     func(telemetry.QualityRecord)
}

// New negotiates capabilities on dev and builds every component. The
// fields are allocated by Start.
func New(dev gpu.Device, opts Options) (*Simulation, error) {
	if opts.Config == nil {
		opts.Config = config.Defaults()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}
	cfg := opts.Config
	logger := opts.Logger

	cache := gpu.NewStateCache(dev)
	caps, err := gpu.Negotiate(cache, logger)
	if err != nil {
		return nil, fmt.Errorf("negotiating capabilities: %w", err)
	}

	mgr := resource.NewManager(cache, resource.Options{
		MaxPoolSize:   cfg.Resources.MaxPoolSize,
		SweepInterval: seconds(cfg.Resources.SweepInterval),
		TTL:           seconds(cfg.Resources.TTL),
		Clock:         opts.Clock,
		Logger:        logger,
	})
	progs, err := shaders.Compile(cache, caps)
	if err != nil {
		mgr.Dispose()
		return nil, fmt.Errorf("compiling programs: %w", err)
	}
	store := field.NewStore(cache, mgr, caps, progs.Copy, logger)

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	start, err := quality.ParseLevel(cfg.Quality.Start)
	if err != nil {
		start = quality.Ultra
	}

	s := &Simulation{
		cfg:     cfg,
		logger:  logger,
		clock:   opts.Clock,
		opts:    opts,
		dev:     cache,
		caps:    caps,
		mgr:     mgr,
		progs:   progs,
		store:   store,
		solver:  solver.New(cache, progs, store),
		inject:  inject.New(cache, progs, store, rng),
		comp:    compositor.New(cache, caps, progs, store, mgr),
		rng:     rng,
		palette: inject.NewPalette(rng, cfg.Derived.Palette, float32(cfg.Fluid.Brightness)),
		quality: quality.New(qualityBase(cfg), quality.Options{
			TargetFPS:     cfg.Quality.TargetFPS,
			CheckInterval: seconds(cfg.Quality.CheckInterval),
			Auto:          cfg.Quality.Auto,
			Start:         start,
			Logger:        logger,
		}),
		audio: audio.NewInput(audio.InputOptions{
			Attempts:   cfg.Audio.Attempts,
			RetryDelay: seconds(cfg.Audio.RetryDelay),
			FFTSize:    cfg.Audio.FFTSize,
			Intensity:  float32(cfg.Audio.Intensity),
			Smoothing:  float32(cfg.Audio.Smoothing),
			Seed:       cfg.Audio.Seed,
			Logger:     logger,
		}),
		perf:     telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		emitters: emitter.NewManager(),
		touches:  make(map[int]*pointer),
	}
	s.perf.SetClock(opts.Clock)
	s.comp.SetTimer(s.perf)
	s.inject.SetRadius(float32(cfg.Fluid.SplatRadius))
	s.width, s.height = cache.SurfaceSize()
	s.inject.SetAspect(s.width, s.height)
	if opts.Autopilot {
		s.pilot = newAutopilot(opts.Seed, s.palette.Next())
	}

	for i, ec := range cfg.Emitters {
		e, err := emitter.FromConfig(ec)
		if err != nil {
			s.Dispose()
			return nil, fmt.Errorf("emitter %d: %w", i, err)
		}
		s.emitters.Add(e)
	}

	logger.Info("simulation created",
		"revision", caps.Revision,
		"linear_filtering", caps.LinearFiltering,
		"half_float", caps.HalfFloat(),
		"emitters", s.emitters.Len(),
	)
	return s, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func qualityBase(cfg *config.Config) quality.Base {
	return quality.Base{
		SimResolution:     cfg.Fluid.SimResolution,
		DyeResolution:     cfg.Fluid.DyeResolution,
		BloomIterations:   cfg.Fluid.Bloom.Iterations,
		BloomResolution:   cfg.Fluid.Bloom.Resolution,
		SunraysResolution: cfg.Fluid.Sunrays.Resolution,
	}
}

// Config returns the active configuration. Callers must not modify it;
// use SetParams.
func (s *Simulation) Config() *config.Config { return s.cfg }

// Capabilities returns what the device negotiated.
func (s *Simulation) Capabilities() gpu.Capabilities { return s.caps }

// Device returns the state-cached device everything draws through.
func (s *Simulation) Device() gpu.Device { return s.dev }

// Ticks returns the number of completed ticks.
func (s *Simulation) Ticks() int64 { return s.ticks }

// SimTime returns the simulated seconds so far.
func (s *Simulation) SimTime() float64 { return s.simTime }

// Running reports whether Start was called and Stop was not.
func (s *Simulation) Running() bool { return s.running }

// OnQualityChange registers fn to hear about every quality step.
func (s *Simulation) OnQualityChange(fn func(telemetry.QualityRecord)) {
	s.onQuality = fn
}

// fieldParams sizes the store for the active quality preset. Without
// linear filtering the dye is halved to pay for manual interpolation.
func (s *Simulation) fieldParams() field.Params {
	p := s.quality.Preset()
	dye := p.DyeResolution
	if s.caps.ManualFiltering() {
		dye = max(dye/2, 1)
	}
	return field.Params{
		SimResolution:     p.SimResolution,
		DyeResolution:     dye,
		BloomResolution:   p.BloomResolution,
		BloomIterations:   p.BloomIterations,
		SunraysResolution: p.SunraysResolution,
	}
}

// Start allocates the fields at the current surface size and queues the
// opening burst of random splats. Starting twice is a no-op.
func (s *Simulation) Start() error {
	if s.disposed {
		return ErrDisposed
	}
	if s.running {
		return nil
	}
	if !s.store.Ready() {
		if err := s.store.Init(s.fieldParams(), s.width, s.height); err != nil {
			return fmt.Errorf("initializing fields: %w", err)
		}
		if !s.opts.Quiet {
			s.MultipleSplats(inject.BurstSize(s.rng))
		}
	}
	s.running = true
	s.logger.Info("simulation started", "width", s.width, "height", s.height, "quality", s.quality.Level().String())
	return nil
}

// Stop pauses ticking. Fields keep their content for a later Start.
func (s *Simulation) Stop() {
	if s.running {
		s.running = false
		s.logger.Info("simulation stopped", "ticks", s.ticks)
	}
}

// Resize adapts to a new surface size. Fields are only reallocated once
// they exist; before Start the size is just recorded.
func (s *Simulation) Resize(width, height int) error {
	if s.disposed {
		return ErrDisposed
	}
	if width <= 0 || height <= 0 || (width == s.width && height == s.height) {
		return nil
	}
	s.width, s.height = width, height
	s.inject.SetAspect(width, height)
	if !s.store.Ready() {
		return nil
	}
	if err := s.store.Init(s.fieldParams(), width, height); err != nil {
		return fmt.Errorf("resizing fields: %w", err)
	}
	return nil
}

// Dispose releases every device object the simulation holds. It is safe to
// call more than once.
func (s *Simulation) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.running = false
	s.audio.Disable()
	s.store.Release()
	s.progs.Delete()
	s.mgr.Dispose()
	s.dev.Reset()
	s.onQuality = nil
	s.inputMu.Lock()
	s.pending = nil
	s.inputMu.Unlock()
	s.logger.Info("simulation disposed", "ticks", s.ticks)
}

// Disposed reports whether Dispose ran.
func (s *Simulation) Disposed() bool { return s.disposed }

// Tick advances the simulation by dt seconds, clamped to max_dt. A device
// error abandons the rest of the tick; the next one starts clean.
func (s *Simulation) Tick(dt float64) error {
	if s.disposed {
		return ErrDisposed
	}
	if !s.running {
		return ErrNotStarted
	}
	if s.tickOpen {
		s.perf.EndTick()
	}
	s.lastFrame = s.dev.BeginFrame()
	if s.opts.FixedStep {
		s.perf.RecordFrameDuration(seconds(dt))
	} else {
		s.perf.RecordFrame()
	}
	s.perf.StartTick()
	s.tickOpen = true

	dt = min(dt, s.cfg.Fluid.MaxDT)
	if dt < 0 {
		dt = 0
	}
	paused := s.cfg.Fluid.Paused
	s.simTime += dt

	s.perf.StartPhase(telemetry.PhaseInputs)
	if !paused {
		s.updateColors(dt)
	}
	s.audio.Update(dt)
	if !paused || s.cfg.Fluid.DrawWhilePaused {
		s.applyInputs(dt)
	}

	if !paused && dt > 0 {
		s.perf.StartPhase(telemetry.PhaseSolver)
		if err := s.solver.Step(float32(dt), s.solverParams()); err != nil {
			return s.abandon(err)
		}
	}

	now := s.clock()
	s.mgr.Maintain(now)

	s.perf.StartPhase(telemetry.PhaseQuality)
	if err := s.observeQuality(now); err != nil {
		return s.abandon(err)
	}
	s.perf.EndPhase()

	if err := s.dev.Error(); err != nil {
		return s.abandon(err)
	}
	s.ticks++
	return nil
}

// abandon drops the rest of the frame after a device error.
func (s *Simulation) abandon(err error) error {
	n := gpu.DrainErrors(s.dev)
	if gpu.IsFatal(err) {
		s.logger.Error("fatal device error", "tick", s.ticks, "error", err)
	} else {
		s.logger.Warn("frame abandoned", "tick", s.ticks, "error", err, "dropped_errors", n)
	}
	return fmt.Errorf("tick %d: %w", s.ticks, err)
}

func (s *Simulation) solverParams() solver.Params {
	f := &s.cfg.Fluid
	return solver.Params{
		Curl:                float32(f.Curl),
		Pressure:            float32(f.Pressure),
		PressureIterations:  f.PressureIterations,
		VelocityDissipation: float32(f.VelocityDissipation),
		DensityDissipation:  float32(f.DensityDissipation),
	}
}

// observeQuality feeds the controller and reallocates the fields when the
// preset resolution changed.
func (s *Simulation) observeQuality(now time.Time) error {
	fps := s.perf.Stats().FPS
	if fps <= 0 {
		return nil
	}
	from := s.quality.Level()
	if !s.quality.Observe(fps, now) {
		return nil
	}
	if err := s.reinit(); err != nil {
		return err
	}
	if s.onQuality != nil {
		s.onQuality(telemetry.QualityRecord{
			Tick:    s.ticks,
			SimTime: s.simTime,
			From:    from.String(),
			To:      s.quality.Level().String(),
			MeanFPS: s.quality.Stats().MeanFPS,
		})
	}
	return nil
}

// reinit resizes the fields when the wanted parameters differ from the
// allocated ones.
func (s *Simulation) reinit() error {
	if !s.store.Ready() {
		return nil
	}
	p := s.fieldParams()
	if p == s.store.Params() {
		return nil
	}
	if err := s.store.Init(p, s.width, s.height); err != nil {
		return fmt.Errorf("reinitializing fields: %w", err)
	}
	return nil
}

// Quality returns the quality controller state.
func (s *Simulation) Quality() quality.Stats { return s.quality.Stats() }

// SetQualityLevel forces a preset and turns automatic stepping off.
func (s *Simulation) SetQualityLevel(l quality.Level) error {
	if s.disposed {
		return ErrDisposed
	}
	s.quality.SetAuto(false)
	s.quality.SetLevel(l)
	return s.reinit()
}

// renderParams caps the display knobs by the quality preset and the
// device's filtering support.
func (s *Simulation) renderParams() compositor.Params {
	f := &s.cfg.Fluid
	preset := s.quality.Preset()
	linear := s.caps.LinearFiltering
	bg := s.cfg.Derived.Background
	return compositor.Params{
		Shading:        f.Shading && preset.Shading && linear,
		Bloom:          f.Bloom.Enabled && linear,
		BloomIntensity: float32(f.Bloom.Intensity),
		BloomThreshold: float32(f.Bloom.Threshold),
		BloomSoftKnee:  float32(f.Bloom.SoftKnee),
		Sunrays:        f.Sunrays.Enabled && preset.Sunrays && linear,
		SunraysWeight:  float32(f.Sunrays.Weight),
		Transparent:    f.Transparent,
		Background:     gpu.Vec3{bg[0], bg[1], bg[2]},
		Mode:           shaders.RenderMode(f.RenderMode),
		Gradient:       compositor.DefaultGradient,
	}
}

// Render draws the current frame to the default framebuffer.
func (s *Simulation) Render() error {
	if s.disposed {
		return ErrDisposed
	}
	if !s.store.Ready() {
		return ErrNotStarted
	}
	w, h := s.dev.SurfaceSize()
	s.dev.BindFramebuffer(0)
	s.dev.Viewport(0, 0, w, h)
	err := s.comp.Render(nil, s.renderParams())
	if s.tickOpen {
		s.perf.EndTick()
		s.tickOpen = false
	}
	if err != nil {
		return s.abandon(err)
	}
	return nil
}

// InvalidateState forgets the cached device state. Hosts that draw with
// the same context between frames call it before the next Tick.
func (s *Simulation) InvalidateState() { s.dev.Reset() }

// SetParams replaces the configuration. Knobs take effect on the next
// tick; resolution changes reallocate the fields now.
func (s *Simulation) SetParams(cfg *config.Config) error {
	if s.disposed {
		return ErrDisposed
	}
	if cfg == nil {
		return fmt.Errorf("%w: nil config", config.ErrInvalid)
	}
	s.cfg = cfg
	s.inject.SetRadius(float32(cfg.Fluid.SplatRadius))
	s.palette.SetColors(cfg.Derived.Palette, float32(cfg.Fluid.Brightness))
	s.quality.Rebase(qualityBase(cfg))
	s.quality.SetAuto(cfg.Quality.Auto)
	s.audio.SetIntensity(float32(cfg.Audio.Intensity))
	return s.reinit()
}

// ApplyPreset switches to a named fluid preset.
func (s *Simulation) ApplyPreset(name string) error {
	cfg, err := config.ApplyPreset(s.cfg, name)
	if err != nil {
		return err
	}
	if err := s.SetParams(cfg); err != nil {
		return err
	}
	s.logger.Info("preset applied", "preset", name)
	return nil
}

// TogglePause flips the paused knob and returns the new state.
func (s *Simulation) TogglePause() bool {
	s.cfg.Fluid.Paused = !s.cfg.Fluid.Paused
	return s.cfg.Fluid.Paused
}

// GetPerformanceStats reports frame rate, memory and the last frame's draw
// counts. It has no side effects.
func (s *Simulation) GetPerformanceStats() telemetry.PerformanceStats {
	perf := s.perf.Stats()
	return telemetry.PerformanceStats{
		FPS:               perf.FPS,
		FrameTime:         perf.FrameDuration,
		GPUMemoryEstimate: s.mgr.Stats().TotalBytes(),
		DrawCalls:         s.lastFrame.DrawCalls,
		Triangles:         s.lastFrame.Triangles,
	}
}

// PerfStats returns the per-phase timing window.
func (s *Simulation) PerfStats() telemetry.PerfStats { return s.perf.Stats() }

// ResourceStats returns the resource manager counters.
func (s *Simulation) ResourceStats() resource.Stats { return s.mgr.Stats() }
