// Package app hosts a fluid simulation in a raylib window, or headless on
// the software device, and wires the ambient services around it: config
// hot reload, CSV output, the metrics endpoint and the on-screen UI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/artinkavousi/Webfluidsystem/config"
	"github.com/artinkavousi/Webfluidsystem/fluid"
	"github.com/artinkavousi/Webfluidsystem/gpu"
	"github.com/artinkavousi/Webfluidsystem/gpu/rlgpu"
	"github.com/artinkavousi/Webfluidsystem/gpu/soft"
	"github.com/artinkavousi/Webfluidsystem/telemetry"
	"github.com/artinkavousi/Webfluidsystem/ui"
)

// Title is shown in the window bar and the HUD.
const Title = "Web Fluid"

// HeadlessDT is the fixed timestep of headless runs.
const HeadlessDT = 1.0 / 60.0

// Options configures an App.
type Options struct {
	Config      *config.Config
	ConfigPath  string // watched for changes when Watch is set
	Watch       bool
	Preset      string
	Seed        uint64
	Headless    bool
	LogStats    bool
	StatsWindow float64 // seconds; zero uses the config
	OutputDir   string
	MetricsAddr string // empty uses the config
	Audio       bool
	Logger      *slog.Logger
}

// App holds the simulation and everything the host loop drives.
type App struct {
	opts   Options
	logger *slog.Logger
	sim    *fluid.Simulation
	rl     *rlgpu.Device // nil when headless
	preset string

	// UI, windowed only
	toggles   *ui.ToggleRegistry
	panel     *ui.Panel
	hud       *ui.HUD
	perfPanel *ui.PerfPanel
	showHUD   bool
	showPerf  bool

	// Pointer state
	mouseCaptured bool
	touches       map[int32]rl.Vector2

	// Hot reload
	watcher *config.Watcher
	cancel  context.CancelFunc

	// Telemetry
	output       *telemetry.OutputManager
	exporter     *telemetry.Exporter
	statsWindow  float64
	sinceFlush   float64
	observedTick int64

	guard fluid.TickGuard
}

// New builds an App. Windowed apps must be created after rl.InitWindow.
func New(opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Config == nil {
		opts.Config = config.Defaults()
	}
	cfg := opts.Config
	preset := "default"
	if opts.Preset != "" && opts.Preset != preset {
		var err error
		if cfg, err = config.ApplyPreset(cfg, opts.Preset); err != nil {
			return nil, err
		}
		preset = opts.Preset
	}

	a := &App{
		opts:        opts,
		logger:      opts.Logger,
		preset:      preset,
		touches:     make(map[int32]rl.Vector2),
		showHUD:     true,
		statsWindow: opts.StatsWindow,
	}
	if a.statsWindow <= 0 {
		a.statsWindow = cfg.Telemetry.StatsWindow
	}

	var dev gpu.Device
	if opts.Headless {
		dev = soft.New(soft.Options{SurfaceWidth: cfg.Screen.Width, SurfaceHeight: cfg.Screen.Height})
	} else {
		a.rl = rlgpu.New()
		dev = a.rl
	}

	sim, err := fluid.New(dev, fluid.Options{
		Config:    cfg,
		Logger:    opts.Logger,
		Seed:      opts.Seed,
		Autopilot: opts.Headless,
		FixedStep: opts.Headless,
	})
	if err != nil {
		a.closeDevice()
		return nil, fmt.Errorf("creating simulation: %w", err)
	}
	a.sim = sim

	if err := a.startServices(cfg); err != nil {
		a.Unload()
		return nil, err
	}

	if !opts.Headless {
		a.toggles = ui.NewToggleRegistry()
		a.hud = ui.NewHUD()
		a.panel = ui.NewPanel(0, 10, panelWidth, a.toggles)
		a.perfPanel = ui.NewPerfPanel(0, 0)
		a.layout(rl.GetScreenWidth(), rl.GetScreenHeight())
	}

	if err := sim.Start(); err != nil {
		a.Unload()
		return nil, fmt.Errorf("starting simulation: %w", err)
	}
	return a, nil
}

const panelWidth = 260

// startServices opens the output directory, the metrics endpoint, the
// config watcher and audio capture.
func (a *App) startServices(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	output, err := telemetry.NewOutputManager(a.opts.OutputDir)
	if err != nil {
		return fmt.Errorf("creating output manager: %w", err)
	}
	a.output = output
	if err := output.WriteConfig(cfg); err != nil {
		a.logger.Error("failed to write config snapshot", "error", err)
	}
	a.sim.OnQualityChange(func(r telemetry.QualityRecord) {
		if err := a.output.WriteQuality(r); err != nil {
			a.logger.Error("failed to write quality change", "error", err)
		}
	})

	addr := a.opts.MetricsAddr
	if addr == "" {
		addr = cfg.Telemetry.MetricsAddr
	}
	if addr != "" {
		a.exporter = telemetry.NewExporter(a.logger)
		if err := a.exporter.Serve(addr); err != nil {
			return err
		}
	}

	if a.opts.Watch && a.opts.ConfigPath != "" {
		w, err := config.NewWatcher(a.opts.ConfigPath, a.logger)
		if err != nil {
			return err
		}
		a.watcher = w
		w.Start(ctx)
	}

	if a.opts.Audio || cfg.Audio.Enabled {
		go func() {
			if err := a.sim.EnableAudio(ctx); err != nil {
				a.logger.Warn("audio unavailable", "error", err)
			}
		}()
	}
	return nil
}

// Sim returns the hosted simulation.
func (a *App) Sim() *fluid.Simulation { return a.sim }

// Tick returns the number of completed simulation ticks.
func (a *App) Tick() int64 { return a.sim.Ticks() }

// Preset returns the name of the active preset.
func (a *App) Preset() string { return a.preset }

// Update runs one windowed frame: input, reloads and a tick. It returns an
// error once the simulation cannot continue.
func (a *App) Update() error {
	a.handleInput()
	a.applyReloads()
	dt := float64(rl.GetFrameTime())
	return a.step(dt)
}

// RunHeadless ticks until maxTicks ticks completed (zero means unlimited),
// ctx is done or the simulation fails for good.
func (a *App) RunHeadless(ctx context.Context, maxTicks int64) error {
	return fluid.RunFixed(ctx, a.sim, HeadlessDT, maxTicks, &a.guard, func() {
		a.flushTelemetry(HeadlessDT)
		a.applyReloads()
	})
}

func (a *App) step(dt float64) error {
	err := a.sim.Tick(dt)
	if err != nil {
		a.logger.Warn("tick failed", "tick", a.sim.Ticks(), "failures", a.guard.Failures()+1, "error", err)
	}
	a.flushTelemetry(dt)
	return a.guard.Check(err)
}

// applyReloads applies at most one pending config reload. The active
// preset is layered over the reloaded file.
func (a *App) applyReloads() {
	if a.watcher == nil {
		return
	}
	select {
	case cfg := <-a.watcher.Updates():
		if a.preset != "default" {
			next, err := config.ApplyPreset(cfg, a.preset)
			if err != nil {
				a.logger.Error("failed to reapply preset", "preset", a.preset, "error", err)
				return
			}
			cfg = next
		}
		if err := a.sim.SetParams(cfg); err != nil {
			a.logger.Error("failed to apply reloaded config", "error", err)
			return
		}
		a.logger.Info("config reloaded", "path", a.opts.ConfigPath)
		if err := a.output.WriteConfig(cfg); err != nil {
			a.logger.Error("failed to write config snapshot", "error", err)
		}
	default:
	}
}

// applyPreset switches presets on top of the current config.
func (a *App) applyPreset(name string) {
	if err := a.sim.ApplyPreset(name); err != nil {
		a.logger.Error("failed to apply preset", "preset", name, "error", err)
		return
	}
	a.preset = name
}

// applyParams pushes in-place config edits into the simulation.
func (a *App) applyParams() {
	if err := a.sim.SetParams(a.sim.Config()); err != nil {
		a.logger.Error("failed to apply params", "error", err)
	}
}

// Screenshot captures the display into the output directory, or the
// working directory without one.
func (a *App) Screenshot(name string) (string, error) {
	if name == "" {
		name = fmt.Sprintf("fluid-%s.png", time.Now().Format("20060102-150405"))
	}
	path := filepath.Join(a.output.Dir(), name)
	if err := a.sim.SaveScreenshot(path); err != nil {
		return "", err
	}
	a.logger.Info("screenshot saved", "path", path)
	return path, nil
}

// Unload stops the services and releases every GPU resource.
func (a *App) Unload() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("stopping config watcher", "error", err)
		}
	}
	if a.sim != nil {
		a.sim.Dispose()
	}
	a.closeDevice()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.exporter.Close(ctx); err != nil {
		a.logger.Warn("stopping metrics server", "error", err)
	}
	if err := a.output.Close(); err != nil {
		a.logger.Error("closing output", "error", err)
	}
}

func (a *App) closeDevice() {
	if a.rl != nil {
		a.rl.Close()
		a.rl = nil
	}
}
