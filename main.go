package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/artinkavousi/Webfluidsystem/app"
	"github.com/artinkavousi/Webfluidsystem/config"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run on the software device without a window")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config snapshot and screenshots")
	seed := flag.Uint64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	preset := flag.String("preset", "", "Fluid preset: default, water, smoke, ink, fire")
	audio := flag.Bool("audio", false, "Drive audio-bound emitters from audio.file, or the synthetic signal")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (empty = use config)")
	watch := flag.Bool("watch", false, "Reload -config when the file changes")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Set up seed
	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = uint64(time.Now().UnixNano())
	}

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	opts := app.Options{
		Config:      cfg,
		ConfigPath:  *configPath,
		Watch:       *watch,
		Preset:      *preset,
		Seed:        rngSeed,
		Headless:    *headless,
		LogStats:    *logStats,
		StatsWindow: *statsWindow,
		OutputDir:   *outputDir,
		MetricsAddr: *metricsAddr,
		Audio:       *audio,
		Logger:      logger,
	}

	if *headless {
		// Headless mode - software device, fixed timestep, autopilot stirring
		a, err := app.New(opts)
		if err != nil {
			slog.Error("failed to start", "error", err)
			os.Exit(1)
		}

		slog.Info("starting headless simulation",
			"seed", rngSeed,
			"preset", a.Preset(),
			"max_ticks", *maxTicks,
		)

		if err := a.RunHeadless(context.Background(), int64(*maxTicks)); err != nil {
			slog.Error("simulation halted", "tick", a.Tick(), "error", err)
			a.Unload()
			os.Exit(1)
		}
		slog.Info("max ticks reached", "tick", a.Tick())
		if *outputDir != "" {
			if _, err := a.Screenshot("final.png"); err != nil {
				slog.Error("failed to save final frame", "error", err)
			}
		}
		a.Unload()
		return
	}

	// Graphical mode
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), app.Title)

	a, err := app.New(opts)
	if err != nil {
		slog.Error("failed to start", "error", err)
		rl.CloseWindow()
		os.Exit(1)
	}

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	for !rl.WindowShouldClose() {
		if err := a.Update(); err != nil {
			slog.Error("simulation halted", "tick", a.Tick(), "error", err)
			a.Unload()
			rl.CloseWindow()
			os.Exit(1)
		}
		a.Draw()

		if *maxTicks > 0 && a.Tick() >= int64(*maxTicks) {
			break
		}
	}
	a.Unload()
	rl.CloseWindow()
}
