// Package quality steps the simulation between fixed presets to hold a
// target frame rate.
package quality

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Controller defaults.
const (
	DefaultTargetFPS     = 60
	DefaultCheckInterval = 5 * time.Second

	stepDownRatio   = 0.8
	stepUpRatio     = 0.95
	stepUpFloorRate = 0.9
)

// Level orders the presets from best to cheapest.
type Level int

const (
	Ultra Level = iota
	High
	Medium
	Low
)

var levelNames = [...]string{"ultra", "high", "medium", "low"}

func (l Level) String() string {
	if l < Ultra || l > Low {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel parses a preset name, case-insensitively.
func ParseLevel(name string) (Level, error) {
	for i, n := range levelNames {
		if strings.EqualFold(name, n) {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("unknown quality level %q", name)
}

// Base holds the configured values the presets scale from.
type Base struct {
	SimResolution     int
	DyeResolution     int
	BloomIterations   int
	BloomResolution   int
	SunraysResolution int
}

// Preset is what a level allows. Sunrays and Shading cap the configured
// toggles; they never turn an effect on.
type Preset struct {
	Level             Level
	SimResolution     int
	DyeResolution     int
	BloomIterations   int
	BloomResolution   int
	SunraysResolution int
	Sunrays           bool
	Shading           bool
}

// Presets derives the four presets from base. Every resolution scales by
// 1, 0.8, 0.6 and 0.4 from Ultra to Low.
func Presets(base Base) [4]Preset {
	n := base.BloomIterations
	preset := func(l Level, f float64, iterations int, effects bool) Preset {
		scale := func(res int) int { return max(int(math.Round(float64(res)*f)), 1) }
		return Preset{
			Level:             l,
			SimResolution:     scale(base.SimResolution),
			DyeResolution:     scale(base.DyeResolution),
			BloomIterations:   iterations,
			BloomResolution:   scale(base.BloomResolution),
			SunraysResolution: scale(base.SunraysResolution),
			Sunrays:           effects,
			Shading:           effects,
		}
	}
	return [4]Preset{
		preset(Ultra, 1, n, true),
		preset(High, 0.8, max(n-1, 0), true),
		preset(Medium, 0.6, max(n-2, 2), true),
		preset(Low, 0.4, 2, false),
	}
}

// Options configures a Controller.
type Options struct {
	TargetFPS     float64
	CheckInterval time.Duration
	Auto          bool
	Start         Level
	Logger        *slog.Logger
}

// Stats describes the controller state.
type Stats struct {
	Level   Level
	Auto    bool
	MeanFPS float64
	Samples int
	Steps   int
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("level", s.Level.String()),
		slog.Bool("auto", s.Auto),
		slog.Float64("mean_fps", s.MeanFPS),
		slog.Int("samples", s.Samples),
		slog.Int("steps", s.Steps),
	)
}

// Controller is a two-threshold hysteretic controller. Samples collected
// over one check interval decide at most one step; any step discards them.
type Controller struct {
	presets  [4]Preset
	target   float64
	interval time.Duration
	auto     bool
	level    Level
	logger   *slog.Logger

	samples     []float64
	windowStart time.Time
	steps       int
}

// New creates a controller over the presets derived from base.
func New(base Base, opts Options) *Controller {
	if opts.TargetFPS <= 0 {
		opts.TargetFPS = DefaultTargetFPS
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = DefaultCheckInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		presets:  Presets(base),
		target:   opts.TargetFPS,
		interval: opts.CheckInterval,
		auto:     opts.Auto,
		level:    min(max(opts.Start, Ultra), Low),
		logger:   opts.Logger,
	}
}

// Level returns the active level.
func (c *Controller) Level() Level { return c.level }

// Preset returns the active preset.
func (c *Controller) Preset() Preset { return c.presets[c.level] }

// Rebase recomputes the presets after a configuration change.
func (c *Controller) Rebase(base Base) {
	c.presets = Presets(base)
}

// SetAuto turns automatic stepping on or off. Either way the window restarts.
func (c *Controller) SetAuto(auto bool) {
	c.auto = auto
	c.reset()
}

// SetLevel forces a level and restarts the window.
func (c *Controller) SetLevel(l Level) {
	c.level = min(max(l, Ultra), Low)
	c.reset()
}

func (c *Controller) reset() {
	c.samples = c.samples[:0]
	c.windowStart = time.Time{}
}

// Observe records one FPS sample taken at now and reports whether the
// level changed.
func (c *Controller) Observe(fps float64, now time.Time) bool {
	if !c.auto {
		return false
	}
	if c.windowStart.IsZero() {
		c.windowStart = now
	}
	c.samples = append(c.samples, fps)
	if now.Sub(c.windowStart) < c.interval {
		return false
	}

	mean := stat.Mean(c.samples, nil)
	next := c.level
	switch {
	case mean < c.target*stepDownRatio && c.level < Low:
		next = c.level + 1
	case mean > c.target*stepUpRatio && c.level > Ultra && c.allAbove(c.target*stepUpFloorRate):
		next = c.level - 1
	}

	c.samples = c.samples[:0]
	c.windowStart = now
	if next == c.level {
		return false
	}
	c.logger.Info("quality step",
		"from", c.level.String(),
		"to", next.String(),
		"mean_fps", mean,
	)
	c.level = next
	c.steps++
	c.windowStart = time.Time{}
	return true
}

func (c *Controller) allAbove(v float64) bool {
	for _, s := range c.samples {
		if s <= v {
			return false
		}
	}
	return true
}

// Stats returns the controller state.
func (c *Controller) Stats() Stats {
	s := Stats{Level: c.level, Auto: c.auto, Samples: len(c.samples), Steps: c.steps}
	if len(c.samples) > 0 {
		s.MeanFPS = stat.Mean(c.samples, nil)
	}
	return s
}
