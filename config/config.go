// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Fluid     FluidConfig     `yaml:"fluid"`
	Quality   QualityConfig   `yaml:"quality"`
	Resources ResourcesConfig `yaml:"resources"`
	Audio     AudioConfig     `yaml:"audio"`
	Emitters  []EmitterConfig `yaml:"emitters"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// FluidConfig is the runtime-mutable knob set of the solver and compositor.
type FluidConfig struct {
	SimResolution       int     `yaml:"sim_resolution"`
	DyeResolution       int     `yaml:"dye_resolution"`
	CaptureResolution   int     `yaml:"capture_resolution"`
	DensityDissipation  float64 `yaml:"density_dissipation"`
	VelocityDissipation float64 `yaml:"velocity_dissipation"`
	Pressure            float64 `yaml:"pressure"` // Damping applied to last frame's pressure
	PressureIterations  int     `yaml:"pressure_iterations"`
	Curl                float64 `yaml:"curl"`
	SplatRadius         float64 `yaml:"splat_radius"`
	SplatForce          float64 `yaml:"splat_force"`
	MaxDT               float64 `yaml:"max_dt"` // Upper bound on a tick's timestep

	Shading          bool     `yaml:"shading"`
	Colorful         bool     `yaml:"colorful"`
	ColorUpdateSpeed float64  `yaml:"color_update_speed"`
	Palette          []string `yaml:"palette"` // Hex colors; empty = random hues
	Hover            bool     `yaml:"hover"`
	Inverted         bool     `yaml:"inverted"` // Invert screenshot colors
	BackgroundColor  string   `yaml:"background_color"`
	Transparent      bool     `yaml:"transparent"`
	Brightness       float64  `yaml:"brightness"`
	RenderMode       int      `yaml:"render_mode"` // 0 gradient, 1 color, 2 tinted, 3 distortion
	Paused           bool     `yaml:"paused"`
	DrawWhilePaused  bool     `yaml:"draw_while_paused"`

	Bloom   BloomConfig   `yaml:"bloom"`
	Sunrays SunraysConfig `yaml:"sunrays"`
}

// BloomConfig holds bloom parameters.
type BloomConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Iterations int     `yaml:"iterations"`
	Resolution int     `yaml:"resolution"`
	Intensity  float64 `yaml:"intensity"`
	Threshold  float64 `yaml:"threshold"`
	SoftKnee   float64 `yaml:"soft_knee"`
}

// SunraysConfig holds light-shaft parameters.
type SunraysConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Resolution int     `yaml:"resolution"`
	Weight     float64 `yaml:"weight"`
}

// QualityConfig holds adaptive quality controller parameters.
type QualityConfig struct {
	Auto          bool    `yaml:"auto"`
	TargetFPS     float64 `yaml:"target_fps"`
	CheckInterval float64 `yaml:"check_interval"` // Seconds between step decisions
	Start         string  `yaml:"start"`          // Initial preset name
}

// ResourcesConfig holds resource pool parameters.
type ResourcesConfig struct {
	MaxPoolSize   int     `yaml:"max_pool_size"`  // Per pool key
	SweepInterval float64 `yaml:"sweep_interval"` // Seconds
	TTL           float64 `yaml:"ttl"`            // Seconds a pooled entry may stay unused
}

// AudioConfig holds audio input parameters.
type AudioConfig struct {
	Enabled    bool    `yaml:"enabled"`
	File       string  `yaml:"file"` // WAV file to loop as the capture device
	Attempts   int     `yaml:"attempts"`
	RetryDelay float64 `yaml:"retry_delay"` // Seconds between attempts
	FFTSize    int     `yaml:"fft_size"`
	Intensity  float64 `yaml:"intensity"`
	Smoothing  float64 `yaml:"smoothing"`
	Seed       int64   `yaml:"seed"` // Synthetic signal seed; 0 = time seeded
}

// EmitterConfig declares an emitter created at startup.
type EmitterConfig struct {
	Name      string              `yaml:"name"`
	Kind      string              `yaml:"kind"` // point, line, dye
	Position  [2]float64          `yaml:"position"`
	Direction [2]float64          `yaml:"direction"`
	End       [2]float64          `yaml:"end"`       // line only
	Segments  int                 `yaml:"segments"`  // line only
	FadeRate  float64             `yaml:"fade_rate"` // dye only
	Force     float64             `yaml:"force"`
	Radius    float64             `yaml:"radius"`
	Color     [3]float64          `yaml:"color"`
	Active    bool                `yaml:"active"`
	Audio     *AudioBindingConfig `yaml:"audio,omitempty"`
}

// AudioBindingConfig maps an audio band onto an emitter's force and radius.
type AudioBindingConfig struct {
	Band           string  `yaml:"band"` // low, mid, high, all
	AffectsForce   bool    `yaml:"affects_force"`
	AffectsRadius  bool    `yaml:"affects_radius"`
	MinForce       float64 `yaml:"min_force"`
	MaxForce       float64 `yaml:"max_force"`
	MinRadius      float64 `yaml:"min_radius"`
	MaxRadius      float64 `yaml:"max_radius"`
	Intensity      float64 `yaml:"intensity"`
	Smoothing      float64 `yaml:"smoothing"`
	ForceExponent  float64 `yaml:"force_exponent"`
	RadiusExponent float64 `yaml:"radius_exponent"`
}

// TelemetryConfig holds performance reporting parameters.
type TelemetryConfig struct {
	PerfWindow  int     `yaml:"perf_window"`  // Ticks in the perf rolling window
	StatsWindow float64 `yaml:"stats_window"` // Seconds between logged stats
	MetricsAddr string  `yaml:"metrics_addr"` // Empty disables the /metrics endpoint
}

// DerivedConfig holds values computed from the loaded config.
type DerivedConfig struct {
	Background [3]float32
	Palette    [][3]float32
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Set replaces the global configuration, e.g. after a hot reload.
func Set(cfg *Config) {
	global = cfg
}

// Defaults returns the embedded default configuration.
func Defaults() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge returns a copy of base with the YAML patch applied over it. Fields
// absent from the patch keep their base values.
func Merge(base *Config, patch []byte) (*Config, error) {
	cfg, err := base.Clone()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(patch, cfg); err != nil {
		return nil, fmt.Errorf("parsing patch: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() (*Config, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	out := &Config{}
	if err := yaml.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("copying config: %w", err)
	}
	out.Derived = c.Derived
	return out, nil
}

func (c *Config) finish() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return c.computeDerived()
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate checks values the simulation cannot run with.
func (c *Config) Validate() error {
	f := &c.Fluid
	switch {
	case f.SimResolution <= 0 || f.DyeResolution <= 0:
		return fmt.Errorf("%w: resolutions must be positive", ErrInvalid)
	case f.PressureIterations < 1:
		return fmt.Errorf("%w: pressure_iterations must be at least 1", ErrInvalid)
	case f.DensityDissipation < 0 || f.VelocityDissipation < 0:
		return fmt.Errorf("%w: dissipation must not be negative", ErrInvalid)
	case f.MaxDT <= 0:
		return fmt.Errorf("%w: max_dt must be positive", ErrInvalid)
	case f.RenderMode < 0 || f.RenderMode > 3:
		return fmt.Errorf("%w: render_mode %d out of range", ErrInvalid, f.RenderMode)
	case f.Bloom.Iterations < 0:
		return fmt.Errorf("%w: bloom iterations must not be negative", ErrInvalid)
	case c.Resources.MaxPoolSize < 0:
		return fmt.Errorf("%w: max_pool_size must not be negative", ErrInvalid)
	}
	if c.Quality.Start != "" && !isQualityName(c.Quality.Start) {
		return fmt.Errorf("%w: unknown quality preset %q", ErrInvalid, c.Quality.Start)
	}
	return nil
}

func isQualityName(name string) bool {
	switch strings.ToLower(name) {
	case "ultra", "high", "medium", "low":
		return true
	}
	return false
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() error {
	bg, err := ParseHexColor(c.Fluid.BackgroundColor)
	if err != nil {
		return fmt.Errorf("%w: background_color: %v", ErrInvalid, err)
	}
	c.Derived.Background = bg

	c.Derived.Palette = nil
	for _, hex := range c.Fluid.Palette {
		col, err := ParseHexColor(hex)
		if err != nil {
			return fmt.Errorf("%w: palette: %v", ErrInvalid, err)
		}
		c.Derived.Palette = append(c.Derived.Palette, col)
	}

	return nil
}

// ParseHexColor parses #rgb or #rrggbb into linear 0-1 components.
func ParseHexColor(s string) ([3]float32, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return [3]float32{}, fmt.Errorf("color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return [3]float32{}, fmt.Errorf("color %q: %w", s, err)
	}
	return [3]float32{
		float32(v>>16&0xff) / 255,
		float32(v>>8&0xff) / 255,
		float32(v&0xff) / 255,
	}, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
