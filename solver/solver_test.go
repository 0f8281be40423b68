package solver

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/artinkavousi/Webfluidsystem/field"
	"github.com/artinkavousi/Webfluidsystem/gpu"
	"github.com/artinkavousi/Webfluidsystem/gpu/soft"
	"github.com/artinkavousi/Webfluidsystem/resource"
	"github.com/artinkavousi/Webfluidsystem/shaders"
)

type fixture struct {
	dev    *soft.Device
	fields *field.Store
	solver *Solver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dev := soft.New(soft.Options{})
	t.Cleanup(dev.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	caps, err := gpu.Negotiate(dev, logger)
	if err != nil {
		t.Fatal(err)
	}
	set, err := shaders.Compile(dev, caps)
	if err != nil {
		t.Fatal(err)
	}
	mgr := resource.NewManager(dev, resource.Options{Logger: logger})
	store := field.NewStore(dev, mgr, caps, set.Copy, logger)
	if err := store.Init(field.Params{
		SimResolution:     64,
		DyeResolution:     64,
		BloomResolution:   64,
		BloomIterations:   2,
		SunraysResolution: 64,
	}, 64, 64); err != nil {
		t.Fatal(err)
	}
	return &fixture{dev: dev, fields: store, solver: New(dev, set, store)}
}

func (f *fixture) clear(target *field.Field, r, g, b, a float32) {
	f.dev.BindFramebuffer(target.Framebuffer())
	f.dev.Viewport(0, 0, target.Width(), target.Height())
	f.dev.ClearColor(r, g, b, a)
	f.dev.Clear()
}

var defaults = Params{
	Curl:                30,
	Pressure:            0.8,
	PressureIterations:  20,
	VelocityDissipation: 0.2,
	DensityDissipation:  1,
}

func TestSolver_StillFluidStaysStill(t *testing.T) {
	f := newFixture(t)

	for range 3 {
		if err := f.solver.Step(0.016, defaults); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	e, err := field.Energy(f.dev, f.fields.Velocity.Read, 2)
	if err != nil {
		t.Fatal(err)
	}
	if e != 0 {
		t.Errorf("velocity energy = %v, want 0", e)
	}
}

func TestSolver_DyeDissipatesAtRest(t *testing.T) {
	f := newFixture(t)
	f.clear(f.fields.Dye.Read, 1, 0.5, 0, 1)

	if err := f.solver.Step(0.016, defaults); err != nil {
		t.Fatal(err)
	}
	want := 1 / (1 + defaults.DensityDissipation*0.016)
	c, _ := f.dev.Texel(f.fields.Dye.Read.Texture(), 32, 32)
	if math.Abs(float64(c[0]-want)) > 1e-3 {
		t.Errorf("dye = %v, want %v", c[0], want)
	}
	if c[0] <= 2*c[1]-1e-3 || c[0] >= 2*c[1]+1e-3 {
		t.Errorf("dissipation changed hue: %v", c)
	}
}

func TestSolver_DissipationIsMonotonic(t *testing.T) {
	f := newFixture(t)
	f.clear(f.fields.Dye.Read, 1, 1, 1, 1)

	prev := math.Inf(1)
	for i := range 5 {
		if err := f.solver.Step(0.016, defaults); err != nil {
			t.Fatal(err)
		}
		mean, err := field.Mean(f.dev, f.fields.Dye.Read, 0)
		if err != nil {
			t.Fatal(err)
		}
		if mean >= prev {
			t.Fatalf("step %d: dye mean %v did not decrease from %v", i, mean, prev)
		}
		prev = mean
	}
}

func TestSolver_JacobiFixedPoint(t *testing.T) {
	f := newFixture(t)
	f.solver.Divergence()
	f.clear(f.fields.Pressure.Read, 0.25, 0, 0, 1)

	f.solver.Jacobi(10)

	for _, xy := range [][2]int{{0, 0}, {31, 17}, {63, 63}} {
		c, _ := f.dev.Texel(f.fields.Pressure.Read.Texture(), xy[0], xy[1])
		if c[0] != 0.25 {
			t.Errorf("pressure at %v = %v, want 0.25", xy, c[0])
		}
	}
}

func TestSolver_PressureOpposesSource(t *testing.T) {
	f := newFixture(t)
	vel := f.fields.Velocity.Read
	data := make([]float32, 4*64*64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			i := 4 * (y*64 + x)
			dx, dy := float32(x)-31.5, float32(y)-31.5
			if dx*dx+dy*dy < 64 {
				data[i], data[i+1] = dx*0.1, dy*0.1
			}
			data[i+3] = 1
		}
	}
	if err := f.dev.Upload(vel.Texture(), data); err != nil {
		t.Fatal(err)
	}

	f.solver.Divergence()
	f.solver.ClearPressure(0)
	f.solver.Jacobi(20)

	div, _ := f.dev.Texel(f.fields.Divergence.Texture(), 32, 32)
	p, _ := f.dev.Texel(f.fields.Pressure.Read.Texture(), 32, 32)
	if div[0] <= 0 {
		t.Fatalf("outflow divergence = %v, want positive", div[0])
	}
	if p[0] >= 0 {
		t.Errorf("pressure at a source = %v, want negative", p[0])
	}
}

func TestSolver_NotReady(t *testing.T) {
	f := newFixture(t)
	f.fields.Release()
	if err := f.solver.Step(0.016, defaults); !errors.Is(err, field.ErrNotReady) {
		t.Errorf("err = %v, want ErrNotReady", err)
	}
}

func TestSolver_ReportsDeviceErrors(t *testing.T) {
	f := newFixture(t)
	f.dev.LoseContext()
	if err := f.solver.Step(0.016, defaults); !errors.Is(err, gpu.ErrContextLost) {
		t.Errorf("err = %v, want ErrContextLost", err)
	}
}
