package solver

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/artinkavousi/Webfluidsystem/compositor"
	"github.com/artinkavousi/Webfluidsystem/field"
	"github.com/artinkavousi/Webfluidsystem/gpu"
	"github.com/artinkavousi/Webfluidsystem/gpu/soft"
	"github.com/artinkavousi/Webfluidsystem/inject"
	"github.com/artinkavousi/Webfluidsystem/resource"
	"github.com/artinkavousi/Webfluidsystem/shaders"
)

type pipeline struct {
	dev    gpu.Device
	fields *field.Store
	solver *Solver
	inject *inject.Injector
	comp   *compositor.Compositor
}

func newPipeline(t *testing.T, cached bool) *pipeline {
	t.Helper()
	raw := soft.New(soft.Options{SurfaceWidth: 64, SurfaceHeight: 64})
	t.Cleanup(raw.Close)
	var dev gpu.Device = raw
	if cached {
		dev = gpu.NewStateCache(raw)
	}
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
	p := &pipeline{dev: dev, fields: store}
	p.resize(t, 64)
	p.solver = New(dev, set, store)
	p.inject = inject.New(dev, set, store, rand.New(rand.NewPCG(7, 7)))
	p.inject.SetAspect(64, 64)
	p.inject.SetRadius(0.25)
	p.comp = compositor.New(dev, caps, set, store, mgr)
	return p
}

func (p *pipeline) resize(t *testing.T, res int) {
	t.Helper()
	if err := p.fields.Init(field.Params{
		SimResolution:     res,
		DyeResolution:     res,
		BloomResolution:   64,
		BloomIterations:   2,
		SunraysResolution: 64,
	}, 64, 64); err != nil {
		t.Fatal(err)
	}
}

func (p *pipeline) run(t *testing.T) (dye, screen []float32) {
	t.Helper()
	p.inject.Splat(0.3, 0.4, 200, -50, gpu.Vec3{0.8, 0.2, 0.1})
	p.inject.Splat(0.7, 0.6, -120, 80, gpu.Vec3{0.1, 0.5, 0.9})
	for i := range 5 {
		if err := p.solver.Step(0.016, defaults); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		switch i {
		case 1:
			p.resize(t, 128)
		case 3:
			p.resize(t, 64)
		}
	}
	if err := p.comp.Render(nil, compositor.Params{
		Shading:        true,
		Bloom:          true,
		BloomIntensity: 0.8,
		BloomThreshold: 0.6,
		BloomSoftKnee:  0.7,
		Sunrays:        true,
		SunraysWeight:  1,
		Background:     gpu.Vec3{0.05, 0.05, 0.05},
		Mode:           shaders.ModeColor,
		Gradient:       compositor.DefaultGradient,
	}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	dye, err := field.Read(p.dev, p.fields.Dye.Read)
	if err != nil {
		t.Fatal(err)
	}
	screen, err = p.dev.ReadPixels(0, 64, 64)
	if err != nil {
		t.Fatal(err)
	}
	return dye, screen
}

func countDiffs(a, b []float32) int {
	if len(a) != len(b) {
		return max(len(a), len(b))
	}
	n := 0
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}

func TestStateCache_MatchesUncachedOutput(t *testing.T) {
	wantDye, wantScreen := newPipeline(t, false).run(t)
	gotDye, gotScreen := newPipeline(t, true).run(t)

	if len(wantDye) == 0 || len(wantScreen) == 0 {
		t.Fatal("empty readback")
	}
	if n := countDiffs(gotDye, wantDye); n != 0 {
		t.Errorf("dye differs in %d of %d texels", n, len(wantDye))
	}
	if n := countDiffs(gotScreen, wantScreen); n != 0 {
		t.Errorf("screen differs in %d of %d texels", n, len(wantScreen))
	}
}
