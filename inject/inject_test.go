package inject

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/artinkavousi/Webfluidsystem/field"
	"github.com/artinkavousi/Webfluidsystem/gpu"
	"github.com/artinkavousi/Webfluidsystem/gpu/soft"
	"github.com/artinkavousi/Webfluidsystem/resource"
	"github.com/artinkavousi/Webfluidsystem/shaders"
)

func newInjector(t *testing.T, w, h int) (*Injector, *soft.Device, *field.Store) {
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
	store := field.NewStore(dev, resource.NewManager(dev, resource.Options{Logger: logger}), caps, set.Copy, logger)
	if err := store.Init(field.Params{
		SimResolution: 64, DyeResolution: 64, BloomResolution: 64,
		BloomIterations: 1, SunraysResolution: 64,
	}, w, h); err != nil {
		t.Fatal(err)
	}
	in := New(dev, set, store, rand.New(rand.NewPCG(1, 2)))
	in.SetAspect(w, h)
	return in, dev, store
}

func TestCorrectRadius(t *testing.T) {
	tests := []struct {
		r, aspect, want float32
	}{
		{0.5, 2, 1},
		{0.5, 1, 0.5},
		{0.5, 0.5, 0.5},
	}
	for _, tt := range tests {
		if got := CorrectRadius(tt.r, tt.aspect); got != tt.want {
			t.Errorf("CorrectRadius(%v, %v) = %v, want %v", tt.r, tt.aspect, got, tt.want)
		}
	}
}

func TestSplat_WritesVelocityAndDye(t *testing.T) {
	in, dev, store := newInjector(t, 64, 64)
	in.SetRadius(1)

	in.Splat(0.5, 0.5, 10, -5, gpu.Vec3{0, 1, 0})

	v, _ := dev.Texel(store.Velocity.Read.Texture(), 32, 32)
	d, _ := dev.Texel(store.Dye.Read.Texture(), 32, 32)
	if v[0] < 9 || v[1] > -4 {
		t.Errorf("velocity = %v, want about (10, -5)", v)
	}
	if d[1] < 0.9 || d[0] != 0 {
		t.Errorf("dye = %v, want green", d)
	}
	if err := dev.Error(); err != nil {
		t.Errorf("device error: %v", err)
	}
}

func TestSplat_Accumulates(t *testing.T) {
	in, dev, store := newInjector(t, 64, 64)
	in.SetRadius(1)

	in.Splat(0.5, 0.5, 0, 0, gpu.Vec3{0.25, 0, 0})
	in.Splat(0.5, 0.5, 0, 0, gpu.Vec3{0.25, 0, 0})

	d, _ := dev.Texel(store.Dye.Read.Texture(), 32, 32)
	if d[0] < 0.45 || d[0] > 0.5 {
		t.Errorf("two splats = %v, want about 0.5", d[0])
	}
}

func TestApplyForce_LeavesDyeAlone(t *testing.T) {
	in, dev, store := newInjector(t, 64, 64)

	in.ApplyForce(0.5, 0.5, 100, 100, 1)

	v, _ := dev.Texel(store.Velocity.Read.Texture(), 32, 32)
	if v[0] < 90 {
		t.Errorf("velocity = %v, want about 100", v[0])
	}
	if e, _ := field.Energy(dev, store.Dye.Read, 3); e != 0 {
		t.Errorf("dye energy = %v, want 0", e)
	}
}

func TestSplat_LandscapeStaysCircular(t *testing.T) {
	// 128x64 dye over a 2:1 surface: one texel covers the same screen
	// distance along both axes.
	in, dev, store := newInjector(t, 200, 100)
	in.SetRadius(1)

	in.Splat(0.5, 0.5, 0, 0, gpu.Vec3{1, 0, 0})

	tex := store.Dye.Read.Texture()
	right, _ := dev.Texel(tex, 64+8, 32)
	up, _ := dev.Texel(tex, 64, 32+8)
	if right[0] < 0.2 {
		t.Fatalf("splat too narrow: %v", right[0])
	}
	if d := right[0] - up[0]; d > 0.01 || d < -0.01 {
		t.Errorf("equal screen distances differ: right %v up %v", right[0], up[0])
	}
}

func TestMultipleSplats(t *testing.T) {
	in, dev, store := newInjector(t, 64, 64)
	palette := NewPalette(rand.New(rand.NewPCG(3, 4)), nil, 1)

	in.MultipleSplats(5, palette)

	if e, _ := field.Energy(dev, store.Velocity.Read, 2); e == 0 {
		t.Error("no velocity after random splats")
	}
	if e, _ := field.Energy(dev, store.Dye.Read, 3); e == 0 {
		t.Error("no dye after random splats")
	}
}

func TestSplat_BeforeInitIsNoop(t *testing.T) {
	in, dev, store := newInjector(t, 64, 64)
	store.Release()
	in.Splat(0.5, 0.5, 1, 1, gpu.Vec3{1, 1, 1})
	if err := dev.Error(); err != nil {
		t.Errorf("splat on released store raised %v", err)
	}
}

func TestPalette(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	fixed := NewPalette(rng, [][3]float32{{1, 0, 0}}, 1)
	if c := fixed.Next(); c != (gpu.Vec3{baseIntensity, 0, 0}) {
		t.Errorf("palette color = %v", c)
	}

	random := NewPalette(rng, nil, 0.5)
	for range 20 {
		c := random.Next()
		if m := max(c[0], c[1], c[2]); m < baseIntensity*0.5-1e-6 || m > baseIntensity*0.5+1e-6 {
			t.Fatalf("hue color %v is not fully saturated at brightness 0.5", c)
		}
	}
}

func TestHue(t *testing.T) {
	if got := Hue(0); got != [3]float32{1, 0, 0} {
		t.Errorf("Hue(0) = %v", got)
	}
	if got := Hue(120); got != [3]float32{0, 1, 0} {
		t.Errorf("Hue(120) = %v", got)
	}
}

func TestBurstSize(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	for range 100 {
		if n := BurstSize(rng); n < 5 || n > 24 {
			t.Fatalf("burst size %d out of range", n)
		}
	}
}
