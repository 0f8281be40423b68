package emitter

import (
	"math"
	"testing"

	"github.com/artinkavousi/Webfluidsystem/audio"
	"github.com/artinkavousi/Webfluidsystem/config"
	"github.com/artinkavousi/Webfluidsystem/gpu"
)

type splat struct {
	x, y, dx, dy float32
	color        gpu.Vec3
	radius       float32
}

type recorder struct{ splats []splat }

func (r *recorder) SplatRadius(x, y, dx, dy float32, color gpu.Vec3, radius float32) {
	r.splats = append(r.splats, splat{x, y, dx, dy, color, radius})
}

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-4 }

func TestPoint_ScalesForceAndColor(t *testing.T) {
	m := NewManager()
	m.Add(Emitter{
		Position:  gpu.Vec2{0.5, 0.2},
		Direction: gpu.Vec2{0, 1},
		Force:     1000,
		Radius:    0.4,
		Color:     gpu.Vec3{1, 0.5, 0},
		Active:    true,
	})
	m.Tick(1.0/60, audio.Signal{})
	var r recorder
	if n := m.Apply(&r); n != 1 {
		t.Fatalf("Apply = %d, want 1", n)
	}
	s := r.splats[0]
	// 1000 * 0.4 * 0.05
	if s.dx != 0 || !near(s.dy, 20) {
		t.Errorf("velocity = (%v, %v), want (0, 20)", s.dx, s.dy)
	}
	if !near(s.color[0], 0.1) || !near(s.color[1], 0.05) {
		t.Errorf("color = %v, want a tenth", s.color)
	}
	if s.radius != 0.4 || s.x != 0.5 || s.y != 0.2 {
		t.Errorf("splat = %+v", s)
	}
}

func TestInactiveEmittersAreSkipped(t *testing.T) {
	m := NewManager()
	m.Add(Emitter{Force: 1, Radius: 1})
	var r recorder
	if n := m.Apply(&r); n != 0 || len(r.splats) != 0 {
		t.Errorf("inactive emitter emitted %d splats", len(r.splats))
	}
}

func TestLine_EmitsAlongSegments(t *testing.T) {
	m := NewManager()
	m.Add(Emitter{
		Position: gpu.Vec2{0, 0.5},
		Force:    100,
		Radius:   1,
		Active:   true,
		Shape:    Line{End: gpu.Vec2{1, 0.5}, Segments: 4},
	})
	m.Tick(0, audio.Signal{})
	var r recorder
	m.Apply(&r)
	if len(r.splats) != 5 {
		t.Fatalf("splats = %d, want 5", len(r.splats))
	}
	for i, s := range r.splats {
		if !near(s.x, float32(i)*0.25) || s.y != 0.5 {
			t.Errorf("splat %d at (%v, %v)", i, s.x, s.y)
		}
		// No direction: flows along the line.
		if !near(s.dx, 5) || s.dy != 0 {
			t.Errorf("splat %d velocity (%v, %v), want (5, 0)", i, s.dx, s.dy)
		}
	}
}

func TestDye_FadesWithoutVelocity(t *testing.T) {
	m := NewManager()
	m.Add(Emitter{
		Direction: gpu.Vec2{1, 1},
		Force:     100,
		Radius:    1,
		Color:     gpu.Vec3{1, 1, 1},
		Active:    true,
		Shape:     Dye{FadeRate: 0.5},
	})

	var r recorder
	m.Tick(1.0/60, audio.Signal{})
	m.Apply(&r)
	first := r.splats[0]
	if first.dx != 0 || first.dy != 0 {
		t.Errorf("dye emitter pushed the fluid: (%v, %v)", first.dx, first.dy)
	}
	if !near(first.color[0], 0.05) {
		t.Errorf("color after one frame = %v, want 0.05", first.color[0])
	}

	for range 20 {
		m.Tick(1.0/60, audio.Signal{})
	}
	r.splats = nil
	m.Apply(&r)
	if len(r.splats) != 0 {
		t.Errorf("faded dye emitter still emits %v", r.splats[0].color)
	}

	// Reactivation restarts the fade.
	m.Update(0, Patch{Active: Ptr(false)})
	m.Update(0, Patch{Active: Ptr(true)})
	m.Apply(&r)
	if len(r.splats) != 1 || !near(r.splats[0].color[0], 0.1) {
		t.Errorf("reactivated dye = %+v", r.splats)
	}
}

func TestAudioBinding_PowerCurve(t *testing.T) {
	b := DefaultAudioBinding()
	b.Smoothing = 0
	m := NewManager()
	m.Add(Emitter{Force: 1, Radius: 1, Active: true, Audio: &b})

	m.Tick(1.0/60, audio.Signal{Amplitude: 0.25})
	e, _ := m.Get(0)
	force, radius := e.Effective()
	wantForce := float32(100 + 1900*math.Pow(0.25, 1.5))
	wantRadius := float32(0.1 + 0.4*math.Pow(0.25, 0.8))
	if !near(force, wantForce) || !near(radius, wantRadius) {
		t.Errorf("effective = (%v, %v), want (%v, %v)", force, radius, wantForce, wantRadius)
	}

	m.Tick(1.0/60, audio.Signal{Amplitude: 3})
	e, _ = m.Get(0)
	if force, _ := e.Effective(); !near(force, 2000) {
		t.Errorf("loud force = %v, want clamped to max", force)
	}
}

func TestAudioBinding_Smoothing(t *testing.T) {
	b := DefaultAudioBinding()
	b.AffectsRadius = false
	m := NewManager()
	m.Add(Emitter{Force: 1, Radius: 0.3, Active: true, Audio: &b})

	m.Tick(1.0/60, audio.Signal{Amplitude: 1})
	e, _ := m.Get(0)
	if !near(e.Level(), 0.2) {
		t.Errorf("level after one frame = %v, want 0.2", e.Level())
	}
	if _, r := e.Effective(); r != 0.3 {
		t.Errorf("radius = %v, want the configured radius", r)
	}
}

func TestAudioBinding_Band(t *testing.T) {
	b := DefaultAudioBinding()
	b.Band = audio.BandHigh
	b.Smoothing = 0
	m := NewManager()
	m.Add(Emitter{Active: true, Audio: &b})

	freqs := make([]float32, 10)
	freqs[0] = 1 // low only
	m.Tick(1.0/60, audio.Signal{Amplitude: 1, Frequencies: freqs})
	e, _ := m.Get(0)
	if e.Level() != 0 {
		t.Errorf("high band level = %v from a low tone", e.Level())
	}
}

func TestManager_CRUD(t *testing.T) {
	m := NewManager()
	a := m.Add(Emitter{Name: "a"})
	b := m.Add(Emitter{Name: "b", Audio: &AudioBinding{Intensity: 1}})
	if a != 0 || b != 1 || m.Len() != 2 {
		t.Fatalf("indices %d %d len %d", a, b, m.Len())
	}

	if !m.Update(b, Patch{Name: Ptr("c"), Force: Ptr[float32](5), Shape: Line{Segments: 2}}) {
		t.Fatal("Update failed")
	}
	e, _ := m.Get(b)
	if e.Name != "c" || e.Force != 5 || ShapeName(e.Shape) != "line" || e.Audio == nil {
		t.Errorf("merged emitter = %+v", e)
	}
	m.Update(b, Patch{ClearAudio: true})
	if e, _ := m.Get(b); e.Audio != nil {
		t.Error("ClearAudio kept the binding")
	}

	if m.Update(5, Patch{}) || m.Remove(-2) {
		t.Error("out of range index accepted")
	}
	if !m.Remove(a) {
		t.Fatal("Remove failed")
	}
	if list := m.List(); len(list) != 1 || list[0].Name != "c" {
		t.Errorf("list = %+v", list)
	}
	if _, ok := m.Get(1); ok {
		t.Error("Get past the end succeeded")
	}
}

func TestManager_GetReturnsCopy(t *testing.T) {
	m := NewManager()
	m.Add(Emitter{Name: "a"})
	e, _ := m.Get(0)
	e.Name = "changed"
	if got, _ := m.Get(0); got.Name != "a" {
		t.Error("Get exposed internal state")
	}
}

func TestMouseEmitter(t *testing.T) {
	m := NewManager()
	var r recorder

	m.MouseDown(gpu.Vec2{0.5, 0.5}, 6000, 0.25, gpu.Vec3{1, 0, 0})
	if n := m.Apply(&r); n != 0 {
		t.Errorf("pressed but unmoved mouse emitted %d", n)
	}
	if e, ok := m.Get(MouseID); !ok || !e.Active {
		t.Fatal("mouse emitter not active after MouseDown")
	}

	m.MouseMove(gpu.Vec2{0.6, 0.5}, gpu.Vec2{0.1, 0})
	m.Apply(&r)
	m.Apply(&r)
	if len(r.splats) != 1 {
		t.Fatalf("splats = %d, want one per move", len(r.splats))
	}
	if s := r.splats[0]; !near(s.dx, 600) || s.color[0] != 1 || s.radius != 0.25 {
		t.Errorf("mouse splat = %+v", s)
	}

	m.MouseUp()
	m.MouseMove(gpu.Vec2{0.7, 0.5}, gpu.Vec2{0.1, 0})
	m.Apply(&r)
	if len(r.splats) != 1 {
		t.Error("released mouse still emits")
	}
	if m.Len() != 0 {
		t.Error("mouse emitter counted in the list")
	}
}

func TestFromConfig(t *testing.T) {
	e, err := FromConfig(config.EmitterConfig{
		Name:     "bar",
		Kind:     "line",
		Position: [2]float64{0.1, 0.1},
		End:      [2]float64{0.9, 0.1},
		Segments: 8,
		Force:    500,
		Radius:   0.2,
		Active:   true,
		Audio:    &config.AudioBindingConfig{Band: "low", AffectsForce: true, MaxForce: 900},
	})
	if err != nil {
		t.Fatal(err)
	}
	line, ok := e.Shape.(Line)
	if !ok || line.Segments != 8 || line.End != (gpu.Vec2{0.9, 0.1}) {
		t.Errorf("shape = %#v", e.Shape)
	}
	if e.Audio.Band != audio.BandLow || e.Audio.MaxForce != 900 || e.Audio.MinForce != 100 || e.Audio.ForceExponent != 1.5 {
		t.Errorf("binding = %+v", *e.Audio)
	}

	if _, err := FromConfig(config.EmitterConfig{Kind: "spiral"}); err == nil {
		t.Error("unknown kind accepted")
	}
	if _, err := FromConfig(config.EmitterConfig{Audio: &config.AudioBindingConfig{Band: "sub"}}); err == nil {
		t.Error("unknown band accepted")
	}
}
