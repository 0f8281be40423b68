package shaders

import (
	"errors"
	"math"
	"testing"

	"github.com/artinkavousi/Webfluidsystem/gpu"
	"github.com/artinkavousi/Webfluidsystem/gpu/soft"
)

func newDevice(t *testing.T) *soft.Device {
	t.Helper()
	d := soft.New(soft.Options{Workers: 1})
	t.Cleanup(d.Close)
	return d
}

func target(t *testing.T, d *soft.Device, w, h int, f gpu.Format, filter gpu.Filter) (gpu.Texture, gpu.Framebuffer) {
	t.Helper()
	tex, err := d.CreateTexture(w, h, f, filter)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	fb, err := d.CreateFramebuffer(tex)
	if err != nil {
		t.Fatalf("CreateFramebuffer: %v", err)
	}
	return tex, fb
}

func fill(t *testing.T, d *soft.Device, tex gpu.Texture, w, h int, f func(x, y int) gpu.Vec4) {
	t.Helper()
	data := make([]float32, 0, 4*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := f(x, y)
			data = append(data, c[:]...)
		}
	}
	if err := d.Upload(tex, data); err != nil {
		t.Fatalf("Upload: %v", err)
	}
}

func compileSet(t *testing.T, d *soft.Device) *Set {
	t.Helper()
	s, err := Compile(d, gpu.Capabilities{LinearFiltering: true})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	t.Cleanup(s.Delete)
	return s
}

func near(a, b, eps float32) bool {
	return math.Abs(float64(a-b)) <= float64(eps)
}

func TestCompile_BuildsEveryProgram(t *testing.T) {
	d := newDevice(t)
	s := compileSet(t, d)

	for _, p := range s.programs() {
		if p == nil {
			t.Fatal("program missing from set")
		}
	}
	if got := d.Stats().Programs; got != len(s.programs()) {
		t.Errorf("device programs = %d, want %d", got, len(s.programs()))
	}
}

func TestCompile_FailureDeletesPartialSet(t *testing.T) {
	d := newDevice(t)
	d.FailNext(soft.OpCompileProgram, errors.New("driver rejected source"))

	if _, err := Compile(d, gpu.Capabilities{LinearFiltering: true}); !errors.Is(err, gpu.ErrCompile) {
		t.Fatalf("err = %v, want ErrCompile", err)
	}
	if got := d.Stats().Programs; got != 0 {
		t.Errorf("%d programs leaked", got)
	}
}

func TestMaterial_ReusesVariants(t *testing.T) {
	d := newDevice(t)
	m := NewMaterial(d, Display)

	if err := m.SetKeywords([]string{KeywordShading, KeywordBloom}); err != nil {
		t.Fatal(err)
	}
	first := m.Program()
	if err := m.SetKeywords([]string{KeywordBloom, KeywordShading, KeywordBloom}); err != nil {
		t.Fatal(err)
	}
	if m.Program() != first || m.Variants() != 1 {
		t.Error("same keyword set recompiled")
	}
	if err := m.SetKeywords(nil); err != nil {
		t.Fatal(err)
	}
	if err := m.SetKeywords([]string{KeywordShading, KeywordBloom}); err != nil {
		t.Fatal(err)
	}
	if m.Variants() != 2 || m.Program() != first {
		t.Errorf("variants = %d, want 2 with the first reused", m.Variants())
	}
	m.delete()
	if d.Stats().Programs != 0 {
		t.Error("material did not delete its variants")
	}
}

func TestSplat_GaussianPeaksAtPoint(t *testing.T) {
	d := newDevice(t)
	s := compileSet(t, d)
	src, _ := target(t, d, 32, 32, gpu.RGBA32F, gpu.Linear)
	dst, fb := target(t, d, 32, 32, gpu.RGBA32F, gpu.Linear)

	d.BindFramebuffer(fb)
	d.Viewport(0, 0, 32, 32)
	s.Splat.Bind()
	s.Splat.Texture("uTarget", 0, src)
	s.Splat.Set1f("aspectRatio", 1)
	s.Splat.Set2f("point", 0.5, 0.5)
	s.Splat.Set3f("color", 1, 0, 0)
	s.Splat.Set1f("radius", 0.01)
	d.DrawQuad()

	center, _ := d.Texel(dst, 16, 16)
	edge, _ := d.Texel(dst, 2, 16)
	if center[0] < 0.9 {
		t.Errorf("center red = %v, want near 1", center[0])
	}
	if edge[0] >= center[0]/10 {
		t.Errorf("edge red = %v, not much below center %v", edge[0], center[0])
	}
	if center[1] != 0 || center[3] != 1 {
		t.Errorf("center = %v, want green 0 alpha 1", center)
	}
}

func TestClear_ScalesByValue(t *testing.T) {
	d := newDevice(t)
	s := compileSet(t, d)
	src, _ := target(t, d, 4, 4, gpu.R32F, gpu.Nearest)
	dst, fb := target(t, d, 4, 4, gpu.R32F, gpu.Nearest)
	fill(t, d, src, 4, 4, func(x, y int) gpu.Vec4 { return gpu.Vec4{2, 0, 0, 1} })

	d.BindFramebuffer(fb)
	d.Viewport(0, 0, 4, 4)
	s.Clear.Bind()
	s.Clear.Texture("uTexture", 0, src)
	s.Clear.Set1f("value", 0.4)
	d.DrawQuad()

	if c, _ := d.Texel(dst, 1, 2); !near(c[0], 0.8, 1e-5) {
		t.Errorf("cleared = %v, want 0.8", c[0])
	}
}

func TestDivergence_UniformFieldIsFreeInside(t *testing.T) {
	d := newDevice(t)
	s := compileSet(t, d)
	vel, _ := target(t, d, 16, 16, gpu.RG32F, gpu.Linear)
	div, fb := target(t, d, 16, 16, gpu.R32F, gpu.Nearest)
	fill(t, d, vel, 16, 16, func(x, y int) gpu.Vec4 { return gpu.Vec4{3, -2, 0, 1} })

	d.BindFramebuffer(fb)
	d.Viewport(0, 0, 16, 16)
	s.Divergence.Bind()
	s.Divergence.Set2f("texelSize", 1.0/16, 1.0/16)
	s.Divergence.Texture("uVelocity", 0, vel)
	d.DrawQuad()

	if c, _ := d.Texel(div, 8, 8); !near(c[0], 0, 1e-5) {
		t.Errorf("interior divergence = %v, want 0", c[0])
	}
	// At the left wall the neighbor is reflected, so inflow shows up.
	if c, _ := d.Texel(div, 0, 8); !near(c[0], 3, 1e-4) {
		t.Errorf("left wall divergence = %v, want 3", c[0])
	}
}

func TestGradientSubtract_RemovesLinearPressureSlope(t *testing.T) {
	d := newDevice(t)
	s := compileSet(t, d)
	const n = 16
	pressure, _ := target(t, d, n, n, gpu.R32F, gpu.Nearest)
	vel, _ := target(t, d, n, n, gpu.RG32F, gpu.Linear)
	out, fb := target(t, d, n, n, gpu.RG32F, gpu.Linear)
	fill(t, d, pressure, n, n, func(x, y int) gpu.Vec4 { return gpu.Vec4{float32(x), 0, 0, 1} })
	fill(t, d, vel, n, n, func(x, y int) gpu.Vec4 { return gpu.Vec4{5, 1, 0, 1} })

	d.BindFramebuffer(fb)
	d.Viewport(0, 0, n, n)
	s.GradientSubtract.Bind()
	s.GradientSubtract.Set2f("texelSize", 1.0/n, 1.0/n)
	s.GradientSubtract.Texture("uPressure", 0, pressure)
	s.GradientSubtract.Texture("uVelocity", 1, vel)
	d.DrawQuad()

	c, _ := d.Texel(out, 8, 8)
	if !near(c[0], 3, 1e-4) || !near(c[1], 1, 1e-4) {
		t.Errorf("velocity = (%v, %v), want (3, 1)", c[0], c[1])
	}
}

func TestAdvection_DissipatesStillDye(t *testing.T) {
	for _, manual := range []bool{false, true} {
		d := newDevice(t)
		s, err := Compile(d, gpu.Capabilities{LinearFiltering: !manual})
		if err != nil {
			t.Fatal(err)
		}
		vel, _ := target(t, d, 8, 8, gpu.RG32F, gpu.Linear)
		dye, _ := target(t, d, 8, 8, gpu.RGBA32F, gpu.Linear)
		out, fb := target(t, d, 8, 8, gpu.RGBA32F, gpu.Linear)
		fill(t, d, dye, 8, 8, func(x, y int) gpu.Vec4 { return gpu.Vec4{1, 1, 1, 1} })

		d.BindFramebuffer(fb)
		d.Viewport(0, 0, 8, 8)
		s.Advection.Bind()
		s.Advection.Set2f("texelSize", 1.0/8, 1.0/8)
		s.Advection.Set2f("dyeTexelSize", 1.0/8, 1.0/8)
		s.Advection.Texture("uVelocity", 0, vel)
		s.Advection.Texture("uSource", 1, dye)
		s.Advection.Set1f("dt", 0.016)
		s.Advection.Set1f("dissipation", 1)
		d.DrawQuad()

		want := float32(1 / (1 + 0.016))
		if c, _ := d.Texel(out, 4, 4); !near(c[0], want, 1e-5) {
			t.Errorf("manual=%v: advected = %v, want %v", manual, c[0], want)
		}
		s.Delete()
	}
}

func TestBloomPrefilter_CutsBelowThreshold(t *testing.T) {
	d := newDevice(t)
	s := compileSet(t, d)
	src, _ := target(t, d, 2, 1, gpu.RGBA32F, gpu.Nearest)
	dst, fb := target(t, d, 2, 1, gpu.RGBA32F, gpu.Nearest)
	fill(t, d, src, 2, 1, func(x, y int) gpu.Vec4 {
		if x == 0 {
			return gpu.Vec4{0.05, 0.05, 0.05, 1}
		}
		return gpu.Vec4{2, 1, 0, 1}
	})

	threshold, softKnee := float32(0.6), float32(0.7)
	knee := threshold*softKnee + 0.0001
	d.BindFramebuffer(fb)
	d.Viewport(0, 0, 2, 1)
	s.BloomPrefilter.Bind()
	s.BloomPrefilter.Set3f("curve", threshold-knee, knee*2, 0.25/knee)
	s.BloomPrefilter.Set1f("threshold", threshold)
	s.BloomPrefilter.Texture("uTexture", 0, src)
	d.DrawQuad()

	dim, _ := d.Texel(dst, 0, 0)
	bright, _ := d.Texel(dst, 1, 0)
	if dim[0] != 0 {
		t.Errorf("dim texel passed the prefilter: %v", dim)
	}
	if !near(bright[0], 2-threshold, 1e-4) {
		t.Errorf("bright red = %v, want %v", bright[0], 2-threshold)
	}
}

func TestDisplay_RenderModes(t *testing.T) {
	d := newDevice(t)
	s := compileSet(t, d)
	dye, _ := target(t, d, 4, 4, gpu.RGBA32F, gpu.Linear)
	out, fb := target(t, d, 4, 4, gpu.RGBA32F, gpu.Nearest)
	fill(t, d, dye, 4, 4, func(x, y int) gpu.Vec4 { return gpu.Vec4{0.2, 0.4, 0, 1} })
	if err := s.Display.SetKeywords(nil); err != nil {
		t.Fatal(err)
	}
	p := s.Display.Program()

	draw := func(mode RenderMode) gpu.Vec4 {
		d.BindFramebuffer(fb)
		d.Viewport(0, 0, 4, 4)
		p.Bind()
		p.Set2f("texelSize", 0.25, 0.25)
		p.Set1i("renderMode", int32(mode))
		p.Set3f("gradientLow", 0, 0, 0)
		p.Set3f("gradientMid", 0, 0, 1)
		p.Set3f("gradientHigh", 1, 1, 1)
		p.Texture("uTexture", 0, dye)
		d.DrawQuad()
		c, _ := d.Texel(out, 1, 1)
		return c
	}

	if c := draw(ModeColor); !near(c[0], 0.2, 1e-5) || !near(c[3], 0.4, 1e-5) {
		t.Errorf("color mode = %v, want raw dye with alpha = max channel", c)
	}
	if c := draw(ModeBackground); !near(c[0], 0.6, 1e-5) || c[3] != 1 {
		t.Errorf("background mode = %v", c)
	}
	// length(0.2, 0.4, 0) ~ 0.447 lands in the low half of the ramp.
	if c := draw(ModeGradient); c[0] != 0 || !near(c[2], 0.894, 1e-3) {
		t.Errorf("gradient mode = %v", c)
	}
	if c := draw(ModeDistortion); !near(c[1], 0.4, 1e-5) {
		t.Errorf("distortion mode over uniform dye = %v", c)
	}
}

func TestRenderMode_String(t *testing.T) {
	if ModeDistortion.String() != "distortion" || RenderMode(9).String() != "mode(9)" {
		t.Error("unexpected render mode names")
	}
}
