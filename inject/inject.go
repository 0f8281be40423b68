// Package inject adds impulses to the velocity and dye fields.
package inject

import (
	"math/rand/v2"

	"github.com/artinkavousi/Webfluidsystem/field"
	"github.com/artinkavousi/Webfluidsystem/gpu"
	"github.com/artinkavousi/Webfluidsystem/shaders"
)

// Random splat bursts.
const (
	burstColorScale = 10
	burstVelocity   = 1000
)

// Injector draws splats into a field store. Aspect is the surface's
// width over height.
type Injector struct {
	dev    gpu.Device
	progs  *shaders.Set
	fields *field.Store
	rng    *rand.Rand

	aspect float32
	radius float32
}

// New creates an injector. radius is the splat radius in the configuration's
// units (hundredths of the uv square).
func New(dev gpu.Device, progs *shaders.Set, fields *field.Store, rng *rand.Rand) *Injector {
	return &Injector{dev: dev, progs: progs, fields: fields, rng: rng, aspect: 1, radius: 0.25}
}

// SetAspect updates the surface proportions.
func (in *Injector) SetAspect(width, height int) {
	if width > 0 && height > 0 {
		in.aspect = float32(width) / float32(height)
	}
}

// SetRadius sets the default splat radius.
func (in *Injector) SetRadius(r float32) { in.radius = r }

// CorrectRadius widens r by the aspect ratio on landscape surfaces so the
// splat stays circular once stretched over the viewport.
func CorrectRadius(r, aspect float32) float32 {
	if aspect > 1 {
		return r * aspect
	}
	return r
}

// Splat adds velocity (dx, dy) and color at uv (x, y) with the default radius.
func (in *Injector) Splat(x, y, dx, dy float32, color gpu.Vec3) {
	in.SplatRadius(x, y, dx, dy, color, in.radius)
}

// SplatRadius is Splat with an explicit radius.
func (in *Injector) SplatRadius(x, y, dx, dy float32, color gpu.Vec3, radius float32) {
	if !in.fields.Ready() {
		return
	}
	in.draw(in.fields.Velocity, x, y, gpu.Vec3{dx, dy, 0}, radius)
	in.draw(in.fields.Dye, x, y, color, radius)
}

// ApplyForce adds velocity only.
func (in *Injector) ApplyForce(x, y, dx, dy, radius float32) {
	if !in.fields.Ready() {
		return
	}
	in.draw(in.fields.Velocity, x, y, gpu.Vec3{dx, dy, 0}, radius)
}

func (in *Injector) draw(target *field.DoubleBuffer, x, y float32, value gpu.Vec3, radius float32) {
	prog := in.progs.Splat
	in.dev.SetBlend(false)
	prog.Bind()
	prog.Set2v("texelSize", target.TexelSize())
	prog.Texture("uTarget", 0, target.Read.Texture())
	prog.Set1f("aspectRatio", in.aspect)
	prog.Set2f("point", x, y)
	prog.Set3f("color", value[0], value[1], value[2])
	prog.Set1f("radius", CorrectRadius(radius/100, in.aspect))
	field.Blit(in.dev, target.Write, false)
	target.Swap()
}

// MultipleSplats drops n splats at random positions with random velocities
// and bright colors from palette.
func (in *Injector) MultipleSplats(n int, palette *Palette) {
	for range n {
		c := palette.Next()
		c = gpu.Vec3{c[0] * burstColorScale, c[1] * burstColorScale, c[2] * burstColorScale}
		x := in.rng.Float32()
		y := in.rng.Float32()
		dx := burstVelocity * (in.rng.Float32() - 0.5)
		dy := burstVelocity * (in.rng.Float32() - 0.5)
		in.Splat(x, y, dx, dy, c)
	}
}

// BurstSize returns the size of a random startup burst, 5 to 24 splats.
func BurstSize(rng *rand.Rand) int {
	return int(rng.Float64()*20) + 5
}
