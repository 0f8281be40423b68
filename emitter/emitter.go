// Package emitter keeps persistent fluid sources and applies them as
// splats every tick, optionally driven by an audio band.
package emitter

import (
	"fmt"
	"math"

	"github.com/artinkavousi/Webfluidsystem/audio"
	"github.com/artinkavousi/Webfluidsystem/gpu"
)

// Emission scaling.
const (
	forceScale = 0.05
	colorScale = 0.1
)

// MouseID addresses the pointer-driven emitter.
const MouseID = -1

// Shape is one of Point, Line or Dye.
type Shape interface {
	shape()
}

// Point emits at Position along Direction.
type Point struct{}

// Line emits at Segments+1 evenly spaced points from Position to End.
type Line struct {
	End      gpu.Vec2
	Segments int
}

// Dye adds color without velocity, fading by FadeRate per 60 Hz frame.
type Dye struct {
	FadeRate float32
}

func (Point) shape() {}
func (Line) shape()  {}
func (Dye) shape()   {}

// ShapeName returns point, line or dye.
func ShapeName(s Shape) string {
	switch s.(type) {
	case Line:
		return "line"
	case Dye:
		return "dye"
	}
	return "point"
}

// AudioBinding maps an audio band onto force and radius with a power curve.
type AudioBinding struct {
	Band          audio.Band
	AffectsForce  bool
	AffectsRadius bool
	MinForce      float32
	MaxForce      float32
	MinRadius     float32
	MaxRadius     float32
	Intensity     float32
	Smoothing     float32
	// Exponents shape the response: above 1 favors loud passages.
	ForceExponent  float32
	RadiusExponent float32
}

// DefaultAudioBinding returns the reference curve.
func DefaultAudioBinding() AudioBinding {
	return AudioBinding{
		Band:           audio.BandAll,
		AffectsForce:   true,
		AffectsRadius:  true,
		MinForce:       100,
		MaxForce:       2000,
		MinRadius:      0.1,
		MaxRadius:      0.5,
		Intensity:      1,
		Smoothing:      0.8,
		ForceExponent:  1.5,
		RadiusExponent: 0.8,
	}
}

func curve(lo, hi, amp, exp float32) float32 {
	return lo + (hi-lo)*float32(math.Pow(float64(amp), float64(exp)))
}

// Emitter is a persistent source. Position and End are in uv space,
// Radius in splat radius units.
type Emitter struct {
	Name      string
	Position  gpu.Vec2
	Direction gpu.Vec2
	Force     float32
	Radius    float32
	Color     gpu.Vec3
	Active    bool
	Audio     *AudioBinding
	Shape     Shape

	level  float32
	force  float32
	radius float32
	fade   float32
	moved  bool
}

// Effective returns the force and radius used on the last tick.
func (e *Emitter) Effective() (force, radius float32) {
	return e.force, e.radius
}

// Level returns the smoothed audio level.
func (e *Emitter) Level() float32 { return e.level }

func (e *Emitter) String() string {
	return fmt.Sprintf("%s %q at (%.2f, %.2f)", ShapeName(e.Shape), e.Name, e.Position[0], e.Position[1])
}

func (e *Emitter) reset() {
	e.force, e.radius, e.fade, e.level = e.Force, e.Radius, 1, 0
}

func (e *Emitter) update(dt float32, sig audio.Signal) {
	e.force, e.radius = e.Force, e.Radius
	if b := e.Audio; b != nil {
		amp := min(max(sig.Level(b.Band)*b.Intensity, 0), 1)
		e.level = e.level*b.Smoothing + amp*(1-b.Smoothing)
		if b.AffectsForce {
			e.force = curve(b.MinForce, b.MaxForce, e.level, b.ForceExponent)
		}
		if b.AffectsRadius {
			e.radius = curve(b.MinRadius, b.MaxRadius, e.level, b.RadiusExponent)
		}
	}
	if d, ok := e.Shape.(Dye); ok && e.fade > 0 {
		e.fade *= float32(math.Pow(float64(1-min(max(d.FadeRate, 0), 1)), float64(dt*60)))
		if e.fade < 1e-3 {
			e.fade = 0
		}
	}
}

// Splatter receives emissions. *inject.Injector implements it.
type Splatter interface {
	SplatRadius(x, y, dx, dy float32, color gpu.Vec3, radius float32)
}

func (e *Emitter) apply(s Splatter) {
	scaled := e.force * e.radius * forceScale
	dx, dy := e.Direction[0]*scaled, e.Direction[1]*scaled
	c := gpu.Vec3{e.Color[0] * colorScale, e.Color[1] * colorScale, e.Color[2] * colorScale}

	switch sh := e.Shape.(type) {
	case Line:
		n := max(sh.Segments, 1)
		if e.Direction == (gpu.Vec2{}) {
			lx, ly := sh.End[0]-e.Position[0], sh.End[1]-e.Position[1]
			if l := float32(math.Hypot(float64(lx), float64(ly))); l > 0 {
				dx, dy = lx/l*scaled, ly/l*scaled
			}
		}
		for i := 0; i <= n; i++ {
			t := float32(i) / float32(n)
			x := e.Position[0] + (sh.End[0]-e.Position[0])*t
			y := e.Position[1] + (sh.End[1]-e.Position[1])*t
			s.SplatRadius(x, y, dx, dy, c, e.radius)
		}
	case Dye:
		if e.fade == 0 {
			return
		}
		c = gpu.Vec3{c[0] * e.fade, c[1] * e.fade, c[2] * e.fade}
		s.SplatRadius(e.Position[0], e.Position[1], 0, 0, c, e.radius)
	default:
		s.SplatRadius(e.Position[0], e.Position[1], dx, dy, c, e.radius)
	}
}
