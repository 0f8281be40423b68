package emitter

import (
	"fmt"
	"strings"

	"github.com/artinkavousi/Webfluidsystem/audio"
	"github.com/artinkavousi/Webfluidsystem/config"
	"github.com/artinkavousi/Webfluidsystem/gpu"
)

// FromConfig builds an emitter from its YAML declaration. Unset binding
// fields take the reference curve.
func FromConfig(c config.EmitterConfig) (Emitter, error) {
	e := Emitter{
		Name:      c.Name,
		Position:  gpu.Vec2{float32(c.Position[0]), float32(c.Position[1])},
		Direction: gpu.Vec2{float32(c.Direction[0]), float32(c.Direction[1])},
		Force:     float32(c.Force),
		Radius:    float32(c.Radius),
		Color:     gpu.Vec3{float32(c.Color[0]), float32(c.Color[1]), float32(c.Color[2])},
		Active:    c.Active,
	}
	switch strings.ToLower(c.Kind) {
	case "", "point":
		e.Shape = Point{}
	case "line":
		e.Shape = Line{End: gpu.Vec2{float32(c.End[0]), float32(c.End[1])}, Segments: max(c.Segments, 1)}
	case "dye":
		e.Shape = Dye{FadeRate: float32(c.FadeRate)}
	default:
		return Emitter{}, fmt.Errorf("emitter %q: unknown kind %q", c.Name, c.Kind)
	}

	if a := c.Audio; a != nil {
		band, err := audio.ParseBand(a.Band)
		if err != nil {
			return Emitter{}, fmt.Errorf("emitter %q: %w", c.Name, err)
		}
		b := DefaultAudioBinding()
		b.Band = band
		b.AffectsForce, b.AffectsRadius = a.AffectsForce, a.AffectsRadius
		setIf(&b.MinForce, a.MinForce)
		setIf(&b.MaxForce, a.MaxForce)
		setIf(&b.MinRadius, a.MinRadius)
		setIf(&b.MaxRadius, a.MaxRadius)
		setIf(&b.Intensity, a.Intensity)
		setIf(&b.Smoothing, a.Smoothing)
		setIf(&b.ForceExponent, a.ForceExponent)
		setIf(&b.RadiusExponent, a.RadiusExponent)
		e.Audio = &b
	}
	return e, nil
}

func setIf(dst *float32, v float64) {
	if v != 0 {
		*dst = float32(v)
	}
}
