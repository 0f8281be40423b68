package inject

import (
	"math/rand/v2"

	"github.com/crazy3lf/colorconv"

	"github.com/artinkavousi/Webfluidsystem/gpu"
)

// baseIntensity scales generated colors so a single splat does not
// saturate the dye.
const baseIntensity = 0.15

// Palette generates splat colors: random fully saturated hues, or random
// picks from a fixed set of colors when one is configured.
type Palette struct {
	rng        *rand.Rand
	colors     [][3]float32
	brightness float32
}

// NewPalette creates a palette. An empty colors slice selects random hues.
func NewPalette(rng *rand.Rand, colors [][3]float32, brightness float32) *Palette {
	return &Palette{rng: rng, colors: colors, brightness: brightness}
}

// SetColors replaces the fixed colors and brightness.
func (p *Palette) SetColors(colors [][3]float32, brightness float32) {
	p.colors = colors
	p.brightness = brightness
}

// Next returns the next color.
func (p *Palette) Next() gpu.Vec3 {
	var c [3]float32
	if len(p.colors) > 0 {
		c = p.colors[p.rng.IntN(len(p.colors))]
	} else {
		c = Hue(p.rng.Float64() * 360)
	}
	k := baseIntensity * p.brightness
	return gpu.Vec3{c[0] * k, c[1] * k, c[2] * k}
}

// Hue returns the fully saturated color of hue degrees, channels in [0, 1].
func Hue(degrees float64) [3]float32 {
	r, g, b, err := colorconv.HSVToRGB(degrees, 1, 1)
	if err != nil {
		return [3]float32{1, 1, 1}
	}
	return [3]float32{float32(r) / 255, float32(g) / 255, float32(b) / 255}
}
