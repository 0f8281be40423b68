package soft

import (
	"math"

	"github.com/x448/float16"

	"github.com/artinkavousi/Webfluidsystem/gpu"
)

// texture stores RGBA float texels row-major from the bottom row. Values are
// quantized to the format's precision on write so half and byte targets
// behave like their hardware counterparts.
type texture struct {
	w, h   int
	format gpu.Format
	filter gpu.Filter
	data   []float32
}

func newTexture(w, h int, format gpu.Format, filter gpu.Filter) *texture {
	t := &texture{w: w, h: h, format: format, filter: filter, data: make([]float32, 4*w*h)}
	// Missing channels read back as (0, 0, 1) for GBA like GL does.
	if format.Channels < 4 {
		for i := 3; i < len(t.data); i += 4 {
			t.data[i] = 1
		}
	}
	return t
}

func (t *texture) bytes() int64 {
	return int64(t.w) * int64(t.h) * int64(t.format.BytesPerPixel())
}

func (t *texture) quantize(v float32) float32 {
	switch t.format.Type {
	case gpu.Half:
		return float16.Fromfloat32(v).Float32()
	case gpu.Byte:
		if v <= 0 || v != v {
			return 0
		}
		if v >= 1 {
			return 1
		}
		return float32(math.Round(float64(v)*255)) / 255
	}
	return v
}

func (t *texture) store(x, y int, c gpu.Vec4) {
	i := 4 * (y*t.w + x)
	for ch := 0; ch < t.format.Channels; ch++ {
		t.data[i+ch] = t.quantize(c[ch])
	}
}

func (t *texture) fill(c gpu.Vec4) {
	for y := 0; y < t.h; y++ {
		for x := 0; x < t.w; x++ {
			t.store(x, y, c)
		}
	}
}

func (t *texture) texel(x, y int) gpu.Vec4 {
	x = clampInt(x, 0, t.w-1)
	y = clampInt(y, 0, t.h-1)
	i := 4 * (y*t.w + x)
	return gpu.Vec4{t.data[i], t.data[i+1], t.data[i+2], t.data[i+3]}
}

// Sample implements gpu.Sampler with clamp-to-edge wrapping.
func (t *texture) Sample(uv gpu.Vec2) gpu.Vec4 {
	if t.filter == gpu.Nearest {
		x := int(math.Floor(float64(uv[0]) * float64(t.w)))
		y := int(math.Floor(float64(uv[1]) * float64(t.h)))
		return t.texel(x, y)
	}

	fx := uv[0]*float32(t.w) - 0.5
	fy := uv[1]*float32(t.h) - 0.5
	x0 := float32(math.Floor(float64(fx)))
	y0 := float32(math.Floor(float64(fy)))
	ax, ay := fx-x0, fy-y0
	ix, iy := int(x0), int(y0)

	a := t.texel(ix, iy)
	b := t.texel(ix+1, iy)
	c := t.texel(ix, iy+1)
	d := t.texel(ix+1, iy+1)

	var out gpu.Vec4
	for i := range out {
		bottom := a[i] + (b[i]-a[i])*ax
		top := c[i] + (d[i]-c[i])*ax
		out[i] = bottom + (top-bottom)*ay
	}
	return out
}

func (t *texture) Size() (int, int) { return t.w, t.h }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// emptySampler stands in for an unbound texture unit.
type emptySampler struct{}

func (emptySampler) Sample(gpu.Vec2) gpu.Vec4 { return gpu.Vec4{0, 0, 0, 1} }
func (emptySampler) Size() (int, int)         { return 1, 1 }
