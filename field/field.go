// Package field holds the simulation's render targets: double-buffered dye,
// velocity and pressure, the single-buffered scratch fields, and the bloom
// and sunrays chains.
package field

import (
	"math"

	"github.com/artinkavousi/Webfluidsystem/gpu"
	"github.com/artinkavousi/Webfluidsystem/resource"
)

// Field is one render target.
type Field struct {
	res *resource.Resource
}

func newField(r *resource.Resource) *Field {
	return &Field{res: r}
}

// Wrap adapts a render target acquired outside the store.
func Wrap(r *resource.Resource) *Field {
	return newField(r)
}

func (f *Field) Texture() gpu.Texture         { return f.res.Texture }
func (f *Field) Framebuffer() gpu.Framebuffer { return f.res.Framebuffer }
func (f *Field) Width() int                   { return f.res.Shape.Width }
func (f *Field) Height() int                  { return f.res.Shape.Height }
func (f *Field) Format() gpu.Format           { return f.res.Shape.Format }
func (f *Field) Filter() gpu.Filter           { return f.res.Shape.Filter }

// TexelSize returns the size of one texel in uv units.
func (f *Field) TexelSize() gpu.Vec2 {
	return gpu.Vec2{1 / float32(f.Width()), 1 / float32(f.Height())}
}

// Bytes is the field's device memory.
func (f *Field) Bytes() int64 { return f.res.Bytes() }

// DoubleBuffer pairs a field that is read with one that is written. Passes
// read Read, render into Write, then Swap.
type DoubleBuffer struct {
	Read  *Field
	Write *Field
}

// Swap exchanges the read and write fields.
func (d *DoubleBuffer) Swap() {
	d.Read, d.Write = d.Write, d.Read
}

func (d *DoubleBuffer) Width() int  { return d.Read.Width() }
func (d *DoubleBuffer) Height() int { return d.Read.Height() }

// TexelSize returns the read field's texel size.
func (d *DoubleBuffer) TexelSize() gpu.Vec2 { return d.Read.TexelSize() }

// Resolution maps a target resolution and a surface size to field
// dimensions. The shorter side gets max(res, 64) and the longer side that
// times the aspect ratio; each side is then rounded up to a power of two,
// never below 64.
func Resolution(res, width, height int) (int, int) {
	if width <= 0 || height <= 0 {
		return 64, 64
	}
	aspect := float64(width) / float64(height)
	if aspect < 1 {
		aspect = 1 / aspect
	}
	base := float64(max(res, 64))
	long := nextPow2(int(math.Round(base * aspect)))
	short := nextPow2(int(math.Round(base)))
	if width > height {
		return long, short
	}
	return short, long
}

func nextPow2(n int) int {
	p := 64
	for p < n {
		p <<= 1
	}
	return p
}

// Blit draws a full quad into target with the bound program. A nil target
// draws to the default framebuffer at the surface size.
func Blit(dev gpu.Device, target *Field, clear bool) {
	if target == nil {
		w, h := dev.SurfaceSize()
		dev.Viewport(0, 0, w, h)
		dev.BindFramebuffer(0)
	} else {
		dev.Viewport(0, 0, target.Width(), target.Height())
		dev.BindFramebuffer(target.Framebuffer())
	}
	if clear {
		dev.ClearColor(0, 0, 0, 1)
		dev.Clear()
	}
	dev.DrawQuad()
}
