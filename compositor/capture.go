package compositor

import (
	"fmt"
	"image"
	"image/color"

	"github.com/artinkavousi/Webfluidsystem/field"
	"github.com/artinkavousi/Webfluidsystem/gpu"
	"github.com/artinkavousi/Webfluidsystem/resource"
)

// Capture renders one frame offscreen at the capture resolution and returns
// it as an image. invert flips the color channels.
func (c *Compositor) Capture(resolution int, p Params, invert bool) (*image.RGBA, error) {
	sw, sh := c.dev.SurfaceSize()
	w, h := field.Resolution(resolution, sw, sh)
	r, err := c.mgr.Acquire(resource.Shape{
		Width:  w,
		Height: h,
		Format: c.caps.FormatFor(4),
		Filter: gpu.Nearest,
	})
	if err != nil {
		return nil, fmt.Errorf("capture target: %w", err)
	}
	defer c.mgr.Release(r)

	target := field.Wrap(r)
	c.dev.BindFramebuffer(target.Framebuffer())
	c.dev.Viewport(0, 0, w, h)
	c.dev.ClearColor(0, 0, 0, 0)
	c.dev.Clear()
	if err := c.Render(target, p); err != nil {
		return nil, err
	}
	px, err := c.dev.ReadPixels(target.Framebuffer(), w, h)
	if err != nil {
		return nil, fmt.Errorf("capture readback: %w", err)
	}
	return ToImage(px, w, h, invert), nil
}

// ToImage converts RGBA floats, bottom row first, to an 8-bit image with
// the top row first. Channels are clamped to [0, 1].
func ToImage(px []float32, w, h int, invert bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := h - 1 - y
		for x := 0; x < w; x++ {
			i := 4 * (row*w + x)
			r, g, b := unorm(px[i]), unorm(px[i+1]), unorm(px[i+2])
			if invert {
				r, g, b = 255-r, 255-g, 255-b
			}
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: unorm(px[i+3])})
		}
	}
	return img
}

func unorm(v float32) uint8 {
	v = min(max(v, 0), 1)
	return uint8(v*255 + 0.5)
}
