// Package compositor turns the dye field into the displayed image: bloom,
// light shafts, the background and the final display pass.
package compositor

import (
	"fmt"

	"github.com/artinkavousi/Webfluidsystem/field"
	"github.com/artinkavousi/Webfluidsystem/gpu"
	"github.com/artinkavousi/Webfluidsystem/resource"
	"github.com/artinkavousi/Webfluidsystem/shaders"
)

// Params are the display knobs. They never affect the simulation.
type Params struct {
	Shading bool

	Bloom          bool
	BloomIntensity float32
	BloomThreshold float32
	BloomSoftKnee  float32

	Sunrays       bool
	SunraysWeight float32

	Transparent bool
	Background  gpu.Vec3
	Mode        shaders.RenderMode
	// Gradient holds the low, mid and high stops of the gradient mode.
	Gradient [3]gpu.Vec3
}

// DefaultGradient runs from black through blue to white.
var DefaultGradient = [3]gpu.Vec3{{0, 0, 0}, {0.1, 0.4, 1}, {1, 1, 1}}

// Texture units of the display pass.
const (
	unitDye     = 0
	unitBloom   = 1
	unitSunrays = 3
)

// Compositor renders a field store.
type Compositor struct {
	dev    gpu.Device
	caps   gpu.Capabilities
	progs  *shaders.Set
	fields *field.Store
	mgr    *resource.Manager
	timer  PhaseTimer
}

// PhaseTimer is told when each render pass begins.
type PhaseTimer interface {
	StartPhase(name string)
}

// Pass names reported to a PhaseTimer.
const (
	PassBloom   = "bloom"
	PassSunrays = "sunrays"
	PassDisplay = "display"
)

// New creates a compositor. mgr supplies capture targets.
func New(dev gpu.Device, caps gpu.Capabilities, progs *shaders.Set, fields *field.Store, mgr *resource.Manager) *Compositor {
	return &Compositor{dev: dev, caps: caps, progs: progs, fields: fields, mgr: mgr}
}

// SetTimer installs t to time the render passes. Nil disables timing.
func (c *Compositor) SetTimer(t PhaseTimer) { c.timer = t }

func (c *Compositor) phase(name string) {
	if c.timer != nil {
		c.timer.StartPhase(name)
	}
}

// Keywords returns the display variant for p.
func Keywords(p Params) []string {
	var kw []string
	if p.Shading {
		kw = append(kw, shaders.KeywordShading)
	}
	if p.Bloom {
		kw = append(kw, shaders.KeywordBloom)
	}
	if p.Sunrays {
		kw = append(kw, shaders.KeywordSunrays)
	}
	return kw
}

// Render draws the frame into target, or the default framebuffer when
// target is nil.
func (c *Compositor) Render(target *field.Field, p Params) error {
	f := c.fields
	if !f.Ready() {
		return field.ErrNotReady
	}
	if err := c.progs.Display.SetKeywords(Keywords(p)); err != nil {
		return fmt.Errorf("display keywords: %w", err)
	}

	if p.Bloom {
		c.phase(PassBloom)
		c.Bloom(f.Dye.Read, f.Bloom, p)
	}
	if p.Sunrays {
		c.phase(PassSunrays)
		c.Sunrays(f.Dye.Read, f.Dye.Write, f.Sunrays, p.SunraysWeight)
		c.Blur(f.Sunrays, f.SunraysTemp, 1)
	}

	c.phase(PassDisplay)
	if target == nil || !p.Transparent {
		c.dev.BlendFunc(gpu.One, gpu.OneMinusSrcAlpha)
		c.dev.SetBlend(true)
	} else {
		c.dev.SetBlend(false)
	}
	if !p.Transparent {
		c.drawColor(target, p.Background)
	}
	c.drawDisplay(target, p)

	if err := c.dev.Error(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

func (c *Compositor) drawColor(target *field.Field, color gpu.Vec3) {
	prog := c.progs.Color
	prog.Bind()
	prog.Set4f("color", color[0], color[1], color[2], 1)
	field.Blit(c.dev, target, false)
}

// DrawCheckerboard fills target with the transparency checkerboard.
func (c *Compositor) DrawCheckerboard(target *field.Field) {
	w, h := c.size(target)
	prog := c.progs.Checkerboard
	prog.Bind()
	prog.Set1f("aspectRatio", float32(w)/float32(h))
	field.Blit(c.dev, target, false)
}

func (c *Compositor) size(target *field.Field) (int, int) {
	if target == nil {
		return c.dev.SurfaceSize()
	}
	return target.Width(), target.Height()
}

func (c *Compositor) drawDisplay(target *field.Field, p Params) {
	f := c.fields
	w, h := c.size(target)
	prog := c.progs.Display.Program()

	prog.Bind()
	prog.Set2f("texelSize", 1/float32(w), 1/float32(h))
	prog.Texture("uTexture", unitDye, f.Dye.Read.Texture())
	prog.Set1i("renderMode", int32(p.Mode))
	prog.Set3f("gradientLow", p.Gradient[0][0], p.Gradient[0][1], p.Gradient[0][2])
	prog.Set3f("gradientMid", p.Gradient[1][0], p.Gradient[1][1], p.Gradient[1][2])
	prog.Set3f("gradientHigh", p.Gradient[2][0], p.Gradient[2][1], p.Gradient[2][2])
	if p.Bloom {
		prog.Texture("uBloom", unitBloom, f.Bloom.Texture())
		prog.Set2f("ditherScale", float32(w), float32(h))
	}
	if p.Sunrays {
		prog.Texture("uSunrays", unitSunrays, f.Sunrays.Texture())
	}
	field.Blit(c.dev, target, false)
}

// Bloom extracts the bright parts of source, blurs them down and back up
// the level chain, and writes the result into destination. It does nothing
// with fewer than two levels.
func (c *Compositor) Bloom(source, destination *field.Field, p Params) {
	levels := c.fields.BloomLevels
	if len(levels) < 2 {
		return
	}
	last := destination

	c.dev.SetBlend(false)
	prefilter := c.progs.BloomPrefilter
	prefilter.Bind()
	knee := p.BloomThreshold*p.BloomSoftKnee + 0.0001
	prefilter.Set3f("curve", p.BloomThreshold-knee, knee*2, 0.25/knee)
	prefilter.Set1f("threshold", p.BloomThreshold)
	prefilter.Texture("uTexture", 0, source.Texture())
	field.Blit(c.dev, last, false)

	blur := c.progs.BloomBlur
	blur.Bind()
	for _, dest := range levels {
		blur.Set2v("texelSize", last.TexelSize())
		blur.Texture("uTexture", 0, last.Texture())
		field.Blit(c.dev, dest, false)
		last = dest
	}

	c.dev.BlendFunc(gpu.One, gpu.One)
	c.dev.SetBlend(true)
	for i := len(levels) - 2; i >= 0; i-- {
		base := levels[i]
		blur.Set2v("texelSize", last.TexelSize())
		blur.Texture("uTexture", 0, last.Texture())
		field.Blit(c.dev, base, false)
		last = base
	}

	c.dev.SetBlend(false)
	final := c.progs.BloomFinal
	final.Bind()
	final.Set2v("texelSize", last.TexelSize())
	final.Texture("uTexture", 0, last.Texture())
	final.Set1f("intensity", p.BloomIntensity)
	field.Blit(c.dev, destination, false)
}

// Sunrays writes a luminance mask of source into mask, then the radial
// light shafts of that mask into destination.
func (c *Compositor) Sunrays(source, mask, destination *field.Field, weight float32) {
	c.dev.SetBlend(false)
	mp := c.progs.SunraysMask
	mp.Bind()
	mp.Texture("uTexture", 0, source.Texture())
	field.Blit(c.dev, mask, false)

	rays := c.progs.Sunrays
	rays.Bind()
	rays.Set1f("weight", weight)
	rays.Texture("uTexture", 0, mask.Texture())
	field.Blit(c.dev, destination, false)
}

// Blur runs a separable blur over target, horizontally into temp and
// vertically back.
func (c *Compositor) Blur(target, temp *field.Field, iterations int) {
	prog := c.progs.Blur
	prog.Bind()
	texel := target.TexelSize()
	for range iterations {
		prog.Set2f("texelSize", texel[0], 0)
		prog.Texture("uTexture", 0, target.Texture())
		field.Blit(c.dev, temp, false)

		prog.Set2f("texelSize", 0, texel[1])
		prog.Texture("uTexture", 0, temp.Texture())
		field.Blit(c.dev, target, false)
	}
}
