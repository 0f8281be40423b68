package gpu

// MaxTextureUnits is the number of texture units the cache tracks.
const MaxTextureUnits = 16

type blendFunc struct{ src, dst BlendFactor }

type viewport struct{ x, y, w, h int }

// StateCache wraps a Device and drops state changes that match the last
// value set. Every draw in the simulation goes through one.
//
// The cache only knows what passed through it. Call Reset after anything
// touches the device behind its back.
type StateCache struct {
	Device

	program     Program
	programSet  bool
	framebuffer Framebuffer
	fbSet       bool
	textures    [MaxTextureUnits]Texture
	texSet      [MaxTextureUnits]bool
	view        viewport
	viewSet     bool
	blend       bool
	blendSet    bool
	blendFn     blendFunc
	blendFnSet  bool

	frame FrameCounters
}

// FrameCounters are per-frame draw statistics.
type FrameCounters struct {
	DrawCalls int
	Triangles int
	// Skipped counts state calls the cache elided.
	Skipped int
}

// NewStateCache wraps dev.
func NewStateCache(dev Device) *StateCache {
	return &StateCache{Device: dev}
}

// Reset forgets all memoized state so the next call of each kind reaches the device.
func (c *StateCache) Reset() {
	c.programSet = false
	c.fbSet = false
	c.texSet = [MaxTextureUnits]bool{}
	c.viewSet = false
	c.blendSet = false
	c.blendFnSet = false
}

// BeginFrame zeroes the frame counters and returns the previous frame's.
func (c *StateCache) BeginFrame() FrameCounters {
	prev := c.frame
	c.frame = FrameCounters{}
	return prev
}

// Counters returns the counters of the frame in progress.
func (c *StateCache) Counters() FrameCounters {
	return c.frame
}

func (c *StateCache) UseProgram(p Program) {
	if c.programSet && c.program == p {
		c.frame.Skipped++
		return
	}
	c.program, c.programSet = p, true
	c.Device.UseProgram(p)
}

// Program returns the program last made current through the cache.
func (c *StateCache) Program() Program {
	return c.program
}

func (c *StateCache) BindFramebuffer(fb Framebuffer) {
	if c.fbSet && c.framebuffer == fb {
		c.frame.Skipped++
		return
	}
	c.framebuffer, c.fbSet = fb, true
	c.Device.BindFramebuffer(fb)
}

func (c *StateCache) BindTexture(unit int, t Texture) {
	if unit < 0 || unit >= MaxTextureUnits {
		c.Device.BindTexture(unit, t)
		return
	}
	if c.texSet[unit] && c.textures[unit] == t {
		c.frame.Skipped++
		return
	}
	c.textures[unit], c.texSet[unit] = t, true
	c.Device.BindTexture(unit, t)
}

func (c *StateCache) Viewport(x, y, w, h int) {
	v := viewport{x, y, w, h}
	if c.viewSet && c.view == v {
		c.frame.Skipped++
		return
	}
	c.view, c.viewSet = v, true
	c.Device.Viewport(x, y, w, h)
}

func (c *StateCache) SetBlend(enabled bool) {
	if c.blendSet && c.blend == enabled {
		c.frame.Skipped++
		return
	}
	c.blend, c.blendSet = enabled, true
	c.Device.SetBlend(enabled)
}

func (c *StateCache) BlendFunc(src, dst BlendFactor) {
	fn := blendFunc{src, dst}
	if c.blendFnSet && c.blendFn == fn {
		c.frame.Skipped++
		return
	}
	c.blendFn, c.blendFnSet = fn, true
	c.Device.BlendFunc(src, dst)
}

func (c *StateCache) DrawQuad() {
	c.frame.DrawCalls++
	c.frame.Triangles += 2
	c.Device.DrawQuad()
}

// Creation may rebind textures and framebuffers inside the device.
func (c *StateCache) CreateTexture(w, h int, f Format, filter Filter) (Texture, error) {
	c.forgetBindings()
	return c.Device.CreateTexture(w, h, f, filter)
}

func (c *StateCache) CreateFramebuffer(t Texture) (Framebuffer, error) {
	c.forgetBindings()
	return c.Device.CreateFramebuffer(t)
}

func (c *StateCache) ReadPixels(fb Framebuffer, w, h int) ([]float32, error) {
	c.forgetBindings()
	return c.Device.ReadPixels(fb, w, h)
}

func (c *StateCache) DeleteTexture(t Texture) {
	for i := range c.textures {
		if c.texSet[i] && c.textures[i] == t {
			c.texSet[i] = false
		}
	}
	c.Device.DeleteTexture(t)
}

func (c *StateCache) DeleteFramebuffer(fb Framebuffer) {
	if c.fbSet && c.framebuffer == fb {
		c.fbSet = false
	}
	c.Device.DeleteFramebuffer(fb)
}

func (c *StateCache) DeleteProgram(p Program) {
	if c.programSet && c.program == p {
		c.programSet = false
	}
	c.Device.DeleteProgram(p)
}

func (c *StateCache) forgetBindings() {
	c.fbSet = false
	c.texSet = [MaxTextureUnits]bool{}
}
