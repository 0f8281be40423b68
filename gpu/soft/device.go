// Package soft is a CPU implementation of gpu.Device. It runs program kernels
// per fragment with GL sampling, blending and precision rules, and is used
// for headless runs and tests.
package soft

import (
	"fmt"
	"slices"

	"github.com/artinkavousi/Webfluidsystem/gpu"
)

// Op names a fallible device operation for fault injection.
type Op string

const (
	OpCreateTexture     Op = "CreateTexture"
	OpCreateFramebuffer Op = "CreateFramebuffer"
	OpCompileProgram    Op = "CompileProgram"
)

// Options configures a Device.
type Options struct {
	// Revisions offered in preference order. Defaults to gl33, gl21, gles2.
	Revisions []string
	// Unavailable revisions fail SelectRevision.
	Unavailable []string
	// Unsupported formats fail CreateTexture.
	Unsupported []gpu.Format
	// NoLinearFloat rejects linear filtering on float textures.
	NoLinearFloat  bool
	MaxTextureSize int
	// MemoryLimit caps texture bytes. Zero means unlimited.
	MemoryLimit int64
	// Workers shading in parallel. Zero uses GOMAXPROCS.
	Workers int
	// Surface is the initial default framebuffer size.
	SurfaceWidth, SurfaceHeight int
}

// Stats counts live objects and lifetime allocations.
type Stats struct {
	Textures, Framebuffers, Programs int

	TexturesCreated     int
	FramebuffersCreated int
	ProgramsCompiled    int

	BytesAllocated int64
	Draws          int
}

type framebuffer struct {
	tex *texture
	id  gpu.Texture
}

type viewport struct{ x, y, w, h int }

// Device is a software gpu.Device. It is not safe for concurrent use; all
// calls come from the render thread.
type Device struct {
	opts     Options
	selected string
	lost     bool

	nextID       uint32
	textures     map[gpu.Texture]*texture
	framebuffers map[gpu.Framebuffer]*framebuffer
	programs     map[gpu.Program]*program
	surface      *texture

	current    gpu.Program
	bound      gpu.Framebuffer
	units      [gpu.MaxTextureUnits]gpu.Texture
	view       viewport
	blend      bool
	src, dst   gpu.BlendFactor
	clearColor gpu.Vec4

	failNext map[Op]error
	errs     []error
	stats    Stats
	pool     *bandPool
}

var _ gpu.Device = (*Device)(nil)

// New creates a Device.
func New(opts Options) *Device {
	if len(opts.Revisions) == 0 {
		opts.Revisions = []string{"gl33", "gl21", "gles2"}
	}
	if opts.MaxTextureSize == 0 {
		opts.MaxTextureSize = 4096
	}
	if opts.SurfaceWidth == 0 || opts.SurfaceHeight == 0 {
		opts.SurfaceWidth, opts.SurfaceHeight = 256, 256
	}
	d := &Device{
		opts:         opts,
		textures:     make(map[gpu.Texture]*texture),
		framebuffers: make(map[gpu.Framebuffer]*framebuffer),
		programs:     make(map[gpu.Program]*program),
		failNext:     make(map[Op]error),
		src:          gpu.One,
		dst:          gpu.Zero,
		pool:         newBandPool(opts.Workers),
	}
	d.surface = newTexture(opts.SurfaceWidth, opts.SurfaceHeight, gpu.RGBA8, gpu.Nearest)
	d.view = viewport{0, 0, opts.SurfaceWidth, opts.SurfaceHeight}
	return d
}

// Close stops the shading workers.
func (d *Device) Close() {
	d.pool.stop()
}

// FailNext makes the next call of op fail with err.
func (d *Device) FailNext(op Op, err error) {
	d.failNext[op] = err
}

// LoseContext makes every later creation fail and every draw queue ErrContextLost.
func (d *Device) LoseContext() {
	d.lost = true
}

// Stats returns object counters.
func (d *Device) Stats() Stats {
	s := d.stats
	s.Textures = len(d.textures)
	s.Framebuffers = len(d.framebuffers)
	s.Programs = len(d.programs)
	return s
}

// SetSurfaceSize resizes the default framebuffer, like a window resize.
func (d *Device) SetSurfaceSize(w, h int) {
	d.surface = newTexture(max(w, 1), max(h, 1), gpu.RGBA8, gpu.Nearest)
}

func (d *Device) SurfaceSize() (int, int) {
	return d.surface.w, d.surface.h
}

func (d *Device) Info() gpu.Info {
	return gpu.Info{
		Renderer:       "soft",
		Revision:       d.selected,
		MaxTextureSize: d.opts.MaxTextureSize,
	}
}

func (d *Device) Revisions() []string { return d.opts.Revisions }

func (d *Device) SelectRevision(name string) error {
	if d.lost {
		return &gpu.Error{Op: "select revision", Err: gpu.ErrContextLost}
	}
	if !slices.Contains(d.opts.Revisions, name) || slices.Contains(d.opts.Unavailable, name) {
		return &gpu.Error{Op: "select revision " + name, Err: gpu.ErrUnsupported}
	}
	d.selected = name
	return nil
}

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

func (d *Device) pushErr(err error) {
	d.errs = append(d.errs, err)
}

func (d *Device) Error() error {
	if len(d.errs) == 0 {
		return nil
	}
	err := d.errs[0]
	d.errs = d.errs[1:]
	return err
}

// injected returns the failure queued for op, or the context-lost error.
func (d *Device) injected(op Op) error {
	if d.lost {
		return gpu.ErrContextLost
	}
	if err, ok := d.failNext[op]; ok {
		delete(d.failNext, op)
		return err
	}
	return nil
}

func (d *Device) allocated() int64 {
	var n int64
	for _, t := range d.textures {
		n += t.bytes()
	}
	return n
}

func (d *Device) reserve(bytes int64) error {
	if d.opts.MemoryLimit > 0 && d.allocated()+bytes > d.opts.MemoryLimit {
		return gpu.ErrOutOfMemory
	}
	return nil
}

func (d *Device) CreateTexture(w, h int, format gpu.Format, filter gpu.Filter) (gpu.Texture, error) {
	const op = "create texture"
	if err := d.injected(OpCreateTexture); err != nil {
		return 0, &gpu.Error{Op: op, Err: err}
	}
	if w <= 0 || h <= 0 || w > d.opts.MaxTextureSize || h > d.opts.MaxTextureSize {
		return 0, &gpu.Error{Op: op, Err: fmt.Errorf("%w: size %dx%d", gpu.ErrAllocation, w, h)}
	}
	if slices.Contains(d.opts.Unsupported, format) {
		return 0, &gpu.Error{Op: op, Err: fmt.Errorf("%w: format %v", gpu.ErrAllocation, format)}
	}
	if filter == gpu.Linear && format.IsFloat() && d.opts.NoLinearFloat {
		return 0, &gpu.Error{Op: op, Err: fmt.Errorf("%w: linear %v", gpu.ErrUnsupported, format)}
	}

	t := newTexture(w, h, format, filter)
	if err := d.reserve(t.bytes()); err != nil {
		return 0, &gpu.Error{Op: op, Err: err}
	}
	id := gpu.Texture(d.id())
	d.textures[id] = t
	d.stats.TexturesCreated++
	d.stats.BytesAllocated += t.bytes()
	return id, nil
}

func (d *Device) DeleteTexture(t gpu.Texture) {
	if _, ok := d.textures[t]; !ok {
		d.pushErr(&gpu.Error{Op: "delete texture", Err: gpu.ErrInvalidOperation})
		return
	}
	delete(d.textures, t)
	for i, u := range d.units {
		if u == t {
			d.units[i] = 0
		}
	}
}

func (d *Device) CreateFramebuffer(t gpu.Texture) (gpu.Framebuffer, error) {
	const op = "create framebuffer"
	if err := d.injected(OpCreateFramebuffer); err != nil {
		return 0, &gpu.Error{Op: op, Err: err}
	}
	tex, ok := d.textures[t]
	if !ok {
		return 0, &gpu.Error{Op: op, Err: gpu.ErrIncompleteFramebuffer}
	}
	id := gpu.Framebuffer(d.id())
	d.framebuffers[id] = &framebuffer{tex: tex, id: t}
	d.stats.FramebuffersCreated++
	return id, nil
}

func (d *Device) DeleteFramebuffer(fb gpu.Framebuffer) {
	if _, ok := d.framebuffers[fb]; !ok {
		d.pushErr(&gpu.Error{Op: "delete framebuffer", Err: gpu.ErrInvalidOperation})
		return
	}
	delete(d.framebuffers, fb)
	if d.bound == fb {
		d.bound = 0
	}
}

func (d *Device) CompileProgram(src gpu.ProgramSource, keywords []string) (gpu.Program, error) {
	op := "compile " + src.Name
	if err := d.injected(OpCompileProgram); err != nil {
		return 0, &gpu.Error{Op: op, Err: err}
	}
	if src.Kernel == nil {
		return 0, &gpu.Error{Op: op, Err: fmt.Errorf("%w: no kernel", gpu.ErrCompile)}
	}
	id := gpu.Program(d.id())
	d.programs[id] = newProgram(src, keywords)
	d.stats.ProgramsCompiled++
	return id, nil
}

func (d *Device) DeleteProgram(p gpu.Program) {
	if _, ok := d.programs[p]; !ok {
		d.pushErr(&gpu.Error{Op: "delete program", Err: gpu.ErrInvalidOperation})
		return
	}
	delete(d.programs, p)
	if d.current == p {
		d.current = 0
	}
}

func (d *Device) UseProgram(p gpu.Program) {
	if _, ok := d.programs[p]; !ok && p != 0 {
		d.pushErr(&gpu.Error{Op: "use program", Err: gpu.ErrInvalidOperation})
		return
	}
	d.current = p
}

func (d *Device) UniformLocation(p gpu.Program, name string) gpu.Location {
	prog, ok := d.programs[p]
	if !ok {
		return gpu.NoLocation
	}
	return prog.location(name)
}

func (d *Device) uniform(loc gpu.Location, v uniformValue) {
	prog, ok := d.programs[d.current]
	if !ok {
		d.pushErr(&gpu.Error{Op: "uniform", Err: gpu.ErrInvalidOperation})
		return
	}
	prog.set(loc, v)
}

func (d *Device) Uniform1f(loc gpu.Location, x float32) {
	d.uniform(loc, uniformValue{v: gpu.Vec4{x}})
}

func (d *Device) Uniform2f(loc gpu.Location, x, y float32) {
	d.uniform(loc, uniformValue{v: gpu.Vec4{x, y}})
}

func (d *Device) Uniform3f(loc gpu.Location, x, y, z float32) {
	d.uniform(loc, uniformValue{v: gpu.Vec4{x, y, z}})
}

func (d *Device) Uniform4f(loc gpu.Location, x, y, z, w float32) {
	d.uniform(loc, uniformValue{v: gpu.Vec4{x, y, z, w}})
}

func (d *Device) Uniform1i(loc gpu.Location, v int32) {
	d.uniform(loc, uniformValue{i: v, isInt: true})
}

func (d *Device) BindTexture(unit int, t gpu.Texture) {
	if unit < 0 || unit >= len(d.units) {
		d.pushErr(&gpu.Error{Op: "bind texture", Err: gpu.ErrInvalidOperation})
		return
	}
	if _, ok := d.textures[t]; !ok && t != 0 {
		d.pushErr(&gpu.Error{Op: "bind texture", Err: gpu.ErrInvalidOperation})
		return
	}
	d.units[unit] = t
}

func (d *Device) BindFramebuffer(fb gpu.Framebuffer) {
	if _, ok := d.framebuffers[fb]; !ok && fb != 0 {
		d.pushErr(&gpu.Error{Op: "bind framebuffer", Err: gpu.ErrInvalidOperation})
		return
	}
	d.bound = fb
}

func (d *Device) Viewport(x, y, w, h int) {
	d.view = viewport{x, y, w, h}
}

func (d *Device) SetBlend(enabled bool) {
	d.blend = enabled
}

func (d *Device) BlendFunc(src, dst gpu.BlendFactor) {
	d.src, d.dst = src, dst
}

func (d *Device) ClearColor(r, g, b, a float32) {
	d.clearColor = gpu.Vec4{r, g, b, a}
}

func (d *Device) target() *texture {
	if d.bound == 0 {
		return d.surface
	}
	return d.framebuffers[d.bound].tex
}

func (d *Device) Clear() {
	if d.lost {
		d.pushErr(gpu.ErrContextLost)
		return
	}
	d.target().fill(d.clearColor)
}

func (d *Device) DrawQuad() {
	if d.lost {
		d.pushErr(gpu.ErrContextLost)
		return
	}
	prog, ok := d.programs[d.current]
	if !ok {
		d.pushErr(&gpu.Error{Op: "draw", Err: gpu.ErrInvalidOperation})
		return
	}
	d.stats.Draws++

	dst := d.target()
	in := &drawInputs{dev: d, prog: prog, target: dst}
	frag := prog.src.Kernel(in)
	if in.feedback {
		// Sampling the target being drawn is undefined in GL.
		d.pushErr(&gpu.Error{Op: "draw " + prog.src.Name, Err: fmt.Errorf("%w: feedback loop", gpu.ErrInvalidOperation)})
		return
	}

	v := d.view
	x0, x1 := max(v.x, 0), min(v.x+v.w, dst.w)
	y0, y1 := max(v.y, 0), min(v.y+v.h, dst.h)
	if x0 >= x1 || y0 >= y1 {
		return
	}
	invW, invH := 1/float32(v.w), 1/float32(v.h)
	blend, sf, df := d.blend, d.src, d.dst

	d.pool.run(y1-y0, x1-x0, func(r0, r1 int) {
		for y := y0 + r0; y < y0+r1; y++ {
			uy := (float32(y-v.y) + 0.5) * invH
			for x := x0; x < x1; x++ {
				c := frag(gpu.Vec2{(float32(x-v.x) + 0.5) * invW, uy})
				if blend {
					c = blendColor(c, dst.texel(x, y), sf, df)
				}
				dst.store(x, y, c)
			}
		}
	})
}

func blendColor(src, dst gpu.Vec4, sf, df gpu.BlendFactor) gpu.Vec4 {
	s := factor(sf, src)
	t := factor(df, src)
	var out gpu.Vec4
	for i := range out {
		out[i] = src[i]*s + dst[i]*t
	}
	return out
}

func factor(f gpu.BlendFactor, src gpu.Vec4) float32 {
	switch f {
	case gpu.One:
		return 1
	case gpu.SrcAlpha:
		return src[3]
	case gpu.OneMinusSrcAlpha:
		return 1 - src[3]
	default:
		return 0
	}
}

func (d *Device) ReadPixels(fb gpu.Framebuffer, w, h int) ([]float32, error) {
	var tex *texture
	if fb == 0 {
		tex = d.surface
	} else {
		f, ok := d.framebuffers[fb]
		if !ok {
			return nil, &gpu.Error{Op: "read pixels", Err: gpu.ErrInvalidOperation}
		}
		tex = f.tex
	}
	w, h = min(w, tex.w), min(h, tex.h)
	out := make([]float32, 0, 4*w*h)
	for y := 0; y < h; y++ {
		row := tex.data[4*y*tex.w : 4*(y*tex.w+w)]
		out = append(out, row...)
	}
	return out, nil
}

// Texel returns one texel of t, for tests and debugging.
func (d *Device) Texel(t gpu.Texture, x, y int) (gpu.Vec4, bool) {
	tex, ok := d.textures[t]
	if !ok {
		return gpu.Vec4{}, false
	}
	return tex.texel(x, y), true
}

// Upload overwrites t with RGBA float data, row-major from the bottom row.
func (d *Device) Upload(t gpu.Texture, data []float32) error {
	tex, ok := d.textures[t]
	if !ok || len(data) != len(tex.data) {
		return &gpu.Error{Op: "upload", Err: gpu.ErrInvalidOperation}
	}
	for y := 0; y < tex.h; y++ {
		for x := 0; x < tex.w; x++ {
			i := 4 * (y*tex.w + x)
			tex.store(x, y, gpu.Vec4{data[i], data[i+1], data[i+2], data[i+3]})
		}
	}
	return nil
}
