// Package rlgpu implements gpu.Device on top of raylib's rlgl layer. It must
// be created after rl.InitWindow and used only from the window's thread.
package rlgpu

import (
	"fmt"
	"math"
	"unsafe"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/artinkavousi/Webfluidsystem/gpu"
)

// glslHeader is prepended to every stage before keyword defines.
const glslHeader = "#version 330\nprecision highp float;\n"

type texInfo struct {
	tex    rl.Texture2D
	format gpu.Format
}

// Device drives the GL context owned by raylib.
type Device struct {
	textures     map[gpu.Texture]texInfo
	framebuffers map[gpu.Framebuffer]gpu.Texture
	programs     map[gpu.Program]string

	current gpu.Program
	bound   gpu.Framebuffer
	units   [gpu.MaxTextureUnits]gpu.Texture
	errs    []error
}

var _ gpu.Device = (*Device)(nil)

// New wraps the current raylib context.
func New() *Device {
	return &Device{
		textures:     make(map[gpu.Texture]texInfo),
		framebuffers: make(map[gpu.Framebuffer]gpu.Texture),
		programs:     make(map[gpu.Program]string),
	}
}

func revisionName(v int32) string {
	switch v {
	case rl.Opengl43:
		return "gl43"
	case rl.Opengl33:
		return "gl33"
	case rl.Opengl21:
		return "gl21"
	case rl.OpenglEs20:
		return "gles2"
	}
	return "gl11"
}

func (d *Device) Info() gpu.Info {
	return gpu.Info{
		Renderer:       "raylib",
		Revision:       revisionName(rl.GetVersion()),
		MaxTextureSize: 8192,
	}
}

// Revisions lists the revisions the shaders are written for.
func (d *Device) Revisions() []string { return []string{"gl43", "gl33"} }

// SelectRevision succeeds only for the revision raylib was built against;
// the context cannot be recreated from here.
func (d *Device) SelectRevision(name string) error {
	if have := revisionName(rl.GetVersion()); have != name {
		return &gpu.Error{Op: "select revision " + name, Err: fmt.Errorf("%w: context is %s", gpu.ErrUnsupported, have)}
	}
	return nil
}

func (d *Device) pushErr(err error) { d.errs = append(d.errs, err) }

func (d *Device) Error() error {
	if len(d.errs) == 0 {
		return nil
	}
	err := d.errs[0]
	d.errs = d.errs[1:]
	return err
}

func pixelFormat(f gpu.Format) (rl.PixelFormat, bool) {
	switch f {
	case gpu.RGBA32F:
		return rl.UncompressedR32g32b32a32, true
	case gpu.R32F:
		return rl.UncompressedR32, true
	case gpu.RGBA8:
		return rl.UncompressedR8g8b8a8, true
	}
	return 0, false
}

func (d *Device) CreateTexture(w, h int, format gpu.Format, filter gpu.Filter) (gpu.Texture, error) {
	const op = "create texture"
	pf, ok := pixelFormat(format)
	if !ok {
		return 0, &gpu.Error{Op: op, Err: fmt.Errorf("%w: format %v", gpu.ErrAllocation, format)}
	}
	if w <= 0 || h <= 0 {
		return 0, &gpu.Error{Op: op, Err: fmt.Errorf("%w: size %dx%d", gpu.ErrAllocation, w, h)}
	}

	data := make([]byte, w*h*format.BytesPerPixel())
	img := rl.NewImage(data, int32(w), int32(h), 1, pf)
	tex := rl.LoadTextureFromImage(img)
	if tex.ID == 0 {
		return 0, &gpu.Error{Op: op, Err: gpu.ErrOutOfMemory}
	}

	mode := int32(rl.TextureFilterNearest)
	if filter == gpu.Linear {
		mode = rl.TextureFilterLinear
	}
	rl.TextureParameters(tex.ID, rl.TextureMinFilter, mode)
	rl.TextureParameters(tex.ID, rl.TextureMagFilter, mode)
	rl.TextureParameters(tex.ID, rl.TextureWrapS, rl.TextureWrapClamp)
	rl.TextureParameters(tex.ID, rl.TextureWrapT, rl.TextureWrapClamp)
	d.restoreBindings()

	id := gpu.Texture(tex.ID)
	d.textures[id] = texInfo{tex: tex, format: format}
	return id, nil
}

func (d *Device) DeleteTexture(t gpu.Texture) {
	info, ok := d.textures[t]
	if !ok {
		d.pushErr(&gpu.Error{Op: "delete texture", Err: gpu.ErrInvalidOperation})
		return
	}
	rl.UnloadTexture(info.tex)
	delete(d.textures, t)
	for i, u := range d.units {
		if u == t {
			d.units[i] = 0
		}
	}
}

func (d *Device) CreateFramebuffer(t gpu.Texture) (gpu.Framebuffer, error) {
	const op = "create framebuffer"
	info, ok := d.textures[t]
	if !ok {
		return 0, &gpu.Error{Op: op, Err: gpu.ErrIncompleteFramebuffer}
	}
	fbo := rl.LoadFramebuffer()
	if fbo == 0 {
		return 0, &gpu.Error{Op: op, Err: gpu.ErrOutOfMemory}
	}
	rl.FramebufferAttach(fbo, info.tex.ID, rl.AttachmentColorChannel0, rl.AttachmentTexture2d, 0)
	complete := rl.FramebufferComplete(fbo)
	d.restoreBindings()
	if !complete {
		rl.UnloadFramebuffer(fbo)
		return 0, &gpu.Error{Op: op, Err: gpu.ErrIncompleteFramebuffer}
	}

	id := gpu.Framebuffer(fbo)
	d.framebuffers[id] = t
	return id, nil
}

func (d *Device) DeleteFramebuffer(fb gpu.Framebuffer) {
	if _, ok := d.framebuffers[fb]; !ok {
		d.pushErr(&gpu.Error{Op: "delete framebuffer", Err: gpu.ErrInvalidOperation})
		return
	}
	// Unloading binds and then unbinds the framebuffer.
	rl.UnloadFramebuffer(uint32(fb))
	delete(d.framebuffers, fb)
	if d.bound == fb {
		d.bound = 0
	}
	d.restoreBindings()
}

func withKeywords(src string, keywords []string) string {
	out := glslHeader
	for _, k := range keywords {
		out += "#define " + k + "\n"
	}
	return out + src
}

func (d *Device) CompileProgram(src gpu.ProgramSource, keywords []string) (gpu.Program, error) {
	op := "compile " + src.Name
	if src.Vertex == "" || src.Fragment == "" {
		return 0, &gpu.Error{Op: op, Err: fmt.Errorf("%w: missing stage", gpu.ErrCompile)}
	}
	id := rl.LoadShaderCode(withKeywords(src.Vertex, keywords), withKeywords(src.Fragment, keywords))
	// rlgl substitutes its default program when compilation or linking fails.
	if id == 0 || id == rl.GetShaderIdDefault() {
		return 0, &gpu.Error{Op: op, Err: gpu.ErrCompile}
	}
	p := gpu.Program(id)
	d.programs[p] = src.Name
	return p, nil
}

func (d *Device) DeleteProgram(p gpu.Program) {
	if _, ok := d.programs[p]; !ok {
		d.pushErr(&gpu.Error{Op: "delete program", Err: gpu.ErrInvalidOperation})
		return
	}
	rl.UnloadShaderProgram(uint32(p))
	delete(d.programs, p)
	if d.current == p {
		d.current = 0
	}
}

func (d *Device) UseProgram(p gpu.Program) {
	d.current = p
	if p == 0 {
		rl.DisableShader()
		return
	}
	rl.EnableShader(uint32(p))
}

func (d *Device) UniformLocation(p gpu.Program, name string) gpu.Location {
	return gpu.Location(rl.GetLocationUniform(uint32(p), name))
}

func (d *Device) setUniform(loc gpu.Location, v []float32, typ rl.ShaderUniformDataType) {
	if loc < 0 || d.current == 0 {
		return
	}
	rl.SetShaderValue(rl.Shader{ID: uint32(d.current)}, int32(loc), v, typ)
}

func (d *Device) Uniform1f(loc gpu.Location, x float32) {
	d.setUniform(loc, []float32{x}, rl.ShaderUniformFloat)
}

func (d *Device) Uniform2f(loc gpu.Location, x, y float32) {
	d.setUniform(loc, []float32{x, y}, rl.ShaderUniformVec2)
}

func (d *Device) Uniform3f(loc gpu.Location, x, y, z float32) {
	d.setUniform(loc, []float32{x, y, z}, rl.ShaderUniformVec3)
}

func (d *Device) Uniform4f(loc gpu.Location, x, y, z, w float32) {
	d.setUniform(loc, []float32{x, y, z, w}, rl.ShaderUniformVec4)
}

// Uniform1i passes the int's bits through a float slot; rlgl reads it as GLint.
func (d *Device) Uniform1i(loc gpu.Location, v int32) {
	d.setUniform(loc, []float32{math.Float32frombits(uint32(v))}, rl.ShaderUniformInt)
}

func (d *Device) BindTexture(unit int, t gpu.Texture) {
	if unit < 0 || unit >= len(d.units) {
		d.pushErr(&gpu.Error{Op: "bind texture", Err: gpu.ErrInvalidOperation})
		return
	}
	d.units[unit] = t
	rl.ActiveTextureSlot(int32(unit))
	rl.EnableTexture(uint32(t))
}

func (d *Device) BindFramebuffer(fb gpu.Framebuffer) {
	rl.DrawRenderBatchActive()
	d.bound = fb
	if fb == 0 {
		rl.DisableFramebuffer()
		return
	}
	rl.EnableFramebuffer(uint32(fb))
}

// restoreBindings reapplies texture and framebuffer bindings that rlgl
// resets while creating objects.
func (d *Device) restoreBindings() {
	for unit, t := range d.units {
		if t != 0 {
			rl.ActiveTextureSlot(int32(unit))
			rl.EnableTexture(uint32(t))
		}
	}
	rl.ActiveTextureSlot(0)
	if d.bound != 0 {
		rl.EnableFramebuffer(uint32(d.bound))
	} else {
		rl.DisableFramebuffer()
	}
}

func (d *Device) Viewport(x, y, w, h int) {
	rl.Viewport(int32(x), int32(y), int32(w), int32(h))
}

func (d *Device) SetBlend(enabled bool) {
	if enabled {
		rl.EnableColorBlend()
	} else {
		rl.DisableColorBlend()
	}
}

func glFactor(f gpu.BlendFactor) int32 {
	switch f {
	case gpu.One:
		return rl.One
	case gpu.SrcAlpha:
		return rl.SrcAlpha
	case gpu.OneMinusSrcAlpha:
		return rl.OneMinusSrcAlpha
	}
	return rl.Zero
}

func (d *Device) BlendFunc(src, dst gpu.BlendFactor) {
	rl.SetBlendFactors(glFactor(src), glFactor(dst), rl.FuncAdd)
	rl.SetBlendMode(rl.BlendCustom)
}

func (d *Device) ClearColor(r, g, b, a float32) {
	rl.ClearColor(unorm(r), unorm(g), unorm(b), unorm(a))
}

func unorm(v float32) uint8 {
	return uint8(math.Round(float64(min(max(v, 0), 1)) * 255))
}

func (d *Device) Clear() {
	rl.ClearScreenBuffers()
}

func (d *Device) DrawQuad() {
	rl.LoadDrawQuad()
}

func (d *Device) SurfaceSize() (int, int) {
	return rl.GetRenderWidth(), rl.GetRenderHeight()
}

func (d *Device) ReadPixels(fb gpu.Framebuffer, w, h int) ([]float32, error) {
	defer d.restoreBindings()

	if fb == 0 {
		img := rl.LoadImageFromScreen()
		defer rl.UnloadImage(img)
		return readImage(img, gpu.RGBA8, w, h, true), nil
	}

	t, ok := d.framebuffers[fb]
	if !ok {
		return nil, &gpu.Error{Op: "read pixels", Err: gpu.ErrInvalidOperation}
	}
	info := d.textures[t]
	img := rl.LoadImageFromTexture(info.tex)
	if img == nil || img.Data == nil {
		return nil, &gpu.Error{Op: "read pixels", Err: gpu.ErrInvalidOperation}
	}
	defer rl.UnloadImage(img)
	return readImage(img, info.format, w, h, false), nil
}

// readImage converts img to RGBA floats bottom row first. Screen captures
// arrive top row first.
func readImage(img *rl.Image, f gpu.Format, w, h int, topDown bool) []float32 {
	iw, ih := int(img.Width), int(img.Height)
	w, h = min(w, iw), min(h, ih)
	out := make([]float32, 0, 4*w*h)

	var floats []float32
	var bytes []byte
	if f.Type == gpu.Float {
		floats = unsafe.Slice((*float32)(img.Data), iw*ih*f.Channels)
	} else {
		bytes = unsafe.Slice((*byte)(img.Data), iw*ih*f.Channels)
	}

	for y := 0; y < h; y++ {
		row := y
		if topDown {
			row = ih - 1 - y
		}
		for x := 0; x < w; x++ {
			px := gpu.Vec4{0, 0, 0, 1}
			base := (row*iw + x) * f.Channels
			for c := 0; c < f.Channels; c++ {
				if floats != nil {
					px[c] = floats[base+c]
				} else {
					px[c] = float32(bytes[base+c]) / 255
				}
			}
			out = append(out, px[:]...)
		}
	}
	return out
}

// EndFrame hands GL state back to raylib's batch renderer. Any StateCache
// wrapping this device must be Reset before the next simulation draw.
func (d *Device) EndFrame() {
	rl.DrawRenderBatchActive()
	d.UseProgram(0)
	d.BindFramebuffer(0)
	for unit := range d.units {
		if d.units[unit] != 0 {
			rl.ActiveTextureSlot(int32(unit))
			rl.DisableTexture()
			d.units[unit] = 0
		}
	}
	rl.ActiveTextureSlot(0)
	rl.EnableColorBlend()
	rl.SetBlendMode(rl.BlendAlpha)
	w, h := d.SurfaceSize()
	rl.Viewport(0, 0, int32(w), int32(h))
}

// Close unloads every object still owned by the device.
func (d *Device) Close() {
	for fb := range d.framebuffers {
		d.DeleteFramebuffer(fb)
	}
	for t := range d.textures {
		d.DeleteTexture(t)
	}
	for p := range d.programs {
		d.DeleteProgram(p)
	}
}
