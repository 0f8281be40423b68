package gpu

import "fmt"

// fakeDevice records calls and fails on request.
type fakeDevice struct {
	revisions   []string
	unavailable map[string]bool
	unsupported map[Format]bool
	noLinear    bool
	// rejectFB marks formats whose framebuffers queue an error instead of failing.
	rejectFB map[Format]bool

	selected string
	nextID   uint32
	textures map[Texture]Format
	errs     []error
	calls    map[string]int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		revisions:   []string{"gl33", "gl21"},
		unavailable: map[string]bool{},
		unsupported: map[Format]bool{},
		rejectFB:    map[Format]bool{},
		textures:    map[Texture]Format{},
		calls:       map[string]int{},
	}
}

func (d *fakeDevice) id() uint32 { d.nextID++; return d.nextID }

func (d *fakeDevice) Info() Info {
	return Info{Renderer: "fake", Revision: d.selected, MaxTextureSize: 4096}
}
func (d *fakeDevice) Revisions() []string { return d.revisions }
func (d *fakeDevice) SelectRevision(name string) error {
	if d.unavailable[name] {
		return fmt.Errorf("revision %s: %w", name, ErrUnsupported)
	}
	d.selected = name
	return nil
}

func (d *fakeDevice) CreateTexture(w, h int, f Format, filter Filter) (Texture, error) {
	d.calls["CreateTexture"]++
	if d.unsupported[f] {
		return 0, &Error{Op: "create texture", Err: ErrAllocation}
	}
	if filter == Linear && f.IsFloat() && d.noLinear {
		return 0, &Error{Op: "create texture", Err: ErrUnsupported}
	}
	t := Texture(d.id())
	d.textures[t] = f
	return t, nil
}
func (d *fakeDevice) DeleteTexture(t Texture) {
	d.calls["DeleteTexture"]++
	delete(d.textures, t)
}
func (d *fakeDevice) CreateFramebuffer(t Texture) (Framebuffer, error) {
	d.calls["CreateFramebuffer"]++
	if d.rejectFB[d.textures[t]] {
		d.errs = append(d.errs, ErrIncompleteFramebuffer)
	}
	return Framebuffer(d.id()), nil
}
func (d *fakeDevice) DeleteFramebuffer(Framebuffer) { d.calls["DeleteFramebuffer"]++ }
func (d *fakeDevice) CompileProgram(ProgramSource, []string) (Program, error) {
	return Program(d.id()), nil
}
func (d *fakeDevice) DeleteProgram(Program)                         { d.calls["DeleteProgram"]++ }
func (d *fakeDevice) UseProgram(Program)                            { d.calls["UseProgram"]++ }
func (d *fakeDevice) UniformLocation(Program, string) Location      { return 0 }
func (d *fakeDevice) Uniform1f(Location, float32)                   {}
func (d *fakeDevice) Uniform2f(Location, float32, float32)          {}
func (d *fakeDevice) Uniform3f(Location, float32, float32, float32) {}
func (d *fakeDevice) Uniform4f(Location, float32, float32, float32, float32) {
}
func (d *fakeDevice) Uniform1i(Location, int32)                     {}
func (d *fakeDevice) BindTexture(int, Texture)                      { d.calls["BindTexture"]++ }
func (d *fakeDevice) BindFramebuffer(Framebuffer)                   { d.calls["BindFramebuffer"]++ }
func (d *fakeDevice) Viewport(int, int, int, int)                   { d.calls["Viewport"]++ }
func (d *fakeDevice) SetBlend(bool)                                 { d.calls["SetBlend"]++ }
func (d *fakeDevice) BlendFunc(BlendFactor, BlendFactor)            { d.calls["BlendFunc"]++ }
func (d *fakeDevice) ClearColor(float32, float32, float32, float32) {}
func (d *fakeDevice) Clear()                                        {}
func (d *fakeDevice) DrawQuad()                                     { d.calls["DrawQuad"]++ }
func (d *fakeDevice) ReadPixels(Framebuffer, int, int) ([]float32, error) {
	d.calls["ReadPixels"]++
	return nil, nil
}
func (d *fakeDevice) SurfaceSize() (int, int) { return 64, 64 }
func (d *fakeDevice) Error() error {
	if len(d.errs) == 0 {
		return nil
	}
	err := d.errs[0]
	d.errs = d.errs[1:]
	return err
}
