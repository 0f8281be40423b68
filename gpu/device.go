// Package gpu defines the rendering device abstraction the fluid simulation
// draws through, plus the capability negotiator and the redundant-state cache
// that sit in front of every device implementation.
package gpu

// Handles are opaque device object IDs. Zero is never a valid handle; the
// zero Framebuffer is the default (screen) target.
type (
	Texture     uint32
	Framebuffer uint32
	Program     uint32
)

// Location is a uniform location. -1 means the uniform is not active.
type Location int32

// NoLocation is returned for uniforms the program does not use.
const NoLocation Location = -1

// Info describes the active context.
type Info struct {
	Renderer       string
	Revision       string
	MaxTextureSize int
}

// Device is a GL-like immediate mode rendering device. Draws always go to the
// bound framebuffer with the bound program, using textures bound by unit.
// Errors raised outside of creation calls are queued and drained with Error.
type Device interface {
	Info() Info
	// Revisions lists API revisions in preference order, most capable first.
	Revisions() []string
	SelectRevision(name string) error

	CreateTexture(width, height int, format Format, filter Filter) (Texture, error)
	DeleteTexture(t Texture)
	CreateFramebuffer(t Texture) (Framebuffer, error)
	DeleteFramebuffer(fb Framebuffer)
	CompileProgram(src ProgramSource, keywords []string) (Program, error)
	DeleteProgram(p Program)

	UseProgram(p Program)
	UniformLocation(p Program, name string) Location
	Uniform1f(loc Location, x float32)
	Uniform2f(loc Location, x, y float32)
	Uniform3f(loc Location, x, y, z float32)
	Uniform4f(loc Location, x, y, z, w float32)
	Uniform1i(loc Location, v int32)

	BindTexture(unit int, t Texture)
	BindFramebuffer(fb Framebuffer)
	Viewport(x, y, width, height int)
	SetBlend(enabled bool)
	BlendFunc(src, dst BlendFactor)
	ClearColor(r, g, b, a float32)
	Clear()
	DrawQuad()

	// ReadPixels returns RGBA float texels of fb, row-major from the bottom row.
	ReadPixels(fb Framebuffer, width, height int) ([]float32, error)
	// SurfaceSize is the size of the default framebuffer.
	SurfaceSize() (width, height int)
	// Error pops the oldest queued error, or nil.
	Error() error
}
