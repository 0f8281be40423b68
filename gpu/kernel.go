package gpu

// Vector types shared by kernels and uniforms.
type (
	Vec2 [2]float32
	Vec3 [3]float32
	Vec4 [4]float32
)

// Sampler reads a bound texture with its own filter and clamp-to-edge wrapping.
type Sampler interface {
	Sample(uv Vec2) Vec4
	Size() (width, height int)
}

// Inputs exposes a program's uniforms to a kernel. Lookups happen once per
// draw; missing names return zero values.
type Inputs interface {
	Float(name string) float32
	Vec2(name string) Vec2
	Vec3(name string) Vec3
	Vec4(name string) Vec4
	Int(name string) int32
	// Sampler returns the texture bound to the unit named by an int uniform.
	Sampler(name string) Sampler
	Keyword(name string) bool
}

// FragmentFunc shades one fragment at normalized coordinates uv.
type FragmentFunc func(uv Vec2) Vec4

// Kernel binds a draw's inputs and returns the per-fragment function.
type Kernel func(in Inputs) FragmentFunc

// ProgramSource carries a program in both its shading-language form and as a
// CPU kernel. Devices use whichever they can execute.
type ProgramSource struct {
	Name     string
	Vertex   string
	Fragment string
	Kernel   Kernel
}
