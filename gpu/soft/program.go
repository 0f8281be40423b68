package soft

import (
	"slices"

	"github.com/artinkavousi/Webfluidsystem/gpu"
)

type uniformValue struct {
	v     gpu.Vec4
	i     int32
	isInt bool
}

// program assigns uniform locations on first lookup; every name is active.
type program struct {
	src      gpu.ProgramSource
	keywords []string
	names    map[string]gpu.Location
	values   []uniformValue
}

func newProgram(src gpu.ProgramSource, keywords []string) *program {
	return &program{
		src:      src,
		keywords: slices.Clone(keywords),
		names:    make(map[string]gpu.Location),
	}
}

func (p *program) location(name string) gpu.Location {
	if loc, ok := p.names[name]; ok {
		return loc
	}
	loc := gpu.Location(len(p.values))
	p.names[name] = loc
	p.values = append(p.values, uniformValue{})
	return loc
}

func (p *program) set(loc gpu.Location, v uniformValue) {
	if loc < 0 || int(loc) >= len(p.values) {
		return
	}
	p.values[loc] = v
}

func (p *program) value(name string) uniformValue {
	loc, ok := p.names[name]
	if !ok {
		return uniformValue{}
	}
	return p.values[loc]
}

// drawInputs resolves a program's uniforms for one draw.
type drawInputs struct {
	dev      *Device
	prog     *program
	target   *texture
	feedback bool
}

func (in *drawInputs) Float(name string) float32 {
	u := in.prog.value(name)
	if u.isInt {
		return float32(u.i)
	}
	return u.v[0]
}

func (in *drawInputs) Vec2(name string) gpu.Vec2 {
	v := in.prog.value(name).v
	return gpu.Vec2{v[0], v[1]}
}

func (in *drawInputs) Vec3(name string) gpu.Vec3 {
	v := in.prog.value(name).v
	return gpu.Vec3{v[0], v[1], v[2]}
}

func (in *drawInputs) Vec4(name string) gpu.Vec4 {
	return in.prog.value(name).v
}

func (in *drawInputs) Int(name string) int32 {
	u := in.prog.value(name)
	if !u.isInt {
		return int32(u.v[0])
	}
	return u.i
}

func (in *drawInputs) Sampler(name string) gpu.Sampler {
	unit := int(in.Int(name))
	if unit < 0 || unit >= len(in.dev.units) {
		return emptySampler{}
	}
	tex, ok := in.dev.textures[in.dev.units[unit]]
	if !ok {
		return emptySampler{}
	}
	if tex == in.target {
		in.feedback = true
	}
	return tex
}

func (in *drawInputs) Keyword(name string) bool {
	return slices.Contains(in.prog.keywords, name)
}
