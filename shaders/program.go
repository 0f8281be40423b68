package shaders

import (
	"fmt"
	"slices"
	"strings"

	"github.com/artinkavousi/Webfluidsystem/gpu"
)

// Program is a compiled program with its uniform locations cached by name.
type Program struct {
	dev      gpu.Device
	id       gpu.Program
	name     string
	uniforms map[string]gpu.Location
}

func newProgram(dev gpu.Device, src gpu.ProgramSource, keywords []string) (*Program, error) {
	id, err := dev.CompileProgram(src, keywords)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", src.Name, err)
	}
	return &Program{dev: dev, id: id, name: src.Name, uniforms: make(map[string]gpu.Location)}, nil
}

// Name returns the program's source name.
func (p *Program) Name() string { return p.name }

// Bind makes p the current program.
func (p *Program) Bind() {
	p.dev.UseProgram(p.id)
}

// Location returns the cached location of a uniform.
func (p *Program) Location(name string) gpu.Location {
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	loc := p.dev.UniformLocation(p.id, name)
	p.uniforms[name] = loc
	return loc
}

func (p *Program) Set1f(name string, x float32) {
	p.dev.Uniform1f(p.Location(name), x)
}

func (p *Program) Set2f(name string, x, y float32) {
	p.dev.Uniform2f(p.Location(name), x, y)
}

func (p *Program) Set2v(name string, v gpu.Vec2) {
	p.dev.Uniform2f(p.Location(name), v[0], v[1])
}

func (p *Program) Set3f(name string, x, y, z float32) {
	p.dev.Uniform3f(p.Location(name), x, y, z)
}

func (p *Program) Set4f(name string, x, y, z, w float32) {
	p.dev.Uniform4f(p.Location(name), x, y, z, w)
}

func (p *Program) Set1i(name string, v int32) {
	p.dev.Uniform1i(p.Location(name), v)
}

// Texture binds t to unit and points the named sampler at it.
func (p *Program) Texture(name string, unit int, t gpu.Texture) {
	p.dev.BindTexture(unit, t)
	p.Set1i(name, int32(unit))
}

func (p *Program) delete() {
	if p.id != 0 {
		p.dev.DeleteProgram(p.id)
		p.id = 0
	}
}

// Material compiles one variant of a program per keyword set and keeps
// the active one. Switching to a set already seen reuses its program.
type Material struct {
	dev      gpu.Device
	src      gpu.ProgramSource
	variants map[string]*Program
	active   *Program
	keywords []string
}

// NewMaterial creates a material for src. No program is compiled until
// SetKeywords is called.
func NewMaterial(dev gpu.Device, src gpu.ProgramSource) *Material {
	return &Material{dev: dev, src: src, variants: make(map[string]*Program)}
}

// SetKeywords selects the variant for keywords, compiling it on first use.
func (m *Material) SetKeywords(keywords []string) error {
	set := slices.Clone(keywords)
	slices.Sort(set)
	set = slices.Compact(set)
	key := strings.Join(set, ",")

	if m.active != nil && slices.Equal(set, m.keywords) {
		return nil
	}
	if p, ok := m.variants[key]; ok {
		m.active, m.keywords = p, set
		return nil
	}
	p, err := newProgram(m.dev, m.src, set)
	if err != nil {
		return err
	}
	m.variants[key] = p
	m.active, m.keywords = p, set
	return nil
}

// Keywords returns the active keyword set, sorted.
func (m *Material) Keywords() []string { return slices.Clone(m.keywords) }

// Program returns the active variant, nil before SetKeywords.
func (m *Material) Program() *Program { return m.active }

// Variants reports how many programs the material has compiled.
func (m *Material) Variants() int { return len(m.variants) }

func (m *Material) delete() {
	for _, p := range m.variants {
		p.delete()
	}
	clear(m.variants)
	m.active = nil
	m.keywords = nil
}
