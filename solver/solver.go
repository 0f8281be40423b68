// Package solver advances the velocity and dye fields by one time step:
// vorticity confinement, pressure projection by Jacobi iteration, then
// semi-Lagrangian advection.
package solver

import (
	"fmt"

	"github.com/artinkavousi/Webfluidsystem/field"
	"github.com/artinkavousi/Webfluidsystem/gpu"
	"github.com/artinkavousi/Webfluidsystem/shaders"
)

// Params are the per-step knobs.
type Params struct {
	Curl                float32
	Pressure            float32
	PressureIterations  int
	VelocityDissipation float32
	DensityDissipation  float32
}

// Solver runs the step passes against one field store.
type Solver struct {
	dev    gpu.Device
	progs  *shaders.Set
	fields *field.Store
}

// New creates a solver drawing with progs into fields.
func New(dev gpu.Device, progs *shaders.Set, fields *field.Store) *Solver {
	return &Solver{dev: dev, progs: progs, fields: fields}
}

// Step advances the simulation by dt seconds. Device errors raised by any
// pass are returned after the step.
func (s *Solver) Step(dt float32, p Params) error {
	if !s.fields.Ready() {
		return field.ErrNotReady
	}
	s.dev.SetBlend(false)

	s.Curl()
	s.Vorticity(dt, p.Curl)
	s.Divergence()
	s.ClearPressure(p.Pressure)
	s.Jacobi(p.PressureIterations)
	s.SubtractGradient()
	s.Advect(dt, p.VelocityDissipation, p.DensityDissipation)

	if err := s.dev.Error(); err != nil {
		return fmt.Errorf("solver step: %w", err)
	}
	return nil
}

func (s *Solver) simTexel() gpu.Vec2 {
	return s.fields.Velocity.TexelSize()
}

// Curl writes the velocity field's curl.
func (s *Solver) Curl() {
	f := s.fields
	prog := s.progs.Curl
	prog.Bind()
	prog.Set2v("texelSize", s.simTexel())
	prog.Texture("uVelocity", 0, f.Velocity.Read.Texture())
	field.Blit(s.dev, f.Curl, false)
}

// Vorticity adds the confinement force scaled by strength.
func (s *Solver) Vorticity(dt, strength float32) {
	f := s.fields
	prog := s.progs.Vorticity
	prog.Bind()
	prog.Set2v("texelSize", s.simTexel())
	prog.Texture("uVelocity", 0, f.Velocity.Read.Texture())
	prog.Texture("uCurl", 1, f.Curl.Texture())
	prog.Set1f("curl", strength)
	prog.Set1f("dt", dt)
	field.Blit(s.dev, f.Velocity.Write, false)
	f.Velocity.Swap()
}

// Divergence writes the velocity field's divergence with reflecting walls.
func (s *Solver) Divergence() {
	f := s.fields
	prog := s.progs.Divergence
	prog.Bind()
	prog.Set2v("texelSize", s.simTexel())
	prog.Texture("uVelocity", 0, f.Velocity.Read.Texture())
	field.Blit(s.dev, f.Divergence, false)
}

// ClearPressure scales the previous pressure by factor, warm-starting the
// Jacobi iteration.
func (s *Solver) ClearPressure(factor float32) {
	f := s.fields
	prog := s.progs.Clear
	prog.Bind()
	prog.Set2v("texelSize", s.simTexel())
	prog.Texture("uTexture", 0, f.Pressure.Read.Texture())
	prog.Set1f("value", factor)
	field.Blit(s.dev, f.Pressure.Write, false)
	f.Pressure.Swap()
}

// Jacobi runs n pressure relaxation passes.
func (s *Solver) Jacobi(n int) {
	f := s.fields
	prog := s.progs.Pressure
	prog.Bind()
	prog.Set2v("texelSize", s.simTexel())
	prog.Texture("uDivergence", 0, f.Divergence.Texture())
	for range n {
		prog.Texture("uPressure", 1, f.Pressure.Read.Texture())
		field.Blit(s.dev, f.Pressure.Write, false)
		f.Pressure.Swap()
	}
}

// SubtractGradient projects velocity onto its divergence-free part.
func (s *Solver) SubtractGradient() {
	f := s.fields
	prog := s.progs.GradientSubtract
	prog.Bind()
	prog.Set2v("texelSize", s.simTexel())
	prog.Texture("uPressure", 0, f.Pressure.Read.Texture())
	prog.Texture("uVelocity", 1, f.Velocity.Read.Texture())
	field.Blit(s.dev, f.Velocity.Write, false)
	f.Velocity.Swap()
}

// Advect carries velocity along itself and then dye along velocity.
func (s *Solver) Advect(dt, velocityDissipation, densityDissipation float32) {
	f := s.fields
	prog := s.progs.Advection
	texel := s.simTexel()

	prog.Bind()
	prog.Set2v("texelSize", texel)
	prog.Set2v("dyeTexelSize", texel)
	prog.Texture("uVelocity", 0, f.Velocity.Read.Texture())
	prog.Texture("uSource", 0, f.Velocity.Read.Texture())
	prog.Set1f("dt", dt)
	prog.Set1f("dissipation", velocityDissipation)
	field.Blit(s.dev, f.Velocity.Write, false)
	f.Velocity.Swap()

	prog.Set2v("dyeTexelSize", f.Dye.TexelSize())
	prog.Texture("uVelocity", 0, f.Velocity.Read.Texture())
	prog.Texture("uSource", 1, f.Dye.Read.Texture())
	prog.Set1f("dissipation", densityDissipation)
	field.Blit(s.dev, f.Dye.Write, false)
	f.Dye.Swap()
}
