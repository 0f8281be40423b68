package fluid

import (
	"math"

	"github.com/ojrac/opensimplex-go"

	"github.com/artinkavousi/Webfluidsystem/gpu"
	"github.com/artinkavousi/Webfluidsystem/inject"
)

// pointer is one mouse or touch contact in uv space.
type pointer struct {
	uv     gpu.Vec2
	delta  gpu.Vec2
	color  gpu.Vec3
	down   bool
	moved  bool
	active bool // mouse only: the mouse emitter is live
}

// toUV maps surface pixels, origin top left, to uv with y up.
func (s *Simulation) toUV(x, y float32) gpu.Vec2 {
	return gpu.Vec2{x / float32(s.width), 1 - y/float32(s.height)}
}

// correctDelta keeps pointer motion isotropic on non-square surfaces.
func (s *Simulation) correctDelta(d gpu.Vec2) gpu.Vec2 {
	aspect := float32(s.width) / float32(s.height)
	if aspect < 1 {
		d[0] *= aspect
	}
	if aspect > 1 {
		d[1] /= aspect
	}
	return d
}

func (s *Simulation) movePointer(p *pointer, x, y float32) {
	uv := s.toUV(x, y)
	p.delta = s.correctDelta(gpu.Vec2{uv[0] - p.uv[0], uv[1] - p.uv[1]})
	p.uv = uv
	p.moved = p.delta != (gpu.Vec2{})
}

// PointerDown presses the mouse at surface pixel (x, y).
func (s *Simulation) PointerDown(x, y float32) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	m := &s.mouse
	m.uv, m.delta = s.toUV(x, y), gpu.Vec2{}
	m.down, m.moved, m.active = true, false, true
	m.color = s.palette.Next()
	s.emitters.MouseDown(m.uv, float32(s.cfg.Fluid.SplatForce), float32(s.cfg.Fluid.SplatRadius), m.color)
}

// PointerMove moves the mouse. It stirs the fluid while pressed, or always
// when hover is on.
func (s *Simulation) PointerMove(x, y float32) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	m := &s.mouse
	if !m.down && !s.cfg.Fluid.Hover {
		m.uv = s.toUV(x, y)
		return
	}
	if !m.active {
		m.color = s.palette.Next()
		s.emitters.MouseDown(m.uv, float32(s.cfg.Fluid.SplatForce), float32(s.cfg.Fluid.SplatRadius), m.color)
		m.active = true
	}
	s.movePointer(m, x, y)
	s.emitters.MouseMove(m.uv, m.delta)
}

// PointerUp releases the mouse.
func (s *Simulation) PointerUp() {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	s.mouse.down = false
	if !s.cfg.Fluid.Hover {
		s.emitters.MouseUp()
		s.mouse.active = false
	}
}

// TouchStart begins touch id at surface pixel (x, y).
func (s *Simulation) TouchStart(id int, x, y float32) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	s.touches[id] = &pointer{uv: s.toUV(x, y), color: s.palette.Next(), down: true}
}

// TouchMove moves touch id. Unknown ids are ignored.
func (s *Simulation) TouchMove(id int, x, y float32) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	if p, ok := s.touches[id]; ok {
		s.movePointer(p, x, y)
	}
}

// TouchEnd lifts touch id.
func (s *Simulation) TouchEnd(id int) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	delete(s.touches, id)
}

// Splat queues a splat of velocity (dx, dy) and color at uv (x, y).
func (s *Simulation) Splat(x, y, dx, dy float32, color gpu.Vec3) {
	s.queue(func() { s.inject.Splat(x, y, dx, dy, color) })
}

// ApplyForce queues a velocity-only splat.
func (s *Simulation) ApplyForce(x, y, dx, dy, radius float32) {
	s.queue(func() { s.inject.ApplyForce(x, y, dx, dy, radius) })
}

// MultipleSplats queues a burst of n random splats. One burst runs per tick.
func (s *Simulation) MultipleSplats(n int) {
	if n <= 0 {
		return
	}
	s.inputMu.Lock()
	s.bursts = append(s.bursts, n)
	s.inputMu.Unlock()
}

// RandomSplats queues a burst of random size.
func (s *Simulation) RandomSplats() {
	s.inputMu.Lock()
	s.bursts = append(s.bursts, inject.BurstSize(s.rng))
	s.inputMu.Unlock()
}

func (s *Simulation) queue(fn func()) {
	s.inputMu.Lock()
	s.pending = append(s.pending, fn)
	s.inputMu.Unlock()
}

// updateColors rerolls pointer colors colorUpdateSpeed times a second.
func (s *Simulation) updateColors(dt float64) {
	f := &s.cfg.Fluid
	if !f.Colorful {
		return
	}
	s.colorTimer += dt * f.ColorUpdateSpeed
	if s.colorTimer < 1 {
		return
	}
	s.colorTimer = math.Mod(s.colorTimer, 1)

	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	s.mouse.color = s.palette.Next()
	s.emitters.SetMouseColor(s.mouse.color)
	for _, p := range s.touches {
		p.color = s.palette.Next()
	}
	if s.pilot != nil {
		s.pilot.color = s.palette.Next()
	}
}

// applyInputs drains everything queued since the last tick: explicit
// splats, one random burst, moved touches, the autopilot and the emitters.
func (s *Simulation) applyInputs(dt float64) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()

	for _, fn := range s.pending {
		fn()
	}
	clear(s.pending)
	s.pending = s.pending[:0]

	if n := len(s.bursts); n > 0 {
		s.inject.MultipleSplats(s.bursts[n-1], s.palette)
		s.bursts = s.bursts[:n-1]
	}

	force := float32(s.cfg.Fluid.SplatForce)
	for _, p := range s.touches {
		if p.moved {
			p.moved = false
			s.inject.Splat(p.uv[0], p.uv[1], p.delta[0]*force, p.delta[1]*force, p.color)
		}
	}

	if s.pilot != nil && s.cfg.Fluid.Hover {
		if uv, d, ok := s.pilot.step(dt); ok {
			s.inject.Splat(uv[0], uv[1], d[0]*force, d[1]*force, s.pilot.color)
		}
	}

	s.emitters.Tick(float32(dt), s.audio.Signal())
	s.emitters.Apply(s.inject)
}

// autopilot is a pointer that wanders along simplex noise.
type autopilot struct {
	noise opensimplex.Noise
	t     float64
	pos   gpu.Vec2
	color gpu.Vec3
	ready bool
}

// Wander speed in noise units per second.
const pilotSpeed = 0.25

func newAutopilot(seed uint64, color gpu.Vec3) *autopilot {
	return &autopilot{noise: opensimplex.NewNormalized(int64(seed)), color: color}
}

// step advances by dt and returns the new position and the motion since
// the last step. The first step only places the pointer.
func (a *autopilot) step(dt float64) (pos, delta gpu.Vec2, ok bool) {
	a.t += dt * pilotSpeed
	next := gpu.Vec2{
		float32(0.1 + 0.8*a.noise.Eval2(a.t, 0)),
		float32(0.1 + 0.8*a.noise.Eval2(0, a.t+100)),
	}
	prev := a.pos
	a.pos = next
	if !a.ready {
		a.ready = true
		return next, gpu.Vec2{}, false
	}
	delta = gpu.Vec2{next[0] - prev[0], next[1] - prev[1]}
	return next, delta, delta != (gpu.Vec2{})
}
