package emitter

import (
	"github.com/artinkavousi/Webfluidsystem/audio"
	"github.com/artinkavousi/Webfluidsystem/gpu"
)

// Patch is a partial update. Nil fields keep their value.
type Patch struct {
	Name       *string
	Position   *gpu.Vec2
	Direction  *gpu.Vec2
	Force      *float32
	Radius     *float32
	Color      *gpu.Vec3
	Active     *bool
	Audio      *AudioBinding
	ClearAudio bool
	Shape      Shape
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T { return &v }

// Merge returns e with p applied.
func (e Emitter) Merge(p Patch) Emitter {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Position != nil {
		e.Position = *p.Position
	}
	if p.Direction != nil {
		e.Direction = *p.Direction
	}
	if p.Force != nil {
		e.Force = *p.Force
	}
	if p.Radius != nil {
		e.Radius = *p.Radius
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
	if p.Active != nil {
		e.Active = *p.Active
	}
	if p.Audio != nil {
		b := *p.Audio
		e.Audio = &b
	}
	if p.ClearAudio {
		e.Audio = nil
	}
	if p.Shape != nil {
		e.Shape = p.Shape
	}
	return e
}

// Manager holds the emitter list and the mouse emitter. It is used from
// the render thread only.
type Manager struct {
	list  []*Emitter
	mouse *Emitter
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// Add appends e and returns its index.
func (m *Manager) Add(e Emitter) int {
	if e.Shape == nil {
		e.Shape = Point{}
	}
	if e.Audio != nil {
		b := *e.Audio
		e.Audio = &b
	}
	e.reset()
	m.list = append(m.list, &e)
	return len(m.list) - 1
}

// Remove deletes the emitter at i. Later indices shift down.
func (m *Manager) Remove(i int) bool {
	if i < 0 || i >= len(m.list) {
		return false
	}
	m.list = append(m.list[:i], m.list[i+1:]...)
	return true
}

func (m *Manager) at(i int) *Emitter {
	if i == MouseID {
		return m.mouse
	}
	if i < 0 || i >= len(m.list) {
		return nil
	}
	return m.list[i]
}

// Get returns a copy of the emitter at i, or the mouse emitter for MouseID.
func (m *Manager) Get(i int) (Emitter, bool) {
	e := m.at(i)
	if e == nil {
		return Emitter{}, false
	}
	return *e, true
}

// Update merges p into the emitter at i. Reactivating an emitter restarts
// its fade and audio smoothing.
func (m *Manager) Update(i int, p Patch) bool {
	e := m.at(i)
	if e == nil {
		return false
	}
	wasActive := e.Active
	*e = e.Merge(p)
	if e.Shape == nil {
		e.Shape = Point{}
	}
	if e.Active && !wasActive {
		e.reset()
	}
	return true
}

// List returns copies of the emitters in index order.
func (m *Manager) List() []Emitter {
	out := make([]Emitter, len(m.list))
	for i, e := range m.list {
		out[i] = *e
	}
	return out
}

// Len returns the number of emitters, excluding the mouse emitter.
func (m *Manager) Len() int { return len(m.list) }

// Clear removes every emitter.
func (m *Manager) Clear() {
	m.list = nil
	m.mouse = nil
}

// Tick advances fades and audio smoothing by dt seconds.
func (m *Manager) Tick(dt float32, sig audio.Signal) {
	for _, e := range m.list {
		if e.Active {
			e.update(dt, sig)
		}
	}
}

// Apply emits every active emitter into s and returns how many emitted.
func (m *Manager) Apply(s Splatter) int {
	n := 0
	if me := m.mouse; me != nil && me.Active && me.moved {
		s.SplatRadius(me.Position[0], me.Position[1],
			me.Direction[0]*me.Force, me.Direction[1]*me.Force, me.Color, me.Radius)
		me.moved = false
		n++
	}
	for _, e := range m.list {
		if e.Active {
			e.apply(s)
			n++
		}
	}
	return n
}

// MouseDown creates or reactivates the mouse emitter at pos. Force and
// radius are the pointer splat force and radius; color is used unscaled.
func (m *Manager) MouseDown(pos gpu.Vec2, force, radius float32, color gpu.Vec3) {
	if m.mouse == nil {
		m.mouse = &Emitter{Name: "mouse", Shape: Point{}}
	}
	me := m.mouse
	me.Position, me.Direction = pos, gpu.Vec2{}
	me.Force, me.Radius, me.Color = force, radius, color
	me.Active, me.moved = true, false
	me.reset()
}

// MouseMove moves the mouse emitter by delta, in uv units. The next Apply
// emits once along delta.
func (m *Manager) MouseMove(pos, delta gpu.Vec2) {
	me := m.mouse
	if me == nil || !me.Active {
		return
	}
	me.Position, me.Direction = pos, delta
	me.moved = delta != (gpu.Vec2{})
}

// SetMouseColor recolors the mouse emitter.
func (m *Manager) SetMouseColor(c gpu.Vec3) {
	if m.mouse != nil {
		m.mouse.Color = c
	}
}

// MouseUp deactivates the mouse emitter.
func (m *Manager) MouseUp() {
	if m.mouse != nil {
		m.mouse.Active, m.mouse.moved = false, false
	}
}
