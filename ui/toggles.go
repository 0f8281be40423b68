package ui

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/artinkavousi/Webfluidsystem/config"
)

// ToggleID identifies a boolean fluid knob.
type ToggleID string

// Standard toggles.
const (
	ToggleBloom       ToggleID = "bloom"
	ToggleSunrays     ToggleID = "sunrays"
	ToggleShading     ToggleID = "shading"
	ToggleColorful    ToggleID = "colorful"
	ToggleTransparent ToggleID = "transparent"
	ToggleHover       ToggleID = "hover"
	ToggleDrawPaused  ToggleID = "draw_while_paused"
)

// ToggleDescriptor binds a checkbox and an optional key to one knob.
type ToggleDescriptor struct {
	ID       ToggleID
	Name     string
	Key      int32  // 0 = no key
	KeyLabel string // e.g. "B"
	Category string // "effects" or "input"
	Bind     func(f *config.FluidConfig) *bool
}

// ToggleRegistry lists the boolean knobs in display order.
type ToggleRegistry struct {
	descriptors []ToggleDescriptor
	byID        map[ToggleID]ToggleDescriptor
}

// NewToggleRegistry creates a registry with the standard toggles.
func NewToggleRegistry() *ToggleRegistry {
	reg := &ToggleRegistry{byID: make(map[ToggleID]ToggleDescriptor)}
	reg.registerDefaults()
	return reg
}

func (r *ToggleRegistry) registerDefaults() {
	r.Register(ToggleDescriptor{
		ID: ToggleBloom, Name: "Bloom", Key: rl.KeyB, KeyLabel: "B", Category: "effects",
		Bind: func(f *config.FluidConfig) *bool { return &f.Bloom.Enabled },
	})
	r.Register(ToggleDescriptor{
		ID: ToggleSunrays, Name: "Sunrays", Key: rl.KeyL, KeyLabel: "L", Category: "effects",
		Bind: func(f *config.FluidConfig) *bool { return &f.Sunrays.Enabled },
	})
	r.Register(ToggleDescriptor{
		ID: ToggleShading, Name: "Shading", Key: rl.KeyG, KeyLabel: "G", Category: "effects",
		Bind: func(f *config.FluidConfig) *bool { return &f.Shading },
	})
	r.Register(ToggleDescriptor{
		ID: ToggleTransparent, Name: "Transparent", Category: "effects",
		Bind: func(f *config.FluidConfig) *bool { return &f.Transparent },
	})
	r.Register(ToggleDescriptor{
		ID: ToggleColorful, Name: "Colorful", Key: rl.KeyC, KeyLabel: "C", Category: "input",
		Bind: func(f *config.FluidConfig) *bool { return &f.Colorful },
	})
	r.Register(ToggleDescriptor{
		ID: ToggleHover, Name: "Hover", Key: rl.KeyH, KeyLabel: "H", Category: "input",
		Bind: func(f *config.FluidConfig) *bool { return &f.Hover },
	})
	r.Register(ToggleDescriptor{
		ID: ToggleDrawPaused, Name: "Draw While Paused", Category: "input",
		Bind: func(f *config.FluidConfig) *bool { return &f.DrawWhilePaused },
	})
}

// Register adds a toggle to the registry.
func (r *ToggleRegistry) Register(desc ToggleDescriptor) {
	r.descriptors = append(r.descriptors, desc)
	r.byID[desc.ID] = desc
}

// Get returns a toggle descriptor by ID.
func (r *ToggleRegistry) Get(id ToggleID) (ToggleDescriptor, bool) {
	desc, ok := r.byID[id]
	return desc, ok
}

// All returns all toggles in registration order.
func (r *ToggleRegistry) All() []ToggleDescriptor {
	return r.descriptors
}

// ByCategory returns toggles filtered by category.
func (r *ToggleRegistry) ByCategory(category string) []ToggleDescriptor {
	var result []ToggleDescriptor
	for _, desc := range r.descriptors {
		if desc.Category == category {
			result = append(result, desc)
		}
	}
	return result
}

// Categories returns all unique categories in order.
func (r *ToggleRegistry) Categories() []string {
	seen := make(map[string]bool)
	var cats []string
	for _, desc := range r.descriptors {
		if !seen[desc.Category] {
			seen[desc.Category] = true
			cats = append(cats, desc.Category)
		}
	}
	return cats
}

// HandleKeyPress flips the toggle bound to key in f. It reports the toggle
// and whether one matched.
func (r *ToggleRegistry) HandleKeyPress(key int32, f *config.FluidConfig) (ToggleID, bool) {
	for _, desc := range r.descriptors {
		if desc.Key != 0 && desc.Key == key {
			p := desc.Bind(f)
			*p = !*p
			return desc.ID, true
		}
	}
	return "", false
}

// Keys returns every bound key.
func (r *ToggleRegistry) Keys() []int32 {
	var keys []int32
	for _, desc := range r.descriptors {
		if desc.Key != 0 {
			keys = append(keys, desc.Key)
		}
	}
	return keys
}
