package ui

import (
	"fmt"
	"math"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/artinkavousi/Webfluidsystem/config"
	"github.com/artinkavousi/Webfluidsystem/shaders"
)

// PanelResult reports what the user did during one Draw.
type PanelResult struct {
	Changed      bool   // a knob in the config changed
	Preset       string // preset button pressed, or ""
	RandomSplats bool
	Screenshot   bool
}

// Panel is the right-side control panel: sliders for the ranged knobs,
// checkboxes for the toggles, render mode and preset buttons.
type Panel struct {
	renderer *Renderer
	toggles  *ToggleRegistry
	x, y     int32
	width    int32
	visible  bool
}

// NewPanel creates a hidden panel.
func NewPanel(x, y, width int32, toggles *ToggleRegistry) *Panel {
	return &Panel{
		renderer: NewRenderer(),
		toggles:  toggles,
		x:        x,
		y:        y,
		width:    width,
	}
}

// SetPosition moves the panel, e.g. after a window resize.
func (p *Panel) SetPosition(x, y int32) {
	p.x, p.y = x, y
}

// IsVisible returns whether the panel is shown.
func (p *Panel) IsVisible() bool {
	return p.visible
}

// Toggle switches panel visibility.
func (p *Panel) Toggle() bool {
	p.visible = !p.visible
	return p.visible
}

// Contains reports whether the screen point is over the visible panel, so
// the host can keep clicks on widgets out of the fluid.
func (p *Panel) Contains(x, y float32) bool {
	if !p.visible {
		return false
	}
	return x >= float32(p.x) && x < float32(p.x+p.width) &&
		y >= float32(p.y) && y < float32(p.y+p.height())
}

const (
	rowHeight    = 20
	buttonHeight = 22
)

func (p *Panel) height() int32 {
	r := p.renderer
	sliders := int32(len(config.RangeIDs)) * (r.Theme.LineHeight + rowHeight + 4)
	toggles := int32(len(p.toggles.All())) * (rowHeight + 2)
	buttons := 4 * (buttonHeight + 6)
	headers := int32(5) * r.Theme.LineHeight
	return r.Theme.Padding*2 + sliders + toggles + buttons + headers
}

// Draw renders the panel and edits cfg in place.
func (p *Panel) Draw(cfg *config.Config) PanelResult {
	var res PanelResult
	if !p.visible {
		return res
	}
	r := p.renderer
	pad := r.Theme.Padding
	inner := float32(p.width - pad*2)
	x := float32(p.x + pad)

	r.DrawPanel(p.x, p.y, p.width, p.height())
	y := p.y + pad

	y = r.DrawSectionHeader(int32(x), y, "Fluid")
	for _, id := range config.RangeIDs {
		rng := config.Ranges[id]
		v, _ := cfg.Param(id)
		rl.DrawText(fmt.Sprintf("%s  %s", rng.Label, formatParam(v, rng.Step)), int32(x), y, r.Theme.FontSize, r.Theme.LabelColor)
		y += r.Theme.LineHeight
		got := gui.SliderBar(rl.Rectangle{X: x, Y: float32(y), Width: inner, Height: rowHeight}, "", "",
			float32(v), float32(rng.Min), float32(rng.Max))
		if nv := snap(float64(got), rng.Step); nv != v && float32(v) != got {
			if err := cfg.SetParam(id, nv); err == nil {
				res.Changed = true
			}
		}
		y += rowHeight + 4
	}

	for _, cat := range p.toggles.Categories() {
		y = r.DrawSectionHeader(int32(x), y, categoryLabel(cat))
		for _, desc := range p.toggles.ByCategory(cat) {
			ptr := desc.Bind(&cfg.Fluid)
			label := desc.Name
			if desc.KeyLabel != "" {
				label = fmt.Sprintf("%s [%s]", desc.Name, desc.KeyLabel)
			}
			if got := gui.CheckBox(rl.Rectangle{X: x, Y: float32(y), Width: 14, Height: 14}, label, *ptr); got != *ptr {
				*ptr = got
				res.Changed = true
			}
			y += rowHeight + 2
		}
	}

	y = r.DrawSectionHeader(int32(x), y, "Render Mode")
	bw := (inner - 6*3) / 4
	for i := range 4 {
		mode := shaders.RenderMode(i)
		label := mode.String()
		if cfg.Fluid.RenderMode == i {
			label = "[" + label + "]"
		}
		bx := x + float32(i)*(bw+6)
		if gui.Button(rl.Rectangle{X: bx, Y: float32(y), Width: bw, Height: buttonHeight}, label) && cfg.Fluid.RenderMode != i {
			cfg.Fluid.RenderMode = i
			res.Changed = true
		}
	}
	y += buttonHeight + 6

	y = r.DrawSectionHeader(int32(x), y, "Presets")
	pw := (inner - 6*float32(len(config.PresetNames)-1)) / float32(len(config.PresetNames))
	for i, name := range config.PresetNames {
		if gui.Button(rl.Rectangle{X: x + float32(i)*(pw+6), Y: float32(y), Width: pw, Height: buttonHeight}, name) {
			res.Preset = name
		}
	}
	y += buttonHeight + 6

	half := (inner - 6) / 2
	if gui.Button(rl.Rectangle{X: x, Y: float32(y), Width: half, Height: buttonHeight}, "Random Splats [R]") {
		res.RandomSplats = true
	}
	if gui.Button(rl.Rectangle{X: x + half + 6, Y: float32(y), Width: half, Height: buttonHeight}, "Screenshot [S]") {
		res.Screenshot = true
	}
	return res
}

// snap rounds v to a multiple of step.
func snap(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}

// formatParam prints v with as many decimals as step needs.
func formatParam(v, step float64) string {
	decimals := 0
	for s := step; s < 1 && decimals < 4; s *= 10 {
		decimals++
	}
	return fmt.Sprintf("%.*f", decimals, v)
}

// categoryLabel returns a display label for a category.
func categoryLabel(cat string) string {
	switch cat {
	case "effects":
		return "Effects"
	case "input":
		return "Input"
	default:
		return cat
	}
}
