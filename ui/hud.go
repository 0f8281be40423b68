package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/artinkavousi/Webfluidsystem/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title      string
	Stats      telemetry.PerformanceStats
	Quality    string
	AutoQual   bool
	Preset     string
	RenderMode string
	Ticks      int
	Paused     bool
	AudioLevel float32
	Synthetic  bool
	AudioOn    bool
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
	sections []SectionDescriptor
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{
		renderer: NewRenderer(),
		sections: hudSections(),
	}
}

func hudData(d any) HUDData { return d.(HUDData) }

func hudSections() []SectionDescriptor {
	return []SectionDescriptor{
		{
			ID:    "perf",
			Title: "Performance",
			Fields: []FieldDescriptor{
				{ID: "fps", Label: "FPS", Widget: WidgetText,
					TextGetter: func(d any) string { return fmt.Sprintf("%.0f", hudData(d).Stats.FPS) }},
				{ID: "frame", Label: "Frame", Widget: WidgetText,
					TextGetter: func(d any) string {
						return fmt.Sprintf("%.2f ms", float64(hudData(d).Stats.FrameTime.Microseconds())/1000)
					}},
				{ID: "memory", Label: "GPU memory", Widget: WidgetText,
					TextGetter: func(d any) string { return telemetry.FormatBytes(hudData(d).Stats.GPUMemoryEstimate) }},
				{ID: "draws", Label: "Draws", Widget: WidgetText,
					TextGetter: func(d any) string {
						s := hudData(d).Stats
						return fmt.Sprintf("%d / %d tris", s.DrawCalls, s.Triangles)
					}},
			},
		},
		{
			ID:    "sim",
			Title: "Simulation",
			Fields: []FieldDescriptor{
				{ID: "quality", Label: "Quality", Widget: WidgetText,
					TextGetter: func(d any) string {
						h := hudData(d)
						if h.AutoQual {
							return h.Quality + " (auto)"
						}
						return h.Quality
					}},
				{ID: "preset", Label: "Preset", Widget: WidgetText,
					TextGetter: func(d any) string { return hudData(d).Preset }},
				{ID: "mode", Label: "Render", Widget: WidgetText,
					TextGetter: func(d any) string { return hudData(d).RenderMode }},
				{ID: "ticks", Label: "Ticks", Widget: WidgetText,
					TextGetter: func(d any) string { return fmt.Sprintf("%d", hudData(d).Ticks) }},
				{ID: "paused", Label: "Status", Widget: WidgetText, Color: rl.Yellow,
					Visible:    func(d any) bool { return hudData(d).Paused },
					TextGetter: func(any) string { return "PAUSED" }},
			},
		},
		{
			ID:      "audio",
			Title:   "Audio",
			Visible: func(d any) bool { return hudData(d).AudioOn },
			Fields: []FieldDescriptor{
				{ID: "level", Label: "Level", Widget: WidgetBar,
					Getter: func(d any) float32 { return hudData(d).AudioLevel }},
				{ID: "synthetic", Label: "Source", Widget: WidgetText,
					TextGetter: func(d any) string {
						if hudData(d).Synthetic {
							return "synthetic"
						}
						return "file"
					}},
			},
		},
	}
}

// Draw renders the HUD in the top left corner.
func (h *HUD) Draw(data HUDData) {
	const x, width = 10, 220
	rl.DrawText(data.Title, x, 10, 20, rl.White)

	height := h.renderer.Theme.Padding
	for _, sd := range h.sections {
		height += h.renderer.SectionHeight(sd, data)
	}
	y := int32(38)
	h.renderer.DrawPanel(x, y, width, height)
	y += h.renderer.Theme.Padding / 2
	for _, sd := range h.sections {
		y = h.renderer.DrawSection(x+h.renderer.Theme.Padding, y, sd, data, width-h.renderer.Theme.Padding*2)
	}
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenWidth, screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// PerfPanel renders the per-phase timing breakdown.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
	}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the phases in pipeline order.
func (p *PerfPanel) Draw(stats telemetry.PerfStats) {
	x := p.x
	y := p.y

	rl.DrawText("Phase Timing", x, y, 16, rl.White)
	y += 20

	rl.DrawText(fmt.Sprintf("Tick: %s", stats.AvgTickDuration.Round(time.Microsecond)), x, y, 14, rl.Yellow)
	y += 16

	for _, name := range telemetry.Phases {
		avg, ok := stats.PhaseAvg[name]
		if !ok {
			continue
		}
		pct := stats.PhasePct[name]

		color := rl.LightGray
		if pct > 40 {
			color = rl.Red
		} else if pct > 20 {
			color = rl.Orange
		}

		rl.DrawText(
			fmt.Sprintf("%-10s %8s %5.1f%%", name, avg.Round(time.Microsecond), pct),
			x, y, 12, color,
		)
		y += 14
	}
}
