package app

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/artinkavousi/Webfluidsystem/shaders"
	"github.com/artinkavousi/Webfluidsystem/ui"
)

const controlsHelp = "Drag: stir | Space: pause | Tab: panel | 1-4: render mode | P: preset | R: splats | S: screenshot | F1/F2: HUD/perf"

// Draw renders the fluid and the UI on top.
func (a *App) Draw() {
	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)

	if err := a.sim.Render(); err != nil {
		a.logger.Warn("render failed", "tick", a.sim.Ticks(), "error", err)
	}

	if a.showHUD {
		a.hud.Draw(a.hudData())
	}
	if a.showPerf {
		a.perfPanel.Draw(a.sim.PerfStats())
	}
	a.drawPanel()
	a.hud.DrawControls(int32(rl.GetScreenWidth()), int32(rl.GetScreenHeight()), controlsHelp)

	rl.EndDrawing()
	a.sim.InvalidateState()
}

func (a *App) hudData() ui.HUDData {
	cfg := a.sim.Config()
	q := a.sim.Quality()
	sig := a.sim.AudioSignal()
	return ui.HUDData{
		Title:      Title,
		Stats:      a.sim.GetPerformanceStats(),
		Quality:    q.Level.String(),
		AutoQual:   q.Auto,
		Preset:     a.preset,
		RenderMode: shaders.RenderMode(cfg.Fluid.RenderMode).String(),
		Ticks:      int(a.sim.Ticks()),
		Paused:     cfg.Fluid.Paused,
		AudioLevel: sig.Amplitude,
		Synthetic:  a.sim.AudioSynthetic(),
		AudioOn:    a.sim.AudioEnabled(),
	}
}

// drawPanel draws the control panel and acts on what the user did.
func (a *App) drawPanel() {
	res := a.panel.Draw(a.sim.Config())
	if res.Changed {
		a.applyParams()
	}
	if res.Preset != "" {
		a.applyPreset(res.Preset)
	}
	if res.RandomSplats {
		a.sim.RandomSplats()
	}
	if res.Screenshot {
		if _, err := a.Screenshot(""); err != nil {
			a.logger.Error("screenshot failed", "error", err)
		}
	}
}
