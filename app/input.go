package app

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/artinkavousi/Webfluidsystem/config"
)

var renderModeKeys = [4]int32{rl.KeyOne, rl.KeyTwo, rl.KeyThree, rl.KeyFour}

// handleInput processes keyboard, mouse and touch input.
func (a *App) handleInput() {
	// Window resize propagation
	a.handleResize()

	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		paused := a.sim.TogglePause()
		a.logger.Info("pause toggled", "paused", paused)
	}
	if rl.IsKeyPressed(rl.KeyTab) {
		a.panel.Toggle()
	}
	if rl.IsKeyPressed(rl.KeyF1) {
		a.showHUD = !a.showHUD
	}
	if rl.IsKeyPressed(rl.KeyF2) {
		a.showPerf = !a.showPerf
	}
	if rl.IsKeyPressed(rl.KeyS) {
		if _, err := a.Screenshot(""); err != nil {
			a.logger.Error("screenshot failed", "error", err)
		}
	}
	if rl.IsKeyPressed(rl.KeyP) {
		a.applyPreset(config.NextPreset(a.preset))
	}
	if rl.IsKeyPressed(rl.KeyR) {
		a.sim.RandomSplats()
	}

	cfg := a.sim.Config()
	changed := false
	for i, key := range renderModeKeys {
		if rl.IsKeyPressed(key) && cfg.Fluid.RenderMode != i {
			cfg.Fluid.RenderMode = i
			changed = true
		}
	}
	for _, key := range a.toggles.Keys() {
		if !rl.IsKeyPressed(key) {
			continue
		}
		if id, ok := a.toggles.HandleKeyPress(key, &cfg.Fluid); ok {
			a.logger.Debug("toggle", "id", id)
			changed = true
		}
	}
	if changed {
		a.applyParams()
	}

	if rl.GetTouchPointCount() > 1 {
		a.handleTouches()
		return
	}
	a.endTouches(nil)
	a.handleMouse()
}

// handleResize checks for window resize and propagates new dimensions.
func (a *App) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w, h := rl.GetScreenWidth(), rl.GetScreenHeight()
	if err := a.sim.Resize(w, h); err != nil {
		a.logger.Error("resize failed", "width", w, "height", h, "error", err)
	}
	a.layout(w, h)
}

// layout places the panels for a w by h window.
func (a *App) layout(w, h int) {
	a.panel.SetPosition(int32(w)-panelWidth-10, 10)
	a.perfPanel.SetPosition(10, int32(h)-150)
}

// handleMouse drives the simulation's mouse pointer. Presses that land on
// the control panel belong to the panel.
func (a *App) handleMouse() {
	pos := rl.GetMousePosition()
	overPanel := a.panel.Contains(pos.X, pos.Y)

	if rl.IsMouseButtonPressed(rl.MouseLeftButton) && !overPanel {
		a.sim.PointerDown(pos.X, pos.Y)
		a.mouseCaptured = true
	}
	if d := rl.GetMouseDelta(); (d.X != 0 || d.Y != 0) && (a.mouseCaptured || !overPanel) {
		a.sim.PointerMove(pos.X, pos.Y)
	}
	if rl.IsMouseButtonReleased(rl.MouseLeftButton) && a.mouseCaptured {
		a.sim.PointerUp()
		a.mouseCaptured = false
	}
}

// handleTouches maps raylib touch points onto simulation touches by id.
// It only runs with two or more contacts; a single touch arrives as the
// mouse.
func (a *App) handleTouches() {
	if a.mouseCaptured {
		a.sim.PointerUp()
		a.mouseCaptured = false
	}
	n := rl.GetTouchPointCount()
	seen := make(map[int32]bool, n)
	for i := range n {
		id := rl.GetTouchPointId(i)
		pos := rl.GetTouchPosition(i)
		seen[id] = true
		prev, ok := a.touches[id]
		switch {
		case !ok:
			a.sim.TouchStart(int(id), pos.X, pos.Y)
		case prev != pos:
			a.sim.TouchMove(int(id), pos.X, pos.Y)
		}
		a.touches[id] = pos
	}
	a.endTouches(seen)
}

// endTouches lifts every tracked touch not in seen.
func (a *App) endTouches(seen map[int32]bool) {
	for id := range a.touches {
		if !seen[id] {
			a.sim.TouchEnd(int(id))
			delete(a.touches, id)
		}
	}
}
