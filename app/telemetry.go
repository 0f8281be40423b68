package app

// flushTelemetry feeds the metrics gauges every tick and, once per stats
// window, logs and writes the perf window.
func (a *App) flushTelemetry(dt float64) {
	ticks := a.sim.Ticks()
	if a.exporter != nil {
		a.exporter.Observe(a.sim.GetPerformanceStats(), a.sim.PerfStats(),
			int(a.sim.Quality().Level), int(ticks-a.observedTick))
		a.observedTick = ticks
	}

	a.sinceFlush += dt
	if a.statsWindow <= 0 || a.sinceFlush < a.statsWindow {
		return
	}
	a.sinceFlush = 0
	perf := a.sim.PerfStats()

	if a.opts.LogStats {
		perf.LogStats()
		a.logger.Info("performance",
			"tick", ticks,
			"stats", a.sim.GetPerformanceStats(),
			"quality", a.sim.Quality(),
			"resources", a.sim.ResourceStats(),
		)
	}

	if err := a.output.WritePerf(perf, ticks); err != nil {
		a.logger.Error("failed to write perf", "error", err)
	}
}
