package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter publishes simulation gauges on its own prometheus registry.
type Exporter struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	fps       prometheus.Gauge
	frameTime prometheus.Gauge
	gpuMemory prometheus.Gauge
	drawCalls prometheus.Gauge
	triangles prometheus.Gauge
	quality   prometheus.Gauge
	phases    *prometheus.GaugeVec
	ticks     prometheus.Counter

	server *http.Server
}

// NewExporter creates an exporter. Nothing is served until Serve.
func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "fluid", Name: name, Help: help})
	}
	e := &Exporter{
		registry:  prometheus.NewRegistry(),
		logger:    logger,
		fps:       gauge("fps", "Frames per second over the perf window"),
		frameTime: gauge("frame_time_seconds", "Mean frame time"),
		gpuMemory: gauge("gpu_memory_bytes", "Estimated GPU memory held by fields and pools"),
		drawCalls: gauge("draw_calls", "Draw calls in the last frame"),
		triangles: gauge("triangles", "Triangles in the last frame"),
		quality:   gauge("quality_level", "Active quality level, 0 is ultra"),
		phases: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fluid",
			Name:      "phase_seconds",
			Help:      "Mean time per tick phase",
		}, []string{"phase"}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fluid",
			Name:      "ticks_total",
			Help:      "Simulation ticks run",
		}),
	}
	e.registry.MustRegister(e.fps, e.frameTime, e.gpuMemory, e.drawCalls, e.triangles, e.quality, e.phases, e.ticks)
	return e
}

// Registry exposes the registry, for tests and embedding.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Observe updates every gauge. ticks is the number of ticks since the
// previous call.
func (e *Exporter) Observe(s PerformanceStats, perf PerfStats, level int, ticks int) {
	if e == nil {
		return
	}
	e.fps.Set(s.FPS)
	e.frameTime.Set(s.FrameTime.Seconds())
	e.gpuMemory.Set(float64(s.GPUMemoryEstimate))
	e.drawCalls.Set(float64(s.DrawCalls))
	e.triangles.Set(float64(s.Triangles))
	e.quality.Set(float64(level))
	for phase, d := range perf.PhaseAvg {
		e.phases.WithLabelValues(phase).Set(d.Seconds())
	}
	e.ticks.Add(float64(ticks))
}

// Serve listens on addr and serves /metrics in the background.
func (e *Exporter) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	e.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	e.logger.Info("metrics listening", "addr", ln.Addr().String())
	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server", "error", err)
		}
	}()
	return nil
}

// Close stops the metrics server.
func (e *Exporter) Close(ctx context.Context) error {
	if e == nil || e.server == nil {
		return nil
	}
	return e.server.Shutdown(ctx)
}
