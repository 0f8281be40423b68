package telemetry

import (
	"fmt"
	"log/slog"
	"time"
)

// PerformanceStats is the read-only snapshot hosts poll each frame.
type PerformanceStats struct {
	FPS               float64       `csv:"fps"`
	FrameTime         time.Duration `csv:"-"`
	GPUMemoryEstimate int64         `csv:"gpu_memory_bytes"`
	DrawCalls         int           `csv:"draw_calls"`
	Triangles         int           `csv:"triangles"`
}

func (s PerformanceStats) String() string {
	return fmt.Sprintf("%.0f fps  %.2f ms  %s  %d draws  %d tris",
		s.FPS, float64(s.FrameTime.Microseconds())/1000, FormatBytes(s.GPUMemoryEstimate), s.DrawCalls, s.Triangles)
}

// LogValue implements slog.LogValuer.
func (s PerformanceStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("fps", s.FPS),
		slog.Float64("frame_ms", float64(s.FrameTime.Microseconds())/1000),
		slog.Int64("gpu_memory_bytes", s.GPUMemoryEstimate),
		slog.Int("draw_calls", s.DrawCalls),
		slog.Int("triangles", s.Triangles),
	)
}

// FormatBytes renders n with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 4; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTP"[exp])
}
