package gpu

import (
	"fmt"
	"log/slog"
)

// Capabilities is the result of negotiating a context.
type Capabilities struct {
	Revision string
	// Formats lists every render-target format that passed the probe, in ProbeOrder.
	Formats []Format
	// LinearFiltering is true when float textures can be sampled with Linear.
	LinearFiltering bool
	MaxTextureSize  int
}

// Supports reports whether f passed the render-target probe.
func (c Capabilities) Supports(f Format) bool {
	for _, s := range c.Formats {
		if s == f {
			return true
		}
	}
	return false
}

// HalfFloat reports whether any half-float format is renderable.
func (c Capabilities) HalfFloat() bool {
	for _, f := range c.Formats {
		if f.Type == Half {
			return true
		}
	}
	return false
}

// FormatFor returns the narrowest supported format with at least channels
// channels, preferring half floats over full floats. RGBA8 is the floor.
func (c Capabilities) FormatFor(channels int) Format {
	for _, typ := range []PixelType{Half, Float} {
		for _, ch := range []int{1, 2, 4} {
			if ch < channels {
				continue
			}
			f := Format{Channels: ch, Type: typ}
			if c.Supports(f) {
				return f
			}
		}
	}
	return RGBA8
}

// Filter returns the filter to use for a field that wants linear sampling.
func (c Capabilities) Filter(want Filter) Filter {
	if want == Linear && !c.LinearFiltering {
		return Nearest
	}
	return want
}

// ManualFiltering is true when shaders must interpolate texels themselves.
func (c Capabilities) ManualFiltering() bool {
	return !c.LinearFiltering
}

// Downgrade returns the format to retry an allocation with after f failed.
// Only float formats have a fallback.
func Downgrade(f Format) (Format, bool) {
	if !f.IsFloat() {
		return Format{}, false
	}
	return RGBA8, true
}

// Negotiate selects the most capable API revision the device offers and
// probes which render-target formats and filters it supports. Pending device
// errors are drained before the first probe and after each one so a failed
// probe never leaks into the next.
func Negotiate(dev Device, logger *slog.Logger) (Capabilities, error) {
	if logger == nil {
		logger = slog.Default()
	}
	DrainErrors(dev)

	var lastErr error
	for _, rev := range dev.Revisions() {
		if err := dev.SelectRevision(rev); err != nil {
			logger.Warn("context revision unavailable", "revision", rev, "error", err)
			lastErr = err
			continue
		}
		DrainErrors(dev)

		caps := Capabilities{Revision: rev, MaxTextureSize: dev.Info().MaxTextureSize}
		for _, f := range ProbeOrder {
			if probeRenderable(dev, f) {
				caps.Formats = append(caps.Formats, f)
			}
			DrainErrors(dev)
		}
		if len(caps.Formats) == 0 {
			logger.Warn("no renderable formats", "revision", rev)
			lastErr = fmt.Errorf("revision %s: %w", rev, ErrUnsupported)
			continue
		}
		if best := caps.FormatFor(4); best.IsFloat() {
			caps.LinearFiltering = probeLinear(dev, best)
			DrainErrors(dev)
		} else {
			// Byte textures always filter.
			caps.LinearFiltering = true
		}

		logger.Info("gpu negotiated",
			"revision", rev,
			"renderer", dev.Info().Renderer,
			"formats", len(caps.Formats),
			"half_float", caps.HalfFloat(),
			"linear", caps.LinearFiltering,
		)
		return caps, nil
	}

	if lastErr == nil {
		return Capabilities{}, ErrUnsupported
	}
	return Capabilities{}, fmt.Errorf("negotiate: %w", joinUnsupported(lastErr))
}

func joinUnsupported(err error) error {
	if IsFatal(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnsupported, err)
}

func probeRenderable(dev Device, f Format) bool {
	tex, err := dev.CreateTexture(4, 4, f, Nearest)
	if err != nil {
		return false
	}
	defer dev.DeleteTexture(tex)

	fb, err := dev.CreateFramebuffer(tex)
	if err != nil {
		return false
	}
	defer dev.DeleteFramebuffer(fb)

	return dev.Error() == nil
}

func probeLinear(dev Device, f Format) bool {
	tex, err := dev.CreateTexture(4, 4, f, Linear)
	if err != nil {
		return false
	}
	dev.DeleteTexture(tex)
	return dev.Error() == nil
}
