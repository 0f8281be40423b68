// Package shaders holds every program the simulation draws with, in GLSL
// for GL devices and as CPU kernels for the software device.
package shaders

import (
	"errors"
	"fmt"

	"github.com/artinkavousi/Webfluidsystem/gpu"
)

// Preprocessor keywords.
const (
	KeywordManualFiltering = "MANUAL_FILTERING"
	KeywordShading         = "SHADING"
	KeywordBloom           = "BLOOM"
	KeywordSunrays         = "SUNRAYS"
)

// RenderMode selects how the display program maps dye to color.
type RenderMode int32

const (
	ModeGradient RenderMode = iota
	ModeColor
	ModeBackground
	ModeDistortion
)

var modeNames = [...]string{"gradient", "color", "background", "distortion"}

func (m RenderMode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("mode(%d)", int32(m))
	}
	return modeNames[m]
}

// Sources for every program, by name.
var (
	Copy             = gpu.ProgramSource{Name: "copy", Vertex: baseVertex, Fragment: copyFragment, Kernel: copyKernel}
	Clear            = gpu.ProgramSource{Name: "clear", Vertex: baseVertex, Fragment: clearFragment, Kernel: clearKernel}
	Color            = gpu.ProgramSource{Name: "color", Vertex: baseVertex, Fragment: colorFragment, Kernel: colorKernel}
	Checkerboard     = gpu.ProgramSource{Name: "checkerboard", Vertex: baseVertex, Fragment: checkerboardFragment, Kernel: checkerboardKernel}
	Splat            = gpu.ProgramSource{Name: "splat", Vertex: baseVertex, Fragment: splatFragment, Kernel: splatKernel}
	Advection        = gpu.ProgramSource{Name: "advection", Vertex: baseVertex, Fragment: advectionFragment, Kernel: advectionKernel}
	Curl             = gpu.ProgramSource{Name: "curl", Vertex: baseVertex, Fragment: curlFragment, Kernel: curlKernel}
	Vorticity        = gpu.ProgramSource{Name: "vorticity", Vertex: baseVertex, Fragment: vorticityFragment, Kernel: vorticityKernel}
	Divergence       = gpu.ProgramSource{Name: "divergence", Vertex: baseVertex, Fragment: divergenceFragment, Kernel: divergenceKernel}
	Pressure         = gpu.ProgramSource{Name: "pressure", Vertex: baseVertex, Fragment: pressureFragment, Kernel: pressureKernel}
	GradientSubtract = gpu.ProgramSource{Name: "gradient_subtract", Vertex: baseVertex, Fragment: gradientSubtractFragment, Kernel: gradientSubtractKernel}
	BloomPrefilter   = gpu.ProgramSource{Name: "bloom_prefilter", Vertex: baseVertex, Fragment: bloomPrefilterFragment, Kernel: bloomPrefilterKernel}
	BloomBlur        = gpu.ProgramSource{Name: "bloom_blur", Vertex: baseVertex, Fragment: bloomBlurFragment, Kernel: bloomBlurKernel}
	BloomFinal       = gpu.ProgramSource{Name: "bloom_final", Vertex: baseVertex, Fragment: bloomFinalFragment, Kernel: bloomFinalKernel}
	SunraysMask      = gpu.ProgramSource{Name: "sunrays_mask", Vertex: baseVertex, Fragment: sunraysMaskFragment, Kernel: sunraysMaskKernel}
	Sunrays          = gpu.ProgramSource{Name: "sunrays", Vertex: baseVertex, Fragment: sunraysFragment, Kernel: sunraysKernel}
	Blur             = gpu.ProgramSource{Name: "blur", Vertex: blurVertex, Fragment: blurFragment, Kernel: blurKernel}
	Display          = gpu.ProgramSource{Name: "display", Vertex: baseVertex, Fragment: displayFragment, Kernel: displayKernel}
)

// Set is the compiled program set for one device.
type Set struct {
	Copy             *Program
	Clear            *Program
	Color            *Program
	Checkerboard     *Program
	Splat            *Program
	Advection        *Program
	Curl             *Program
	Vorticity        *Program
	Divergence       *Program
	Pressure         *Program
	GradientSubtract *Program
	BloomPrefilter   *Program
	BloomBlur        *Program
	BloomFinal       *Program
	SunraysMask      *Program
	Sunrays          *Program
	Blur             *Program

	// Display switches variants as shading, bloom and sunrays toggle.
	Display *Material
}

// Compile builds every program for dev. Advection compiles with manual
// filtering when caps lack linear float filtering. On error, programs
// compiled so far are deleted.
func Compile(dev gpu.Device, caps gpu.Capabilities) (*Set, error) {
	s := &Set{}
	var errs []error
	build := func(dst **Program, src gpu.ProgramSource, keywords ...string) {
		p, err := newProgram(dev, src, keywords)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = p
	}

	build(&s.Copy, Copy)
	build(&s.Clear, Clear)
	build(&s.Color, Color)
	build(&s.Checkerboard, Checkerboard)
	build(&s.Splat, Splat)
	if caps.ManualFiltering() {
		build(&s.Advection, Advection, KeywordManualFiltering)
	} else {
		build(&s.Advection, Advection)
	}
	build(&s.Curl, Curl)
	build(&s.Vorticity, Vorticity)
	build(&s.Divergence, Divergence)
	build(&s.Pressure, Pressure)
	build(&s.GradientSubtract, GradientSubtract)
	build(&s.BloomPrefilter, BloomPrefilter)
	build(&s.BloomBlur, BloomBlur)
	build(&s.BloomFinal, BloomFinal)
	build(&s.SunraysMask, SunraysMask)
	build(&s.Sunrays, Sunrays)
	build(&s.Blur, Blur)
	s.Display = NewMaterial(dev, Display)

	if len(errs) > 0 {
		s.Delete()
		return nil, fmt.Errorf("%w: %w", gpu.ErrCompile, errors.Join(errs...))
	}
	return s, nil
}

func (s *Set) programs() []*Program {
	return []*Program{
		s.Copy, s.Clear, s.Color, s.Checkerboard, s.Splat, s.Advection,
		s.Curl, s.Vorticity, s.Divergence, s.Pressure, s.GradientSubtract,
		s.BloomPrefilter, s.BloomBlur, s.BloomFinal, s.SunraysMask, s.Sunrays, s.Blur,
	}
}

// Delete releases every program in the set.
func (s *Set) Delete() {
	for _, p := range s.programs() {
		if p != nil {
			p.delete()
		}
	}
	if s.Display != nil {
		s.Display.delete()
	}
}
