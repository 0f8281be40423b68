package field

import (
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/artinkavousi/Webfluidsystem/gpu"
)

// Read returns f's texels as RGBA floats, bottom row first.
func Read(dev gpu.Device, f *Field) ([]float32, error) {
	if f == nil {
		return nil, ErrNotReady
	}
	return dev.ReadPixels(f.Framebuffer(), f.Width(), f.Height())
}

// Energy returns the sum over texels of the squared first n channels, so
// Energy(velocity, 2) is twice the kinetic energy at unit density.
func Energy(dev gpu.Device, f *Field, channels int) (float64, error) {
	px, err := Read(dev, f)
	if err != nil {
		return 0, err
	}
	n := len(px) / 4
	if n == 0 {
		return 0, nil
	}
	var sum float64
	for c := range min(channels, 4) {
		v := blas32.Vector{N: n, Inc: 4, Data: px[c:]}
		sum += float64(blas32.Dot(v, v))
	}
	return sum, nil
}

// Mean returns the average of channel c over every texel.
func Mean(dev gpu.Device, f *Field, c int) (float64, error) {
	px, err := Read(dev, f)
	if err != nil {
		return 0, err
	}
	n := len(px) / 4
	if n == 0 {
		return 0, nil
	}
	ones := make([]float32, n)
	for i := range ones {
		ones[i] = 1
	}
	sum := blas32.Dot(
		blas32.Vector{N: n, Inc: 4, Data: px[c:]},
		blas32.Vector{N: n, Inc: 1, Data: ones},
	)
	return float64(sum) / float64(n), nil
}
