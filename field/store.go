package field

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/artinkavousi/Webfluidsystem/gpu"
	"github.com/artinkavousi/Webfluidsystem/resource"
	"github.com/artinkavousi/Webfluidsystem/shaders"
)

// Params sizes the store.
type Params struct {
	SimResolution     int
	DyeResolution     int
	BloomResolution   int
	BloomIterations   int
	SunraysResolution int
}

// Store owns every field of one simulation.
type Store struct {
	dev    gpu.Device
	mgr    *resource.Manager
	caps   gpu.Capabilities
	copy   *shaders.Program
	logger *slog.Logger

	Dye         *DoubleBuffer
	Velocity    *DoubleBuffer
	Pressure    *DoubleBuffer
	Divergence  *Field
	Curl        *Field
	Bloom       *Field
	BloomLevels []*Field
	Sunrays     *Field
	SunraysTemp *Field

	params        Params
	width, height int
}

// NewStore creates an empty store. copyProg carries dye and velocity over a
// resize.
func NewStore(dev gpu.Device, mgr *resource.Manager, caps gpu.Capabilities, copyProg *shaders.Program, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dev: dev, mgr: mgr, caps: caps, copy: copyProg, logger: logger}
}

// Params returns the parameters of the last successful Init.
func (s *Store) Params() Params { return s.params }

// Ready reports whether Init has allocated the fields.
func (s *Store) Ready() bool { return s.Dye != nil }

func (s *Store) acquire(w, h, channels int, filter gpu.Filter) (*Field, error) {
	shape := resource.Shape{
		Width:  w,
		Height: h,
		Format: s.caps.FormatFor(channels),
		Filter: s.caps.Filter(filter),
	}
	r, err := s.mgr.Acquire(shape)
	if err != nil {
		return nil, err
	}
	return newField(r), nil
}

func (s *Store) release(f *Field) {
	if f != nil {
		s.mgr.Release(f.res)
	}
}

func (s *Store) acquireDouble(w, h, channels int, filter gpu.Filter) (*DoubleBuffer, error) {
	read, err := s.acquire(w, h, channels, filter)
	if err != nil {
		return nil, err
	}
	write, err := s.acquire(w, h, channels, filter)
	if err != nil {
		s.release(read)
		return nil, err
	}
	return &DoubleBuffer{Read: read, Write: write}, nil
}

func (s *Store) releaseDouble(d *DoubleBuffer) {
	if d != nil {
		s.release(d.Read)
		s.release(d.Write)
	}
}

// Init allocates the fields for a surface of width x height. On later calls
// dye and velocity keep their content, resampled to the new size, while
// every other field is reacquired.
func (s *Store) Init(p Params, width, height int) error {
	simW, simH := Resolution(p.SimResolution, width, height)
	dyeW, dyeH := Resolution(p.DyeResolution, width, height)

	dye, err := s.resizeDouble(s.Dye, dyeW, dyeH, 4, gpu.Linear)
	if err != nil {
		return fmt.Errorf("dye: %w", err)
	}
	s.Dye = dye
	velocity, err := s.resizeDouble(s.Velocity, simW, simH, 2, gpu.Linear)
	if err != nil {
		return fmt.Errorf("velocity: %w", err)
	}
	s.Velocity = velocity

	s.release(s.Divergence)
	s.release(s.Curl)
	s.releaseDouble(s.Pressure)
	s.Divergence, s.Curl, s.Pressure = nil, nil, nil

	if s.Divergence, err = s.acquire(simW, simH, 1, gpu.Nearest); err != nil {
		return fmt.Errorf("divergence: %w", err)
	}
	if s.Curl, err = s.acquire(simW, simH, 1, gpu.Nearest); err != nil {
		return fmt.Errorf("curl: %w", err)
	}
	if s.Pressure, err = s.acquireDouble(simW, simH, 1, gpu.Nearest); err != nil {
		return fmt.Errorf("pressure: %w", err)
	}
	if err := s.initBloom(p, width, height); err != nil {
		return fmt.Errorf("bloom: %w", err)
	}
	if err := s.initSunrays(p, width, height); err != nil {
		return fmt.Errorf("sunrays: %w", err)
	}

	s.params = p
	s.width, s.height = width, height
	s.logger.Debug("fields initialized",
		"sim", fmt.Sprintf("%dx%d", simW, simH),
		"dye", fmt.Sprintf("%dx%d", dyeW, dyeH),
		"bloom_levels", len(s.BloomLevels),
	)
	return nil
}

func (s *Store) resizeDouble(d *DoubleBuffer, w, h, channels int, filter gpu.Filter) (*DoubleBuffer, error) {
	if d == nil {
		return s.acquireDouble(w, h, channels, filter)
	}
	if d.Width() == w && d.Height() == h {
		return d, nil
	}
	read, err := s.acquire(w, h, channels, filter)
	if err != nil {
		return nil, err
	}
	s.dev.SetBlend(false)
	s.copy.Bind()
	s.copy.Set2v("texelSize", d.Read.TexelSize())
	s.copy.Texture("uTexture", 0, d.Read.Texture())
	Blit(s.dev, read, false)

	write, err := s.acquire(w, h, channels, filter)
	if err != nil {
		s.release(read)
		return nil, err
	}
	s.releaseDouble(d)
	return &DoubleBuffer{Read: read, Write: write}, nil
}

func (s *Store) initBloom(p Params, width, height int) error {
	s.release(s.Bloom)
	for _, f := range s.BloomLevels {
		s.release(f)
	}
	s.Bloom, s.BloomLevels = nil, nil

	w, h := Resolution(p.BloomResolution, width, height)
	bloom, err := s.acquire(w, h, 4, gpu.Linear)
	if err != nil {
		return err
	}
	s.Bloom = bloom
	for i := 0; i < p.BloomIterations; i++ {
		lw, lh := w>>(i+1), h>>(i+1)
		if lw < 2 || lh < 2 {
			break
		}
		level, err := s.acquire(lw, lh, 4, gpu.Linear)
		if err != nil {
			return err
		}
		s.BloomLevels = append(s.BloomLevels, level)
	}
	return nil
}

func (s *Store) initSunrays(p Params, width, height int) error {
	s.release(s.Sunrays)
	s.release(s.SunraysTemp)
	s.Sunrays, s.SunraysTemp = nil, nil

	w, h := Resolution(p.SunraysResolution, width, height)
	var err error
	if s.Sunrays, err = s.acquire(w, h, 1, gpu.Linear); err != nil {
		return err
	}
	s.SunraysTemp, err = s.acquire(w, h, 1, gpu.Linear)
	return err
}

// Bytes totals the device memory of every field.
func (s *Store) Bytes() int64 {
	var n int64
	for _, f := range s.fields() {
		n += f.Bytes()
	}
	return n
}

func (s *Store) fields() []*Field {
	var out []*Field
	for _, d := range []*DoubleBuffer{s.Dye, s.Velocity, s.Pressure} {
		if d != nil {
			out = append(out, d.Read, d.Write)
		}
	}
	for _, f := range []*Field{s.Divergence, s.Curl, s.Bloom, s.Sunrays, s.SunraysTemp} {
		if f != nil {
			out = append(out, f)
		}
	}
	return append(out, s.BloomLevels...)
}

// Release returns every field to the resource manager.
func (s *Store) Release() {
	for _, f := range s.fields() {
		s.release(f)
	}
	s.Dye, s.Velocity, s.Pressure = nil, nil, nil
	s.Divergence, s.Curl, s.Bloom = nil, nil, nil
	s.Sunrays, s.SunraysTemp = nil, nil
	s.BloomLevels = nil
}

// ErrNotReady is returned when a field is read before Init.
var ErrNotReady = errors.New("field: store not initialized")
