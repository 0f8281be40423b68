// Package resource pools GPU render targets for one device. Same-shaped
// targets are interchangeable: a release returns the handle to a keyed pool
// and the next acquire of that shape reuses it.
package resource

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/artinkavousi/Webfluidsystem/gpu"
)

// Pool policy defaults.
const (
	MaxPoolSize   = 32
	SweepInterval = 30 * time.Second
	ResourceTTL   = 60 * time.Second
)

// ErrDisposed is returned by Acquire after Dispose.
var ErrDisposed = errors.New("resource: manager disposed")

// Shape describes a render target. It is also the pool key.
type Shape struct {
	Width, Height int
	Format        gpu.Format
	Filter        gpu.Filter
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d %v", s.Width, s.Height, s.Format)
}

// Resource is a pooled texture with a framebuffer attached. Shape.Format is
// the format actually allocated, which may be a downgrade of the one requested.
type Resource struct {
	Shape       Shape
	Texture     gpu.Texture
	Framebuffer gpu.Framebuffer

	key      Shape
	lastUsed time.Time
}

// Bytes returns the memory the resource occupies on the device.
func (r *Resource) Bytes() int64 {
	return int64(r.Shape.Width) * int64(r.Shape.Height) * int64(r.Shape.Format.BytesPerPixel())
}

// Stats summarizes the manager's holdings.
type Stats struct {
	Active      int
	Pooled      int
	ActiveBytes int64
	PooledBytes int64

	Allocations int
	Deletions   int
	Hits        int
	Misses      int
}

// TotalBytes is the device memory held through the manager.
func (s Stats) TotalBytes() int64 {
	return s.ActiveBytes + s.PooledBytes
}

// Options configures a Manager. Zero values select the package defaults.
type Options struct {
	MaxPoolSize   int
	SweepInterval time.Duration
	TTL           time.Duration
	Clock         func() time.Time
	Logger        *slog.Logger
}

// Manager owns every pooled resource of one device. It is not safe for
// concurrent use.
type Manager struct {
	dev      gpu.Device
	logger   *slog.Logger
	clock    func() time.Time
	maxPool  int
	interval time.Duration
	ttl      time.Duration

	pools     map[Shape][]*Resource
	active    map[*Resource]struct{}
	lastSweep time.Time
	disposed  bool
	stats     Stats
}

// NewManager creates a manager allocating from dev.
func NewManager(dev gpu.Device, opts Options) *Manager {
	if opts.MaxPoolSize == 0 {
		opts.MaxPoolSize = MaxPoolSize
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = SweepInterval
	}
	if opts.TTL == 0 {
		opts.TTL = ResourceTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		dev:       dev,
		logger:    opts.Logger,
		clock:     opts.Clock,
		maxPool:   opts.MaxPoolSize,
		interval:  opts.SweepInterval,
		ttl:       opts.TTL,
		pools:     make(map[Shape][]*Resource),
		active:    make(map[*Resource]struct{}),
		lastSweep: opts.Clock(),
	}
}

// Acquire returns a pooled resource of the given shape, allocating one on a
// pool miss. A failed float allocation is retried once with the downgraded
// format before ErrAllocation is returned.
func (m *Manager) Acquire(shape Shape) (*Resource, error) {
	if m.disposed {
		return nil, ErrDisposed
	}
	key := shape
	now := m.clock()

	if pool := m.pools[key]; len(pool) > 0 {
		r := pool[len(pool)-1]
		pool[len(pool)-1] = nil
		m.pools[key] = pool[:len(pool)-1]
		r.lastUsed = now
		m.active[r] = struct{}{}
		m.stats.Hits++
		return r, nil
	}
	m.stats.Misses++

	r, err := m.allocate(shape)
	if err != nil {
		return nil, err
	}
	r.key = key
	r.lastUsed = now
	m.active[r] = struct{}{}
	return r, nil
}

func (m *Manager) allocate(shape Shape) (*Resource, error) {
	r, err := m.allocateTarget(shape)
	if err == nil {
		return r, nil
	}
	if errors.Is(err, gpu.ErrContextLost) {
		return nil, err
	}
	down, ok := gpu.Downgrade(shape.Format)
	if !ok {
		return nil, fmt.Errorf("acquire %v: %w: %w", shape, gpu.ErrAllocation, err)
	}

	m.logger.Warn("allocation failed, retrying with fallback format",
		"size", fmt.Sprintf("%dx%d", shape.Width, shape.Height),
		"format", shape.Format.String(),
		"fallback", down.String(),
		"error", err,
	)
	retry := shape
	retry.Format = down
	r, err2 := m.allocateTarget(retry)
	if err2 != nil {
		return nil, fmt.Errorf("acquire %v: %w: %w", retry, gpu.ErrAllocation, err2)
	}
	return r, nil
}

func (m *Manager) allocateTarget(shape Shape) (*Resource, error) {
	tex, err := m.dev.CreateTexture(shape.Width, shape.Height, shape.Format, shape.Filter)
	if err != nil {
		return nil, err
	}
	fb, err := m.dev.CreateFramebuffer(tex)
	if err == nil {
		err = m.dev.Error()
	}
	if err != nil {
		if fb != 0 {
			m.dev.DeleteFramebuffer(fb)
		}
		m.dev.DeleteTexture(tex)
		return nil, err
	}
	m.stats.Allocations++
	return &Resource{Shape: shape, Texture: tex, Framebuffer: fb}, nil
}

// Release returns r to its pool, or deletes it when the pool is full.
// Releasing a resource that is not active is a no-op.
func (m *Manager) Release(r *Resource) {
	if r == nil {
		return
	}
	if _, ok := m.active[r]; !ok {
		m.logger.Debug("release of inactive resource ignored", "shape", r.key.String())
		return
	}
	delete(m.active, r)

	if m.disposed || len(m.pools[r.key]) >= m.maxPool {
		m.destroy(r)
		return
	}
	r.lastUsed = m.clock()
	m.pools[r.key] = append(m.pools[r.key], r)
}

func (m *Manager) destroy(r *Resource) {
	m.dev.DeleteFramebuffer(r.Framebuffer)
	m.dev.DeleteTexture(r.Texture)
	m.stats.Deletions++
}

// Sweep deletes pooled resources unused for longer than the TTL and returns
// how many were evicted.
func (m *Manager) Sweep(now time.Time) int {
	evicted := 0
	for key, pool := range m.pools {
		kept := pool[:0]
		for _, r := range pool {
			if now.Sub(r.lastUsed) > m.ttl {
				m.destroy(r)
				evicted++
				continue
			}
			kept = append(kept, r)
		}
		clear(pool[len(kept):])
		if len(kept) == 0 {
			delete(m.pools, key)
		} else {
			m.pools[key] = kept
		}
	}
	m.lastSweep = now
	if evicted > 0 {
		m.logger.Debug("resource sweep", "evicted", evicted)
	}
	return evicted
}

// Maintain runs Sweep when the sweep interval has elapsed. Call it once per
// tick from the render thread.
func (m *Manager) Maintain(now time.Time) {
	if m.disposed || now.Sub(m.lastSweep) < m.interval {
		return
	}
	m.Sweep(now)
}

// Stats returns the current holdings.
func (m *Manager) Stats() Stats {
	s := m.stats
	for r := range m.active {
		s.Active++
		s.ActiveBytes += r.Bytes()
	}
	for _, pool := range m.pools {
		for _, r := range pool {
			s.Pooled++
			s.PooledBytes += r.Bytes()
		}
	}
	return s
}

// Dispose deletes every resource, active or pooled. It is idempotent.
func (m *Manager) Dispose() {
	if m.disposed {
		return
	}
	for _, pool := range m.pools {
		for _, r := range pool {
			m.destroy(r)
		}
	}
	for r := range m.active {
		m.destroy(r)
	}
	clear(m.pools)
	clear(m.active)
	m.disposed = true
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("active", s.Active),
		slog.Int("pooled", s.Pooled),
		slog.Int64("bytes", s.TotalBytes()),
		slog.Int("hits", s.Hits),
		slog.Int("misses", s.Misses),
	)
}
