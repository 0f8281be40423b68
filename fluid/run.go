package fluid

import (
	"context"
	"fmt"

	"github.com/artinkavousi/Webfluidsystem/gpu"
)

// DefaultFailureLimit is how many ticks in a row may fail before a host
// gives up on the context.
const DefaultFailureLimit = 120

// TickGuard decides when failing ticks should stop a host loop. A fatal
// device error stops at once; any other error stops only after Limit
// consecutive failures.
type TickGuard struct {
	Limit    int
	failures int
}

// Check records the result of one tick. It returns nil while the loop may
// continue.
func (g *TickGuard) Check(err error) error {
	if err == nil {
		g.failures = 0
		return nil
	}
	if gpu.IsFatal(err) {
		return err
	}
	g.failures++
	limit := g.Limit
	if limit <= 0 {
		limit = DefaultFailureLimit
	}
	if g.failures >= limit {
		return fmt.Errorf("%d consecutive ticks failed: %w", g.failures, err)
	}
	return nil
}

// Failures returns the current run of failed ticks.
func (g *TickGuard) Failures() int { return g.failures }

// RunFixed ticks s at a fixed dt until maxTicks ticks have completed (zero
// means unlimited), ctx is done or the guard stops the loop. after runs
// once per tick attempt and may be nil.
func RunFixed(ctx context.Context, s *Simulation, dt float64, maxTicks int64, guard *TickGuard, after func()) error {
	if guard == nil {
		guard = &TickGuard{}
	}
	for maxTicks <= 0 || s.Ticks() < maxTicks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := guard.Check(s.Tick(dt)); err != nil {
			return err
		}
		if after != nil {
			after()
		}
	}
	return nil
}
