package pace

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Pacer gates successive sends so a campaign never bursts against the
// provider's per-minute quotas.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Sleeper waits a fixed gap plus up to two seconds of random jitter
// between calls.
type Sleeper struct {
	Gap    time.Duration
	Jitter func() time.Duration
}

// NewSleeper returns a Sleeper with the default jitter source.
func NewSleeper(gap time.Duration) *Sleeper {
	return &Sleeper{
		Gap: gap,
		Jitter: func() time.Duration {
			return time.Duration(rand.Float64() * 2 * float64(time.Second))
		},
	}
}

// Wait blocks for the gap plus jitter, or until the context is canceled.
func (s *Sleeper) Wait(ctx context.Context) error {
	d := s.Gap
	if s.Jitter != nil {
		d += s.Jitter()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("pace wait canceled: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

// None is a Pacer that never waits.
type None struct{}

func (None) Wait(ctx context.Context) error { return nil }

var (
	_ Pacer = (*Sleeper)(nil)
	_ Pacer = None{}
)
