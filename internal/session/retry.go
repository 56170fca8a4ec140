package session

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim-cli/internal/browser"
	"github.com/xkilldash9x/trafficsim-cli/internal/config"
)

// backoff computes exponential retry delays with a little jitter so
// concurrent sessions retrying the same slow page do not stampede.
type backoff struct {
	cfg config.RetryConfig
	rng *rand.Rand
}

// delay returns the wait before retry number attempt (1-based).
func (b backoff) delay(attempt int) time.Duration {
	d := float64(b.cfg.BackoffBase) * math.Pow(b.cfg.BackoffFactor, float64(attempt-1))
	if max := float64(b.cfg.BackoffMax); d > max {
		d = max
	}
	jitter := b.rng.Float64() * 300 * float64(time.Millisecond)
	return time.Duration(d + jitter)
}

// withRetry runs fn, retrying transient automation failures with backoff
// up to the configured attempt ceiling. Non-transient errors and context
// cancellation pass through immediately.
func withRetry(ctx context.Context, bo backoff, log *zap.Logger, op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !browser.IsTransient(err) {
			return err
		}
		if attempt >= bo.cfg.MaxAttempts {
			return fmt.Errorf("%s: retries exhausted after %d attempts: %w", op, attempt, err)
		}
		d := bo.delay(attempt)
		log.Debug("Transient automation failure, backing off",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", d),
			zap.Error(err))
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
}

// sleep pauses only the calling session, honouring cancellation.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
