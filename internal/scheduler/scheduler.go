// File: internal/scheduler/scheduler.go
// Description: Issues sessions at the configured arrival rate, bounds
// their concurrency, and folds their outcomes into a running summary.
package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/trafficsim-cli/internal/config"
	"github.com/xkilldash9x/trafficsim-cli/internal/funnel"
	"github.com/xkilldash9x/trafficsim-cli/internal/rng"
	"github.com/xkilldash9x/trafficsim-cli/internal/session"
)

// smokeSessionCap limits a smoke run.
const smokeSessionCap = 3

// minInterArrival keeps a misconfigured high rate from busy-looping.
const minInterArrival = 50 * time.Millisecond

// Runner executes a single session. Satisfied by *session.Orchestrator.
type Runner interface {
	Run(ctx context.Context, seq uint64, rng *rand.Rand) session.Result
}

// Summary is the aggregate view over all finished sessions. Counters are
// owned by the single aggregator goroutine; nothing else writes them.
type Summary struct {
	Sessions       int64
	Completed      int64
	Failed         int64
	AddToCarts     int64
	CheckoutStarts int64
}

// Scheduler issues sessions with exponential inter-arrival times (a
// Poisson process whose long-run rate is SessionsPerMinute), bounded by a
// concurrency semaphore.
type Scheduler struct {
	cfg    config.SchedulerConfig
	runner Runner
	src    *rng.Source
	logger *zap.Logger
}

// New validates dependencies and builds a Scheduler.
func New(cfg config.SchedulerConfig, runner Runner, src *rng.Source, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("runner cannot be nil")
	}
	if src == nil {
		return nil, errors.New("rng source cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		src:    src,
		logger: logger.Named("scheduler"),
	}, nil
}

// Run issues sessions until a stop condition fires: context cancellation,
// the configured session count or wall-clock duration, the kill-switch
// file, or the smoke cap. It then drains in-flight sessions, granting
// them the configured grace period before forcing cancellation, and
// returns the final summary.
func (s *Scheduler) Run(ctx context.Context) Summary {
	if s.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Duration)
		defer cancel()
	}

	maxSessions := s.cfg.MaxSessions
	if s.cfg.Smoke && (maxSessions == 0 || maxSessions > smokeSessionCap) {
		maxSessions = smokeSessionCap
	}

	// Sessions outlive the issuance context by up to ShutdownGrace so
	// they can finish their current step before being cut off.
	sessCtx, sessCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer sessCancel()
	allDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			select {
			case <-time.After(s.cfg.ShutdownGrace):
				s.logger.Warn("Shutdown grace elapsed, cancelling in-flight sessions")
				sessCancel()
			case <-allDone:
			}
		case <-allDone:
		}
	}()

	results := make(chan session.Result)
	finalCh := make(chan Summary, 1)
	go s.aggregate(results, finalCh)

	sem := semaphore.NewWeighted(s.cfg.MaxConcurrency)
	ratePerSec := s.cfg.SessionsPerMinute / 60.0

	// Little's law: steady-state in-flight sessions = arrival rate x mean
	// session length. If that exceeds the semaphore, arrivals will queue
	// and the realized rate falls below the configured one.
	if expected := ratePerSec * s.cfg.AvgSessionLength.Seconds(); s.cfg.AvgSessionLength > 0 && expected > float64(s.cfg.MaxConcurrency) {
		s.logger.Warn("Expected in-flight sessions exceed the concurrency cap",
			zap.Float64("expected_in_flight", expected),
			zap.Int64("max_concurrency", s.cfg.MaxConcurrency))
	}

	s.logger.Info("Scheduler started",
		zap.Float64("sessions_per_minute", s.cfg.SessionsPerMinute),
		zap.Int64("max_concurrency", s.cfg.MaxConcurrency),
		zap.Int("max_sessions", maxSessions),
		zap.Int64("seed", s.src.Seed()))

	var wg sync.WaitGroup
	issued := 0
issue:
	for {
		if maxSessions > 0 && issued >= maxSessions {
			break
		}
		if s.killSwitchTripped() {
			s.logger.Info("Kill switch present, draining",
				zap.String("file", s.cfg.KillSwitchFile))
			break
		}
		if err := sleepUntil(ctx, s.interArrival(ratePerSec)); err != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break issue
		}
		issued++
		seq := uint64(issued)
		sessionRNG := s.src.Session(seq)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results <- s.runner.Run(sessCtx, seq, sessionRNG)
		}()
	}

	s.logger.Info("Scheduler draining", zap.Int("issued", issued))
	wg.Wait()
	close(allDone)
	close(results)
	sum := <-finalCh
	s.logSummary("Final summary", sum)
	return sum
}

// aggregate is the sole owner of the counters: session goroutines only
// send results, so no counter is ever touched from two goroutines.
func (s *Scheduler) aggregate(results <-chan session.Result, finalCh chan<- Summary) {
	var sum Summary
	var tick <-chan time.Time
	if s.cfg.SummaryInterval > 0 {
		t := time.NewTicker(s.cfg.SummaryInterval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case res, ok := <-results:
			if !ok {
				finalCh <- sum
				return
			}
			sum.Sessions++
			if res.Outcome == session.OutcomeCompleted {
				sum.Completed++
			} else {
				sum.Failed++
			}
			if res.Stage >= funnel.StageAddedToCart {
				sum.AddToCarts++
			}
			if res.Stage == funnel.StageCheckoutStarted {
				sum.CheckoutStarts++
			}
		case <-tick:
			s.logSummary("Traffic summary", sum)
		}
	}
}

func (s *Scheduler) logSummary(msg string, sum Summary) {
	s.logger.Info(msg,
		zap.Int64("sessions", sum.Sessions),
		zap.Int64("completed", sum.Completed),
		zap.Int64("failed", sum.Failed),
		zap.Int64("add_to_carts", sum.AddToCarts),
		zap.Int64("checkout_starts", sum.CheckoutStarts))
}

// interArrival draws the next gap from an exponential distribution with
// the configured mean. Draws come from the base stream, which only this
// goroutine touches.
func (s *Scheduler) interArrival(ratePerSec float64) time.Duration {
	d := time.Duration(s.src.Base().ExpFloat64() / ratePerSec * float64(time.Second))
	if d < minInterArrival {
		d = minInterArrival
	}
	return d
}

func (s *Scheduler) killSwitchTripped() bool {
	if s.cfg.KillSwitchFile == "" {
		return false
	}
	_, err := os.Stat(s.cfg.KillSwitchFile)
	return err == nil
}

func sleepUntil(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
