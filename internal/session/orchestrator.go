// File: internal/session/orchestrator.go
// Description: Runs one simulated visitor end to end: arrival profile,
// human-paced browsing, navigation hotspots, product views and the funnel
// actions the state machine dictates.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim-cli/internal/behavior"
	"github.com/xkilldash9x/trafficsim-cli/internal/browser"
	"github.com/xkilldash9x/trafficsim-cli/internal/config"
	"github.com/xkilldash9x/trafficsim-cli/internal/funnel"
	"github.com/xkilldash9x/trafficsim-cli/internal/hotspot"
	"github.com/xkilldash9x/trafficsim-cli/internal/referrer"
)

// Orchestrator composes the behavior models into a full session. One
// Orchestrator serves every session; all per-session state lives in Run.
type Orchestrator struct {
	cfg      *config.Config
	profiles *referrer.ProfileBuilder
	hotspots *hotspot.Policy
	factory  browser.Factory
	logger   *zap.Logger
}

// New wires the orchestrator. All dependencies are required.
func New(
	cfg *config.Config,
	profiles *referrer.ProfileBuilder,
	hotspots *hotspot.Policy,
	factory browser.Factory,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if cfg == nil || profiles == nil || hotspots == nil || factory == nil || logger == nil {
		return nil, errors.New("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{
		cfg:      cfg,
		profiles: profiles,
		hotspots: hotspots,
		factory:  factory,
		logger:   logger.Named("session"),
	}, nil
}

// Run executes one session and returns its summary. Failures never
// propagate as errors; they are folded into the Result so a broken
// session cannot take down the scheduler or skew its siblings.
func (o *Orchestrator) Run(ctx context.Context, seq uint64, rng *rand.Rand) Result {
	st := &State{
		ID:        uuid.New().String(),
		Seq:       seq,
		Profile:   o.profiles.Build(rng),
		StartTime: time.Now(),
	}
	log := o.logger.With(zap.String("session_id", st.ID), zap.Uint64("seq", seq))

	model := behavior.NewModel(o.cfg.Behavior, rng)
	machine := funnel.New(o.cfg.Funnel, rng)
	bo := backoff{cfg: o.cfg.Retry, rng: rng}

	err := o.runSession(ctx, st, model, machine, rng, bo, log)
	st.EndTime = time.Now()

	res := Result{
		ID:       st.ID,
		Seq:      st.Seq,
		Outcome:  OutcomeCompleted,
		Stage:    machine.Stage(),
		Source:   st.Profile.Source,
		Direct:   st.Profile.Direct(),
		Hotspots: st.HotspotsVisited,
		PDPViews: st.PDPViews,
		Duration: st.EndTime.Sub(st.StartTime),
		Err:      err,
	}
	if err != nil {
		res.Outcome = OutcomeFailed
	}

	log.Info("Session summary",
		zap.String("outcome", res.Outcome.String()),
		zap.String("funnel_stage", res.Stage.String()),
		zap.String("source", res.Source),
		zap.Bool("direct", res.Direct),
		zap.Strings("hotspots", res.Hotspots),
		zap.Int("pdp_views", res.PDPViews),
		zap.Duration("duration", res.Duration),
		zap.Error(err))

	return res
}

func (o *Orchestrator) runSession(
	ctx context.Context,
	st *State,
	model *behavior.Model,
	machine *funnel.Machine,
	rng *rand.Rand,
	bo backoff,
	log *zap.Logger,
) error {
	auto, err := o.factory.NewAutomator(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire browser context: %w", err)
	}
	// Release on every exit path. Close gets its own context so cleanup
	// still runs when the session context is already cancelled.
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := auto.Close(closeCtx); cerr != nil {
			log.Warn("Failed to release browser context", zap.Error(cerr))
		}
	}()

	err = o.browse(ctx, auto, st, model, machine, rng, bo, log)
	if err != nil && ctx.Err() == nil {
		if loc, lerr := auto.CurrentURL(ctx); lerr == nil && loc != "" {
			log.Debug("Failing page", zap.String("url", loc))
		}
	}
	return err
}

func (o *Orchestrator) browse(
	ctx context.Context,
	auto browser.Automator,
	st *State,
	model *behavior.Model,
	machine *funnel.Machine,
	rng *rand.Rand,
	bo backoff,
	log *zap.Logger,
) error {
	if err := o.land(ctx, auto, st, model, bo, log); err != nil {
		return err
	}
	if err := o.navigationSweep(ctx, auto, st, model, rng, bo, log); err != nil {
		return err
	}
	if err := o.productViews(ctx, auto, st, model, bo, log); err != nil {
		return err
	}
	return o.advanceFunnel(ctx, auto, st, model, machine, bo, log)
}

// land performs the first navigation with the arrival profile applied.
func (o *Orchestrator) land(ctx context.Context, auto browser.Automator, st *State, model *behavior.Model, bo backoff, log *zap.Logger) error {
	landing := st.Profile.LandingURL(o.cfg.Target.Origin)
	headers := st.Profile.Headers()

	err := withRetry(ctx, bo, log, "landing", func() error {
		if err := auto.Navigate(ctx, landing, headers); err != nil {
			return err
		}
		if ready := o.cfg.Selectors.PageReady; ready != "" {
			return auto.WaitFor(ctx, ready, o.cfg.Target.ActionTimeout)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if ref, rerr := auto.DocumentReferrer(ctx); rerr == nil {
		log.Debug("Landing referrer", zap.String("document_referrer", ref))
	}
	log.Info("Landing",
		zap.String("url", landing),
		zap.String("source", st.Profile.Source),
		zap.String("utm_source", st.Profile.UTMSource),
		zap.String("utm_medium", st.Profile.UTMMedium),
		zap.Bool("direct", st.Profile.Direct()))

	if err := sleep(ctx, model.SettleWait()); err != nil {
		return err
	}
	o.maybeScroll(ctx, auto, model, log)
	return nil
}

// navigationSweep clicks the primary navigation target, then any hotspot
// extra clicks the policy granted this session.
func (o *Orchestrator) navigationSweep(ctx context.Context, auto browser.Automator, st *State, model *behavior.Model, rng *rand.Rand, bo backoff, log *zap.Logger) error {
	sel := o.cfg.Selectors

	if err := o.clickAndSettle(ctx, auto, model, bo, log, "primary_nav", sel.PrimaryNav); err != nil {
		return err
	}
	log.Info("Nav click", zap.String("target", "primary"))

	for _, name := range o.hotspots.ExtraClicks(rng) {
		if err := sleep(ctx, model.NavPauseWait()); err != nil {
			return err
		}
		selector := fmt.Sprintf(sel.NavLink, name)
		if err := o.clickAndSettle(ctx, auto, model, bo, log, "hotspot:"+name, selector); err != nil {
			return err
		}
		st.HotspotsVisited = append(st.HotspotsVisited, name)
		log.Info("Nav click", zap.String("target", "hotspot"), zap.String("hotspot", name))
	}
	return nil
}

// productViews opens the session's product detail pages. At least one PDP
// is always visited.
func (o *Orchestrator) productViews(ctx context.Context, auto browser.Automator, st *State, model *behavior.Model, bo backoff, log *zap.Logger) error {
	views := model.PDPViews()
	for i := 0; i < views; i++ {
		if err := sleep(ctx, model.NavPauseWait()); err != nil {
			return err
		}
		if err := o.clickAndSettle(ctx, auto, model, bo, log, "pdp", o.cfg.Selectors.ProductCard); err != nil {
			return err
		}
		st.PDPViews++
		log.Info("PDP view", zap.Int("view", st.PDPViews))
	}
	return nil
}

// advanceFunnel evaluates the state machine and performs the UI actions
// its transitions dictate. Sessions that start checkout stop there.
func (o *Orchestrator) advanceFunnel(ctx context.Context, auto browser.Automator, st *State, model *behavior.Model, machine *funnel.Machine, bo backoff, log *zap.Logger) error {
	sel := o.cfg.Selectors

	if !machine.TryAddToCart() {
		return nil
	}
	if err := o.clickAndSettle(ctx, auto, model, bo, log, "add_to_cart", sel.AddToCart); err != nil {
		return err
	}
	log.Info("Funnel transition", zap.String("stage", funnel.StageAddedToCart.String()))

	if !machine.TryStartCheckout() {
		return nil
	}
	if err := o.clickAndSettle(ctx, auto, model, bo, log, "view_cart", sel.ViewCart); err != nil {
		return err
	}
	if err := sleep(ctx, model.NavPauseWait()); err != nil {
		return err
	}
	if err := o.clickAndSettle(ctx, auto, model, bo, log, "start_checkout", sel.Checkout); err != nil {
		return err
	}
	log.Info("Funnel transition", zap.String("stage", funnel.StageCheckoutStarted.String()))
	// Checkout is deliberately never completed; the session ends here.
	return nil
}

// clickAndSettle waits for the target, clicks it with retries, then
// settles like a reader would.
func (o *Orchestrator) clickAndSettle(ctx context.Context, auto browser.Automator, model *behavior.Model, bo backoff, log *zap.Logger, op, selector string) error {
	err := withRetry(ctx, bo, log, op, func() error {
		if err := auto.WaitFor(ctx, selector, o.cfg.Target.ActionTimeout); err != nil {
			return err
		}
		return auto.Click(ctx, selector)
	})
	if err != nil {
		return err
	}
	if err := sleep(ctx, model.SettleWait()); err != nil {
		return err
	}
	o.maybeScroll(ctx, auto, model, log)
	return nil
}

// maybeScroll rolls the scroll probability and executes the plan. Scroll
// failures are cosmetic, so anything short of cancellation is logged and
// swallowed.
func (o *Orchestrator) maybeScroll(ctx context.Context, auto browser.Automator, model *behavior.Model, log *zap.Logger) {
	plan, ok := model.DecideScroll()
	if !ok {
		return
	}
	if err := auto.ScrollBy(ctx, plan.DepthFraction, plan.Steps, model.ScrollStepPause()); err != nil && ctx.Err() == nil {
		log.Debug("Scroll failed",
			zap.Float64("depth", plan.DepthFraction),
			zap.Int("steps", plan.Steps),
			zap.Error(err))
	}
}
