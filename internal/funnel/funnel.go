// Package funnel models a session's progression through the purchase
// funnel as an explicit state machine. The states form a strict chain:
//
//	Browsing -> AddedToCart -> CheckoutStarted
//
// No transition skips a state, so "checkout implies cart" is structurally
// unrepresentable as a violation. Sessions that start checkout never
// complete it; the machine has no further state on purpose, since the
// simulator validates funnel entry, not completion.
package funnel

import (
	"math/rand"

	"github.com/xkilldash9x/trafficsim-cli/internal/config"
)

// Stage is a session's position in the funnel.
type Stage int

const (
	StageBrowsing Stage = iota
	StageAddedToCart
	StageCheckoutStarted
)

func (s Stage) String() string {
	switch s {
	case StageBrowsing:
		return "browsing"
	case StageAddedToCart:
		return "added_to_cart"
	case StageCheckoutStarted:
		return "checkout_started"
	default:
		return "unknown"
	}
}

// Machine advances one session through the funnel. Each transition's
// probability is evaluated at most once; repeated calls after a draw are
// fixed points and consume no randomness.
type Machine struct {
	cfg   config.FunnelConfig
	rng   *rand.Rand
	stage Stage

	cartEvaluated     bool
	checkoutEvaluated bool
}

// New creates a machine in StageBrowsing bound to the session's stream.
func New(cfg config.FunnelConfig, rng *rand.Rand) *Machine {
	return &Machine{cfg: cfg, rng: rng, stage: StageBrowsing}
}

// Stage returns the current funnel stage.
func (m *Machine) Stage() Stage { return m.stage }

// TryAddToCart evaluates the Browsing -> AddedToCart transition once,
// after browsing completes. It reports whether the session is now (or
// already was) past the add-to-cart gate.
func (m *Machine) TryAddToCart() bool {
	if m.stage != StageBrowsing {
		return m.stage >= StageAddedToCart
	}
	if m.cartEvaluated {
		return false
	}
	m.cartEvaluated = true
	if m.rng.Float64() < m.cfg.AddToCartRate {
		m.stage = StageAddedToCart
		return true
	}
	return false
}

// TryStartCheckout evaluates the AddedToCart -> CheckoutStarted
// transition once. It can only fire from AddedToCart; calling it from
// Browsing neither transitions nor consumes randomness.
func (m *Machine) TryStartCheckout() bool {
	if m.stage != StageAddedToCart {
		return m.stage == StageCheckoutStarted
	}
	if m.checkoutEvaluated {
		return false
	}
	m.checkoutEvaluated = true
	if m.rng.Float64() < m.cfg.CheckoutStartRate {
		m.stage = StageCheckoutStarted
		return true
	}
	return false
}
