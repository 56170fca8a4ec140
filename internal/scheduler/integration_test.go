package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim-cli/internal/browser"
	"github.com/xkilldash9x/trafficsim-cli/internal/config"
	"github.com/xkilldash9x/trafficsim-cli/internal/hotspot"
	"github.com/xkilldash9x/trafficsim-cli/internal/referrer"
	"github.com/xkilldash9x/trafficsim-cli/internal/rng"
	"github.com/xkilldash9x/trafficsim-cli/internal/session"
)

// nopAutomator accepts every action instantly, standing in for a page
// where every selector resolves.
type nopAutomator struct{}

func (nopAutomator) Navigate(ctx context.Context, url string, headers map[string]string) error {
	return nil
}
func (nopAutomator) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (nopAutomator) Click(ctx context.Context, selector string) error { return nil }
func (nopAutomator) ScrollBy(ctx context.Context, fraction float64, steps int, pause time.Duration) error {
	return nil
}
func (nopAutomator) CurrentURL(ctx context.Context) (string, error)       { return "", nil }
func (nopAutomator) DocumentReferrer(ctx context.Context) (string, error) { return "", nil }
func (nopAutomator) Close(ctx context.Context) error                      { return nil }

type nopFactory struct{}

func (nopFactory) NewAutomator(ctx context.Context) (browser.Automator, error) {
	return nopAutomator{}, nil
}

// TestEndToEndCertainFunnel drives the real orchestrator through the
// scheduler: with certain conversion rates every session must start
// checkout and none may fail.
func TestEndToEndCertainFunnel(t *testing.T) {
	cfg := &config.Config{
		Target: config.TargetConfig{
			Origin:            "https://shop.example.com",
			NavigationTimeout: time.Second,
			ActionTimeout:     time.Second,
		},
		Behavior: config.BehaviorConfig{
			ScrollProbability: 0,
			ScrollStepsMin:    1,
			ScrollStepsMax:    1,
			PDPViewsMin:       1,
			PDPViewsMax:       2,
		},
		Funnel: config.FunnelConfig{AddToCartRate: 1, CheckoutStartRate: 1},
		Selectors: config.SelectorsConfig{
			PrimaryNav:  "#nav",
			NavLink:     "a[data-category=%q]",
			ProductCard: "#product",
			AddToCart:   "#add",
			ViewCart:    "#cart",
			Checkout:    "#checkout",
		},
		Retry: config.RetryConfig{
			MaxAttempts:   3,
			BackoffBase:   time.Millisecond,
			BackoffFactor: 2,
			BackoffMax:    5 * time.Millisecond,
		},
		Scheduler: config.SchedulerConfig{
			SessionsPerMinute: 100000,
			MaxConcurrency:    5,
			MaxSessions:       10,
			ShutdownGrace:     time.Second,
		},
	}

	profiles, err := referrer.NewProfileBuilder(config.ReferrerConfig{
		Sources:         []string{"direct", "google.com"},
		Weights:         []float64{1, 0},
		HeaderURLs:      []string{"", "https://www.google.com/"},
		DefaultMedium:   "organic",
		DefaultCampaign: "trafficgen",
	})
	require.NoError(t, err)

	orch, err := session.New(cfg, profiles, hotspot.NewPolicy(nil), nopFactory{}, zap.NewNop())
	require.NoError(t, err)

	s, err := New(cfg.Scheduler, orch, rng.New(42), zap.NewNop())
	require.NoError(t, err)

	sum := s.Run(context.Background())

	assert.Equal(t, int64(10), sum.Sessions)
	assert.Equal(t, int64(10), sum.Completed)
	assert.Zero(t, sum.Failed)
	assert.Equal(t, int64(10), sum.AddToCarts)
	assert.Equal(t, int64(10), sum.CheckoutStarts)
}
