package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim-cli/internal/browser"
	"github.com/xkilldash9x/trafficsim-cli/internal/config"
	"github.com/xkilldash9x/trafficsim-cli/internal/funnel"
	"github.com/xkilldash9x/trafficsim-cli/internal/hotspot"
	"github.com/xkilldash9x/trafficsim-cli/internal/referrer"
)

// fakeAutomator implements browser.Automator with overridable behavior.
type fakeAutomator struct {
	navigateFunc func(ctx context.Context, url string, headers map[string]string) error
	waitForFunc  func(ctx context.Context, selector string, timeout time.Duration) error
	clickFunc    func(ctx context.Context, selector string) error
	scrollFunc   func(ctx context.Context, fraction float64, steps int, pause time.Duration) error

	navigations []string
	clicks      []string
	closeCount  atomic.Int32
}

func (f *fakeAutomator) Navigate(ctx context.Context, url string, headers map[string]string) error {
	f.navigations = append(f.navigations, url)
	if f.navigateFunc != nil {
		return f.navigateFunc(ctx, url, headers)
	}
	return nil
}

func (f *fakeAutomator) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if f.waitForFunc != nil {
		return f.waitForFunc(ctx, selector, timeout)
	}
	return nil
}

func (f *fakeAutomator) Click(ctx context.Context, selector string) error {
	f.clicks = append(f.clicks, selector)
	if f.clickFunc != nil {
		return f.clickFunc(ctx, selector)
	}
	return nil
}

func (f *fakeAutomator) ScrollBy(ctx context.Context, fraction float64, steps int, pause time.Duration) error {
	if f.scrollFunc != nil {
		return f.scrollFunc(ctx, fraction, steps, pause)
	}
	return nil
}

func (f *fakeAutomator) CurrentURL(ctx context.Context) (string, error)       { return "", nil }
func (f *fakeAutomator) DocumentReferrer(ctx context.Context) (string, error) { return "", nil }

func (f *fakeAutomator) Close(ctx context.Context) error {
	f.closeCount.Add(1)
	return nil
}

// fakeFactory hands out a fixed automator, or fails.
type fakeFactory struct {
	auto *fakeAutomator
	err  error
}

func (f *fakeFactory) NewAutomator(ctx context.Context) (browser.Automator, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.auto, nil
}

// testConfig is tuned so sessions complete in microseconds: no pauses, no
// scrolling, a single PDP view.
func testConfig() *config.Config {
	return &config.Config{
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
			PDPViewsMax:       1,
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
	}
}

func newOrchestrator(t *testing.T, cfg *config.Config, factory browser.Factory, hotspots []config.HotspotConfig) *Orchestrator {
	t.Helper()
	profiles, err := referrer.NewProfileBuilder(config.ReferrerConfig{
		Sources:         []string{"direct"},
		Weights:         []float64{1},
		HeaderURLs:      []string{""},
		DefaultMedium:   "organic",
		DefaultCampaign: "trafficgen",
	})
	require.NoError(t, err)

	orch, err := New(cfg, profiles, hotspot.NewPolicy(hotspots), factory, zap.NewNop())
	require.NoError(t, err)
	return orch
}

func TestNewRejectsNilDependencies(t *testing.T) {
	_, err := New(nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestRunHappyPathReachesCheckout(t *testing.T) {
	auto := &fakeAutomator{}
	orch := newOrchestrator(t, testConfig(), &fakeFactory{auto: auto}, nil)

	res := orch.Run(context.Background(), 1, rand.New(rand.NewSource(1)))

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, funnel.StageCheckoutStarted, res.Stage)
	assert.NoError(t, res.Err)
	assert.Equal(t, uint64(1), res.Seq)
	assert.True(t, res.Direct)
	assert.Equal(t, 1, res.PDPViews)
	assert.NotEmpty(t, res.ID)

	// One landing navigation, then click-driven browsing.
	require.Len(t, auto.navigations, 1)
	assert.Equal(t, "https://shop.example.com/", auto.navigations[0])
	assert.Equal(t, []string{"#nav", "#product", "#add", "#cart", "#checkout"}, auto.clicks)
	assert.Equal(t, int32(1), auto.closeCount.Load())
}

func TestRunVisitsHotspots(t *testing.T) {
	auto := &fakeAutomator{}
	cfg := testConfig()
	cfg.Funnel = config.FunnelConfig{} // keep the click trace short
	orch := newOrchestrator(t, cfg, &fakeFactory{auto: auto}, []config.HotspotConfig{
		{Name: "sale", ExtraClickProbability: 1},
		{Name: "new", ExtraClickProbability: 1},
	})

	res := orch.Run(context.Background(), 1, rand.New(rand.NewSource(1)))

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, []string{"sale", "new"}, res.Hotspots)
	assert.Contains(t, auto.clicks, `a[data-category="sale"]`)
	assert.Contains(t, auto.clicks, `a[data-category="new"]`)
}

func TestRunRetriesTransientFailures(t *testing.T) {
	attempts := 0
	auto := &fakeAutomator{
		clickFunc: func(ctx context.Context, selector string) error {
			if selector == "#nav" {
				attempts++
				if attempts < 3 {
					return browser.Transient("click", errors.New("could not find node"))
				}
			}
			return nil
		},
	}
	orch := newOrchestrator(t, testConfig(), &fakeFactory{auto: auto}, nil)

	res := orch.Run(context.Background(), 1, rand.New(rand.NewSource(1)))

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 3, attempts, "two transient failures then success")
	assert.Equal(t, int32(1), auto.closeCount.Load())
}

func TestRunFailsWhenRetriesExhaust(t *testing.T) {
	attempts := 0
	auto := &fakeAutomator{
		waitForFunc: func(ctx context.Context, selector string, timeout time.Duration) error {
			attempts++
			return browser.Transient("wait", errors.New("timeout waiting"))
		},
	}
	orch := newOrchestrator(t, testConfig(), &fakeFactory{auto: auto}, nil)

	res := orch.Run(context.Background(), 1, rand.New(rand.NewSource(1)))

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "retries exhausted")
	assert.Equal(t, 3, attempts, "attempt ceiling must hold")
	assert.Equal(t, int32(1), auto.closeCount.Load(), "browser released on failure too")
}

func TestRunDoesNotRetryFatalFailures(t *testing.T) {
	navs := 0
	auto := &fakeAutomator{
		navigateFunc: func(ctx context.Context, url string, headers map[string]string) error {
			navs++
			return browser.Fatal("navigate", errors.New("net::ERR_NAME_NOT_RESOLVED"))
		},
	}
	orch := newOrchestrator(t, testConfig(), &fakeFactory{auto: auto}, nil)

	res := orch.Run(context.Background(), 1, rand.New(rand.NewSource(1)))

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, navs, "fatal failures must not be retried")
}

func TestRunFailsWhenFactoryFails(t *testing.T) {
	orch := newOrchestrator(t, testConfig(), &fakeFactory{err: fmt.Errorf("browser pool drained")}, nil)

	res := orch.Run(context.Background(), 1, rand.New(rand.NewSource(1)))

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorContains(t, res.Err, "browser pool drained")
	assert.Equal(t, funnel.StageBrowsing, res.Stage)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	auto := &fakeAutomator{
		navigateFunc: func(context.Context, string, map[string]string) error {
			cancel()
			return browser.Transient("navigate", errors.New("timeout waiting"))
		},
	}
	orch := newOrchestrator(t, testConfig(), &fakeFactory{auto: auto}, nil)

	res := orch.Run(ctx, 1, rand.New(rand.NewSource(1)))

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
	require.Len(t, auto.navigations, 1, "no retry after cancellation")
	assert.Equal(t, int32(1), auto.closeCount.Load())
}

func TestRunZeroRatesStopAtBrowsing(t *testing.T) {
	auto := &fakeAutomator{}
	cfg := testConfig()
	cfg.Funnel = config.FunnelConfig{AddToCartRate: 0, CheckoutStartRate: 1}
	orch := newOrchestrator(t, cfg, &fakeFactory{auto: auto}, nil)

	res := orch.Run(context.Background(), 1, rand.New(rand.NewSource(1)))

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, funnel.StageBrowsing, res.Stage)
	assert.NotContains(t, auto.clicks, "#add")
	assert.NotContains(t, auto.clicks, "#checkout")
}

func TestRunIsReproducibleForAStream(t *testing.T) {
	run := func() Result {
		auto := &fakeAutomator{}
		cfg := testConfig()
		cfg.Funnel = config.FunnelConfig{AddToCartRate: 0.5, CheckoutStartRate: 0.5}
		orch := newOrchestrator(t, cfg, &fakeFactory{auto: auto}, []config.HotspotConfig{
			{Name: "sale", ExtraClickProbability: 0.5},
		})
		return orch.Run(context.Background(), 7, rand.New(rand.NewSource(123)))
	}

	a, b := run(), run()
	assert.Equal(t, a.Stage, b.Stage)
	assert.Equal(t, a.Hotspots, b.Hotspots)
	assert.Equal(t, a.PDPViews, b.PDPViews)
	assert.Equal(t, a.Source, b.Source)
}
