package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/trafficsim-cli/internal/config"
)

// Launcher owns the shared Chrome process. Each session gets its own tab
// (a child chromedp context) from it, so session state - cookies aside -
// stays isolated while the process is shared.
type Launcher struct {
	cfg    config.BrowserConfig
	target config.TargetConfig
	logger *zap.Logger

	limiter *rate.Limiter

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc
	closeOnce   sync.Once
}

// NewLauncher starts the Chrome allocator and the root browser context.
// The limiter caps navigations per second across every session sharing
// this launcher.
func NewLauncher(ctx context.Context, cfg config.BrowserConfig, target config.TargetConfig, qpsCap float64, logger *zap.Logger) (*Launcher, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", cfg.Headless))
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserStop := chromedp.NewContext(allocCtx)

	// Spin the browser up eagerly so a missing Chrome binary surfaces at
	// startup instead of inside the first session.
	if err := chromedp.Run(browserCtx); err != nil {
		browserStop()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Launcher{
		cfg:         cfg,
		target:      target,
		logger:      logger.Named("browser"),
		limiter:     rate.NewLimiter(rate.Limit(qpsCap), int(qpsCap)+1),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		browserStop: browserStop,
	}, nil
}

// NewAutomator opens a fresh tab for one session.
func (l *Launcher) NewAutomator(ctx context.Context) (Automator, error) {
	if err := l.browserCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser is shut down: %w", err)
	}
	tabCtx, tabCancel := chromedp.NewContext(l.browserCtx)
	return &tab{
		ctx:     tabCtx,
		cancel:  tabCancel,
		target:  l.target,
		limiter: l.limiter,
		logger:  l.logger,
	}, nil
}

// Close tears down every remaining tab and the browser process.
func (l *Launcher) Close() {
	l.closeOnce.Do(func() {
		l.browserStop()
		l.allocCancel()
	})
}

// tab is the chromedp-backed Automator for one session.
type tab struct {
	ctx     context.Context
	cancel  context.CancelFunc
	target  config.TargetConfig
	limiter *rate.Limiter
	logger  *zap.Logger

	closeOnce sync.Once
}

var _ Automator = (*tab)(nil)

// run executes actions against the tab under the caller's deadline.
func (t *tab) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	// The tab context carries the chromedp target; the caller's context
	// only contributes cancellation and the per-action deadline.
	runCtx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil && runCtx.Err() == context.DeadlineExceeded {
		return context.DeadlineExceeded
	}
	return err
}

func (t *tab) Navigate(ctx context.Context, url string, headers map[string]string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	actions := []chromedp.Action{network.Enable()}
	if len(headers) > 0 {
		h := make(network.Headers, len(headers))
		for k, v := range headers {
			h[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(h))
	}
	actions = append(actions, chromedp.Navigate(url))
	if t.target.NormalizedWaitUntil() == "networkidle" {
		// chromedp's Navigate already waits for the load event; a short
		// quiet period approximates network idle on top of it.
		actions = append(actions, chromedp.Sleep(500*time.Millisecond))
	}
	return classify("navigate", t.run(ctx, t.target.NavigationTimeout, actions...))
}

func (t *tab) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return classify("wait", t.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)))
}

func (t *tab) Click(ctx context.Context, selector string) error {
	return classify("click", t.run(ctx, t.target.ActionTimeout,
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)))
}

func (t *tab) ScrollBy(ctx context.Context, fraction float64, steps int, stepPause time.Duration) error {
	if steps < 1 {
		steps = 1
	}
	var height float64
	err := t.run(ctx, t.target.ActionTimeout, chromedp.Evaluate(
		`Math.max(document.documentElement.scrollHeight, document.body.scrollHeight, 0)`, &height))
	if err != nil {
		return classify("scroll", err)
	}
	if height <= 0 {
		height = 2000
	}
	delta := height * fraction / float64(steps)
	for i := 0; i < steps; i++ {
		err := t.run(ctx, t.target.ActionTimeout, chromedp.Evaluate(
			fmt.Sprintf(`window.scrollBy({top: %f, behavior: "auto"})`, delta), nil))
		if err != nil {
			return classify("scroll", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(stepPause):
		}
	}
	return nil
}

func (t *tab) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	err := t.run(ctx, t.target.ActionTimeout, chromedp.Location(&loc))
	return loc, classify("location", err)
}

func (t *tab) DocumentReferrer(ctx context.Context) (string, error) {
	var ref string
	err := t.run(ctx, t.target.ActionTimeout, chromedp.Evaluate(`document.referrer`, &ref))
	return ref, classify("referrer", err)
}

func (t *tab) Close(context.Context) error {
	t.closeOnce.Do(t.cancel)
	return nil
}
