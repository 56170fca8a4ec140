// Package browser provides the automation capability the session engine
// drives, and its chromedp-backed implementation. The engine only ever
// sees the Automator interface, so the concrete browser engine is
// swappable (and fakeable in tests).
package browser

import (
	"context"
	"time"
)

// Automator is one session's handle on a browser page. Implementations
// own exactly one page/tab; all methods honour context cancellation.
type Automator interface {
	// Navigate loads a URL, sending any extra headers (e.g. Referer) with
	// the request, and waits for the configured page readiness strategy.
	Navigate(ctx context.Context, url string, headers map[string]string) error

	// WaitFor blocks until the selector is visible or the timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// Click dispatches a click on the first element matching the selector.
	Click(ctx context.Context, selector string) error

	// ScrollBy scrolls toward fraction of the page height in the given
	// number of increments, pausing stepPause between increments.
	ScrollBy(ctx context.Context, fraction float64, steps int, stepPause time.Duration) error

	// CurrentURL reports the page's current location.
	CurrentURL(ctx context.Context) (string, error)

	// DocumentReferrer reports document.referrer as the page sees it.
	DocumentReferrer(ctx context.Context) (string, error)

	// Close releases the page and every resource behind it. Safe to call
	// more than once.
	Close(ctx context.Context) error
}

// Factory mints one Automator per session. The scheduler hands it to each
// orchestrator; acquisition failures are fatal for that session only.
type Factory interface {
	NewAutomator(ctx context.Context) (Automator, error)
}
