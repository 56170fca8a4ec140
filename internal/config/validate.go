package config

import (
	"net/url"
	"strings"
)

// Validate checks the whole tree and returns the first problem found as a
// *ConfigurationError. It runs once at startup; components may assume a
// validated config afterwards.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Target.Origin) == "" {
		return Errorf("target.origin", "must be set")
	}
	if u, err := url.Parse(c.Target.Origin); err != nil || u.Scheme == "" || u.Host == "" {
		return Errorf("target.origin", "%q is not an absolute URL", c.Target.Origin)
	}
	if c.Target.NavigationTimeout <= 0 {
		return Errorf("target.navigation_timeout", "must be positive")
	}
	if c.Target.ActionTimeout <= 0 {
		return Errorf("target.action_timeout", "must be positive")
	}

	if err := c.Referrers.validate(); err != nil {
		return err
	}
	if err := c.Behavior.validate(); err != nil {
		return err
	}

	for i, h := range c.Hotspots {
		if strings.TrimSpace(h.Name) == "" {
			return Errorf("hotspots", "entry %d has an empty name", i)
		}
		if err := probability("hotspots."+h.Name, h.ExtraClickProbability); err != nil {
			return err
		}
	}

	if err := probability("funnel.add_to_cart_rate", c.Funnel.AddToCartRate); err != nil {
		return err
	}
	if err := probability("funnel.checkout_start_rate", c.Funnel.CheckoutStartRate); err != nil {
		return err
	}

	if c.Retry.MaxAttempts < 1 {
		return Errorf("retry.max_attempts", "must be at least 1")
	}
	if c.Retry.BackoffBase <= 0 {
		return Errorf("retry.backoff_base", "must be positive")
	}
	if c.Retry.BackoffFactor < 1 {
		return Errorf("retry.backoff_factor", "must be >= 1")
	}
	if c.Retry.BackoffMax < c.Retry.BackoffBase {
		return Errorf("retry.backoff_max", "must be >= retry.backoff_base")
	}

	if c.Scheduler.SessionsPerMinute <= 0 {
		return Errorf("scheduler.sessions_per_minute", "must be positive")
	}
	if c.Scheduler.MaxConcurrency < 1 {
		return Errorf("scheduler.max_concurrency", "must be at least 1")
	}
	if c.Scheduler.GlobalQPSCap <= 0 {
		return Errorf("scheduler.global_qps_cap", "must be positive")
	}
	if c.Scheduler.ShutdownGrace < 0 {
		return Errorf("scheduler.shutdown_grace", "must not be negative")
	}

	return nil
}

func (r ReferrerConfig) validate() error {
	if len(r.Sources) == 0 {
		return Errorf("referrers.sources", "at least one source is required")
	}
	if len(r.Weights) != len(r.Sources) {
		return Errorf("referrers.weights", "have %d entries, want %d (one per source)",
			len(r.Weights), len(r.Sources))
	}
	if len(r.HeaderURLs) != len(r.Sources) {
		return Errorf("referrers.header_urls", "have %d entries, want %d (one per source)",
			len(r.HeaderURLs), len(r.Sources))
	}
	positive := false
	for i, w := range r.Weights {
		if w < 0 {
			return Errorf("referrers.weights", "entry %d is negative", i)
		}
		if w > 0 {
			positive = true
		}
	}
	if !positive {
		return Errorf("referrers.weights", "all weights are zero")
	}
	if strings.TrimSpace(r.DefaultCampaign) == "" {
		return Errorf("referrers.default_campaign", "must be set")
	}
	if strings.TrimSpace(r.DefaultMedium) == "" {
		return Errorf("referrers.default_medium", "must be set")
	}
	return nil
}

func (b BehaviorConfig) validate() error {
	if err := probability("behavior.scroll_probability", b.ScrollProbability); err != nil {
		return err
	}
	if err := fracRange("behavior.scroll_depth", b.ScrollDepthMin, b.ScrollDepthMax); err != nil {
		return err
	}
	if b.ScrollStepsMin < 1 || b.ScrollStepsMax < b.ScrollStepsMin {
		return Errorf("behavior.scroll_steps", "want 1 <= min <= max, got [%d,%d]",
			b.ScrollStepsMin, b.ScrollStepsMax)
	}
	for _, rng := range []struct {
		name     string
		min, max int64
	}{
		{"behavior.scroll_step_pause", int64(b.ScrollStepPauseMin), int64(b.ScrollStepPauseMax)},
		{"behavior.settle", int64(b.SettleMin), int64(b.SettleMax)},
		{"behavior.nav_pause", int64(b.NavPauseMin), int64(b.NavPauseMax)},
	} {
		if rng.min < 0 || rng.max < rng.min {
			return Errorf(rng.name, "want 0 <= min <= max")
		}
	}
	if b.PDPViewsMin < 1 || b.PDPViewsMax < b.PDPViewsMin {
		return Errorf("behavior.pdp_views", "want 1 <= min <= max, got [%d,%d]",
			b.PDPViewsMin, b.PDPViewsMax)
	}
	return nil
}

func probability(field string, p float64) error {
	if p < 0 || p > 1 {
		return Errorf(field, "%v is outside [0,1]", p)
	}
	return nil
}

func fracRange(field string, min, max float64) error {
	if min < 0 || max > 1 || max < min {
		return Errorf(field, "want 0 <= min <= max <= 1, got [%v,%v]", min, max)
	}
	return nil
}
