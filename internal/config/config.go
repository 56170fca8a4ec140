// File: internal/config/config.go
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration tree for the traffic simulator. It is
// loaded once at startup via Viper and treated as read-only afterwards;
// every component receives the slice of it that it needs.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Target    TargetConfig    `mapstructure:"target" yaml:"target"`
	Referrers ReferrerConfig  `mapstructure:"referrers" yaml:"referrers"`
	Behavior  BehaviorConfig  `mapstructure:"behavior" yaml:"behavior"`
	Hotspots  []HotspotConfig `mapstructure:"hotspots" yaml:"hotspots"`
	Funnel    FunnelConfig    `mapstructure:"funnel" yaml:"funnel"`
	Selectors SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
	Retry     RetryConfig     `mapstructure:"retry" yaml:"retry"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`

	// Seed drives every random draw in the process. Runs with the same
	// seed and configuration produce the same session decisions.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`

	// File output with rotation (lumberjack). Empty disables file logging.
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// TargetConfig identifies the storefront under simulation.
type TargetConfig struct {
	Origin string `mapstructure:"origin" yaml:"origin"`

	// WaitUntil selects the page readiness strategy applied after each
	// navigation: "load", "domcontentloaded" or "networkidle".
	WaitUntil string `mapstructure:"wait_until" yaml:"wait_until"`

	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
}

// ReferrerConfig describes the arrival-profile mix. Sources and HeaderURLs
// are parallel lists; the source "direct" sends no Referer header and no
// UTM parameters regardless of its HeaderURLs entry.
type ReferrerConfig struct {
	Sources    []string  `mapstructure:"sources" yaml:"sources"`
	Weights    []float64 `mapstructure:"weights" yaml:"weights"`
	HeaderURLs []string  `mapstructure:"header_urls" yaml:"header_urls"`

	// UTMMediums maps a utm_source slug to its utm_medium. Unmapped
	// sources fall back to DefaultMedium.
	UTMMediums      map[string]string `mapstructure:"utm_mediums" yaml:"utm_mediums"`
	DefaultMedium   string            `mapstructure:"default_medium" yaml:"default_medium"`
	DefaultCampaign string            `mapstructure:"default_campaign" yaml:"default_campaign"`
}

// BehaviorConfig bounds the human-behavior timing and scroll models.
type BehaviorConfig struct {
	ScrollProbability float64 `mapstructure:"scroll_probability" yaml:"scroll_probability"`
	ScrollDepthMin    float64 `mapstructure:"scroll_depth_min" yaml:"scroll_depth_min"`
	ScrollDepthMax    float64 `mapstructure:"scroll_depth_max" yaml:"scroll_depth_max"`
	ScrollStepsMin    int     `mapstructure:"scroll_steps_min" yaml:"scroll_steps_min"`
	ScrollStepsMax    int     `mapstructure:"scroll_steps_max" yaml:"scroll_steps_max"`

	ScrollStepPauseMin time.Duration `mapstructure:"scroll_step_pause_min" yaml:"scroll_step_pause_min"`
	ScrollStepPauseMax time.Duration `mapstructure:"scroll_step_pause_max" yaml:"scroll_step_pause_max"`

	// Settle waits apply after every page land, nav pauses between
	// navigation clicks.
	SettleMin   time.Duration `mapstructure:"settle_min" yaml:"settle_min"`
	SettleMax   time.Duration `mapstructure:"settle_max" yaml:"settle_max"`
	NavPauseMin time.Duration `mapstructure:"nav_pause_min" yaml:"nav_pause_min"`
	NavPauseMax time.Duration `mapstructure:"nav_pause_max" yaml:"nav_pause_max"`

	// How many product detail pages a session opens after its navigation
	// sweep. At least one is always opened.
	PDPViewsMin int `mapstructure:"pdp_views_min" yaml:"pdp_views_min"`
	PDPViewsMax int `mapstructure:"pdp_views_max" yaml:"pdp_views_max"`
}

// HotspotConfig gives one navigation target an independent extra-click
// probability, modelling elevated category interest.
type HotspotConfig struct {
	Name                  string  `mapstructure:"name" yaml:"name"`
	ExtraClickProbability float64 `mapstructure:"extra_click_probability" yaml:"extra_click_probability"`
}

// FunnelConfig holds the conversion rates of the synthetic funnel.
// CheckoutStartRate is conditional on the session having added to cart.
type FunnelConfig struct {
	AddToCartRate     float64 `mapstructure:"add_to_cart_rate" yaml:"add_to_cart_rate"`
	CheckoutStartRate float64 `mapstructure:"checkout_start_rate" yaml:"checkout_start_rate"`
}

// SelectorsConfig maps the engine's abstract UI actions onto the concrete
// storefront DOM. NavLink is a format string; %q is replaced with the
// hotspot name.
type SelectorsConfig struct {
	PrimaryNav  string `mapstructure:"primary_nav" yaml:"primary_nav"`
	NavLink     string `mapstructure:"nav_link" yaml:"nav_link"`
	ProductCard string `mapstructure:"product_card" yaml:"product_card"`
	AddToCart   string `mapstructure:"add_to_cart" yaml:"add_to_cart"`
	ViewCart    string `mapstructure:"view_cart" yaml:"view_cart"`
	Checkout    string `mapstructure:"checkout" yaml:"checkout"`
	PageReady   string `mapstructure:"page_ready" yaml:"page_ready"`
}

// RetryConfig parameterizes the transient-failure retry policy.
type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BackoffBase   time.Duration `mapstructure:"backoff_base" yaml:"backoff_base"`
	BackoffFactor float64       `mapstructure:"backoff_factor" yaml:"backoff_factor"`
	BackoffMax    time.Duration `mapstructure:"backoff_max" yaml:"backoff_max"`
}

// SchedulerConfig controls session issuance and aggregation.
type SchedulerConfig struct {
	SessionsPerMinute float64       `mapstructure:"sessions_per_minute" yaml:"sessions_per_minute"`
	AvgSessionLength  time.Duration `mapstructure:"avg_session_length" yaml:"avg_session_length"`
	MaxConcurrency    int64         `mapstructure:"max_concurrency" yaml:"max_concurrency"`

	// Stop conditions. Zero values mean "unlimited"; the run then ends on
	// signal or kill switch only.
	MaxSessions int           `mapstructure:"max_sessions" yaml:"max_sessions"`
	Duration    time.Duration `mapstructure:"duration" yaml:"duration"`

	SummaryInterval time.Duration `mapstructure:"summary_interval" yaml:"summary_interval"`
	ShutdownGrace   time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"`

	// GlobalQPSCap is a soft cap on navigations per second across all
	// concurrent sessions.
	GlobalQPSCap float64 `mapstructure:"global_qps_cap" yaml:"global_qps_cap"`

	// Smoke caps the run at three sessions for quick validation.
	Smoke bool `mapstructure:"smoke" yaml:"smoke"`

	// KillSwitchFile drains the scheduler when the named file appears.
	KillSwitchFile string `mapstructure:"kill_switch_file" yaml:"kill_switch_file"`
}

// BrowserConfig controls the Chrome allocator.
type BrowserConfig struct {
	Headless        bool   `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool   `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ExecPath        string `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent       string `mapstructure:"user_agent" yaml:"user_agent"`
}

// SetDefaults registers every default on the given Viper instance. Called
// before ReadInConfig so a partial config file is enough to run.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "trafficsim")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)

	v.SetDefault("target.wait_until", "load")
	v.SetDefault("target.navigation_timeout", 25*time.Second)
	v.SetDefault("target.action_timeout", 15*time.Second)

	v.SetDefault("referrers.sources", []string{"direct", "google.com", "bing.com"})
	v.SetDefault("referrers.weights", []float64{60, 25, 15})
	v.SetDefault("referrers.header_urls", []string{"", "https://www.google.com/", "https://www.bing.com/"})
	v.SetDefault("referrers.default_medium", "paid-social")
	v.SetDefault("referrers.default_campaign", "trafficgen")

	v.SetDefault("behavior.scroll_probability", 0.70)
	v.SetDefault("behavior.scroll_depth_min", 0.35)
	v.SetDefault("behavior.scroll_depth_max", 0.90)
	v.SetDefault("behavior.scroll_steps_min", 2)
	v.SetDefault("behavior.scroll_steps_max", 6)
	v.SetDefault("behavior.scroll_step_pause_min", 200*time.Millisecond)
	v.SetDefault("behavior.scroll_step_pause_max", 700*time.Millisecond)
	v.SetDefault("behavior.settle_min", 250*time.Millisecond)
	v.SetDefault("behavior.settle_max", 900*time.Millisecond)
	v.SetDefault("behavior.nav_pause_min", 400*time.Millisecond)
	v.SetDefault("behavior.nav_pause_max", 1100*time.Millisecond)
	v.SetDefault("behavior.pdp_views_min", 1)
	v.SetDefault("behavior.pdp_views_max", 2)

	v.SetDefault("funnel.add_to_cart_rate", 0.30)
	v.SetDefault("funnel.checkout_start_rate", 0.50)

	v.SetDefault("selectors.primary_nav", "header nav a")
	v.SetDefault("selectors.nav_link", "header nav a[data-category=%q]")
	v.SetDefault("selectors.product_card", "a.card-figure, a.card-title, a[href*='/products/']")
	v.SetDefault("selectors.add_to_cart", "button#form-action-addToCart, button[name='add']")
	v.SetDefault("selectors.view_cart", "a[href*='/cart']")
	v.SetDefault("selectors.checkout", "a[href*='/checkout']")
	v.SetDefault("selectors.page_ready", "body")

	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.backoff_base", 500*time.Millisecond)
	v.SetDefault("retry.backoff_factor", 2.0)
	v.SetDefault("retry.backoff_max", 10*time.Second)

	v.SetDefault("scheduler.sessions_per_minute", 25.0)
	v.SetDefault("scheduler.avg_session_length", time.Minute)
	v.SetDefault("scheduler.max_concurrency", 35)
	v.SetDefault("scheduler.summary_interval", 30*time.Second)
	v.SetDefault("scheduler.shutdown_grace", 20*time.Second)
	v.SetDefault("scheduler.global_qps_cap", 6.0)

	v.SetDefault("browser.headless", true)

	v.SetDefault("seed", 0)
}

// NormalizedWaitUntil clamps unknown readiness strategies to "load".
func (t TargetConfig) NormalizedWaitUntil() string {
	switch strings.ToLower(strings.TrimSpace(t.WaitUntil)) {
	case "domcontentloaded":
		return "domcontentloaded"
	case "networkidle":
		return "networkidle"
	default:
		return "load"
	}
}
