// Package referrer builds per-session arrival profiles: the combination of
// HTTP Referer header and UTM query parameters presented on a session's
// first navigation.
package referrer

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/xkilldash9x/trafficsim-cli/internal/config"
	"github.com/xkilldash9x/trafficsim-cli/internal/sampling"

	"math/rand"
)

// NoReferrer marks a profile that sends no Referer header.
const NoReferrer = "no-referrer"

// Profile is an immutable arrival profile, built once at session start.
type Profile struct {
	Source      string
	HeaderURL   string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
}

// Direct reports whether the session arrives with no referrer at all.
func (p Profile) Direct() bool { return p.HeaderURL == NoReferrer }

// LandingURL appends the profile's UTM parameters to the storefront
// landing URL. Direct profiles land untagged.
func (p Profile) LandingURL(origin string) string {
	landing := strings.TrimRight(origin, "/") + "/"
	if p.Direct() {
		return landing
	}
	q := url.Values{}
	q.Set("utm_source", p.UTMSource)
	q.Set("utm_medium", p.UTMMedium)
	q.Set("utm_campaign", p.UTMCampaign)
	return landing + "?" + q.Encode()
}

// Headers returns the extra HTTP headers for the landing navigation.
func (p Profile) Headers() map[string]string {
	if p.Direct() {
		return nil
	}
	return map[string]string{"Referer": p.HeaderURL}
}

type source struct {
	label     string
	headerURL string
}

// ProfileBuilder samples arrival profiles from the configured source mix.
// It is immutable after construction and safe for concurrent Build calls
// with distinct rngs.
type ProfileBuilder struct {
	sources         sampling.WeightedSet[source]
	mediums         map[string]string
	defaultMedium   string
	defaultCampaign string
}

// NewProfileBuilder validates the referrer configuration and prepares the
// weighted source set. Mismatched source/header/weight list lengths fail
// here, at startup, never mid-session.
func NewProfileBuilder(cfg config.ReferrerConfig) (*ProfileBuilder, error) {
	if len(cfg.HeaderURLs) != len(cfg.Sources) {
		return nil, config.Errorf("referrers.header_urls", "have %d entries, want %d (one per source)",
			len(cfg.HeaderURLs), len(cfg.Sources))
	}
	if len(cfg.Weights) != len(cfg.Sources) {
		return nil, config.Errorf("referrers.weights", "have %d entries, want %d (one per source)",
			len(cfg.Weights), len(cfg.Sources))
	}
	entries := make([]sampling.Entry[source], len(cfg.Sources))
	for i, label := range cfg.Sources {
		entries[i] = sampling.Entry[source]{
			Label:  source{label: strings.TrimSpace(label), headerURL: strings.TrimSpace(cfg.HeaderURLs[i])},
			Weight: cfg.Weights[i],
		}
	}
	set, err := sampling.NewWeightedSet(entries)
	if err != nil {
		return nil, err
	}
	mediums := make(map[string]string, len(cfg.UTMMediums))
	for k, v := range cfg.UTMMediums {
		mediums[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &ProfileBuilder{
		sources:         set,
		mediums:         mediums,
		defaultMedium:   cfg.DefaultMedium,
		defaultCampaign: cfg.DefaultCampaign,
	}, nil
}

// Build draws one arrival profile. Sessions sampled as "direct" (or with a
// source that yields no usable slug) send no Referer and carry no UTM
// parameters; everything else gets a non-empty utm_source and utm_medium.
func (b *ProfileBuilder) Build(rng *rand.Rand) Profile {
	src := sampling.Sample(rng, b.sources)
	slug := SlugFromSource(src.label)
	if slug == "" || slug == "direct" {
		return Profile{Source: src.label, HeaderURL: NoReferrer}
	}
	medium, ok := b.mediums[slug]
	if !ok {
		medium = b.defaultMedium
	}
	headerURL := src.headerURL
	if headerURL == "" {
		headerURL = "https://" + strings.TrimPrefix(src.label, "www.")
	}
	return Profile{
		Source:      src.label,
		HeaderURL:   headerURL,
		UTMSource:   slug,
		UTMMedium:   medium,
		UTMCampaign: b.defaultCampaign,
	}
}

var nonWord = regexp.MustCompile(`\W+`)

// SlugFromSource reduces a source label or URL to its utm_source slug:
// "https://www.google.com/" becomes "google". "direct" maps to itself.
func SlugFromSource(src string) string {
	s := strings.ToLower(strings.TrimSpace(src))
	if s == "" {
		return ""
	}
	if s == "direct" {
		return "direct"
	}
	host := s
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			host = u.Host
		}
	}
	host = strings.TrimPrefix(host, "www.")
	host = strings.SplitN(host, "/", 2)[0]
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return nonWord.ReplaceAllString(host, "")
}
