// Package hotspot decides which configured navigation targets receive an
// extra exploratory click beyond the mandatory primary navigation click.
package hotspot

import (
	"math/rand"

	"github.com/xkilldash9x/trafficsim-cli/internal/config"
)

// Policy evaluates the configured hotspots. It is immutable and safe for
// concurrent use with distinct session rngs.
type Policy struct {
	hotspots []config.HotspotConfig
}

// NewPolicy freezes the hotspot list. Probabilities are validated by
// config.Validate before any session starts.
func NewPolicy(hotspots []config.HotspotConfig) *Policy {
	frozen := make([]config.HotspotConfig, len(hotspots))
	copy(frozen, hotspots)
	return &Policy{hotspots: frozen}
}

// ExtraClicks samples one independent Bernoulli draw per hotspot and
// returns the names that hit. Evaluation follows configuration order, so
// the output sequence is deterministic for a given stream.
func (p *Policy) ExtraClicks(rng *rand.Rand) []string {
	var clicks []string
	for _, h := range p.hotspots {
		if rng.Float64() < h.ExtraClickProbability {
			clicks = append(clicks, h.Name)
		}
	}
	return clicks
}
