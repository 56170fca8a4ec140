package hotspot

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/trafficsim-cli/internal/config"
)

func TestExtraClicksExtremes(t *testing.T) {
	p := NewPolicy([]config.HotspotConfig{
		{Name: "sale", ExtraClickProbability: 1},
		{Name: "new", ExtraClickProbability: 0},
	})

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		assert.Equal(t, []string{"sale"}, p.ExtraClicks(rng))
	}
}

func TestExtraClicksFollowConfigOrder(t *testing.T) {
	p := NewPolicy([]config.HotspotConfig{
		{Name: "b", ExtraClickProbability: 1},
		{Name: "a", ExtraClickProbability: 1},
		{Name: "c", ExtraClickProbability: 1},
	})

	clicks := p.ExtraClicks(rand.New(rand.NewSource(1)))
	assert.Equal(t, []string{"b", "a", "c"}, clicks)
}

func TestExtraClicksEmptyPolicy(t *testing.T) {
	p := NewPolicy(nil)
	assert.Nil(t, p.ExtraClicks(rand.New(rand.NewSource(1))))
}

func TestExtraClicksApproximateRate(t *testing.T) {
	p := NewPolicy([]config.HotspotConfig{{Name: "sale", ExtraClickProbability: 0.25}})

	rng := rand.New(rand.NewSource(42))
	hits := 0
	const trials = 20000
	for i := 0; i < trials; i++ {
		if len(p.ExtraClicks(rng)) > 0 {
			hits++
		}
	}
	assert.InDelta(t, 0.25, float64(hits)/trials, 0.02)
}
