// Package behavior produces the randomized timing and scroll decisions
// that make a synthetic session read as human: settle waits after page
// lands, pauses between navigations, and bounded scroll trajectories.
package behavior

import (
	"math/rand"
	"time"

	"github.com/xkilldash9x/trafficsim-cli/internal/config"
)

// ScrollPlan describes one scroll trajectory: the automation layer is
// expected to reach DepthFraction of the page height in Steps increments.
type ScrollPlan struct {
	DepthFraction float64
	Steps         int
}

// Model draws behavior values for a single session. Each Model owns its
// session's random stream and must not be shared across sessions.
type Model struct {
	cfg config.BehaviorConfig
	rng *rand.Rand
}

// NewModel binds the configured ranges to a session stream.
func NewModel(cfg config.BehaviorConfig, rng *rand.Rand) *Model {
	return &Model{cfg: cfg, rng: rng}
}

// DecideScroll rolls the scroll probability. When it hits, the returned
// plan carries a depth drawn uniformly from the configured depth range and
// an integer step count from the step range.
func (m *Model) DecideScroll() (ScrollPlan, bool) {
	if m.rng.Float64() >= m.cfg.ScrollProbability {
		return ScrollPlan{}, false
	}
	return ScrollPlan{
		DepthFraction: uniformFloat(m.rng, m.cfg.ScrollDepthMin, m.cfg.ScrollDepthMax),
		Steps:         uniformInt(m.rng, m.cfg.ScrollStepsMin, m.cfg.ScrollStepsMax),
	}, true
}

// SettleWait is the pause after each page land.
func (m *Model) SettleWait() time.Duration {
	return uniformDuration(m.rng, m.cfg.SettleMin, m.cfg.SettleMax)
}

// NavPauseWait is the pause between navigation clicks.
func (m *Model) NavPauseWait() time.Duration {
	return uniformDuration(m.rng, m.cfg.NavPauseMin, m.cfg.NavPauseMax)
}

// ScrollStepPause is the pause between incremental scroll actions.
func (m *Model) ScrollStepPause() time.Duration {
	return uniformDuration(m.rng, m.cfg.ScrollStepPauseMin, m.cfg.ScrollStepPauseMax)
}

// PDPViews is how many product detail pages this session opens. Always at
// least one.
func (m *Model) PDPViews() int {
	return uniformInt(m.rng, m.cfg.PDPViewsMin, m.cfg.PDPViewsMax)
}

func uniformFloat(rng *rand.Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + rng.Float64()*(max-min)
}

func uniformInt(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}

func uniformDuration(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)+1))
}
