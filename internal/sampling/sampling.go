// Package sampling implements weighted random selection over labelled sets.
package sampling

import (
	"math/rand"

	"github.com/xkilldash9x/trafficsim-cli/internal/config"
)

// Entry pairs a label with its relative weight. Weights need not sum to
// anything in particular; they are normalized at draw time.
type Entry[T any] struct {
	Label  T
	Weight float64
}

// WeightedSet is an immutable, validated collection of weighted labels.
// Construct via NewWeightedSet; a zero WeightedSet must not be sampled.
type WeightedSet[T any] struct {
	entries []Entry[T]
	total   float64
}

// NewWeightedSet validates the entries and freezes them into a set.
// It fails fast with a ConfigurationError when the set is empty, any
// weight is negative, or no weight is positive, so sampling itself can
// never fail mid-session.
func NewWeightedSet[T any](entries []Entry[T]) (WeightedSet[T], error) {
	if len(entries) == 0 {
		return WeightedSet[T]{}, config.Errorf("weighted set", "must have at least one entry")
	}
	total := 0.0
	for i, e := range entries {
		if e.Weight < 0 {
			return WeightedSet[T]{}, config.Errorf("weighted set", "entry %d has negative weight %v", i, e.Weight)
		}
		total += e.Weight
	}
	if total <= 0 {
		return WeightedSet[T]{}, config.Errorf("weighted set", "all weights are zero")
	}
	frozen := make([]Entry[T], len(entries))
	copy(frozen, entries)
	return WeightedSet[T]{entries: frozen, total: total}, nil
}

// Len returns the number of entries.
func (s WeightedSet[T]) Len() int { return len(s.entries) }

// Sample draws one label from the set in proportion to its weight, using
// the caller's random stream: a uniform value in [0, total) is walked
// along the cumulative weights and the first entry whose cumulative weight
// exceeds the draw wins. Deterministic given a seeded rng.
func Sample[T any](rng *rand.Rand, s WeightedSet[T]) T {
	pick := rng.Float64() * s.total
	acc := 0.0
	for _, e := range s.entries {
		acc += e.Weight
		if pick < acc {
			return e.Label
		}
	}
	// Float accumulation can leave pick a hair above the final cumulative
	// weight; the last positively weighted entry takes the draw.
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Weight > 0 {
			return s.entries[i].Label
		}
	}
	return s.entries[len(s.entries)-1].Label
}
