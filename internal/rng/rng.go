// Package rng provides the simulator's seed-reproducible randomness.
//
// Concurrency model: instead of funnelling every draw through one locked
// stream, each session receives an independently seeded sub-stream derived
// from the base seed and the session's sequence number. Sessions draw
// without synchronization, and any single session can be replayed from
// (seed, seq) alone. The base stream belongs to the scheduler and is only
// used for arrival jitter.
package rng

import (
	"math/rand"
	"time"
)

// Source owns the base seed and mints per-session sub-streams.
type Source struct {
	seed int64
	base *rand.Rand
}

// New creates a Source. A zero seed picks one from the wall clock, which
// trades reproducibility for variety; the chosen seed is retrievable via
// Seed for logging.
func New(seed int64) *Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{
		seed: seed,
		base: rand.New(rand.NewSource(seed)),
	}
}

// Seed returns the effective base seed.
func (s *Source) Seed() int64 { return s.seed }

// Base returns the scheduler's stream. Not safe for concurrent use; only
// the scheduling goroutine may draw from it.
func (s *Source) Base() *rand.Rand { return s.base }

// Session derives the sub-stream for the given session sequence number.
// The derivation is a splitmix64 mix of seed and seq, so neighbouring
// sequence numbers yield uncorrelated streams.
func (s *Source) Session(seq uint64) *rand.Rand {
	mixed := splitmix64(uint64(s.seed) ^ splitmix64(seq))
	return rand.New(rand.NewSource(int64(mixed)))
}

// splitmix64 is the finalizer from the SplitMix64 generator, commonly used
// to derive independent seeds from a counter.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
