package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStreamsAreReproducible(t *testing.T) {
	a := New(42)
	b := New(42)

	for seq := uint64(1); seq <= 5; seq++ {
		ra := a.Session(seq)
		rb := b.Session(seq)
		for i := 0; i < 100; i++ {
			require.Equal(t, ra.Int63(), rb.Int63(), "seq %d draw %d diverged", seq, i)
		}
	}
}

func TestNeighbouringSequencesDiverge(t *testing.T) {
	src := New(42)
	r1 := src.Session(1)
	r2 := src.Session(2)

	same := 0
	for i := 0; i < 100; i++ {
		if r1.Int63() == r2.Int63() {
			same++
		}
	}
	assert.Zero(t, same, "adjacent sub-streams should not be correlated")
}

func TestDifferentSeedsDiverge(t *testing.T) {
	r1 := New(1).Session(1)
	r2 := New(2).Session(1)
	assert.NotEqual(t, r1.Int63(), r2.Int63())
}

func TestZeroSeedPicksOne(t *testing.T) {
	src := New(0)
	assert.NotZero(t, src.Seed())
	assert.NotNil(t, src.Base())
}

func TestSplitmix64KnownValues(t *testing.T) {
	// First outputs of the reference SplitMix64 sequence seeded with 0.
	assert.Equal(t, uint64(0xe220a8397b1dcdaf), splitmix64(0))
}
