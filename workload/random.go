package workload

import (
	mrand "math/rand"
)

// DefaultSeed seeds the random source when no seed is given, so runs
// within and across processes draw the same copy sizes and taps.
const DefaultSeed int64 = 1

// Source hands out independent, deterministic random generators. Blocks
// run on their own goroutines and *mrand.Rand is not safe for concurrent
// use, so every block gets its own generator derived from the master.
type Source struct {
	master *mrand.Rand
}

// NewSource returns a Source seeded with seed, or DefaultSeed when seed
// is zero.
func NewSource(seed int64) *Source {
	if seed == 0 {
		seed = DefaultSeed
	}

	return &Source{master: mrand.New(mrand.NewSource(seed))}
}

// Rand returns a new generator seeded from the master sequence.
func (s *Source) Rand() *mrand.Rand {
	return mrand.New(mrand.NewSource(s.master.Int63()))
}

// Taps draws n filter taps uniformly from [0, 1).
func (s *Source) Taps(n int) []float32 {
	taps := make([]float32, n)
	for i := range taps {
		taps[i] = s.master.Float32()
	}

	return taps
}
