// Package rng provides the random-number capability threaded through the
// game engine. Every session owns its own Source so concurrent games never
// share generator state, and tests can pin outcomes with a seed or a script.
package rng

import (
	"math/rand/v2"
	"time"
)

// Source is the subset of *rand.Rand the engine draws from.
type Source interface {
	// IntN returns a uniform int in [0, n). Panics if n <= 0.
	IntN(n int) int
	// Float64 returns a uniform float in [0.0, 1.0).
	Float64() float64
}

// NewSeeded returns a deterministic PCG-backed source.
func NewSeeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// New returns a source seeded from the wall clock.
func New() *rand.Rand {
	return NewSeeded(uint64(time.Now().UnixNano()))
}

// Chance reports whether a draw in [0,1) falls below p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}

// Between returns a uniform int in [lo, hi] inclusive.
func Between(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.IntN(hi-lo+1)
}

// Pick returns k distinct indices from [0, n) using a partial Fisher-Yates
// shuffle. k is clamped to n.
func Pick(src Source, n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + src.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}
