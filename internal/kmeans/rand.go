package kmeans

import "math/rand/v2"

// Rand is the source of randomness used for random-pick initialisation and
// empty-cluster reinitialisation. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	// IntN returns a uniform integer in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// NewRand returns a PCG-backed source seeded with seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
