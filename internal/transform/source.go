// Package transform implements the stochastic genotype transforms:
// percentage downsampling and pseudo-haploidization.
//
// All randomness comes from an explicitly passed Source so that a run is
// exactly reproducible from its seed and the input order.
package transform

import (
	"math/rand"
	"time"
)

// Source is the random source consumed by the transforms. *rand.Rand
// satisfies it.
type Source interface {
	// Intn returns a uniform int in [0, n).
	Intn(n int) int
}

// NewSource returns a seeded source. A zero seed is replaced by one derived
// from the wall clock; the seed actually used is returned.
func NewSource(seed int64) (*rand.Rand, int64) {
	if seed == 0 {
		seed = time.Now().UTC().UnixNano()
	}
	return rand.New(rand.NewSource(seed)), seed
}
