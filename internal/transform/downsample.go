package transform

import (
	"errors"
	"fmt"
	"math"

	"github.com/inodb/adna-downsample/internal/genotype"
)

// ErrInvalidPercentage is returned for a downsampling percentage outside
// [0, 100].
var ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")

// ValidatePercentage checks that pct lies in [0, 100].
func ValidatePercentage(pct float64) error {
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return fmt.Errorf("%w: got %v", ErrInvalidPercentage, pct)
	}
	return nil
}

// SampleSize returns the number of loci selected when downsampling n loci by
// pct percent, floor(n*pct/100). Multiplying before dividing keeps the
// result exact for whole-number percentages.
func SampleSize(n int, pct float64) int {
	return int(math.Floor(float64(n) * pct / 100))
}

// Downsample returns a copy of d in which floor(len(d)*pct/100) loci, drawn
// uniformly without replacement, are set to the missing sentinel.
//
// Selection ignores whether a locus is already missing, so the added
// missingness is lower than pct when the input already has missing loci.
func Downsample(d genotype.Dataset, pct float64, src Source) (genotype.Dataset, error) {
	if err := ValidatePercentage(pct); err != nil {
		return nil, err
	}

	out := d.Clone()
	for _, i := range SampleIndices(len(out), SampleSize(len(out), pct), src) {
		out[i].SetMissing()
	}
	return out, nil
}

// SampleIndices draws k distinct indices from [0, n) with a partial
// Fisher-Yates shuffle. Every k-subset is equally likely for a uniform src.
func SampleIndices(n, k int, src Source) []int {
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
		j := i + src.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}
