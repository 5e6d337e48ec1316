package genotype

import (
	"fmt"
	"io"
)

// Stats summarises missingness of a dataset.
type Stats struct {
	Total          int
	Missing        int
	MissingnessPct float64
}

// ComputeStats counts total and missing loci. MissingnessPct is 0 for an
// empty dataset.
func ComputeStats(d Dataset) Stats {
	s := Stats{Total: len(d)}
	for i := range d {
		if d[i].IsMissing() {
			s.Missing++
		}
	}
	if s.Total > 0 {
		s.MissingnessPct = 100 * float64(s.Missing) / float64(s.Total)
	}
	return s
}

// Remaining returns the number of called (non-missing) loci.
func (s Stats) Remaining() int {
	return s.Total - s.Missing
}

// WriteTo prints the three-line stats block used by the CLI and run logs.
func (s Stats) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w, "Total number of loci: %d\nNumber of missing loci: %d\nMissingness level: %.2f%%\n",
		s.Total, s.Missing, s.MissingnessPct)
	return int64(n), err
}
