// Package genotype provides the in-memory locus model for single-sample
// genotype files and the allele decomposition rules shared by all transforms.
package genotype

// Missing is the genotype sentinel for a locus without a call.
const Missing = "--"

// missingAllele marks an unreadable allele inside a genotype string.
const missingAllele = '-'

// Locus is one row of a genotype file.
type Locus struct {
	RSID       string // opaque identifier, e.g. rs123
	Chromosome string // chromosome label (1-22, X, Y, MT, ...)
	Position   int64  // genomic position
	Genotype   string // two-character call or Missing

	// Ref and Alt are derived from Genotype. An empty string means the
	// allele is absent. They are never written out.
	Ref string
	Alt string
}

// IsMissing returns true if the locus carries the missing sentinel.
func (l *Locus) IsMissing() bool {
	return l.Genotype == Missing
}

// Decompose recomputes Ref and Alt from the current Genotype.
func (l *Locus) Decompose() {
	l.Ref, l.Alt = Alleles(l.Genotype)
}

// SetMissing marks the locus as missing and clears its alleles.
func (l *Locus) SetMissing() {
	l.Genotype = Missing
	l.Ref = ""
	l.Alt = ""
}

// Alleles splits a genotype string into its positional ref and alt alleles.
//
// The missing sentinel yields two absent alleles. Otherwise ref is the first
// character and alt the second; either is absent when the character is a
// dash or does not exist, so "A-" yields ("A", "") and "-C" yields ("", "C").
func Alleles(genotype string) (ref, alt string) {
	if genotype == Missing {
		return "", ""
	}
	if len(genotype) > 0 && genotype[0] != missingAllele {
		ref = genotype[:1]
	}
	if len(genotype) > 1 && genotype[1] != missingAllele {
		alt = genotype[1:2]
	}
	return ref, alt
}

// Dataset is an ordered sequence of loci. Row order is significant and is
// preserved by every transform.
type Dataset []Locus

// Decompose recomputes the derived alleles of every locus in place.
func (d Dataset) Decompose() {
	for i := range d {
		d[i].Decompose()
	}
}

// Clone returns an independent copy of the dataset.
func (d Dataset) Clone() Dataset {
	if d == nil {
		return nil
	}
	out := make(Dataset, len(d))
	copy(out, d)
	return out
}

// Head returns at most n leading loci, for debug output.
func (d Dataset) Head(n int) Dataset {
	if n > len(d) {
		n = len(d)
	}
	return d[:n]
}
