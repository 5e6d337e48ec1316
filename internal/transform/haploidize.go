package transform

import (
	"github.com/inodb/adna-downsample/internal/genotype"
)

// Allele choices drawn per locus.
const (
	chooseRef = 0
	chooseAlt = 1
)

// Haploidize returns a pseudo-haploid copy of d. Every called locus draws
// one fair coin from src, in locus order, and becomes homozygous for the
// chosen allele. Missing loci are left alone and draw nothing. A locus whose
// chosen allele is absent becomes missing.
func Haploidize(d genotype.Dataset, src Source) genotype.Dataset {
	out := d.Clone()
	for i := range out {
		if out[i].IsMissing() {
			continue
		}
		collapse(&out[i], src.Intn(2))
	}
	return out
}

// collapse replaces the genotype with the chosen allele doubled and
// recomputes the derived alleles.
func collapse(l *genotype.Locus, choice int) {
	ref, alt := genotype.Alleles(l.Genotype)

	allele := ref
	if choice == chooseAlt {
		allele = alt
	}

	if allele == "" {
		l.SetMissing()
		return
	}
	l.Genotype = allele + allele
	l.Decompose()
}
