package genofile

import (
	"errors"
	"fmt"
	"strings"
)

// Column names recognised during schema resolution.
const (
	ColRSID       = "rsid"
	ColChromosome = "chromosome"
	ColPosition   = "position"
	ColGenotype   = "genotype"

	// ColGenotypePositional is the name the fourth column receives when a
	// file is read without column names.
	ColGenotypePositional = "column_4"
)

var (
	// ErrMissingGenotypeColumn is returned when no genotype column can be
	// identified in the column declaration.
	ErrMissingGenotypeColumn = errors.New("genotype column not found")

	// ErrBadColumns is returned when the declared columns cannot be mapped
	// onto the four locus fields.
	ErrBadColumns = errors.New("invalid column declaration")
)

// Schema maps the locus fields onto column indices of a data line.
type Schema struct {
	Columns    []string
	RSID       int
	Chromosome int
	Position   int
	Genotype   int
}

// ResolveSchema finds the field indices for the given column names. The
// genotype column must be named "genotype" or "column_4"; the other fields
// fall back to their conventional positions when not named. Names are
// matched case-insensitively.
func ResolveSchema(columns []string) (Schema, error) {
	if columns == nil {
		columns = DefaultColumns
	}

	s := Schema{
		Columns:    columns,
		RSID:       indexOr(columns, ColRSID, 0),
		Chromosome: indexOr(columns, ColChromosome, 1),
		Position:   indexOr(columns, ColPosition, 2),
		Genotype:   indexOr(columns, ColGenotype, -1),
	}
	if s.Genotype == -1 {
		s.Genotype = indexOr(columns, ColGenotypePositional, -1)
	}
	if s.Genotype == -1 {
		return Schema{}, fmt.Errorf("%w: columns %v", ErrMissingGenotypeColumn, columns)
	}

	seen := make(map[int]bool, 4)
	for _, idx := range []int{s.RSID, s.Chromosome, s.Position, s.Genotype} {
		if idx >= len(columns) || seen[idx] {
			return Schema{}, fmt.Errorf("%w: columns %v", ErrBadColumns, columns)
		}
		seen[idx] = true
	}

	return s, nil
}

// Width returns the number of fields expected on every data line.
func (s Schema) Width() int {
	return len(s.Columns)
}

func indexOr(columns []string, name string, fallback int) int {
	for i, c := range columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return fallback
}
