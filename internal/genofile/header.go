// Package genofile reads and writes tab-delimited single-sample genotype
// files (23andMe-style: rsid, chromosome, position, genotype).
package genofile

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// CommentPrefix marks header and comment lines.
const CommentPrefix = "#"

// DefaultColumns are used when no column declaration line is present.
var DefaultColumns = []string{"rsid", "chromosome", "position", "genotype"}

// Header is the leading comment block of a genotype file.
type Header struct {
	// Lines holds the comment lines verbatim, without the trailing newline.
	Lines []string
	// Columns holds the names declared by the last "# rsid chromosome
	// position genotype" line, or nil if the file has none.
	Columns []string
}

// ColumnNames returns the declared column names or DefaultColumns.
func (h Header) ColumnNames() []string {
	if h.Columns != nil {
		return h.Columns
	}
	return DefaultColumns
}

// ExtractHeader reads leading comment lines from r and stops at the first
// line that is not a comment.
func ExtractHeader(r io.Reader) (Header, error) {
	h, _, err := readHeader(bufio.NewReader(r))
	return h, err
}

// readHeader consumes the leading comment block of br and returns it with
// the first non-comment line, which is empty at EOF.
func readHeader(br *bufio.Reader) (Header, string, error) {
	var h Header
	for {
		line, err := br.ReadString('\n')
		if line != "" && !strings.HasPrefix(line, CommentPrefix) {
			return h, line, nil
		}
		if line != "" {
			h.add(strings.TrimSuffix(line, "\n"))
		}
		if err == io.EOF {
			return h, "", nil
		}
		if err != nil {
			return h, "", fmt.Errorf("read header: %w", err)
		}
	}
}

func (h *Header) add(line string) {
	h.Lines = append(h.Lines, line)
	if cols := columnDeclaration(line); cols != nil {
		h.Columns = cols
	}
}

// columnDeclaration returns the column names if line declares them: the
// first name is rsid and one of the names identifies the genotype column.
// Names are matched case-insensitively.
func columnDeclaration(line string) []string {
	tokens := strings.Fields(strings.TrimLeft(line, CommentPrefix))
	if len(tokens) == 0 || !strings.EqualFold(tokens[0], ColRSID) {
		return nil
	}
	for _, t := range tokens[1:] {
		if strings.EqualFold(t, ColGenotype) || strings.EqualFold(t, ColGenotypePositional) {
			return tokens
		}
	}
	return nil
}
