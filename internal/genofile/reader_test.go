package genofile

import (
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/adna-downsample/internal/genotype"
)

// Small fixture in 23andMe raw data format.
const testFile = `# This data file generated by 23andMe
# rsid	chromosome	position	genotype
rs123	1	1000	AA
rs456	1	2000	GC
rs789	X	3000	TT
rs101	MT	1500	AG
rs202	2	2500	--
`

func TestExtractHeader(t *testing.T) {
	h, err := ExtractHeader(strings.NewReader(testFile))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"# This data file generated by 23andMe",
		"# rsid\tchromosome\tposition\tgenotype",
	}, h.Lines)
	assert.Equal(t, []string{"rsid", "chromosome", "position", "genotype"}, h.Columns)
}

func TestExtractHeader_NoDeclaration(t *testing.T) {
	h, err := ExtractHeader(strings.NewReader("# comment only\nrs1\t1\t10\tAA\n# late comment\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"# comment only"}, h.Lines)
	assert.Nil(t, h.Columns)
	assert.Equal(t, DefaultColumns, h.ColumnNames())
}

func TestExtractHeader_StopsAtData(t *testing.T) {
	h, err := ExtractHeader(strings.NewReader("# a\n# b\nrs1\t1\t10\tAA\n# c\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"# a", "# b"}, h.Lines)
}

func TestExtractHeader_SpaceSeparatedDeclaration(t *testing.T) {
	h, err := ExtractHeader(strings.NewReader("# rsid chromosome position genotype\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultColumns, h.Columns)
}

func TestRead(t *testing.T) {
	f, err := Read(strings.NewReader(testFile))
	require.NoError(t, err)

	require.Len(t, f.Loci, 5)
	assert.Len(t, f.Header.Lines, 2)
	assert.Equal(t, 3, f.Schema.Genotype)

	assert.Equal(t, genotype.Locus{RSID: "rs123", Chromosome: "1", Position: 1000, Genotype: "AA"}, f.Loci[0])
	assert.Equal(t, "X", f.Loci[2].Chromosome)
	assert.Equal(t, "MT", f.Loci[3].Chromosome)
	assert.Equal(t, genotype.Missing, f.Loci[4].Genotype)

	// Alleles are derived separately.
	assert.Empty(t, f.Loci[0].Ref)
}

func TestRead_SkipsBlankAndTrailingComments(t *testing.T) {
	input := "# header\nrs1\t1\t10\tAA\n\n# trailing note\nrs2\t1\t20\tAG\r\n"
	f, err := Read(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, f.Loci, 2)
	assert.Equal(t, "AG", f.Loci[1].Genotype)
	assert.Equal(t, []string{"# header"}, f.Header.Lines)
}

func TestRead_NoTrailingNewline(t *testing.T) {
	f, err := Read(strings.NewReader("rs1\t1\t10\tAA\nrs2\t1\t20\tCT"))
	require.NoError(t, err)
	require.Len(t, f.Loci, 2)
	assert.Equal(t, "CT", f.Loci[1].Genotype)
	assert.Empty(t, f.Header.Lines)
	assert.Equal(t, DefaultColumns, f.Schema.Columns)
}

func TestRead_HeaderOnly(t *testing.T) {
	f, err := Read(strings.NewReader("# rsid chromosome position genotype\n"))
	require.NoError(t, err)
	assert.Empty(t, f.Loci)
	assert.Equal(t, 3, f.Schema.Genotype)
}

func TestRead_MalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		line   int
		offset int64
		msg    string
	}{
		{
			name:   "too few fields",
			input:  "# h\nrs1\t1\t10\tAA\nrs2\t1\t20\n",
			line:   3,
			offset: 16,
			msg:    "expected 4 tab-separated fields, found 3",
		},
		{
			name:   "non-numeric position",
			input:  "rs1\t1\tabc\tAA\n",
			line:   1,
			offset: 0,
			msg:    "invalid position",
		},
		{
			name:   "negative position",
			input:  "rs1\t1\t-5\tAA\n",
			line:   1,
			offset: 0,
			msg:    "non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected ParseError, got %v", err)
			assert.Equal(t, tt.line, perr.Line)
			assert.Equal(t, tt.offset, perr.Offset)
			assert.Contains(t, perr.Message, tt.msg)
		})
	}
}

func TestRead_DeclarationWithoutGenotypeIsComment(t *testing.T) {
	f, err := Read(strings.NewReader("# rsid chromosome position call\nrs1\t1\t10\tAA\n"))
	require.NoError(t, err)

	assert.Nil(t, f.Header.Columns)
	assert.Equal(t, []string{"# rsid chromosome position call"}, f.Header.Lines)
	require.Len(t, f.Loci, 1)
	assert.Equal(t, "AA", f.Loci[0].Genotype)
}

func TestRead_UpperCaseDeclaration(t *testing.T) {
	f, err := Read(strings.NewReader("# RSID CHROMOSOME POSITION GENOTYPE\nrs1\t1\t10\tAA\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"RSID", "CHROMOSOME", "POSITION", "GENOTYPE"}, f.Header.Columns)
	assert.Equal(t, 3, f.Schema.Genotype)
	require.Len(t, f.Loci, 1)
	assert.Equal(t, genotype.Locus{RSID: "rs1", Chromosome: "1", Position: 10, Genotype: "AA"}, f.Loci[0])
}

func TestRead_LaterRSIDCommentKeepsDeclaration(t *testing.T) {
	input := "# rsid\tchromosome\tposition\tgenotype\n" +
		"# rsid values follow the dbSNP build 137 naming\n" +
		"rs1\t1\t10\tAG\n"
	f, err := Read(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, DefaultColumns, f.Header.Columns)
	assert.Len(t, f.Header.Lines, 2)
	require.Len(t, f.Loci, 1)
	assert.Equal(t, "AG", f.Loci[0].Genotype)
}

func TestRead_LastDeclarationWins(t *testing.T) {
	input := "# rsid chromosome position genotype\n" +
		"# rsid chromosome position genotype extra\n" +
		"rs1\t1\t10\tAG\tx\n"
	f, err := Read(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 5, f.Schema.Width())
	require.Len(t, f.Loci, 1)
	assert.Equal(t, "AG", f.Loci[0].Genotype)
}

func TestRead_OffsetAfterCRLFHeader(t *testing.T) {
	_, err := Read(strings.NewReader("# h\r\nrs1\t1\n"))

	var perr *ParseError
	require.True(t, errors.As(err, &perr), "expected ParseError, got %v", err)
	assert.Equal(t, 2, perr.Line)
	assert.Equal(t, int64(5), perr.Offset)
}

func TestRead_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(testFile))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	f, err := Read(&buf)
	require.NoError(t, err)
	assert.Len(t, f.Loci, 5)
	assert.Len(t, f.Header.Lines, 2)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genome.txt")
	require.NoError(t, os.WriteFile(path, []byte(testFile), 0644))

	f, err := Open(path)
	require.NoError(t, err)
	assert.Len(t, f.Loci, 5)
}

func TestOpen_FileNotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
