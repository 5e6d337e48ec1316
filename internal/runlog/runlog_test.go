package runlog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/adna-downsample/internal/genotype"
)

func testEntry() Entry {
	return Entry{
		Time:        time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC),
		Command:     "adna-downsample -i genome.txt -p 30",
		Description: "Downsampled to introduce 30% missingness",
		Initial:     genotype.Stats{Total: 5, Missing: 1, MissingnessPct: 20},
		Processed:   genotype.Stats{Total: 5, Missing: 3, MissingnessPct: 60},
	}
}

func TestFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Format(&buf, testEntry()))

	want := `# Log generated on 2024-03-01 14:05:09

## Command used
adna-downsample -i genome.txt -p 30

## Operation details
Downsampled to introduce 30% missingness

## Original file statistics
Total number of loci: 5
Number of missing loci: 1
Missingness level: 20.00%

## Processed file statistics
Total number of loci: 5
Number of missing loci: 3
Missingness level: 60.00%
`
	assert.Equal(t, want, buf.String())
}

func TestPathFor(t *testing.T) {
	assert.Equal(t, "out/genome_downsampled_30pct.log", PathFor("out/genome_downsampled_30pct.txt"))
	assert.Equal(t, "genome.log", PathFor("genome"))
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, Write(path, testEntry()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Operation details\nDownsampled to introduce 30% missingness\n")
}

func TestWrite_UnwritablePath(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "missing", "run.log"), testEntry())
	assert.Error(t, err)
}
