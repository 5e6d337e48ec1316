package pipeline

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/adna-downsample/internal/genofile"
	"github.com/inodb/adna-downsample/internal/genotype"
	"github.com/inodb/adna-downsample/internal/transform"
)

const testFile = `# This is a header
# rsid	chromosome	position	genotype
rs123	1	1000	AA
rs456	1	2000	GC
rs789	1	3000	TT
rs101	2	1500	AG
rs202	2	2500	--
`

// fixedSource replays a fixed sequence of draws.
type fixedSource struct {
	values []int
	next   int
}

func (s *fixedSource) Intn(n int) int {
	v := s.values[s.next%len(s.values)] % n
	s.next++
	return v
}

func pct(v float64) *float64 { return &v }

func readTestFile(t *testing.T) *genofile.File {
	t.Helper()
	f, err := genofile.Read(strings.NewReader(testFile))
	require.NoError(t, err)
	return f
}

func TestRun_DownsampleScenario(t *testing.T) {
	f := readTestFile(t)
	p := New(Options{Percentage: pct(40), Seed: 1})
	p.SetSource(&fixedSource{values: []int{0, 1}})

	res, err := p.Run(f)
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Seed)
	assert.Equal(t, genotype.Stats{Total: 5, Missing: 1, MissingnessPct: 20}, res.Initial)
	require.Len(t, res.Steps, 1)

	s := res.Steps[0]
	assert.Equal(t, OpDownsample, s.Operation)
	assert.Equal(t, 3, s.Stats.Missing)
	assert.InDelta(t, 60.0, s.Stats.MissingnessPct, 1e-9)
	assert.Equal(t, "This file has been downsampled to introduce 40% missingness", s.Note)

	// Parsed loci are decorated and left untransformed.
	assert.Equal(t, "G", f.Loci[1].Ref)
	assert.Equal(t, "C", f.Loci[1].Alt)
	assert.Equal(t, "AA", f.Loci[0].Genotype)
}

func TestRun_DownsampleThenHaploidize(t *testing.T) {
	f := readTestFile(t)
	p := New(Options{Percentage: pct(40), PseudoHaploid: true})
	// Sampling draws 0,1 -> indices {0,2}; haploid draws for rs456 and rs101.
	p.SetSource(&fixedSource{values: []int{0, 1, 1, 0}})

	res, err := p.Run(f)
	require.NoError(t, err)
	require.Len(t, res.Steps, 2)

	hap := res.Steps[1]
	assert.Equal(t, OpPseudoHaploid, hap.Operation)
	got := make([]string, len(hap.Loci))
	for i, l := range hap.Loci {
		got[i] = l.Genotype
	}
	assert.Equal(t, []string{"--", "CC", "--", "AA", "--"}, got)
	assert.Equal(t, "This file has been pseudo-haploidized after downsampling to introduce 40% missingness", hap.Note)

	// The downsampled step is not altered by haploidization.
	assert.Equal(t, "GC", res.Steps[0].Loci[1].Genotype)
}

func TestRun_HaploidOnly(t *testing.T) {
	f := readTestFile(t)
	p := New(Options{PseudoHaploid: true, Workers: 4, Seed: 7})

	res, err := p.Run(f)
	require.NoError(t, err)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "This file has been pseudo-haploidized", res.Steps[0].Note)

	for _, l := range res.Steps[0].Loci {
		if !l.IsMissing() {
			assert.Equal(t, l.Genotype[0], l.Genotype[1], l.RSID)
		}
	}
	assert.Equal(t, genotype.Missing, res.Steps[0].Loci[4].Genotype)
}

func TestRun_WorkersMatchSequential(t *testing.T) {
	seq := New(Options{PseudoHaploid: true})
	seq.SetSource(rand.New(rand.NewSource(3)))
	par := New(Options{PseudoHaploid: true, Workers: 3})
	par.SetSource(rand.New(rand.NewSource(3)))

	a, err := seq.Run(readTestFile(t))
	require.NoError(t, err)
	b, err := par.Run(readTestFile(t))
	require.NoError(t, err)
	assert.Equal(t, a.Steps[0].Loci, b.Steps[0].Loci)
}

func TestRun_SameSeedSameResult(t *testing.T) {
	opts := Options{Percentage: pct(40), PseudoHaploid: true, Seed: 1234}
	a, err := New(opts).Run(readTestFile(t))
	require.NoError(t, err)
	b, err := New(opts).Run(readTestFile(t))
	require.NoError(t, err)
	assert.Equal(t, a.Steps, b.Steps)
}

func TestRun_InvalidPercentage(t *testing.T) {
	f := readTestFile(t)
	_, err := New(Options{Percentage: pct(101)}).Run(f)
	require.ErrorIs(t, err, transform.ErrInvalidPercentage)
	assert.Empty(t, f.Loci[0].Ref, "rejected before any processing")
}

func TestRun_NoOperations(t *testing.T) {
	res, err := New(Options{}).Run(readTestFile(t))
	require.NoError(t, err)
	assert.Empty(t, res.Steps)
	assert.Equal(t, 5, res.Initial.Total)
}

func TestWriteOutputs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "genome.txt")
	require.NoError(t, os.WriteFile(input, []byte(testFile), 0644))

	f, err := genofile.Open(input)
	require.NoError(t, err)

	p := New(Options{Percentage: pct(40), PseudoHaploid: true})
	p.SetSource(&fixedSource{values: []int{0, 1, 1, 0}})
	res, err := p.Run(f)
	require.NoError(t, err)

	outputs, err := p.WriteOutputs(f, res, input, "", "adna-downsample -i genome.txt -p 40 -a")
	require.NoError(t, err)
	require.Len(t, outputs, 2)

	assert.Equal(t, filepath.Join(dir, "genome_downsampled_40pct.txt"), outputs[0].Path)
	assert.Equal(t, filepath.Join(dir, "genome_downsampled_40pct_pseudohaploid.txt"), outputs[1].Path)
	assert.Equal(t, filepath.Join(dir, "genome_downsampled_40pct_pseudohaploid.log"), outputs[1].LogPath)

	data, err := os.ReadFile(outputs[0].Path)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	assert.Equal(t, "# This is a header", lines[0])
	assert.Equal(t, "# This file has been downsampled to introduce 40% missingness", lines[1])
	assert.Equal(t, "# rsid\tchromosome\tposition\tgenotype", lines[2])
	assert.Equal(t, "rs123\t1\t1000\t--", lines[3])
	assert.Equal(t, "rs456\t1\t2000\tGC", lines[4])

	logData, err := os.ReadFile(outputs[1].LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "Pseudo-haploidized after downsampling to introduce 40% missingness")
	assert.Contains(t, string(logData), "## Command used\nadna-downsample -i genome.txt -p 40 -a\n")

	// Outputs are valid inputs.
	again, err := genofile.Open(outputs[1].Path)
	require.NoError(t, err)
	assert.Len(t, again.Loci, 5)
	assert.Len(t, again.Header.Lines, 3)
}

func TestWriteOutputs_LogFailureKeepsData(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "result.txt")
	// A directory where the log file should go makes the log unwritable.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "result.log"), 0755))

	f := readTestFile(t)
	p := New(Options{Percentage: pct(20), Seed: 5})
	res, err := p.Run(f)
	require.NoError(t, err)

	outputs, err := p.WriteOutputs(f, res, "genome.txt", out, "cmd")
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Error(t, outputs[0].LogErr)

	_, err = os.Stat(out)
	assert.NoError(t, err)
}

func TestWriteOutputs_SkipRunLog(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "result.txt")

	f := readTestFile(t)
	p := New(Options{Percentage: pct(20), Seed: 5, SkipRunLog: true})
	res, err := p.Run(f)
	require.NoError(t, err)

	outputs, err := p.WriteOutputs(f, res, "genome.txt", out, "cmd")
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Empty(t, outputs[0].LogPath)

	_, err = os.Stat(filepath.Join(dir, "result.log"))
	assert.True(t, os.IsNotExist(err))
}
