// Package sweep runs the pipeline over a grid of downsampling percentages,
// in both diploid and pseudo-haploid form, and tabulates the missingness
// actually reached.
package sweep

import (
	"errors"
	"fmt"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/inodb/adna-downsample/internal/genofile"
	"github.com/inodb/adna-downsample/internal/genotype"
	"github.com/inodb/adna-downsample/internal/pipeline"
	"github.com/inodb/adna-downsample/internal/transform"
)

// ErrDuplicatePercentage is returned when a percentage is listed twice.
var ErrDuplicatePercentage = errors.New("duplicate sweep percentage")

// DefaultPercentages is the missingness grid used when none is given.
var DefaultPercentages = []float64{1, 2, 5, 10, 20, 30, 40, 50, 60, 70, 80, 90}

// Config controls a sweep.
type Config struct {
	Percentages []float64
	Replicates  int   // runs per percentage, at least 1
	Seed        int64 // base seed (0 = from clock); replicate i of percentage j uses Seed + j*Replicates + i
	Workers     int
}

// Replicate is a single downsample + pseudo-haploidize run.
type Replicate struct {
	Percentage    float64
	Index         int
	Seed          int64
	Diploid       genotype.Stats
	PseudoHaploid genotype.Stats

	// Steps holds the transformed datasets. It is only set while the
	// replicate is passed to a ReplicateHandler and is nil in Result.
	Steps []pipeline.Step
}

// ReplicateHandler receives every replicate as soon as it has run, together
// with the statistics of the untransformed input.
type ReplicateHandler func(rep Replicate, initial genotype.Stats) error

// Row summarises all replicates of one percentage.
type Row struct {
	Percentage                  float64 `csv:"requested_missingness_pct"`
	Replicates                  int     `csv:"replicates"`
	TotalLoci                   int     `csv:"total_loci"`
	DiploidMissingLoci          float64 `csv:"diploid_missing_loci"`
	DiploidRemainingLoci        float64 `csv:"diploid_remaining_loci"`
	DiploidMissingnessPct       float64 `csv:"diploid_missingness_pct"`
	DiploidMissingnessSD        float64 `csv:"diploid_missingness_sd"`
	PseudoHaploidMissingLoci    float64 `csv:"pseudohaploid_missing_loci"`
	PseudoHaploidRemainingLoci  float64 `csv:"pseudohaploid_remaining_loci"`
	PseudoHaploidMissingnessPct float64 `csv:"pseudohaploid_missingness_pct"`
	PseudoHaploidMissingnessSD  float64 `csv:"pseudohaploid_missingness_sd"`
}

// Result holds every replicate and the per-percentage summary rows.
type Result struct {
	Initial    genotype.Stats
	Replicates []Replicate
	Rows       []Row
}

// Sweeper runs sweeps over a parsed genotype file.
type Sweeper struct {
	cfg     Config
	logger  *zap.Logger
	handler ReplicateHandler
}

// New creates a sweeper, filling in defaults for unset fields.
func New(cfg Config) *Sweeper {
	if len(cfg.Percentages) == 0 {
		cfg.Percentages = DefaultPercentages
	}
	if cfg.Replicates < 1 {
		cfg.Replicates = 1
	}
	if cfg.Seed == 0 {
		_, cfg.Seed = transform.NewSource(0)
	}
	return &Sweeper{cfg: cfg, logger: zap.NewNop()}
}

// SetLogger sets the logger for progress messages.
func (s *Sweeper) SetLogger(l *zap.Logger) {
	s.logger = l
}

// SetReplicateHandler registers fn to receive each replicate's datasets.
// Without a handler the datasets are dropped after their statistics are
// taken.
func (s *Sweeper) SetReplicateHandler(fn ReplicateHandler) {
	s.handler = fn
}

// Config returns the configuration in effect.
func (s *Sweeper) Config() Config {
	return s.cfg
}

// Run executes the sweep. All percentages are validated before any run.
func (s *Sweeper) Run(f *genofile.File) (*Result, error) {
	seen := make(map[float64]bool, len(s.cfg.Percentages))
	for _, pct := range s.cfg.Percentages {
		if err := transform.ValidatePercentage(pct); err != nil {
			return nil, err
		}
		if seen[pct] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePercentage, pipeline.FormatPercentage(pct))
		}
		seen[pct] = true
	}

	res := &Result{}
	for j, pct := range s.cfg.Percentages {
		reps := make([]Replicate, 0, s.cfg.Replicates)
		for i := 0; i < s.cfg.Replicates; i++ {
			rep, initial, err := s.runOne(f, pct, i, s.cfg.Seed+int64(j*s.cfg.Replicates+i))
			if err != nil {
				return nil, fmt.Errorf("sweep %s%%: %w", pipeline.FormatPercentage(pct), err)
			}
			res.Initial = initial
			if s.handler != nil {
				if err := s.handler(rep, initial); err != nil {
					return nil, err
				}
			}
			rep.Steps = nil
			reps = append(reps, rep)
		}

		row, err := summarize(pct, reps)
		if err != nil {
			return nil, err
		}
		s.logger.Info("sweep percentage done",
			zap.Float64("percentage", pct),
			zap.Float64("diploid_missingness_pct", row.DiploidMissingnessPct),
			zap.Float64("pseudohaploid_missingness_pct", row.PseudoHaploidMissingnessPct))

		res.Replicates = append(res.Replicates, reps...)
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func (s *Sweeper) runOne(f *genofile.File, pct float64, index int, seed int64) (Replicate, genotype.Stats, error) {
	p := pipeline.New(pipeline.Options{
		Percentage:    &pct,
		PseudoHaploid: true,
		Seed:          seed,
		Workers:       s.cfg.Workers,
	})
	p.SetLogger(s.logger.With(zap.Float64("percentage", pct), zap.Int("replicate", index)))

	res, err := p.Run(f)
	if err != nil {
		return Replicate{}, genotype.Stats{}, err
	}
	return Replicate{
		Percentage:    pct,
		Index:         index,
		Seed:          res.Seed,
		Diploid:       res.Steps[0].Stats,
		PseudoHaploid: res.Steps[1].Stats,
		Steps:         res.Steps,
	}, res.Initial, nil
}

func summarize(pct float64, reps []Replicate) (Row, error) {
	var (
		dMiss, dRem, dPct, hMiss, hRem, hPct []float64
	)
	for _, r := range reps {
		dMiss = append(dMiss, float64(r.Diploid.Missing))
		dRem = append(dRem, float64(r.Diploid.Remaining()))
		dPct = append(dPct, r.Diploid.MissingnessPct)
		hMiss = append(hMiss, float64(r.PseudoHaploid.Missing))
		hRem = append(hRem, float64(r.PseudoHaploid.Remaining()))
		hPct = append(hPct, r.PseudoHaploid.MissingnessPct)
	}

	row := Row{Percentage: pct, Replicates: len(reps)}
	if len(reps) > 0 {
		row.TotalLoci = reps[0].Diploid.Total
	}

	var err error
	if row.DiploidMissingLoci, err = stats.Mean(dMiss); err != nil {
		return Row{}, fmt.Errorf("diploid missing mean: %w", err)
	}
	if row.DiploidRemainingLoci, err = stats.Mean(dRem); err != nil {
		return Row{}, fmt.Errorf("diploid remaining mean: %w", err)
	}
	if row.DiploidMissingnessPct, err = stats.Mean(dPct); err != nil {
		return Row{}, fmt.Errorf("diploid missingness mean: %w", err)
	}
	if row.DiploidMissingnessSD, err = stats.StandardDeviation(dPct); err != nil {
		return Row{}, fmt.Errorf("diploid missingness sd: %w", err)
	}
	if row.PseudoHaploidMissingLoci, err = stats.Mean(hMiss); err != nil {
		return Row{}, fmt.Errorf("pseudo-haploid missing mean: %w", err)
	}
	if row.PseudoHaploidRemainingLoci, err = stats.Mean(hRem); err != nil {
		return Row{}, fmt.Errorf("pseudo-haploid remaining mean: %w", err)
	}
	if row.PseudoHaploidMissingnessPct, err = stats.Mean(hPct); err != nil {
		return Row{}, fmt.Errorf("pseudo-haploid missingness mean: %w", err)
	}
	if row.PseudoHaploidMissingnessSD, err = stats.StandardDeviation(hPct); err != nil {
		return Row{}, fmt.Errorf("pseudo-haploid missingness sd: %w", err)
	}
	return row, nil
}
