// Package pipeline composes the genotype transforms into a single run:
// parse, decompose, optionally downsample, optionally pseudo-haploidize,
// and write each result next to its run log.
package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/adna-downsample/internal/genofile"
	"github.com/inodb/adna-downsample/internal/genotype"
	"github.com/inodb/adna-downsample/internal/transform"
)

// debugRows is the number of loci logged after each stage at debug level.
const debugRows = 5

// Operation identifies a transform applied by the pipeline.
type Operation string

const (
	OpDownsample    Operation = "downsampling"
	OpPseudoHaploid Operation = "pseudo-haploidization"
)

// Options selects the transforms to apply.
type Options struct {
	// Percentage enables downsampling when non-nil.
	Percentage *float64
	// PseudoHaploid enables pseudo-haploidization. When both are set,
	// downsampling is applied first and haploidization works on its result.
	PseudoHaploid bool
	// Seed for the random source; 0 derives one from the clock.
	Seed int64
	// Workers > 1 spreads haploidization over a worker pool.
	Workers int
	// SkipRunLog disables the .log file written next to each output.
	SkipRunLog bool
}

// Validate rejects invalid options before any data is touched.
func (o Options) Validate() error {
	if o.Percentage != nil {
		if err := transform.ValidatePercentage(*o.Percentage); err != nil {
			return err
		}
	}
	return nil
}

// Step is the outcome of one transform.
type Step struct {
	Operation Operation
	Note      string // annotation written into the output header
	Loci      genotype.Dataset
	Stats     genotype.Stats
}

// Result holds the stats of the input and every step applied, in order.
type Result struct {
	Seed    int64
	Initial genotype.Stats
	Steps   []Step
}

// Pipeline runs the configured transforms over a parsed genotype file.
type Pipeline struct {
	opts   Options
	src    transform.Source
	logger *zap.Logger
}

// New creates a pipeline. The random source is seeded from opts.Seed.
func New(opts Options) *Pipeline {
	src, seed := transform.NewSource(opts.Seed)
	opts.Seed = seed
	return &Pipeline{
		opts:   opts,
		src:    src,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for progress and debug messages.
func (p *Pipeline) SetLogger(l *zap.Logger) {
	p.logger = l
}

// SetSource replaces the random source.
func (p *Pipeline) SetSource(src transform.Source) {
	p.src = src
}

// Options returns the options in effect, including the resolved seed.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Run decomposes f's loci in place and applies the configured transforms.
func (p *Pipeline) Run(f *genofile.File) (*Result, error) {
	if err := p.opts.Validate(); err != nil {
		return nil, err
	}

	f.Loci.Decompose()
	p.debugHead("parsed", f.Loci)

	res := &Result{
		Seed:    p.opts.Seed,
		Initial: genotype.ComputeStats(f.Loci),
	}
	p.logger.Info("loaded genotypes",
		zap.Int("loci", res.Initial.Total),
		zap.Int("missing", res.Initial.Missing),
		zap.Int64("seed", res.Seed))

	current := f.Loci

	if p.opts.Percentage != nil {
		pct := *p.opts.Percentage
		out, err := transform.Downsample(current, pct, p.src)
		if err != nil {
			return nil, fmt.Errorf("downsample: %w", err)
		}
		res.Steps = append(res.Steps, p.step(OpDownsample, DownsampleNote(pct), out))
		current = out
	}

	if p.opts.PseudoHaploid {
		var out genotype.Dataset
		if p.opts.Workers > 1 {
			out = transform.HaploidizeParallel(current, p.src, p.opts.Workers)
		} else {
			out = transform.Haploidize(current, p.src)
		}
		res.Steps = append(res.Steps, p.step(OpPseudoHaploid, PseudoHaploidNote(p.opts.Percentage), out))
	}

	return res, nil
}

func (p *Pipeline) step(op Operation, note string, d genotype.Dataset) Step {
	s := Step{Operation: op, Note: note, Loci: d, Stats: genotype.ComputeStats(d)}
	p.logger.Info("applied transform",
		zap.String("operation", string(op)),
		zap.Int("missing", s.Stats.Missing),
		zap.Float64("missingness_pct", s.Stats.MissingnessPct))
	p.debugHead(string(op), d)
	return s
}

func (p *Pipeline) debugHead(stage string, d genotype.Dataset) {
	if ce := p.logger.Check(zap.DebugLevel, "dataset head"); ce != nil {
		rows := make([]string, 0, debugRows)
		for _, l := range d.Head(debugRows) {
			rows = append(rows, fmt.Sprintf("%s\t%s\t%d\t%s\tref=%q\talt=%q",
				l.RSID, l.Chromosome, l.Position, l.Genotype, l.Ref, l.Alt))
		}
		ce.Write(zap.String("stage", stage), zap.Strings("rows", rows))
	}
}
