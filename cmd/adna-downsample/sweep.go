package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/adna-downsample/internal/genofile"
	"github.com/inodb/adna-downsample/internal/genotype"
	"github.com/inodb/adna-downsample/internal/history"
	"github.com/inodb/adna-downsample/internal/pipeline"
	"github.com/inodb/adna-downsample/internal/runlog"
	"github.com/inodb/adna-downsample/internal/sweep"
)

type sweepOptions struct {
	input       string
	percentages []float64
	replicates  int
	summary     string
	outDir      string
}

func newSweepCmd(a *app) *cobra.Command {
	var opts sweepOptions

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Downsample and pseudo-haploidize over a range of percentages",
		Long: `Run downsampling followed by pseudo-haploidization for each requested
percentage, optionally with several replicates, and print a tab-delimited
summary of the resulting missingness (mean and standard deviation across
replicates).`,
		Example: `  adna-downsample sweep -i genome.txt
  adna-downsample sweep -i genome.txt --percentages 10,50,90 --replicates 5 --summary sweep.tsv
  adna-downsample sweep -i genome.txt --out-dir sims/ --history runs.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, a, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "Input genotype file ('-' for stdin)")
	f.Float64SliceVar(&opts.percentages, "percentages", nil, "Percentages to sweep (default: 1,2,5,10,20,...,90)")
	f.IntVar(&opts.replicates, "replicates", 1, "Runs per percentage")
	f.StringVar(&opts.summary, "summary", "", "Write the summary table to this file instead of stdout")
	f.StringVar(&opts.outDir, "out-dir", "", "Also write every simulated file into this directory")

	return cmd
}

func runSweep(cmd *cobra.Command, a *app, opts sweepOptions) error {
	if opts.input == "" {
		return usageError{fmt.Errorf("required flag \"input\" not set")}
	}
	if opts.replicates < 1 {
		return usageError{fmt.Errorf("--replicates must be at least 1, got %d", opts.replicates)}
	}

	f, err := genofile.Open(opts.input)
	if err != nil {
		return err
	}

	s := sweep.New(sweep.Config{
		Percentages: opts.percentages,
		Replicates:  opts.replicates,
		Seed:        viper.GetInt64("seed"),
		Workers:     viper.GetInt("workers"),
	})
	s.SetLogger(a.logger)

	var w *replicateWriter
	if opts.outDir != "" {
		if err := os.MkdirAll(opts.outDir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		w = newReplicateWriter(a.logger, f, opts, s.Config().Replicates)
		s.SetReplicateHandler(w.write)
	}

	start := time.Now()
	res, err := s.Run(f)
	if err != nil {
		return err
	}
	a.logger.Info("sweep complete",
		zap.Int("percentages", len(res.Rows)),
		zap.Int("replicates", s.Config().Replicates),
		zap.Int64("seed", s.Config().Seed),
		zap.Duration("elapsed", time.Since(start)))

	var outputs []replicateOutput
	if w != nil {
		outputs = w.outputs
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d files to %s\n", len(outputs), opts.outDir)
	}

	if err := writeSummary(cmd, opts.summary, res.Rows); err != nil {
		return err
	}

	if path := viper.GetString("history.path"); path != "" {
		recordHistory(a.logger, path, sweepRuns(fingerprint(a.logger, opts.input), res, outputs))
	}
	return nil
}

func writeSummary(cmd *cobra.Command, path string, rows []sweep.Row) error {
	if path == "" {
		return sweep.WriteTSV(cmd.OutOrStdout(), rows)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	if err := sweep.WriteTSV(out, rows); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close summary: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Summary written to %s\n", path)
	return nil
}

// replicateOutput is one file written for a sweep replicate.
type replicateOutput struct {
	percentage float64
	seed       int64
	operation  pipeline.Operation
	stats      genotype.Stats
	path       string
}

// replicateWriter writes each replicate's downsampled and pseudo-haploid
// datasets with their run logs as the sweep produces them.
type replicateWriter struct {
	logger     *zap.Logger
	file       *genofile.File
	input      string
	replicates int
	outputs    []replicateOutput
}

func newReplicateWriter(logger *zap.Logger, f *genofile.File, opts sweepOptions, replicates int) *replicateWriter {
	input := filepath.Join(opts.outDir, filepath.Base(opts.input))
	if opts.input == "-" {
		input = filepath.Join(opts.outDir, "stdin")
	}
	return &replicateWriter{logger: logger, file: f, input: input, replicates: replicates}
}

func (w *replicateWriter) write(rep sweep.Replicate, initial genotype.Stats) error {
	pct := rep.Percentage
	n := 0
	if w.replicates > 1 {
		n = rep.Index + 1
	}
	downsampled, haploid := pipeline.ReplicatePaths(w.input, pct, n)

	for _, step := range rep.Steps {
		path := downsampled
		if step.Operation == pipeline.OpPseudoHaploid {
			path = haploid
		}

		if err := genofile.WriteFile(path, w.file.Header, w.file.Schema, step.Loci, step.Note); err != nil {
			return fmt.Errorf("write %s output: %w", step.Operation, err)
		}
		err := runlog.Write(runlog.PathFor(path), runlog.Entry{
			Time:        time.Now(),
			Command:     commandLine(),
			Description: fmt.Sprintf("%s (sweep replicate %d, seed %d)", pipeline.Describe(step.Operation, &pct), rep.Index+1, rep.Seed),
			Initial:     initial,
			Processed:   step.Stats,
		})
		if err != nil {
			w.logger.Warn("could not write run log", zap.String("path", path), zap.Error(err))
		}
		w.outputs = append(w.outputs, replicateOutput{
			percentage: pct,
			seed:       rep.Seed,
			operation:  step.Operation,
			stats:      step.Stats,
			path:       path,
		})
	}
	return nil
}

// sweepRuns converts a sweep into history records. Replicates not written
// to disk are recorded with an empty output path.
func sweepRuns(fp history.FileFingerprint, res *sweep.Result, outputs []replicateOutput) []history.Run {
	if len(outputs) == 0 {
		for _, rep := range res.Replicates {
			outputs = append(outputs,
				replicateOutput{percentage: rep.Percentage, seed: rep.Seed, operation: pipeline.OpDownsample, stats: rep.Diploid},
				replicateOutput{percentage: rep.Percentage, seed: rep.Seed, operation: pipeline.OpPseudoHaploid, stats: rep.PseudoHaploid},
			)
		}
	}

	now := time.Now()
	runs := make([]history.Run, 0, len(outputs))
	for _, o := range outputs {
		pct := o.percentage
		runs = append(runs, history.Run{
			RecordedAt: now,
			Input:      fp,
			Output:     o.path,
			Operation:  string(o.operation),
			Percentage: &pct,
			Seed:       o.seed,
			Before:     res.Initial,
			After:      o.stats,
		})
	}
	return runs
}
