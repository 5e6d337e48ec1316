package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/adna-downsample/internal/genofile"
	"github.com/inodb/adna-downsample/internal/genotype"
	"github.com/inodb/adna-downsample/internal/history"
	"github.com/inodb/adna-downsample/internal/pipeline"
)

type downsampleOptions struct {
	input         string
	output        string
	showStats     bool
	percentage    float64
	percentageSet bool
	pseudoHaploid bool
}

func runDownsample(cmd *cobra.Command, a *app, opts downsampleOptions) error {
	if opts.input == "" {
		return usageError{fmt.Errorf("required flag \"input\" not set")}
	}

	popts := pipeline.Options{
		PseudoHaploid: opts.pseudoHaploid,
		Seed:          viper.GetInt64("seed"),
		Workers:       viper.GetInt("workers"),
		SkipRunLog:    !viper.GetBool("runlog.enabled"),
	}
	if opts.input == "-" && opts.output == "" && (opts.percentageSet || opts.pseudoHaploid) {
		return usageError{fmt.Errorf("--out is required when reading from stdin")}
	}
	if opts.percentageSet {
		pct := opts.percentage
		popts.Percentage = &pct
	}
	// Reject bad parameters before reading a potentially large file.
	if err := popts.Validate(); err != nil {
		return err
	}

	if popts.Percentage == nil && !popts.PseudoHaploid && !opts.showStats {
		a.logger.Warn("nothing to do: pass -s, -p or -a")
	}

	f, err := genofile.Open(opts.input)
	if err != nil {
		return err
	}

	p := pipeline.New(popts)
	p.SetLogger(a.logger)
	res, err := p.Run(f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.showStats {
		printStats(out, "Original stats:", res.Initial)
	}
	if len(res.Steps) == 0 {
		return nil
	}

	outputs, err := p.WriteOutputs(f, res, opts.input, opts.output, commandLine())
	if err != nil {
		return err
	}

	for _, o := range outputs {
		fmt.Fprintf(out, "%s file written to %s\n", outputLabel(o.Step.Operation), o.Path)
		if o.LogPath != "" && o.LogErr == nil {
			fmt.Fprintf(out, "Log file written to %s\n", o.LogPath)
		}
		if opts.showStats {
			fmt.Fprintln(out)
			printStats(out, statsTitle(o.Step.Operation), o.Step.Stats)
		}
	}

	if path := viper.GetString("history.path"); path != "" {
		runs := outputRuns(fingerprint(a.logger, opts.input), p.Options(), res.Initial, outputs)
		recordHistory(a.logger, path, runs)
	}
	return nil
}

func outputLabel(op pipeline.Operation) string {
	if op == pipeline.OpPseudoHaploid {
		return "Pseudo-haploid"
	}
	return "Downsampled"
}

func statsTitle(op pipeline.Operation) string {
	return outputLabel(op) + " stats:"
}

// printStats writes a titled statistics block.
func printStats(w io.Writer, title string, s genotype.Stats) {
	fmt.Fprintln(w, title)
	if s.Total == 0 {
		fmt.Fprintln(w, "No loci found in the file.")
		return
	}
	s.WriteTo(w)
}

// commandLine reconstructs the invocation for run logs.
func commandLine() string {
	return strings.Join(os.Args, " ")
}

// fingerprint identifies input in the run history. Stdin and unreadable
// paths are recorded by name only.
func fingerprint(logger *zap.Logger, input string) history.FileFingerprint {
	fp, err := history.StatFile(input)
	if err != nil {
		logger.Debug("history: cannot stat input", zap.String("input", input), zap.Error(err))
		return history.FileFingerprint{Path: input}
	}
	return fp
}

// outputRuns converts written outputs into history records.
func outputRuns(fp history.FileFingerprint, opts pipeline.Options, initial genotype.Stats, outputs []pipeline.Output) []history.Run {
	now := time.Now()
	runs := make([]history.Run, 0, len(outputs))
	for _, o := range outputs {
		runs = append(runs, history.Run{
			RecordedAt: now,
			Input:      fp,
			Output:     o.Path,
			Operation:  string(o.Step.Operation),
			Percentage: opts.Percentage,
			Seed:       opts.Seed,
			Before:     initial,
			After:      o.Step.Stats,
		})
	}
	return runs
}

// recordHistory appends runs to the history store. Failures are logged and
// never affect the written files.
func recordHistory(logger *zap.Logger, dbPath string, runs []history.Run) {
	store, err := history.Open(dbPath)
	if err != nil {
		logger.Warn("history: cannot open store", zap.String("path", dbPath), zap.Error(err))
		return
	}
	defer store.Close()

	if err := store.RecordRuns(runs); err != nil {
		logger.Warn("history: cannot record runs", zap.String("path", dbPath), zap.Error(err))
		return
	}
	logger.Info("history: recorded runs", zap.String("path", dbPath), zap.Int("runs", len(runs)))
}
