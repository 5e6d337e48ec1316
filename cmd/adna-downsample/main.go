// Package main provides the adna-downsample command-line tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/adna-downsample/internal/genofile"
	"github.com/inodb/adna-downsample/internal/transform"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// configName is the config file name in the home directory, without extension.
const configName = ".adna-downsample"

// usageError marks errors caused by bad command-line usage.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// app holds state shared by all commands.
type app struct {
	cfgFile string
	debug   bool
	logger  *zap.Logger
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	a := &app{logger: zap.NewNop()}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	a.logger.Sync()
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	printHint(stderr, err)

	var uerr usageError
	if errors.As(err, &uerr) {
		fmt.Fprintf(stderr, "Run 'adna-downsample --help' for usage.\n")
		return ExitUsage
	}
	return ExitError
}

// printHint explains how to recover from input errors.
func printHint(w io.Writer, err error) {
	var perr *genofile.ParseError
	switch {
	case errors.Is(err, genofile.ErrFileNotFound):
		fmt.Fprintf(w, "Hint: Check that the file path is correct\n")
	case errors.As(err, &perr):
		fmt.Fprintf(w, "\nThe current offset in the file is %d bytes.\n", perr.Offset)
		fmt.Fprintf(w, "\nYou might want to check:\n")
		fmt.Fprintf(w, "- that every data line has exactly 4 tab-separated fields,\n")
		fmt.Fprintf(w, "- that the position column holds non-negative integers,\n")
		fmt.Fprintf(w, "- that comment lines start with '#'.\n")
	case errors.Is(err, genofile.ErrMissingGenotypeColumn):
		fmt.Fprintf(w, "Hint: The column declaration line must name a 'genotype' column\n")
	case errors.Is(err, transform.ErrInvalidPercentage):
		fmt.Fprintf(w, "Hint: Use a percentage between 0 and 100, e.g. -p 30\n")
	}
}

func newRootCmd(a *app) *cobra.Command {
	var opts downsampleOptions

	cmd := &cobra.Command{
		Use:   "adna-downsample",
		Short: "Downsample and pseudo-haploidize 23andMe-style genotype files",
		Long: `Simulate ancient-DNA data from a tab-delimited genotype file
(rsid, chromosome, position, genotype).

Downsampling sets a random percentage of loci to the missing call "--",
simulating lower coverage. Pseudo-haploidization replaces every call with a
homozygous call of one randomly chosen allele, simulating haploid sequencing.
When both are requested, downsampling is applied first and both files are written.`,
		Example: `  adna-downsample -i genome.txt -s                 # show statistics only
  adna-downsample -i genome.txt -p 30              # write genome_downsampled_30pct.txt
  adna-downsample -i genome.txt -a                 # write genome_pseudohaploid.txt
  adna-downsample -i genome.txt -p 30 -a --seed 7  # both, reproducibly`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(a.cfgFile); err != nil {
				return err
			}
			logger, err := newLogger(a.debug)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.percentageSet = cmd.Flags().Changed("percentage")
			return runDownsample(cmd, a, opts)
		},
	}

	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (default: ~/"+configName+".yaml)")
	pf.BoolVarP(&a.debug, "debug", "d", false, "Print debugging information")
	pf.Int64("seed", 0, "Random seed (0 = derive from the clock)")
	pf.Int("workers", 1, "Worker goroutines for pseudo-haploidization")
	pf.String("history", "", "DuckDB file to record runs in (optional)")
	viper.BindPFlag("seed", pf.Lookup("seed"))
	viper.BindPFlag("workers", pf.Lookup("workers"))
	viper.BindPFlag("history.path", pf.Lookup("history"))

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "Input genotype file ('-' for stdin; .gz and .xz accepted)")
	f.StringVarP(&opts.output, "out", "o", "", "Output file (default: derived from the input name)")
	f.BoolVarP(&opts.showStats, "stats", "s", false, "Calculate and print statistics")
	f.Float64VarP(&opts.percentage, "percentage", "p", 0, "Percentage of loci to set missing (0-100)")
	f.BoolVarP(&opts.pseudoHaploid, "pseudo-haploid", "a", false, "Generate pseudo-haploid genotypes")
	f.Bool("run-log", true, "Write a .log file next to every output")
	viper.BindPFlag("runlog.enabled", f.Lookup("run-log"))

	cmd.AddCommand(newSweepCmd(a))
	cmd.AddCommand(newHistoryCmd(a))
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// initConfig loads the config file and environment overrides.
func initConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ADNA_DOWNSAMPLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("workers", 1)
	viper.SetDefault("runlog.enabled", true)
	viper.SetDefault("log.level", "warn")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", filepath.Clean(viper.ConfigFileUsed()), err)
	}
	return nil
}

// newLogger builds the stderr logger. Debug mode switches to the
// human-readable development encoder at debug level.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
