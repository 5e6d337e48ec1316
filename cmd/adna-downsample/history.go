package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/adna-downsample/internal/history"
	"github.com/inodb/adna-downsample/internal/pipeline"
)

func newHistoryCmd(a *app) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `List the runs recorded in the history database (set with --history or
the history.path config key).`,
		Example: `  adna-downsample history --history runs.duckdb
  adna-downsample history summary --input genome.txt
  adna-downsample config set history.path ~/adna-runs.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(func(store *history.Store) error {
				runs, err := store.Runs(input)
				if err != nil {
					return err
				}
				return printRuns(cmd.OutOrStdout(), runs)
			})
		},
	}
	cmd.PersistentFlags().StringVar(&input, "input", "", "Only show runs for this input path")

	cmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Aggregate missingness per operation and percentage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(func(store *history.Store) error {
				sums, err := store.Summarize(input)
				if err != nil {
					return err
				}
				return printSummaries(cmd.OutOrStdout(), sums)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(func(store *history.Store) error {
				if err := store.ClearRuns(); err != nil {
					return fmt.Errorf("clear runs: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared run history in %s\n", store.Path())
				return nil
			})
		},
	})

	return cmd
}

// withHistory opens the configured history store for the duration of fn.
func withHistory(fn func(*history.Store) error) error {
	path := viper.GetString("history.path")
	if path == "" {
		return usageError{fmt.Errorf("no history database: pass --history or set history.path")}
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func printRuns(w io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "# No runs recorded.")
		return nil
	}
	fmt.Fprintln(w, strings.Join([]string{
		"recorded_at", "input", "operation", "percentage", "seed",
		"total", "missing_before", "missing_after", "missingness_after", "output",
	}, "\t"))
	for _, r := range runs {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%.2f\t%s\n",
			r.RecordedAt.Format(time.DateTime), r.Input.Path, r.Operation, formatPct(r.Percentage), r.Seed,
			r.Before.Total, r.Before.Missing, r.After.Missing, r.After.MissingnessPct, r.Output); err != nil {
			return err
		}
	}
	return nil
}

func printSummaries(w io.Writer, sums []history.Summary) error {
	if len(sums) == 0 {
		fmt.Fprintln(w, "# No runs recorded.")
		return nil
	}
	fmt.Fprintln(w, "operation\tpercentage\truns\tmean_missingness\tmin_missingness\tmax_missingness")
	for _, s := range sums {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\n",
			s.Operation, formatPct(s.Percentage), s.Runs,
			s.MeanMissingnessPct, s.MinMissingnessPct, s.MaxMissingnessPct); err != nil {
			return err
		}
	}
	return nil
}

func formatPct(pct *float64) string {
	if pct == nil {
		return "-"
	}
	return pipeline.FormatPercentage(*pct)
}
