package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/radcache/internal/stability"
	"github.com/roach88/radcache/internal/store"
)

// StabilityOptions holds flags for the stability subcommands.
type StabilityOptions struct {
	*RootOptions
	Database    string
	Output      string
	Noise       float64
	Annotations int
	Levels      int
	LevelSet    []int
}

// StabilityRow is one feature's stability.
type StabilityRow struct {
	Feature   string  `json:"feature"`
	Nodules   int     `json:"nodules"`
	AvgSMAPE  float64 `json:"avg_smape"`
	Agreement float64 `json:"agreement"`
	Stability string  `json:"stability"`
}

// StabilityReport is the stability command result.
type StabilityReport []StabilityRow

// WriteText implements Texter.
func (r StabilityReport) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FEATURE\tNODULES\tAVG SMAPE\tSTABILITY")
	for _, row := range r {
		fmt.Fprintf(tw, "%s\t%d\t%.2f%%\t%s\n", row.Feature, row.Nodules, row.AvgSMAPE, row.Stability)
	}
	return tw.Flush()
}

// NewStabilityCommand creates the stability command and its subcommands.
func NewStabilityCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StabilityOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stability",
		Short: "Measure feature stability from cached values",
		Long: `Measure how much cached feature values vary across observer
delineations or across quantization level counts. Only stored values are
used; nothing is computed.

Examples:
  radcache stability delineation --db cache/features.db --annotations 4
  radcache stability resampling --db cache/features.db --levels 32,64,128,256 --out resampling.csv`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to feature store (required)")
	_ = cmd.MarkPersistentFlagRequired("db")
	cmd.PersistentFlags().StringVarP(&opts.Output, "out", "o", "", "also write the report as CSV to this file")
	cmd.PersistentFlags().Float64Var(&opts.Noise, "noise", 0, "noise scale")

	delineation := &cobra.Command{
		Use:           "delineation",
		Short:         "Variation across observer annotations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStability(cmd, opts, func(ctx context.Context, st *store.Store) ([]stability.Row, error) {
				return stability.Delineation(ctx, st, opts.Annotations, opts.Levels, opts.Noise)
			})
		},
	}
	delineation.Flags().IntVar(&opts.Annotations, "annotations", 4, "number of observer annotations a nodule must have")
	delineation.Flags().IntVar(&opts.Levels, "levels", 256, "number of quantization levels")

	resampling := &cobra.Command{
		Use:           "resampling",
		Short:         "Variation of consensus values across level counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStability(cmd, opts, func(ctx context.Context, st *store.Store) ([]stability.Row, error) {
				return stability.Resampling(ctx, st, opts.LevelSet, opts.Noise)
			})
		},
	}
	resampling.Flags().IntSliceVar(&opts.LevelSet, "levels", []int{32, 64, 128, 256}, "level counts to compare")

	cmd.AddCommand(delineation, resampling)
	return cmd
}

func runStability(cmd *cobra.Command, opts *StabilityOptions, analyze func(context.Context, *store.Store) ([]stability.Row, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.OpenExisting(opts.Database)
	if err != nil {
		return classify("failed to open store", err)
	}
	defer st.Close()

	rows, err := analyze(ctx, st)
	if err != nil {
		return WrapExitError(ExitCommandError, "stability analysis failed", err)
	}

	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create report", err)
		}
		if err := stability.WriteCSV(f, rows); err != nil {
			f.Close()
			return WrapExitError(ExitFailure, "failed to write report", err)
		}
		if err := f.Close(); err != nil {
			return WrapExitError(ExitFailure, "failed to write report", err)
		}
	}

	report := make(StabilityReport, len(rows))
	for i, r := range rows {
		report[i] = StabilityRow{
			Feature:   string(r.Feature),
			Nodules:   r.Nodules,
			AvgSMAPE:  r.AvgSMAPE,
			Agreement: r.Agreement,
			Stability: r.Stability,
		}
	}
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return out.Success(report)
}
