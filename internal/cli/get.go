package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/radcache/internal/feature"
	"github.com/roach88/radcache/internal/model"
	"github.com/roach88/radcache/internal/store"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	Database string
	Key      keyFlags
}

// ValueRow is one looked-up value. Value is nil when absent.
type ValueRow struct {
	Feature string   `json:"feature"`
	Value   *float64 `json:"value"`
}

// ValueList is a list of looked-up values.
type ValueList []ValueRow

// WriteText implements Texter. Absent values print as "-".
func (l ValueList) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range l {
		fmt.Fprintf(tw, "%s\t%s\n", r.Feature, formatValue(r.Value))
	}
	return tw.Flush()
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <feature-id>...",
		Short: "Read cached feature values",
		Long: `Read cached values for one condition without computing anything.
Values that have not been computed print as "-".

Examples:
  radcache get --db cache/features.db --patient LIDC-IDRI-0001 --nodule 0 \
      --annotation -1 --levels 256 firstorder/Entropy glcm/Contrast`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to feature store (required)")
	_ = cmd.MarkFlagRequired("db")
	opts.Key.register(cmd, true)
	return cmd
}

func runGet(ctx context.Context, opts *GetOptions, args []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ids := make([]model.FeatureID, len(args))
	for i, a := range args {
		ids[i] = model.FeatureID(a)
	}
	if err := feature.Default().Validate(ids); err != nil {
		return classify("invalid request", err)
	}
	key := opts.Key.key()
	if err := key.Validate(); err != nil {
		return classify("invalid condition", err)
	}

	st, err := store.OpenExisting(opts.Database)
	if err != nil {
		return classify("failed to open store", err)
	}
	defer st.Close()

	rows := make(ValueList, 0, len(ids))
	for _, id := range ids {
		v, ok, err := st.ReadValue(ctx, key, id)
		if err != nil {
			return classify("failed to read value", err)
		}
		row := ValueRow{Feature: string(id)}
		if ok {
			row.Value = &v
		}
		rows = append(rows, row)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return out.Success(rows)
}
