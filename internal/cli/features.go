package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/radcache/internal/feature"
)

// FeatureRow is one entry of the features listing.
type FeatureRow struct {
	ID     string `json:"id"`
	Class  string `json:"engine_class"`
	Name   string `json:"engine_name"`
	Column string `json:"column"`
}

// FeatureList is the features command result.
type FeatureList []FeatureRow

// WriteText implements Texter.
func (l FeatureList) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENGINE CLASS\tENGINE NAME")
	for _, r := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Class, r.Name)
	}
	return tw.Flush()
}

// NewFeaturesCommand creates the features command.
func NewFeaturesCommand(rootOpts *RootOptions) *cobra.Command {
	var class string

	cmd := &cobra.Command{
		Use:   "features",
		Short: "List computable features",
		Long: `List every feature identifier in the lookup table with the engine
class and internal name it is computed as.

Examples:
  radcache features
  radcache features --class glcm --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := feature.Default()
			ids := reg.IDs()
			if class != "" {
				ids = reg.ByClass(class)
				if len(ids) == 0 {
					return NewExitError(ExitCommandError, fmt.Sprintf("unknown feature class %q (known: %v)", class, reg.Classes()))
				}
			}

			list := make(FeatureList, 0, len(ids))
			for _, id := range ids {
				s, _ := reg.Lookup(id)
				col, err := id.Column()
				if err != nil {
					return WrapExitError(ExitFailure, "bad feature table", err)
				}
				list = append(list, FeatureRow{ID: string(id), Class: s.Class, Name: s.Name, Column: col})
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}
			return out.Success(list)
		},
	}

	cmd.Flags().StringVar(&class, "class", "", "only list identifiers of this class")
	return cmd
}
