package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/radcache/internal/model"
	"github.com/roach88/radcache/internal/store"
)

// InspectOptions holds flags shared by the inspect subcommands.
type InspectOptions struct {
	*RootOptions
	Database string
}

// Lines is a result printed one item per line.
type Lines []string

// WriteText implements Texter.
func (l Lines) WriteText(w io.Writer) error {
	for _, s := range l {
		if _, err := fmt.Fprintln(w, s); err != nil {
			return err
		}
	}
	return nil
}

// SampleRow is one observer value.
type SampleRow struct {
	AnnotationID int      `json:"annotation_id"`
	Value        *float64 `json:"value"`
}

// SampleList is the values subcommand result.
type SampleList []SampleRow

// WriteText implements Texter.
func (l SampleList) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ANNOTATION\tVALUE")
	for _, r := range l {
		fmt.Fprintf(tw, "%d\t%s\n", r.AnnotationID, formatValue(r.Value))
	}
	return tw.Flush()
}

// StatsResult is the stats subcommand result.
type StatsResult struct {
	Path      string         `json:"path"`
	Bytes     int64          `json:"bytes"`
	Rows      int            `json:"rows"`
	Features  int            `json:"features"`
	Populated map[string]int `json:"populated"`
}

// WriteText implements Texter.
func (s StatsResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "%s: %s, %s rows, %d feature columns\n",
		s.Path, humanize.Bytes(uint64(s.Bytes)), humanize.Comma(int64(s.Rows)), s.Features)
	ids := make([]string, 0, len(s.Populated))
	for id := range s.Populated {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, id := range ids {
		fmt.Fprintf(tw, "  %s\t%s\n", id, humanize.Comma(int64(s.Populated[id])))
	}
	return tw.Flush()
}

// NewInspectCommand creates the inspect command and its subcommands.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Query an existing feature store",
		Long: `Read-only queries against an existing feature store. The store must
already exist; inspect never creates one.

Examples:
  radcache inspect patients --db cache/features.db
  radcache inspect values --db cache/features.db --patient LIDC-IDRI-0001 \
      --nodule 0 --feature glcm/Contrast --levels 256
  radcache inspect stats --db cache/features.db`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to feature store (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(inspectSubcommand(opts, "patients", "List patient ids", nil,
		func(ctx context.Context, st *store.Store, _ *keyFlags, _ string) (any, error) {
			ids, err := st.PatientIDs(ctx)
			return Lines(ids), err
		}))
	cmd.AddCommand(inspectSubcommand(opts, "nodules", "List nodule ids of a patient", patientFlagsOnly,
		func(ctx context.Context, st *store.Store, k *keyFlags, _ string) (any, error) {
			ids, err := st.NoduleIDs(ctx, k.Patient)
			return intLines(ids), err
		}))
	cmd.AddCommand(inspectSubcommand(opts, "annotations", "List observer annotation ids of a nodule", patientFlagsOnly,
		func(ctx context.Context, st *store.Store, k *keyFlags, _ string) (any, error) {
			ids, err := st.AnnotationIDs(ctx, k.Patient, k.Nodule)
			return intLines(ids), err
		}))
	cmd.AddCommand(inspectSubcommand(opts, "features", "List feature columns", nil,
		func(_ context.Context, st *store.Store, _ *keyFlags, _ string) (any, error) {
			ids := st.FeatureIDs()
			out := make(Lines, len(ids))
			for i, id := range ids {
				out[i] = string(id)
			}
			return out, nil
		}))
	cmd.AddCommand(inspectSubcommand(opts, "values", "List observer values of a feature for a nodule", valueFlags,
		func(ctx context.Context, st *store.Store, k *keyFlags, id string) (any, error) {
			samples, err := st.ValuesAcrossAnnotations(ctx, k.Patient, k.Nodule, model.FeatureID(id), k.Levels, k.Noise)
			if err != nil {
				return nil, err
			}
			out := make(SampleList, len(samples))
			for i, s := range samples {
				out[i] = SampleRow{AnnotationID: s.AnnotationID}
				if s.Valid {
					v := s.Value
					out[i].Value = &v
				}
			}
			return out, nil
		}))
	cmd.AddCommand(inspectSubcommand(opts, "consensus", "Show the consensus value of a feature for a nodule", valueFlags,
		func(ctx context.Context, st *store.Store, k *keyFlags, id string) (any, error) {
			v, ok, err := st.ConsensusValue(ctx, k.Patient, k.Nodule, model.FeatureID(id), k.Levels, k.Noise)
			if err != nil {
				return nil, err
			}
			row := ValueRow{Feature: id}
			if ok {
				row.Value = &v
			}
			return ValueList{row}, nil
		}))
	cmd.AddCommand(inspectSubcommand(opts, "stats", "Summarize store occupancy", nil,
		func(ctx context.Context, st *store.Store, _ *keyFlags, _ string) (any, error) {
			stats, err := st.Stats(ctx)
			if err != nil {
				return nil, err
			}
			res := StatsResult{Path: st.Path(), Rows: int(stats.Rows), Features: len(stats.Populated), Populated: map[string]int{}}
			for id, n := range stats.Populated {
				res.Populated[string(id)] = int(n)
			}
			if size, err := fileSize(st.Path()); err == nil {
				res.Bytes = size
			}
			return res, nil
		}))

	return cmd
}

type flagSet func(cmd *cobra.Command, k *keyFlags, feature *string)

func patientFlagsOnly(cmd *cobra.Command, k *keyFlags, _ *string) {
	cmd.Flags().StringVar(&k.Patient, "patient", "", "patient id (required)")
	_ = cmd.MarkFlagRequired("patient")
	cmd.Flags().IntVar(&k.Nodule, "nodule", 0, "nodule id")
}

func valueFlags(cmd *cobra.Command, k *keyFlags, feature *string) {
	k.register(cmd, false)
	cmd.Flags().StringVar(feature, "feature", "", "feature id (required)")
	_ = cmd.MarkFlagRequired("feature")
}

func inspectSubcommand(opts *InspectOptions, use, short string, flags flagSet,
	run func(ctx context.Context, st *store.Store, k *keyFlags, feature string) (any, error)) *cobra.Command {
	var (
		k  keyFlags
		id string
	)
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if id != "" && !model.FeatureID(id).Valid() {
				return NewExitError(ExitCommandError, fmt.Sprintf("malformed feature id %q", id))
			}
			st, err := store.OpenExisting(opts.Database)
			if err != nil {
				return classify("failed to open store", err)
			}
			defer st.Close()

			res, err := run(ctx, st, &k, id)
			if err != nil {
				return classify("inspect "+use, err)
			}
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			return out.Success(res)
		},
	}
	if flags != nil {
		flags(cmd, &k, &id)
	}
	return cmd
}

func intLines(ids []int) Lines {
	out := make(Lines, len(ids))
	for i, id := range ids {
		out[i] = strconv.Itoa(id)
	}
	return out
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
