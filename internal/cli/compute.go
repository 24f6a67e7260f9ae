package cli

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/radcache/internal/archive"
	"github.com/roach88/radcache/internal/config"
	"github.com/roach88/radcache/internal/extract"
	"github.com/roach88/radcache/internal/feature"
	"github.com/roach88/radcache/internal/model"
	"github.com/roach88/radcache/internal/resolver"
	"github.com/roach88/radcache/internal/store"
)

// TokenGenerator produces run tokens.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Tokens generates time-ordered UUIDv7 run tokens.
type UUIDv7Tokens struct{}

// Generate implements TokenGenerator.
func (UUIDv7Tokens) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ComputeOptions holds flags for the compute command.
type ComputeOptions struct {
	*RootOptions
	Plan      string
	KeepGoing bool
	DryRun    bool

	// Engine overrides the plan's engine command (for testing).
	Engine extract.Engine

	// Tokens overrides the run token generator (for testing).
	// If nil, defaults to UUIDv7Tokens.
	Tokens TokenGenerator
}

// ComputeSummary is the compute command result.
type ComputeSummary struct {
	RunID        string  `json:"run_id"`
	Conditions   int     `json:"conditions"`
	Failed       int     `json:"failed"`
	Features     int     `json:"features"`
	Hits         int     `json:"hits"`
	Computed     int     `json:"computed"`
	EngineCalls  int     `json:"engine_calls"`
	StoreBytes   int64   `json:"store_bytes"`
	ElapsedSecs  float64 `json:"elapsed_seconds"`
	DryRun       bool    `json:"dry_run,omitempty"`
	Interrupted  bool    `json:"interrupted,omitempty"`
	FirstFailure string  `json:"first_failure,omitempty"`
}

// WriteText implements Texter.
func (s ComputeSummary) WriteText(w io.Writer) error {
	if s.DryRun {
		_, err := fmt.Fprintf(w, "%s conditions x %d features planned\n", humanize.Comma(int64(s.Conditions)), s.Features)
		return err
	}
	fmt.Fprintf(w, "Run %s\n", s.RunID)
	fmt.Fprintf(w, "  conditions:   %s (%d failed)\n", humanize.Comma(int64(s.Conditions)), s.Failed)
	fmt.Fprintf(w, "  cache hits:   %s\n", humanize.Comma(int64(s.Hits)))
	fmt.Fprintf(w, "  computed:     %s in %s engine calls\n", humanize.Comma(int64(s.Computed)), humanize.Comma(int64(s.EngineCalls)))
	fmt.Fprintf(w, "  store size:   %s\n", humanize.Bytes(uint64(s.StoreBytes)))
	_, err := fmt.Fprintf(w, "  elapsed:      %s\n", time.Duration(s.ElapsedSecs*float64(time.Second)).Round(time.Millisecond))
	if s.Interrupted {
		fmt.Fprintln(w, "  interrupted before the grid was complete")
	}
	return err
}

// NewComputeCommand creates the compute command.
func NewComputeCommand(opts *ComputeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute features over a run plan",
		Long: `Compute the plan's features for every condition of its grid:
patients x nodules x (observer annotations + consensus) x levels x noise.

Values already in the store are not recomputed, so an interrupted run can
simply be started again.

Examples:
  radcache compute --plan plan.yaml
  radcache compute --plan plan.yaml --keep-going --verbose
  radcache compute --plan plan.yaml --dry-run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompute(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Plan, "plan", "", "path to run plan YAML (required)")
	_ = cmd.MarkFlagRequired("plan")
	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "continue with the next condition after a failure")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "count the grid without computing")
	return cmd
}

func runCompute(opts *ComputeOptions, cmd *cobra.Command) error {
	tokens := opts.Tokens
	if tokens == nil {
		tokens = UUIDv7Tokens{}
	}
	runID := tokens.Generate()
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr()).With("run", runID)
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose, RunID: runID}

	plan, err := config.Load(opts.Plan)
	if err != nil {
		return classify("failed to load plan", err)
	}
	reg := feature.Default()
	ids, err := config.FeatureIDs(plan, reg)
	if err != nil {
		return classify("failed to load plan", err)
	}

	arc, err := archive.Open(plan.Archive, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	grid, err := buildGrid(plan, arc)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read archive", err)
	}
	summary := ComputeSummary{RunID: runID, Conditions: len(grid), Features: len(ids), DryRun: opts.DryRun}
	if opts.DryRun {
		return out.Success(summary)
	}

	logger.Info("opening store", "path", plan.Database)
	st, err := store.Open(plan.Database, ids...)
	if err != nil {
		return classify("failed to open store", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing store", "error", closeErr)
		}
	}()

	engine := opts.Engine
	if engine == nil {
		engine = &extract.CommandEngine{
			Command: plan.Engine.Command,
			Args:    plan.Engine.Args,
			Timeout: plan.EngineTimeout(),
			Logger:  logger,
		}
	}
	ec := &extract.Context{
		Regions: arc,
		Engine:  engine,
		Window:  *plan.Window,
		WorkDir: plan.WorkDir,
		Logger:  logger,
	}
	if plan.Seed != nil {
		ec.Rand = rand.New(rand.NewPCG(uint64(*plan.Seed), 0))
	}
	res := resolver.New(st, reg, logger)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	logger.Info("run starting", "conditions", len(grid), "features", len(ids))
	var firstErr error
	for _, key := range grid {
		if ctx.Err() != nil {
			summary.Interrupted = true
			logger.Info("received signal, stopping")
			break
		}
		if _, err := res.Resolve(ctx, ids, key, ec); err != nil {
			summary.Failed++
			logger.Error("condition failed", "key", key.String(), "error", err)
			if firstErr == nil {
				firstErr = err
				summary.FirstFailure = err.Error()
			}
			if !opts.KeepGoing {
				break
			}
		}
	}

	stats := res.Stats()
	summary.Hits = stats.Hits
	summary.Computed = stats.Misses
	summary.EngineCalls = stats.Computations
	summary.ElapsedSecs = time.Since(start).Seconds()
	if info, err := os.Stat(plan.Database); err == nil {
		summary.StoreBytes = info.Size()
	}
	logger.Info("run finished", "hits", stats.Hits, "computed", stats.Misses, "failed", summary.Failed)

	if err := out.Success(summary); err != nil {
		return err
	}
	if firstErr != nil {
		return classify(fmt.Sprintf("%d of %d conditions failed", summary.Failed, len(grid)), firstErr)
	}
	return nil
}

// buildGrid lists every condition of the plan in patient, nodule,
// annotation, levels, noise order. Observer annotations precede consensus.
func buildGrid(plan *config.Plan, arc *archive.FS) ([]model.ConditionKey, error) {
	patients := plan.Patients
	if len(patients) == 0 {
		var err error
		if patients, err = arc.Patients(); err != nil {
			return nil, err
		}
	}

	var grid []model.ConditionKey
	for _, p := range patients {
		m, err := arc.Manifest(p)
		if err != nil {
			return nil, err
		}
		for n, nod := range m.Nodules {
			var annotations []int
			if *plan.Annotations {
				for a := range nod.Annotations {
					annotations = append(annotations, a)
				}
			}
			if *plan.Consensus && len(nod.Annotations) > 0 {
				annotations = append(annotations, model.ConsensusAnnotation)
			}
			for _, a := range annotations {
				for _, l := range plan.NumLevels {
					for _, s := range plan.NoiseScales {
						grid = append(grid, model.ConditionKey{
							PatientID: p, NoduleID: n, AnnotationID: a, NumLevels: l, NoiseScale: s,
						})
					}
				}
			}
		}
	}
	return grid, nil
}
