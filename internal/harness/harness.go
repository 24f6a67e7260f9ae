package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/radcache/internal/extract"
	"github.com/roach88/radcache/internal/feature"
	"github.com/roach88/radcache/internal/model"
	"github.com/roach88/radcache/internal/resolver"
	"github.com/roach88/radcache/internal/store"
	"github.com/roach88/radcache/internal/testutil"
	"github.com/roach88/radcache/internal/volume"
)

// Harness executes one scenario against a fresh store.
type Harness struct {
	store     *store.Store
	resolver  *resolver.Resolver
	engine    *testutil.SpyEngine
	extractor *extract.Context
	registry  *feature.Registry
	result    *Result
	current   string // key of the step being executed
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against its own store in a temporary directory,
// which is removed afterwards. A returned error means the scenario could
// not be executed at all; failed expectations are reported in the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "radcache-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "features.db"), ids(scenario.Known)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	spy := testutil.NewSpyEngine(scenario.Engine.Values)
	if len(scenario.Engine.Omit) > 0 {
		spy.Omit = make(map[string]bool, len(scenario.Engine.Omit))
		for _, k := range scenario.Engine.Omit {
			spy.Omit[k] = true
		}
	}

	h := &Harness{
		store:    st,
		engine:   spy,
		registry: feature.Default(),
		result:   NewResult(testutil.NewSequentialTokens("").Generate()),
	}
	h.resolver = resolver.New(st, h.registry, logger)
	h.extractor = &extract.Context{
		Regions: cubeRegions{},
		Engine:  extract.EngineFunc(h.executeEngine),
		WorkDir: filepath.Join(dir, "work"),
		Logger:  logger,
	}

	for i, step := range scenario.Steps {
		ev := h.executeStep(ctx, step)
		h.result.add(ev)
		if msg := checkExpect(i, step, ev); msg != "" {
			h.result.AddError(msg)
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx, Stats: h.resolver.Stats()}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) executeStep(ctx context.Context, step Step) TraceEvent {
	key := step.Key.Normalize()
	h.current = key.String()
	ev := TraceEvent{Type: step.Op, Key: h.current, Features: step.Features, Outcome: OutcomeOK}

	var err error
	switch step.Op {
	case OpWrite:
		err = h.store.WriteValue(ctx, key, model.FeatureID(step.Features[0]), *step.Value)
		if err == nil {
			ev.Values = map[string]*float64{step.Features[0]: step.Value}
		}
	case OpRead:
		ev.Values, err = h.read(ctx, key, step.Features)
	case OpResolve:
		if step.Engine == "fail" {
			h.engine.SetFail(true)
			defer h.engine.SetFail(false)
		}
		var values []float64
		values, err = h.resolver.Resolve(ctx, ids(step.Features), key, h.extractor)
		if err == nil {
			ev.Values = make(map[string]*float64, len(values))
			for i, f := range step.Features {
				v := values[i]
				ev.Values[f] = &v
			}
		}
	}
	if err != nil {
		ev.Outcome = OutcomeError
		ev.Error = ErrorKind(err)
		ev.Values = nil
	}
	return ev
}

func (h *Harness) read(ctx context.Context, key model.ConditionKey, features []string) (map[string]*float64, error) {
	if err := h.registry.Validate(ids(features)); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	out := make(map[string]*float64, len(features))
	for _, f := range features {
		v, ok, err := h.store.ReadValue(ctx, key, model.FeatureID(f))
		if err != nil {
			return nil, err
		}
		if ok {
			out[f] = &v
		} else {
			out[f] = nil
		}
	}
	return out, nil
}

// executeEngine records an engine event and delegates to the spy.
func (h *Harness) executeEngine(ctx context.Context, req extract.Request) (map[string]float64, error) {
	var features []string
	for class, names := range req.Features {
		for _, name := range names {
			features = append(features, class+model.FeatureSeparator+name)
		}
	}
	sort.Strings(features)

	out, err := h.engine.Execute(ctx, req)
	ev := TraceEvent{Type: EventEngine, Key: h.current, Features: features, Outcome: OutcomeOK}
	if err != nil {
		ev.Outcome = OutcomeError
	}
	h.result.add(ev)
	return out, err
}

// ErrorKind names the class of err as it appears in traces.
func ErrorKind(err error) string {
	var ee *extract.ExtractionError
	switch {
	case err == nil:
		return ""
	case feature.IsInvalidFeature(err):
		return "invalid_feature"
	case errors.Is(err, model.ErrInvalidKey):
		return "invalid_key"
	case errors.Is(err, resolver.ErrNoComputer):
		return "no_computer"
	case errors.As(err, &ee):
		return "extraction/" + string(ee.Stage)
	case errors.Is(err, store.ErrNaN):
		return "nan"
	case store.IsConsistencyError(err):
		return "consistency"
	case store.IsStorageError(err):
		return "storage"
	default:
		return "other"
	}
}

// checkExpect compares ev with the step's expect clause and returns a
// failure message, or "" if it holds.
func checkExpect(index int, step Step, ev TraceEvent) string {
	want := step.Expect
	if want == nil {
		want = &Expect{Outcome: OutcomeOK}
	}
	if ev.Outcome != want.Outcome {
		return fmt.Sprintf("steps[%d] %s: expected outcome %s, got %s %s", index, step.Op, want.Outcome, ev.Outcome, ev.Error)
	}
	if want.Error != "" && ev.Error != want.Error {
		return fmt.Sprintf("steps[%d] %s: expected error %s, got %s", index, step.Op, want.Error, ev.Error)
	}
	for _, f := range sortedKeys(want.Values) {
		got := ev.Values[f]
		if got == nil {
			return fmt.Sprintf("steps[%d] %s: expected %s = %g, got no value", index, step.Op, f, want.Values[f])
		}
		if *got != want.Values[f] {
			return fmt.Sprintf("steps[%d] %s: expected %s = %g, got %g", index, step.Op, f, want.Values[f], *got)
		}
	}
	for _, f := range want.Absent {
		if got := ev.Values[f]; got != nil {
			return fmt.Sprintf("steps[%d] %s: expected %s absent, got %g", index, step.Op, f, *got)
		}
	}
	return ""
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// cubeRegions serves the same small cube for every annotation.
type cubeRegions struct{}

func (cubeRegions) Region(context.Context, string, int, int) (*volume.Region, error) {
	return testutil.CubeRegion(5, -1000, 100), nil
}
