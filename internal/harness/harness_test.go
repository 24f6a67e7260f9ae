package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/radcache/internal/extract"
	"github.com/roach88/radcache/internal/feature"
	"github.com/roach88/radcache/internal/model"
	"github.com/roach88/radcache/internal/resolver"
	"github.com/roach88/radcache/internal/store"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

var key0 = model.ConditionKey{PatientID: "AA-00", NoduleID: 0, AnnotationID: 0, NumLevels: 16}

func float(v float64) *float64 { return &v }

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "wrong expected value",
		Steps: []Step{{
			Op:       OpResolve,
			Key:      key0,
			Features: []string{"glcm/Contrast"},
			Expect:   &Expect{Outcome: OutcomeOK, Values: map[string]float64{"glcm/Contrast": 1}},
		}},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected glcm/Contrast = 1, got 13")
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected",
		Description: "a step without expect must succeed",
		Steps: []Step{{
			Op:       OpResolve,
			Key:      key0,
			Features: []string{"glcm/Contrast"},
			Engine:   "fail",
		}},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected outcome ok, got error extraction/ENGINE")
}

func TestRun_FailedEngineRecovers(t *testing.T) {
	scenario := &Scenario{
		Name:        "recover",
		Description: "engine failure only affects its own step",
		Steps: []Step{
			{Op: OpResolve, Key: key0, Features: []string{"glcm/Contrast"}, Engine: "fail",
				Expect: &Expect{Outcome: OutcomeError, Error: "extraction/ENGINE"}},
			{Op: OpResolve, Key: key0, Features: []string{"glcm/Contrast"}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Event: EventEngine, Count: 2},
			{Type: AssertFinalState, Key: &key0, Feature: "glcm/Contrast", Value: float(13)},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, OutcomeError, result.Trace[0].Outcome)
	assert.Equal(t, OutcomeOK, result.Trace[2].Outcome)
}

func TestRun_FailingAssertionsReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "assertions",
		Description: "every failing assertion is reported",
		Steps: []Step{
			{Op: OpWrite, Key: key0, Features: []string{"glcm/Contrast"}, Value: float(2)},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Event: EventEngine, Count: 1},
			{Type: AssertFinalState, Key: &key0, Feature: "glcm/Contrast", Absent: true},
			{Type: AssertStats, Stats: &StatsExpect{Requests: 1}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 3)
}

func TestRun_Isolated(t *testing.T) {
	write := &Scenario{
		Name:        "write",
		Description: "stores a value",
		Steps:       []Step{{Op: OpWrite, Key: key0, Features: []string{"glcm/Contrast"}, Value: float(2)}},
	}
	read := &Scenario{
		Name:        "read",
		Description: "a fresh run sees an empty store",
		Steps: []Step{{Op: OpRead, Key: key0, Features: []string{"glcm/Contrast"},
			Expect: &Expect{Outcome: OutcomeOK, Absent: []string{"glcm/Contrast"}}}},
	}

	for _, s := range []*Scenario{write, read} {
		result, err := Run(context.Background(), s)
		require.NoError(t, err)
		assert.True(t, result.Pass, "%s: %v", s.Name, result.Errors)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&feature.InvalidFeatureError{ID: "x/y"}, "invalid_feature"},
		{fmt.Errorf("wrap: %w", model.ErrInvalidKey), "invalid_key"},
		{fmt.Errorf("resolve: %w", resolver.ErrNoComputer), "no_computer"},
		{&extract.ExtractionError{Stage: extract.StageRegion}, "extraction/REGION"},
		{fmt.Errorf("store x: %w", store.ErrNaN), "nan"},
		{&store.ConsistencyError{Rows: 2}, "consistency"},
		{&store.StorageError{Path: "x.db", Message: "bad"}, "storage"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), "%v", tt.err)
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	result := NewResult("test-run-1")
	result.add(TraceEvent{Type: EventEngine, Key: "(AA-00, 0, 0, 16, 0)", Outcome: OutcomeOK})

	err := assertTraceCount(result, Assertion{Type: AssertTraceCount, Event: EventEngine, Count: 2})
	require.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "Assertion failed: trace_count\n"))
	assert.Contains(t, msg, "Expected: 2 engine events")
	assert.Contains(t, msg, "Actual: 1 engine events")
	assert.Contains(t, msg, "[1] engine (AA-00, 0, 0, 16, 0)")
}

func TestAssertTraceOrder(t *testing.T) {
	result := NewResult("r")
	for _, typ := range []string{EventWrite, EventEngine, EventResolve, EventRead} {
		result.add(TraceEvent{Type: typ})
	}

	assert.NoError(t, assertTraceOrder(result, Assertion{Events: []string{EventWrite, EventResolve}}))
	assert.NoError(t, assertTraceOrder(result, Assertion{Events: []string{EventEngine, EventRead}}))
	assert.Error(t, assertTraceOrder(result, Assertion{Events: []string{EventRead, EventWrite}}))
	assert.Error(t, assertTraceOrder(result, Assertion{Events: []string{EventResolve, EventResolve}}))
}
