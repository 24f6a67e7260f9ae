package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/radcache/internal/model"
	"github.com/roach88/radcache/internal/resolver"
	"github.com/roach88/radcache/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s %v %s\n", event.Seq, event.Type, event.Key, event.Features, event.Outcome)
	}
	return buf.String()
}

// assertTraceCount checks that an event type appears exactly Count times.
func assertTraceCount(result *Result, assertion Assertion) error {
	if got := result.Count(assertion.Event); got != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s events", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d %s events", got, assertion.Event),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertTraceOrder checks that event types appear in the given order.
// Events don't need to be consecutive.
func assertTraceOrder(result *Result, assertion Assertion) error {
	next := 0
	for _, event := range result.Trace {
		if next < len(assertion.Events) && event.Type == assertion.Events[next] {
			next++
		}
	}
	if next < len(assertion.Events) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("events in order %v", assertion.Events),
			Actual:   fmt.Sprintf("matched only %v", assertion.Events[:next]),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFinalState reads the value at Key and Feature from the store.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	key := assertion.Key.Normalize()
	v, ok, err := st.ReadValue(ctx, key, model.FeatureID(assertion.Feature))
	if err != nil {
		return fmt.Errorf("final_state: read %s at %s: %w", assertion.Feature, key, err)
	}

	expected := "absent"
	if assertion.Value != nil {
		expected = fmt.Sprintf("%g", *assertion.Value)
	}
	actual := "absent"
	if ok {
		actual = fmt.Sprintf("%g", v)
	}

	switch {
	case assertion.Absent && !ok:
		return nil
	case assertion.Value != nil && ok && v == *assertion.Value:
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("%s at %s = %s", assertion.Feature, key, expected),
		Actual:   actual,
	}
}

// assertStats compares the resolver counters.
func assertStats(got resolver.Stats, assertion Assertion) error {
	want := resolver.Stats{
		Requests:     assertion.Stats.Requests,
		Hits:         assertion.Stats.Hits,
		Misses:       assertion.Stats.Misses,
		Computations: assertion.Stats.Computations,
	}
	if got != want {
		return &AssertionError{
			Type:     AssertStats,
			Expected: fmt.Sprintf("%+v", want),
			Actual:   fmt.Sprintf("%+v", got),
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	Stats resolver.Stats
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides store access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceCount:
			err = assertTraceCount(result, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires store context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		case AssertStats:
			if actx == nil {
				err = fmt.Errorf("assertion[%d]: stats requires resolver context", i)
			} else {
				err = assertStats(actx.Stats, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
