package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/radcache/internal/model"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Known lists feature ids whose columns exist when the store opens.
	Known []string `yaml:"known,omitempty"`

	// Engine configures the spy engine.
	Engine EngineConfig `yaml:"engine,omitempty"`

	// Steps run in order against one store.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace, store and counters.
	Assertions []Assertion `yaml:"assertions"`
}

// EngineConfig configures the spy engine's results.
type EngineConfig struct {
	// Values fixes results by engine result key ("glcm_Contrast").
	// Other keys yield the length of the result key.
	Values map[string]float64 `yaml:"values,omitempty"`

	// Omit lists result keys the engine leaves out of its output.
	Omit []string `yaml:"omit,omitempty"`
}

// Step operations.
const (
	OpWrite   = "write"
	OpRead    = "read"
	OpResolve = "resolve"
)

// Step is one operation against the cache.
type Step struct {
	Op       string             `yaml:"op"`
	Key      model.ConditionKey `yaml:"key"`
	Features []string           `yaml:"features"`

	// Value is the value stored by a write step.
	Value *float64 `yaml:"value,omitempty"`

	// Engine is "ok" (default) or "fail" for resolve steps.
	Engine string `yaml:"engine,omitempty"`

	// Expect checks the step's outcome. If nil, the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Outcome is "ok" or "error".
	Outcome string `yaml:"outcome"`

	// Error is the expected error kind when Outcome is "error".
	Error string `yaml:"error,omitempty"`

	// Values are expected values by feature id (subset match).
	Values map[string]float64 `yaml:"values,omitempty"`

	// Absent lists feature ids a read step must not find.
	Absent []string `yaml:"absent,omitempty"`
}

// Assertion validates the trace, the final store state, or the counters.
type Assertion struct {
	// Type is one of trace_count, trace_order, final_state, stats.
	Type string `yaml:"type"`

	// Event is the event type counted by trace_count.
	Event string `yaml:"event,omitempty"`

	// Count is the expected number of events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected event type order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Key and Feature locate the value checked by final_state.
	Key     *model.ConditionKey `yaml:"key,omitempty"`
	Feature string              `yaml:"feature,omitempty"`

	// Value is the expected stored value; Absent expects none (final_state).
	Value  *float64 `yaml:"value,omitempty"`
	Absent bool     `yaml:"absent,omitempty"`

	// Stats are the expected resolver counters (stats).
	Stats *StatsExpect `yaml:"stats,omitempty"`
}

// StatsExpect mirrors resolver.Stats for scenario files.
type StatsExpect struct {
	Requests     int `yaml:"requests"`
	Hits         int `yaml:"hits"`
	Misses       int `yaml:"misses"`
	Computations int `yaml:"computations"`
}

// Assertion type constants.
const (
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
	AssertFinalState = "final_state"
	AssertStats      = "stats"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	switch s.Op {
	case OpWrite:
		if len(s.Features) != 1 {
			return fmt.Errorf("steps[%d]: write takes exactly one feature", index)
		}
		if s.Value == nil {
			return fmt.Errorf("steps[%d]: value is required for write", index)
		}
	case OpRead, OpResolve:
		if s.Value != nil {
			return fmt.Errorf("steps[%d]: value is only allowed for write", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}

	switch s.Engine {
	case "", "ok":
	case "fail":
		if s.Op != OpResolve {
			return fmt.Errorf("steps[%d]: engine is only allowed for resolve", index)
		}
	default:
		return fmt.Errorf("steps[%d]: engine must be ok or fail, got %q", index, s.Engine)
	}

	if s.Expect != nil {
		switch s.Expect.Outcome {
		case OutcomeOK, OutcomeError:
		default:
			return fmt.Errorf("steps[%d].expect: outcome must be ok or error", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertFinalState:
		if a.Key == nil || a.Feature == "" {
			return fmt.Errorf("assertions[%d]: key and feature are required for final_state", index)
		}
		if (a.Value == nil) == !a.Absent {
			return fmt.Errorf("assertions[%d]: final_state needs exactly one of value or absent", index)
		}
	case AssertStats:
		if a.Stats == nil {
			return fmt.Errorf("assertions[%d]: stats is required for stats", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func ids(features []string) []model.FeatureID {
	out := make([]model.FeatureID, len(features))
	for i, f := range features {
		out[i] = model.FeatureID(f)
	}
	return out
}
