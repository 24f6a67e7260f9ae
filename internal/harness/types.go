package harness

// Event types recorded in a trace.
const (
	EventWrite   = "write"
	EventRead    = "read"
	EventResolve = "resolve"
	EventEngine  = "engine"
)

// Step outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// TraceEvent is one recorded step or engine call.
type TraceEvent struct {
	Seq      int64    `json:"seq"`
	Type     string   `json:"type"`
	Key      string   `json:"key"`
	Features []string `json:"features,omitempty"`
	Outcome  string   `json:"outcome"`

	// Values holds the step's values by feature id. Absent reads are null.
	Values map[string]*float64 `json:"values,omitempty"`

	// Error is the error kind (see ErrorKind), not the message.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// RunID identifies the execution.
	RunID string `json:"run_id"`

	// Trace contains every recorded event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(runID string) *Result {
	return &Result{
		Pass:   true,
		RunID:  runID,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// add appends ev with the next sequence number.
func (r *Result) add(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}

// Count returns how many events of type typ the trace holds.
func (r *Result) Count(typ string) int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Type == typ {
			n++
		}
	}
	return n
}
