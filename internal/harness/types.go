package harness

import "github.com/roach88/moneymap/internal/graph"

// StepRecord is the outcome of one step.
type StepRecord struct {
	Action string `json:"action"`

	// Error is the validation code the step failed with, "error" for other
	// failures, or empty on success.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step behaved as expected and every assertion held.
	Pass bool `json:"pass"`

	// Steps records each step in order.
	Steps []StepRecord `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Graph is the editor's final state.
	Graph graph.Snapshot `json:"graph"`

	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`

	// Refs maps scenario refs to the ids they finally resolved to.
	Refs map[string]string `json:"refs,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepRecord{},
		Errors: []string{},
		Graph:  graph.Empty(),
		Refs:   make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step outcome.
func (r *Result) AddStep(action, errCode string) {
	r.Steps = append(r.Steps, StepRecord{Action: action, Error: errCode})
}
