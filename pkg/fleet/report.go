package fleet

import (
	"encoding/json"
	"time"
)

// StepName identifies a teardown step.
type StepName string

// Teardown steps, in execution order.
const (
	StepCoreDefinition StepName = "core_definition"
	StepPrincipals     StepName = "principals"
	StepCoreThing      StepName = "core_thing"
	StepGroup          StepName = "group"
)

// Steps lists the teardown steps in execution order.
var Steps = []StepName{StepCoreDefinition, StepPrincipals, StepCoreThing, StepGroup}

// StepOutcome is the result of one teardown step.
type StepOutcome string

const (
	// StepOK means the step deleted what it targeted.
	StepOK StepOutcome = "ok"

	// StepSkipped means the targeted resource did not exist.
	StepSkipped StepOutcome = "skipped"

	// StepFailed means the control plane (or the client) returned an error
	// other than not-found.
	StepFailed StepOutcome = "failed"
)

// StepResult records how a teardown step ended.
type StepResult struct {
	Step     StepName    `json:"step"`
	Outcome  StepOutcome `json:"outcome"`
	Resource string      `json:"resource,omitempty"`
	Detail   string      `json:"detail,omitempty"`

	// Class is set when Err is set.
	Class ErrorClass `json:"class,omitempty"`
	Err   error      `json:"-"`
}

// MarshalJSON includes the error message.
func (r StepResult) MarshalJSON() ([]byte, error) {
	type alias StepResult
	var msg string
	if r.Err != nil {
		msg = r.Err.Error()
	}
	return json.Marshal(struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias: alias(r), Error: msg})
}

// Unexpected reports whether the step failed for a reason that did not come
// from the control plane, which usually points to a bug rather than a
// resource problem.
func (r StepResult) Unexpected() bool {
	return r.Outcome == StepFailed && r.Class == ErrorClassInternal
}

// TeardownResult summarizes a whole teardown.
type TeardownResult string

const (
	// TeardownComplete means no step failed and at least one deleted something.
	TeardownComplete TeardownResult = "complete"

	// TeardownNothingToDo means every step was skipped.
	TeardownNothingToDo TeardownResult = "nothing_to_delete"

	// TeardownPartial means at least one step failed.
	TeardownPartial TeardownResult = "partial"
)

// TeardownReport aggregates the step results of one teardown.
type TeardownReport struct {
	Group       string       `json:"group"`
	Steps       []StepResult `json:"steps"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
}

// Step returns the result of the named step.
func (r *TeardownReport) Step(name StepName) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Failed returns the failed steps.
func (r *TeardownReport) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if s.Outcome == StepFailed {
			failed = append(failed, s)
		}
	}
	return failed
}

// Result summarizes the report.
func (r *TeardownReport) Result() TeardownResult {
	if len(r.Failed()) > 0 {
		return TeardownPartial
	}
	for _, s := range r.Steps {
		if s.Outcome == StepOK {
			return TeardownComplete
		}
	}
	return TeardownNothingToDo
}
