package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that should block operations.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// blocks reports whether a violation of this severity denies the operation.
func (s Severity) blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Operation is the fleet operation a request asks permission for.
type Operation string

const (
	OperationDeploy   Operation = "deploy"
	OperationTeardown Operation = "teardown"
)

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. The package must define a
	// deny set; rules are written with `import rego.v1`.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Request is the input document of a policy evaluation.
type Request struct {
	// Operation is the operation about to run.
	Operation Operation `json:"operation"`

	// Group is the name of the target group.
	Group string `json:"group"`

	// Actor identifies who runs the command.
	Actor string `json:"actor,omitempty"`

	// ProtectedGroups are glob patterns from the configuration.
	ProtectedGroups []string `json:"protected_groups"`

	// Timestamp is when the request was made.
	Timestamp time.Time `json:"timestamp"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Group is the group the violation refers to.
	Group string `json:"group,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Decision is the result of a guard check.
type Decision struct {
	// Allowed indicates if the operation may run.
	Allowed bool `json:"allowed"`

	// Violations lists the blocking violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists violations that do not block the operation.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Reasons returns the messages of the blocking violations.
func (d *Decision) Reasons() []string {
	reasons := make([]string, 0, len(d.Violations))
	for _, v := range d.Violations {
		reasons = append(reasons, v.Message)
	}
	return reasons
}
