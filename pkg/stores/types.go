package stores

import (
	"context"
	"database/sql"
	"time"

	"github.com/openfroyo/ggfleet/pkg/fleet"
)

// RunKind distinguishes deployments from teardowns.
type RunKind string

const (
	RunKindDeploy   RunKind = "deploy"
	RunKindTeardown RunKind = "teardown"
)

// ResultError is the result of a deployment that ended with an error instead
// of an observed outcome.
const ResultError = "error"

// Run is one journaled deployment or teardown.
type Run struct {
	ID           string    `json:"id"`
	Kind         RunKind   `json:"kind"`
	Group        string    `json:"group"`
	Result       string    `json:"result"`
	DeploymentID *string   `json:"deployment_id,omitempty"`
	Polls        int       `json:"polls,omitempty"`
	Error        *string   `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	CreatedAt    time.Time `json:"created_at"`

	// Steps is only loaded by GetRun.
	Steps []*StepRecord `json:"steps,omitempty"`
}

// StepRecord is one teardown step of a run.
type StepRecord struct {
	ID       int64   `json:"id"`
	RunID    string  `json:"run_id"`
	Seq      int     `json:"seq"`
	Step     string  `json:"step"`
	Outcome  string  `json:"outcome"`
	Resource string  `json:"resource,omitempty"`
	Detail   string  `json:"detail,omitempty"`
	Class    *string `json:"class,omitempty"`
	Error    *string `json:"error,omitempty"`
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Kind   RunKind
	Group  string
	Limit  int
	Offset int
}

// AuditEntry represents an audit trail entry
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`              // e.g., "teardown.denied", "teardown.allowed"
	Actor     string    `json:"actor"`               // user or system identifier
	TargetID  *string   `json:"target_id,omitempty"` // group name
	Details   *string   `json:"details,omitempty"`   // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// Journal records deployments and teardowns.
type Journal interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Run operations
	RecordDeployment(ctx context.Context, group fleet.Group, out *fleet.DeployOutcome, deployErr error) (*Run, error)
	RecordTeardown(ctx context.Context, report *fleet.TeardownReport) (*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)

	// Audit operations
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, action *string, limit, offset int) ([]*AuditEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
