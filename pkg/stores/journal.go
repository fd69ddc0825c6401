package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/openfroyo/ggfleet/pkg/fleet"
)

func newRunID() string {
	return uuid.New().String()
}

// RecordDeployment journals a deployment attempt. out may be nil when the
// deployment could not be created; deployErr is then the reason.
func (s *SQLiteStore) RecordDeployment(ctx context.Context, group fleet.Group, out *fleet.DeployOutcome, deployErr error) (*Run, error) {
	now := s.now().UTC()
	run := &Run{
		ID:          s.newID(),
		Kind:        RunKindDeploy,
		Group:       group.Name,
		Result:      ResultError,
		StartedAt:   now,
		CompletedAt: now,
		CreatedAt:   now,
	}

	if out != nil {
		if out.Outcome != "" {
			run.Result = string(out.Outcome)
		}
		if out.Deployment.DeploymentID != "" {
			id := out.Deployment.DeploymentID
			run.DeploymentID = &id
		}
		run.Polls = out.Polls
		if !out.StartedAt.IsZero() {
			run.StartedAt = out.StartedAt.UTC()
		}
		if !out.CompletedAt.IsZero() {
			run.CompletedAt = out.CompletedAt.UTC()
		}
		if out.ErrorMessage != "" {
			msg := out.ErrorMessage
			run.Error = &msg
		}
	}
	if deployErr != nil {
		run.Result = ResultError
		msg := deployErr.Error()
		run.Error = &msg
	}

	if err := insertRun(ctx, s.db, run); err != nil {
		return nil, err
	}
	return run, nil
}

// RecordTeardown journals a teardown report with one row per step.
func (s *SQLiteStore) RecordTeardown(ctx context.Context, report *fleet.TeardownReport) (*Run, error) {
	run := &Run{
		ID:          s.newID(),
		Kind:        RunKindTeardown,
		Group:       report.Group,
		Result:      string(report.Result()),
		StartedAt:   report.StartedAt.UTC(),
		CompletedAt: report.CompletedAt.UTC(),
		CreatedAt:   s.now().UTC(),
	}
	if failed := report.Failed(); len(failed) > 0 {
		names := make([]string, len(failed))
		for i, f := range failed {
			names[i] = string(f.Step)
		}
		msg := "failed steps: " + strings.Join(names, ", ")
		run.Error = &msg
	}

	for i, st := range report.Steps {
		rec := &StepRecord{
			RunID:    run.ID,
			Seq:      i + 1,
			Step:     string(st.Step),
			Outcome:  string(st.Outcome),
			Resource: st.Resource,
			Detail:   st.Detail,
		}
		if st.Class != "" {
			class := string(st.Class)
			rec.Class = &class
		}
		if st.Err != nil {
			msg := st.Err.Error()
			rec.Error = &msg
		}
		run.Steps = append(run.Steps, rec)
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := insertRun(ctx, tx, run); err != nil {
		_ = s.RollbackTx(tx)
		return nil, err
	}
	for _, rec := range run.Steps {
		if err := insertStep(ctx, tx, rec); err != nil {
			_ = s.RollbackTx(tx)
			return nil, err
		}
	}

	if err := s.CommitTx(tx); err != nil {
		return nil, fmt.Errorf("failed to commit teardown run: %w", err)
	}
	return run, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRun(ctx context.Context, db execer, run *Run) error {
	query := `
		INSERT INTO runs (id, kind, group_name, result, deployment_id, polls, error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		run.ID,
		run.Kind,
		run.Group,
		run.Result,
		run.DeploymentID,
		run.Polls,
		run.Error,
		run.StartedAt,
		run.CompletedAt,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func insertStep(ctx context.Context, db execer, rec *StepRecord) error {
	query := `
		INSERT INTO run_steps (run_id, seq, step, outcome, resource, detail, class, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query,
		rec.RunID,
		rec.Seq,
		rec.Step,
		rec.Outcome,
		rec.Resource,
		rec.Detail,
		rec.Class,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create step %s: %w", rec.Step, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get step id: %w", err)
	}
	rec.ID = id
	return nil
}

const runColumns = `id, kind, group_name, result, deployment_id, polls, error, started_at, completed_at, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	err := row.Scan(
		&run.ID,
		&run.Kind,
		&run.Group,
		&run.Result,
		&run.DeploymentID,
		&run.Polls,
		&run.Error,
		&run.StartedAt,
		&run.CompletedAt,
		&run.CreatedAt,
	)
	return run, err
}

// GetRun retrieves a run by ID, including its steps.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	steps, err := s.listSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Steps = steps
	return run, nil
}

func (s *SQLiteStore) listSteps(ctx context.Context, runID string) ([]*StepRecord, error) {
	query := `
		SELECT id, run_id, seq, step, outcome, resource, detail, class, error
		FROM run_steps
		WHERE run_id = ?
		ORDER BY seq
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	steps := []*StepRecord{}
	for rows.Next() {
		rec := &StepRecord{}
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Seq,
			&rec.Step,
			&rec.Outcome,
			&rec.Resource,
			&rec.Detail,
			&rec.Class,
			&rec.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}
	return steps, nil
}

// ListRuns lists runs newest first. Steps are not loaded.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	var (
		where []string
		args  []any
	)
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Group != "" {
		where = append(where, "group_name = ?")
		args = append(args, filter.Group)
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	query += ` ORDER BY started_at DESC, created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}
