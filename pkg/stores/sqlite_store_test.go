package stores

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/openfroyo/ggfleet/pkg/fleet"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	n := 0
	store.newID = func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("health check before Init should fail")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"runs", "run_steps", "audit"} {
		var count int
		if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// Running again is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestOpenFileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ggfleet.db")

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := store.RecordDeployment(ctx, fleet.Group{Name: "alpha"}, nil, errors.New("denied")); err != nil {
		t.Fatalf("RecordDeployment() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	runs, err := reopened.ListRuns(ctx, RunFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Group != "alpha" {
		t.Errorf("runs after reopen = %+v", runs)
	}
}

func TestRecordDeployment(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	out := &fleet.DeployOutcome{
		Group: fleet.Group{ID: "g1", Name: "alpha"},
		Deployment: fleet.Deployment{
			GroupID:        "g1",
			GroupVersionID: "v1",
			DeploymentID:   "dep-1",
		},
		Outcome:      fleet.OutcomeFailure,
		ErrorMessage: "core offline",
		Polls:        2,
		StartedAt:    started,
		CompletedAt:  started.Add(2 * time.Second),
	}

	run, err := store.RecordDeployment(ctx, out.Group, out, nil)
	if err != nil {
		t.Fatalf("RecordDeployment() error = %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Kind != RunKindDeploy || got.Result != "failure" || got.Polls != 2 {
		t.Errorf("run = %+v", got)
	}
	if got.DeploymentID == nil || *got.DeploymentID != "dep-1" {
		t.Errorf("deployment id = %v", got.DeploymentID)
	}
	if got.Error == nil || *got.Error != "core offline" {
		t.Errorf("error = %v", got.Error)
	}
	if !got.StartedAt.Equal(started) || !got.CompletedAt.Equal(started.Add(2*time.Second)) {
		t.Errorf("times = %v .. %v", got.StartedAt, got.CompletedAt)
	}
	if len(got.Steps) != 0 {
		t.Errorf("deploy run has %d steps", len(got.Steps))
	}
}

func TestRecordDeploymentError(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run, err := store.RecordDeployment(ctx, fleet.Group{Name: "alpha"}, nil, errors.New("throttled"))
	if err != nil {
		t.Fatalf("RecordDeployment() error = %v", err)
	}
	if run.Result != ResultError || run.DeploymentID != nil {
		t.Errorf("run = %+v", run)
	}
	if run.Error == nil || *run.Error != "throttled" {
		t.Errorf("error = %v", run.Error)
	}
}

func TestRecordTeardown(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cause := fleet.Remote("DeleteThing", "alpha_Core", errors.New("throttled"))
	report := &fleet.TeardownReport{
		Group: "alpha",
		Steps: []fleet.StepResult{
			{Step: fleet.StepCoreDefinition, Outcome: fleet.StepSkipped, Resource: "alpha_Core_Definition", Detail: "not found",
				Class: fleet.ErrorClassNotFound, Err: fleet.NotFound("ResolveCoreDefinition", "alpha_Core_Definition", nil)},
			{Step: fleet.StepPrincipals, Outcome: fleet.StepOK, Resource: "alpha_Core", Detail: "1 principal(s) released"},
			{Step: fleet.StepCoreThing, Outcome: fleet.StepFailed, Resource: "alpha_Core", Class: fleet.ErrorClassRemote, Err: cause},
			{Step: fleet.StepGroup, Outcome: fleet.StepOK, Resource: "alpha", Detail: "group deleted"},
		},
		StartedAt:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		CompletedAt: time.Date(2024, 5, 1, 10, 0, 3, 0, time.UTC),
	}

	run, err := store.RecordTeardown(ctx, report)
	if err != nil {
		t.Fatalf("RecordTeardown() error = %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Result != "partial" || got.Error == nil || *got.Error != "failed steps: core_thing" {
		t.Errorf("run = %+v", got)
	}

	type row struct {
		Seq                         int
		Step, Outcome, Class, Error string
	}
	var rows []row
	for _, s := range got.Steps {
		r := row{Seq: s.Seq, Step: s.Step, Outcome: s.Outcome}
		if s.Class != nil {
			r.Class = *s.Class
		}
		if s.Error != nil {
			r.Error = *s.Error
		}
		rows = append(rows, r)
	}
	want := []row{
		{1, "core_definition", "skipped", "not_found", "[not_found] ResolveCoreDefinition (resource=alpha_Core_Definition)"},
		{2, "principals", "ok", "", ""},
		{3, "core_thing", "failed", "remote", "[remote] DeleteThing (resource=alpha_Core): throttled"},
		{4, "group", "ok", "", ""},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestListRunsFilters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, name := range []string{"alpha", "beta", "alpha"} {
		out := &fleet.DeployOutcome{
			Outcome:     fleet.OutcomeSuccess,
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			CompletedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := store.RecordDeployment(ctx, fleet.Group{Name: name}, out, nil); err != nil {
			t.Fatal(err)
		}
	}
	report := &fleet.TeardownReport{Group: "alpha", StartedAt: base.Add(time.Hour), CompletedAt: base.Add(time.Hour)}
	if _, err := store.RecordTeardown(ctx, report); err != nil {
		t.Fatal(err)
	}

	ids := func(runs []*Run) []string {
		var out []string
		for _, r := range runs {
			out = append(out, r.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter RunFilter
		want   []string
	}{
		{"all newest first", RunFilter{}, []string{"run-4", "run-3", "run-2", "run-1"}},
		{"by group", RunFilter{Group: "alpha"}, []string{"run-4", "run-3", "run-1"}},
		{"by kind", RunFilter{Kind: RunKindDeploy, Group: "alpha"}, []string{"run-3", "run-1"}},
		{"teardowns", RunFilter{Kind: RunKindTeardown}, []string{"run-4"}},
		{"paged", RunFilter{Limit: 2, Offset: 1}, []string{"run-3", "run-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := store.ListRuns(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListRuns() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, ids(runs)); diff != "" {
				t.Errorf("ListRuns() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAuditEntries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	group := "prod-eu"
	details := `{"reasons":["group is protected"]}`
	entries := []*AuditEntry{
		{Action: "teardown.denied", Actor: "ops", TargetID: &group, Details: &details, Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{Action: "teardown.allowed", Actor: "ops", Timestamp: time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)},
	}
	for _, e := range entries {
		if err := store.CreateAuditEntry(ctx, e); err != nil {
			t.Fatalf("CreateAuditEntry() error = %v", err)
		}
		if e.ID == 0 {
			t.Error("entry ID not set")
		}
	}

	all, err := store.ListAuditEntries(ctx, nil, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Action != "teardown.allowed" {
		t.Errorf("ListAuditEntries() = %+v", all)
	}

	action := "teardown.denied"
	denied, err := store.ListAuditEntries(ctx, &action, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(denied) != 1 || denied[0].TargetID == nil || *denied[0].TargetID != "prod-eu" {
		t.Errorf("denied entries = %+v", denied)
	}
}
