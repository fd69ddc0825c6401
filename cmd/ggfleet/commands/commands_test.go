package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/openfroyo/ggfleet/pkg/config"
	"github.com/openfroyo/ggfleet/pkg/fleet"
	"github.com/openfroyo/ggfleet/pkg/fleet/fleettest"
	"github.com/openfroyo/ggfleet/pkg/stores"
)

const testConfig = `
deploy:
  attempts: 3
  interval: 1ms
teardown:
  protected_groups:
    - "prod-*"
  policy_paths:
    - %p
journal:
  path: %s
telemetry:
  logging:
    level: error
  metrics:
    enabled: false
`

// newTestCLI installs plane as the control plane and writes a config file
// with a journal and an empty site policy directory in a temp directory. It
// returns the config path.
func newTestCLI(t *testing.T, plane *fleettest.Plane) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "ggfleet.yaml")
	policies := filepath.Join(dir, "policies")
	if err := os.Mkdir(policies, 0o700); err != nil {
		t.Fatalf("failed to create policy dir: %v", err)
	}
	content := strings.NewReplacer(
		"%s", filepath.Join(dir, "journal.db"),
		"%p", policies,
	).Replace(testConfig)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	prev := openPlane
	openPlane = func(context.Context, *config.Config) (remotePlane, error) {
		return plane, nil
	}
	t.Cleanup(func() { openPlane = prev })

	return path
}

// writeSitePolicy adds a Rego policy next to the config written by newTestCLI.
func writeSitePolicy(t *testing.T, cfgPath, name, module string) {
	t.Helper()
	path := filepath.Join(filepath.Dir(cfgPath), "policies", name+".rego")
	if err := os.WriteFile(path, []byte(module), 0o600); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand("test", "none", "now")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGroupsCommand(t *testing.T) {
	plane := fleettest.NewPlane()
	a := plane.AddGroup("alpha")
	b := plane.AddGroup("beta")
	cfgPath := newTestCLI(t, plane)

	out, err := run(t, cfgPath, "groups", "--json")
	if err != nil {
		t.Fatalf("groups failed: %v", err)
	}

	var got []fleet.Group
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if diff := cmp.Diff([]fleet.Group{a, b}, got); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
}

func TestCoreDefinitionsCommandSkipsUnnamed(t *testing.T) {
	plane := fleettest.NewPlane()
	plane.Provision("alpha", "c1")
	plane.AddCoreDefinition("")
	cfgPath := newTestCLI(t, plane)

	out, err := run(t, cfgPath, "core-definitions")
	if err != nil {
		t.Fatalf("core-definitions failed: %v", err)
	}
	if diff := cmp.Diff("alpha_Core_Definition\n", out); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestShadowCommand(t *testing.T) {
	plane := fleettest.NewPlane()
	plane.Provision("alpha", "c1")
	plane.SetShadow("alpha_Core", []byte(`{"state":{"reported":{"ok":true}}}`))
	cfgPath := newTestCLI(t, plane)

	out, err := run(t, cfgPath, "shadow", "alpha")
	if err != nil {
		t.Fatalf("shadow failed: %v", err)
	}
	if !strings.Contains(out, `"reported": {`) {
		t.Errorf("expected indented shadow, got:\n%s", out)
	}

	out, err = run(t, cfgPath, "shadow", "beta")
	if err != nil {
		t.Fatalf("shadow of missing core failed: %v", err)
	}
	if out != "{}\n" {
		t.Errorf("missing shadow = %q, want {}", out)
	}
}

func TestDeployCommand(t *testing.T) {
	plane := fleettest.NewPlane()
	g := plane.AddGroup("alpha")
	plane.ScriptStatuses(g.ID,
		fleet.DeploymentState{Status: fleet.DeploymentStatusInProgress},
		fleet.DeploymentState{Status: fleet.DeploymentStatusSuccess},
	)
	cfgPath := newTestCLI(t, plane)

	out, err := run(t, cfgPath, "deploy", "alpha", "--json")
	if err != nil {
		t.Fatalf("deploy failed: %v", err)
	}

	var lines []deployLine
	if err := json.Unmarshal([]byte(out), &lines); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Outcome != "success" || lines[0].Polls != 2 {
		t.Errorf("unexpected line: %+v", lines[0])
	}
	if lines[0].RunID == "" {
		t.Error("expected the deployment to be journaled")
	}

	out, err = run(t, cfgPath, "history", "--json", "--kind", "deploy")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var runs []*stores.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("history output is not JSON: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].ID != lines[0].RunID || runs[0].Result != "success" {
		t.Errorf("unexpected history: %+v", runs)
	}
}

func TestDeployCommandFailure(t *testing.T) {
	plane := fleettest.NewPlane()
	g := plane.AddGroup("alpha")
	plane.ScriptStatuses(g.ID, fleet.DeploymentState{
		Status:       fleet.DeploymentStatusFailure,
		ErrorMessage: "core offline",
	})
	cfgPath := newTestCLI(t, plane)

	out, err := run(t, cfgPath, "deploy", "alpha")
	if !errors.Is(err, errDeploymentFailed) {
		t.Fatalf("expected errDeploymentFailed, got %v", err)
	}
	if !strings.Contains(out, "core offline") {
		t.Errorf("expected the error message in output, got:\n%s", out)
	}
}

func TestDeployCommandTimeoutIsNotAnError(t *testing.T) {
	plane := fleettest.NewPlane()
	g := plane.AddGroup("alpha")
	plane.ScriptStatuses(g.ID, fleet.DeploymentState{Status: fleet.DeploymentStatusInProgress})
	cfgPath := newTestCLI(t, plane)

	out, err := run(t, cfgPath, "deploy", "alpha")
	if err != nil {
		t.Fatalf("deploy failed: %v", err)
	}
	if !strings.Contains(out, "timed_out") {
		t.Errorf("expected timed_out, got:\n%s", out)
	}
	if n := plane.CallCount("GetDeploymentStatus"); n != 3 {
		t.Errorf("expected 3 polls, got %d", n)
	}
}

func TestDeployCommandArgs(t *testing.T) {
	cfgPath := newTestCLI(t, fleettest.NewPlane())

	if _, err := run(t, cfgPath, "deploy"); err == nil {
		t.Error("expected an error without a group")
	}
	if _, err := run(t, cfgPath, "deploy", "alpha", "--all"); err == nil {
		t.Error("expected an error for a group with --all")
	}
}

func TestDeleteCommand(t *testing.T) {
	plane := fleettest.NewPlane()
	plane.Provision("alpha", "c1", "c2")
	cfgPath := newTestCLI(t, plane)

	out, err := run(t, cfgPath, "delete", "alpha", "--json")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !strings.Contains(out, `"step": "group"`) {
		t.Errorf("expected a step report, got:\n%s", out)
	}
	if plane.HasGroup("alpha") || plane.HasThing("alpha_Core") || plane.HasPolicy("alpha_Core_Policy") {
		t.Error("expected all resources to be deleted")
	}

	out, err = run(t, cfgPath, "history", "--json", "--kind", "teardown", "--group", "alpha")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var runs []*stores.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("history output is not JSON: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].Result != string(fleet.TeardownComplete) {
		t.Fatalf("unexpected history: %+v", runs)
	}

	out, err = run(t, cfgPath, "history", runs[0].ID)
	if err != nil {
		t.Fatalf("history of run failed: %v", err)
	}
	for _, step := range fleet.Steps {
		if !strings.Contains(out, string(step)) {
			t.Errorf("expected step %s in output:\n%s", step, out)
		}
	}

	out, err = run(t, cfgPath, "history", "--audit", "--json")
	if err != nil {
		t.Fatalf("audit history failed: %v", err)
	}
	if !strings.Contains(out, "teardown.allowed") {
		t.Errorf("expected an allowed audit entry, got:\n%s", out)
	}
}

func TestDeleteCommandPartial(t *testing.T) {
	plane := fleettest.NewPlane()
	plane.Provision("alpha", "c1")
	plane.FailOn("DeleteCoreDefinition", errors.New("throttled"))
	cfgPath := newTestCLI(t, plane)

	out, err := run(t, cfgPath, "delete", "alpha")
	if !errors.Is(err, errTeardownIncomplete) {
		t.Fatalf("expected errTeardownIncomplete, got %v", err)
	}
	if !strings.Contains(out, "partial") {
		t.Errorf("expected a partial report, got:\n%s", out)
	}
	if plane.HasGroup("alpha") {
		t.Error("later steps should still delete the group")
	}
}

func TestDeleteCommandProtectedGroup(t *testing.T) {
	plane := fleettest.NewPlane()
	plane.Provision("prod-eu", "c1")
	cfgPath := newTestCLI(t, plane)

	_, err := run(t, cfgPath, "delete", "prod-eu")
	if !errors.Is(err, errTeardownDenied) {
		t.Fatalf("expected errTeardownDenied, got %v", err)
	}
	if !plane.HasGroup("prod-eu") || !plane.HasThing("prod-eu_Core") {
		t.Error("a denied teardown must not delete anything")
	}
	for _, op := range plane.Ops() {
		if strings.HasPrefix(op, "Delete") || strings.HasPrefix(op, "Detach") {
			t.Errorf("unexpected call %s", op)
		}
	}

	out, err := run(t, cfgPath, "history", "--audit")
	if err != nil {
		t.Fatalf("audit history failed: %v", err)
	}
	if !strings.Contains(out, "teardown.denied") {
		t.Errorf("expected a denied audit entry, got:\n%s", out)
	}
}

func TestDeleteCommandCheckOnly(t *testing.T) {
	plane := fleettest.NewPlane()
	plane.Provision("alpha", "c1")
	cfgPath := newTestCLI(t, plane)

	out, err := run(t, cfgPath, "delete", "alpha", "--check")
	if err != nil {
		t.Fatalf("delete --check failed: %v", err)
	}
	if !strings.Contains(out, "allowed") {
		t.Errorf("expected the decision, got:\n%s", out)
	}
	if !plane.HasGroup("alpha") {
		t.Error("--check must not delete anything")
	}
}

func TestHistoryCommandRejectsUnknownKind(t *testing.T) {
	cfgPath := newTestCLI(t, fleettest.NewPlane())

	if _, err := run(t, cfgPath, "history", "--kind", "rollback"); err == nil {
		t.Error("expected an error for an unknown kind")
	}
}

func TestDeleteCommandSkipPolicy(t *testing.T) {
	plane := fleettest.NewPlane()
	plane.Provision("prod-eu", "c1")
	cfgPath := newTestCLI(t, plane)

	if _, err := run(t, cfgPath, "delete", "prod-eu", "--skip-policy", "protected-groups"); err != nil {
		t.Fatalf("delete with skipped policy failed: %v", err)
	}
	if plane.HasGroup("prod-eu") {
		t.Error("expected the group to be deleted")
	}

	if _, err := run(t, cfgPath, "delete", "prod-eu", "--skip-policy", "no-such-policy"); err == nil {
		t.Error("expected an error for an unknown policy")
	}
}

const freezePolicy = `# Groups under change freeze.
package site.freeze

import rego.v1

deny contains msg if {
	input.operation == "deploy"
	startswith(input.group, "frozen")
	msg := sprintf("%s is frozen", [input.group])
}
`

func TestDeployCommandDeniedBySitePolicy(t *testing.T) {
	plane := fleettest.NewPlane()
	plane.AddGroup("frozen-eu")
	plane.AddGroup("open-eu")
	cfgPath := newTestCLI(t, plane)
	writeSitePolicy(t, cfgPath, "freeze", freezePolicy)

	out, err := run(t, cfgPath, "deploy", "--all", "--json")
	if !errors.Is(err, errDeploymentFailed) {
		t.Fatalf("expected errDeploymentFailed, got %v", err)
	}

	var lines []deployLine
	if err := json.Unmarshal([]byte(out), &lines); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	got := map[string]string{}
	for _, l := range lines {
		got[l.Group] = l.Outcome
	}
	want := map[string]string{"frozen-eu": outcomeDenied, "open-eu": "success"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if n := plane.CallCount("CreateDeployment"); n != 1 {
		t.Errorf("CreateDeployment called %d times, want 1", n)
	}

	out, err = run(t, cfgPath, "history", "--audit")
	if err != nil {
		t.Fatalf("audit history failed: %v", err)
	}
	if !strings.Contains(out, "deploy.denied") || !strings.Contains(out, "deploy.allowed") {
		t.Errorf("expected deploy decisions in the audit trail, got:\n%s", out)
	}

	if _, err := run(t, cfgPath, "deploy", "frozen-eu", "--skip-policy", "freeze"); err != nil {
		t.Fatalf("deploy with skipped policy failed: %v", err)
	}
}
