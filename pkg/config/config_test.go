package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ggfleet.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Deploy.Attempts != 5 || cfg.Deploy.Interval != 2*time.Second {
		t.Errorf("deploy defaults = %+v", cfg.Deploy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
aws:
  region: eu-west-1
  profile: fleet-admin
deploy:
  attempts: 10
  interval: 500ms
teardown:
  protected_groups: ["prod-*", "lab"]
journal:
  path: /tmp/journal.db
telemetry:
  logging:
    level: debug
`)
	t.Setenv(EnvRegion, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AWS.Region != "eu-west-1" || cfg.AWS.Profile != "fleet-admin" {
		t.Errorf("aws = %+v", cfg.AWS)
	}
	if cfg.Deploy.Attempts != 10 || cfg.Deploy.Interval != 500*time.Millisecond {
		t.Errorf("deploy = %+v", cfg.Deploy)
	}
	if diff := cmp.Diff([]string{"prod-*", "lab"}, cfg.Teardown.ProtectedGroups); diff != "" {
		t.Errorf("protected groups mismatch (-want +got):\n%s", diff)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Telemetry.Logging.Level)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Telemetry.Logging.Format != "console" || cfg.Telemetry.ServiceName != "ggfleet" {
		t.Errorf("telemetry defaults lost: %+v", cfg.Telemetry.Logging)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "aws:\n  region: eu-west-1\n")
	t.Setenv(EnvRegion, "us-east-1")
	t.Setenv(EnvProfile, "ops")
	t.Setenv(EnvJournal, "/data/runs.db")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AWS.Region != "us-east-1" || cfg.AWS.Profile != "ops" {
		t.Errorf("aws = %+v", cfg.AWS)
	}
	if cfg.Journal.Path != "/data/runs.db" {
		t.Errorf("journal = %q", cfg.Journal.Path)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("log level = %q", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() of an explicit missing file should fail")
	}

	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() without a default file error = %v", err)
	}
	if cfg.Deploy.Attempts != 5 {
		t.Errorf("attempts = %d, want default", cfg.Deploy.Attempts)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"zero attempts", "deploy:\n  attempts: 0\n", "Attempts"},
		{"negative interval", "deploy:\n  interval: -1s\n", "Interval"},
		{"empty protected pattern", "teardown:\n  protected_groups: [\"\"]\n", "ProtectedGroups"},
		{"bad log level", "telemetry:\n  logging:\n    level: loud\n", "Level"},
		{"not yaml", "deploy: [", "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvLogLevel, "")
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
