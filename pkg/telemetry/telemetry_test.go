package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "missing service name", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: true},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "otlp without endpoint", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
		}, wantErr: true},
		{name: "stdout exporter", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "stdout"
		}},
		{name: "sampling out of range", mutate: func(c *Config) { c.Tracing.SamplingRate = 1.5 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LoggingConfig{Level: "info", Format: "json"})

	logger.NewComponentLogger("teardown").
		WithGroup("sensor-fleet").
		WithStep("core_thing").
		WithError(errors.New("boom")).
		Error("Cannot delete sensor-fleet_Core")
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	want := map[string]string{
		"level":     "error",
		"component": "teardown",
		"group":     "sensor-fleet",
		"step":      "core_thing",
		"error":     "boom",
		"message":   "Cannot delete sensor-fleet_Core",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("field %s = %v, want %q", k, entry[k], v)
		}
	}
}

func TestMetricsHandlerAndTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ggfleet.prom")
	cfg := DefaultConfig().Metrics
	cfg.Textfile = path

	m, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	m.RecordDeployment("success", 3, 4*time.Second)
	m.RecordTeardownStep("group", "ok")
	m.RecordTeardown("complete")
	m.RecordCall("DeleteGroup", time.Millisecond)
	m.RecordCallError("DeleteGroup", "remote")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`ggfleet_deployments_total{outcome="success"} 1`,
		`ggfleet_teardown_steps_total{outcome="ok",step="group"} 1`,
		`ggfleet_control_plane_errors_total{class="remote",operation="DeleteGroup"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}

	if err := m.WriteTextfile(); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("textfile not written: %v", err)
	}
	if !strings.Contains(string(data), `ggfleet_teardowns_total{result="complete"} 1`) {
		t.Errorf("textfile missing teardown counter:\n%s", data)
	}
}

func TestDisabledMetricsAreNoOps(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false, Textfile: filepath.Join(t.TempDir(), "x.prom")})
	if err != nil {
		t.Fatal(err)
	}
	m.RecordDeployment("success", 1, time.Second)
	m.RecordCallError("ListGroups", "remote")
	if m.Gatherer() != nil {
		t.Error("Gatherer() should be nil when disabled")
	}
	if err := m.WriteTextfile(); err != nil {
		t.Errorf("WriteTextfile() error = %v", err)
	}
}

func TestObserveCallRecordsErrors(t *testing.T) {
	tel := NewNop()
	m, err := NewMetrics(DefaultConfig().Metrics)
	if err != nil {
		t.Fatal(err)
	}
	tel.Metrics = m

	want := errors.New("denied")
	got := tel.ObserveCall(context.Background(), "DeleteThing", "sensor-fleet_Core",
		func(error) string { return "remote" },
		func(context.Context) error { return want })
	if !errors.Is(got, want) {
		t.Fatalf("ObserveCall() error = %v, want %v", got, want)
	}

	families, err := m.Gatherer().Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "ggfleet_control_plane_errors_total" {
			found = len(f.GetMetric()) == 1 && f.GetMetric()[0].GetCounter().GetValue() == 1
		}
	}
	if !found {
		t.Error("control-plane error was not counted")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
