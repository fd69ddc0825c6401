package fleet_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openfroyo/ggfleet/pkg/fleet"
	"github.com/openfroyo/ggfleet/pkg/fleet/fleettest"
	"github.com/openfroyo/ggfleet/pkg/telemetry"
)

func newMeasuredTelemetry(t *testing.T) *telemetry.Telemetry {
	t.Helper()
	tel := telemetry.NewNop()
	m, err := telemetry.NewMetrics(telemetry.DefaultConfig().Metrics)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	tel.Metrics = m
	return tel
}

// counterValue returns the value of the counter whose labels match exactly.
func counterValue(t *testing.T, tel *telemetry.Telemetry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := tel.Metrics.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, m := range f.GetMetric() {
			if len(m.GetLabel()) != len(labels) {
				continue
			}
			for _, l := range m.GetLabel() {
				if labels[l.GetName()] != l.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestInstrumentCountsCallsAndErrors(t *testing.T) {
	tel := newMeasuredTelemetry(t)
	plane := fleettest.NewPlane()
	plane.Provision("sensor-fleet", "c1")
	plane.FailOn("DeleteThing", fleet.Remote("DeleteThing", "", errors.New("throttled")))

	report := fleet.NewTeardown(fleet.Instrument(plane, tel), tel).Delete(context.Background(), "sensor-fleet")
	if report.Result() != fleet.TeardownPartial {
		t.Fatalf("Result() = %s, want partial", report.Result())
	}

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"ggfleet_control_plane_calls_total", map[string]string{"operation": "DeleteCertificate"}, 1},
		{"ggfleet_control_plane_calls_total", map[string]string{"operation": "ListGroups"}, 1},
		{"ggfleet_control_plane_errors_total", map[string]string{"operation": "DeleteThing", "class": "remote"}, 1},
		{"ggfleet_teardown_steps_total", map[string]string{"step": "core_thing", "outcome": "failed"}, 1},
		{"ggfleet_teardown_steps_total", map[string]string{"step": "group", "outcome": "ok"}, 1},
		{"ggfleet_teardowns_total", map[string]string{"result": "partial"}, 1},
	}
	for _, tt := range tests {
		if got := counterValue(t, tel, tt.name, tt.labels); got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
		}
	}
}

func TestInstrumentPassesResultsThrough(t *testing.T) {
	tel := newMeasuredTelemetry(t)
	plane := fleettest.NewPlane()
	g := plane.AddGroup("sensor-fleet")
	cp := fleet.Instrument(plane, tel)

	groups, err := cp.ListGroups(context.Background())
	if err != nil || len(groups) != 1 || groups[0] != g {
		t.Fatalf("ListGroups() = %v, %v", groups, err)
	}

	_, err = cp.ListThingPrincipals(context.Background(), "missing")
	if !fleet.IsNotFound(err) {
		t.Errorf("ListThingPrincipals() error = %v, want not found", err)
	}
	if got := counterValue(t, tel, "ggfleet_control_plane_errors_total",
		map[string]string{"operation": "ListThingPrincipals", "class": "not_found"}); got != 1 {
		t.Errorf("not_found errors = %v, want 1", got)
	}
}

func TestDeployRecordsOutcomeMetrics(t *testing.T) {
	tel := newMeasuredTelemetry(t)
	plane := fleettest.NewPlane()
	plane.AddGroup("sensor-fleet")

	d := fleet.NewDeployer(fleet.Instrument(plane, tel), tel, fleet.DeployerConfig{}, fleet.WithSleep(func(time.Duration) {}))
	if _, err := d.DeployByName(context.Background(), "sensor-fleet"); err != nil {
		t.Fatalf("DeployByName() error = %v", err)
	}
	if got := counterValue(t, tel, "ggfleet_deployments_total", map[string]string{"outcome": "success"}); got != 1 {
		t.Errorf("deployments_total{success} = %v, want 1", got)
	}
}

func TestInstrumentShadowsCountsReads(t *testing.T) {
	tel := newMeasuredTelemetry(t)
	plane := fleettest.NewPlane()
	plane.SetShadow("sensor-fleet_Core", []byte(`{"state":{}}`))
	r := fleet.InstrumentShadows(plane, tel)

	if _, err := fleet.CoreShadow(context.Background(), r, "sensor-fleet"); err != nil {
		t.Fatalf("CoreShadow() error = %v", err)
	}
	doc, err := fleet.CoreShadow(context.Background(), r, "other")
	if err != nil || string(doc) != "{}" {
		t.Fatalf("CoreShadow() = %s, %v", doc, err)
	}

	if got := counterValue(t, tel, "ggfleet_control_plane_calls_total",
		map[string]string{"operation": "GetThingShadow"}); got != 2 {
		t.Errorf("GetThingShadow calls = %v, want 2", got)
	}
	if got := counterValue(t, tel, "ggfleet_control_plane_errors_total",
		map[string]string{"operation": "GetThingShadow", "class": "not_found"}); got != 1 {
		t.Errorf("GetThingShadow not_found errors = %v, want 1", got)
	}
}
