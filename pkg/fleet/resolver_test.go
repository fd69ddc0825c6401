package fleet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/openfroyo/ggfleet/pkg/fleet"
	"github.com/openfroyo/ggfleet/pkg/fleet/fleettest"
)

func TestResolveReturnsExactMatch(t *testing.T) {
	plane := fleettest.NewPlane()
	plane.AddGroup("alpha")
	want := plane.AddGroup("beta")
	plane.AddGroup("beta-2")

	got, err := fleet.NewResolver(plane).Resolve(context.Background(), "beta")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveAbsentNameIsNotFound(t *testing.T) {
	plane := fleettest.NewPlane()
	plane.AddGroup("alpha")
	plane.AddGroup("Beta")

	for _, name := range []string{"beta", "alph", "", "alpha "} {
		_, err := fleet.NewResolver(plane).Resolve(context.Background(), name)
		if !fleet.IsNotFound(err) {
			t.Errorf("Resolve(%q) error = %v, want not found", name, err)
		}
	}
	if n := plane.CallCount("ListGroups"); n != 4 {
		t.Errorf("ListGroups called %d times, want one full listing per resolution", n)
	}
}

func TestResolveListingErrorPropagates(t *testing.T) {
	plane := fleettest.NewPlane()
	plane.FailOn("ListGroups", fleet.Remote("ListGroups", "", errors.New("throttled")))

	_, err := fleet.NewResolver(plane).Resolve(context.Background(), "alpha")
	if !fleet.IsRemote(err) {
		t.Fatalf("Resolve() error = %v, want remote error", err)
	}
}

func TestResolveCoreDefinition(t *testing.T) {
	plane := fleettest.NewPlane()
	plane.AddCoreDefinition("")
	plane.AddCoreDefinition("other_Core_Definition")
	plane.Provision("sensor-fleet", "c1")

	def, err := fleet.NewResolver(plane).ResolveCoreDefinition(context.Background(), "sensor-fleet")
	if err != nil {
		t.Fatalf("ResolveCoreDefinition() error = %v", err)
	}
	if def.Name != "sensor-fleet_Core_Definition" {
		t.Errorf("Name = %q", def.Name)
	}

	_, err = fleet.NewResolver(plane).ResolveCoreDefinition(context.Background(), "missing")
	if !fleet.IsNotFound(err) {
		t.Errorf("ResolveCoreDefinition(missing) error = %v, want not found", err)
	}
}
