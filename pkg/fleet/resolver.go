package fleet

import (
	"context"
	"fmt"
)

// Resolver looks up control-plane records by name.
//
// The control plane has no indexed lookup by name, so every call scans the
// full listing. Nothing is cached between calls.
type Resolver struct {
	plane ControlPlane
}

// NewResolver creates a resolver over the given control plane.
func NewResolver(plane ControlPlane) *Resolver {
	return &Resolver{plane: plane}
}

// Resolve returns the group whose name matches exactly.
// It fails with a not_found error when no group matches.
func (r *Resolver) Resolve(ctx context.Context, name string) (Group, error) {
	groups, err := r.plane.ListGroups(ctx)
	if err != nil {
		return Group{}, fmt.Errorf("failed to list groups: %w", err)
	}
	for _, g := range groups {
		if g.Name == name {
			return g, nil
		}
	}
	return Group{}, NotFound("ResolveGroup", name, fmt.Errorf("no group named %q", name))
}

// ResolveCoreDefinition returns the core definition of a group, found by the
// <group>_Core_Definition naming convention. Definitions without a name are ignored.
func (r *Resolver) ResolveCoreDefinition(ctx context.Context, groupName string) (CoreDefinition, error) {
	defs, err := r.plane.ListCoreDefinitions(ctx)
	if err != nil {
		return CoreDefinition{}, fmt.Errorf("failed to list core definitions: %w", err)
	}
	want := CoreDefinitionName(groupName)
	for _, d := range defs {
		if d.Name != "" && d.Name == want {
			return d, nil
		}
	}
	return CoreDefinition{}, NotFound("ResolveCoreDefinition", want, fmt.Errorf("no core definition named %q", want))
}
