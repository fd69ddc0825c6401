package fleet

import (
	"context"
)

// ControlPlane is the remote fleet-management API consumed by the orchestrator.
//
// Implementations return errors classified with NotFound or Remote so the
// teardown can tell an already-deleted resource from a real failure.
// Listing operations return the full listing, following pagination.
type ControlPlane interface {
	// ListGroups returns every group visible to the caller.
	ListGroups(ctx context.Context) ([]Group, error)

	// CreateDeployment starts a deployment of groupVersionID for groupID.
	CreateDeployment(ctx context.Context, groupID, groupVersionID string, typ DeploymentType) (string, error)

	// GetDeploymentStatus returns the current status of a deployment.
	GetDeploymentStatus(ctx context.Context, groupID, deploymentID string) (DeploymentState, error)

	// ResetDeployments clears the deployments of a group so it can be deleted.
	ResetDeployments(ctx context.Context, groupID string, force bool) error

	// DeleteGroup deletes a group.
	DeleteGroup(ctx context.Context, groupID string) error

	// ListCoreDefinitions returns every core definition.
	ListCoreDefinitions(ctx context.Context) ([]CoreDefinition, error)

	// DeleteCoreDefinition deletes a core definition.
	DeleteCoreDefinition(ctx context.Context, id string) error

	// ListThingPrincipals returns the principal ARNs attached to a thing.
	ListThingPrincipals(ctx context.Context, thingName string) ([]string, error)

	// DetachPolicy detaches a policy from a principal.
	DetachPolicy(ctx context.Context, principalARN, policyName string) error

	// DetachThingPrincipal detaches a principal from a thing.
	DetachThingPrincipal(ctx context.Context, thingName, principalARN string) error

	// UpdateCertificateStatus sets the status of a certificate.
	UpdateCertificateStatus(ctx context.Context, certID string, status CertificateStatus) error

	// DeleteCertificate deletes a certificate.
	DeleteCertificate(ctx context.Context, certID string, force bool) error

	// DeletePolicy deletes a policy.
	DeletePolicy(ctx context.Context, policyName string) error

	// DeleteThing deletes a thing. A thing that does not exist is not found,
	// even when the remote API accepts the delete.
	DeleteThing(ctx context.Context, thingName string) error
}

// ShadowReader fetches a thing's device shadow document.
type ShadowReader interface {
	GetThingShadow(ctx context.Context, thingName string) ([]byte, error)
}
