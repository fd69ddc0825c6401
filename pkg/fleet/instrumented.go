package fleet

import (
	"context"

	"github.com/openfroyo/ggfleet/pkg/telemetry"
)

// Instrument wraps a ControlPlane so every call is traced and counted.
func Instrument(cp ControlPlane, tel *telemetry.Telemetry) ControlPlane {
	return &instrumented{next: cp, tel: tel}
}

type instrumented struct {
	next ControlPlane
	tel  *telemetry.Telemetry
}

func classify(err error) string {
	return string(ClassOf(err))
}

func (i *instrumented) observe(ctx context.Context, op, res string, fn func(context.Context) error) error {
	return i.tel.ObserveCall(ctx, op, res, classify, fn)
}

func (i *instrumented) ListGroups(ctx context.Context) (groups []Group, err error) {
	err = i.observe(ctx, "ListGroups", "", func(ctx context.Context) error {
		groups, err = i.next.ListGroups(ctx)
		return err
	})
	return groups, err
}

func (i *instrumented) CreateDeployment(ctx context.Context, groupID, groupVersionID string, typ DeploymentType) (id string, err error) {
	err = i.observe(ctx, "CreateDeployment", groupID, func(ctx context.Context) error {
		id, err = i.next.CreateDeployment(ctx, groupID, groupVersionID, typ)
		return err
	})
	return id, err
}

func (i *instrumented) GetDeploymentStatus(ctx context.Context, groupID, deploymentID string) (st DeploymentState, err error) {
	err = i.observe(ctx, "GetDeploymentStatus", deploymentID, func(ctx context.Context) error {
		st, err = i.next.GetDeploymentStatus(ctx, groupID, deploymentID)
		return err
	})
	return st, err
}

func (i *instrumented) ResetDeployments(ctx context.Context, groupID string, force bool) error {
	return i.observe(ctx, "ResetDeployments", groupID, func(ctx context.Context) error {
		return i.next.ResetDeployments(ctx, groupID, force)
	})
}

func (i *instrumented) DeleteGroup(ctx context.Context, groupID string) error {
	return i.observe(ctx, "DeleteGroup", groupID, func(ctx context.Context) error {
		return i.next.DeleteGroup(ctx, groupID)
	})
}

func (i *instrumented) ListCoreDefinitions(ctx context.Context) (defs []CoreDefinition, err error) {
	err = i.observe(ctx, "ListCoreDefinitions", "", func(ctx context.Context) error {
		defs, err = i.next.ListCoreDefinitions(ctx)
		return err
	})
	return defs, err
}

func (i *instrumented) DeleteCoreDefinition(ctx context.Context, id string) error {
	return i.observe(ctx, "DeleteCoreDefinition", id, func(ctx context.Context) error {
		return i.next.DeleteCoreDefinition(ctx, id)
	})
}

func (i *instrumented) ListThingPrincipals(ctx context.Context, thingName string) (principals []string, err error) {
	err = i.observe(ctx, "ListThingPrincipals", thingName, func(ctx context.Context) error {
		principals, err = i.next.ListThingPrincipals(ctx, thingName)
		return err
	})
	return principals, err
}

func (i *instrumented) DetachPolicy(ctx context.Context, principalARN, policyName string) error {
	return i.observe(ctx, "DetachPolicy", policyName, func(ctx context.Context) error {
		return i.next.DetachPolicy(ctx, principalARN, policyName)
	})
}

func (i *instrumented) DetachThingPrincipal(ctx context.Context, thingName, principalARN string) error {
	return i.observe(ctx, "DetachThingPrincipal", thingName, func(ctx context.Context) error {
		return i.next.DetachThingPrincipal(ctx, thingName, principalARN)
	})
}

func (i *instrumented) UpdateCertificateStatus(ctx context.Context, certID string, status CertificateStatus) error {
	return i.observe(ctx, "UpdateCertificate", certID, func(ctx context.Context) error {
		return i.next.UpdateCertificateStatus(ctx, certID, status)
	})
}

func (i *instrumented) DeleteCertificate(ctx context.Context, certID string, force bool) error {
	return i.observe(ctx, "DeleteCertificate", certID, func(ctx context.Context) error {
		return i.next.DeleteCertificate(ctx, certID, force)
	})
}

func (i *instrumented) DeletePolicy(ctx context.Context, policyName string) error {
	return i.observe(ctx, "DeletePolicy", policyName, func(ctx context.Context) error {
		return i.next.DeletePolicy(ctx, policyName)
	})
}

func (i *instrumented) DeleteThing(ctx context.Context, thingName string) error {
	return i.observe(ctx, "DeleteThing", thingName, func(ctx context.Context) error {
		return i.next.DeleteThing(ctx, thingName)
	})
}

// InstrumentShadows wraps a ShadowReader so shadow reads are traced and
// counted like the other control-plane calls.
func InstrumentShadows(r ShadowReader, tel *telemetry.Telemetry) ShadowReader {
	return &instrumentedShadows{next: r, tel: tel}
}

type instrumentedShadows struct {
	next ShadowReader
	tel  *telemetry.Telemetry
}

func (i *instrumentedShadows) GetThingShadow(ctx context.Context, thingName string) (doc []byte, err error) {
	err = i.tel.ObserveCall(ctx, "GetThingShadow", thingName, classify, func(ctx context.Context) error {
		doc, err = i.next.GetThingShadow(ctx, thingName)
		return err
	})
	return doc, err
}
