package fleet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openfroyo/ggfleet/pkg/telemetry"
)

// errNoPrincipals marks a core thing with nothing attached.
var errNoPrincipals = errors.New("no principals attached")

// Teardown deletes a group and the resources provisioned with it.
//
// Every step is isolated: a missing resource is skipped, any other error is
// recorded in the report, and the remaining steps still run. A teardown can
// therefore be re-run against a partially deleted environment.
type Teardown struct {
	plane    ControlPlane
	resolver *Resolver
	tel      *telemetry.Telemetry
	logger   *telemetry.Logger
}

// NewTeardown creates a teardown coordinator.
func NewTeardown(plane ControlPlane, tel *telemetry.Telemetry) *Teardown {
	return &Teardown{
		plane:    plane,
		resolver: NewResolver(plane),
		tel:      tel,
		logger:   tel.Logger.NewComponentLogger("teardown"),
	}
}

// Delete tears down the named group in dependency order: core definition,
// certificate and policy attachments, core thing, then the group itself.
// It never returns an error; step failures are recorded in the report.
func (t *Teardown) Delete(ctx context.Context, groupName string) *TeardownReport {
	// Once started, a teardown runs every step.
	ctx = context.WithoutCancel(ctx)

	ctx, span := t.tel.Tracer.StartTeardownSpan(ctx, groupName)
	defer span.End()

	report := &TeardownReport{
		Group:     groupName,
		StartedAt: time.Now(),
	}

	thing := CoreThingName(groupName)

	report.Steps = append(report.Steps,
		t.step(ctx, groupName, StepCoreDefinition, CoreDefinitionName(groupName), func(ctx context.Context) (string, error) {
			return t.deleteCoreDefinition(ctx, groupName)
		}),
		t.step(ctx, groupName, StepPrincipals, thing, func(ctx context.Context) (string, error) {
			return t.releasePrincipals(ctx, thing)
		}),
		t.step(ctx, groupName, StepCoreThing, thing, func(ctx context.Context) (string, error) {
			if err := t.plane.DeleteThing(ctx, thing); err != nil {
				return "", err
			}
			return "core thing deleted", nil
		}),
		t.step(ctx, groupName, StepGroup, groupName, func(ctx context.Context) (string, error) {
			return t.deleteGroup(ctx, groupName)
		}),
	)

	report.CompletedAt = time.Now()
	result := report.Result()
	span.SetAttributes(telemetry.AttrOutcome.String(string(result)))
	t.tel.Metrics.RecordTeardown(string(result))

	t.logger.WithGroup(groupName).
		WithField("trace_id", telemetry.TraceID(ctx)).
		Infof("Teardown %s", result)

	return report
}

// step runs fn and converts its error into a step outcome.
func (t *Teardown) step(ctx context.Context, groupName string, name StepName, resource string, fn func(context.Context) (string, error)) StepResult {
	ctx, span := t.tel.Tracer.StartStepSpan(ctx, string(name))
	defer span.End()

	logger := t.logger.WithGroup(groupName).WithStep(string(name))
	res := StepResult{Step: name, Resource: resource}

	detail, err := fn(ctx)
	switch {
	case err == nil:
		res.Outcome = StepOK
		res.Detail = detail
		logger.Info(detail)
		telemetry.RecordSuccess(span)
	case IsNotFound(err):
		res.Outcome = StepSkipped
		res.Class = ErrorClassNotFound
		res.Err = err
		res.Detail = "not found"
		logger.WithError(err).Warnf("Cannot delete %s, it may not exist", resource)
	default:
		res.Outcome = StepFailed
		res.Class = ClassOf(err)
		res.Err = err
		if res.Class == ErrorClassInternal {
			logger.WithError(err).Error("Step failed with an unexpected error")
		} else {
			logger.WithError(err).Errorf("Cannot delete %s", resource)
		}
		telemetry.RecordError(span, err)
	}

	span.SetAttributes(telemetry.AttrOutcome.String(string(res.Outcome)))
	t.tel.Metrics.RecordTeardownStep(string(name), string(res.Outcome))
	return res
}

func (t *Teardown) deleteCoreDefinition(ctx context.Context, groupName string) (string, error) {
	def, err := t.resolver.ResolveCoreDefinition(ctx, groupName)
	if err != nil {
		return "", err
	}
	if err := t.plane.DeleteCoreDefinition(ctx, def.ID); err != nil {
		return "", err
	}
	return "core definition deleted", nil
}

// releasePrincipals detaches, deactivates and deletes every certificate of the
// core thing, then deletes the core policy. The first error other than
// not-found aborts the block.
func (t *Teardown) releasePrincipals(ctx context.Context, thing string) (string, error) {
	policy := CorePolicyName(thing)

	principals, err := t.plane.ListThingPrincipals(ctx, thing)
	if err != nil && !IsNotFound(err) {
		return "", err
	}
	if len(principals) == 0 {
		if err == nil {
			err = NotFound("ListThingPrincipals", thing, errNoPrincipals)
		}
		return t.deleteLeftoverPolicy(ctx, policy, err)
	}

	logger := t.logger.WithField("thing", thing)

	for _, principal := range principals {
		certID, err := CertificateID(principal)
		if err != nil {
			return "", err
		}
		logger.Info("Detaching certs and policies...")

		logger.Debug("\tdetaching policy")
		if err := ignoreNotFound(t.plane.DetachPolicy(ctx, principal, policy)); err != nil {
			return "", fmt.Errorf("detach policy %s: %w", policy, err)
		}

		logger.Debug("\tdetaching thing principal")
		if err := ignoreNotFound(t.plane.DetachThingPrincipal(ctx, thing, principal)); err != nil {
			return "", fmt.Errorf("detach principal %s: %w", principal, err)
		}

		logger.Debug("\tinactivating cert")
		if err := ignoreNotFound(t.plane.UpdateCertificateStatus(ctx, certID, CertificateStatusInactive)); err != nil {
			return "", fmt.Errorf("deactivate certificate %s: %w", certID, err)
		}

		logger.Debug("\tdeleting cert")
		if err := ignoreNotFound(t.plane.DeleteCertificate(ctx, certID, true)); err != nil {
			return "", fmt.Errorf("delete certificate %s: %w", certID, err)
		}
	}

	// The core policy is shared by every certificate of the core, so it can
	// only be deleted once the last one is detached.
	logger.Debug("\tdeleting policy")
	if err := ignoreNotFound(t.plane.DeletePolicy(ctx, policy)); err != nil {
		return "", fmt.Errorf("delete policy %s: %w", policy, err)
	}

	return fmt.Sprintf("%d principal(s) released", len(principals)), nil
}

// deleteLeftoverPolicy removes a core policy that outlived its certificates,
// e.g. after an earlier run failed between the last certificate and the
// policy. When there is no policy either, the step is skipped with cause.
func (t *Teardown) deleteLeftoverPolicy(ctx context.Context, policy string, cause error) (string, error) {
	err := t.plane.DeletePolicy(ctx, policy)
	switch {
	case err == nil:
		return "leftover core policy deleted", nil
	case IsNotFound(err):
		return "", cause
	default:
		return "", fmt.Errorf("delete policy %s: %w", policy, err)
	}
}

// deleteGroup resets the group's deployments and deletes it. A group with an
// active deployment cannot be deleted.
func (t *Teardown) deleteGroup(ctx context.Context, groupName string) (string, error) {
	group, err := t.resolver.Resolve(ctx, groupName)
	if err != nil {
		return "", err
	}
	if err := t.plane.ResetDeployments(ctx, group.ID, true); err != nil {
		return "", fmt.Errorf("reset deployments: %w", err)
	}
	t.logger.WithGroup(groupName).Info("Group Deployments Reset")
	if err := t.plane.DeleteGroup(ctx, group.ID); err != nil {
		return "", err
	}
	return "group deleted", nil
}

// ignoreNotFound treats an already-removed resource as done.
func ignoreNotFound(err error) error {
	if IsNotFound(err) {
		return nil
	}
	return err
}
