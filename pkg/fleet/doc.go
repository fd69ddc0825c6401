// Package fleet orchestrates the lifecycle of edge-compute groups on a fleet
// control plane: looking groups up by name, deploying them, and tearing them
// down together with the resources provisioned alongside them.
//
// # Naming contract
//
// Provisioning names every per-group resource after the group:
//
//	core thing:       <group>_Core
//	core definition:  <group>_Core_Definition
//	core policy:      <group>_Core_Policy
//
// The control plane does not enforce this; teardown relies on it.
//
// # Deployments
//
// Deployer creates a new deployment and polls its status a fixed number of
// times with a fixed wait between polls. Success and Failure end the poll
// early. When the budget runs out the outcome is OutcomeTimedOut, which is a
// warning: the deployment may still complete on the control plane.
//
// # Teardown
//
// Teardown walks the resources in dependency order (detach, deactivate,
// delete) and records one StepResult per step. Missing resources are
// skipped, other failures are recorded, and no step aborts the ones after it.
//
// # Errors
//
// ControlPlane implementations classify their errors with NotFound and
// Remote. Errors without a classification are treated as internal.
package fleet
