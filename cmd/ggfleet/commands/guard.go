package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/ggfleet/pkg/policy"
	"github.com/openfroyo/ggfleet/pkg/stores"
)

func addSkipPolicyFlag(cmd *cobra.Command, skip *[]string) {
	cmd.Flags().StringSliceVar(skip, "skip-policy", nil, "disable a guard policy by name for this run (repeatable)")
}

// newGuard loads the built-in and configured policies and disables the
// ones named in skip.
func (e *env) newGuard(ctx context.Context, skip []string) (*policy.Guard, error) {
	guard, err := policy.NewGuard(ctx, e.tel.Logger.Zerolog(), e.cfg.Teardown.PolicyPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to load guard policies: %w", err)
	}
	for _, name := range skip {
		if err := guard.DisablePolicy(name); err != nil {
			return nil, err
		}
		e.tel.Logger.WithField("policy", name).Warn("Guard policy skipped")
	}
	return guard, nil
}

// check evaluates the guard for one group, logs the warnings and writes the
// decision to the audit trail.
func (e *env) check(ctx context.Context, guard *policy.Guard, op policy.Operation, groupName string) (*policy.Decision, error) {
	decision, err := guard.Check(ctx, policy.Request{
		Operation:       op,
		Group:           groupName,
		Actor:           actor(),
		ProtectedGroups: e.cfg.Teardown.ProtectedGroups,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate guard policies: %w", err)
	}

	for _, w := range decision.Warnings {
		e.tel.Logger.WithGroup(groupName).WithField("policy", w.Policy).Warn(w.Message)
	}
	e.auditDecision(ctx, op, groupName, decision)
	return decision, nil
}

// auditDecision records a guard decision as "<operation>.allowed" or
// "<operation>.denied".
func (e *env) auditDecision(ctx context.Context, op policy.Operation, groupName string, d *policy.Decision) {
	if e.journal == nil {
		return
	}

	action := string(op) + ".allowed"
	if !d.Allowed {
		action = string(op) + ".denied"
	}

	details, err := json.Marshal(d)
	if err != nil {
		return
	}
	detailStr := string(details)
	group := groupName

	entry := &stores.AuditEntry{
		Action:   action,
		Actor:    actor(),
		TargetID: &group,
		Details:  &detailStr,
	}
	if err := e.journal.CreateAuditEntry(ctx, entry); err != nil {
		e.tel.Logger.WithGroup(groupName).WithError(err).Warn("Failed to write audit entry")
	}
}
