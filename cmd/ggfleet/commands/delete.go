package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/ggfleet/pkg/fleet"
	"github.com/openfroyo/ggfleet/pkg/policy"
)

var (
	errTeardownDenied     = errors.New("teardown denied by policy")
	errTeardownIncomplete = errors.New("teardown incomplete")
)

func newDeleteCommand() *cobra.Command {
	var (
		checkOnly bool
		skip      []string
	)

	cmd := &cobra.Command{
		Use:   "delete <group>",
		Short: "Tear down a group and its core resources",
		Long: `Delete a group and the resources provisioned with it, in this order:
  1. the core definition <group>_Core_Definition
  2. the certificates of <group>_Core and the core policy <group>_Core_Policy
  3. the core thing <group>_Core
  4. the group, after resetting its deployments

Every step runs even when an earlier one failed. Resources that no longer
exist are skipped, so a teardown can be repeated until it completes.

Before anything is deleted the teardown guard evaluates the built-in and
configured Rego policies; a denied teardown deletes nothing.`,
		Example: `  # Tear down a group
  ggfleet delete sensor-fleet

  # Only evaluate the teardown guard
  ggfleet delete prod-eu --check

  # Machine-readable step report
  ggfleet delete sensor-fleet --json

  # Tear down a protected group on purpose
  ggfleet delete prod-eu --skip-policy protected-groups`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupName := args[0]

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())

			guard, err := e.newGuard(cmd.Context(), skip)
			if err != nil {
				return err
			}
			decision, err := e.check(cmd.Context(), guard, policy.OperationTeardown, groupName)
			if err != nil {
				return err
			}

			if checkOnly || !decision.Allowed {
				if jsonOutput {
					if err := e.printJSON(decision); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(e.out, "teardown of %s: %s\n", groupName, decision.Summary())
				}
				if !decision.Allowed {
					return fmt.Errorf("%w: %s", errTeardownDenied, strings.Join(decision.Reasons(), "; "))
				}
				return nil
			}

			report := fleet.NewTeardown(e.plane, e.tel).Delete(cmd.Context(), groupName)

			if e.journal != nil {
				run, err := e.journal.RecordTeardown(cmd.Context(), report)
				if err != nil {
					e.tel.Logger.WithGroup(groupName).WithError(err).Warn("Failed to journal teardown")
				} else {
					e.tel.Logger.WithGroup(groupName).WithRunID(run.ID).Debug("Teardown journaled")
				}
			}

			if jsonOutput {
				if err := e.printJSON(report); err != nil {
					return err
				}
			} else {
				printReport(e, report)
			}

			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%w: %d step(s) failed", errTeardownIncomplete, len(failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "evaluate the teardown guard without deleting anything")
	addSkipPolicyFlag(cmd, &skip)

	return cmd
}

func printReport(e *env, report *fleet.TeardownReport) {
	fmt.Fprintf(e.out, "teardown of %s: %s\n", report.Group, report.Result())
	for _, s := range report.Steps {
		detail := s.Detail
		if s.Outcome == fleet.StepFailed && s.Err != nil {
			detail = s.Err.Error()
		}
		fmt.Fprintf(e.out, "  %-16s %-8s %-40s %s\n", s.Step, s.Outcome, s.Resource, detail)
	}
}
