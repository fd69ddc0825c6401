package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/ggfleet/pkg/fleet"
	"github.com/openfroyo/ggfleet/pkg/policy"
)

var (
	errDeploymentFailed = errors.New("deployment failed")
	errDeployDenied     = errors.New("deployment denied by policy")
)

// outcomeDenied marks a group the guard refused to deploy.
const outcomeDenied = "denied"

// deployLine is one row of deploy output.
type deployLine struct {
	Group        string        `json:"group"`
	DeploymentID string        `json:"deployment_id,omitempty"`
	Outcome      string        `json:"outcome"`
	Polls        int           `json:"polls"`
	Waited       time.Duration `json:"waited"`
	Message      string        `json:"message,omitempty"`
	RunID        string        `json:"run_id,omitempty"`
}

func newDeployCommand() *cobra.Command {
	var (
		all      bool
		attempts int
		interval time.Duration
		skip     []string
	)

	cmd := &cobra.Command{
		Use:   "deploy [group]",
		Short: "Deploy the latest version of a group",
		Long: `Create a new deployment of a group's latest version and poll its status.

The status is polled up to --attempts times, --interval apart. A deployment
that is still running when the budget runs out is reported as timed_out; it
may still complete on the core.

With --all every group is deployed one after another. A failing group does
not stop the others.

Each group is checked against the guard policies first. The built-in
policies only warn on deploys; site policies may deny them.`,
		Example: `  # Deploy one group
  ggfleet deploy sensor-fleet

  # Deploy every group and wait longer for each
  ggfleet deploy --all --attempts 10 --interval 5s`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return fmt.Errorf("--all does not take a group name")
			}
			if !all && len(args) != 1 {
				return fmt.Errorf("requires a group name or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())

			cfg := fleet.DeployerConfig{
				Attempts: e.cfg.Deploy.Attempts,
				Interval: e.cfg.Deploy.Interval,
			}
			if cmd.Flags().Changed("attempts") {
				cfg.Attempts = attempts
			}
			if cmd.Flags().Changed("interval") {
				cfg.Interval = interval
			}

			guard, err := e.newGuard(cmd.Context(), skip)
			if err != nil {
				return err
			}
			admit := func(ctx context.Context, g fleet.Group) error {
				d, err := e.check(ctx, guard, policy.OperationDeploy, g.Name)
				if err != nil {
					return err
				}
				if !d.Allowed {
					return fmt.Errorf("%w: %s", errDeployDenied, strings.Join(d.Reasons(), "; "))
				}
				return nil
			}
			deployer := fleet.NewDeployer(e.plane, e.tel, cfg, fleet.WithAdmission(admit))

			var results []fleet.DeployResult
			if all {
				results, err = deployer.DeployAll(cmd.Context())
				if err != nil {
					return err
				}
			} else {
				out, err := deployer.DeployByName(cmd.Context(), args[0])
				if out == nil && err != nil {
					e.recordDeployment(cmd, fleet.Group{Name: args[0]}, nil, err)
					return err
				}
				results = []fleet.DeployResult{{Group: out.Group, Outcome: out, Err: err}}
			}

			lines := make([]deployLine, 0, len(results))
			failed := 0
			for _, r := range results {
				line := deployLine{Group: r.Group.Name, Outcome: "error"}
				if r.Outcome != nil {
					line.DeploymentID = r.Outcome.Deployment.DeploymentID
					line.Polls = r.Outcome.Polls
					line.Waited = r.Outcome.Waited
					line.Message = r.Outcome.ErrorMessage
					if r.Outcome.Outcome != "" {
						line.Outcome = string(r.Outcome.Outcome)
					}
				}
				if r.Err != nil {
					line.Outcome = "error"
					if errors.Is(r.Err, errDeployDenied) {
						line.Outcome = outcomeDenied
					}
					line.Message = r.Err.Error()
				}
				if line.Outcome != string(fleet.OutcomeSuccess) && line.Outcome != string(fleet.OutcomeTimedOut) {
					failed++
				}
				line.RunID = e.recordDeployment(cmd, r.Group, r.Outcome, r.Err)
				lines = append(lines, line)
			}

			if jsonOutput {
				if err := e.printJSON(lines); err != nil {
					return err
				}
			} else {
				for _, l := range lines {
					fmt.Fprintf(e.out, "%-30s %-10s deployment=%s polls=%d waited=%s\n",
						l.Group, l.Outcome, l.DeploymentID, l.Polls, l.Waited)
					if l.Message != "" {
						fmt.Fprintf(e.out, "  %s\n", l.Message)
					}
				}
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d group(s)", errDeploymentFailed, failed, len(lines))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "deploy every group")
	cmd.Flags().IntVar(&attempts, "attempts", fleet.DefaultPollAttempts, "status polls per deployment")
	cmd.Flags().DurationVar(&interval, "interval", fleet.DefaultPollInterval, "wait between status polls")
	addSkipPolicyFlag(cmd, &skip)

	return cmd
}

// recordDeployment journals a deployment and returns the run id, or "" when
// the journal is disabled or the write failed.
func (e *env) recordDeployment(cmd *cobra.Command, group fleet.Group, out *fleet.DeployOutcome, deployErr error) string {
	if e.journal == nil {
		return ""
	}
	run, err := e.journal.RecordDeployment(cmd.Context(), group, out, deployErr)
	if err != nil {
		e.tel.Logger.WithGroup(group.Name).WithError(err).Warn("Failed to journal deployment")
		return ""
	}
	e.tel.Logger.WithGroup(group.Name).WithRunID(run.ID).Debug("Deployment journaled")
	return run.ID
}
