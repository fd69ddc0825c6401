package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/ggfleet/pkg/stores"
)

var errJournalDisabled = errors.New("journal is not available")

func newHistoryCommand() *cobra.Command {
	var (
		group string
		kind  string
		limit int
		audit bool
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show journaled deployments and teardowns",
		Long: `Show the runs recorded in the journal, newest first. With a run id, show
that run and, for teardowns, every step.

With --audit, show the deploy and teardown guard decisions instead.`,
		Example: `  # Recent runs
  ggfleet history

  # Teardowns of one group
  ggfleet history --group sensor-fleet --kind teardown

  # Steps of one run
  ggfleet history 2b0c6a51-8d1e-4a8e-9a43-0f6b2f3c1d7e`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch stores.RunKind(kind) {
			case "", stores.RunKindDeploy, stores.RunKindTeardown:
			default:
				return fmt.Errorf("invalid --kind %q: must be deploy or teardown", kind)
			}

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())

			if e.journal == nil {
				return errJournalDisabled
			}

			if audit {
				entries, err := e.journal.ListAuditEntries(cmd.Context(), nil, limit, 0)
				if err != nil {
					return err
				}
				if jsonOutput {
					return e.printJSON(entries)
				}
				for _, a := range entries {
					target := ""
					if a.TargetID != nil {
						target = *a.TargetID
					}
					fmt.Fprintf(e.out, "%s  %-18s %-12s %s\n",
						a.Timestamp.Format(time.RFC3339), a.Action, a.Actor, target)
				}
				return nil
			}

			if len(args) == 1 {
				run, err := e.journal.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return e.printJSON(run)
				}
				printRun(e, run)
				for _, s := range run.Steps {
					msg := s.Detail
					if s.Error != nil {
						msg = *s.Error
					}
					fmt.Fprintf(e.out, "  %d. %-16s %-8s %-40s %s\n", s.Seq, s.Step, s.Outcome, s.Resource, msg)
				}
				return nil
			}

			runs, err := e.journal.ListRuns(cmd.Context(), stores.RunFilter{
				Kind:  stores.RunKind(kind),
				Group: group,
				Limit: limit,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				if runs == nil {
					runs = []*stores.Run{}
				}
				return e.printJSON(runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(e.out, "No runs recorded")
				return nil
			}
			for _, r := range runs {
				printRun(e, r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "only runs of this group")
	cmd.Flags().StringVar(&kind, "kind", "", "only runs of this kind (deploy or teardown)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries")
	cmd.Flags().BoolVar(&audit, "audit", false, "show teardown guard decisions")

	return cmd
}

func printRun(e *env, r *stores.Run) {
	fmt.Fprintf(e.out, "%s  %s  %-8s %-30s %s\n",
		r.StartedAt.Format(time.RFC3339), r.ID, r.Kind, r.Group, r.Result)
	if r.Error != nil {
		fmt.Fprintf(e.out, "  %s\n", *r.Error)
	}
}
