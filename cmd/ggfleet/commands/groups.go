package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/ggfleet/pkg/fleet"
)

func newGroupsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())

			groups, err := e.plane.ListGroups(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list groups: %w", err)
			}

			if jsonOutput {
				if groups == nil {
					groups = []fleet.Group{}
				}
				return e.printJSON(groups)
			}

			if len(groups) == 0 {
				fmt.Fprintln(e.out, "No groups found")
				return nil
			}
			fmt.Fprintf(e.out, "%-38s %-30s %s\n", "ID", "NAME", "LATEST VERSION")
			for _, g := range groups {
				fmt.Fprintf(e.out, "%-38s %-30s %s\n", g.ID, g.Name, g.LatestVersion)
			}
			return nil
		},
	}
}

func newCoreDefinitionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "core-definitions",
		Aliases: []string{"coredefs"},
		Short:   "List core definition names",
		Long: `List the names of all core definitions. Definitions created without a
name are left out; the teardown cannot match them to a group.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())

			defs, err := e.plane.ListCoreDefinitions(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list core definitions: %w", err)
			}

			names := make([]string, 0, len(defs))
			for _, d := range defs {
				if d.Name != "" {
					names = append(names, d.Name)
				}
			}

			if jsonOutput {
				return e.printJSON(names)
			}
			for _, n := range names {
				fmt.Fprintln(e.out, n)
			}
			return nil
		},
	}
}

func newShadowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shadow <group>",
		Short: "Print the device shadow of a group's core",
		Long: `Print the device shadow document of <group>_Core. A core that never
reported a shadow prints {}.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close(cmd.Context())

			doc, err := fleet.CoreShadow(cmd.Context(), e.shadows, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, string(doc))
			return nil
		},
	}
}
