package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
	region     string
	profile    string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ggfleet",
		Short: "ggfleet - Greengrass group deployment and teardown",
		Long: `ggfleet deploys and tears down Greengrass groups and the core resources
provisioned with them.

Features:
  - Deploy one group or every group and wait for the outcome
  - Tear down a group: core definition, certificates, core policy, core thing, group
  - Re-runnable teardowns that skip what is already gone
  - Rego guard that protects groups from teardown
  - Journal of every deployment and teardown`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default ggfleet.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&region, "region", "", "AWS region (overrides config and GGFLEET_REGION)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "AWS shared config profile (overrides config and GGFLEET_PROFILE)")

	// Add subcommands
	rootCmd.AddCommand(newDeployCommand())
	rootCmd.AddCommand(newDeleteCommand())
	rootCmd.AddCommand(newGroupsCommand())
	rootCmd.AddCommand(newCoreDefinitionsCommand())
	rootCmd.AddCommand(newShadowCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
