package cmd

import (
	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/task"
	"github.com/spf13/cobra"
)

var buildChanged bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run all build steps",
	Long: `Compile SCSS packages and bundle JavaScript packages.

Packages of a kind build concurrently; a failing package does not stop
the others. Use --changed to build only packages whose sources changed
relative to the target branch.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTasks(cmd, task.Build{Kinds: config.Kinds(), Changed: buildChanged})
	},
}

var buildWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run build steps and watch for changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTasks(cmd, task.Watch{})
	},
}

func init() {
	addChangedFlag(buildCmd)

	for _, kind := range config.Kinds() {
		kindCmd := &cobra.Command{
			Use:   string(kind),
			Short: "Build " + string(kind) + " packages",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTasks(cmd, task.Build{Kinds: []config.Kind{kind}, Changed: buildChanged})
			},
		}
		addChangedFlag(kindCmd)
		buildCmd.AddCommand(kindCmd)
	}
	buildCmd.AddCommand(buildWatchCmd)
	rootCmd.AddCommand(buildCmd)
}

// addChangedFlag registers --changed on cmd alone, so "build watch" rejects it.
func addChangedFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&buildChanged, "changed", false, "build only packages with changed sources")
}
