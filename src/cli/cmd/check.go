package cmd

import (
	"github.com/sofmeright/themeforge/src/check"
	"github.com/sofmeright/themeforge/src/task"
	"github.com/spf13/cobra"
)

var (
	checkChanged bool
	checkNoCache bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run static code analysis",
	Long: `Run static code analysis. Without a subcommand, runs phpcs and eslint.

Per-file checkers cache results by content hash under check.cache_dir.
Use --changed to inspect only files changed relative to the target branch.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTasks(cmd, checkTask(task.DefaultCheckers))
	},
}

func checkTask(names []string) task.Check {
	return task.Check{Checkers: names, Changed: checkChanged, NoCache: checkNoCache}
}

func init() {
	checkCmd.PersistentFlags().BoolVar(&checkChanged, "changed", false, "check only files changed relative to the target branch")
	checkCmd.PersistentFlags().BoolVar(&checkNoCache, "no-cache", false, "ignore cached results")

	for _, name := range check.All() {
		checkCmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: "Run the " + name + " checker",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTasks(cmd, checkTask([]string{name}))
			},
		})
	}
	rootCmd.AddCommand(checkCmd)
}
