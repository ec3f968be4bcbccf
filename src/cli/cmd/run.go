package cmd

import (
	"github.com/sofmeright/themeforge/src/task"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <task>...",
	Short: "Run named tasks in order",
	Long: `Run one or more named tasks, such as "build:scss" or "check".

Tasks run in the order given. A failing task does not stop the ones
after it; the exit status is non-zero if any failed.`,
	Args: cobra.MinimumNArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var names []string
		for _, t := range task.Catalog() {
			names = append(names, t.Name)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks := make([]task.Task, 0, len(args))
		for _, name := range args {
			t, err := task.Parse(name)
			if err != nil {
				return err
			}
			tasks = append(tasks, t)
		}
		return runTasks(cmd, tasks...)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
