package cmd

import (
	"os"

	"github.com/sofmeright/themeforge/src/output"
	"github.com/sofmeright/themeforge/src/task"
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List runnable tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := task.Catalog()
		infos := make([]output.TaskInfo, len(catalog))
		for i, t := range catalog {
			infos[i] = output.TaskInfo{Name: t.Name, Help: t.Help}
		}
		output.TaskList(os.Stdout, infos, output.UseColor())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
