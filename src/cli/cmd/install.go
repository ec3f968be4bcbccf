package cmd

import (
	"github.com/sofmeright/themeforge/src/install"
	"github.com/sofmeright/themeforge/src/task"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Run all install steps",
	Long:  "Install PHP dependencies with composer, then front-end dependencies with bower.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTasks(cmd, task.Install{Steps: install.Names()})
	},
}

func init() {
	for _, step := range install.Names() {
		installCmd.AddCommand(&cobra.Command{
			Use:   step,
			Short: "Run " + step + " install",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTasks(cmd, task.Install{Steps: []string{step}})
			},
		})
	}
	rootCmd.AddCommand(installCmd)
}
