package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sofmeright/themeforge/src/config"
	"github.com/sofmeright/themeforge/src/logging"
	"github.com/sofmeright/themeforge/src/task"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	verbose  bool
	logLevel string
	logJSON  bool
	rootDir  string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "themeforge",
	Short: "Theme build, check and install task runner",
	Long: `themeforge compiles SCSS, bundles and minifies JavaScript, runs PHP and
JS static analysis and installs composer and bower dependencies for a
Drupal theme, driven by .themeforge.yml.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New(os.Stderr, logging.Options{Level: logLevel, JSON: logJSON, Verbose: verbose})
		if err != nil {
			return err
		}
		cmd.SetContext(logging.Into(cmd.Context(), logger))

		// Skip config loading for commands that don't need it.
		if cmd.Name() == "version" || cmd.Name() == "tasks" {
			return nil
		}
		if rootDir == "" {
			if rootDir, err = os.Getwd(); err != nil {
				return fmt.Errorf("getting working directory: %w", err)
			}
		}
		if rootDir, err = filepath.Abs(rootDir); err != nil {
			return err
		}
		cfg, err = config.LoadForRoot(rootDir, cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .themeforge.yml in the project root)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (same as --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "project root (default: current directory)")
}

func newRunner() *task.Runner {
	return task.NewRunner(cfg, rootDir, os.Stdout)
}

// runTasks dispatches tasks through a single runner.
func runTasks(cmd *cobra.Command, tasks ...task.Task) error {
	return newRunner().RunAll(cmd.Context(), tasks)
}

// Execute runs the root command. SIGINT and SIGTERM cancel the context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
