package main

import (
	"os"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <task>...",
	Short: "Run named tasks",
	Long: `Run one or more registered tasks concurrently, for example:

  sitepipe run clean
  sitepipe run style scripts
  sitepipe run webp

Use 'sitepipe tasks' to list the registered names.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTasks,
}

func runTasks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := newSession(cfg, sessionOptions{
		command: "run",
		console: os.Stdout,
	})
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signalContext()
	defer stop()
	return s.run(ctx, args...)
}
