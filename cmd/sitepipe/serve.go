package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sitepipe/internal/config"
	"github.com/ShayCichocki/sitepipe/internal/site"
	"github.com/ShayCichocki/sitepipe/internal/tui"
)

var (
	serveTUI     bool
	serveOpen    bool
	serveRebuild bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the build tree and rebuild on changes",
	Long: `Serve the existing build tree with live reload and watch the sources,
rerunning the matching tasks when files change.

The build tree must exist; pass --rebuild to build it first. Exits 0 on
SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveTUI, "tui", false, "Show a task dashboard instead of console lines")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "Open the served site in a browser")
	serveCmd.Flags().BoolVar(&serveRebuild, "rebuild", false, "Rebuild the site before serving")
}

// statusInterval is how often the dashboard refreshes watch bindings and
// the browser count.
const statusInterval = 500 * time.Millisecond

// serveTasks returns the task names to run in order.
func serveTasks(rebuild bool) []string {
	if rebuild {
		return []string{site.TaskCompile, site.TaskServer}
	}
	return []string{site.TaskServer}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveTUI {
		return serveWithTUI(cfg)
	}

	s, err := newSession(cfg, sessionOptions{
		command: "serve",
		console: os.Stdout,
		open:    serveOpen,
	})
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := signalContext()
	defer stop()
	return serveSequence(ctx, s)
}

// serveSequence runs the startup rebuild, if any, then the server task.
func serveSequence(ctx context.Context, s *session) error {
	for _, name := range serveTasks(serveRebuild) {
		if err := s.run(ctx, name); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

func serveWithTUI(cfg *config.Config) error {
	sigCtx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	program, _ := tui.NewProgram(string(cfg.ModeValue()), cancel)

	s, err := newSession(cfg, sessionOptions{
		command: "serve",
		open:    serveOpen,
		onServe: func(url string) {
			program.Send(tui.ServingMsg{URL: url})
		},
	})
	if err != nil {
		return err
	}
	defer s.close()

	go tui.Forward(program, s.orch.Events().Subscribe(eventBuffer))
	go tui.Poll(ctx, program, statusInterval, s.watchSnapshot)

	serveDone := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				serveDone <- fmt.Errorf("panic while serving: %v", r)
			}
		}()
		err := serveSequence(ctx, s)
		program.Send(tui.DoneMsg{Err: err})
		serveDone <- err
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-serveDone
		return fmt.Errorf("dashboard: %w", err)
	}

	// The dashboard stays up after a failure until the user quits.
	cancel()
	return <-serveDone
}
