package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ShayCichocki/sitepipe/internal/config"
	"github.com/ShayCichocki/sitepipe/internal/livereload"
	"github.com/ShayCichocki/sitepipe/internal/orchestrator"
	"github.com/ShayCichocki/sitepipe/internal/sink"
	"github.com/ShayCichocki/sitepipe/internal/site"
	"github.com/ShayCichocki/sitepipe/internal/state"
	"github.com/ShayCichocki/sitepipe/internal/tui"
	"github.com/ShayCichocki/sitepipe/pkg/models"
)

// eventBuffer is the subscriber channel size for the recorder and the TUI.
const eventBuffer = 256

// sessionOptions selects how a session reports and serves.
type sessionOptions struct {
	// command names the run in the build history.
	command string
	// console receives gulp-style progress lines; nil prints nothing.
	console io.Writer
	// open launches a browser once the server listens.
	open bool
	// onServe is told the served URL.
	onServe func(url string)
}

// session wires config, history, logging, the live server and the task
// registry for one CLI invocation.
type session struct {
	cfg    *config.Config
	mode   models.Mode
	logger *orchestrator.DebugLogger
	db     *state.DB
	live   *livereload.Server
	site   *site.Site
	orch   *orchestrator.Orchestrator

	recorder *state.Recorder
	recDone  chan struct{}
}

// consoleRelay forwards pipeline console lines to the orchestrator, which
// is created after the site it reports for.
type consoleRelay struct {
	o *orchestrator.Orchestrator
}

func (r *consoleRelay) Log(format string, args ...interface{}) {
	if r.o != nil {
		r.o.Log(format, args...)
	}
}

func newSession(cfg *config.Config, opts sessionOptions) (*session, error) {
	mode := cfg.ModeValue()

	logger, err := orchestrator.NewDebugLogger(cfg.DebugLogPath())
	if err != nil {
		return nil, fmt.Errorf("create debug logger: %w", err)
	}

	db, err := state.Open(cfg.StateDBPath())
	if err != nil {
		logger.Close()
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		logger.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	if n, err := db.MarkInterrupted(time.Now()); err != nil {
		logger.Log("could not close stale runs: %v", err)
	} else if n > 0 {
		logger.Log("marked %d stale run(s) interrupted", n)
	}

	live := livereload.New(cfg.BuildRootAbs(), livereload.Options{
		Host:  cfg.Server.Host,
		Port:  cfg.Server.Port,
		CORS:  cfg.Server.CORS,
		Debug: logger,
	})

	relay := &consoleRelay{}
	st, err := site.New(cfg, mode, site.Deps{
		Notifier:    sessionNotifier(live, logger),
		Console:     relay,
		Debug:       logger,
		Live:        live,
		OpenBrowser: opts.open || cfg.Server.Open,
		OnServe:     opts.onServe,
	})
	if err != nil {
		db.Close()
		logger.Close()
		return nil, err
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithCommand(opts.command),
		orchestrator.WithLogger(logger),
	}
	if opts.console != nil {
		orchOpts = append(orchOpts, orchestrator.WithConsole(orchestrator.NewConsole(opts.console)))
	}
	orch := orchestrator.New(st.Registry(), orchOpts...)
	relay.o = orch
	st.SetTaskRunner(orch)

	s := &session{
		cfg:      cfg,
		mode:     mode,
		logger:   logger,
		db:       db,
		live:     live,
		site:     st,
		orch:     orch,
		recorder: state.NewRecorder(db, mode),
		recDone:  make(chan struct{}),
	}
	events := orch.Events().Subscribe(eventBuffer)
	go func() {
		defer close(s.recDone)
		s.recorder.Consume(events)
	}()

	logger.Log("session %s: mode=%s root=%s", opts.command, mode, cfg.Root)
	return s, nil
}

// sessionNotifier tells the live server about written files and, with
// debug on, records them in the debug log.
func sessionNotifier(live sink.Notifier, logger *orchestrator.DebugLogger) sink.Notifier {
	if !logger.Enabled() {
		return live
	}
	changes := logger.Component("notify")
	return sink.Multi(
		sink.NotifierFunc(func(paths []string) error {
			changes.Log("%d file(s) written: %s", len(paths), strings.Join(paths, ", "))
			return nil
		}),
		live,
	)
}

// watchSnapshot reports the watch bindings and connected browsers.
func (s *session) watchSnapshot() tui.WatchMsg {
	return tui.WatchMsg{Bindings: s.site.WatchStatus(), Clients: s.live.Clients()}
}

// run executes the named tasks. Cancellation by a signal is a clean
// shutdown, not a failure.
func (s *session) run(ctx context.Context, names ...string) error {
	err := s.orch.Run(ctx, names...)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// close stops event delivery, waits for the recorder to drain and closes
// the history database.
func (s *session) close() {
	s.orch.Close()
	<-s.recDone
	if err := s.recorder.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: build history incomplete: %v\n", err)
	}
	s.db.Close()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
