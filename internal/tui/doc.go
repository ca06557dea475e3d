// Package tui provides the terminal dashboard for `sitepipe serve --tui`.
//
// The dashboard is read-only. It lists every named task the orchestrator
// has started together with its latest status, the watch bindings, the
// serve URL with the connected browser count and the last console lines.
// Users can only quit with 'q' or Ctrl+C, which cancels the serve context.
//
// Usage:
//
//	program, app := tui.NewProgram("development", cancel)
//	go tui.Forward(program, orch.Events().Subscribe(256))
//	go tui.Poll(ctx, program, time.Second, snapshot)
//	program.Send(tui.ServingMsg{URL: srv.URL()})
//	_, err := program.Run()
package tui
