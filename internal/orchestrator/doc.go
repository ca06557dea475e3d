// Package orchestrator runs named tasks from the registry and reports on
// them.
//
// The orchestrator package provides functionality for:
//   - Running: resolving task names and executing them as one parallel group
//   - Events: emitting task and run lifecycle events to subscribers
//   - Logging: gulp-style console lines and an optional debug log file
//
// Subscribers such as the build history recorder and the dashboard read
// from the EventEmitter; a slow subscriber loses events rather than
// stalling the build.
//
// Example usage:
//
//	orch := orchestrator.New(registry, orchestrator.WithConsole(orchestrator.NewConsole(os.Stdout)))
//	defer orch.Close()
//	err := orch.Run(ctx, "build")
package orchestrator
