package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/sitepipe/internal/task"
)

// Orchestrator resolves task names against a registry, runs them and
// reports lifecycle events.
type Orchestrator struct {
	registry *task.Registry
	emitter  *EventEmitter
	logger   *DebugLogger
	console  *Console
	command  string
}

// New creates an Orchestrator over registry.
func New(registry *task.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{registry: registry}
	for _, opt := range opts {
		opt(o)
	}
	if o.emitter == nil {
		o.emitter = NewEventEmitter()
	}
	if o.logger == nil {
		o.logger = NopLogger()
	}
	return o
}

// Registry returns the task registry.
func (o *Orchestrator) Registry() *task.Registry {
	return o.registry
}

// Events returns the emitter subscribers attach to.
func (o *Orchestrator) Events() *EventEmitter {
	return o.emitter
}

// Log prints a console line and forwards it to subscribers. It lets the
// orchestrator serve as a pipeline's console.
func (o *Orchestrator) Log(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	o.console.Log("%s", msg)
	o.logger.Log("%s", msg)
	o.emitter.Emit(Event{Type: EventLog, Message: msg})
}

// Run executes the named tasks concurrently, as a parallel composite, and
// returns the first failure. Unknown names fail before anything runs.
func (o *Orchestrator) Run(ctx context.Context, names ...string) error {
	tasks := make([]*task.Task, 0, len(names))
	for _, name := range names {
		t, err := o.registry.Get(name)
		if err != nil {
			return err
		}
		tasks = append(tasks, t)
	}

	root := task.Parallel(tasks...)
	if len(tasks) == 1 {
		root = tasks[0]
	}

	runID := uuid.NewString()
	start := time.Now()
	o.logger.Log("[run %s] %s: starting %v", runID, o.command, names)
	o.emitter.Emit(Event{Type: EventRunStarted, RunID: runID, Command: o.command, Tasks: names, Timestamp: start})

	err := task.Run(ctx, root, &observer{o: o, runID: runID})

	elapsed := time.Since(start)
	o.logger.Log("[run %s] finished after %v: %v", runID, elapsed, err)
	o.emitter.Emit(Event{Type: EventRunFinished, RunID: runID, Command: o.command, Tasks: names, Error: err, Duration: elapsed})
	return err
}

// Close closes subscriber channels and the debug log.
func (o *Orchestrator) Close() error {
	o.emitter.Close()
	return o.logger.Close()
}

// observer turns task lifecycle callbacks into console lines and events.
type observer struct {
	o     *Orchestrator
	runID string
}

func (ob *observer) TaskStarted(name string) {
	ob.o.console.Starting(name)
	ob.o.logger.Log("[run %s] task %s started", ob.runID, name)
	ob.o.emitter.Emit(Event{Type: EventTaskStarted, RunID: ob.runID, Task: name})
}

func (ob *observer) TaskFinished(name string, elapsed time.Duration, err error) {
	if err != nil {
		ob.o.console.Errored(name, elapsed, err)
		ob.o.logger.Log("[run %s] task %s failed after %v: %v", ob.runID, name, elapsed, err)
		ob.o.emitter.Emit(Event{Type: EventTaskFailed, RunID: ob.runID, Task: name, Error: err, Duration: elapsed})
		return
	}
	ob.o.console.Finished(name, elapsed)
	ob.o.logger.Log("[run %s] task %s finished after %v", ob.runID, name, elapsed)
	ob.o.emitter.Emit(Event{Type: EventTaskCompleted, RunID: ob.runID, Task: name, Duration: elapsed})
}

var _ task.Observer = (*observer)(nil)
