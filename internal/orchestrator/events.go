package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates a top-level invocation has started.
	EventRunStarted EventType = "run_started"
	// EventRunFinished indicates a top-level invocation has finished.
	EventRunFinished EventType = "run_finished"
	// EventTaskStarted indicates a named task has started execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a named task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a named task failed.
	EventTaskFailed EventType = "task_failed"
	// EventLog carries a console line, such as a file size report.
	EventLog EventType = "log"
)

// Event represents an event emitted by the orchestrator.
// These events are used to update the dashboard and record history.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID groups the events of one invocation.
	RunID string
	// Command is the CLI command that started the run (run events only).
	Command string
	// Tasks are the requested task names (run events only).
	Tasks []string
	// Task is the related task name, if applicable.
	Task string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Duration is the elapsed time for finished events.
	Duration time.Duration
}
