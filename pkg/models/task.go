package models

import "time"

// TaskStatus represents the current state of a build task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the task is executing.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusDone indicates the task completed successfully.
	TaskStatusDone TaskStatus = "done"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusDone, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// RunStatus represents the state of one CLI invocation (a build or a serve session).
type RunStatus string

const (
	// RunActive indicates the run is still in progress.
	RunActive RunStatus = "active"
	// RunSucceeded indicates every requested task succeeded.
	RunSucceeded RunStatus = "succeeded"
	// RunFailed indicates at least one requested task failed.
	RunFailed RunStatus = "failed"
	// RunInterrupted indicates the run was stopped by a signal.
	RunInterrupted RunStatus = "interrupted"
)

// Valid returns true if the status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunActive, RunSucceeded, RunFailed, RunInterrupted:
		return true
	default:
		return false
	}
}

// TaskRecord is the outcome of one task execution within a run.
type TaskRecord struct {
	// RunID is the run this execution belongs to.
	RunID string `json:"run_id"`
	// Task is the registered task name.
	Task string `json:"task"`
	// Status is the final state of the execution.
	Status TaskStatus `json:"status"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty"`
	// Duration is the wall-clock time the task took.
	Duration time.Duration `json:"duration"`
	// FinishedAt is when the task completed.
	FinishedAt time.Time `json:"finished_at"`
}

// Run represents one invocation of the CLI.
type Run struct {
	// ID is the unique identifier for this run.
	ID string `json:"id"`
	// Command is the CLI command that started the run (build, serve, run).
	Command string `json:"command"`
	// Mode is the environment mode the run used.
	Mode Mode `json:"mode"`
	// Status is the current state of the run.
	Status RunStatus `json:"status"`
	// Error contains the failure message, if any.
	Error string `json:"error,omitempty"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run ended, if it has.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
