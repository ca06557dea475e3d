package task

import "fmt"

// DuplicateTaskError is returned when a name is registered twice.
type DuplicateTaskError struct {
	Name string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %q is already registered", e.Name)
}

// UnknownTaskError is returned when a task name is not in the registry.
type UnknownTaskError struct {
	Name string
	// Referrer is the composite that referenced Name, if any.
	Referrer string
}

func (e *UnknownTaskError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("task %q references unknown task %q", e.Referrer, e.Name)
	}
	return fmt.Sprintf("task %q is not registered", e.Name)
}

// Error attaches a primitive task's failure to the task that produced it.
type Error struct {
	Task string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("task %q: %v", e.Task, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking task body.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
