package pipeline

import (
	"errors"
	"fmt"
)

// TransformError reports a failed stage. It is returned to the owning task
// and never terminates the process.
type TransformError struct {
	// Pipeline is the owning pipeline's name.
	Pipeline string
	// Stage is the failed stage's name.
	Stage string
	// File is the relative path being processed, empty for whole-set stages.
	File string
	Err  error
}

func (e *TransformError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s: %v", e.Pipeline, e.Stage, e.File, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Pipeline, e.Stage, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// fileError attributes a stage failure to one input file.
type fileError struct {
	rel string
	err error
}

func (e *fileError) Error() string { return e.rel + ": " + e.err.Error() }
func (e *fileError) Unwrap() error { return e.err }

// newTransformError wraps err, lifting the file name out of a fileError.
func newTransformError(pipeline, stage string, err error) *TransformError {
	te := &TransformError{Pipeline: pipeline, Stage: stage, Err: err}
	var fe *fileError
	if errors.As(err, &fe) {
		te.File = fe.rel
		te.Err = fe.err
	}
	return te
}
