package excelstream

import (
	"errors"
	"fmt"
)

var (
	// ErrBuildFault marks a pipeline that failed and can no longer be used.
	ErrBuildFault = errors.New("excelstream: build failed")
	// ErrRejected is returned when rows arrive after termination was requested.
	ErrRejected = errors.New("excelstream: pipeline no longer accepts rows")
	// ErrTimeout is the liveness failure raised when the queue stalls.
	ErrTimeout = errors.New("excelstream: queue timeout")
	// ErrTitlesAlreadySet is returned by a second AppendTitles call.
	ErrTitlesAlreadySet = errors.New("excelstream: title rows already set")
	// ErrUnsupportedKind is returned by a DocumentFactory that cannot produce the kind.
	ErrUnsupportedKind = errors.New("excelstream: unsupported document kind")
	// ErrNotStarted is returned when the pipeline is used before Start.
	ErrNotStarted = errors.New("excelstream: pipeline not started")
)

// BuildError wraps the cause of a build fault.
type BuildError struct {
	Op  string
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("excelstream: %s: %v", e.Op, e.Err)
}

func (e *BuildError) Unwrap() []error {
	return []error{ErrBuildFault, e.Err}
}
