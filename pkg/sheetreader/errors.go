package sheetreader

import (
	"errors"
	"fmt"
)

// ErrReadFailure marks an input that could not be decoded.
var ErrReadFailure = errors.New("sheetreader: read failed")

// errStopRead unwinds a decode loop on purpose. It never leaves the package.
var errStopRead = errors.New("sheetreader: stop requested")

// ReadError is returned when the input itself is unreadable or malformed.
type ReadError struct {
	Source string
	Format Format
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("sheetreader: failed to read %s file %q: %v", e.Format, e.Source, e.Err)
}

func (e *ReadError) Unwrap() []error {
	return []error{ErrReadFailure, e.Err}
}
