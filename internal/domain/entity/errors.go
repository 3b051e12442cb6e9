package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned for selection operations on an index that
	// is not part of the current frame store.
	ErrOutOfRange = errors.New("frame index out of range")

	// ErrNothingToExport is returned when an export is requested with no
	// frames selected.
	ErrNothingToExport = errors.New("no frames selected for export")

	// ErrJobInProgress is returned when an extraction is started while
	// another job is still running.
	ErrJobInProgress = errors.New("an extraction job is already running")

	// ErrCancelled marks a job aborted by the user. It is a terminal
	// non-success state, not a failure.
	ErrCancelled = errors.New("job cancelled")

	// ErrUnknownJob is returned when a handle does not refer to the
	// current job.
	ErrUnknownJob = errors.New("unknown job handle")
)

// DecodeError reports that the source video could not be decoded: the file
// cannot be opened, has no decodable frames, or the decoding engine failed.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("video could not be decoded: %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ExportError reports an I/O failure while writing the export artifact.
// Written counts the files already written before the failure; partial
// output is left in place and never rolled back.
type ExportError struct {
	Dest    string
	Written int
	Err     error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export to %s failed after %d file(s): %v", e.Dest, e.Written, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
