package export

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDestination reports an empty destination path.
	ErrNoDestination = errors.New("destination path is empty")
	// ErrSameAsSource reports a destination that would overwrite the source.
	ErrSameAsSource = errors.New("destination is the source raster")
	// ErrDestinationDir reports a destination directory that is missing or
	// not writable.
	ErrDestinationDir = errors.New("destination directory unusable")
)

// Error reports a failed export. Stage is one of "validate", "guard",
// "read", "write" or "finalize"; Band is the 1-based source band being
// copied, or 0.
type Error struct {
	Stage string
	Band  int
	Err   error
}

func (e *Error) Error() string {
	if e.Band > 0 {
		return fmt.Sprintf("export %s band %d: %v", e.Stage, e.Band, e.Err)
	}
	return fmt.Sprintf("export %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind classifies the error for presentation.
func (e *Error) ErrorKind() string { return "export" }
