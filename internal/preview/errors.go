package preview

import (
	"errors"
	"fmt"

	"rasterkit/internal/issues"
)

// ErrDeclined reports a declined correction under the "block" policy.
var ErrDeclined = errors.New("correction declined and uncorrected previews are blocked")

// Error reports a preview that failed after validation.
type Error struct {
	Stage string
	// Band is the 1-based band being processed, or 0.
	Band int
	Err  error
}

func (e *Error) Error() string {
	if e.Band > 0 {
		return fmt.Sprintf("preview %s band %d: %v", e.Stage, e.Band, e.Err)
	}
	return fmt.Sprintf("preview %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind classifies the error for presentation.
func (e *Error) ErrorKind() string { return "preview" }

// DecisionRequiredError is returned when the raster has issues and the
// request carries no correction decision. The caller asks the user and
// retries with Request.Decision set.
type DecisionRequiredError struct {
	Issues []issues.Issue
}

func (e *DecisionRequiredError) Error() string {
	return fmt.Sprintf("correction decision required for %d issue(s): %v", len(e.Issues), issues.Kinds(e.Issues))
}

// ErrorKind classifies the error for presentation.
func (e *DecisionRequiredError) ErrorKind() string { return "preview" }
