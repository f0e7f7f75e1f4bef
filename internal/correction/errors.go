package correction

import (
	"fmt"

	"rasterkit/internal/issues"
)

// IssueError reports a recommended action that could not be applied. The
// remaining issues are still applied.
type IssueError struct {
	Issue issues.Issue
	Err   error
}

func (e *IssueError) Error() string {
	return fmt.Sprintf("correct %s (%s): %v", e.Issue.Kind, e.Issue.Action, e.Err)
}

func (e *IssueError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for presentation.
func (e *IssueError) ErrorKind() string { return "correction" }
