package correction

import (
	"fmt"
	"strings"
)

// Decision is the user's answer to a correction prompt.
type Decision struct {
	// Apply corrects the data.
	Apply bool
	// Persist writes the corrected data as a new sample.
	Persist bool
}

// Yes applies the correction and persists it as a new sample.
func Yes() Decision { return Decision{Apply: true, Persist: true} }

// No applies the correction to an ephemeral view for the current caller only.
func No() Decision { return Decision{Apply: true} }

// Decline leaves the data untouched.
func Decline() Decision { return Decision{} }

func (d Decision) String() string {
	switch {
	case d.Apply && d.Persist:
		return "yes"
	case d.Apply:
		return "no"
	default:
		return "decline"
	}
}

// ParseDecision reads "yes", "no", or "decline".
func ParseDecision(raw string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "persist":
		return Yes(), nil
	case "no", "n", "preview":
		return No(), nil
	case "decline", "cancel", "skip":
		return Decline(), nil
	default:
		return Decision{}, fmt.Errorf("unknown correction decision %q (want yes, no, or decline)", raw)
	}
}
