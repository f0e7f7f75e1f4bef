package workspace

import (
	"context"
	"errors"

	"rasterkit/internal/correction"
	"rasterkit/internal/issues"
	"rasterkit/internal/raster"
)

// ErrNoDecisionSource reports issues that need a decision when nothing can
// provide one.
var ErrNoDecisionSource = errors.New("correction decision required but no decision source is configured")

// DecisionSource asks the user whether and how to correct detected issues.
// The presentation layer implements it.
type DecisionSource interface {
	RequestCorrectionDecision(ctx context.Context, h raster.Handle, found []issues.Issue) (correction.Decision, error)
}

// DecisionFunc adapts a function to DecisionSource.
type DecisionFunc func(ctx context.Context, h raster.Handle, found []issues.Issue) (correction.Decision, error)

func (f DecisionFunc) RequestCorrectionDecision(ctx context.Context, h raster.Handle, found []issues.Issue) (correction.Decision, error) {
	return f(ctx, h, found)
}

// Always answers every prompt with d.
func Always(d correction.Decision) DecisionSource {
	return DecisionFunc(func(context.Context, raster.Handle, []issues.Issue) (correction.Decision, error) {
		return d, nil
	})
}
