package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRaster identifies the raster an operation works on (path or sample id).
	FieldRaster = "raster"
	// FieldOperation names the collaborator-facing operation in progress.
	FieldOperation = "operation"
	// FieldBand is the 1-based band number.
	FieldBand = "band"
	// FieldBands is a band order.
	FieldBands = "bands"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the reader what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type operationKey struct{}

// WithOperation tags ctx with the operation name so log lines emitted under it
// carry the operation field.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey{}, operation)
}

// OperationFromContext returns the operation set by WithOperation.
func OperationFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	op, ok := ctx.Value(operationKey{}).(string)
	return op, ok && op != ""
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if op, ok := OperationFromContext(ctx); ok {
		return logger.With(String(FieldOperation, op))
	}
	return logger
}
