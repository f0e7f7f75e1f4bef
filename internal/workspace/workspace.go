// Package workspace is the entry point for presentation layers. It wires the
// raster, metadata, issue, correction, preview and export packages to the
// configuration and the sample registry and exposes one call per user-facing
// operation.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rasterkit/internal/bandorder"
	"rasterkit/internal/config"
	"rasterkit/internal/correction"
	"rasterkit/internal/export"
	"rasterkit/internal/geotiff"
	"rasterkit/internal/issues"
	"rasterkit/internal/logging"
	"rasterkit/internal/metadata"
	"rasterkit/internal/preview"
	"rasterkit/internal/raster"
	"rasterkit/internal/samples"
)

// Workspace holds the collaborators shared by every operation.
type Workspace struct {
	cfg       *config.Config
	logger    *slog.Logger
	samples   *samples.Store
	decisions DecisionSource

	inspector *metadata.Inspector
	engine    *correction.Engine
	composer  *preview.Composer
	exporter  *export.Exporter
}

// Option customises a Workspace.
type Option func(*Workspace)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) { w.logger = logger }
}

// WithDecisionSource sets who answers correction prompts.
func WithDecisionSource(src DecisionSource) Option {
	return func(w *Workspace) { w.decisions = src }
}

// Open prepares the configured directories and the sample registry.
func Open(cfg *config.Config, opts ...Option) (*Workspace, error) {
	if cfg == nil {
		return nil, errors.New("workspace: config is nil")
	}
	w := &Workspace{cfg: cfg}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logging.NewNop()
	}

	compression, err := geotiff.ParseCompression(cfg.Export.Compression)
	if err != nil {
		return nil, fmt.Errorf("export.compression: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	store, err := samples.Open(cfg.SamplesDBPath())
	if err != nil {
		return nil, fmt.Errorf("open sample registry: %w", err)
	}
	w.samples = store

	w.inspector = &metadata.Inspector{Concurrency: cfg.Inspect.StatsConcurrency, Logger: w.logger}
	w.engine = &correction.Engine{
		SamplesDir:  cfg.Paths.SamplesDir,
		Registry:    store,
		Compression: compression,
		Logger:      w.logger,
	}
	w.composer = &preview.Composer{
		Engine:       w.engine,
		OnDecline:    cfg.Preview.OnDecline,
		MaxDimension: cfg.Preview.MaxDimension,
		Logger:       w.logger,
	}
	w.exporter = &export.Exporter{Compression: compression, Logger: w.logger}
	return w, nil
}

// Close releases the sample registry.
func (w *Workspace) Close() error {
	if w == nil || w.samples == nil {
		return nil
	}
	return w.samples.Close()
}

func (w *Workspace) Config() *config.Config  { return w.cfg }
func (w *Workspace) Samples() *samples.Store { return w.samples }

// OpenRaster opens the raster at path. The caller closes it.
func (w *Workspace) OpenRaster(path string) (*raster.File, error) {
	h, err := raster.Open(path)
	if err != nil {
		logging.WarnWithContext(w.logger, "raster open failed", "open_failed",
			logging.String(logging.FieldRaster, path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the path and that the file is a GeoTIFF"),
			logging.String(logging.FieldImpact, "raster unavailable"),
		)
		return nil, err
	}
	w.logger.Debug("raster opened",
		logging.String(logging.FieldRaster, h.Path()),
		logging.Int("bands", h.BandCount()),
		logging.String("data_type", h.DataType().String()),
	)
	return h, nil
}

// DescribeMetadata builds the metadata report. It never fails; see
// Report.Problems.
func (w *Workspace) DescribeMetadata(ctx context.Context, h raster.Handle) metadata.Report {
	var report metadata.Report
	_ = w.run(ctx, "describe", h, func(ctx context.Context) error {
		report = w.inspector.Describe(ctx, h)
		return nil
	})
	return report
}

// DetectIssues scans h for data-quality issues.
func (w *Workspace) DetectIssues(ctx context.Context, h raster.Handle) ([]issues.Issue, error) {
	var found []issues.Issue
	err := w.run(ctx, "detect", h, func(ctx context.Context) error {
		var err error
		found, err = issues.Scan(ctx, h)
		return err
	})
	return found, err
}

// RequestCorrectionDecision forwards the prompt to the decision source.
func (w *Workspace) RequestCorrectionDecision(ctx context.Context, h raster.Handle, found []issues.Issue) (correction.Decision, error) {
	if w.decisions == nil {
		return correction.Decision{}, ErrNoDecisionSource
	}
	d, err := w.decisions.RequestCorrectionDecision(ctx, h, found)
	if err != nil {
		return correction.Decision{}, fmt.Errorf("request correction decision: %w", err)
	}
	w.logger.Info("correction decision received",
		logging.String(logging.FieldRaster, h.ID()),
		logging.String("decision", d.String()),
		logging.Any("issue_kinds", issues.Kinds(found)),
	)
	return d, nil
}

// ApplyCorrection applies decision to found issues of h.
func (w *Workspace) ApplyCorrection(ctx context.Context, h raster.Handle, found []issues.Issue, decision correction.Decision) (*correction.Result, error) {
	var res *correction.Result
	err := w.run(ctx, "correct", h, func(ctx context.Context) error {
		var err error
		res, err = w.engine.Apply(ctx, h, found, decision)
		return err
	})
	return res, err
}

// ComposePreview renders order of h. When h has issues the decision source
// is asked before composing.
func (w *Workspace) ComposePreview(ctx context.Context, h raster.Handle, order bandorder.Order) (*preview.Result, error) {
	var res *preview.Result
	err := w.run(ctx, "preview", h, func(ctx context.Context) error {
		var err error
		res, err = w.composer.Compose(ctx, preview.Request{Handle: h, Order: order})
		var need *preview.DecisionRequiredError
		if !errors.As(err, &need) {
			return err
		}
		d, err := w.RequestCorrectionDecision(ctx, h, need.Issues)
		if err != nil {
			return err
		}
		res, err = w.composer.Compose(ctx, preview.Request{Handle: h, Order: order, Decision: &d})
		return err
	})
	return res, err
}

// ExportResult is the outcome of ExportBands.
type ExportResult struct {
	*export.Result
	Issues []issues.Issue
	// Correction is set when the user chose to persist a corrected sample;
	// the export was then taken from that sample.
	Correction *correction.Result
}

// ExportBands writes order of h to dest. Issues are detected first; a
// persisted correction is exported from the new sample, while a
// preview-only correction or a decline exports the original data. h must
// be a file on disk.
func (w *Workspace) ExportBands(ctx context.Context, h raster.Handle, order bandorder.Order, dest string) (*ExportResult, error) {
	var res *ExportResult
	err := w.run(ctx, "export", h, func(ctx context.Context) error {
		src, ok := h.(raster.Persistent)
		if !ok {
			return &export.Error{Stage: "validate", Err: fmt.Errorf("%s is not a file on disk; persist the correction to export it", h.ID())}
		}
		if err := order.ValidateSubset(h.BandCount()); err != nil {
			return err
		}
		found, err := issues.Scan(ctx, h)
		if err != nil {
			return &export.Error{Stage: "detect", Err: err}
		}
		res = &ExportResult{Issues: found}
		if len(found) > 0 && w.decisions != nil {
			d, err := w.RequestCorrectionDecision(ctx, h, found)
			if err != nil {
				return err
			}
			if d.Apply && d.Persist {
				corrected, err := w.engine.Apply(ctx, h, found, d)
				if err != nil {
					return err
				}
				res.Correction = corrected
				if sample, ok := corrected.Handle.(*raster.File); ok && corrected.Persisted() {
					defer sample.Close()
					src = sample
				}
			} else if d.Apply {
				w.logger.Info("preview-only correction ignored for export; exporting original data",
					logging.String(logging.FieldRaster, h.ID()),
				)
			}
		}
		exported, err := w.exporter.Export(ctx, export.Request{Source: src, Order: order, Destination: dest})
		if err != nil {
			return err
		}
		res.Result = exported
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// run executes one operation with start, completion and failure logging.
func (w *Workspace) run(ctx context.Context, op string, h raster.Handle, fn func(context.Context) error) error {
	if h == nil {
		return fmt.Errorf("%s: nil raster handle", op)
	}
	opCtx := logging.WithOperation(ctx, op)
	logger := logging.WithContext(opCtx, w.logger).With(logging.String(logging.FieldRaster, h.ID()))
	start := time.Now()
	logger.Debug("operation started", logging.String(logging.FieldEventType, "operation_start"))

	if err := fn(opCtx); err != nil {
		logger.Error("operation failed",
			logging.String(logging.FieldEventType, "operation_failure"),
			logging.Duration("elapsed", time.Since(start)),
			logging.Error(err),
		)
		return err
	}
	logger.Debug("operation completed",
		logging.String(logging.FieldEventType, "operation_complete"),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}
