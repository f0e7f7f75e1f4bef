// Package correction applies the actions recommended by issue detection,
// either to an in-memory view for the current caller or as a new sample file
// recorded in the sample registry. The source raster is never modified.
package correction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"rasterkit/internal/dtype"
	"rasterkit/internal/fileutil"
	"rasterkit/internal/geotiff"
	"rasterkit/internal/issues"
	"rasterkit/internal/logging"
	"rasterkit/internal/pathguard"
	"rasterkit/internal/raster"
	"rasterkit/internal/samples"
	"rasterkit/internal/textutil"
)

// ErrNoSamplesDir reports a persisted correction of a source that has no
// directory of its own while no samples directory is configured.
var ErrNoSamplesDir = errors.New("no samples directory for a source without a path")

// Recorder stores persisted samples.
type Recorder interface {
	Record(ctx context.Context, sample *samples.Sample) error
}

// Engine applies corrections.
type Engine struct {
	// SamplesDir receives persisted samples. Empty places them next to the
	// source file.
	SamplesDir  string
	Registry    Recorder
	Compression geotiff.Compression
	Logger      *slog.Logger
}

// Result is the outcome of Apply.
type Result struct {
	// Handle is the raster to use from now on: the source on decline, an
	// *Ephemeral for a preview-only correction, or the opened sample file.
	// Only a persisted sample handle is owned by the caller.
	Handle  raster.Handle
	Applied []issues.Issue
	Skipped []issues.Issue
	Failed  []*IssueError
	// Sample is set when the correction was persisted.
	Sample *samples.Sample
}

// Corrected reports whether Handle differs from the source.
func (r *Result) Corrected() bool { return len(r.Applied) > 0 }

// Persisted reports whether a sample file was written.
func (r *Result) Persisted() bool { return r.Sample != nil }

// Err joins the per-issue failures, or returns nil when every action applied.
func (r *Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Apply corrects source according to decision. Each issue is applied on its
// own: unknown kinds are skipped with a warning and actions that cannot be
// applied land in Result.Failed while the rest still apply. The returned
// error covers only failures that prevent any result, such as a band read or
// a sample write.
func (e *Engine) Apply(ctx context.Context, source raster.Handle, found []issues.Issue, decision Decision) (*Result, error) {
	if source == nil {
		return nil, errors.New("correction: nil raster handle")
	}
	logger := logging.NewComponentLogger(e.Logger, "correction").With(
		logging.String(logging.FieldRaster, source.ID()),
		logging.String("decision", decision.String()),
	)
	result := &Result{Handle: source}
	if !decision.Apply {
		logger.Info("correction declined", logging.Int("issues", len(found)))
		return result, nil
	}
	if len(found) == 0 {
		logger.Debug("nothing to correct")
		return result, nil
	}

	p, err := e.plan(ctx, source, found, result, logger)
	if err != nil {
		return nil, err
	}
	if len(result.Applied) == 0 {
		return result, nil
	}

	view := newEphemeral(source, p)
	if !decision.Persist {
		result.Handle = view
		logger.Info("correction applied to ephemeral view",
			logging.Any("issue_kinds", issues.Kinds(result.Applied)),
			logging.String("data_type", p.dataType.String()),
		)
		return result, nil
	}

	file, sample, err := e.persist(ctx, source, view, result.Applied)
	if err != nil {
		return nil, fmt.Errorf("persist corrected sample: %w", err)
	}
	result.Handle = file
	result.Sample = sample
	logger.Info("corrected sample persisted",
		logging.String("sample_id", sample.ID),
		logging.String("sample_path", sample.Path),
		logging.Any("issue_kinds", sample.IssueKinds),
	)
	return result, nil
}

// observed summarises the valid values of every band.
type observed struct {
	lo, hi       float64
	hasData      bool
	integral     bool
	roundTrips32 bool
}

func observe(ctx context.Context, h raster.Handle) (observed, error) {
	obs := observed{integral: true, roundTrips32: true}
	for band := 1; band <= h.BandCount(); band++ {
		info, err := h.BandInfo(ctx, band)
		if err != nil {
			return observed{}, fmt.Errorf("band %d: %w", band, err)
		}
		if !info.HasData() {
			continue
		}
		if !obs.hasData || info.Min < obs.lo {
			obs.lo = info.Min
		}
		if !obs.hasData || info.Max > obs.hi {
			obs.hi = info.Max
		}
		obs.hasData = true
		obs.integral = obs.integral && info.Integral
		obs.roundTrips32 = obs.roundTrips32 && info.RoundTrips32
	}
	return obs, nil
}

// heldBy reports whether t represents every observed value.
func (o observed) heldBy(t dtype.DataType) bool {
	if !t.Valid() {
		return false
	}
	if !o.hasData {
		return true
	}
	if !t.Represents(o.lo) || !t.Represents(o.hi) {
		return false
	}
	switch {
	case t == dtype.Float32:
		return o.roundTrips32
	case t.IsFloat():
		return true
	default:
		return o.integral
	}
}

func (e *Engine) plan(ctx context.Context, source raster.Handle, found []issues.Issue, result *Result, logger *slog.Logger) (plan, error) {
	obs, err := observe(ctx, source)
	if err != nil {
		return plan{}, err
	}
	p := plan{dataType: source.DataType()}

	ordered := append([]issues.Issue(nil), found...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Kind == issues.InconsistentDType && ordered[j].Kind != issues.InconsistentDType
	})

	for _, issue := range ordered {
		var err error
		switch issue.Kind {
		case issues.InconsistentDType:
			err = p.cast(issue, obs)
		case issues.MissingNoData:
			err = p.setNoData(issue, obs)
		default:
			logging.WarnWithContext(logger, "skipping unknown issue kind", "correction_skipped",
				logging.String("kind", string(issue.Kind)),
				logging.String(logging.FieldErrorHint, "no corrective action is known for this issue kind"),
				logging.String(logging.FieldImpact, "issue left uncorrected"),
			)
			result.Skipped = append(result.Skipped, issue)
			continue
		}
		if err != nil {
			issueErr := &IssueError{Issue: issue, Err: err}
			logging.WarnWithContext(logger, "correction action failed", "correction_failed",
				logging.String("kind", string(issue.Kind)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "issue left uncorrected; remaining actions still apply"),
			)
			result.Failed = append(result.Failed, issueErr)
			continue
		}
		result.Applied = append(result.Applied, issue)
	}
	return p, nil
}

func (p *plan) cast(issue issues.Issue, obs observed) error {
	if !issue.Target.Valid() {
		return fmt.Errorf("invalid target data type %s", issue.Target)
	}
	if !obs.heldBy(issue.Target) {
		return fmt.Errorf("observed values %g..%g do not fit %s", obs.lo, obs.hi, issue.Target)
	}
	p.dataType = issue.Target
	return nil
}

func (p *plan) setNoData(issue issues.Issue, obs observed) error {
	target := p.dataType
	if issue.Target.Valid() {
		target = issue.Target
	}
	if target != p.dataType && !obs.heldBy(target) {
		return fmt.Errorf("observed values %g..%g do not fit %s", obs.lo, obs.hi, target)
	}
	if !target.Represents(issue.NoData) {
		return fmt.Errorf("sentinel %s cannot be represented as %s", raster.FormatNoData(issue.NoData), target)
	}
	if obs.hasData && issue.NoData >= obs.lo && issue.NoData <= obs.hi {
		return fmt.Errorf("sentinel %s lies within observed values %g..%g", raster.FormatNoData(issue.NoData), obs.lo, obs.hi)
	}
	p.dataType = target
	p.setNoData = true
	p.nodata = issue.NoData
	return nil
}

// SampleName returns the file name of a persisted sample:
// "<stem>.corrected-<id8>.tif".
func SampleName(sourceID, id string) string {
	base := filepath.Base(sourceID)
	stem := textutil.SanitizeFileName(strings.TrimSuffix(base, filepath.Ext(base)), "raster")
	return fmt.Sprintf("%s.corrected-%s.tif", stem, samples.Sample{ID: id}.ShortID())
}

func (e *Engine) persist(ctx context.Context, source raster.Handle, view *Ephemeral, applied []issues.Issue) (*raster.File, *samples.Sample, error) {
	dir := e.SamplesDir
	sourcePath := source.ID()
	persistent, onDisk := source.(raster.Persistent)
	if onDisk {
		sourcePath = persistent.Path()
		if dir == "" {
			dir = filepath.Dir(sourcePath)
		}
	}
	if dir == "" {
		return nil, nil, ErrNoSamplesDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create samples directory: %w", err)
	}

	id := samples.NewID()
	dest := filepath.Join(dir, SampleName(source.ID(), id))
	lease, err := pathguard.Acquire(dest)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = lease.Release() }()

	header := geotiff.Header{
		Width:       view.Width(),
		Height:      view.Height(),
		Bands:       view.BandCount(),
		DataType:    view.DataType(),
		Compression: e.Compression,
	}
	geo := view.Geo()
	if err := fileutil.WriteAtomic(dest, func(tmp string) error {
		return writeRaster(ctx, tmp, header, geo, view)
	}); err != nil {
		return nil, nil, err
	}

	sample := &samples.Sample{
		ID:         id,
		SourcePath: sourcePath,
		Path:       dest,
		DataType:   header.DataType.String(),
		NoData:     geo.NoData,
		IssueKinds: issues.Kinds(applied),
		CreatedAt:  time.Now().UTC(),
	}
	if sample.SHA256, sample.Size, err = fileutil.Checksum(dest); err != nil {
		_ = os.Remove(dest)
		return nil, nil, err
	}
	if onDisk {
		if sample.SourceSHA256, _, err = fileutil.Checksum(sourcePath); err != nil {
			_ = os.Remove(dest)
			return nil, nil, err
		}
	}

	// Reopen before recording so the registry never lists an unreadable file.
	file, err := raster.Open(dest)
	if err != nil {
		_ = os.Remove(dest)
		return nil, nil, err
	}
	if e.Registry != nil {
		if err := e.Registry.Record(ctx, sample); err != nil {
			_ = file.Close()
			_ = os.Remove(dest)
			return nil, nil, fmt.Errorf("record sample: %w", err)
		}
	}
	return file, sample, nil
}

// writeRaster streams every band of h into a new GeoTIFF at path.
func writeRaster(ctx context.Context, path string, header geotiff.Header, geo geotiff.Geo, h raster.Handle) error {
	w, err := geotiff.Create(path, header, geo)
	if err != nil {
		return err
	}
	for band := 1; band <= header.Bands; band++ {
		if err := ctx.Err(); err != nil {
			_ = w.Abort()
			return err
		}
		data, err := h.ReadBand(ctx, band)
		if err != nil {
			_ = w.Abort()
			return fmt.Errorf("read band %d: %w", band, err)
		}
		if err := w.WriteBand(band, data); err != nil {
			_ = w.Abort()
			return err
		}
	}
	return w.Close()
}
