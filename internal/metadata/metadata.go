// Package metadata turns a raster handle into a best-effort report. Each
// section is computed independently: a failure or panic in one section is
// recorded in the report and never suppresses the others.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"rasterkit/internal/logging"
	"rasterkit/internal/raster"
)

// Transform statuses.
const (
	TransformOK          = "ok"
	TransformMissing     = "missing"
	TransformNotIterable = "not-iterable"
	TransformInvalid     = "invalid"
)

// UndefinedCRS is reported when a raster carries no coordinate system.
const UndefinedCRS = "undefined"

// Report is the structured metadata of one raster.
type Report struct {
	ID        string           `json:"id"`
	Width     int              `json:"width"`
	Height    int              `json:"height"`
	BandCount int              `json:"band_count"`
	DataType  string           `json:"dtype"`
	CRS       string           `json:"crs"`
	Transform TransformSection `json:"geotransform"`
	NoData    NoDataSection    `json:"nodata"`
	Extent    *Extent          `json:"extent,omitempty"`
	Bands     []BandReport     `json:"bands"`
	Problems  []Problem        `json:"problems,omitempty"`
}

// TransformSection reports the geotransform and whether it is usable.
type TransformSection struct {
	Status string    `json:"status"`
	Values []float64 `json:"values,omitempty"`
	Detail string    `json:"detail,omitempty"`
	raw    raster.GeoTransform
}

// NoDataSection reports the NoData sentinel.
type NoDataSection struct {
	Defined bool    `json:"defined"`
	Value   float64 `json:"-"`
	Text    string  `json:"value,omitempty"`
}

// Extent is the georeferenced bounding box.
type Extent struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Bound converts the extent back to an orb bound.
func (e Extent) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{e.MinX, e.MinY}, Max: orb.Point{e.MaxX, e.MaxY}}
}

// BandReport is the per-band section.
type BandReport struct {
	Band  int     `json:"band"`
	Name  string  `json:"name"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"stddev"`
	Valid int     `json:"valid"`
	Total int     `json:"total"`
	Error string  `json:"error,omitempty"`
}

// Problem records a section that could not be produced.
type Problem struct {
	Section string `json:"section"`
	Message string `json:"message"`
}

// SectionError is a failed report section.
type SectionError struct {
	Section string
	Err     error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("metadata section %s: %v", e.Section, e.Err)
}

func (e *SectionError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for presentation.
func (e *SectionError) ErrorKind() string { return "metadata" }

// Err joins the report's problems into one error, or nil when the report is
// complete.
func (r *Report) Err() error {
	if len(r.Problems) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Problems))
	for _, p := range r.Problems {
		errs = append(errs, &SectionError{Section: p.Section, Err: errors.New(p.Message)})
	}
	return errors.Join(errs...)
}

// BandName is the display name of a 1-based band.
func BandName(band int) string {
	return "Band " + strconv.Itoa(band)
}

// Inspector builds reports.
type Inspector struct {
	// Concurrency bounds the per-band statistics workers; values below one
	// mean one.
	Concurrency int
	Logger      *slog.Logger
}

// Describe builds a report with default settings.
func Describe(ctx context.Context, h raster.Handle) Report {
	return (&Inspector{}).Describe(ctx, h)
}

// Describe builds the report for h. It never panics and never fails; see
// Report.Problems for sections that could not be produced.
func (in *Inspector) Describe(ctx context.Context, h raster.Handle) Report {
	logger := logging.NewComponentLogger(in.Logger, "metadata")
	var r Report

	r.section(logger, "identity", func() error {
		r.ID = h.ID()
		return nil
	})
	r.section(logger, "dimensions", func() error {
		r.Width, r.Height = h.Width(), h.Height()
		return nil
	})
	r.section(logger, "band_count", func() error {
		r.BandCount = h.BandCount()
		return nil
	})
	r.section(logger, "dtype", func() error {
		r.DataType = h.DataType().String()
		return nil
	})
	r.CRS = UndefinedCRS
	r.section(logger, "crs", func() error {
		if crs := h.CRS(); crs != "" {
			r.CRS = crs
		}
		return nil
	})
	r.section(logger, "geotransform", func() error {
		r.Transform = describeTransform(h)
		return nil
	})
	r.section(logger, "nodata", func() error {
		v, ok := h.NoData()
		r.NoData = NoDataSection{Defined: ok, Value: v}
		if ok {
			r.NoData.Text = raster.FormatNoData(v)
		}
		return nil
	})
	if r.Transform.Status == TransformOK && r.Width > 0 && r.Height > 0 {
		r.section(logger, "extent", func() error {
			b := r.Transform.raw.Bounds(r.Width, r.Height)
			r.Extent = &Extent{MinX: b.Min.X(), MinY: b.Min.Y(), MaxX: b.Max.X(), MaxY: b.Max.Y()}
			return nil
		})
	}
	r.section(logger, "bands", func() error {
		r.Bands = in.describeBands(ctx, h, r.BandCount)
		return nil
	})
	for _, b := range r.Bands {
		if b.Error != "" {
			r.Problems = append(r.Problems, Problem{Section: b.Name, Message: b.Error})
		}
	}
	return r
}

// section runs fn and records its error or panic as a problem.
func (r *Report) section(logger *slog.Logger, name string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return fn()
	}()
	if err == nil {
		return
	}
	r.Problems = append(r.Problems, Problem{Section: name, Message: err.Error()})
	logging.WarnWithContext(logger, "metadata section unavailable", "metadata_section_failed",
		logging.String("section", name),
		logging.Error(err),
		logging.String(logging.FieldImpact, "report is partial"),
	)
}

func describeTransform(h raster.Handle) TransformSection {
	gt, err := h.GeoTransform()
	switch {
	case err == nil:
		return TransformSection{Status: TransformOK, Values: gt[:], raw: gt}
	case errors.Is(err, raster.ErrNoTransform):
		return TransformSection{Status: TransformMissing}
	case errors.Is(err, raster.ErrTransformNotIterable):
		return TransformSection{Status: TransformNotIterable, Detail: err.Error()}
	default:
		return TransformSection{Status: TransformInvalid, Detail: err.Error()}
	}
}

func (in *Inspector) describeBands(ctx context.Context, h raster.Handle, count int) []BandReport {
	bands := make([]BandReport, count)
	limit := in.Concurrency
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range bands {
		band := i + 1
		bands[i] = BandReport{Band: band, Name: BandName(band)}
		g.Go(func() error {
			bands[i].fill(gctx, h, band)
			return nil
		})
	}
	_ = g.Wait()
	return bands
}

func (b *BandReport) fill(ctx context.Context, h raster.Handle, band int) {
	defer func() {
		if p := recover(); p != nil {
			b.Error = fmt.Sprintf("panic: %v", p)
		}
	}()
	if err := ctx.Err(); err != nil {
		b.Error = err.Error()
		return
	}
	info, err := h.BandInfo(ctx, band)
	if err != nil {
		b.Error = err.Error()
		return
	}
	b.Min, b.Max, b.Mean, b.Std = info.Min, info.Max, info.Mean, info.StdDev
	b.Valid, b.Total = info.Valid, info.Total
	if !info.HasData() {
		b.Min, b.Max, b.Mean, b.Std = 0, 0, 0, 0
	}
}
