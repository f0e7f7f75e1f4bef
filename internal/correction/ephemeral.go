package correction

import (
	"context"
	"math"
	"sync"

	"rasterkit/internal/dtype"
	"rasterkit/internal/geotiff"
	"rasterkit/internal/raster"
)

// plan is the combined effect of the applied issues.
type plan struct {
	dataType  dtype.DataType
	setNoData bool
	nodata    float64
}

// Ephemeral is a corrected view over a source handle. Fixes are applied per
// band as it is read; nothing is written to disk. It deliberately has no
// Path, so it cannot be exported.
type Ephemeral struct {
	source raster.Handle
	plan   plan

	mu    sync.Mutex
	stats map[int]raster.BandInfo
}

var _ raster.Handle = (*Ephemeral)(nil)

func newEphemeral(source raster.Handle, p plan) *Ephemeral {
	return &Ephemeral{source: source, plan: p}
}

// Source returns the handle the view corrects.
func (e *Ephemeral) Source() raster.Handle { return e.source }

func (e *Ephemeral) ID() string               { return e.source.ID() + "#corrected" }
func (e *Ephemeral) Width() int               { return e.source.Width() }
func (e *Ephemeral) Height() int              { return e.source.Height() }
func (e *Ephemeral) BandCount() int           { return e.source.BandCount() }
func (e *Ephemeral) DataType() dtype.DataType { return e.plan.dataType }
func (e *Ephemeral) CRS() string              { return e.source.CRS() }

func (e *Ephemeral) GeoTransform() (raster.GeoTransform, error) {
	return e.source.GeoTransform()
}

func (e *Ephemeral) NoData() (float64, bool) {
	if e.plan.setNoData {
		return e.plan.nodata, true
	}
	return e.source.NoData()
}

func (e *Ephemeral) Geo() geotiff.Geo {
	geo := e.source.Geo()
	if e.plan.setNoData {
		geo.NoData = raster.FormatNoData(e.plan.nodata)
	}
	return geo
}

// ReadBand reads band from the source and rewrites missing pixels to the
// new sentinel.
func (e *Ephemeral) ReadBand(ctx context.Context, band int) ([]float64, error) {
	values, err := e.source.ReadBand(ctx, band)
	if err != nil {
		return nil, err
	}
	if !e.plan.setNoData {
		return values, nil
	}
	old, hadOld := e.source.NoData()
	nanIsMissing := !e.plan.dataType.IsFloat()
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			if nanIsMissing {
				values[i] = e.plan.nodata
			}
		case hadOld && v == old:
			values[i] = e.plan.nodata
		}
	}
	return values, nil
}

func (e *Ephemeral) BandInfo(ctx context.Context, band int) (raster.BandInfo, error) {
	e.mu.Lock()
	info, ok := e.stats[band]
	e.mu.Unlock()
	if ok {
		return info, nil
	}

	info, err := raster.StatsFor(ctx, e, band)
	if err != nil {
		return raster.BandInfo{}, err
	}
	e.mu.Lock()
	if e.stats == nil {
		e.stats = make(map[int]raster.BandInfo)
	}
	e.stats[band] = info
	e.mu.Unlock()
	return info, nil
}

// Close releases the view. The source handle stays open; its owner closes it.
func (e *Ephemeral) Close() error { return nil }
