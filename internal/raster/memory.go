package raster

import (
	"context"
	"errors"
	"fmt"

	"rasterkit/internal/dtype"
	"rasterkit/internal/geotiff"
)

// MemorySpec describes an in-memory raster.
type MemorySpec struct {
	ID       string
	Width    int
	Height   int
	DataType dtype.DataType
	Geo      geotiff.Geo
	// Bands holds one slice per band, each Width*Height values long.
	Bands [][]float64
}

// Memory is a raster held entirely in memory. It is used for fixtures and
// for small derived rasters.
type Memory struct {
	spec   MemorySpec
	crs    string
	nodata float64
	hasND  bool
	stats  bandCache
}

// NewMemory validates spec and wraps it as a Handle. Band slices are not
// copied; callers must not mutate them afterwards.
func NewMemory(spec MemorySpec) (*Memory, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", spec.Width, spec.Height)
	}
	if len(spec.Bands) == 0 {
		return nil, errors.New("raster has no bands")
	}
	if !spec.DataType.Valid() {
		return nil, fmt.Errorf("invalid data type %s", spec.DataType)
	}
	for i, b := range spec.Bands {
		if len(b) != spec.Width*spec.Height {
			return nil, fmt.Errorf("band %d has %d values, need %d", i+1, len(b), spec.Width*spec.Height)
		}
	}
	if spec.ID == "" {
		spec.ID = "memory"
	}
	nodata, has := ParseNoData(spec.Geo.NoData)
	return &Memory{
		spec:   spec,
		crs:    CRSFromGeo(spec.Geo),
		nodata: nodata,
		hasND:  has,
	}, nil
}

func (m *Memory) ID() string               { return m.spec.ID }
func (m *Memory) Width() int               { return m.spec.Width }
func (m *Memory) Height() int              { return m.spec.Height }
func (m *Memory) BandCount() int           { return len(m.spec.Bands) }
func (m *Memory) DataType() dtype.DataType { return m.spec.DataType }
func (m *Memory) CRS() string              { return m.crs }
func (m *Memory) Geo() geotiff.Geo         { return m.spec.Geo.Clone() }
func (m *Memory) NoData() (float64, bool)  { return m.nodata, m.hasND }

func (m *Memory) GeoTransform() (GeoTransform, error) {
	return TransformFromGeo(m.spec.Geo)
}

func (m *Memory) ReadBand(ctx context.Context, band int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkBand(m, band); err != nil {
		return nil, err
	}
	return append([]float64(nil), m.spec.Bands[band-1]...), nil
}

func (m *Memory) BandInfo(ctx context.Context, band int) (BandInfo, error) {
	if err := checkBand(m, band); err != nil {
		return BandInfo{}, err
	}
	return m.stats.get(ctx, band, func(ctx context.Context) (BandInfo, error) {
		return statsFor(ctx, m, band)
	})
}

func (m *Memory) Close() error { return nil }
