package raster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"rasterkit/internal/dtype"
	"rasterkit/internal/geotiff"
)

// ErrNotRegular reports a path that exists but is not a regular file.
var ErrNotRegular = errors.New("not a regular file")

// File is a raster opened from disk.
type File struct {
	path   string
	reader *geotiff.Reader
	header geotiff.Header
	geo    geotiff.Geo
	crs    string
	nodata float64
	hasND  bool
	stats  bandCache
}

// Open opens the GeoTIFF at path. Failures are reported as *OpenError.
func Open(path string) (*File, error) {
	if path == "" {
		return nil, &OpenError{Path: path, Err: errors.New("path is empty")}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &OpenError{Path: abs, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &OpenError{Path: abs, Err: ErrNotRegular}
	}
	reader, err := geotiff.Open(abs)
	if err != nil {
		return nil, &OpenError{Path: abs, Err: err}
	}

	geo := reader.Geo()
	nodata, has := ParseNoData(geo.NoData)
	return &File{
		path:   abs,
		reader: reader,
		header: reader.Header(),
		geo:    geo,
		crs:    CRSFromGeo(geo),
		nodata: nodata,
		hasND:  has,
	}, nil
}

func (f *File) ID() string               { return f.path }
func (f *File) Path() string             { return f.path }
func (f *File) Width() int               { return f.header.Width }
func (f *File) Height() int              { return f.header.Height }
func (f *File) BandCount() int           { return f.header.Bands }
func (f *File) DataType() dtype.DataType { return f.header.DataType }
func (f *File) CRS() string              { return f.crs }
func (f *File) Geo() geotiff.Geo         { return f.geo.Clone() }
func (f *File) NoData() (float64, bool)  { return f.nodata, f.hasND }

// StorageType is the physical sample type, which differs from DataType when
// the file declares a narrower type than it stores.
func (f *File) StorageType() dtype.DataType { return f.header.StorageType() }

// Compression reports how the file's samples are compressed.
func (f *File) Compression() geotiff.Compression { return f.header.Compression }

func (f *File) GeoTransform() (GeoTransform, error) {
	return TransformFromGeo(f.geo)
}

func (f *File) ReadBand(ctx context.Context, band int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkBand(f, band); err != nil {
		return nil, err
	}
	dst := make([]float64, f.header.Width*f.header.Height)
	if err := f.reader.ReadBand(band, dst); err != nil {
		return nil, fmt.Errorf("read band %d of %s: %w", band, f.path, err)
	}
	return dst, nil
}

func (f *File) BandInfo(ctx context.Context, band int) (BandInfo, error) {
	if err := checkBand(f, band); err != nil {
		return BandInfo{}, err
	}
	return f.stats.get(ctx, band, func(ctx context.Context) (BandInfo, error) {
		return statsFor(ctx, f, band)
	})
}

func (f *File) Close() error {
	return f.reader.Close()
}
