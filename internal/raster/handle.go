package raster

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"rasterkit/internal/dtype"
	"rasterkit/internal/geotiff"
)

// Handle is a read-only view over a raster source. Implementations are safe
// for concurrent readers.
type Handle interface {
	// ID is the source path or derived-sample id.
	ID() string
	Width() int
	Height() int
	BandCount() int
	DataType() dtype.DataType
	// CRS returns the coordinate reference system or "" when undefined.
	CRS() string
	GeoTransform() (GeoTransform, error)
	// NoData returns the NoData sentinel and whether one is defined.
	NoData() (float64, bool)
	// Geo returns the raw georeferencing tags.
	Geo() geotiff.Geo
	// ReadBand returns the values of band (1-based) in row-major order.
	ReadBand(ctx context.Context, band int) ([]float64, error)
	// BandInfo returns statistics for band, computing them on first use.
	BandInfo(ctx context.Context, band int) (BandInfo, error)
	Close() error
}

// Persistent is a handle backed by a file on disk.
type Persistent interface {
	Handle
	Path() string
}

// OpenError reports a raster that could not be opened.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open raster %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for presentation.
func (e *OpenError) ErrorKind() string { return "open" }

// ParseNoData parses a GDAL_NODATA string. Empty or unparsable values are
// treated as undefined.
func ParseNoData(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FormatNoData renders v the way GDAL_NODATA stores it.
func FormatNoData(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func checkBand(h Handle, band int) error {
	if band < 1 || band > h.BandCount() {
		return fmt.Errorf("band %d out of range 1..%d", band, h.BandCount())
	}
	return nil
}
