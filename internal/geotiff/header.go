package geotiff

import (
	"fmt"

	"rasterkit/internal/dtype"
)

// Header describes the pixel grid of a raster file.
type Header struct {
	Width  int
	Height int
	Bands  int
	// DataType is the declared sample type.
	DataType dtype.DataType
	// Storage is the physical sample type. It differs from DataType when a
	// file declares a narrower type than it stores. Zero means DataType.
	Storage     dtype.DataType
	Compression Compression
}

// StorageType returns the physical sample type.
func (h Header) StorageType() dtype.DataType {
	if h.Storage == dtype.Unknown {
		return h.DataType
	}
	return h.Storage
}

// Validate checks that the header describes a writable raster.
func (h Header) Validate() error {
	if h.Width <= 0 || h.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrFormat, h.Width, h.Height)
	}
	if h.Bands < 1 {
		return fmt.Errorf("%w: band count %d", ErrFormat, h.Bands)
	}
	if h.Bands > 0xffff {
		return fmt.Errorf("%w: band count %d exceeds 65535", ErrUnsupported, h.Bands)
	}
	if !h.DataType.Valid() {
		return fmt.Errorf("%w: data type %s", ErrUnsupported, h.DataType)
	}
	if storage := h.StorageType(); !storage.Valid() {
		return fmt.Errorf("%w: storage type %s", ErrUnsupported, storage)
	}
	switch h.Compression {
	case 0, CompressionNone, CompressionDeflate:
	default:
		return fmt.Errorf("%w: compression %d", ErrUnsupported, h.Compression)
	}
	return nil
}

// Field is a georeferencing tag payload. Numeric payloads land in Numbers;
// anything else (ASCII or opaque bytes) is kept as Text so it can be
// reported and written back unchanged.
type Field struct {
	Set     bool
	Numeric bool
	Numbers []float64
	Text    string
}

// Numbers builds a numeric field.
func Numbers(values ...float64) Field {
	return Field{Set: true, Numeric: true, Numbers: append([]float64(nil), values...)}
}

// Text builds a non-numeric field.
func Text(value string) Field {
	return Field{Set: true, Text: value}
}

func (f Field) clone() Field {
	out := f
	if f.Numbers != nil {
		out.Numbers = append([]float64(nil), f.Numbers...)
	}
	return out
}

// Geo holds the georeferencing and NoData tags of a file.
type Geo struct {
	PixelScale     Field
	Tiepoints      Field
	Transformation Field
	KeyDirectory   []uint16
	DoubleParams   []float64
	ASCIIParams    string
	// NoData is the raw GDAL_NODATA string; empty means undefined.
	NoData string
}

// Clone returns a deep copy of g.
func (g Geo) Clone() Geo {
	out := g
	out.PixelScale = g.PixelScale.clone()
	out.Tiepoints = g.Tiepoints.clone()
	out.Transformation = g.Transformation.clone()
	if g.KeyDirectory != nil {
		out.KeyDirectory = append([]uint16(nil), g.KeyDirectory...)
	}
	if g.DoubleParams != nil {
		out.DoubleParams = append([]float64(nil), g.DoubleParams...)
	}
	return out
}
