package geotiff

import (
	"errors"
	"fmt"
	"strings"
)

const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagPhotometric         = 262
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfiguration = 284
	tagPredictor           = 317
	tagTileWidth           = 322
	tagTileLength          = 323
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagExtraSamples        = 338
	tagSampleFormat        = 339
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGeoDoubleParams     = 34736
	tagGeoASCIIParams      = 34737
	tagGDALMetadata        = 42112
	tagGDALNoData          = 42113
)

const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeSByte     = 6
	typeUndefined = 7
	typeSShort    = 8
	typeSLong     = 9
	typeSRational = 10
	typeFloat     = 11
	typeDouble    = 12
)

var typeSizes = map[uint16]int{
	typeByte:      1,
	typeASCII:     1,
	typeShort:     2,
	typeLong:      4,
	typeRational:  8,
	typeSByte:     1,
	typeUndefined: 1,
	typeSShort:    2,
	typeSLong:     4,
	typeSRational: 8,
	typeFloat:     4,
	typeDouble:    8,
}

// Compression identifies how strip or tile payloads are encoded.
type Compression int

const (
	CompressionNone    Compression = 1
	CompressionDeflate Compression = 8

	// compressionAdobeDeflate is the legacy code some writers still emit.
	compressionAdobeDeflate Compression = 32946
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionDeflate, compressionAdobeDeflate:
		return "deflate"
	default:
		return "unknown"
	}
}

// ParseCompression maps a configuration name to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "deflate", "zlib":
		return CompressionDeflate, nil
	default:
		return 0, fmt.Errorf("%w: compression %q", ErrUnsupported, name)
	}
}

const (
	planarChunky   = 1
	planarSeparate = 2
)

// maxTagBytes bounds a single tag payload so a corrupt count cannot trigger a
// huge allocation.
const maxTagBytes = 64 << 20

// maxBandPixels bounds Width*Height (and a tile's area) so one band always
// fits a float64 buffer.
const maxBandPixels = 1 << 31

// maxDeflateRatio is the largest expansion zlib can produce, used to reject
// headers whose chunks cannot hold the pixels they describe.
const maxDeflateRatio = 1032

// The declared type of a raster stored in a wider physical type travels as a
// GDAL_METADATA item in rasterkit's own domain.
const (
	metadataDomain   = "rasterkit"
	metadataDataType = "DATATYPE"
)

var (
	// ErrFormat reports a file that is not a well-formed TIFF.
	ErrFormat = errors.New("geotiff: malformed file")
	// ErrUnsupported reports a valid TIFF feature this package does not decode.
	ErrUnsupported = errors.New("geotiff: unsupported feature")
)
