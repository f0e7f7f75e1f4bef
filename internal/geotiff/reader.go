package geotiff

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/zlib"

	"rasterkit/internal/dtype"
)

// Reader decodes bands from a GeoTIFF file. It is safe for concurrent use:
// all reads go through ReadAt.
type Reader struct {
	file   *os.File
	order  binary.ByteOrder
	header Header
	geo    Geo
	layout layout
}

type layout struct {
	planar      int
	chunkWidth  int
	chunkHeight int
	across      int
	down        int
	tiled       bool
	offsets     []uint64
	byteCounts  []uint64
}

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// Open parses the first image directory of the file at path.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{file: file}
	if err := r.parse(); err != nil {
		_ = file.Close()
		return nil, err
	}
	return r, nil
}

// Header returns the pixel grid description.
func (r *Reader) Header() Header { return r.header }

// Geo returns a copy of the georeferencing tags.
func (r *Reader) Geo() Geo { return r.geo.Clone() }

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *Reader) parse() error {
	head := make([]byte, 8)
	if _, err := r.file.ReadAt(head, 0); err != nil {
		return fmt.Errorf("%w: read header: %v", ErrFormat, err)
	}
	switch string(head[:2]) {
	case "II":
		r.order = binary.LittleEndian
	case "MM":
		r.order = binary.BigEndian
	default:
		return fmt.Errorf("%w: missing byte order mark", ErrFormat)
	}
	switch magic := r.order.Uint16(head[2:4]); magic {
	case 42:
	case 43:
		return fmt.Errorf("%w: BigTIFF", ErrUnsupported)
	default:
		return fmt.Errorf("%w: bad magic %d", ErrFormat, magic)
	}

	entries, err := r.readDirectory(int64(r.order.Uint32(head[4:8])))
	if err != nil {
		return err
	}
	if err := r.decodeHeader(entries); err != nil {
		return err
	}
	r.decodeGeo(entries)
	return nil
}

func (r *Reader) readDirectory(offset int64) (map[uint16]entry, error) {
	if offset < 8 {
		return nil, fmt.Errorf("%w: directory offset %d", ErrFormat, offset)
	}
	countBuf := make([]byte, 2)
	if _, err := r.file.ReadAt(countBuf, offset); err != nil {
		return nil, fmt.Errorf("%w: read directory: %v", ErrFormat, err)
	}
	count := int(r.order.Uint16(countBuf))
	raw := make([]byte, count*12)
	if _, err := r.file.ReadAt(raw, offset+2); err != nil {
		return nil, fmt.Errorf("%w: read directory entries: %v", ErrFormat, err)
	}

	entries := make(map[uint16]entry, count)
	for i := 0; i < count; i++ {
		b := raw[i*12 : (i+1)*12]
		e := entry{
			tag:   r.order.Uint16(b[0:2]),
			typ:   r.order.Uint16(b[2:4]),
			count: r.order.Uint32(b[4:8]),
		}
		size, known := typeSizes[e.typ]
		if !known {
			// Unknown types are skipped, as the TIFF spec requires.
			continue
		}
		total := int64(size) * int64(e.count)
		if total > maxTagBytes {
			return nil, fmt.Errorf("%w: tag %d payload of %d bytes", ErrFormat, e.tag, total)
		}
		if total <= 4 {
			e.data = append([]byte(nil), b[8:8+total]...)
		} else {
			e.data = make([]byte, total)
			if _, err := r.file.ReadAt(e.data, int64(r.order.Uint32(b[8:12]))); err != nil {
				return nil, fmt.Errorf("%w: read tag %d: %v", ErrFormat, e.tag, err)
			}
		}
		entries[e.tag] = e
	}
	return entries, nil
}

func (r *Reader) decodeHeader(entries map[uint16]entry) error {
	width, err := r.single(entries, tagImageWidth, 0, true)
	if err != nil {
		return err
	}
	height, err := r.single(entries, tagImageLength, 0, true)
	if err != nil {
		return err
	}
	bands, err := r.single(entries, tagSamplesPerPixel, 1, false)
	if err != nil {
		return err
	}
	bits, err := r.uniform(entries, tagBitsPerSample, 1, int(bands))
	if err != nil {
		return err
	}
	format, err := r.uniform(entries, tagSampleFormat, dtype.SampleUint, int(bands))
	if err != nil {
		return err
	}
	compression, err := r.single(entries, tagCompression, uint64(CompressionNone), false)
	if err != nil {
		return err
	}
	predictor, err := r.single(entries, tagPredictor, 1, false)
	if err != nil {
		return err
	}
	planar, err := r.single(entries, tagPlanarConfiguration, planarChunky, false)
	if err != nil {
		return err
	}

	if width == 0 || height == 0 || width > math.MaxInt32 || height > math.MaxInt32 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrFormat, width, height)
	}
	if width*height > maxBandPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels per band", ErrUnsupported, width, height, uint64(maxBandPixels))
	}
	if bands == 0 {
		return fmt.Errorf("%w: zero samples per pixel", ErrFormat)
	}
	if predictor != 1 {
		return fmt.Errorf("%w: predictor %d", ErrUnsupported, predictor)
	}
	switch Compression(compression) {
	case CompressionNone, CompressionDeflate, compressionAdobeDeflate:
	default:
		return fmt.Errorf("%w: compression %d", ErrUnsupported, compression)
	}
	if planar != planarChunky && planar != planarSeparate {
		return fmt.Errorf("%w: planar configuration %d", ErrFormat, planar)
	}

	storage, err := dtype.FromTIFF(int(format), int(bits))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	meta := parseGDALMetadata(entries)
	if storage == dtype.UInt8 && strings.EqualFold(meta.value("", "PIXELTYPE"), "SIGNEDBYTE") {
		storage = dtype.Int8
	}
	declared := storage
	if name := meta.value(metadataDomain, metadataDataType); name != "" {
		t, err := dtype.Parse(name)
		if err != nil {
			return fmt.Errorf("%w: declared %v", ErrFormat, err)
		}
		declared = t
	}

	r.header = Header{
		Width:       int(width),
		Height:      int(height),
		Bands:       int(bands),
		DataType:    declared,
		Storage:     storage,
		Compression: Compression(compression),
	}
	return r.decodeLayout(entries, int(planar))
}

func (r *Reader) decodeLayout(entries map[uint16]entry, planar int) error {
	h := r.header
	l := layout{planar: planar}

	offsetTag, countTag := uint16(tagStripOffsets), uint16(tagStripByteCounts)
	if _, ok := entries[tagTileWidth]; ok {
		tw, err := r.single(entries, tagTileWidth, 0, true)
		if err != nil {
			return err
		}
		th, err := r.single(entries, tagTileLength, 0, true)
		if err != nil {
			return err
		}
		if tw == 0 || th == 0 {
			return fmt.Errorf("%w: zero tile size", ErrFormat)
		}
		if tw > math.MaxInt32 || th > math.MaxInt32 || tw*th > maxBandPixels {
			return fmt.Errorf("%w: tile %dx%d", ErrUnsupported, tw, th)
		}
		l.tiled = true
		l.chunkWidth, l.chunkHeight = int(tw), int(th)
		offsetTag, countTag = tagTileOffsets, tagTileByteCounts
	} else {
		rows, err := r.single(entries, tagRowsPerStrip, uint64(h.Height), false)
		if err != nil {
			return err
		}
		if rows == 0 || rows > uint64(h.Height) {
			rows = uint64(h.Height)
		}
		l.chunkWidth, l.chunkHeight = h.Width, int(rows)
	}
	l.across = (h.Width + l.chunkWidth - 1) / l.chunkWidth
	l.down = (h.Height + l.chunkHeight - 1) / l.chunkHeight

	var err error
	if l.offsets, err = r.uints(entries, offsetTag); err != nil {
		return err
	}
	if l.byteCounts, err = r.uints(entries, countTag); err != nil {
		return err
	}
	want := l.across * l.down
	if planar == planarSeparate {
		want *= h.Bands
	}
	if len(l.offsets) < want || len(l.byteCounts) < want {
		return fmt.Errorf("%w: expected %d chunks, found %d offsets and %d byte counts",
			ErrFormat, want, len(l.offsets), len(l.byteCounts))
	}
	var stored uint64
	for _, n := range l.byteCounts[:want] {
		stored += n
	}
	ratio := uint64(1)
	if h.Compression != CompressionNone {
		ratio = maxDeflateRatio
	}
	if need := uint64(h.Width) * uint64(h.Height) * uint64(h.Bands) * uint64(h.StorageType().Size()); stored*ratio < need {
		return fmt.Errorf("%w: chunks hold %d bytes, image needs %d", ErrFormat, stored, need)
	}
	r.layout = l
	return nil
}

// ReadBand decodes band (1-based) into dst, which must hold Width*Height
// values in row-major order.
func (r *Reader) ReadBand(band int, dst []float64) error {
	h := r.header
	if r.file == nil {
		return errors.New("geotiff: reader closed")
	}
	if band < 1 || band > h.Bands {
		return fmt.Errorf("geotiff: band %d out of range 1..%d", band, h.Bands)
	}
	if len(dst) < h.Width*h.Height {
		return fmt.Errorf("geotiff: buffer holds %d values, need %d", len(dst), h.Width*h.Height)
	}

	l := r.layout
	storage := h.StorageType()
	size := storage.Size()
	stride := size
	sampleOffset := 0
	if l.planar == planarChunky {
		stride = size * h.Bands
		sampleOffset = (band - 1) * size
	}

	perBand := l.across * l.down
	for cy := 0; cy < l.down; cy++ {
		for cx := 0; cx < l.across; cx++ {
			index := cy*l.across + cx
			if l.planar == planarSeparate {
				index += (band - 1) * perBand
			}
			rows := l.chunkHeight
			if !l.tiled && cy == l.down-1 {
				rows = h.Height - cy*l.chunkHeight
			}
			chunk, err := r.readChunk(index, l.chunkWidth*rows*stride)
			if err != nil {
				return fmt.Errorf("band %d: %w", band, err)
			}
			x0, y0 := cx*l.chunkWidth, cy*l.chunkHeight
			for y := 0; y < rows && y0+y < h.Height; y++ {
				for x := 0; x < l.chunkWidth && x0+x < h.Width; x++ {
					at := (y*l.chunkWidth+x)*stride + sampleOffset
					dst[(y0+y)*h.Width+x0+x] = storage.Decode(r.order, chunk[at:at+size])
				}
			}
		}
	}
	return nil
}

func (r *Reader) readChunk(index, need int) ([]byte, error) {
	offset, length := r.layout.offsets[index], r.layout.byteCounts[index]
	if length > maxTagBytes*4 {
		return nil, fmt.Errorf("%w: chunk %d of %d bytes", ErrFormat, index, length)
	}
	raw := make([]byte, length)
	if _, err := r.file.ReadAt(raw, int64(offset)); err != nil {
		return nil, fmt.Errorf("%w: read chunk %d: %v", ErrFormat, index, err)
	}
	data := raw
	if r.header.Compression != CompressionNone {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: inflate chunk %d: %v", ErrFormat, index, err)
		}
		data, err = io.ReadAll(io.LimitReader(zr, int64(need)))
		_ = zr.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: inflate chunk %d: %v", ErrFormat, index, err)
		}
	}
	if len(data) < need {
		return nil, fmt.Errorf("%w: chunk %d holds %d bytes, need %d", ErrFormat, index, len(data), need)
	}
	return data, nil
}

func (r *Reader) decodeGeo(entries map[uint16]entry) {
	r.geo = Geo{
		PixelScale:     r.field(entries, tagModelPixelScale),
		Tiepoints:      r.field(entries, tagModelTiepoint),
		Transformation: r.field(entries, tagModelTransformation),
	}
	if keys, err := r.uints(entries, tagGeoKeyDirectory); err == nil {
		r.geo.KeyDirectory = make([]uint16, len(keys))
		for i, k := range keys {
			r.geo.KeyDirectory[i] = uint16(k)
		}
	}
	if doubles := r.field(entries, tagGeoDoubleParams); doubles.Numeric {
		r.geo.DoubleParams = doubles.Numbers
	}
	if e, ok := entries[tagGeoASCIIParams]; ok && e.typ == typeASCII {
		r.geo.ASCIIParams = asciiValue(e.data)
	}
	if e, ok := entries[tagGDALNoData]; ok && e.typ == typeASCII {
		r.geo.NoData = strings.TrimSpace(asciiValue(e.data))
	}
}

func (r *Reader) field(entries map[uint16]entry, tag uint16) Field {
	e, ok := entries[tag]
	if !ok {
		return Field{}
	}
	if values, numeric := r.numbers(e); numeric {
		return Field{Set: true, Numeric: true, Numbers: values}
	}
	return Field{Set: true, Text: asciiValue(e.data)}
}

func (r *Reader) numbers(e entry) ([]float64, bool) {
	n := int(e.count)
	out := make([]float64, 0, n)
	d := e.data
	for i := 0; i < n; i++ {
		switch e.typ {
		case typeByte:
			out = append(out, float64(d[i]))
		case typeSByte:
			out = append(out, float64(int8(d[i])))
		case typeShort:
			out = append(out, float64(r.order.Uint16(d[i*2:])))
		case typeSShort:
			out = append(out, float64(int16(r.order.Uint16(d[i*2:]))))
		case typeLong:
			out = append(out, float64(r.order.Uint32(d[i*4:])))
		case typeSLong:
			out = append(out, float64(int32(r.order.Uint32(d[i*4:]))))
		case typeFloat:
			out = append(out, float64(math.Float32frombits(r.order.Uint32(d[i*4:]))))
		case typeDouble:
			out = append(out, math.Float64frombits(r.order.Uint64(d[i*8:])))
		case typeRational:
			num, den := r.order.Uint32(d[i*8:]), r.order.Uint32(d[i*8+4:])
			out = append(out, float64(num)/float64(den))
		case typeSRational:
			num, den := int32(r.order.Uint32(d[i*8:])), int32(r.order.Uint32(d[i*8+4:]))
			out = append(out, float64(num)/float64(den))
		default:
			return nil, false
		}
	}
	return out, true
}

func (r *Reader) uints(entries map[uint16]entry, tag uint16) ([]uint64, error) {
	e, ok := entries[tag]
	if !ok {
		return nil, fmt.Errorf("%w: missing tag %d", ErrFormat, tag)
	}
	out := make([]uint64, e.count)
	for i := range out {
		switch e.typ {
		case typeByte:
			out[i] = uint64(e.data[i])
		case typeShort:
			out[i] = uint64(r.order.Uint16(e.data[i*2:]))
		case typeLong:
			out[i] = uint64(r.order.Uint32(e.data[i*4:]))
		default:
			return nil, fmt.Errorf("%w: tag %d has non-integer type %d", ErrFormat, tag, e.typ)
		}
	}
	return out, nil
}

func (r *Reader) single(entries map[uint16]entry, tag uint16, fallback uint64, required bool) (uint64, error) {
	if _, ok := entries[tag]; !ok {
		if required {
			return 0, fmt.Errorf("%w: missing tag %d", ErrFormat, tag)
		}
		return fallback, nil
	}
	values, err := r.uints(entries, tag)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: empty tag %d", ErrFormat, tag)
	}
	return values[0], nil
}

// uniform reads a per-sample tag and requires every sample to agree.
func (r *Reader) uniform(entries map[uint16]entry, tag uint16, fallback uint64, samples int) (uint64, error) {
	if _, ok := entries[tag]; !ok {
		return fallback, nil
	}
	values, err := r.uints(entries, tag)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: empty tag %d", ErrFormat, tag)
	}
	for i := 1; i < len(values) && i < samples; i++ {
		if values[i] != values[0] {
			return 0, fmt.Errorf("%w: mixed per-band values for tag %d", ErrUnsupported, tag)
		}
	}
	return values[0], nil
}

func asciiValue(data []byte) string {
	return strings.TrimRight(string(data), "\x00")
}

type gdalMetadata struct {
	Items []struct {
		Name   string `xml:"name,attr"`
		Domain string `xml:"domain,attr"`
		Value  string `xml:",chardata"`
	} `xml:"Item"`
}

func parseGDALMetadata(entries map[uint16]entry) gdalMetadata {
	var meta gdalMetadata
	if e, ok := entries[tagGDALMetadata]; ok && e.typ == typeASCII {
		_ = xml.Unmarshal([]byte(asciiValue(e.data)), &meta)
	}
	return meta
}

// value returns the named item. An empty domain matches any domain.
func (m gdalMetadata) value(domain, name string) string {
	for _, item := range m.Items {
		if !strings.EqualFold(item.Name, name) {
			continue
		}
		if domain != "" && !strings.EqualFold(item.Domain, domain) {
			continue
		}
		return strings.TrimSpace(item.Value)
	}
	return ""
}
