package geotiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/klauspost/compress/zlib"

	"rasterkit/internal/dtype"
)

// targetStripBytes is the uncompressed size each strip aims for.
const targetStripBytes = 64 << 10

func declaredTypeMetadata(declared dtype.DataType) string {
	return fmt.Sprintf(`<GDALMetadata><Item name="%s" domain="%s">%s</Item></GDALMetadata>`,
		metadataDataType, metadataDomain, declared)
}

// ErrIncomplete reports a writer closed before every band was written.
var ErrIncomplete = errors.New("geotiff: not all bands written")

// Writer streams bands into a new GeoTIFF file. Bands must be written in
// order 1..N; the image directory is written by Close.
type Writer struct {
	file         *os.File
	order        binary.ByteOrder
	header       Header
	geo          Geo
	rowsPerStrip int
	offsets      []uint32
	byteCounts   []uint32
	next         int
	pos          int64
	closed       bool
}

// Create truncates or creates path and prepares it for band data.
func Create(path string, header Header, geo Geo) (*Writer, error) {
	if header.Compression == 0 {
		header.Compression = CompressionNone
	}
	if err := header.Validate(); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	rowBytes := header.Width * header.StorageType().Size()
	rows := targetStripBytes / rowBytes
	if rows < 1 {
		rows = 1
	}
	if rows > header.Height {
		rows = header.Height
	}

	w := &Writer{
		file:         file,
		order:        binary.LittleEndian,
		header:       header,
		geo:          geo.Clone(),
		rowsPerStrip: rows,
		next:         1,
	}
	// Directory offset is patched in Close.
	if _, err := file.Write([]byte{'I', 'I', 42, 0, 0, 0, 0, 0}); err != nil {
		_ = file.Close()
		return nil, err
	}
	w.pos = 8
	return w, nil
}

// WriteBand appends band data. band must be the next band in sequence and
// data must hold Width*Height values in row-major order.
func (w *Writer) WriteBand(band int, data []float64) error {
	h := w.header
	if w.closed {
		return errors.New("geotiff: writer closed")
	}
	if band != w.next {
		return fmt.Errorf("geotiff: band %d written out of order, expected %d", band, w.next)
	}
	if len(data) != h.Width*h.Height {
		return fmt.Errorf("geotiff: band %d has %d values, need %d", band, len(data), h.Width*h.Height)
	}

	storage := h.StorageType()
	size := storage.Size()
	for row := 0; row < h.Height; row += w.rowsPerStrip {
		rows := w.rowsPerStrip
		if row+rows > h.Height {
			rows = h.Height - row
		}
		strip := make([]byte, rows*h.Width*size)
		values := data[row*h.Width : (row+rows)*h.Width]
		for i, v := range values {
			storage.Encode(w.order, strip[i*size:], v)
		}
		payload, err := w.compress(strip)
		if err != nil {
			return fmt.Errorf("band %d: %w", band, err)
		}
		if err := w.append(payload); err != nil {
			return fmt.Errorf("band %d: %w", band, err)
		}
	}
	w.next++
	return nil
}

func (w *Writer) compress(strip []byte) ([]byte, error) {
	if w.header.Compression != CompressionDeflate {
		return strip, nil
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(strip); err != nil {
		return nil, fmt.Errorf("deflate strip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("deflate strip: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *Writer) append(payload []byte) error {
	if w.pos+int64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("%w: output exceeds 4 GiB", ErrUnsupported)
	}
	if _, err := w.file.Write(payload); err != nil {
		return err
	}
	w.offsets = append(w.offsets, uint32(w.pos))
	w.byteCounts = append(w.byteCounts, uint32(len(payload)))
	w.pos += int64(len(payload))
	return nil
}

// Close writes the image directory and closes the file. It fails with
// ErrIncomplete when fewer than Bands bands were written.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if w.next <= w.header.Bands {
		_ = w.Abort()
		return fmt.Errorf("%w: wrote %d of %d", ErrIncomplete, w.next-1, w.header.Bands)
	}
	if err := w.writeDirectory(); err != nil {
		_ = w.Abort()
		return err
	}
	w.closed = true
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

// Abort closes the file without completing it. The caller owns removal of
// the partial file.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

type outEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func (w *Writer) writeDirectory() error {
	h := w.header
	storage := h.StorageType()
	perSample := func(v uint16) []uint16 {
		out := make([]uint16, h.Bands)
		for i := range out {
			out[i] = v
		}
		return out
	}

	entries := []outEntry{
		w.longs(tagImageWidth, uint32(h.Width)),
		w.longs(tagImageLength, uint32(h.Height)),
		w.shorts(tagBitsPerSample, perSample(uint16(storage.Bits()))...),
		w.shorts(tagCompression, uint16(h.Compression)),
		w.shorts(tagPhotometric, 1),
		w.longs(tagStripOffsets, w.offsets...),
		w.shorts(tagSamplesPerPixel, uint16(h.Bands)),
		w.longs(tagRowsPerStrip, uint32(w.rowsPerStrip)),
		w.longs(tagStripByteCounts, w.byteCounts...),
		w.shorts(tagPlanarConfiguration, planarSeparate),
		w.shorts(tagSampleFormat, perSample(uint16(storage.TIFFSampleFormat()))...),
	}
	if h.Bands > 1 {
		entries = append(entries, w.shorts(tagExtraSamples, make([]uint16, h.Bands-1)...))
	}
	for _, f := range []struct {
		tag   uint16
		field Field
	}{
		{tagModelPixelScale, w.geo.PixelScale},
		{tagModelTiepoint, w.geo.Tiepoints},
		{tagModelTransformation, w.geo.Transformation},
	} {
		if e, ok := w.fieldEntry(f.tag, f.field); ok {
			entries = append(entries, e)
		}
	}
	if len(w.geo.KeyDirectory) > 0 {
		entries = append(entries, w.shorts(tagGeoKeyDirectory, w.geo.KeyDirectory...))
	}
	if len(w.geo.DoubleParams) > 0 {
		entries = append(entries, w.doubles(tagGeoDoubleParams, w.geo.DoubleParams...))
	}
	if w.geo.ASCIIParams != "" {
		entries = append(entries, ascii(tagGeoASCIIParams, w.geo.ASCIIParams))
	}
	if storage != h.DataType {
		entries = append(entries, ascii(tagGDALMetadata, declaredTypeMetadata(h.DataType)))
	}
	if w.geo.NoData != "" {
		entries = append(entries, ascii(tagGDALNoData, w.geo.NoData))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	if w.pos%2 == 1 {
		if _, err := w.file.Write([]byte{0}); err != nil {
			return err
		}
		w.pos++
	}
	dirOffset := w.pos
	dirSize := int64(2 + 12*len(entries) + 4)

	var dir, extra bytes.Buffer
	extraStart := dirOffset + dirSize
	_ = binary.Write(&dir, w.order, uint16(len(entries)))
	for _, e := range entries {
		_ = binary.Write(&dir, w.order, e.tag)
		_ = binary.Write(&dir, w.order, e.typ)
		_ = binary.Write(&dir, w.order, e.count)
		if len(e.data) <= 4 {
			value := make([]byte, 4)
			copy(value, e.data)
			dir.Write(value)
			continue
		}
		at := extraStart + int64(extra.Len())
		if at+int64(len(e.data)) > math.MaxUint32 {
			return fmt.Errorf("%w: output exceeds 4 GiB", ErrUnsupported)
		}
		_ = binary.Write(&dir, w.order, uint32(at))
		extra.Write(e.data)
		if extra.Len()%2 == 1 {
			extra.WriteByte(0)
		}
	}
	_ = binary.Write(&dir, w.order, uint32(0))

	if _, err := w.file.Write(dir.Bytes()); err != nil {
		return err
	}
	if _, err := w.file.Write(extra.Bytes()); err != nil {
		return err
	}

	offset := make([]byte, 4)
	w.order.PutUint32(offset, uint32(dirOffset))
	if _, err := w.file.WriteAt(offset, 4); err != nil {
		return err
	}
	return nil
}

func (w *Writer) fieldEntry(tag uint16, f Field) (outEntry, bool) {
	switch {
	case !f.Set:
		return outEntry{}, false
	case f.Numeric && len(f.Numbers) > 0:
		return w.doubles(tag, f.Numbers...), true
	case !f.Numeric:
		return ascii(tag, f.Text), true
	default:
		return outEntry{}, false
	}
}

func (w *Writer) shorts(tag uint16, values ...uint16) outEntry {
	data := make([]byte, 2*len(values))
	for i, v := range values {
		w.order.PutUint16(data[i*2:], v)
	}
	return outEntry{tag: tag, typ: typeShort, count: uint32(len(values)), data: data}
}

func (w *Writer) longs(tag uint16, values ...uint32) outEntry {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		w.order.PutUint32(data[i*4:], v)
	}
	return outEntry{tag: tag, typ: typeLong, count: uint32(len(values)), data: data}
}

func (w *Writer) doubles(tag uint16, values ...float64) outEntry {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		w.order.PutUint64(data[i*8:], math.Float64bits(v))
	}
	return outEntry{tag: tag, typ: typeDouble, count: uint32(len(values)), data: data}
}

func ascii(tag uint16, value string) outEntry {
	data := append([]byte(value), 0)
	return outEntry{tag: tag, typ: typeASCII, count: uint32(len(data)), data: data}
}

// WriteFile writes a complete raster in one call. It is a convenience for
// small rasters and tests; bands[i] holds band i+1.
func WriteFile(path string, header Header, geo Geo, bands [][]float64) error {
	if len(bands) != header.Bands {
		return fmt.Errorf("geotiff: %d bands supplied for a %d-band header", len(bands), header.Bands)
	}
	w, err := Create(path, header, geo)
	if err != nil {
		return err
	}
	for i, data := range bands {
		if err := w.WriteBand(i+1, data); err != nil {
			_ = w.Abort()
			return err
		}
	}
	return w.Close()
}
