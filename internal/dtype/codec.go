package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TIFF SampleFormat values.
const (
	SampleUint  = 1
	SampleInt   = 2
	SampleFloat = 3
)

// FromTIFF maps a TIFF SampleFormat and BitsPerSample pair to a DataType.
func FromTIFF(sampleFormat, bits int) (DataType, error) {
	if sampleFormat == 0 {
		sampleFormat = SampleUint
	}
	switch {
	case sampleFormat == SampleUint && bits == 8:
		return UInt8, nil
	case sampleFormat == SampleInt && bits == 8:
		return Int8, nil
	case sampleFormat == SampleUint && bits == 16:
		return UInt16, nil
	case sampleFormat == SampleInt && bits == 16:
		return Int16, nil
	case sampleFormat == SampleUint && bits == 32:
		return UInt32, nil
	case sampleFormat == SampleInt && bits == 32:
		return Int32, nil
	case sampleFormat == SampleFloat && bits == 32:
		return Float32, nil
	case sampleFormat == SampleFloat && bits == 64:
		return Float64, nil
	}
	return Unknown, fmt.Errorf("unsupported sample layout: format %d, %d bits", sampleFormat, bits)
}

// TIFFSampleFormat returns the TIFF SampleFormat for t.
func (t DataType) TIFFSampleFormat() int {
	switch {
	case t.IsFloat():
		return SampleFloat
	case t.IsSigned():
		return SampleInt
	default:
		return SampleUint
	}
}

// Decode reads one sample of type t from b.
func (t DataType) Decode(order binary.ByteOrder, b []byte) float64 {
	switch t {
	case UInt8:
		return float64(b[0])
	case Int8:
		return float64(int8(b[0]))
	case UInt16:
		return float64(order.Uint16(b))
	case Int16:
		return float64(int16(order.Uint16(b)))
	case UInt32:
		return float64(order.Uint32(b))
	case Int32:
		return float64(int32(order.Uint32(b)))
	case Float32:
		return float64(math.Float32frombits(order.Uint32(b)))
	case Float64:
		return math.Float64frombits(order.Uint64(b))
	default:
		return math.NaN()
	}
}

// Encode writes v as one sample of type t into b. Integer types round to
// nearest and clamp to the type range; NaN becomes zero.
func (t DataType) Encode(order binary.ByteOrder, b []byte, v float64) {
	if !t.IsFloat() {
		v = clampInt(t, v)
	}
	switch t {
	case UInt8:
		b[0] = uint8(v)
	case Int8:
		b[0] = uint8(int8(v))
	case UInt16:
		order.PutUint16(b, uint16(v))
	case Int16:
		order.PutUint16(b, uint16(int16(v)))
	case UInt32:
		order.PutUint32(b, uint32(v))
	case Int32:
		order.PutUint32(b, uint32(int32(v)))
	case Float32:
		order.PutUint32(b, math.Float32bits(float32(v)))
	case Float64:
		order.PutUint64(b, math.Float64bits(v))
	}
}

func clampInt(t DataType, v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	lo, hi := t.Range()
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
