package dtype

import (
	"fmt"
	"math"
	"strings"
)

// DataType enumerates the pixel sample types a raster band may declare.
type DataType int

const (
	Unknown DataType = iota
	UInt8
	Int8
	UInt16
	Int16
	UInt32
	Int32
	Float32
	Float64
)

// All lists the supported types in promotion order.
var All = []DataType{UInt8, Int8, UInt16, Int16, UInt32, Int32, Float32, Float64}

func (t DataType) String() string {
	switch t {
	case UInt8:
		return "uint8"
	case Int8:
		return "int8"
	case UInt16:
		return "uint16"
	case Int16:
		return "int16"
	case UInt32:
		return "uint32"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// Parse resolves a type name such as "int16" or "Float32".
func Parse(name string) (DataType, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, t := range All {
		if t.String() == needle {
			return t, nil
		}
	}
	switch needle {
	case "byte":
		return UInt8, nil
	case "real32":
		return Float32, nil
	case "real64":
		return Float64, nil
	}
	return Unknown, fmt.Errorf("unknown data type %q", name)
}

// Valid reports whether t is one of the enumerated types.
func (t DataType) Valid() bool {
	return t >= UInt8 && t <= Float64
}

// Size returns the number of bytes per sample.
func (t DataType) Size() int {
	switch t {
	case UInt8, Int8:
		return 1
	case UInt16, Int16:
		return 2
	case UInt32, Int32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// Bits returns the number of bits per sample.
func (t DataType) Bits() int {
	return t.Size() * 8
}

// IsFloat reports whether t is a floating point type.
func (t DataType) IsFloat() bool {
	return t == Float32 || t == Float64
}

// IsSigned reports whether t can hold negative values.
func (t DataType) IsSigned() bool {
	switch t {
	case Int8, Int16, Int32, Float32, Float64:
		return true
	default:
		return false
	}
}

// Range returns the lowest and highest finite values of t.
func (t DataType) Range() (float64, float64) {
	switch t {
	case UInt8:
		return 0, math.MaxUint8
	case Int8:
		return math.MinInt8, math.MaxInt8
	case UInt16:
		return 0, math.MaxUint16
	case Int16:
		return math.MinInt16, math.MaxInt16
	case UInt32:
		return 0, math.MaxUint32
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Float32:
		return -math.MaxFloat32, math.MaxFloat32
	case Float64:
		return -math.MaxFloat64, math.MaxFloat64
	default:
		return 0, 0
	}
}

// Represents reports whether v survives a round trip through t unchanged.
// NaN is representable only by the float types.
func (t DataType) Represents(v float64) bool {
	if math.IsNaN(v) {
		return t.IsFloat()
	}
	switch t {
	case Float64:
		return true
	case Float32:
		return float64(float32(v)) == v
	case Unknown:
		return false
	}
	if v != math.Trunc(v) {
		return false
	}
	lo, hi := t.Range()
	return v >= lo && v <= hi
}

// Promote returns the narrowest type that round-trips every value in
// [lo, hi], staying in the signedness family of from when possible. When
// integral is false only float types qualify and roundTrips32 reports
// whether all values survive float32.
func Promote(from DataType, lo, hi float64, integral, roundTrips32 bool) DataType {
	if from.IsFloat() || !integral {
		if roundTrips32 && from != Float64 {
			return Float32
		}
		return Float64
	}
	family := []DataType{UInt8, UInt16, UInt32}
	if from.IsSigned() || lo < 0 {
		family = []DataType{Int8, Int16, Int32}
	}
	for _, t := range family {
		if t.Size() < from.Size() {
			continue
		}
		tlo, thi := t.Range()
		if lo >= tlo && hi <= thi {
			return t
		}
	}
	return Float64
}

// Wider returns the next type of the same family with a strictly larger
// range, or Float64 when none exists.
func (t DataType) Wider() DataType {
	switch t {
	case UInt8:
		return UInt16
	case Int8:
		return Int16
	case UInt16:
		return UInt32
	case Int16:
		return Int32
	default:
		return Float64
	}
}
