// Package memcodec converts host packed arrays and structured records to and
// from guest linear memory. All multi-byte values are little-endian on the
// wire regardless of host byte order, and every access is bounds checked
// against the byte slice it operates on.
package memcodec

import (
	"encoding/binary"
	"math"

	"github.com/wasmbridge/wasm-bridge/errors"
	"github.com/wasmbridge/wasm-bridge/variant"
)

// ElemType identifies a packed array element type for bulk transfer.
type ElemType uint8

const (
	ElemByte ElemType = iota
	ElemInt32
	ElemInt64
	ElemFloat32
	ElemFloat64
	ElemVector2
	ElemVector3
	ElemColor
)

// ElemSize returns the wire size in bytes of one record of t.
func ElemSize(t ElemType) (int, bool) {
	switch t {
	case ElemByte:
		return 1, true
	case ElemInt32, ElemFloat32:
		return 4, true
	case ElemInt64, ElemFloat64, ElemVector2:
		return 8, true
	case ElemVector3:
		return 12, true
	case ElemColor:
		return 16, true
	}
	return 0, false
}

// ElemTypeName returns the stable name of t, for configuration and errors.
func ElemTypeName(t ElemType) string {
	switch t {
	case ElemByte:
		return "byte"
	case ElemInt32:
		return "int32"
	case ElemInt64:
		return "int64"
	case ElemFloat32:
		return "float32"
	case ElemFloat64:
		return "float64"
	case ElemVector2:
		return "vector2"
	case ElemVector3:
		return "vector3"
	case ElemColor:
		return "color"
	}
	return "unknown"
}

// ParseElemType resolves a stable element type name.
func ParseElemType(name string) (ElemType, bool) {
	for t := ElemByte; t <= ElemColor; t++ {
		if ElemTypeName(t) == name {
			return t, true
		}
	}
	return 0, false
}

func checkRange(data []byte, off, n uint64) ([]byte, error) {
	end := off + n
	if end < off || end > uint64(len(data)) {
		return nil, errors.OutOfBounds(errors.PhaseMemory, off, end, uint64(len(data)))
	}
	return data[off:end], nil
}

func putVector2(d []byte, v variant.Vector2) {
	binary.LittleEndian.PutUint32(d[0:], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(d[4:], math.Float32bits(v.Y))
}

func getVector2(d []byte) variant.Vector2 {
	return variant.Vector2{
		X: math.Float32frombits(binary.LittleEndian.Uint32(d[0:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(d[4:])),
	}
}

func putVector3(d []byte, v variant.Vector3) {
	binary.LittleEndian.PutUint32(d[0:], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(d[4:], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(d[8:], math.Float32bits(v.Z))
}

func getVector3(d []byte) variant.Vector3 {
	return variant.Vector3{
		X: math.Float32frombits(binary.LittleEndian.Uint32(d[0:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(d[4:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(d[8:])),
	}
}

func putColor(d []byte, v variant.Color) {
	binary.LittleEndian.PutUint32(d[0:], math.Float32bits(v.R))
	binary.LittleEndian.PutUint32(d[4:], math.Float32bits(v.G))
	binary.LittleEndian.PutUint32(d[8:], math.Float32bits(v.B))
	binary.LittleEndian.PutUint32(d[12:], math.Float32bits(v.A))
}

func getColor(d []byte) variant.Color {
	return variant.Color{
		R: math.Float32frombits(binary.LittleEndian.Uint32(d[0:])),
		G: math.Float32frombits(binary.LittleEndian.Uint32(d[4:])),
		B: math.Float32frombits(binary.LittleEndian.Uint32(d[8:])),
		A: math.Float32frombits(binary.LittleEndian.Uint32(d[12:])),
	}
}

func putRecords[E any](data []byte, off uint64, src []E, size int, put func([]byte, E)) error {
	d, err := checkRange(data, off, uint64(len(src)*size))
	if err != nil {
		return err
	}
	forEachRecord(len(src), func(i int) {
		put(d[i*size:(i+1)*size], src[i])
	})
	return nil
}

func getRecords[E any](data []byte, off, n uint64, size int, get func([]byte) E) ([]E, error) {
	d, err := checkRange(data, off, n*uint64(size))
	if err != nil {
		return nil, err
	}
	out := make([]E, n)
	forEachRecord(int(n), func(i int) {
		out[i] = get(d[i*size : (i+1)*size])
	})
	return out, nil
}

// PutArray writes a homogeneous host array into data at off as a contiguous
// little-endian run of fixed-size records. Fails with an out-of-bound error
// if the resulting byte range exceeds data, and with a type mismatch for any
// value outside the supported packed array set.
func PutArray(data []byte, off uint64, v variant.Variant) error {
	switch s := v.(type) {
	case []byte:
		d, err := checkRange(data, off, uint64(len(s)))
		if err != nil {
			return err
		}
		copy(d, s)
		return nil
	case []int32:
		return putRecords(data, off, s, 4, func(d []byte, e int32) {
			binary.LittleEndian.PutUint32(d, uint32(e))
		})
	case []int64:
		return putRecords(data, off, s, 8, func(d []byte, e int64) {
			binary.LittleEndian.PutUint64(d, uint64(e))
		})
	case []float32:
		return putRecords(data, off, s, 4, func(d []byte, e float32) {
			binary.LittleEndian.PutUint32(d, math.Float32bits(e))
		})
	case []float64:
		return putRecords(data, off, s, 8, func(d []byte, e float64) {
			binary.LittleEndian.PutUint64(d, math.Float64bits(e))
		})
	case []variant.Vector2:
		return putRecords(data, off, s, 8, putVector2)
	case []variant.Vector3:
		return putRecords(data, off, s, 12, putVector3)
	case []variant.Color:
		return putRecords(data, off, s, 16, putColor)
	}
	return errors.TypeMismatch(errors.PhaseMemory, "packed array", v)
}

// GetArray reads n records of elem from data at off and returns the packed
// array. Fails with an out-of-bound error if the byte range exceeds data and
// a type mismatch for an unsupported element type.
func GetArray(data []byte, off, n uint64, elem ElemType) (variant.Variant, error) {
	switch elem {
	case ElemByte:
		d, err := checkRange(data, off, n)
		if err != nil {
			return nil, err
		}
		out := make([]byte, n)
		copy(out, d)
		return out, nil
	case ElemInt32:
		return getRecords(data, off, n, 4, func(d []byte) int32 {
			return int32(binary.LittleEndian.Uint32(d))
		})
	case ElemInt64:
		return getRecords(data, off, n, 8, func(d []byte) int64 {
			return int64(binary.LittleEndian.Uint64(d))
		})
	case ElemFloat32:
		return getRecords(data, off, n, 4, func(d []byte) float32 {
			return math.Float32frombits(binary.LittleEndian.Uint32(d))
		})
	case ElemFloat64:
		return getRecords(data, off, n, 8, func(d []byte) float64 {
			return math.Float64frombits(binary.LittleEndian.Uint64(d))
		})
	case ElemVector2:
		return getRecords(data, off, n, 8, getVector2)
	case ElemVector3:
		return getRecords(data, off, n, 12, getVector3)
	case ElemColor:
		return getRecords(data, off, n, 16, getColor)
	}
	return nil, errors.TypeMismatch(errors.PhaseMemory, "supported element type", elem)
}
