package memcodec

import (
	"encoding/binary"
	"math"

	"github.com/wasmbridge/wasm-bridge/errors"
	"github.com/wasmbridge/wasm-bridge/variant"
)

// FormatWidth returns the wire width in bytes of a struct format code.
//
//	b/B  int8/uint8    1
//	h/H  int16/uint16  2
//	i/I  int32/uint32  4
//	l/L  int64/uint64  8
//	f    float32       4
//	d    float64       8
//	v    Vector2       8
//	V    Vector3       12
//	c    Color         16
//
// A code may be preceded by a decimal repeat count ("4i" packs four int32s).
func FormatWidth(code byte) (int, bool) {
	switch code {
	case 'b', 'B':
		return 1, true
	case 'h', 'H':
		return 2, true
	case 'i', 'I', 'f':
		return 4, true
	case 'l', 'L', 'd':
		return 8, true
	case 'v':
		return 8, true
	case 'V':
		return 12, true
	case 'c':
		return 16, true
	}
	return 0, false
}

type field struct {
	code  byte
	count int
}

func parseFormat(format string) ([]field, error) {
	var fields []field
	for i := 0; i < len(format); i++ {
		count := 0
		for ; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			count = count*10 + int(format[i]-'0')
		}
		if i >= len(format) {
			return nil, errors.InvalidInput(errors.PhaseMemory, "format ends with a repeat count")
		}
		if count == 0 {
			count = 1
		}
		code := format[i]
		if _, ok := FormatWidth(code); !ok {
			return nil, errors.UnknownFormat(code)
		}
		fields = append(fields, field{code: code, count: count})
	}
	return fields, nil
}

// ReadStruct unpacks values described by format from data starting at p,
// advancing the cursor by each field's wire width. Integers widen to int64,
// floats to float64.
func ReadStruct(data []byte, p uint64, format string) ([]variant.Variant, error) {
	fields, err := parseFormat(format)
	if err != nil {
		return nil, err
	}

	var out []variant.Variant
	for _, f := range fields {
		width, _ := FormatWidth(f.code)
		for n := 0; n < f.count; n++ {
			d, err := checkRange(data, p, uint64(width))
			if err != nil {
				return nil, err
			}
			out = append(out, readField(f.code, d))
			p += uint64(width)
		}
	}
	return out, nil
}

// WriteStruct packs values into data at p per format and returns the cursor
// position after the last field.
func WriteStruct(data []byte, p uint64, format string, values []variant.Variant) (uint64, error) {
	fields, err := parseFormat(format)
	if err != nil {
		return 0, err
	}

	idx := 0
	for _, f := range fields {
		width, _ := FormatWidth(f.code)
		for n := 0; n < f.count; n++ {
			if idx >= len(values) {
				return 0, errors.InvalidInput(errors.PhaseMemory, "not enough values for format")
			}
			d, err := checkRange(data, p, uint64(width))
			if err != nil {
				return 0, err
			}
			if err := writeField(f.code, d, values[idx]); err != nil {
				return 0, err
			}
			idx++
			p += uint64(width)
		}
	}
	return p, nil
}

func readField(code byte, d []byte) variant.Variant {
	switch code {
	case 'b':
		return int64(int8(d[0]))
	case 'B':
		return int64(d[0])
	case 'h':
		return int64(int16(binary.LittleEndian.Uint16(d)))
	case 'H':
		return int64(binary.LittleEndian.Uint16(d))
	case 'i':
		return int64(int32(binary.LittleEndian.Uint32(d)))
	case 'I':
		return int64(binary.LittleEndian.Uint32(d))
	case 'l', 'L':
		return int64(binary.LittleEndian.Uint64(d))
	case 'f':
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(d)))
	case 'd':
		return math.Float64frombits(binary.LittleEndian.Uint64(d))
	case 'v':
		return getVector2(d)
	case 'V':
		return getVector3(d)
	case 'c':
		return getColor(d)
	}
	return nil
}

func writeField(code byte, d []byte, v variant.Variant) error {
	switch code {
	case 'b', 'B', 'h', 'H', 'i', 'I', 'l', 'L':
		n, err := asInt(v)
		if err != nil {
			return err
		}
		switch code {
		case 'b', 'B':
			d[0] = byte(n)
		case 'h', 'H':
			binary.LittleEndian.PutUint16(d, uint16(n))
		case 'i', 'I':
			binary.LittleEndian.PutUint32(d, uint32(n))
		default:
			binary.LittleEndian.PutUint64(d, uint64(n))
		}
		return nil
	case 'f', 'd':
		f, err := asFloat(v)
		if err != nil {
			return err
		}
		if code == 'f' {
			binary.LittleEndian.PutUint32(d, math.Float32bits(float32(f)))
		} else {
			binary.LittleEndian.PutUint64(d, math.Float64bits(f))
		}
		return nil
	case 'v':
		vec, ok := v.(variant.Vector2)
		if !ok {
			return errors.TypeMismatch(errors.PhaseMemory, "Vector2", v)
		}
		putVector2(d, vec)
		return nil
	case 'V':
		vec, ok := v.(variant.Vector3)
		if !ok {
			return errors.TypeMismatch(errors.PhaseMemory, "Vector3", v)
		}
		putVector3(d, vec)
		return nil
	case 'c':
		col, ok := v.(variant.Color)
		if !ok {
			return errors.TypeMismatch(errors.PhaseMemory, "Color", v)
		}
		putColor(d, col)
		return nil
	}
	return errors.UnknownFormat(code)
}

func asInt(v variant.Variant) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	}
	return 0, errors.TypeMismatch(errors.PhaseMemory, "integer", v)
}

func asFloat(v variant.Variant) (float64, error) {
	switch f := v.(type) {
	case float32:
		return float64(f), nil
	case float64:
		return f, nil
	case int:
		return float64(f), nil
	case int64:
		return float64(f), nil
	}
	return 0, errors.TypeMismatch(errors.PhaseMemory, "float", v)
}
