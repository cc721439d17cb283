package bridge

import (
	"fmt"

	"github.com/wasmbridge/wasm-bridge/errors"
	"github.com/wasmbridge/wasm-bridge/memcodec"
	"github.com/wasmbridge/wasm-bridge/registry"
	"github.com/wasmbridge/wasm-bridge/variant"
)

// elemCodec describes one packed-array element type: how to box and unbox
// the slice as a variant. Guest memory transfer goes through the bulk
// memory codec under the element type elemTypeOf resolves. wireSize is
// zero for variable-size elements, which then have no guest-facing memory
// transfer.
type elemCodec[E comparable] struct {
	family   string
	wireSize uint64
	wrap     func([]E) variant.Variant
	unwrap   func(variant.Variant) ([]E, bool)
}

// ArrayFamily implements the packed-array operation set for one element
// type. Every operation consults the capability filter under the key
// "<family>.<op>" before touching the registry.
type ArrayFamily[E comparable] struct {
	c elemCodec[E]
}

// Name returns the family name, for example "byte_array".
func (f *ArrayFamily[E]) Name() string { return f.c.family }

func (f *ArrayFamily[E]) gate(cx Context, op string) (*registry.Registry, error) {
	if err := cx.Filter().Check(f.c.family + "." + op); err != nil {
		return nil, err
	}
	return cx.Registry()
}

func (f *ArrayFamily[E]) elems(reg *registry.Registry, h registry.Handle) ([]E, error) {
	v := reg.Get(h)
	if v == nil {
		return nil, errors.NotFound(errors.PhaseRegistry, f.c.family, fmt.Sprintf("handle %d", h))
	}
	s, ok := f.c.unwrap(v)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseRegistry, f.c.family, v)
	}
	return s, nil
}

// From registers a new array holding a copy of seq and returns its handle.
func (f *ArrayFamily[E]) From(cx Context, seq []E) (registry.Handle, error) {
	reg, err := f.gate(cx, "from")
	if err != nil {
		return 0, err
	}
	cp := make([]E, len(seq))
	copy(cp, seq)
	return reg.Register(f.c.wrap(cp)), nil
}

// To returns a copy of the full array contents.
func (f *ArrayFamily[E]) To(cx Context, h registry.Handle) ([]E, error) {
	reg, err := f.gate(cx, "to")
	if err != nil {
		return nil, err
	}
	s, err := f.elems(reg, h)
	if err != nil {
		return nil, err
	}
	cp := make([]E, len(s))
	copy(cp, s)
	return cp, nil
}

// Slice returns a copy of the half-open range [begin, end).
func (f *ArrayFamily[E]) Slice(cx Context, h registry.Handle, begin, end uint32) ([]E, error) {
	reg, err := f.gate(cx, "slice")
	if err != nil {
		return nil, err
	}
	s, err := f.elems(reg, h)
	if err != nil {
		return nil, err
	}
	if begin > end || uint64(end) > uint64(len(s)) {
		return nil, errors.OutOfBounds(errors.PhaseRegistry, uint64(begin), uint64(end), uint64(len(s)))
	}
	cp := make([]E, end-begin)
	copy(cp, s[begin:end])
	return cp, nil
}

// Len returns the element count.
func (f *ArrayFamily[E]) Len(cx Context, h registry.Handle) (uint32, error) {
	reg, err := f.gate(cx, "len")
	if err != nil {
		return 0, err
	}
	s, err := f.elems(reg, h)
	if err != nil {
		return 0, err
	}
	return uint32(len(s)), nil
}

// IsEmpty reports whether the array has no elements.
func (f *ArrayFamily[E]) IsEmpty(cx Context, h registry.Handle) (bool, error) {
	reg, err := f.gate(cx, "is_empty")
	if err != nil {
		return false, err
	}
	s, err := f.elems(reg, h)
	if err != nil {
		return false, err
	}
	return len(s) == 0, nil
}

// Get returns the element at index i.
func (f *ArrayFamily[E]) Get(cx Context, h registry.Handle, i uint32) (E, error) {
	var zero E
	reg, err := f.gate(cx, "get")
	if err != nil {
		return zero, err
	}
	s, err := f.elems(reg, h)
	if err != nil {
		return zero, err
	}
	if uint64(i) >= uint64(len(s)) {
		return zero, errors.IndexOutOfBounds(errors.PhaseRegistry, uint64(i), uint64(len(s)))
	}
	return s[i], nil
}

// Contains reports whether the array holds val.
func (f *ArrayFamily[E]) Contains(cx Context, h registry.Handle, val E) (bool, error) {
	reg, err := f.gate(cx, "contains")
	if err != nil {
		return false, err
	}
	s, err := f.elems(reg, h)
	if err != nil {
		return false, err
	}
	for _, e := range s {
		if e == val {
			return true, nil
		}
	}
	return false, nil
}

// Count returns the number of occurrences of val.
func (f *ArrayFamily[E]) Count(cx Context, h registry.Handle, val E) (uint32, error) {
	reg, err := f.gate(cx, "count")
	if err != nil {
		return 0, err
	}
	s, err := f.elems(reg, h)
	if err != nil {
		return 0, err
	}
	var n uint32
	for _, e := range s {
		if e == val {
			n++
		}
	}
	return n, nil
}

// Find returns the index of the first occurrence of val at or after from.
func (f *ArrayFamily[E]) Find(cx Context, h registry.Handle, val E, from uint32) (uint32, bool, error) {
	reg, err := f.gate(cx, "find")
	if err != nil {
		return 0, false, err
	}
	s, err := f.elems(reg, h)
	if err != nil {
		return 0, false, err
	}
	for i := int(from); i < len(s); i++ {
		if s[i] == val {
			return uint32(i), true, nil
		}
	}
	return 0, false, nil
}

// RFind returns the index of the last occurrence of val at or before from.
// Pass from >= len to search the whole array.
func (f *ArrayFamily[E]) RFind(cx Context, h registry.Handle, val E, from uint32) (uint32, bool, error) {
	reg, err := f.gate(cx, "rfind")
	if err != nil {
		return 0, false, err
	}
	s, err := f.elems(reg, h)
	if err != nil {
		return 0, false, err
	}
	start := int(from)
	if start >= len(s) {
		start = len(s) - 1
	}
	for i := start; i >= 0; i-- {
		if s[i] == val {
			return uint32(i), true, nil
		}
	}
	return 0, false, nil
}

// Subarray registers a new array holding the half-open range [begin, end)
// and returns its handle.
func (f *ArrayFamily[E]) Subarray(cx Context, h registry.Handle, begin, end uint32) (registry.Handle, error) {
	reg, err := f.gate(cx, "subarray")
	if err != nil {
		return 0, err
	}
	s, err := f.elems(reg, h)
	if err != nil {
		return 0, err
	}
	if begin > end || uint64(end) > uint64(len(s)) {
		return 0, errors.OutOfBounds(errors.PhaseRegistry, uint64(begin), uint64(end), uint64(len(s)))
	}
	cp := make([]E, end-begin)
	copy(cp, s[begin:end])
	return reg.Register(f.c.wrap(cp)), nil
}

func unwrapAs[E any](v variant.Variant) ([]E, bool) {
	s, ok := v.([]E)
	return s, ok
}

// The packed-array families. Elements cross guest memory in the bulk
// memory codec's record layout.
var (
	ByteArray = &ArrayFamily[byte]{elemCodec[byte]{
		family:   "byte_array",
		wireSize: 1,
		wrap:     func(s []byte) variant.Variant { return s },
		unwrap:   unwrapAs[byte],
	}}

	Int32Array = &ArrayFamily[int32]{elemCodec[int32]{
		family:   "int32_array",
		wireSize: 4,
		wrap:     func(s []int32) variant.Variant { return s },
		unwrap:   unwrapAs[int32],
	}}

	Int64Array = &ArrayFamily[int64]{elemCodec[int64]{
		family:   "int64_array",
		wireSize: 8,
		wrap:     func(s []int64) variant.Variant { return s },
		unwrap:   unwrapAs[int64],
	}}

	Float32Array = &ArrayFamily[float32]{elemCodec[float32]{
		family:   "float32_array",
		wireSize: 4,
		wrap:     func(s []float32) variant.Variant { return s },
		unwrap:   unwrapAs[float32],
	}}

	Float64Array = &ArrayFamily[float64]{elemCodec[float64]{
		family:   "float64_array",
		wireSize: 8,
		wrap:     func(s []float64) variant.Variant { return s },
		unwrap:   unwrapAs[float64],
	}}

	Vector2Array = &ArrayFamily[variant.Vector2]{elemCodec[variant.Vector2]{
		family:   "vector2_array",
		wireSize: 8,
		wrap:     func(s []variant.Vector2) variant.Variant { return s },
		unwrap:   unwrapAs[variant.Vector2],
	}}

	Vector3Array = &ArrayFamily[variant.Vector3]{elemCodec[variant.Vector3]{
		family:   "vector3_array",
		wireSize: 12,
		wrap:     func(s []variant.Vector3) variant.Variant { return s },
		unwrap:   unwrapAs[variant.Vector3],
	}}

	ColorArray = &ArrayFamily[variant.Color]{elemCodec[variant.Color]{
		family:   "color_array",
		wireSize: 16,
		wrap:     func(s []variant.Color) variant.Variant { return s },
		unwrap:   unwrapAs[variant.Color],
	}}

	// StringArray has variable-size elements and therefore no guest
	// memory transfer; strings cross individually through string.new
	// and string.read.
	StringArray = &ArrayFamily[string]{elemCodec[string]{
		family: "string_array",
		wrap:   func(s []string) variant.Variant { return s },
		unwrap: unwrapAs[string],
	}}
)

// elemTypeOf maps a family to the bulk memory codec element type its guest
// transfer runs under.
func elemTypeOf(family string) (memcodec.ElemType, bool) {
	switch family {
	case "byte_array":
		return memcodec.ElemByte, true
	case "int32_array":
		return memcodec.ElemInt32, true
	case "int64_array":
		return memcodec.ElemInt64, true
	case "float32_array":
		return memcodec.ElemFloat32, true
	case "float64_array":
		return memcodec.ElemFloat64, true
	case "vector2_array":
		return memcodec.ElemVector2, true
	case "vector3_array":
		return memcodec.ElemVector3, true
	case "color_array":
		return memcodec.ElemColor, true
	}
	return 0, false
}
