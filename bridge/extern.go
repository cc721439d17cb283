package bridge

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmbridge/wasm-bridge/errors"
	"github.com/wasmbridge/wasm-bridge/variant"
)

func exDecode(cx Context, raw uint64) variant.Variant {
	ext, err := cx.Externs()
	check(err)
	v, err := ext.Decode(uint64(api.DecodeExternref(raw)))
	check(err)
	return v
}

func exDecodeNonNull(cx Context, raw uint64) variant.Variant {
	ext, err := cx.Externs()
	check(err)
	v, err := ext.DecodeNonNull(uint64(api.DecodeExternref(raw)))
	check(err)
	return v
}

func exEncode(cx Context, v variant.Variant) uint64 {
	ext, err := cx.Externs()
	check(err)
	return api.EncodeExternref(uintptr(ext.Encode(v)))
}

func exTyped[T any](cx Context, raw uint64, want string) T {
	v := exDecodeNonNull(cx, raw)
	t, ok := v.(T)
	if !ok {
		trap(errors.TypeMismatch(errors.PhaseHost, want, v))
	}
	return t
}

func boolResult(s []uint64, v bool) {
	if v {
		s[0] = 1
	} else {
		s[0] = 0
	}
}

func typeCheck[T any](cx Context) api.GoModuleFunc {
	return func(_ context.Context, _ api.Module, s []uint64) {
		v := exDecode(cx, s[0])
		_, ok := v.(T)
		boolResult(s, ok)
	}
}

// ExternFuncs returns the host functions guests import under
// ExternNamespace when the instance runs in native binding mode. Host
// values cross the boundary directly as externrefs; externref null stands
// for the nil variant.
func ExternFuncs(cx Context) map[string]Func {
	fns := map[string]Func{
		"var.is_null": {Params: []api.ValueType{ref}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			boolResult(s, exDecode(cx, s[0]) == nil)
		}},
		"var.is_int":    {Params: []api.ValueType{ref}, Results: []api.ValueType{i32}, Fn: typeCheck[int64](cx)},
		"var.is_float":  {Params: []api.ValueType{ref}, Results: []api.ValueType{i32}, Fn: typeCheck[float64](cx)},
		"var.is_bool":   {Params: []api.ValueType{ref}, Results: []api.ValueType{i32}, Fn: typeCheck[bool](cx)},
		"var.is_string": {Params: []api.ValueType{ref}, Results: []api.ValueType{i32}, Fn: typeCheck[string](cx)},
		"var.is_vec2":   {Params: []api.ValueType{ref}, Results: []api.ValueType{i32}, Fn: typeCheck[variant.Vector2](cx)},
		"var.is_vec3":   {Params: []api.ValueType{ref}, Results: []api.ValueType{i32}, Fn: typeCheck[variant.Vector3](cx)},
		"var.is_color":  {Params: []api.ValueType{ref}, Results: []api.ValueType{i32}, Fn: typeCheck[variant.Color](cx)},
		"var.is_array":  {Params: []api.ValueType{ref}, Results: []api.ValueType{i32}, Fn: typeCheck[variant.Array](cx)},
		"var.is_dict":   {Params: []api.ValueType{ref}, Results: []api.ValueType{i32}, Fn: typeCheck[variant.Dict](cx)},

		"var.from_i32": {Params: []api.ValueType{i32}, Results: []api.ValueType{ref}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = exEncode(cx, int64(api.DecodeI32(s[0])))
		}},
		"var.to_i32": {Params: []api.ValueType{ref}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = api.EncodeI32(int32(exTyped[int64](cx, s[0], "int")))
		}},
		"var.from_i64": {Params: []api.ValueType{i64}, Results: []api.ValueType{ref}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = exEncode(cx, int64(s[0]))
		}},
		"var.to_i64": {Params: []api.ValueType{ref}, Results: []api.ValueType{i64}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = api.EncodeI64(exTyped[int64](cx, s[0], "int"))
		}},
		"var.from_f32": {Params: []api.ValueType{f32}, Results: []api.ValueType{ref}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = exEncode(cx, float64(api.DecodeF32(s[0])))
		}},
		"var.to_f32": {Params: []api.ValueType{ref}, Results: []api.ValueType{f32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = api.EncodeF32(float32(exTyped[float64](cx, s[0], "float")))
		}},
		"var.from_f64": {Params: []api.ValueType{f64}, Results: []api.ValueType{ref}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = exEncode(cx, api.DecodeF64(s[0]))
		}},
		"var.to_f64": {Params: []api.ValueType{ref}, Results: []api.ValueType{f64}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = api.EncodeF64(exTyped[float64](cx, s[0], "float"))
		}},
		"var.from_bool": {Params: []api.ValueType{i32}, Results: []api.ValueType{ref}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = exEncode(cx, s[0] != 0)
		}},
		"var.to_bool": {Params: []api.ValueType{ref}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			boolResult(s, exTyped[bool](cx, s[0], "bool"))
		}},

		"vec2.new": {Params: []api.ValueType{f32, f32}, Results: []api.ValueType{ref}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = exEncode(cx, variant.Vector2{X: api.DecodeF32(s[0]), Y: api.DecodeF32(s[1])})
		}},
		"vec2.get": {Params: []api.ValueType{ref}, Results: []api.ValueType{f32, f32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			v := exTyped[variant.Vector2](cx, s[0], "vector2")
			s[0] = api.EncodeF32(v.X)
			s[1] = api.EncodeF32(v.Y)
		}},
		"vec3.new": {Params: []api.ValueType{f32, f32, f32}, Results: []api.ValueType{ref}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = exEncode(cx, variant.Vector3{X: api.DecodeF32(s[0]), Y: api.DecodeF32(s[1]), Z: api.DecodeF32(s[2])})
		}},
		"vec3.get": {Params: []api.ValueType{ref}, Results: []api.ValueType{f32, f32, f32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			v := exTyped[variant.Vector3](cx, s[0], "vector3")
			s[0] = api.EncodeF32(v.X)
			s[1] = api.EncodeF32(v.Y)
			s[2] = api.EncodeF32(v.Z)
		}},
		"color.new": {Params: []api.ValueType{f32, f32, f32, f32}, Results: []api.ValueType{ref}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = exEncode(cx, variant.Color{R: api.DecodeF32(s[0]), G: api.DecodeF32(s[1]), B: api.DecodeF32(s[2]), A: api.DecodeF32(s[3])})
		}},
		"color.get": {Params: []api.ValueType{ref}, Results: []api.ValueType{f32, f32, f32, f32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			v := exTyped[variant.Color](cx, s[0], "color")
			s[0] = api.EncodeF32(v.R)
			s[1] = api.EncodeF32(v.G)
			s[2] = api.EncodeF32(v.B)
			s[3] = api.EncodeF32(v.A)
		}},

		"str.new": {Params: []api.ValueType{i32, i32}, Results: []api.ValueType{ref}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
			b := memView(guestMemory(mod), uint64(api.DecodeU32(s[0])), uint64(api.DecodeU32(s[1])))
			s[0] = exEncode(cx, string(b))
		}},
		"str.size": {Params: []api.ValueType{ref}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = uint64(uint32(len(exTyped[string](cx, s[0], "string"))))
		}},
		"str.read": {Params: []api.ValueType{ref, i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
			v := exTyped[string](cx, s[0], "string")
			n := uint64(len(v))
			if c := uint64(api.DecodeU32(s[2])); c < n {
				n = c
			}
			if n > 0 {
				copy(memView(guestMemory(mod), uint64(api.DecodeU32(s[1])), n), v[:n])
			}
			s[0] = uint64(uint32(len(v)))
		}},

		// arr.new allocates a fixed-size array of nulls; arr.set fills
		// slots in place.
		"arr.new": {Params: []api.ValueType{i32}, Results: []api.ValueType{ref}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = exEncode(cx, make(variant.Array, api.DecodeU32(s[0])))
		}},
		"arr.size": {Params: []api.ValueType{ref}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = uint64(uint32(len(exTyped[variant.Array](cx, s[0], "array"))))
		}},
		"arr.get": {Params: []api.ValueType{ref, i32}, Results: []api.ValueType{ref}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			a := exTyped[variant.Array](cx, s[0], "array")
			i := api.DecodeU32(s[1])
			if uint64(i) >= uint64(len(a)) {
				trap(errors.IndexOutOfBounds(errors.PhaseHost, uint64(i), uint64(len(a))))
			}
			s[0] = exEncode(cx, a[i])
		}},
		"arr.set": {Params: []api.ValueType{ref, i32, ref}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			a := exTyped[variant.Array](cx, s[0], "array")
			i := api.DecodeU32(s[1])
			if uint64(i) >= uint64(len(a)) {
				trap(errors.IndexOutOfBounds(errors.PhaseHost, uint64(i), uint64(len(a))))
			}
			a[i] = exDecode(cx, s[2])
		}},

		"dict.new": {Results: []api.ValueType{ref}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = exEncode(cx, variant.Dict{})
		}},
		"dict.size": {Params: []api.ValueType{ref}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = uint64(uint32(len(exTyped[variant.Dict](cx, s[0], "dictionary"))))
		}},
		"dict.has": {Params: []api.ValueType{ref, ref}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			d := exTyped[variant.Dict](cx, s[0], "dictionary")
			_, ok := d[exTyped[string](cx, s[1], "string")]
			boolResult(s, ok)
		}},
		"dict.get": {Params: []api.ValueType{ref, ref}, Results: []api.ValueType{ref}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			d := exTyped[variant.Dict](cx, s[0], "dictionary")
			s[0] = exEncode(cx, d[exTyped[string](cx, s[1], "string")])
		}},
		"dict.set": {Params: []api.ValueType{ref, ref, ref}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			d := exTyped[variant.Dict](cx, s[0], "dictionary")
			d[exTyped[string](cx, s[1], "string")] = exDecode(cx, s[2])
		}},
		"dict.delete": {Params: []api.ValueType{ref, ref}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			d := exTyped[variant.Dict](cx, s[0], "dictionary")
			k := exTyped[string](cx, s[1], "string")
			if _, ok := d[k]; ok {
				delete(d, k)
				s[0] = 1
			} else {
				s[0] = 0
			}
		}},
	}
	return fns
}
