package bridge

import (
	"context"
	"math"
	"reflect"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmbridge/wasm-bridge/errors"
	"github.com/wasmbridge/wasm-bridge/memcodec"
	"github.com/wasmbridge/wasm-bridge/registry"
	"github.com/wasmbridge/wasm-bridge/variant"
)

const (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
	f32 = api.ValueTypeF32
	f64 = api.ValueTypeF64
	ref = api.ValueTypeExternref
)

func guestMemory(mod api.Module) api.Memory {
	mem := mod.Memory()
	if mem == nil {
		trap(errors.NoMemory())
	}
	return mem
}

func memView(mem api.Memory, off, n uint64) []byte {
	if n == 0 {
		return nil
	}
	if off > math.MaxUint32 || n > math.MaxUint32 {
		trap(errors.OutOfBounds(errors.PhaseMemory, off, off+n, uint64(mem.Size())))
	}
	b, ok := mem.Read(uint32(off), uint32(n))
	if !ok {
		trap(errors.OutOfBounds(errors.PhaseMemory, off, off+n, uint64(mem.Size())))
	}
	return b
}

func mustRegistry(cx Context) *registry.Registry {
	reg, err := cx.Registry()
	check(err)
	return reg
}

func regValue(reg *registry.Registry, h uint32) variant.Variant {
	v := reg.Get(registry.Handle(h))
	if v == nil {
		trap(errors.NotFound(errors.PhaseRegistry, "object", "handle"))
	}
	return v
}

func regTyped[T any](reg *registry.Registry, h uint32, want string) T {
	v := regValue(reg, h)
	t, ok := v.(T)
	if !ok {
		trap(errors.TypeMismatch(errors.PhaseRegistry, want, v))
	}
	return t
}

// RegistryFuncs returns the host functions guests import under
// RegistryNamespace when the instance runs in registry binding mode.
// Values cross the boundary as integer handles; bulk data crosses through
// guest linear memory.
func RegistryFuncs(cx Context) map[string]Func {
	fns := map[string]Func{
		"var.free": {Params: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			mustRegistry(cx).Unregister(registry.Handle(api.DecodeU32(s[0])))
		}},

		"int.new": {Params: []api.ValueType{i64}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			h := mustRegistry(cx).Register(int64(s[0]))
			s[0] = uint64(h)
		}},
		"int.get": {Params: []api.ValueType{i32}, Results: []api.ValueType{i64}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			v := regTyped[int64](mustRegistry(cx), api.DecodeU32(s[0]), "int")
			s[0] = uint64(v)
		}},

		"float.new": {Params: []api.ValueType{f64}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			h := mustRegistry(cx).Register(api.DecodeF64(s[0]))
			s[0] = uint64(h)
		}},
		"float.get": {Params: []api.ValueType{i32}, Results: []api.ValueType{f64}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			v := regTyped[float64](mustRegistry(cx), api.DecodeU32(s[0]), "float")
			s[0] = api.EncodeF64(v)
		}},

		"bool.new": {Params: []api.ValueType{i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			h := mustRegistry(cx).Register(s[0] != 0)
			s[0] = uint64(h)
		}},
		"bool.get": {Params: []api.ValueType{i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			v := regTyped[bool](mustRegistry(cx), api.DecodeU32(s[0]), "bool")
			if v {
				s[0] = 1
			} else {
				s[0] = 0
			}
		}},

		"string.new": {Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
			b := memView(guestMemory(mod), uint64(api.DecodeU32(s[0])), uint64(api.DecodeU32(s[1])))
			h := mustRegistry(cx).Register(string(b))
			s[0] = uint64(h)
		}},
		"string.len": {Params: []api.ValueType{i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			v := regTyped[string](mustRegistry(cx), api.DecodeU32(s[0]), "string")
			s[0] = uint64(uint32(len(v)))
		}},
		// string.read copies up to cap bytes to ptr and returns the full
		// string length, so a short buffer is detectable.
		"string.read": {Params: []api.ValueType{i32, i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
			v := regTyped[string](mustRegistry(cx), api.DecodeU32(s[0]), "string")
			n := uint64(len(v))
			if c := uint64(api.DecodeU32(s[2])); c < n {
				n = c
			}
			if n > 0 {
				copy(memView(guestMemory(mod), uint64(api.DecodeU32(s[1])), n), v[:n])
			}
			s[0] = uint64(uint32(len(v)))
		}},

		"vec2.new": {Params: []api.ValueType{f32, f32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			h := mustRegistry(cx).Register(variant.Vector2{X: api.DecodeF32(s[0]), Y: api.DecodeF32(s[1])})
			s[0] = uint64(h)
		}},
		"vec2.get": {Params: []api.ValueType{i32}, Results: []api.ValueType{f32, f32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			v := regTyped[variant.Vector2](mustRegistry(cx), api.DecodeU32(s[0]), "vector2")
			s[0] = api.EncodeF32(v.X)
			s[1] = api.EncodeF32(v.Y)
		}},
		"vec3.new": {Params: []api.ValueType{f32, f32, f32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			h := mustRegistry(cx).Register(variant.Vector3{X: api.DecodeF32(s[0]), Y: api.DecodeF32(s[1]), Z: api.DecodeF32(s[2])})
			s[0] = uint64(h)
		}},
		"vec3.get": {Params: []api.ValueType{i32}, Results: []api.ValueType{f32, f32, f32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			v := regTyped[variant.Vector3](mustRegistry(cx), api.DecodeU32(s[0]), "vector3")
			s[0] = api.EncodeF32(v.X)
			s[1] = api.EncodeF32(v.Y)
			s[2] = api.EncodeF32(v.Z)
		}},
		"color.new": {Params: []api.ValueType{f32, f32, f32, f32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			h := mustRegistry(cx).Register(variant.Color{R: api.DecodeF32(s[0]), G: api.DecodeF32(s[1]), B: api.DecodeF32(s[2]), A: api.DecodeF32(s[3])})
			s[0] = uint64(h)
		}},
		"color.get": {Params: []api.ValueType{i32}, Results: []api.ValueType{f32, f32, f32, f32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
			v := regTyped[variant.Color](mustRegistry(cx), api.DecodeU32(s[0]), "color")
			s[0] = api.EncodeF32(v.R)
			s[1] = api.EncodeF32(v.G)
			s[2] = api.EncodeF32(v.B)
			s[3] = api.EncodeF32(v.A)
		}},
	}

	addArrayFuncs(cx, fns)
	addDictFuncs(cx, fns)

	familyFuncs(cx, ByteArray, fns)
	familyFuncs(cx, Int32Array, fns)
	familyFuncs(cx, Int64Array, fns)
	familyFuncs(cx, Float32Array, fns)
	familyFuncs(cx, Float64Array, fns)
	familyFuncs(cx, Vector2Array, fns)
	familyFuncs(cx, Vector3Array, fns)
	familyFuncs(cx, ColorArray, fns)

	return fns
}

func addArrayFuncs(cx Context, fns map[string]Func) {
	fns["array.new"] = Func{Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		h := mustRegistry(cx).Register(variant.Array{})
		s[0] = uint64(h)
	}}
	fns["array.len"] = Func{Params: []api.ValueType{i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		a := regTyped[variant.Array](mustRegistry(cx), api.DecodeU32(s[0]), "array")
		s[0] = uint64(uint32(len(a)))
	}}
	fns["array.get"] = Func{Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		reg := mustRegistry(cx)
		a := regTyped[variant.Array](reg, api.DecodeU32(s[0]), "array")
		i := api.DecodeU32(s[1])
		if uint64(i) >= uint64(len(a)) {
			trap(errors.IndexOutOfBounds(errors.PhaseRegistry, uint64(i), uint64(len(a))))
		}
		s[0] = uint64(reg.Register(a[i]))
	}}
	fns["array.set"] = Func{Params: []api.ValueType{i32, i32, i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		reg := mustRegistry(cx)
		a := regTyped[variant.Array](reg, api.DecodeU32(s[0]), "array")
		i := api.DecodeU32(s[1])
		if uint64(i) >= uint64(len(a)) {
			trap(errors.IndexOutOfBounds(errors.PhaseRegistry, uint64(i), uint64(len(a))))
		}
		a[i] = regValue(reg, api.DecodeU32(s[2]))
	}}
	fns["array.push"] = Func{Params: []api.ValueType{i32, i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		reg := mustRegistry(cx)
		h := registry.Handle(api.DecodeU32(s[0]))
		a := regTyped[variant.Array](reg, uint32(h), "array")
		reg.Replace(h, append(a, regValue(reg, api.DecodeU32(s[1]))))
	}}
	fns["array.pop"] = Func{Params: []api.ValueType{i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		reg := mustRegistry(cx)
		h := registry.Handle(api.DecodeU32(s[0]))
		a := regTyped[variant.Array](reg, uint32(h), "array")
		if len(a) == 0 {
			trap(errors.IndexOutOfBounds(errors.PhaseRegistry, 0, 0))
		}
		last := a[len(a)-1]
		reg.Replace(h, a[:len(a)-1])
		s[0] = uint64(reg.Register(last))
	}}
	fns["array.remove"] = Func{Params: []api.ValueType{i32, i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		reg := mustRegistry(cx)
		h := registry.Handle(api.DecodeU32(s[0]))
		a := regTyped[variant.Array](reg, uint32(h), "array")
		i := api.DecodeU32(s[1])
		if uint64(i) >= uint64(len(a)) {
			trap(errors.IndexOutOfBounds(errors.PhaseRegistry, uint64(i), uint64(len(a))))
		}
		reg.Replace(h, append(a[:i:i], a[i+1:]...))
	}}
	// array.erase removes the first element equal to the value, reporting
	// whether one was found.
	fns["array.erase"] = Func{Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		reg := mustRegistry(cx)
		h := registry.Handle(api.DecodeU32(s[0]))
		a := regTyped[variant.Array](reg, uint32(h), "array")
		v := regValue(reg, api.DecodeU32(s[1]))
		s[0] = 0
		for i := range a {
			if variantEq(a[i], v) {
				reg.Replace(h, append(a[:i:i], a[i+1:]...))
				s[0] = 1
				return
			}
		}
	}}
	fns["array.count"] = Func{Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		reg := mustRegistry(cx)
		a := regTyped[variant.Array](reg, api.DecodeU32(s[0]), "array")
		v := regValue(reg, api.DecodeU32(s[1]))
		var n uint32
		for i := range a {
			if variantEq(a[i], v) {
				n++
			}
		}
		s[0] = uint64(n)
	}}
	fns["array.contains"] = Func{Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		reg := mustRegistry(cx)
		a := regTyped[variant.Array](reg, api.DecodeU32(s[0]), "array")
		v := regValue(reg, api.DecodeU32(s[1]))
		s[0] = 0
		for i := range a {
			if variantEq(a[i], v) {
				s[0] = 1
				return
			}
		}
	}}
	fns["array.find"] = Func{Params: []api.ValueType{i32, i32, i32}, Results: []api.ValueType{i64}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		reg := mustRegistry(cx)
		a := regTyped[variant.Array](reg, api.DecodeU32(s[0]), "array")
		v := regValue(reg, api.DecodeU32(s[1]))
		for i := int(api.DecodeU32(s[2])); i < len(a); i++ {
			if variantEq(a[i], v) {
				s[0] = uint64(int64(i))
				return
			}
		}
		s[0] = api.EncodeI64(-1)
	}}
	fns["array.rfind"] = Func{Params: []api.ValueType{i32, i32, i32}, Results: []api.ValueType{i64}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		reg := mustRegistry(cx)
		a := regTyped[variant.Array](reg, api.DecodeU32(s[0]), "array")
		v := regValue(reg, api.DecodeU32(s[1]))
		start := int(api.DecodeU32(s[2]))
		if start >= len(a) {
			start = len(a) - 1
		}
		for i := start; i >= 0; i-- {
			if variantEq(a[i], v) {
				s[0] = uint64(int64(i))
				return
			}
		}
		s[0] = api.EncodeI64(-1)
	}}
	fns["array.duplicate"] = Func{Params: []api.ValueType{i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		reg := mustRegistry(cx)
		a := regTyped[variant.Array](reg, api.DecodeU32(s[0]), "array")
		cp := make(variant.Array, len(a))
		copy(cp, a)
		s[0] = uint64(reg.Register(cp))
	}}
	// array.resize pads with nil or truncates.
	fns["array.resize"] = Func{Params: []api.ValueType{i32, i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		reg := mustRegistry(cx)
		h := registry.Handle(api.DecodeU32(s[0]))
		a := regTyped[variant.Array](reg, uint32(h), "array")
		n := int(api.DecodeU32(s[1]))
		if n <= len(a) {
			reg.Replace(h, a[:n])
			return
		}
		cp := make(variant.Array, n)
		copy(cp, a)
		reg.Replace(h, cp)
	}}
	fns["array.clear"] = Func{Params: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		reg := mustRegistry(cx)
		h := registry.Handle(api.DecodeU32(s[0]))
		regTyped[variant.Array](reg, uint32(h), "array")
		reg.Replace(h, variant.Array{})
	}}
}

// variantEq compares two dynamic values, tolerating uncomparable kinds like
// nested arrays and dictionaries.
func variantEq(a, b variant.Variant) bool {
	return reflect.DeepEqual(a, b)
}

func dictKey(mod api.Module, ptr, n uint32) string {
	return string(memView(guestMemory(mod), uint64(ptr), uint64(n)))
}

func addDictFuncs(cx Context, fns map[string]Func) {
	fns["dict.new"] = Func{Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		h := mustRegistry(cx).Register(variant.Dict{})
		s[0] = uint64(h)
	}}
	fns["dict.len"] = Func{Params: []api.ValueType{i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		d := regTyped[variant.Dict](mustRegistry(cx), api.DecodeU32(s[0]), "dictionary")
		s[0] = uint64(uint32(len(d)))
	}}
	fns["dict.has"] = Func{Params: []api.ValueType{i32, i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
		d := regTyped[variant.Dict](mustRegistry(cx), api.DecodeU32(s[0]), "dictionary")
		if _, ok := d[dictKey(mod, api.DecodeU32(s[1]), api.DecodeU32(s[2]))]; ok {
			s[0] = 1
		} else {
			s[0] = 0
		}
	}}
	// dict.get returns the invalid handle 0 for an absent key.
	fns["dict.get"] = Func{Params: []api.ValueType{i32, i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
		reg := mustRegistry(cx)
		d := regTyped[variant.Dict](reg, api.DecodeU32(s[0]), "dictionary")
		v, ok := d[dictKey(mod, api.DecodeU32(s[1]), api.DecodeU32(s[2]))]
		if !ok {
			s[0] = 0
			return
		}
		s[0] = uint64(reg.Register(v))
	}}
	fns["dict.set"] = Func{Params: []api.ValueType{i32, i32, i32, i32}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
		reg := mustRegistry(cx)
		d := regTyped[variant.Dict](reg, api.DecodeU32(s[0]), "dictionary")
		d[dictKey(mod, api.DecodeU32(s[1]), api.DecodeU32(s[2]))] = regValue(reg, api.DecodeU32(s[3]))
	}}
	fns["dict.delete"] = Func{Params: []api.ValueType{i32, i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
		d := regTyped[variant.Dict](mustRegistry(cx), api.DecodeU32(s[0]), "dictionary")
		k := dictKey(mod, api.DecodeU32(s[1]), api.DecodeU32(s[2]))
		if _, ok := d[k]; ok {
			delete(d, k)
			s[0] = 1
		} else {
			s[0] = 0
		}
	}}
	fns["dict.duplicate"] = Func{Params: []api.ValueType{i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		reg := mustRegistry(cx)
		d := regTyped[variant.Dict](reg, api.DecodeU32(s[0]), "dictionary")
		cp := make(variant.Dict, len(d))
		for k, v := range d {
			cp[k] = v
		}
		s[0] = uint64(reg.Register(cp))
	}}
	fns["dict.clear"] = Func{Params: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		reg := mustRegistry(cx)
		h := registry.Handle(api.DecodeU32(s[0]))
		regTyped[variant.Dict](reg, uint32(h), "dictionary")
		reg.Replace(h, variant.Dict{})
	}}
}

// readElems and writeElems move packed elements through guest linear
// memory in the bulk memory codec's record layout.
func readElems[E comparable](mod api.Module, f *ArrayFamily[E], ptr, n uint32) []E {
	et, ok := elemTypeOf(f.c.family)
	if !ok {
		trap(errors.TypeMismatch(errors.PhaseMemory, "fixed-size element family", f.c.family))
	}
	b := memView(guestMemory(mod), uint64(ptr), uint64(n)*f.c.wireSize)
	v, err := memcodec.GetArray(b, 0, uint64(n), et)
	check(err)
	s, ok := f.c.unwrap(v)
	if !ok {
		trap(errors.TypeMismatch(errors.PhaseMemory, f.c.family, v))
	}
	return s
}

func writeElems[E comparable](mod api.Module, f *ArrayFamily[E], ptr uint32, s []E) {
	b := memView(guestMemory(mod), uint64(ptr), uint64(len(s))*f.c.wireSize)
	check(memcodec.PutArray(b, 0, f.c.wrap(s)))
}

func readElem[E comparable](mod api.Module, f *ArrayFamily[E], ptr uint32) E {
	return readElems(mod, f, ptr, 1)[0]
}

// familyFuncs registers the guest-facing packed-array operation set for one
// fixed-size element family. Element values cross through linear memory;
// find and rfind return the index as i64 with -1 for not found.
func familyFuncs[E comparable](cx Context, f *ArrayFamily[E], fns map[string]Func) {
	name := f.c.family

	fns[name+".from"] = Func{Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
		elems := readElems(mod, f, api.DecodeU32(s[0]), api.DecodeU32(s[1]))
		h, err := f.From(cx, elems)
		check(err)
		s[0] = uint64(h)
	}}
	fns[name+".to"] = Func{Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
		elems, err := f.To(cx, registry.Handle(api.DecodeU32(s[0])))
		check(err)
		writeElems(mod, f, api.DecodeU32(s[1]), elems)
		s[0] = uint64(uint32(len(elems)))
	}}
	fns[name+".slice"] = Func{Params: []api.ValueType{i32, i32, i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
		elems, err := f.Slice(cx, registry.Handle(api.DecodeU32(s[0])), api.DecodeU32(s[1]), api.DecodeU32(s[2]))
		check(err)
		writeElems(mod, f, api.DecodeU32(s[3]), elems)
		s[0] = uint64(uint32(len(elems)))
	}}
	fns[name+".len"] = Func{Params: []api.ValueType{i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		n, err := f.Len(cx, registry.Handle(api.DecodeU32(s[0])))
		check(err)
		s[0] = uint64(n)
	}}
	fns[name+".is_empty"] = Func{Params: []api.ValueType{i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		empty, err := f.IsEmpty(cx, registry.Handle(api.DecodeU32(s[0])))
		check(err)
		if empty {
			s[0] = 1
		} else {
			s[0] = 0
		}
	}}
	fns[name+".get"] = Func{Params: []api.ValueType{i32, i32, i32}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
		e, err := f.Get(cx, registry.Handle(api.DecodeU32(s[0])), api.DecodeU32(s[1]))
		check(err)
		writeElems(mod, f, api.DecodeU32(s[2]), []E{e})
	}}
	fns[name+".contains"] = Func{Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
		ok, err := f.Contains(cx, registry.Handle(api.DecodeU32(s[0])), readElem(mod, f, api.DecodeU32(s[1])))
		check(err)
		if ok {
			s[0] = 1
		} else {
			s[0] = 0
		}
	}}
	fns[name+".count"] = Func{Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
		n, err := f.Count(cx, registry.Handle(api.DecodeU32(s[0])), readElem(mod, f, api.DecodeU32(s[1])))
		check(err)
		s[0] = uint64(n)
	}}
	fns[name+".find"] = Func{Params: []api.ValueType{i32, i32, i32}, Results: []api.ValueType{i64}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
		i, found, err := f.Find(cx, registry.Handle(api.DecodeU32(s[0])), readElem(mod, f, api.DecodeU32(s[1])), api.DecodeU32(s[2]))
		check(err)
		if found {
			s[0] = uint64(int64(i))
		} else {
			s[0] = api.EncodeI64(-1)
		}
	}}
	fns[name+".rfind"] = Func{Params: []api.ValueType{i32, i32, i32}, Results: []api.ValueType{i64}, Fn: func(_ context.Context, mod api.Module, s []uint64) {
		i, found, err := f.RFind(cx, registry.Handle(api.DecodeU32(s[0])), readElem(mod, f, api.DecodeU32(s[1])), api.DecodeU32(s[2]))
		check(err)
		if found {
			s[0] = uint64(int64(i))
		} else {
			s[0] = api.EncodeI64(-1)
		}
	}}
	fns[name+".subarray"] = Func{Params: []api.ValueType{i32, i32, i32}, Results: []api.ValueType{i32}, Fn: func(_ context.Context, _ api.Module, s []uint64) {
		h, err := f.Subarray(cx, registry.Handle(api.DecodeU32(s[0])), api.DecodeU32(s[1]), api.DecodeU32(s[2]))
		check(err)
		s[0] = uint64(h)
	}}
}
