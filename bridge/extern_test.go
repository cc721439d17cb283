package bridge

import (
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmbridge/wasm-bridge/registry"
	"github.com/wasmbridge/wasm-bridge/variant"
)

func extContext() *testContext {
	return &testContext{ext: registry.NewExternTable(), filter: nil}
}

func encodeVal(t *testing.T, cx *testContext, v variant.Variant) uint64 {
	t.Helper()
	ext, err := cx.Externs()
	if err != nil {
		t.Fatalf("Externs: %v", err)
	}
	return api.EncodeExternref(uintptr(ext.Encode(v)))
}

func decodeVal(t *testing.T, cx *testContext, raw uint64) variant.Variant {
	t.Helper()
	ext, err := cx.Externs()
	if err != nil {
		t.Fatalf("Externs: %v", err)
	}
	v, err := ext.Decode(uint64(api.DecodeExternref(raw)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return v
}

func TestExternScalars(t *testing.T) {
	cx := extContext()
	fns := ExternFuncs(cx)

	r := call(t, fns, "var.from_i64", uint64(123456789))[0]
	if got := int64(call(t, fns, "var.to_i64", r)[0]); got != 123456789 {
		t.Errorf("i64 round trip = %d", got)
	}

	b := call(t, fns, "var.from_bool", 1)[0]
	if got := call(t, fns, "var.to_bool", b)[0]; got != 1 {
		t.Errorf("bool round trip = %d", got)
	}

	if got := call(t, fns, "var.is_int", r)[0]; got != 1 {
		t.Error("is_int missed an int")
	}
	if got := call(t, fns, "var.is_bool", r)[0]; got != 0 {
		t.Error("is_bool accepted an int")
	}

	// Externref null stands for the nil variant.
	null := api.EncodeExternref(0)
	if got := call(t, fns, "var.is_null", null)[0]; got != 1 {
		t.Error("is_null missed null")
	}
	fn := fns["var.to_i64"]
	if err := invoke(fn, stackFor(fn, null)); err == nil {
		t.Error("to_i64 of null succeeded")
	}
}

func TestExternVectors(t *testing.T) {
	cx := extContext()
	fns := ExternFuncs(cx)

	f := func(v float32) uint64 { return uint64(api.EncodeF32(v)) }
	r := call(t, fns, "vec2.new", f(1.5), f(-2))[0]
	out := call(t, fns, "vec2.get", r)
	if api.DecodeF32(out[0]) != 1.5 || api.DecodeF32(out[1]) != -2 {
		t.Errorf("vec2 round trip = %v", out)
	}
	if got := call(t, fns, "var.is_vec2", r)[0]; got != 1 {
		t.Error("is_vec2 missed a vector")
	}
}

func TestExternArray(t *testing.T) {
	cx := extContext()
	fns := ExternFuncs(cx)

	a := call(t, fns, "arr.new", 3)[0]
	if n := call(t, fns, "arr.size", a)[0]; n != 3 {
		t.Fatalf("size = %d, want 3", n)
	}

	v := encodeVal(t, cx, int64(7))
	call(t, fns, "arr.set", a, 1, v)
	got := call(t, fns, "arr.get", a, 1)[0]
	if decodeVal(t, cx, got) != int64(7) {
		t.Errorf("arr.get = %v", decodeVal(t, cx, got))
	}
	// Unset slots read back as null.
	got = call(t, fns, "arr.get", a, 0)[0]
	if decodeVal(t, cx, got) != nil {
		t.Errorf("empty slot = %v", decodeVal(t, cx, got))
	}

	fn := fns["arr.get"]
	if err := invoke(fn, stackFor(fn, a, 3)); err == nil {
		t.Error("get past the end succeeded")
	}
}

func TestExternDict(t *testing.T) {
	cx := extContext()
	fns := ExternFuncs(cx)

	d := call(t, fns, "dict.new")[0]
	k := encodeVal(t, cx, "answer")
	v := encodeVal(t, cx, int64(42))

	call(t, fns, "dict.set", d, k, v)
	if n := call(t, fns, "dict.size", d)[0]; n != 1 {
		t.Fatalf("size = %d, want 1", n)
	}
	if got := call(t, fns, "dict.has", d, k)[0]; got != 1 {
		t.Error("has missed the key")
	}
	got := call(t, fns, "dict.get", d, k)[0]
	if decodeVal(t, cx, got) != int64(42) {
		t.Errorf("dict.get = %v", decodeVal(t, cx, got))
	}

	if got := call(t, fns, "dict.delete", d, k)[0]; got != 1 {
		t.Error("delete missed the key")
	}
	if got := call(t, fns, "dict.delete", d, k)[0]; got != 0 {
		t.Error("double delete reported a hit")
	}
}

func TestExternString(t *testing.T) {
	cx := extContext()
	fns := ExternFuncs(cx)

	r := encodeVal(t, cx, "hello")
	if n := call(t, fns, "str.size", r)[0]; n != 5 {
		t.Errorf("str.size = %d, want 5", n)
	}
	if got := call(t, fns, "var.is_string", r)[0]; got != 1 {
		t.Error("is_string missed a string")
	}
}
