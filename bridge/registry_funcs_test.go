package bridge

import (
	"context"
	"testing"

	"github.com/wasmbridge/wasm-bridge/registry"
	"github.com/wasmbridge/wasm-bridge/variant"
)

// invoke runs a bridge func on a raw stack, converting a trap back into an
// error the way the runtime would surface it.
func invoke(fn Func, stack []uint64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = r.(error)
		}
	}()
	fn.Fn(context.Background(), nil, stack)
	return nil
}

func stackFor(fn Func, args ...uint64) []uint64 {
	n := len(fn.Params)
	if len(fn.Results) > n {
		n = len(fn.Results)
	}
	s := make([]uint64, n)
	copy(s, args)
	return s
}

func call(t *testing.T, fns map[string]Func, name string, args ...uint64) []uint64 {
	t.Helper()
	fn, ok := fns[name]
	if !ok {
		t.Fatalf("no bridge func %q", name)
	}
	s := stackFor(fn, args...)
	if err := invoke(fn, s); err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return s
}

func TestVariantArrayFuncs(t *testing.T) {
	cx := regContext()
	fns := RegistryFuncs(cx)

	ah := call(t, fns, "array.new")[0]
	three := call(t, fns, "int.new", 3)[0]
	seven := call(t, fns, "int.new", 7)[0]
	call(t, fns, "array.push", ah, three)
	call(t, fns, "array.push", ah, seven)
	call(t, fns, "array.push", ah, three)

	if n := call(t, fns, "array.len", ah)[0]; n != 3 {
		t.Fatalf("len = %d, want 3", n)
	}
	if n := call(t, fns, "array.count", ah, three)[0]; n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	if got := call(t, fns, "array.contains", ah, seven)[0]; got != 1 {
		t.Error("contains missed an element")
	}
	if got := int64(call(t, fns, "array.find", ah, three, 1)[0]); got != 2 {
		t.Errorf("find from 1 = %d, want 2", got)
	}
	if got := int64(call(t, fns, "array.rfind", ah, three, 1)[0]); got != 0 {
		t.Errorf("rfind from 1 = %d, want 0", got)
	}
	missing := call(t, fns, "int.new", 99)[0]
	if got := int64(call(t, fns, "array.find", ah, missing, 0)[0]); got != -1 {
		t.Errorf("find absent = %d, want -1", got)
	}

	// duplicate is a deep handle split: erasing from the copy leaves the
	// original alone.
	dh := call(t, fns, "array.duplicate", ah)[0]
	if erased := call(t, fns, "array.erase", dh, seven)[0]; erased != 1 {
		t.Fatal("erase did not find the value")
	}
	if n := call(t, fns, "array.len", dh)[0]; n != 2 {
		t.Errorf("copy len = %d, want 2", n)
	}
	if n := call(t, fns, "array.len", ah)[0]; n != 3 {
		t.Errorf("original len = %d, want 3", n)
	}

	call(t, fns, "array.resize", ah, 5)
	if n := call(t, fns, "array.len", ah)[0]; n != 5 {
		t.Errorf("len after grow = %d, want 5", n)
	}
	call(t, fns, "array.resize", ah, 1)
	eh := call(t, fns, "array.get", ah, 0)[0]
	if v := int64(call(t, fns, "int.get", eh)[0]); v != 3 {
		t.Errorf("survivor = %d, want 3", v)
	}

	call(t, fns, "array.clear", ah)
	if n := call(t, fns, "array.len", ah)[0]; n != 0 {
		t.Errorf("len after clear = %d", n)
	}

	// Out of range indices trap.
	fn := fns["array.get"]
	if err := invoke(fn, stackFor(fn, ah, 4)); err == nil {
		t.Error("get past the end succeeded")
	}
}

func TestVariantArrayPop(t *testing.T) {
	cx := regContext()
	fns := RegistryFuncs(cx)

	ah := call(t, fns, "array.new")[0]
	fn := fns["array.pop"]
	if err := invoke(fn, stackFor(fn, ah)); err == nil {
		t.Fatal("pop of an empty array succeeded")
	}

	v := call(t, fns, "int.new", 11)[0]
	call(t, fns, "array.push", ah, v)
	popped := call(t, fns, "array.pop", ah)[0]
	if got := int64(call(t, fns, "int.get", popped)[0]); got != 11 {
		t.Errorf("pop = %d, want 11", got)
	}
	if n := call(t, fns, "array.len", ah)[0]; n != 0 {
		t.Errorf("len after pop = %d", n)
	}
}

func TestDictDuplicate(t *testing.T) {
	cx := regContext()
	fns := RegistryFuncs(cx)

	dh := registry.Handle(call(t, fns, "dict.new")[0])
	reg, _ := cx.Registry()
	d := reg.Get(dh).(variant.Dict)
	d["k"] = int64(1)

	cp := registry.Handle(call(t, fns, "dict.duplicate", uint64(dh))[0])
	d["k"] = int64(2)
	got := reg.Get(cp).(variant.Dict)
	if got["k"] != int64(1) {
		t.Errorf("copy tracked the original: %v", got["k"])
	}

	call(t, fns, "dict.clear", uint64(dh))
	if n := call(t, fns, "dict.len", uint64(dh))[0]; n != 0 {
		t.Errorf("len after clear = %d", n)
	}
}
