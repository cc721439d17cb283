package instance

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"github.com/wasmbridge/wasm-bridge/engine"
	"github.com/wasmbridge/wasm-bridge/errors"
	"github.com/wasmbridge/wasm-bridge/internal/wasmgen"
	"github.com/wasmbridge/wasm-bridge/memcodec"
	"github.com/wasmbridge/wasm-bridge/variant"
)

func memoryModule(minPages uint32, exportAs string) []byte {
	m := wasmgen.New()
	m.Memory(minPages, exportAs)
	m.ExportFunc("noop", nil, nil, wasmgen.Body())
	return m.Build()
}

func memoryInstance(t *testing.T, name string, cfg *Config) *Instance {
	t.Helper()
	module := loadModule(t, name, memoryModule(1, "memory"), nil)
	inst, err := Instantiate(context.Background(), engine.Global(), module, nil, cfg)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	t.Cleanup(func() { inst.Close(context.Background()) })
	return inst
}

func TestMemoryScalars(t *testing.T) {
	inst := memoryInstance(t, "memscalar", nil)

	if !inst.HasMemory() {
		t.Fatal("HasMemory = false")
	}
	size, err := inst.MemorySize()
	if err != nil {
		t.Fatalf("MemorySize: %v", err)
	}
	if size != PageSize {
		t.Errorf("size = %d, want %d", size, PageSize)
	}

	if err := inst.Put32(16, 0xdeadbeef); err != nil {
		t.Fatalf("Put32: %v", err)
	}
	got, err := inst.Get32(16)
	if err != nil || got != 0xdeadbeef {
		t.Errorf("Get32 = %#x, %v", got, err)
	}
	b, err := inst.Get8(16)
	if err != nil || b != 0xef {
		t.Errorf("Get8 = %#x, %v, want little-endian low byte", b, err)
	}

	if err := inst.Put64(32, 1<<40); err != nil {
		t.Fatalf("Put64: %v", err)
	}
	q, err := inst.Get64(32)
	if err != nil || q != 1<<40 {
		t.Errorf("Get64 = %d, %v", q, err)
	}

	if err := inst.PutFloat64(48, 2.5); err != nil {
		t.Fatalf("PutFloat64: %v", err)
	}
	f, err := inst.GetFloat64(48)
	if err != nil || f != 2.5 {
		t.Errorf("GetFloat64 = %v, %v", f, err)
	}
	if err := inst.PutFloat32(56, -1.5); err != nil {
		t.Fatalf("PutFloat32: %v", err)
	}
	f32, err := inst.GetFloat32(56)
	if err != nil || f32 != -1.5 {
		t.Errorf("GetFloat32 = %v, %v", f32, err)
	}
}

func TestMemoryBulk(t *testing.T) {
	inst := memoryInstance(t, "membulk", nil)

	data := []byte("linear memory round trip")
	if err := inst.MemoryWrite(100, data); err != nil {
		t.Fatalf("MemoryWrite: %v", err)
	}
	got, err := inst.MemoryRead(100, uint64(len(data)))
	if err != nil {
		t.Fatalf("MemoryRead: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("MemoryRead = %q", got)
	}

	var e *errors.Error
	if err := inst.MemoryWrite(PageSize-4, data); !stderrors.As(err, &e) || e.Kind != errors.KindOutOfBounds {
		t.Errorf("write past end = %v, want out_of_bounds", err)
	}
	if _, err := inst.MemoryRead(PageSize, 1); !stderrors.As(err, &e) || e.Kind != errors.KindOutOfBounds {
		t.Errorf("read past end = %v, want out_of_bounds", err)
	}
	// Offsets near the uint64 ceiling must not wrap.
	if _, err := inst.MemoryRead(^uint64(0)-1, 8); !stderrors.As(err, &e) || e.Kind != errors.KindOutOfBounds {
		t.Errorf("wrapping read = %v, want out_of_bounds", err)
	}
}

func TestMemoryArraysAndStructs(t *testing.T) {
	inst := memoryInstance(t, "memarr", nil)

	src := []int32{3, 1, 4, 1, 5}
	if err := inst.PutArray(64, src); err != nil {
		t.Fatalf("PutArray: %v", err)
	}
	back, err := inst.GetArray(64, 5, memcodec.ElemInt32)
	if err != nil {
		t.Fatalf("GetArray: %v", err)
	}
	got := back.([]int32)
	for i := range src {
		if got[i] != src[i] {
			t.Fatalf("GetArray[%d] = %d, want %d", i, got[i], src[i])
		}
	}

	end, err := inst.WriteStruct("if", 128, []variant.Variant{int64(7), 1.25})
	if err != nil {
		t.Fatalf("WriteStruct: %v", err)
	}
	if end != 128+4+4 {
		t.Errorf("cursor = %d, want %d", end, 128+8)
	}
	vals, err := inst.ReadStruct("if", 128)
	if err != nil {
		t.Fatalf("ReadStruct: %v", err)
	}
	if vals[0] != int64(7) || vals[1] != 1.25 {
		t.Errorf("ReadStruct = %v", vals)
	}
}

func TestMemorySetName(t *testing.T) {
	ctx := context.Background()
	module := loadModule(t, "memalt", memoryModule(1, "shared_buf"), nil)
	inst, err := Instantiate(ctx, engine.Global(), module, nil, nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	if inst.HasMemory() {
		t.Error("memory found under the default export name")
	}
	if err := inst.MemorySetName("missing"); err == nil {
		t.Error("binding a missing export should fail")
	}
	if err := inst.MemorySetName("shared_buf"); err != nil {
		t.Fatalf("MemorySetName: %v", err)
	}
	if !inst.HasMemory() {
		t.Error("memory not bound after rename")
	}
	if err := inst.Put32(0, 9); err != nil {
		t.Errorf("Put32 after rename: %v", err)
	}
}

func TestMemoryGrowWithinLimit(t *testing.T) {
	ctx := context.Background()
	module := loadModule(t, "memgrow", memoryModule(0, "memory"), nil)

	cfg := DefaultConfig()
	cfg.MaxMemory = 5 * PageSize
	inst, err := Instantiate(ctx, engine.Global(), module, nil, cfg)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	// More than the whole allowance: denied, not an error.
	if _, ok, err := inst.MemoryGrow(10); ok || err != nil {
		t.Fatalf("grow 10 = %t, %v, want denial", ok, err)
	}

	prev, ok, err := inst.MemoryGrow(3)
	if err != nil || !ok || prev != 0 {
		t.Fatalf("grow 3 = %d, %t, %v", prev, ok, err)
	}

	// Two pages of allowance remain.
	if _, ok, _ := inst.MemoryGrow(3); ok {
		t.Fatal("grow past the remaining allowance allowed")
	}
	prev, ok, err = inst.MemoryGrow(2)
	if err != nil || !ok || prev != 3 {
		t.Fatalf("grow 2 = %d, %t, %v", prev, ok, err)
	}

	size, err := inst.MemorySize()
	if err != nil || size != 5*PageSize {
		t.Errorf("size = %d, %v, want %d", size, err, 5*PageSize)
	}
}

func TestMemoryGrowUnlimited(t *testing.T) {
	ctx := context.Background()
	module := loadModule(t, "memgrowfree", memoryModule(1, "memory"), nil)
	inst, err := Instantiate(ctx, engine.Global(), module, nil, nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	prev, ok, err := inst.MemoryGrow(4)
	if err != nil || !ok || prev != 1 {
		t.Fatalf("grow 4 = %d, %t, %v", prev, ok, err)
	}
}
