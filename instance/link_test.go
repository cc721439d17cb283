package instance

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmbridge/wasm-bridge/engine"
	"github.com/wasmbridge/wasm-bridge/errors"
	"github.com/wasmbridge/wasm-bridge/internal/wasmgen"
	"github.com/wasmbridge/wasm-bridge/variant"
)

// constModule exports get() returning v.
func constModule(v int32) []byte {
	m := wasmgen.New()
	m.ExportFunc("get", nil, []api.ValueType{i32t},
		wasmgen.Body(wasmgen.I32Const(v)))
	return m.Build()
}

// offsetModule imports <dep>.get and exports get() = dep.get() + delta.
func offsetModule(dep string, delta int32) []byte {
	m := wasmgen.New()
	get := m.ImportFunc(dep, "get", nil, []api.ValueType{i32t})
	m.ExportFunc("get", nil, []api.ValueType{i32t},
		wasmgen.Body(
			wasmgen.Call(get),
			wasmgen.I32Const(delta),
			wasmgen.I32Add(),
		))
	return m.Build()
}

func TestSiblingLink(t *testing.T) {
	ctx := context.Background()

	dep := loadModule(t, "mathlib", constModule(40), nil)
	main := loadModule(t, "sibmain", offsetModule("mathlib", 2),
		map[string]*engine.Module{"mathlib": dep})

	inst, err := Instantiate(ctx, engine.Global(), main, nil, nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	results, err := inst.Call(ctx, "get")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if results[0] != int64(42) {
		t.Errorf("get = %v, want 42", results)
	}
}

func TestDiamondLinkSharesProvider(t *testing.T) {
	ctx := context.Background()

	shared := loadModule(t, "dshared", constModule(40), nil)
	left := loadModule(t, "dleft", offsetModule("base", 1),
		map[string]*engine.Module{"base": shared})
	right := loadModule(t, "dright", offsetModule("base", 2),
		map[string]*engine.Module{"base": shared})

	m := wasmgen.New()
	lg := m.ImportFunc("left", "get", nil, []api.ValueType{i32t})
	rg := m.ImportFunc("right", "get", nil, []api.ValueType{i32t})
	m.ExportFunc("sum", nil, []api.ValueType{i32t},
		wasmgen.Body(
			wasmgen.Call(lg),
			wasmgen.Call(rg),
			wasmgen.I32Add(),
		))
	main := loadModule(t, "dmain", m.Build(),
		map[string]*engine.Module{"left": left, "right": right})

	inst, err := Instantiate(ctx, engine.Global(), main, nil, nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	results, err := inst.Call(ctx, "sum")
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if results[0] != int64(83) {
		t.Errorf("sum = %v, want 83", results)
	}
}

func TestCyclicDependencyRejected(t *testing.T) {
	ctx := context.Background()

	aDeps := map[string]*engine.Module{}
	a := loadModule(t, "cyca", offsetModule("b", 1), aDeps)
	b := loadModule(t, "cycb", offsetModule("a", 1),
		map[string]*engine.Module{"a": a})
	aDeps["b"] = b

	_, err := Instantiate(ctx, engine.Global(), a, nil, nil)
	if err == nil {
		t.Fatal("cyclic dependency graph accepted")
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindCycle {
		t.Errorf("error = %v, want cycle", err)
	}
}

func TestUnknownImportRejected(t *testing.T) {
	ctx := context.Background()
	main := loadModule(t, "orphan", offsetModule("nowhere", 1), nil)

	_, err := Instantiate(ctx, engine.Global(), main, nil, nil)
	if err == nil {
		t.Fatal("unresolvable import accepted")
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindUnknownImport {
		t.Errorf("error = %v, want unknown_import", err)
	}
}

func TestMixedNamespaceResolution(t *testing.T) {
	ctx := context.Background()

	dep := loadModule(t, "envdep", constModule(1), nil)

	m := wasmgen.New()
	m.ImportFunc("env", "get", nil, []api.ValueType{i32t})
	add := m.ImportFunc("env", "add", []api.ValueType{i32t, i32t}, []api.ValueType{i32t})
	m.ExportFunc("run", nil, []api.ValueType{i32t},
		wasmgen.Body(
			wasmgen.I32Const(1),
			wasmgen.I32Const(2),
			wasmgen.Call(add),
		))
	main := loadModule(t, "envmain", m.Build(),
		map[string]*engine.Module{"env": dep})

	// The sibling provides env.get and the host table provides env.add;
	// both resolve inside the one synthetic namespace.
	inst, err := Instantiate(ctx, engine.Global(), main, addHost(plainAdd), nil)
	if err != nil {
		t.Fatalf("mixed namespace: %v", err)
	}
	defer inst.Close(ctx)

	results, err := inst.Call(ctx, "run")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if results[0] != int64(3) {
		t.Errorf("run = %v, want 3", results)
	}
}

func TestWASINamespace(t *testing.T) {
	ctx := context.Background()

	m := wasmgen.New()
	m.ImportFunc("wasi_snapshot_preview1", "fd_write",
		[]api.ValueType{i32t, i32t, i32t, i32t}, []api.ValueType{i32t})
	m.ExportFunc("noop", nil, nil, wasmgen.Body())
	module := loadModule(t, "wasiness", m.Build(), nil)

	t.Run("disabled", func(t *testing.T) {
		_, err := Instantiate(ctx, engine.Global(), module, nil, nil)
		var e *errors.Error
		if !stderrors.As(err, &e) || e.Kind != errors.KindUnknownImport {
			t.Errorf("error = %v, want unknown_import", err)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.WASI = true
		inst, err := Instantiate(ctx, engine.Global(), module, nil, cfg)
		if err != nil {
			t.Fatalf("Instantiate: %v", err)
		}
		defer inst.Close(ctx)

		if _, err := inst.Call(ctx, "noop"); err != nil {
			t.Errorf("noop: %v", err)
		}
	})
}

func TestHostStubbedWASIFunction(t *testing.T) {
	ctx := context.Background()

	m := wasmgen.New()
	random := m.ImportFunc("wasi_snapshot_preview1", "random_get",
		[]api.ValueType{i32t, i32t}, []api.ValueType{i32t})
	yield := m.ImportFunc("wasi_snapshot_preview1", "sched_yield",
		nil, []api.ValueType{i32t})
	m.ExportFunc("run", nil, []api.ValueType{i32t},
		wasmgen.Body(
			wasmgen.I32Const(0),
			wasmgen.I32Const(0),
			wasmgen.Call(random),
			wasmgen.Call(yield),
			wasmgen.I32Add(),
		))
	module := loadModule(t, "wasistub", m.Build(), nil)

	// The host table replaces random_get only; sched_yield must keep its
	// stock implementation inside the same namespace.
	host := HostTable{
		"wasi_snapshot_preview1": {
			"random_get": {
				Params:  []api.ValueType{i32t, i32t},
				Results: []api.ValueType{i32t},
				Fn: func([]variant.Variant) ([]variant.Variant, error) {
					return []variant.Variant{int64(7)}, nil
				},
			},
		},
	}

	cfg := DefaultConfig()
	cfg.WASI = true
	inst, err := Instantiate(ctx, engine.Global(), module, host, cfg)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	results, err := inst.Call(ctx, "run")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// 7 from the stub plus errno 0 from the stock sched_yield.
	if results[0] != int64(7) {
		t.Errorf("run = %v, want 7", results)
	}
}

func TestSiblingChainThroughHost(t *testing.T) {
	ctx := context.Background()

	// base -> mid -> main, with main also calling a host function.
	base := loadModule(t, "chainbase", constModule(10), nil)
	mid := loadModule(t, "chainmid", offsetModule("chainbase", 5),
		map[string]*engine.Module{"chainbase": base})

	m := wasmgen.New()
	get := m.ImportFunc("chainmid", "get", nil, []api.ValueType{i32t})
	add := m.ImportFunc("env", "add", []api.ValueType{i32t, i32t}, []api.ValueType{i32t})
	m.ExportFunc("total", nil, []api.ValueType{i32t},
		wasmgen.Body(
			wasmgen.Call(get),
			wasmgen.I32Const(100),
			wasmgen.Call(add),
		))
	main := loadModule(t, "chainmain", m.Build(),
		map[string]*engine.Module{"chainmid": mid})

	calls := 0
	host := addHost(func(args []variant.Variant) ([]variant.Variant, error) {
		calls++
		return plainAdd(args)
	})
	inst, err := Instantiate(ctx, engine.Global(), main, host, nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	results, err := inst.Call(ctx, "total")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if results[0] != int64(115) {
		t.Errorf("total = %v, want 115", results)
	}
	if calls != 1 {
		t.Errorf("host calls = %d, want 1", calls)
	}
}
