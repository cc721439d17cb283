// Package wasmbridge embeds WebAssembly guests in Go hosts with a typed
// value bridge between them.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	wasm-bridge/
//	├── engine/      Shared compilation cache, module loading, epoch clock
//	├── instance/    Instance lifecycle, calls, linking, memory, limits
//	├── bridge/      Guest-facing value bridge (registry and externref modes)
//	├── registry/    Handle table for host objects
//	├── variant/     Dynamic host values and raw wire conversion
//	├── memcodec/    Packed array and struct layout codecs for linear memory
//	├── pipes/       Guest stdio plumbing
//	└── errors/      Structured error types for debugging
//
// # Quick Start
//
// Load a module and call an export:
//
//	eng := engine.Global()
//
//	mod, err := eng.Load(ctx, "demo", wasmBytes, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := instance.Instantiate(ctx, eng, mod, nil, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	results, err := inst.Call(ctx, "add", int64(2), int64(3))
//
// # Host Functions
//
// Guest imports resolve against a host table first, then the value bridge,
// then WASI, then sibling modules named in the dependency table:
//
//	host := instance.HostTable{
//	    "env": {
//	        "now": {
//	            Results: []api.ValueType{api.ValueTypeI64},
//	            Fn: func([]variant.Variant) ([]variant.Variant, error) {
//	                return []variant.Variant{time.Now().Unix()}, nil
//	            },
//	        },
//	    },
//	}
//
// Host callbacks may re-enter the instance through a bound Callable; the
// execution lock is lent to the callback for exactly that purpose.
//
// # Thread Safety
//
// Engine and Module are safe for concurrent use. An Instance serializes all
// guest execution internally; its methods may be called from any goroutine
// but only one guest call runs at a time.
//
// # Memory Model
//
// WASM linear memory can only grow, never shrink. Growth is metered against
// a per-instance byte allowance that never refunds, so a guest cannot
// oscillate its way past the configured cap.
package wasmbridge
