package instance

import (
	"context"
	"fmt"

	"github.com/wasmbridge/wasm-bridge/engine"
	"github.com/wasmbridge/wasm-bridge/errors"
	"github.com/wasmbridge/wasm-bridge/variant"
)

// Call invokes an exported guest function. Arguments and results are
// converted against the export's declared wasm signature. When the instance
// carries an epoch deadline, calls running past the tick allowance are
// interrupted and fail with an interruption error.
func (inst *Instance) Call(ctx context.Context, name string, args ...variant.Variant) ([]variant.Variant, error) {
	d, err := inst.data()
	if err != nil {
		return nil, inst.fail(err)
	}

	var results []variant.Variant
	err = d.store.Acquire(func() error {
		var cerr error
		results, cerr = d.call(ctx, name, args)
		return cerr
	})
	if err != nil {
		return nil, inst.fail(err)
	}
	return results, nil
}

// call runs with the execution lock held.
func (d *instData) call(ctx context.Context, name string, args []variant.Variant) ([]variant.Variant, error) {
	fn := d.main.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseCall, "export", name)
	}
	def := fn.Definition()
	pts := def.ParamTypes()
	rts := def.ResultTypes()
	if len(args) != len(pts) {
		return nil, errors.InvalidInput(errors.PhaseCall,
			fmt.Sprintf("%s takes %d arguments, got %d", name, len(pts), len(args)))
	}

	raw := make([]uint64, len(pts))
	for i, pt := range pts {
		v, err := variant.ToRaw(d.store.refTable(), pt, args[i])
		if err != nil {
			return nil, err
		}
		raw[i] = v
	}

	callCtx := ctx
	if ticks := d.store.epochTicks; ticks > 0 {
		cctx, deadline := engine.Epoch().Arm(ctx, ticks)
		prev := d.store.deadline
		d.store.deadline = deadline
		defer func() {
			d.store.deadline = prev
			deadline.Disarm()
		}()
		callCtx = cctx
	}

	out, err := fn.Call(callCtx, raw...)
	if err != nil {
		if callCtx.Err() != nil {
			return nil, errors.Interrupted(err)
		}
		return nil, errors.Wrap(errors.PhaseCall, errors.KindInvalidInput, err, "call "+name)
	}

	results := make([]variant.Variant, len(rts))
	for i, rt := range rts {
		v, err := variant.FromRaw(d.store.refTable(), rt, out[i])
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}

// Callable is a bound guest export.
type Callable func(ctx context.Context, args ...variant.Variant) ([]variant.Variant, error)

// BindCallable resolves an export once and returns a reusable invoker. The
// returned callable may be invoked from inside a host callback; the
// execution lock is re-entered safely.
func (inst *Instance) BindCallable(name string) (Callable, error) {
	d, err := inst.data()
	if err != nil {
		return nil, inst.fail(err)
	}
	if d.main.ExportedFunction(name) == nil {
		return nil, inst.fail(errors.NotFound(errors.PhaseCall, "export", name))
	}
	return func(ctx context.Context, args ...variant.Variant) ([]variant.Variant, error) {
		return inst.Call(ctx, name, args...)
	}, nil
}
