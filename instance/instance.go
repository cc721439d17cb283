package instance

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wasmbridge/wasm-bridge/bridge"
	"github.com/wasmbridge/wasm-bridge/engine"
	"github.com/wasmbridge/wasm-bridge/errors"
	"github.com/wasmbridge/wasm-bridge/pipes"
)

// MemoryExportName is the default guest memory export bound at startup.
const MemoryExportName = "memory"

// Instance is one running guest module tree. Initialization is one-shot: a
// failed Initialize leaves the instance permanently unusable, a repeated
// Initialize on a live instance is a successful no-op. All other operations
// fail on an uninitialized instance.
//
// Every public operation serializes on the instance's execution lock, so an
// Instance is safe for concurrent use.
type Instance struct {
	initOnce sync.Once
	d        atomic.Pointer[instData]
	onError  atomic.Pointer[func(error)]
}

type instData struct {
	store   *Store
	module  *engine.Module
	rt      wazero.Runtime
	main    api.Module
	mem     api.Memory
	memName string
	stdin   *pipes.Stdin
	closers []io.Closer
}

// Instantiate creates and initializes an instance in one step.
func Instantiate(ctx context.Context, eng *engine.Engine, module *engine.Module, host HostTable, cfg *Config) (*Instance, error) {
	inst := &Instance{}
	if err := inst.Initialize(ctx, eng, module, host, cfg); err != nil {
		return nil, err
	}
	return inst, nil
}

// Initialize instantiates the module tree. host may be nil; cfg nil means
// DefaultConfig.
func (inst *Instance) Initialize(ctx context.Context, eng *engine.Engine, module *engine.Module, host HostTable, cfg *Config) error {
	var initErr error
	inst.initOnce.Do(func() {
		if cfg == nil {
			cfg = DefaultConfig()
		}
		if cfg.OnError != nil {
			fn := cfg.OnError
			inst.onError.Store(&fn)
		}
		d, err := build(ctx, eng, module, host, cfg)
		if err != nil {
			initErr = err
			return
		}
		inst.d.Store(d)
	})
	if initErr != nil {
		return inst.fail(initErr)
	}
	if inst.d.Load() == nil {
		return inst.fail(errors.Uninitialized("instance"))
	}
	return nil
}

func build(ctx context.Context, eng *engine.Engine, module *engine.Module, host HostTable, cfg *Config) (*instData, error) {
	rt := eng.NewInstanceRuntime(ctx, cfg.maxPages())
	store := newStore(cfg)

	ln := newLinker(rt, store, cfg, host)
	main, err := ln.instantiate(ctx, module, module.Name())
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	d := &instData{
		store:   store,
		module:  module,
		rt:      rt,
		main:    main,
		mem:     main.ExportedMemory(MemoryExportName),
		memName: MemoryExportName,
		stdin:   ln.stdin,
		closers: ln.closers,
	}
	Logger().Info("instance ready",
		zap.String("module", module.Name()),
		zap.Bool("memory", d.mem != nil))
	return d, nil
}

func (inst *Instance) data() (*instData, error) {
	if d := inst.d.Load(); d != nil {
		return d, nil
	}
	return nil, errors.Uninitialized("instance")
}

// fail logs and reports an error through the error callback before
// returning it.
func (inst *Instance) fail(err error) error {
	if err == nil {
		return nil
	}
	Logger().Error("instance operation failed", zap.Error(err))
	if fn := inst.onError.Load(); fn != nil {
		(*fn)(err)
	}
	return err
}

// Module returns the loaded module this instance runs.
func (inst *Instance) Module() (*engine.Module, error) {
	d, err := inst.data()
	if err != nil {
		return nil, inst.fail(err)
	}
	return d.module, nil
}

// SignalError stores a pending error message. When the innermost active
// host callback returns, the message aborts the calling guest. Returns the
// replaced message, if any.
func (inst *Instance) SignalError(msg string) (string, bool, error) {
	d, err := inst.data()
	if err != nil {
		return "", false, inst.fail(err)
	}
	var prev string
	var had bool
	_ = d.store.Acquire(func() error {
		prev, had = d.store.setErrorSignal(msg)
		return nil
	})
	return prev, had, nil
}

// SignalErrorCancel withdraws the pending error message and returns it.
func (inst *Instance) SignalErrorCancel() (string, bool, error) {
	d, err := inst.data()
	if err != nil {
		return "", false, inst.fail(err)
	}
	var prev string
	var had bool
	_ = d.store.Acquire(func() error {
		prev, had = d.store.takeErrorSignal()
		return nil
	})
	return prev, had, nil
}

// ResetEpoch grants the in-flight guest call a fresh tick allowance. Only
// permitted when the instance was configured with epoch autoreset.
func (inst *Instance) ResetEpoch() error {
	d, err := inst.data()
	if err != nil {
		return inst.fail(err)
	}
	err = d.store.Acquire(func() error {
		if !d.store.epochAutoreset {
			return errors.CapabilityDisabled("epoch.reset")
		}
		if d.store.epochTicks == 0 || d.store.deadline == nil {
			return nil
		}
		d.store.deadline.Reset(d.store.epochTicks)
		return nil
	})
	return inst.fail(err)
}

// StdinAddLine feeds one line to an interactive guest stdin.
func (inst *Instance) StdinAddLine(line string) error {
	d, err := inst.data()
	if err != nil {
		return inst.fail(err)
	}
	if d.stdin == nil {
		return inst.fail(errors.InvalidInput(errors.PhaseHost, "stdin is not interactive"))
	}
	d.stdin.AddLine(line)
	return nil
}

// StdinClose ends an interactive guest stdin.
func (inst *Instance) StdinClose() error {
	d, err := inst.data()
	if err != nil {
		return inst.fail(err)
	}
	if d.stdin == nil {
		return inst.fail(errors.InvalidInput(errors.PhaseHost, "stdin is not interactive"))
	}
	return d.stdin.Close()
}

// WithBridge runs f holding the execution lock, giving host code direct
// access to bridge operations such as the packed-array families.
func (inst *Instance) WithBridge(f func(bridge.Context) error) error {
	d, err := inst.data()
	if err != nil {
		return inst.fail(err)
	}
	return inst.fail(d.store.Acquire(func() error {
		return f(d.store)
	}))
}

// Close tears down the instance, flushing buffered output pipes.
func (inst *Instance) Close(ctx context.Context) error {
	d, err := inst.data()
	if err != nil {
		return inst.fail(err)
	}
	return inst.fail(d.store.Acquire(func() error {
		if d.stdin != nil {
			_ = d.stdin.Close()
		}
		for _, c := range d.closers {
			_ = c.Close()
		}
		return d.rt.Close(ctx)
	}))
}
