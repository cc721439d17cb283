// Package engine owns the process-wide guest VM: a shared compilation cache,
// runtime construction for instances, compiled module metadata, and the
// global epoch tick source used for cooperative deadlines.
package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wasmbridge/wasm-bridge/errors"
)

// Engine wraps the wazero runtime factory. Compiled code is shared across
// instance runtimes through a compilation cache, while each instance gets
// its own runtime so module names never collide between instances.
type Engine struct {
	cache wazero.CompilationCache

	// metaRT compiles modules at load time for validation and
	// import/export introspection. Never instantiates guest code.
	metaRT wazero.Runtime
}

// New creates an engine. Most callers want Global instead.
func New(ctx context.Context) *Engine {
	e := &Engine{cache: wazero.NewCompilationCache()}
	e.metaRT = wazero.NewRuntimeWithConfig(ctx, e.runtimeConfig())
	return e
}

func (e *Engine) runtimeConfig() wazero.RuntimeConfig {
	return wazero.NewRuntimeConfig().
		WithCompilationCache(e.cache).
		WithCoreFeatures(api.CoreFeaturesV2).
		WithCloseOnContextDone(true)
}

// NewInstanceRuntime creates a fresh runtime namespace for one instance.
// maxPages bounds guest memory growth; 0 means the wazero default (4GiB).
func (e *Engine) NewInstanceRuntime(ctx context.Context, maxPages uint32) wazero.Runtime {
	cfg := e.runtimeConfig()
	if maxPages > 0 {
		cfg = cfg.WithMemoryLimitPages(maxPages)
	}
	return wazero.NewRuntimeWithConfig(ctx, cfg)
}

// Close releases the engine's compiled code. All instances must be closed
// before calling this.
func (e *Engine) Close(ctx context.Context) error {
	if err := e.metaRT.Close(ctx); err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "close engine")
	}
	return e.cache.Close(ctx)
}

var (
	global     *Engine
	globalOnce sync.Once
)

// Global returns the process-wide engine, creating it on first use and
// starting the epoch ticker alongside it.
func Global() *Engine {
	globalOnce.Do(func() {
		global = New(context.Background())
		Epoch().Start()
	})
	return global
}
