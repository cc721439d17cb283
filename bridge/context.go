package bridge

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wasmbridge/wasm-bridge/registry"
)

// Namespaces guest modules import bridge functions under. They are reserved:
// the instantiator never resolves them against sibling modules.
const (
	RegistryNamespace = "host_registry"
	ExternNamespace   = "host_extern"
)

// Context is the per-instance state a bridge function operates on. It is
// implemented by the instance store; all methods are called with the store
// lock held.
type Context interface {
	// Registry returns the object registry, or an error when the instance
	// was not configured for registry binding.
	Registry() (*registry.Registry, error)
	// Externs returns the externref table, or an error when the instance
	// was not configured for native binding.
	Externs() (*registry.ExternTable, error)
	// Filter returns the operation capability filter.
	Filter() Filter
}

// Func describes one guest-importable host function.
type Func struct {
	Params  []api.ValueType
	Results []api.ValueType
	Fn      api.GoModuleFunc
}

// trap aborts the calling guest. The panic is recovered by the wasm runtime
// and surfaces as the error of the outermost call.
func trap(err error) {
	panic(err)
}

func check(err error) {
	if err != nil {
		trap(err)
	}
}
