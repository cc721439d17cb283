package instance

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wasmbridge/wasm-bridge/variant"
)

// HostFunc is a host callback the guest can import. Arguments and results
// are converted between raw stack values and host variants using the
// declared wasm types.
type HostFunc struct {
	Params  []api.ValueType
	Results []api.ValueType
	Fn      func(args []variant.Variant) ([]variant.Variant, error)
}

// HostTable maps namespace then function name to host callbacks. Host
// entries take priority over every other import source.
type HostTable map[string]map[string]HostFunc

// Lookup returns the callback for an import pair.
func (t HostTable) Lookup(namespace, name string) (HostFunc, bool) {
	fns, ok := t[namespace]
	if !ok {
		return HostFunc{}, false
	}
	hf, ok := fns[name]
	return hf, ok
}
