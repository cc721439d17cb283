// Package bridge exposes host function sets that guest modules import to
// exchange values with the embedder. Two binding modes exist: registry mode
// routes values through integer handles into the per-instance object
// registry, native mode passes values directly as externrefs.
package bridge

import "github.com/wasmbridge/wasm-bridge/errors"

// Filter is a deny-set of operation names. Operations are keyed by stable
// dotted names such as "byte_array.get"; an empty or nil filter allows
// everything.
type Filter map[string]struct{}

// NewFilter builds a filter denying the named operations.
func NewFilter(denied []string) Filter {
	if len(denied) == 0 {
		return nil
	}
	f := make(Filter, len(denied))
	for _, op := range denied {
		f[op] = struct{}{}
	}
	return f
}

// Allowed reports whether the operation may run.
func (f Filter) Allowed(op string) bool {
	if f == nil {
		return true
	}
	_, denied := f[op]
	return !denied
}

// Check returns a capability error when the operation is denied.
func (f Filter) Check(op string) error {
	if !f.Allowed(op) {
		return errors.CapabilityDisabled(op)
	}
	return nil
}
