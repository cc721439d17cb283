// Package registry provides handle-based indirection for passing host values
// into guest code. Registry hands out small integer handles; ExternTable
// backs natively-typed opaque references carried on the guest value stack.
package registry

import (
	"github.com/wasmbridge/wasm-bridge/variant"
)

// Handle refers to a registered host value. Handle 0 is never valid.
type Handle = uint32

// Registry maps integer handles to host values. Freed slots are reused
// through a free list. Lookups on unregistered handles return nil rather
// than failing, so guest use-after-free stays memory safe on the host side.
//
// Registry is not synchronized; it is owned by exactly one execution
// context and guarded by that context's lock.
type Registry struct {
	entries  []variant.Variant
	freeList []Handle
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make([]variant.Variant, 0, 64),
	}
}

// Register stores a value and returns its handle.
func (r *Registry) Register(v variant.Variant) Handle {
	if n := len(r.freeList); n > 0 {
		h := r.freeList[n-1]
		r.freeList = r.freeList[:n-1]
		r.entries[h-1] = v
		return h
	}
	r.entries = append(r.entries, v)
	return Handle(len(r.entries))
}

// Get returns the value for a handle, or nil if the handle is unregistered.
func (r *Registry) Get(h Handle) variant.Variant {
	if h == 0 || int(h) > len(r.entries) {
		return nil
	}
	return r.entries[h-1]
}

// Replace stores a new value under a live handle and returns the previous
// value, or nil if the handle was unregistered. A freed or out-of-range
// handle is left alone; rebinding a dead slot behind the free list would
// let a later Register hand out the same handle twice.
func (r *Registry) Replace(h Handle, v variant.Variant) variant.Variant {
	if h == 0 || int(h) > len(r.entries) {
		return nil
	}
	prev := r.entries[h-1]
	if prev == nil {
		return nil
	}
	r.entries[h-1] = v
	return prev
}

// Unregister removes a handle and returns its previous value, or nil if the
// handle was unregistered. The slot becomes nil until the free list rebinds it.
func (r *Registry) Unregister(h Handle) variant.Variant {
	if h == 0 || int(h) > len(r.entries) {
		return nil
	}
	prev := r.entries[h-1]
	if prev == nil {
		return nil
	}
	r.entries[h-1] = nil
	r.freeList = append(r.freeList, h)
	return prev
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	return len(r.entries) - len(r.freeList)
}
