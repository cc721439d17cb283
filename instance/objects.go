package instance

import (
	"github.com/wasmbridge/wasm-bridge/errors"
	"github.com/wasmbridge/wasm-bridge/registry"
	"github.com/wasmbridge/wasm-bridge/variant"
)

// RegisterObject places a host value in the object registry and returns its
// handle. The nil value cannot be registered; handle 0 stands for it.
func (inst *Instance) RegisterObject(v variant.Variant) (registry.Handle, error) {
	d, err := inst.data()
	if err != nil {
		return 0, inst.fail(err)
	}
	if v == nil {
		return 0, inst.fail(errors.InvalidInput(errors.PhaseRegistry, "cannot register the null value"))
	}
	var h registry.Handle
	err = d.store.Acquire(func() error {
		reg, err := d.store.Registry()
		if err != nil {
			return err
		}
		h = reg.Register(v)
		return nil
	})
	return h, inst.fail(err)
}

// GetObject returns the value behind a handle, or nil for an unregistered
// handle. Stale handles are not an error.
func (inst *Instance) GetObject(h registry.Handle) (variant.Variant, error) {
	d, err := inst.data()
	if err != nil {
		return nil, inst.fail(err)
	}
	var v variant.Variant
	err = d.store.Acquire(func() error {
		reg, err := d.store.Registry()
		if err != nil {
			return err
		}
		v = reg.Get(h)
		return nil
	})
	return v, inst.fail(err)
}

// SetObject replaces the value behind a handle and returns the previous
// one. Setting nil unregisters the handle.
func (inst *Instance) SetObject(h registry.Handle, v variant.Variant) (variant.Variant, error) {
	d, err := inst.data()
	if err != nil {
		return nil, inst.fail(err)
	}
	var prev variant.Variant
	err = d.store.Acquire(func() error {
		reg, err := d.store.Registry()
		if err != nil {
			return err
		}
		if v == nil {
			prev = reg.Unregister(h)
		} else {
			prev = reg.Replace(h, v)
		}
		return nil
	})
	return prev, inst.fail(err)
}

// UnregisterObject frees a handle and returns its value, or nil if the
// handle was not registered.
func (inst *Instance) UnregisterObject(h registry.Handle) (variant.Variant, error) {
	d, err := inst.data()
	if err != nil {
		return nil, inst.fail(err)
	}
	var prev variant.Variant
	err = d.store.Acquire(func() error {
		reg, err := d.store.Registry()
		if err != nil {
			return err
		}
		prev = reg.Unregister(h)
		return nil
	})
	return prev, inst.fail(err)
}

// ObjectCount returns the number of live registry entries.
func (inst *Instance) ObjectCount() (int, error) {
	d, err := inst.data()
	if err != nil {
		return 0, inst.fail(err)
	}
	var n int
	err = d.store.Acquire(func() error {
		reg, err := d.store.Registry()
		if err != nil {
			return err
		}
		n = reg.Len()
		return nil
	})
	return n, inst.fail(err)
}
