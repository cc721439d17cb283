package instance

import (
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmbridge/wasm-bridge/errors"
	"github.com/wasmbridge/wasm-bridge/memcodec"
	"github.com/wasmbridge/wasm-bridge/variant"
)

func (d *instData) memory() (api.Memory, error) {
	if d.mem == nil {
		return nil, errors.NoMemory()
	}
	return d.mem, nil
}

// view returns the full linear memory as a mutable byte slice.
func (d *instData) view() ([]byte, error) {
	mem, err := d.memory()
	if err != nil {
		return nil, err
	}
	size := mem.Size()
	if size == 0 {
		return nil, nil
	}
	b, ok := mem.Read(0, size)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMemory, 0, uint64(size), uint64(size))
	}
	return b, nil
}

// HasMemory reports whether a guest memory is currently bound.
func (inst *Instance) HasMemory() bool {
	d, err := inst.data()
	if err != nil {
		return false
	}
	var has bool
	_ = d.store.Acquire(func() error {
		has = d.mem != nil
		return nil
	})
	return has
}

// MemorySetName rebinds the instance to a differently named memory export.
func (inst *Instance) MemorySetName(name string) error {
	d, err := inst.data()
	if err != nil {
		return inst.fail(err)
	}
	return inst.fail(d.store.Acquire(func() error {
		mem := d.main.ExportedMemory(name)
		if mem == nil {
			return errors.NotFound(errors.PhaseMemory, "memory export", name)
		}
		d.mem = mem
		d.memName = name
		return nil
	}))
}

// MemorySize returns the current memory size in bytes.
func (inst *Instance) MemorySize() (uint64, error) {
	d, err := inst.data()
	if err != nil {
		return 0, inst.fail(err)
	}
	var size uint64
	err = d.store.Acquire(func() error {
		mem, err := d.memory()
		if err != nil {
			return err
		}
		size = uint64(mem.Size())
		return nil
	})
	return size, inst.fail(err)
}

// MemoryGrow asks for delta more pages, metered against the instance's
// memory allowance. A denied growth returns ok false without error.
func (inst *Instance) MemoryGrow(delta uint32) (prevPages uint32, ok bool, err error) {
	d, derr := inst.data()
	if derr != nil {
		return 0, false, inst.fail(derr)
	}
	err = d.store.Acquire(func() error {
		mem, err := d.memory()
		if err != nil {
			return err
		}
		current := uint64(mem.Size())
		desired := current + uint64(delta)*PageSize
		if !d.store.limits.MemoryGrowing(current, desired, NoLimit) {
			return nil
		}
		prevPages, ok = mem.Grow(delta)
		return nil
	})
	return prevPages, ok, inst.fail(err)
}

// MemoryRead copies n bytes starting at off out of guest memory.
func (inst *Instance) MemoryRead(off, n uint64) ([]byte, error) {
	d, err := inst.data()
	if err != nil {
		return nil, inst.fail(err)
	}
	var out []byte
	err = d.store.Acquire(func() error {
		data, err := d.view()
		if err != nil {
			return err
		}
		if off+n < off || off+n > uint64(len(data)) {
			return errors.OutOfBounds(errors.PhaseMemory, off, off+n, uint64(len(data)))
		}
		out = make([]byte, n)
		copy(out, data[off:off+n])
		return nil
	})
	return out, inst.fail(err)
}

// MemoryWrite copies p into guest memory at off.
func (inst *Instance) MemoryWrite(off uint64, p []byte) error {
	d, err := inst.data()
	if err != nil {
		return inst.fail(err)
	}
	return inst.fail(d.store.Acquire(func() error {
		data, err := d.view()
		if err != nil {
			return err
		}
		end := off + uint64(len(p))
		if end < off || end > uint64(len(data)) {
			return errors.OutOfBounds(errors.PhaseMemory, off, end, uint64(len(data)))
		}
		copy(data[off:end], p)
		return nil
	}))
}

func scalarGet[T any](inst *Instance, read func(api.Memory) (T, bool), width uint64, off uint64) (T, error) {
	var zero T
	d, err := inst.data()
	if err != nil {
		return zero, inst.fail(err)
	}
	var out T
	err = d.store.Acquire(func() error {
		mem, err := d.memory()
		if err != nil {
			return err
		}
		if off > math.MaxUint32 {
			return errors.OutOfBounds(errors.PhaseMemory, off, off+width, uint64(mem.Size()))
		}
		v, ok := read(mem)
		if !ok {
			return errors.OutOfBounds(errors.PhaseMemory, off, off+width, uint64(mem.Size()))
		}
		out = v
		return nil
	})
	return out, inst.fail(err)
}

func scalarPut(inst *Instance, write func(api.Memory) bool, width uint64, off uint64) error {
	d, err := inst.data()
	if err != nil {
		return inst.fail(err)
	}
	return inst.fail(d.store.Acquire(func() error {
		mem, err := d.memory()
		if err != nil {
			return err
		}
		if off > math.MaxUint32 {
			return errors.OutOfBounds(errors.PhaseMemory, off, off+width, uint64(mem.Size()))
		}
		if !write(mem) {
			return errors.OutOfBounds(errors.PhaseMemory, off, off+width, uint64(mem.Size()))
		}
		return nil
	}))
}

// Get8 reads one byte at off. The remaining fixed-width accessors follow
// the same pattern with little-endian byte order.
func (inst *Instance) Get8(off uint64) (byte, error) {
	return scalarGet(inst, func(m api.Memory) (byte, bool) { return m.ReadByte(uint32(off)) }, 1, off)
}

func (inst *Instance) Get16(off uint64) (uint16, error) {
	return scalarGet(inst, func(m api.Memory) (uint16, bool) { return m.ReadUint16Le(uint32(off)) }, 2, off)
}

func (inst *Instance) Get32(off uint64) (uint32, error) {
	return scalarGet(inst, func(m api.Memory) (uint32, bool) { return m.ReadUint32Le(uint32(off)) }, 4, off)
}

func (inst *Instance) Get64(off uint64) (uint64, error) {
	return scalarGet(inst, func(m api.Memory) (uint64, bool) { return m.ReadUint64Le(uint32(off)) }, 8, off)
}

func (inst *Instance) GetFloat32(off uint64) (float32, error) {
	return scalarGet(inst, func(m api.Memory) (float32, bool) { return m.ReadFloat32Le(uint32(off)) }, 4, off)
}

func (inst *Instance) GetFloat64(off uint64) (float64, error) {
	return scalarGet(inst, func(m api.Memory) (float64, bool) { return m.ReadFloat64Le(uint32(off)) }, 8, off)
}

func (inst *Instance) Put8(off uint64, v byte) error {
	return scalarPut(inst, func(m api.Memory) bool { return m.WriteByte(uint32(off), v) }, 1, off)
}

func (inst *Instance) Put16(off uint64, v uint16) error {
	return scalarPut(inst, func(m api.Memory) bool { return m.WriteUint16Le(uint32(off), v) }, 2, off)
}

func (inst *Instance) Put32(off uint64, v uint32) error {
	return scalarPut(inst, func(m api.Memory) bool { return m.WriteUint32Le(uint32(off), v) }, 4, off)
}

func (inst *Instance) Put64(off uint64, v uint64) error {
	return scalarPut(inst, func(m api.Memory) bool { return m.WriteUint64Le(uint32(off), v) }, 8, off)
}

func (inst *Instance) PutFloat32(off uint64, v float32) error {
	return scalarPut(inst, func(m api.Memory) bool { return m.WriteFloat32Le(uint32(off), v) }, 4, off)
}

func (inst *Instance) PutFloat64(off uint64, v float64) error {
	return scalarPut(inst, func(m api.Memory) bool { return m.WriteFloat64Le(uint32(off), v) }, 8, off)
}

// PutArray writes a packed host array into guest memory at off.
func (inst *Instance) PutArray(off uint64, v variant.Variant) error {
	d, err := inst.data()
	if err != nil {
		return inst.fail(err)
	}
	return inst.fail(d.store.Acquire(func() error {
		data, err := d.view()
		if err != nil {
			return err
		}
		return memcodec.PutArray(data, off, v)
	}))
}

// GetArray reads n packed elements of the given type from guest memory.
func (inst *Instance) GetArray(off, n uint64, elem memcodec.ElemType) (variant.Variant, error) {
	d, err := inst.data()
	if err != nil {
		return nil, inst.fail(err)
	}
	var out variant.Variant
	err = d.store.Acquire(func() error {
		data, err := d.view()
		if err != nil {
			return err
		}
		out, err = memcodec.GetArray(data, off, n, elem)
		return err
	})
	return out, inst.fail(err)
}

// ReadStruct decodes fields at p per the struct format string.
func (inst *Instance) ReadStruct(format string, p uint64) ([]variant.Variant, error) {
	d, err := inst.data()
	if err != nil {
		return nil, inst.fail(err)
	}
	var out []variant.Variant
	err = d.store.Acquire(func() error {
		data, err := d.view()
		if err != nil {
			return err
		}
		out, err = memcodec.ReadStruct(data, p, format)
		return err
	})
	return out, inst.fail(err)
}

// WriteStruct encodes values at p per the struct format string and returns
// the cursor past the last field.
func (inst *Instance) WriteStruct(format string, p uint64, values []variant.Variant) (uint64, error) {
	d, err := inst.data()
	if err != nil {
		return 0, inst.fail(err)
	}
	var end uint64
	err = d.store.Acquire(func() error {
		data, err := d.view()
		if err != nil {
			return err
		}
		end, err = memcodec.WriteStruct(data, p, format, values)
		return err
	})
	return end, inst.fail(err)
}
