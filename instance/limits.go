package instance

import "math"

// NoLimit disables a resource bound.
const NoLimit = math.MaxUint64

// PageSize is the wasm linear memory page size in bytes.
const PageSize = 65536

// MemoryLimit meters host-driven resource growth against a fixed allowance.
// The allowance only decreases; shrinking never refunds it, so a guest
// cannot oscillate its way past the cap.
type MemoryLimit struct {
	// MaxMemory is the remaining byte allowance, NoLimit for unbounded.
	MaxMemory uint64
	// MaxTableEntries is the remaining table entry allowance.
	MaxTableEntries uint64
}

// MemoryGrowing reports whether a growth from current to desired bytes is
// permitted and, if so, consumes the delta from the allowance. maximum is
// the memory's own declared cap, NoLimit when absent.
func (l *MemoryLimit) MemoryGrowing(current, desired, maximum uint64) bool {
	if maximum != NoLimit && desired > maximum {
		return false
	}
	if l.MaxMemory == NoLimit {
		return true
	}
	if desired < current {
		return true
	}
	delta := desired - current
	if delta > l.MaxMemory {
		return false
	}
	l.MaxMemory -= delta
	return true
}

// TableGrowing is MemoryGrowing for table entries. The runtime has no
// table-growth hook, so nothing calls this on behalf of a guest; it is part
// of the metering protocol for embedders that track table use themselves.
func (l *MemoryLimit) TableGrowing(current, desired, maximum uint64) bool {
	if maximum != NoLimit && desired > maximum {
		return false
	}
	if l.MaxTableEntries == NoLimit {
		return true
	}
	if desired < current {
		return true
	}
	delta := desired - current
	if delta > l.MaxTableEntries {
		return false
	}
	l.MaxTableEntries -= delta
	return true
}
