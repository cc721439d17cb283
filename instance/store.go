// Package instance runs one instantiated guest module tree: import
// resolution across sibling modules and host functions, the execution lock
// with host callback reentrancy, epoch deadlines, the object registry
// surface, and typed access to guest linear memory.
package instance

import (
	"sync"

	"github.com/wasmbridge/wasm-bridge/bridge"
	"github.com/wasmbridge/wasm-bridge/engine"
	"github.com/wasmbridge/wasm-bridge/errors"
	"github.com/wasmbridge/wasm-bridge/registry"
	"github.com/wasmbridge/wasm-bridge/variant"
)

// Store is the per-instance execution context. One lock serializes all
// entry into the guest; host functions release it around host callbacks so
// a callback may re-enter the instance without deadlocking.
type Store struct {
	mu sync.Mutex
	// current points at mu while this execution context genuinely holds
	// it, nil while the lock is lent out to a host callback. Only touched
	// with mu held, or inside the lent-out window by the lender itself.
	current *sync.Mutex

	errorMsg string
	errorSet bool

	epochTicks     uint64
	epochAutoreset bool
	deadline       *engine.Deadline

	limits MemoryLimit

	reg    *registry.Registry
	ext    *registry.ExternTable
	filter bridge.Filter
}

func newStore(cfg *Config) *Store {
	s := &Store{
		epochTicks:     cfg.EpochTicks,
		epochAutoreset: cfg.EpochAutoreset,
		limits: MemoryLimit{
			MaxMemory:       cfg.MaxMemory,
			MaxTableEntries: cfg.MaxTableEntries,
		},
		filter: bridge.NewFilter(cfg.DeniedOps),
	}
	switch cfg.Bind {
	case BindRegistry:
		s.reg = registry.New()
	case BindNative:
		s.ext = registry.NewExternTable()
	}
	return s
}

// Acquire runs f holding the execution lock.
func (s *Store) Acquire(f func() error) error {
	s.mu.Lock()
	saved := s.current
	s.current = &s.mu
	defer func() {
		s.current = saved
		s.mu.Unlock()
	}()
	return f()
}

// Release runs f with the execution lock temporarily released, so f may
// call back into operations that Acquire it. Must only be called from
// within an Acquire frame on the same goroutine.
func (s *Store) Release(f func() error) error {
	held := s.current
	if held != nil {
		s.current = nil
		held.Unlock()
		defer func() {
			held.Lock()
			s.current = held
		}()
	}
	return f()
}

// Registry implements bridge.Context.
func (s *Store) Registry() (*registry.Registry, error) {
	if s.reg == nil {
		return nil, errors.New(errors.PhaseRegistry, errors.KindCapabilityDisabled).
			Detail("object registry is not enabled").
			Build()
	}
	return s.reg, nil
}

// Externs implements bridge.Context.
func (s *Store) Externs() (*registry.ExternTable, error) {
	if s.ext == nil {
		return nil, errors.New(errors.PhaseHost, errors.KindCapabilityDisabled).
			Detail("native value binding is not enabled").
			Build()
	}
	return s.ext, nil
}

// Filter implements bridge.Context.
func (s *Store) Filter() bridge.Filter { return s.filter }

// refTable returns the extern table as a variant.RefTable, or nil when the
// instance is not natively bound.
func (s *Store) refTable() variant.RefTable {
	if s.ext == nil {
		return nil
	}
	return s.ext
}

// setErrorSignal stores a pending error message and returns the replaced
// one, if any.
func (s *Store) setErrorSignal(msg string) (string, bool) {
	prev, had := s.errorMsg, s.errorSet
	s.errorMsg, s.errorSet = msg, true
	return prev, had
}

// takeErrorSignal consumes the pending error message.
func (s *Store) takeErrorSignal() (string, bool) {
	prev, had := s.errorMsg, s.errorSet
	s.errorMsg, s.errorSet = "", false
	return prev, had
}
