package registry

import (
	"github.com/wasmbridge/wasm-bridge/errors"
	"github.com/wasmbridge/wasm-bridge/variant"
)

// ExternTable backs opaque references: host values carried on the guest
// stack as externref payloads. The payload is a table id, never a Go
// pointer. Id 0 is the null reference.
//
// Entries live until the owning execution context is dropped; the guest VM
// offers no hook to observe when it discards a reference.
type ExternTable struct {
	values []variant.Variant
}

// NewExternTable creates an empty extern table.
func NewExternTable() *ExternTable {
	return &ExternTable{}
}

// RegisterRef stores a value and returns its reference id.
// Implements variant.RefTable.
func (t *ExternTable) RegisterRef(v variant.Variant) uint64 {
	t.values = append(t.values, v)
	return uint64(len(t.values))
}

// RefValue returns the value behind a reference id.
// Implements variant.RefTable.
func (t *ExternTable) RefValue(id uint64) (variant.Variant, bool) {
	if id == 0 || id > uint64(len(t.values)) {
		return nil, false
	}
	return t.values[id-1], true
}

// Decode validates an externref payload and returns the host value it wraps.
// A zero id decodes to nil (the null reference).
func (t *ExternTable) Decode(id uint64) (variant.Variant, error) {
	if id == 0 {
		return nil, nil
	}
	v, ok := t.RefValue(id)
	if !ok {
		return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Detail("external reference is not a host value").
			Value(id).
			Build()
	}
	return v, nil
}

// DecodeNonNull is Decode but fails on the null reference.
func (t *ExternTable) DecodeNonNull(id uint64) (variant.Variant, error) {
	if id == 0 {
		return nil, errors.InvalidInput(errors.PhaseHost, "null value")
	}
	return t.Decode(id)
}

// Encode wraps a host value as an externref payload. nil encodes to the
// null reference.
func (t *ExternTable) Encode(v variant.Variant) uint64 {
	if v == nil {
		return 0
	}
	return t.RegisterRef(v)
}
