package variant

import (
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmbridge/wasm-bridge/errors"
)

// RefTable registers host values behind opaque reference ids for externref
// parameters. Id 0 is reserved for the null reference.
type RefTable interface {
	RegisterRef(v Variant) uint64
	RefValue(id uint64) (Variant, bool)
}

// ToRaw converts a host value to the raw stack representation for the given
// wasm value type. Object-valued externrefs go through refs; refs may be nil
// when the value type is numeric.
func ToRaw(refs RefTable, vt api.ValueType, v Variant) (uint64, error) {
	switch vt {
	case api.ValueTypeI32:
		n, err := toInt(v)
		if err != nil {
			return 0, err
		}
		return api.EncodeI32(int32(n)), nil
	case api.ValueTypeI64:
		n, err := toInt(v)
		if err != nil {
			return 0, err
		}
		return api.EncodeI64(n), nil
	case api.ValueTypeF32:
		f, err := toFloat(v)
		if err != nil {
			return 0, err
		}
		return api.EncodeF32(float32(f)), nil
	case api.ValueTypeF64:
		f, err := toFloat(v)
		if err != nil {
			return 0, err
		}
		return api.EncodeF64(f), nil
	case api.ValueTypeExternref:
		if v == nil {
			return 0, nil
		}
		if refs == nil {
			return 0, errors.InvalidInput(errors.PhaseCall, "externref parameter without reference table")
		}
		return api.EncodeExternref(uintptr(refs.RegisterRef(v))), nil
	}
	return 0, errors.TypeMismatch(errors.PhaseCall, "supported wasm value type", vt)
}

// FromRaw converts a raw stack value of the given wasm value type back to a
// host value. Integers widen to int64, floats to float64.
func FromRaw(refs RefTable, vt api.ValueType, raw uint64) (Variant, error) {
	switch vt {
	case api.ValueTypeI32:
		return int64(api.DecodeI32(raw)), nil
	case api.ValueTypeI64:
		return int64(raw), nil
	case api.ValueTypeF32:
		return float64(api.DecodeF32(raw)), nil
	case api.ValueTypeF64:
		return api.DecodeF64(raw), nil
	case api.ValueTypeExternref:
		id := uint64(api.DecodeExternref(raw))
		if id == 0 {
			return nil, nil
		}
		if refs == nil {
			return nil, errors.InvalidInput(errors.PhaseCall, "externref result without reference table")
		}
		v, ok := refs.RefValue(id)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseCall, "host value reference", id)
		}
		return v, nil
	}
	return nil, errors.TypeMismatch(errors.PhaseCall, "supported wasm value type", vt)
}

func toInt(v Variant) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case float64:
		if n == math.Trunc(n) {
			return int64(n), nil
		}
	}
	return 0, errors.TypeMismatch(errors.PhaseCall, "integer", v)
}

func toFloat(v Variant) (float64, error) {
	switch f := v.(type) {
	case float32:
		return float64(f), nil
	case float64:
		return f, nil
	case int:
		return float64(f), nil
	case int32:
		return float64(f), nil
	case int64:
		return float64(f), nil
	}
	return 0, errors.TypeMismatch(errors.PhaseCall, "float", v)
}
