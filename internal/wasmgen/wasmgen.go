// Package wasmgen assembles small core wasm binaries in process, so tests
// can exercise real guest modules without shipping binary fixtures.
package wasmgen

import (
	"github.com/tetratelabs/wazero/api"
)

// EncodeULEB128 encodes an unsigned value in LEB128 format.
func EncodeULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}

// EncodeSLEB128 encodes a signed value in LEB128 format.
func EncodeSLEB128[T int32 | int64](v T) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			result = append(result, b)
			break
		}
		result = append(result, b|0x80)
	}
	return result
}

func valType(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI32:
		return 0x7f
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	case api.ValueTypeExternref:
		return 0x6f
	default:
		return 0x7f
	}
}

type funcType struct {
	params  []api.ValueType
	results []api.ValueType
}

type funcImport struct {
	namespace string
	name      string
	typeIdx   uint32
}

type localFunc struct {
	export  string
	typeIdx uint32
	body    []byte
}

// Module accumulates a core wasm module. All imports must be declared
// before the first local function, since imported functions occupy the low
// function indices.
type Module struct {
	types   []funcType
	imports []funcImport
	funcs   []localFunc

	memPages  uint32
	memExport string
}

// New creates an empty module.
func New() *Module {
	return &Module{}
}

func (m *Module) typeIndex(params, results []api.ValueType) uint32 {
	for i, t := range m.types {
		if typesEqual(t.params, params) && typesEqual(t.results, results) {
			return uint32(i)
		}
	}
	m.types = append(m.types, funcType{params: params, results: results})
	return uint32(len(m.types) - 1)
}

func typesEqual(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ImportFunc declares a function import and returns its function index.
func (m *Module) ImportFunc(namespace, name string, params, results []api.ValueType) uint32 {
	m.imports = append(m.imports, funcImport{
		namespace: namespace,
		name:      name,
		typeIdx:   m.typeIndex(params, results),
	})
	return uint32(len(m.imports) - 1)
}

// ExportFunc defines a local function with the given body, exports it under
// name, and returns its function index. The body must end with the end
// opcode; use Body to assemble it.
func (m *Module) ExportFunc(name string, params, results []api.ValueType, body []byte) uint32 {
	m.funcs = append(m.funcs, localFunc{
		export:  name,
		typeIdx: m.typeIndex(params, results),
		body:    body,
	})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Memory declares a linear memory of minPages pages exported under
// exportName.
func (m *Module) Memory(minPages uint32, exportName string) {
	m.memPages = minPages
	m.memExport = exportName
}

func section(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, EncodeULEB128(uint32(len(payload)))...)
	return append(out, payload...)
}

func name(s string) []byte {
	out := EncodeULEB128(uint32(len(s)))
	return append(out, s...)
}

// Build generates the module bytes.
func (m *Module) Build() []byte {
	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	if len(m.types) > 0 {
		var p []byte
		p = append(p, EncodeULEB128(uint32(len(m.types)))...)
		for _, t := range m.types {
			p = append(p, 0x60)
			p = append(p, EncodeULEB128(uint32(len(t.params)))...)
			for _, v := range t.params {
				p = append(p, valType(v))
			}
			p = append(p, EncodeULEB128(uint32(len(t.results)))...)
			for _, v := range t.results {
				p = append(p, valType(v))
			}
		}
		wasm = append(wasm, section(0x01, p)...)
	}

	if len(m.imports) > 0 {
		var p []byte
		p = append(p, EncodeULEB128(uint32(len(m.imports)))...)
		for _, imp := range m.imports {
			p = append(p, name(imp.namespace)...)
			p = append(p, name(imp.name)...)
			p = append(p, 0x00)
			p = append(p, EncodeULEB128(imp.typeIdx)...)
		}
		wasm = append(wasm, section(0x02, p)...)
	}

	if len(m.funcs) > 0 {
		var p []byte
		p = append(p, EncodeULEB128(uint32(len(m.funcs)))...)
		for _, f := range m.funcs {
			p = append(p, EncodeULEB128(f.typeIdx)...)
		}
		wasm = append(wasm, section(0x03, p)...)
	}

	if m.memExport != "" {
		var p []byte
		p = append(p, 0x01, 0x00)
		p = append(p, EncodeULEB128(m.memPages)...)
		wasm = append(wasm, section(0x05, p)...)
	}

	exports := 0
	for _, f := range m.funcs {
		if f.export != "" {
			exports++
		}
	}
	if m.memExport != "" {
		exports++
	}
	if exports > 0 {
		var p []byte
		p = append(p, EncodeULEB128(uint32(exports))...)
		for i, f := range m.funcs {
			if f.export == "" {
				continue
			}
			p = append(p, name(f.export)...)
			p = append(p, 0x00)
			p = append(p, EncodeULEB128(uint32(len(m.imports)+i))...)
		}
		if m.memExport != "" {
			p = append(p, name(m.memExport)...)
			p = append(p, 0x02, 0x00)
		}
		wasm = append(wasm, section(0x07, p)...)
	}

	if len(m.funcs) > 0 {
		var p []byte
		p = append(p, EncodeULEB128(uint32(len(m.funcs)))...)
		for _, f := range m.funcs {
			entry := append([]byte{0x00}, f.body...)
			p = append(p, EncodeULEB128(uint32(len(entry)))...)
			p = append(p, entry...)
		}
		wasm = append(wasm, section(0x0a, p)...)
	}

	return wasm
}
