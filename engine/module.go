package engine

import (
	"context"
	"encoding/binary"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wasmbridge/wasm-bridge/errors"
)

// ModuleKind tags a loaded module's binary format.
type ModuleKind uint8

const (
	KindCore ModuleKind = iota
	KindComponent
)

// Import is one declared function import of a module.
type Import struct {
	Namespace string
	Name      string
	Params    []api.ValueType
	Results   []api.ValueType
}

// Module is an immutable, validated guest code unit together with its
// declared interface and its namespace-to-provider dependency table. The
// dependency table is fixed at load time, not at instantiation time.
type Module struct {
	name     string
	kind     ModuleKind
	bytes    []byte
	compiled wazero.CompiledModule
	imports  []Import
	exports  map[string]struct{}
	deps     map[string]*Module
}

// Load compiles and validates wasm, recording its import/export interface.
// deps maps an imported namespace to the module that provides it; providers
// must already be loaded.
func (e *Engine) Load(ctx context.Context, name string, wasm []byte, deps map[string]*Module) (*Module, error) {
	m := &Module{
		name:    name,
		bytes:   wasm,
		exports: make(map[string]struct{}),
		deps:    deps,
	}

	if IsComponent(wasm) {
		m.kind = KindComponent
		Logger().Debug("loaded component-typed module", zap.String("module", name))
		return m, nil
	}

	compiled, err := e.metaRT.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "compile module "+name)
	}
	m.compiled = compiled

	for _, def := range compiled.ImportedFunctions() {
		ns, n, ok := def.Import()
		if !ok {
			continue
		}
		m.imports = append(m.imports, Import{
			Namespace: ns,
			Name:      n,
			Params:    def.ParamTypes(),
			Results:   def.ResultTypes(),
		})
	}
	for n := range compiled.ExportedFunctions() {
		m.exports[n] = struct{}{}
	}

	Logger().Debug("loaded module",
		zap.String("module", name),
		zap.Int("imports", len(m.imports)),
		zap.Int("exports", len(m.exports)))
	return m, nil
}

// IsComponent reports whether wasm carries the component-model layer tag
// rather than the core module version.
func IsComponent(wasm []byte) bool {
	if len(wasm) < 8 {
		return false
	}
	if wasm[0] != 0x00 || wasm[1] != 0x61 || wasm[2] != 0x73 || wasm[3] != 0x6D {
		return false
	}
	return binary.LittleEndian.Uint32(wasm[4:8]) > 1
}

// Name returns the module's load-time name.
func (m *Module) Name() string { return m.name }

// Kind returns the module's binary format tag.
func (m *Module) Kind() ModuleKind { return m.kind }

// Imports returns the declared function imports.
func (m *Module) Imports() []Import { return m.imports }

// HasExport reports whether the module declares a function export.
func (m *Module) HasExport(name string) bool {
	_, ok := m.exports[name]
	return ok
}

// ExportNames returns the declared function export names.
func (m *Module) ExportNames() []string {
	names := make([]string, 0, len(m.exports))
	for n := range m.exports {
		names = append(names, n)
	}
	return names
}

// Dependency returns the provider module for an imported namespace.
func (m *Module) Dependency(namespace string) (*Module, bool) {
	dep, ok := m.deps[namespace]
	return dep, ok
}

// Bytes returns the module's binary. The caller must not mutate it.
func (m *Module) Bytes() []byte { return m.bytes }

// Core returns an error unless the module is a core module.
func (m *Module) Core() error {
	if m.kind != KindCore {
		return errors.ComponentMismatch(errors.PhaseLink)
	}
	return nil
}

// Close releases the compiled code.
func (m *Module) Close(ctx context.Context) error {
	if m.compiled == nil {
		return nil
	}
	return m.compiled.Close(ctx)
}
