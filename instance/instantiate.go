package instance

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wasmbridge/wasm-bridge/bridge"
	"github.com/wasmbridge/wasm-bridge/engine"
	"github.com/wasmbridge/wasm-bridge/errors"
	"github.com/wasmbridge/wasm-bridge/pipes"
	"github.com/wasmbridge/wasm-bridge/variant"
)

// linker instantiates one module tree into a fresh runtime. Import
// namespaces resolve by priority: host table entries first, then bridge
// namespaces, then WASI, then sibling modules from the dependency table.
// Siblings are instantiated once and shared across importers; a dependency
// cycle fails instantiation.
type linker struct {
	rt    wazero.Runtime
	store *Store
	cfg   *Config
	host  HostTable
	stdin *pipes.Stdin

	built    map[*engine.Module]api.Module
	nameOf   map[*engine.Module]string
	inflight map[*engine.Module]struct{}
	taken    map[string]struct{}
	closers  []io.Closer
	wasi     bool
}

func newLinker(rt wazero.Runtime, store *Store, cfg *Config, host HostTable) *linker {
	return &linker{
		rt:       rt,
		store:    store,
		cfg:      cfg,
		host:     host,
		built:    make(map[*engine.Module]api.Module),
		nameOf:   make(map[*engine.Module]string),
		inflight: make(map[*engine.Module]struct{}),
		taken:    make(map[string]struct{}),
	}
}

func (l *linker) instantiate(ctx context.Context, m *engine.Module, name string) (api.Module, error) {
	if inst, ok := l.built[m]; ok {
		return inst, nil
	}
	if _, ok := l.inflight[m]; ok {
		return nil, errors.Cycle(m.Name())
	}
	if err := m.Core(); err != nil {
		return nil, err
	}
	l.inflight[m] = struct{}{}
	defer delete(l.inflight, m)

	for _, ns := range importNamespaces(m) {
		if err := l.resolveNamespace(ctx, m, ns); err != nil {
			return nil, err
		}
	}

	compiled, err := l.rt.CompileModule(ctx, m.Bytes())
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLink, errors.KindInvalidInput, err, "compile "+m.Name())
	}
	inst, err := l.rt.InstantiateModule(ctx, compiled, l.moduleConfig(name))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLink, errors.KindInvalidInput, err, "instantiate "+m.Name())
	}
	l.built[m] = inst
	l.nameOf[m] = name
	l.taken[name] = struct{}{}
	Logger().Debug("instantiated module", zap.String("module", m.Name()), zap.String("as", name))
	return inst, nil
}

// importNamespaces returns a module's imported namespaces in first-seen
// order.
func importNamespaces(m *engine.Module) []string {
	var order []string
	seen := make(map[string]struct{})
	for _, imp := range m.Imports() {
		if _, ok := seen[imp.Namespace]; ok {
			continue
		}
		seen[imp.Namespace] = struct{}{}
		order = append(order, imp.Namespace)
	}
	return order
}

func (l *linker) resolveNamespace(ctx context.Context, m *engine.Module, ns string) error {
	hostNS := l.host[ns]
	bridged := l.bridgeFuncs(ns)
	dep, hasDep := m.Dependency(ns)

	if _, done := l.taken[ns]; done {
		// The runtime cannot bind one namespace name to two providers.
		if hasDep && l.nameOf[dep] != ns {
			return errors.New(errors.PhaseLink, errors.KindInvalidInput).
				Detail("namespace %q is already bound to a different provider", ns).
				Build()
		}
		return nil
	}

	// Whole-namespace WASI, unless host entries shadow it.
	if len(hostNS) == 0 && bridged == nil && ns == wasi_snapshot_preview1.ModuleName {
		if !l.cfg.WASI {
			return errors.UnknownImport(ns, firstImport(m, ns))
		}
		if !l.wasi {
			if _, err := wasi_snapshot_preview1.Instantiate(ctx, l.rt); err != nil {
				return errors.Wrap(errors.PhaseLink, errors.KindInvalidInput, err, "instantiate wasi")
			}
			l.wasi = true
			l.taken[ns] = struct{}{}
		}
		return nil
	}

	// Pure sibling namespace: instantiate the provider under the
	// namespace name so its exports link directly. A provider already
	// instantiated under another name is aliased through trampolines.
	if len(hostNS) == 0 && bridged == nil && hasDep {
		inst, alreadyBuilt := l.built[dep]
		if !alreadyBuilt {
			var err error
			if inst, err = l.instantiate(ctx, dep, ns); err != nil {
				return err
			}
		}
		for _, imp := range m.Imports() {
			if imp.Namespace != ns {
				continue
			}
			if inst.ExportedFunction(imp.Name) == nil {
				return errors.UnknownImport(ns, imp.Name)
			}
		}
		if alreadyBuilt {
			return l.alias(ctx, m, ns, inst)
		}
		return nil
	}

	// Mixed namespace: build a synthetic host module resolving each name
	// individually, trampolining into the sibling where needed.
	b := l.rt.NewHostModuleBuilder(ns)

	// Host entries may stub individual WASI functions. Seed the builder with
	// the full WASI set first; per-name exports below override it, and any
	// import the table does not stub keeps its stock implementation.
	wasiMixed := ns == wasi_snapshot_preview1.ModuleName && l.cfg.WASI
	if wasiMixed {
		wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(b)
	}

	exported := make(map[string]struct{})
	for _, imp := range m.Imports() {
		if imp.Namespace != ns {
			continue
		}
		if _, done := exported[imp.Name]; done {
			continue
		}
		exported[imp.Name] = struct{}{}

		if hf, ok := hostNS[imp.Name]; ok {
			b.NewFunctionBuilder().
				WithGoModuleFunction(l.hostAdapter(hf), hf.Params, hf.Results).
				Export(imp.Name)
			continue
		}
		if bf, ok := bridged[imp.Name]; ok {
			b.NewFunctionBuilder().
				WithGoModuleFunction(bf.Fn, bf.Params, bf.Results).
				Export(imp.Name)
			continue
		}
		if hasDep {
			sib, err := l.instantiate(ctx, dep, l.pickName(dep.Name()))
			if err != nil {
				return err
			}
			fn := sib.ExportedFunction(imp.Name)
			if fn == nil {
				return errors.UnknownImport(ns, imp.Name)
			}
			b.NewFunctionBuilder().
				WithGoModuleFunction(trampoline(fn, len(imp.Params)), imp.Params, imp.Results).
				Export(imp.Name)
			continue
		}
		if wasiMixed {
			// Covered by the seeded WASI exports.
			continue
		}
		return errors.UnknownImport(ns, imp.Name)
	}
	if _, err := b.Instantiate(ctx); err != nil {
		return errors.Wrap(errors.PhaseLink, errors.KindInvalidInput, err, "instantiate namespace "+ns)
	}
	l.taken[ns] = struct{}{}
	return nil
}

// alias exposes an already instantiated provider's exports under a second
// namespace name.
func (l *linker) alias(ctx context.Context, m *engine.Module, ns string, provider api.Module) error {
	b := l.rt.NewHostModuleBuilder(ns)
	seen := make(map[string]struct{})
	for _, imp := range m.Imports() {
		if imp.Namespace != ns {
			continue
		}
		if _, done := seen[imp.Name]; done {
			continue
		}
		seen[imp.Name] = struct{}{}
		fn := provider.ExportedFunction(imp.Name)
		if fn == nil {
			return errors.UnknownImport(ns, imp.Name)
		}
		b.NewFunctionBuilder().
			WithGoModuleFunction(trampoline(fn, len(imp.Params)), imp.Params, imp.Results).
			Export(imp.Name)
	}
	if _, err := b.Instantiate(ctx); err != nil {
		return errors.Wrap(errors.PhaseLink, errors.KindInvalidInput, err, "alias namespace "+ns)
	}
	l.taken[ns] = struct{}{}
	return nil
}

// bridgeFuncs returns the bridge function set reserved for ns under the
// configured binding mode, or nil.
func (l *linker) bridgeFuncs(ns string) map[string]bridge.Func {
	switch {
	case ns == bridge.RegistryNamespace && l.cfg.Bind == BindRegistry:
		return bridge.RegistryFuncs(l.store)
	case ns == bridge.ExternNamespace && l.cfg.Bind == BindNative:
		return bridge.ExternFuncs(l.store)
	}
	return nil
}

func (l *linker) pickName(base string) string {
	if _, taken := l.taken[base]; !taken {
		return base
	}
	for i := 2; ; i++ {
		name := fmt.Sprintf("%s#%d", base, i)
		if _, taken := l.taken[name]; !taken {
			return name
		}
	}
}

func firstImport(m *engine.Module, ns string) string {
	for _, imp := range m.Imports() {
		if imp.Namespace == ns {
			return imp.Name
		}
	}
	return ""
}

// hostAdapter wraps a host callback as a guest-importable function. The
// execution lock is lent out around the callback so it may re-enter the
// instance. A pending error signal set during the callback aborts the
// calling guest, as does a callback error.
func (l *linker) hostAdapter(hf HostFunc) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		args := make([]variant.Variant, len(hf.Params))
		for i, pt := range hf.Params {
			v, err := variant.FromRaw(l.store.refTable(), pt, stack[i])
			if err != nil {
				panic(err)
			}
			args[i] = v
		}

		var out []variant.Variant
		err := l.store.Release(func() error {
			var err error
			out, err = hf.Fn(args)
			return err
		})
		if msg, ok := l.store.takeErrorSignal(); ok {
			panic(errors.New(errors.PhaseHost, errors.KindInterrupted).
				Detail("%s", msg).
				Build())
		}
		if err != nil {
			panic(err)
		}

		if len(out) != len(hf.Results) {
			panic(errors.TypeMismatch(errors.PhaseHost,
				fmt.Sprintf("%d results", len(hf.Results)), out))
		}
		for i, rt := range hf.Results {
			raw, err := variant.ToRaw(l.store.refTable(), rt, out[i])
			if err != nil {
				panic(err)
			}
			stack[i] = raw
		}
	}
}

// trampoline forwards a synthetic host export to a sibling module's
// function, for namespaces that mix host entries with sibling exports.
func trampoline(fn api.Function, nparams int) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		params := make([]uint64, nparams)
		copy(params, stack)
		results, err := fn.Call(ctx, params...)
		if err != nil {
			panic(err)
		}
		copy(stack, results)
	}
}

func (l *linker) moduleConfig(name string) wazero.ModuleConfig {
	cfg := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions()

	if !l.cfg.WASI {
		return cfg
	}

	cfg = cfg.WithArgs(append([]string{name}, l.cfg.Args...)...)
	for k, v := range l.cfg.Env {
		cfg = cfg.WithEnv(k, v)
	}

	switch l.cfg.StdinMode {
	case StdinBuffer:
		cfg = cfg.WithStdin(bytes.NewReader(l.cfg.StdinData))
	case StdinInstance:
		if l.stdin == nil {
			l.stdin = pipes.NewStdin(l.cfg.OnStdinRequest)
		}
		cfg = cfg.WithStdin(l.stdin)
	}
	if w := l.outputPipe(l.cfg.OnStdout, l.cfg.StdoutBuffering); w != nil {
		cfg = cfg.WithStdout(w)
	}
	if w := l.outputPipe(l.cfg.OnStderr, l.cfg.StderrBuffering); w != nil {
		cfg = cfg.WithStderr(w)
	}
	return cfg
}

func (l *linker) outputPipe(sink func([]byte), buf Buffering) io.Writer {
	if sink == nil {
		return nil
	}
	switch buf {
	case LineBuffered:
		w := pipes.NewLineWriter(sink)
		l.closers = append(l.closers, w)
		return w
	case BlockBuffered:
		w := pipes.NewBlockWriter(0, sink)
		l.closers = append(l.closers, w)
		return w
	default:
		return pipes.NewUnbufferedWriter(sink)
	}
}
