package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wasmbridge/wasm-bridge/engine"
	"github.com/wasmbridge/wasm-bridge/instance"
	"github.com/wasmbridge/wasm-bridge/variant"
)

var runCmd = &cobra.Command{
	Use:   "run <module.wasm> [args...]",
	Short: "Instantiate a module and invoke an export",
	Long: `Instantiate a wasm module and invoke one of its exports.

Sibling modules are linked with --link namespace=path; the namespace must
match what the main module imports. Remaining arguments are passed to the
invoked export, parsed as integers or floats.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSlice("link", nil, "Link sibling module namespace=path (repeatable)")
	runCmd.Flags().String("invoke", "_start", "Export to invoke")
	runCmd.Flags().Bool("wasi", false, "Provide wasi_snapshot_preview1")
	runCmd.Flags().String("bind", "none", "Value binding: none, registry, native")
	runCmd.Flags().StringSlice("deny", nil, "Deny a bridge operation (repeatable)")
	runCmd.Flags().Uint64("max-memory", 0, "Memory growth limit in bytes (0 = unlimited)")
	runCmd.Flags().Uint64("epoch-ticks", 0, "Interrupt calls after this many epoch ticks")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	eng := engine.Global()

	links, _ := cmd.Flags().GetStringSlice("link")
	deps := make(map[string]*engine.Module)
	for _, spec := range links {
		ns, path, ok := strings.Cut(spec, "=")
		if !ok {
			return fmt.Errorf("invalid link spec %q (expected namespace=path)", spec)
		}
		wasm, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		dep, err := eng.Load(ctx, ns, wasm, nil)
		if err != nil {
			return err
		}
		deps[ns] = dep
	}

	wasm, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	module, err := eng.Load(ctx, moduleName(args[0]), wasm, deps)
	if err != nil {
		return err
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	inst, err := instance.Instantiate(ctx, eng, module, nil, cfg)
	if err != nil {
		return err
	}
	defer inst.Close(ctx)

	invoke, _ := cmd.Flags().GetString("invoke")
	callArgs, err := parseCallArgs(args[1:])
	if err != nil {
		return err
	}
	results, err := inst.Call(ctx, invoke, callArgs...)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintln(cmd.OutOrStdout(), r)
	}
	return nil
}

func buildConfig(cmd *cobra.Command) (*instance.Config, error) {
	cfg := instance.DefaultConfig()

	bind, _ := cmd.Flags().GetString("bind")
	switch bind {
	case "", "none":
	case "registry":
		cfg.Bind = instance.BindRegistry
	case "native":
		cfg.Bind = instance.BindNative
	default:
		return nil, fmt.Errorf("unknown binding %q: use none, registry or native", bind)
	}

	if maxMem, _ := cmd.Flags().GetUint64("max-memory"); maxMem > 0 {
		cfg.MaxMemory = maxMem
	}
	cfg.EpochTicks, _ = cmd.Flags().GetUint64("epoch-ticks")
	cfg.DeniedOps, _ = cmd.Flags().GetStringSlice("deny")

	if wasi, _ := cmd.Flags().GetBool("wasi"); wasi {
		cfg.WASI = true
		cfg.OnStdout = func(b []byte) { os.Stdout.Write(b) }
		cfg.OnStderr = func(b []byte) { os.Stderr.Write(b) }
	}
	return cfg, nil
}

func moduleName(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".wasm")
}

func parseCallArgs(raw []string) ([]variant.Variant, error) {
	out := make([]variant.Variant, 0, len(raw))
	for _, a := range raw {
		if n, err := strconv.ParseInt(a, 0, 64); err == nil {
			out = append(out, n)
			continue
		}
		if f, err := strconv.ParseFloat(a, 64); err == nil {
			out = append(out, f)
			continue
		}
		return nil, fmt.Errorf("argument %q is not a number", a)
	}
	return out, nil
}
