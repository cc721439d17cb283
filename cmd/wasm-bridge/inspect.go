package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wasmbridge/wasm-bridge/engine"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <module.wasm>",
	Short: "Print a module's imports and exports",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	wasm, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	module, err := engine.Global().Load(context.Background(), moduleName(args[0]), wasm, nil)
	if err != nil {
		return err
	}

	if module.Kind() == engine.KindComponent {
		fmt.Fprintln(cmd.OutOrStdout(), "component-typed module (not instantiable)")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "imports:")
	for _, imp := range module.Imports() {
		fmt.Fprintf(out, "  %s.%s (%d params, %d results)\n",
			imp.Namespace, imp.Name, len(imp.Params), len(imp.Results))
	}

	exports := module.ExportNames()
	sort.Strings(exports)
	fmt.Fprintln(out, "exports:")
	for _, name := range exports {
		fmt.Fprintf(out, "  %s\n", name)
	}
	return nil
}
