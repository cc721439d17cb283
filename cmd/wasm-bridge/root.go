package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wasmbridge/wasm-bridge/engine"
	"github.com/wasmbridge/wasm-bridge/instance"
)

var rootCmd = &cobra.Command{
	Use:   "wasm-bridge",
	Short: "Run and inspect wasm guest modules",
	Long: `wasm-bridge - Embed wasm guest modules with host value bridging.

Load core wasm modules, link them against sibling modules, WASI and the
host value bridge, and invoke their exports from the command line.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if !verbose {
			return
		}
		logger, err := zap.NewDevelopment()
		if err != nil {
			return
		}
		engine.SetLogger(logger.Named("engine"))
		instance.SetLogger(logger.Named("instance"))
	}
}
