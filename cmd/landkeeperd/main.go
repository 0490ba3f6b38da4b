// Command landkeeperd runs a demo LandKeeper host process: one realm, one
// registered land type, a WebSocket transport, a Prometheus metrics
// endpoint and a schema introspection endpoint, all wired from
// environment configuration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "landkeeperd",
		Short: "Run a LandKeeper host process",
		Long: `landkeeperd hosts a reactive real-time multiplayer state engine.

It owns a Realm of land types, each managed by one Manager that creates
and ticks Land instances on demand, and exposes them over a WebSocket
transport with snapshot/diff sync, schema introspection, and Prometheus
metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
