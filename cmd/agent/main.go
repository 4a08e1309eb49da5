package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "eventbus-agent",
	Short: "EventBus Agent - host telemetry collection and shipment",
	Long: `eventbus-agent runs the Agent Core: it polls every probe on one shared
collection ticker, validates and signs the events they produce into a local
write-ahead log, and drains that log to the EventBus over an mTLS
connection guarded by a circuit breaker.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
