package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "eventbus",
	Short: "EventBus server - security-telemetry ingestion and routing",
	Long: `eventbus runs the EventBus server: the mTLS-terminating ingestion
point that verifies, deduplicates, and admits signed telemetry envelopes
published by Agents, then hands them off to a downstream sink.`,
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
