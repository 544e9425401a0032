package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "luthien",
	Short: "Luthien - policy-enforcing LLM proxy",
	Long: `Luthien is a policy-enforcing proxy for LLM API traffic.

It exposes an OpenAI-compatible API and routes requests to upstream
providers (OpenAI, Anthropic), running every response through a
configurable policy before output reaches the client:
  - Streaming policy execution with per-chunk hooks
  - Tool call vetting before fragments reach the client
  - Content redaction and output rate limiting
  - Hot policy reload without dropping in-flight streams`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
