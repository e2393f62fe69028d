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
	Use:   "prismgate",
	Short: "Prismgate - reverse proxy for LLM provider APIs",
	Long: `Prismgate is a configurable reverse proxy fronting LLM provider APIs.

It maps local endpoints onto OpenAI-compatible, Anthropic, Google Gemini,
and relay upstreams, providing:
  - Per-route header forwarding, injection, and credential pinning
  - Streaming (SSE) and buffered response relay
  - Protocol conversion for upstreams without a Responses API
  - Retry with exponential backoff for transient failures`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults to the built-in endpoint table)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
