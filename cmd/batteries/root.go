package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tracekit/batteries/internal/logger"
)

var (
	// Global flags
	debugMode bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "batteries",
	Short: "Smoke-test tool for the batteries telemetry library",
	Example: `  batteries send --page /home --page /about   # Replay a browsing session
  batteries disable                           # Opt out of telemetry`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(debugMode)
	},
	// Enable command suggestions for typos
	SuggestionsMinimumDistance: 2,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
