package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tracekit/batteries/internal/config"
)

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Opt in to telemetry reporting",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Opt out of telemetry reporting",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(false)
	},
}

func init() {
	rootCmd.AddCommand(enableCmd, disableCmd)
}

// setEnabled persists the opt-in flag; the send command copies it onto the
// session's runtime enable flag.
func setEnabled(enabled bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg.Enabled = enabled
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	if enabled {
		fmt.Println(lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Render("✓ Telemetry enabled"))
	} else {
		fmt.Println(lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Render("✓ Telemetry disabled"))
	}
	return nil
}
