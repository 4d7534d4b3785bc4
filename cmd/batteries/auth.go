package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tracekit/batteries/internal/config"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the collector API key",
}

var authSetCmd = &cobra.Command{
	Use:     "set <api-key>",
	Short:   "Store the collector API key in the OS credential manager",
	Example: "  batteries auth set hcaik_01j8...  # Honeycomb, Grafana Cloud, etc.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SaveAPIKey(args[0]); err != nil {
			return fmt.Errorf("failed to store API key: %w", err)
		}
		fmt.Println("✓ API key stored")
		return nil
	},
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored collector API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ClearAPIKey(); err != nil {
			return fmt.Errorf("failed to clear API key: %w", err)
		}
		fmt.Println("✓ API key cleared")
		return nil
	},
}

var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show whether a collector API key is stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := config.LoadAPIKey()
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		if key == "" {
			fmt.Println("✗ No API key stored")
			return nil
		}
		fmt.Printf("✓ API key stored: %s\n", mask(key))
		return nil
	},
}

func init() {
	authCmd.AddCommand(authSetCmd, authClearCmd, authShowCmd)
	rootCmd.AddCommand(authCmd)
}

// mask keeps just enough of the key to recognize it.
func mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
