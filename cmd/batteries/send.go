package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tracekit/batteries"
	"github.com/tracekit/batteries/internal/config"
	"github.com/tracekit/batteries/medama"
	"github.com/tracekit/batteries/opentelemetry"
	"github.com/tracekit/batteries/sentry"
)

var (
	sendPages []string
	sendError string
	sendDwell time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Build a session from the local configuration and replay events",
	Example: `  batteries send --page /home --page /about   # Two page views
  batteries send --page /home --error "boom"  # Page view plus an error report`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringArrayVar(&sendPages, "page", nil, "Page view to record (repeatable)")
	sendCmd.Flags().StringVar(&sendError, "error", "", "Error message to report")
	sendCmd.Flags().DurationVar(&sendDwell, "dwell", 250*time.Millisecond, "Dwell time between page views")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	builders, err := buildBatteries(cfg)
	if err != nil {
		return err
	}

	md := batteries.New(cfg.Service, cfg.Version)
	if cfg.Environment != "" {
		md = md.WithContext("environment", cfg.Environment)
	}

	session := md.WithBattery(builders[0])
	for _, builder := range builders[1:] {
		session = session.WithBattery(builder)
	}
	session.Enabled().Store(cfg.Enabled)

	pageStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	for _, page := range sendPages {
		session.RecordNewPage(page)
		fmt.Println(pageStyle.Render("→ " + page))
		time.Sleep(sendDwell)
	}

	if sendError != "" {
		session.RecordError(errors.New(sendError))
		fmt.Println(lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Render("⚠ reported: " + sendError))
	}

	start := time.Now()
	session.Shutdown()

	fmt.Println(lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Render(fmt.Sprintf("✓ Session flushed in %v", time.Since(start).Round(time.Millisecond))))
	return nil
}

// buildBatteries assembles one builder per configured sink, in a stable
// order: analytics, tracing, error reporting.
func buildBatteries(cfg *config.Config) ([]batteries.BatteryBuilder, error) {
	var builders []batteries.BatteryBuilder

	if cfg.MedamaServer != "" {
		builders = append(builders, medama.New(cfg.MedamaServer).WithReferrer(cfg.Referrer))
	}

	if cfg.OTLPEndpoint != "" {
		builder := opentelemetry.New(cfg.OTLPEndpoint)
		if cfg.OTLPProtocol != "" {
			builder = builder.WithProtocol(opentelemetry.Protocol(cfg.OTLPProtocol))
		}
		if key, err := config.LoadAPIKey(); err == nil && key != "" {
			builder = builder.WithHeader("x-api-key", key)
		}
		builders = append(builders, builder)
	}

	if cfg.SentryDSN != "" {
		builders = append(builders, sentry.New(cfg.SentryDSN).WithEnvironment(cfg.Environment))
	}

	if len(builders) == 0 {
		return nil, errors.New("no telemetry sinks configured; set medama_server, otlp_endpoint or sentry_dsn (or the matching BATTERIES_* variables)")
	}

	return builders, nil
}
