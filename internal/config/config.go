// Package config stores the smoke CLI's configuration: which telemetry sinks
// to attach, the service identity to report, and the persisted opt-in flag.
// Settings live in a JSON file under the XDG config home, with BATTERIES_*
// environment variables taking precedence for one-off runs.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"

	"github.com/tracekit/batteries/internal/version"
)

// envPrefix is shared by every environment override (BATTERIES_SERVICE,
// BATTERIES_MEDAMA_SERVER, ...).
const envPrefix = "batteries"

// Config drives which batteries the smoke CLI attaches and how they are
// configured.
type Config struct {
	Service      string `json:"service" envconfig:"SERVICE"`
	Version      string `json:"version" envconfig:"VERSION"`
	Environment  string `json:"environment" envconfig:"ENVIRONMENT"`
	MedamaServer string `json:"medama_server" envconfig:"MEDAMA_SERVER"`
	Referrer     string `json:"referrer" envconfig:"REFERRER"`
	OTLPEndpoint string `json:"otlp_endpoint" envconfig:"OTLP_ENDPOINT"`
	OTLPProtocol string `json:"otlp_protocol" envconfig:"OTLP_PROTOCOL"`
	SentryDSN    string `json:"sentry_dsn" envconfig:"SENTRY_DSN"`
	Enabled      bool   `json:"enabled" envconfig:"ENABLED"`
}

// Default returns the configuration used when no config file exists yet.
func Default() *Config {
	return &Config{
		Service: "batteries-smoke",
		Version: version.Version,
		Enabled: true,
	}
}

// Load reads the config file (falling back to defaults when absent) and then
// applies environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(File())
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", File(), err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to disk atomically (write to a temp file,
// then rename) so a crash mid-write never leaves a corrupt config behind.
func (c *Config) Save() error {
	if err := EnsureDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	tempFile := File() + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tempFile, File()); err != nil {
		os.Remove(tempFile)
		return err
	}

	return nil
}
