package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Dir returns the configuration directory path.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, "batteries")
}

// File returns the configuration file path.
func File() string {
	return filepath.Join(Dir(), "config.json")
}

// EnsureDir creates the configuration directory if it doesn't exist.
func EnsureDir() error {
	return os.MkdirAll(Dir(), 0700)
}
