package config

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/99designs/keyring"
)

const (
	keyringService = "batteries"
	keyringKey     = "collector_api_key"
)

// keyringConfig returns a keyring configuration that also works in
// CGO_ENABLED=0 builds by falling back to an encrypted file backend keyed to
// the machine.
func keyringConfig() keyring.Config {
	// A deterministic password derived from the machine identity lets the
	// file backend work without prompting.
	password := sha256.Sum256([]byte(machineID() + os.Getenv("HOME")))

	return keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,      // macOS (requires CGO)
			keyring.SecretServiceBackend, // Linux (requires CGO)
			keyring.WinCredBackend,       // Windows
			keyring.FileBackend,          // Fallback for all platforms
		},
		KeychainTrustApplication: true,
		FileDir:                  Dir(),
		FilePasswordFunc: func(prompt string) (string, error) {
			return hex.EncodeToString(password[:]), nil
		},
	}
}

// machineID returns a stable identifier for the current machine.
func machineID() string {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil {
			return string(data)
		}
	}

	if hostname, err := os.Hostname(); err == nil {
		return hostname
	}

	return "default-machine-id"
}

// SaveAPIKey stores the collector API key in the OS credential manager. The
// send command attaches it as an x-api-key header on the OTLP connection.
func SaveAPIKey(key string) error {
	ring, err := keyring.Open(keyringConfig())
	if err != nil {
		return err
	}

	return ring.Set(keyring.Item{
		Key:  keyringKey,
		Data: []byte(key),
	})
}

// LoadAPIKey retrieves the collector API key, returning an empty string when
// none is stored.
func LoadAPIKey() (string, error) {
	ring, err := keyring.Open(keyringConfig())
	if err != nil {
		return "", err
	}

	item, err := ring.Get(keyringKey)
	if err != nil {
		if err == keyring.ErrKeyNotFound {
			return "", nil
		}
		return "", err
	}

	return string(item.Data), nil
}

// ClearAPIKey removes the collector API key from the OS credential manager.
func ClearAPIKey() error {
	ring, err := keyring.Open(keyringConfig())
	if err != nil {
		return err
	}

	if err := ring.Remove(keyringKey); err != nil && err != keyring.ErrKeyNotFound {
		return err
	}
	return nil
}
