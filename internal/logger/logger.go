// Package logger provides the library's zerolog setup.
//
// Telemetry failures are logged at the battery boundary and never propagate
// to the host application, so this is the only place the library ever speaks
// up. By default only warnings and errors are emitted; the BATTERIES_LOG
// environment variable ("debug", "info", "warn", "error", "off") adjusts the
// level for troubleshooting. The level is scoped to the library's own
// loggers; the host process's global zerolog configuration is never touched.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var root zerolog.Logger

func init() {
	root = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(levelFromEnv()).
		With().
		Timestamp().
		Str("app", "batteries").
		Logger()
}

// Init raises the level chosen from the environment to debug. The smoke CLI
// calls it from the root command's --debug flag before any battery is set up.
func Init(debug bool) {
	if debug {
		root = root.Level(zerolog.DebugLevel)
	}
}

// New returns a logger tagged with the originating component (one per
// battery).
func New(component string) zerolog.Logger {
	return root.With().Str("component", component).Logger()
}

// levelFromEnv maps BATTERIES_LOG to a zerolog level, defaulting to warn: a
// library embedded in someone else's process should stay quiet.
func levelFromEnv() zerolog.Level {
	switch strings.ToLower(os.Getenv("BATTERIES_LOG")) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.WarnLevel
	}
}
