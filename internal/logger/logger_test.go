package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestImportLeavesGlobalLevelAlone(t *testing.T) {
	// A host application that never configured this library must keep its own
	// zerolog setup; the level is scoped to the library's loggers.
	assert.Equal(t, zerolog.TraceLevel, zerolog.GlobalLevel())
}

func TestInitRaisesLevelToDebug(t *testing.T) {
	prev := root
	t.Cleanup(func() { root = prev })

	Init(false)
	assert.NotEqual(t, zerolog.DebugLevel, New("test").GetLevel())

	Init(true)
	assert.Equal(t, zerolog.DebugLevel, New("test").GetLevel())
	assert.Equal(t, zerolog.TraceLevel, zerolog.GlobalLevel(), "even the debug switch stays scoped to the library")
}

func TestLevelFromEnv(t *testing.T) {
	cases := []struct {
		value    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"DEBUG", zerolog.DebugLevel},
		{"", zerolog.WarnLevel},
		{"verbose", zerolog.WarnLevel},
	}

	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("BATTERIES_LOG", tc.value)
			assert.Equal(t, tc.expected, levelFromEnv())
		})
	}
}
