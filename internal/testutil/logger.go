package testutil

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

// EnvTestLog turns on component logging in tests when set to any value.
const EnvTestLog = "PILOTDECK_TEST_LOG"

// NewTestLogger returns a disabled logger, or one writing to t.Log when
// PILOTDECK_TEST_LOG is set. Background goroutines must be stopped before
// the test ends when output is enabled.
func NewTestLogger(t testing.TB) zerolog.Logger {
	t.Helper()
	if os.Getenv(EnvTestLog) == "" {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
}
