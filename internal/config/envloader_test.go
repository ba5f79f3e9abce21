package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_ClientConfig(t *testing.T) {
	t.Setenv("PILOTDECK_SERVER_URL", "https://env.example")
	t.Setenv("PILOTDECK_STREAM_BASE_DELAY", "250ms")
	t.Setenv("PILOTDECK_STREAM_MAX_ATTEMPTS", "9")
	t.Setenv("PILOTDECK_LOG_PRETTY", "false")
	t.Setenv("PILOTDECK_BUS_MAX_LISTENERS", "0")

	cfg := DefaultClientConfig()
	require.NoError(t, LoadFromEnv(cfg))

	assert.Equal(t, "https://env.example", cfg.Server.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Stream.BaseDelay)
	assert.Equal(t, 9, cfg.Stream.MaxAttempts)
	assert.False(t, cfg.Logging.Pretty)
	assert.Equal(t, 0, cfg.Bus.MaxListeners)
	assert.Equal(t, 30*time.Second, cfg.Stream.MaxDelay, "unset variables keep their value")
}

func TestLoadFromEnv_EmptyIgnored(t *testing.T) {
	t.Setenv("PILOTDECK_SERVER_URL", "")

	cfg := DefaultClientConfig()
	require.NoError(t, LoadFromEnv(cfg))
	assert.Equal(t, DefaultServerURL, cfg.Server.BaseURL)
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		env   string
		value string
	}{
		{"PILOTDECK_STREAM_BASE_DELAY", "soon"},
		{"PILOTDECK_STREAM_MAX_ATTEMPTS", "many"},
		{"PILOTDECK_LOG_PRETTY", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			err := LoadFromEnv(DefaultClientConfig())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.env)
		})
	}
}

func TestLoadFromEnv_OtherTypes(t *testing.T) {
	type nested struct {
		Ratio float64 `env:"T_RATIO"`
		Port  uint16  `env:"T_PORT"`
	}
	type sample struct {
		Hosts  []string `env:"T_HOSTS"`
		Nested nested
		hidden string `env:"T_HIDDEN"`
	}
	t.Setenv("T_HOSTS", "a, b ,c")
	t.Setenv("T_RATIO", "0.25")
	t.Setenv("T_PORT", "8080")
	t.Setenv("T_HIDDEN", "x")

	var s sample
	require.NoError(t, LoadFromEnv(&s))

	assert.Equal(t, []string{"a", "b", "c"}, s.Hosts)
	assert.InDelta(t, 0.25, s.Nested.Ratio, 0.0001)
	assert.Equal(t, uint16(8080), s.Nested.Port)
	assert.Empty(t, s.hidden)
}

func TestLoadFromEnv_NonStruct(t *testing.T) {
	n := 3
	assert.NoError(t, LoadFromEnv(&n))
	assert.NoError(t, LoadFromEnv((*ClientConfig)(nil)))
}
