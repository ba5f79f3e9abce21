package config

import "time"

// ClientConfig is the pilotdeck client configuration, stored at
// ~/.pilotdeck/config.yaml.
type ClientConfig struct {
	Version     string            `yaml:"version"`
	Server      ServerConfig      `yaml:"server"`
	Stream      StreamConfig      `yaml:"stream"`
	Bus         BusConfig         `yaml:"bus"`
	Notify      NotifyConfig      `yaml:"notify"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig locates the MoviePilot server.
type ServerConfig struct {
	BaseURL string `yaml:"base_url" env:"PILOTDECK_SERVER_URL"`
}

// StreamConfig controls the server-push connection and its reconnect policy.
type StreamConfig struct {
	Path        string        `yaml:"path" env:"PILOTDECK_STREAM_PATH"`
	BaseDelay   time.Duration `yaml:"base_delay" env:"PILOTDECK_STREAM_BASE_DELAY"`
	MaxDelay    time.Duration `yaml:"max_delay" env:"PILOTDECK_STREAM_MAX_DELAY"`
	MaxAttempts int           `yaml:"max_attempts" env:"PILOTDECK_STREAM_MAX_ATTEMPTS"`
	StableAfter time.Duration `yaml:"stable_after" env:"PILOTDECK_STREAM_STABLE_AFTER"`
}

// BusConfig tunes the event bus.
type BusConfig struct {
	// MaxListeners is the per-topic count above which a leak warning is
	// logged. 0 disables the warning.
	MaxListeners int `yaml:"max_listeners" env:"PILOTDECK_BUS_MAX_LISTENERS"`
}

// NotifyConfig tunes the notification feed.
type NotifyConfig struct {
	Capacity int `yaml:"capacity" env:"PILOTDECK_NOTIFY_CAPACITY"`
}

// CredentialsConfig locates the stored auth token.
type CredentialsConfig struct {
	// File defaults to ~/.pilotdeck/credentials.yaml when empty.
	File string `yaml:"file,omitempty" env:"PILOTDECK_CREDENTIALS_FILE"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"PILOTDECK_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"PILOTDECK_LOG_PRETTY"`
}
