package config

import (
	"time"

	"github.com/pilotdeck/pilotdeck/internal/backoff"
	"github.com/pilotdeck/pilotdeck/internal/eventbus"
	"github.com/pilotdeck/pilotdeck/internal/notify"
	"github.com/pilotdeck/pilotdeck/internal/stream"
)

const (
	// SchemaVersion is written to new config files.
	SchemaVersion = "1"

	// DefaultDir is the per-user directory under $HOME.
	DefaultDir = ".pilotdeck"

	// ConfigFile is the config file name inside DefaultDir.
	ConfigFile = "config.yaml"

	// DefaultServerURL is used until the user configures a server.
	DefaultServerURL = "http://localhost:3000"
)

// DefaultClientConfig returns the built-in defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Version: SchemaVersion,
		Server: ServerConfig{
			BaseURL: DefaultServerURL,
		},
		Stream: StreamConfig{
			Path:        stream.DefaultPath,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			MaxAttempts: 5,
			StableAfter: 30 * time.Second,
		},
		Bus: BusConfig{
			MaxListeners: eventbus.DefaultMaxListeners,
		},
		Notify: NotifyConfig{
			Capacity: notify.DefaultCapacity,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// StreamManagerConfig converts the stream section for stream.NewManager.
func (c *ClientConfig) StreamManagerConfig() stream.Config {
	cfg := stream.DefaultConfig(c.Server.BaseURL)
	cfg.Path = c.Stream.Path
	cfg.Backoff = backoff.Config{
		Initial:     c.Stream.BaseDelay,
		Max:         c.Stream.MaxDelay,
		MaxAttempts: c.Stream.MaxAttempts,
	}
	cfg.StableAfter = c.Stream.StableAfter
	return cfg
}
