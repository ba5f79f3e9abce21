package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Flag names bound by BindFlags.
const (
	FlagConfig   = "config"
	FlagServer   = "server"
	FlagLogLevel = "log-level"
	FlagLogJSON  = "log-json"
)

// BindFlags registers the config-overriding flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfig, "", "config file (default ~/.pilotdeck/config.yaml, or $PILOTDECK_CONFIG)")
	fs.String(FlagServer, "", "MoviePilot server URL, e.g. https://movie-pilot.example")
	fs.String(FlagLogLevel, "", "log level (trace, debug, info, warn, error, disabled)")
	fs.Bool(FlagLogJSON, false, "log JSON instead of console output")
}

// ApplyFlags copies flags the user set explicitly into cfg. Flags left at
// their defaults do not override lower layers.
func ApplyFlags(cfg *ClientConfig, fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}

	if f := fs.Lookup(FlagServer); f != nil && f.Changed {
		cfg.Server.BaseURL = f.Value.String()
	}
	if f := fs.Lookup(FlagLogLevel); f != nil && f.Changed {
		cfg.Logging.Level = f.Value.String()
	}
	if f := fs.Lookup(FlagLogJSON); f != nil && f.Changed {
		asJSON, err := fs.GetBool(FlagLogJSON)
		if err != nil {
			return fmt.Errorf("invalid --%s: %w", FlagLogJSON, err)
		}
		cfg.Logging.Pretty = !asJSON
	}
	return nil
}

// ConfigPathFlag returns the value of --config if it was set.
func ConfigPathFlag(fs *pflag.FlagSet) string {
	if fs == nil {
		return ""
	}
	if f := fs.Lookup(FlagConfig); f != nil && f.Changed {
		return f.Value.String()
	}
	return ""
}
