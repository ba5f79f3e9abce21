// Package config loads and saves the pilotdeck client configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "PILOTDECK_CONFIG"

// Loader resolves the config file location and reads and writes it.
type Loader struct {
	path string
}

// NewLoader creates a loader. The config file is resolved in this order:
//  1. explicit path (the --config flag).
//  2. PILOTDECK_CONFIG environment variable.
//  3. ~/.pilotdeck/config.yaml.
//  4. /tmp/pilotdeck-fallback/config.yaml when there is no home directory.
func NewLoader(explicitPath string) *Loader {
	if explicitPath != "" {
		return &Loader{path: explicitPath}
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return &Loader{path: p}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		// Config files won't exist here, so Load returns defaults + env.
		home = filepath.Join(os.TempDir(), "pilotdeck-fallback")
	}
	return &Loader{path: filepath.Join(home, DefaultDir, ConfigFile)}
}

// Path returns the config file path.
func (l *Loader) Path() string {
	return l.path
}

// Dir returns the directory holding the config file.
func (l *Loader) Dir() string {
	return filepath.Dir(l.path)
}

// Load returns the effective configuration for the given flag set.
func (l *Loader) Load(fs *pflag.FlagSet) (*ClientConfig, error) {
	return NewLayeredLoader().Load(l.path, fs)
}

// LoadFile returns defaults overlaid with the config file only, which is
// what Save should write back.
func (l *Loader) LoadFile() (*ClientConfig, error) {
	loader := NewLayeredLoader()
	loader.DisableLayer(LayerEnv)
	loader.DisableLayer(LayerFlags)
	return loader.Load(l.path, nil)
}

// Save writes cfg to the config file.
func (l *Loader) Save(cfg *ClientConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	//nolint:gosec // G301: directory needs standard permissions for traversal
	if err := os.MkdirAll(l.Dir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	//nolint:gosec // G306: the config holds no secrets, the token lives in the credentials file
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// CredentialsPath returns the configured credentials file, defaulting to
// credentials.yaml next to the config file.
func (l *Loader) CredentialsPath(cfg *ClientConfig) string {
	if cfg.Credentials.File != "" {
		return cfg.Credentials.File
	}
	return filepath.Join(l.Dir(), "credentials.yaml")
}
