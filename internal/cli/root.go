// Package cli implements the pilotdeck command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pilotdeck/pilotdeck/internal/config"
	"github.com/pilotdeck/pilotdeck/internal/logging"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pilotdeck",
		Short: "pilotdeck - terminal client for MoviePilot",
		Long: `Follow a MoviePilot server from the terminal.

pilotdeck keeps a live connection to the server's event stream, reconnecting
with backoff when it drops, and shows download progress, system
notifications and the assistant chat as they arrive.

Start with 'pilotdeck login --server https://movie-pilot.example'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newListenCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// env is what most commands need: the loader, the effective config and a
// logger built from it.
type env struct {
	loader *config.Loader
	cfg    *config.ClientConfig
	logger logging.Logger
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	flags := cmd.Flags()
	loader := config.NewLoader(config.ConfigPathFlag(flags))

	cfg, err := loader.Load(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", loader.Path(), err)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	})
	return &env{loader: loader, cfg: cfg, logger: logger}, nil
}

func (e *env) credentialsPath() string {
	return e.loader.CredentialsPath(e.cfg)
}
