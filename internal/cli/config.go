package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pilotdeck/pilotdeck/internal/command"
	"github.com/pilotdeck/pilotdeck/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the client configuration",
		Long: `Inspect and edit ~/.pilotdeck/config.yaml.

Values are layered: built-in defaults, then the config file, then
PILOTDECK_* environment variables, then command-line flags.`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigSetServerCmd())
	cmd.AddCommand(newConfigCommandsCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var fileOnly bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			cfg := e.cfg
			if fileOnly {
				if cfg, err = e.loader.LoadFile(); err != nil {
					return err
				}
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&fileOnly, "file", false, "show defaults and file values only, without env and flag overrides")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config and credentials file locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "config:      %s\n", e.loader.Path())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "credentials: %s\n", e.credentialsPath())
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader(config.ConfigPathFlag(cmd.Flags()))

			if _, err := os.Stat(loader.Path()); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", loader.Path())
			}

			cfg := config.DefaultClientConfig()
			if err := config.ApplyFlags(cfg, cmd.Flags()); err != nil {
				return err
			}
			if err := loader.Save(cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", loader.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigSetServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-server <url>",
		Short: "Save the MoviePilot server URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader(config.ConfigPathFlag(cmd.Flags()))
			if err := saveServer(loader, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Server set to %s\n", args[0])
			return nil
		},
	}
}

func newConfigCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the chat quick commands",
		Run: func(cmd *cobra.Command, args []string) {
			for _, def := range command.All() {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-11s %-10s %s\n", def.Command, def.Label, def.Description)
			}
		},
	}
}
