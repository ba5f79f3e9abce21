package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pilotdeck/pilotdeck/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pilotdeck version %s\n", info.Version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Git commit: %s\n", info.GitCommit)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Build date: %s\n", info.BuildDate)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", info.GoVersion)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Platform: %s\n", info.Platform)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
