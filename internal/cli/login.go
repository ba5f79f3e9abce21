package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pilotdeck/pilotdeck/internal/config"
	"github.com/pilotdeck/pilotdeck/internal/credential"
	"github.com/pilotdeck/pilotdeck/internal/moviepilot"
)

func newLoginCmd() *cobra.Command {
	var (
		token  string
		verify bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the API token for the server",
		Long: `Store the token used to authenticate against the MoviePilot server.

The token is read from --token, or prompted for without echo. When --server
is given it is also saved to the config file. A running 'listen' or 'chat'
picks the new token up and reconnects.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed(config.FlagServer) {
				if err := saveServer(e.loader, e.cfg.Server.BaseURL); err != nil {
					return err
				}
			}

			if token == "" {
				token, err = promptToken(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("no token given")
			}

			if exp, ok := credential.ExpiresAt(token); ok {
				if !time.Now().Before(exp) {
					return fmt.Errorf("%w on %s", credential.ErrTokenExpired, exp.Format(time.RFC3339))
				}
				cmd.Printf("Token expires %s\n", exp.Local().Format(time.RFC1123))
			}

			store, err := credential.NewStore(e.credentialsPath(), e.logger)
			if err != nil {
				return err
			}
			if err := store.Set(e.cfg.Server.BaseURL, token); err != nil {
				return err
			}

			if verify {
				api := moviepilot.NewClient(e.cfg.Server.BaseURL, store, e.logger)
				if _, err := api.History(cmd.Context(), 1); err != nil {
					return fmt.Errorf("token stored but the server rejected the check: %w", err)
				}
			}

			cmd.Printf("Logged in to %s\n", e.cfg.Server.BaseURL)
			cmd.Printf("Token saved to %s\n", store.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "API token (prompted for when omitted)")
	cmd.Flags().BoolVar(&verify, "verify", false, "check the token against the server")
	return cmd
}

// promptToken reads the token without echo from a terminal, or as a single
// line from anything else.
func promptToken(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(prompt, "Token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// saveServer writes the server URL to the config file without folding
// environment overrides into it.
func saveServer(loader *config.Loader, serverURL string) error {
	cfg, err := loader.LoadFile()
	if err != nil {
		return err
	}
	cfg.Server.BaseURL = serverURL
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save server URL: %w", err)
	}
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			store, err := credential.NewStore(e.credentialsPath(), e.logger)
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			cmd.Println("Logged out")
			return nil
		},
	}
}
