package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pilotdeck/pilotdeck/internal/app"
	"github.com/pilotdeck/pilotdeck/internal/chat"
	"github.com/pilotdeck/pilotdeck/internal/eventbus"
	"github.com/pilotdeck/pilotdeck/internal/stream"
)

func newListenCmd() *cobra.Command {
	var (
		withChat bool
		raw      bool
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Follow the server's live event stream",
		Long: `Connect to the server's event stream and print what arrives:
connection state changes, download progress and system notifications.

The connection is re-established with exponential backoff when it drops.
If no token is stored yet, listen waits until 'pilotdeck login' stores one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			client, err := app.New(e.cfg, e.credentialsPath(), e.logger)
			if err != nil {
				return err
			}
			defer client.Stop()

			p := newPrinter(cmd.OutOrStdout(), isTerminal(os.Stdout))
			attachListenOutput(client, p, withChat, raw)

			if err := client.Start(ctx); err != nil {
				return err
			}
			p.hint("listening on " + e.cfg.Server.BaseURL + " (Ctrl+C to stop)")

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&withChat, "chat", false, "also print chat messages pushed by the server")
	cmd.Flags().BoolVar(&raw, "raw", false, "print every frame as received")
	return cmd
}

// attachListenOutput wires the client's events to p.
func attachListenOutput(client *app.Client, p *printer, withChat, raw bool) {
	eventbus.NewTopic[stream.State](client.Bus, eventbus.TopicState).Subscribe(p.state)
	eventbus.NewTopic[error](client.Bus, eventbus.TopicError).Subscribe(p.streamError)
	client.Progress.Watch("", p.progress)
	client.Notify.OnNotify(p.notification)

	if withChat {
		eventbus.NewTopic[chat.Message](client.Bus, eventbus.TopicNewMessage).Subscribe(p.message)
	}
	if raw {
		eventbus.NewTopic[stream.Frame](client.Bus, eventbus.TopicMessage).Subscribe(func(f stream.Frame) {
			p.println(string(f.Raw()))
		})
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// contextDone reports whether ctx has ended.
func contextDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
