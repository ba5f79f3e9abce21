package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pilotdeck/pilotdeck/internal/app"
	"github.com/pilotdeck/pilotdeck/internal/chat"
	"github.com/pilotdeck/pilotdeck/internal/command"
	"github.com/pilotdeck/pilotdeck/internal/eventbus"
)

var errQuit = errors.New("quit")

func newChatCmd() *cobra.Command {
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the MoviePilot assistant",
		Long: `Open an interactive chat with the server.

Text is sent to the server. Input starting with / is a quick command
(/search, /download, /subscribe, /status) and is handled locally.
Lines starting with : control the shell; type :help for the list.`,
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

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          userStyle.Render("you") + "> ",
				HistoryFile:     filepath.Join(e.loader.Dir(), "chat_history"),
				InterruptPrompt: "^C",
				EOFPrompt:       ":quit",
			})
			if err != nil {
				return fmt.Errorf("failed to initialize readline: %w", err)
			}
			defer func() { _ = rl.Close() }()

			p := newPrinter(rl.Stdout(), isTerminal(os.Stdout))
			sh := &chatShell{client: client, printer: p}
			return sh.run(ctx, rl, !noHistory)
		},
	}

	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not load previous messages from the server")
	return cmd
}

// lineReader is the part of readline the shell uses.
type lineReader interface {
	Readline() (string, error)
	Close() error
}

type chatShell struct {
	client  *app.Client
	printer *printer
}

func (s *chatShell) run(ctx context.Context, rl lineReader, loadHistory bool) error {
	// Print replies and pushed messages as they arrive; the user's own
	// lines are already on screen.
	eventbus.NewTopic[chat.Message](s.client.Bus, eventbus.TopicNewMessage).Subscribe(func(m chat.Message) {
		if !m.IsFromUser {
			s.printer.message(m)
		}
	})
	eventbus.NewTopic[chat.QuickCommand](s.client.Bus, eventbus.TopicQuickCommand).Subscribe(func(c chat.QuickCommand) {
		if !c.Known {
			s.printer.hint(fmt.Sprintf("unknown command %s, try :commands", c.Command))
		}
	})

	if err := s.client.Start(ctx); err != nil {
		s.printer.errorf("stream unavailable: %v", err)
	}

	if loadHistory {
		if err := s.client.Chat.LoadHistory(ctx); err != nil {
			s.printer.errorf("could not load history: %v", err)
		} else {
			for _, m := range s.client.Chat.Messages() {
				s.printer.message(m)
			}
		}
	}
	s.printer.hint("type :help for shell commands, Ctrl+D to quit")

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			// Unblock Readline.
			_ = rl.Close()
		case <-done:
		}
		return nil
	})

	g.Go(func() error {
		defer close(done)
		for {
			line, err := rl.Readline()
			if err != nil {
				if errors.Is(err, readline.ErrInterrupt) {
					continue
				}
				if errors.Is(err, io.EOF) || contextDone(gctx) {
					return nil
				}
				return fmt.Errorf("readline error: %w", err)
			}

			if err := s.handle(gctx, strings.TrimSpace(line)); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				s.printer.errorf("%v", err)
			}
		}
	})

	return g.Wait()
}

func (s *chatShell) handle(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, ":") {
		return s.meta(ctx, line)
	}
	_, err := s.client.Chat.SendMessage(ctx, line)
	return err
}

func (s *chatShell) meta(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	switch parts[0] {
	case ":quit", ":exit":
		return errQuit

	case ":help":
		s.printer.hint(strings.Join([]string{
			"  :commands              list quick commands",
			"  :history               print the conversation",
			"  :reload                reload history from the server",
			"  :clear                 clear the conversation locally",
			"  :press <id> <action>   press a message button",
			"  :status                show connection state",
			"  :quit                  leave the chat",
		}, "\n"))

	case ":commands":
		for _, def := range command.All() {
			s.printer.hint(fmt.Sprintf("  %-11s %s", def.Command, def.Description))
		}

	case ":history":
		for _, m := range s.client.Chat.Messages() {
			s.printer.message(m)
		}

	case ":reload":
		return s.client.Chat.LoadHistory(ctx)

	case ":clear":
		s.client.Chat.ClearMessages()

	case ":press":
		if len(parts) < 3 {
			return errors.New("usage: :press <message-id> <action>")
		}
		s.client.Chat.HandleButtonPress(ctx, chat.ID(parts[1]), parts[2], nil)

	case ":status":
		s.printer.state(s.client.Stream.State())

	default:
		return fmt.Errorf("unknown shell command %s, try :help", parts[0])
	}
	return nil
}
