// Package app wires the event core together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pilotdeck/pilotdeck/internal/chat"
	"github.com/pilotdeck/pilotdeck/internal/config"
	"github.com/pilotdeck/pilotdeck/internal/credential"
	"github.com/pilotdeck/pilotdeck/internal/eventbus"
	"github.com/pilotdeck/pilotdeck/internal/moviepilot"
	"github.com/pilotdeck/pilotdeck/internal/notify"
	"github.com/pilotdeck/pilotdeck/internal/progress"
	"github.com/pilotdeck/pilotdeck/internal/stream"
)

// Option customizes a Client.
type Option func(*options)

type options struct {
	streamOpts []stream.Option
	watch      bool
}

// WithStreamOptions passes options to the stream manager.
func WithStreamOptions(opts ...stream.Option) Option {
	return func(o *options) {
		o.streamOpts = append(o.streamOpts, opts...)
	}
}

// WithoutCredentialWatch disables reconnecting when the credentials file
// changes.
func WithoutCredentialWatch() Option {
	return func(o *options) {
		o.watch = false
	}
}

// Client owns every component of the event core. Components are built by
// New; nothing is package-global.
type Client struct {
	Bus         *eventbus.Bus
	Credentials *credential.Store
	Stream      *stream.Manager
	API         *moviepilot.Client
	Chat        *chat.Session
	Progress    *progress.Tracker
	Notify      *notify.Feed

	logger zerolog.Logger
	watch  bool

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
}

// New builds a client from cfg. credentialsPath "" keeps the token in
// memory only.
func New(cfg *config.ClientConfig, credentialsPath string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	o := options{watch: credentialsPath != ""}
	for _, opt := range opts {
		opt(&o)
	}

	creds, err := credential.NewStore(credentialsPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	bus := eventbus.New(logger, eventbus.WithMaxListeners(cfg.Bus.MaxListeners))
	api := moviepilot.NewClient(cfg.Server.BaseURL, creds, logger)

	return &Client{
		Bus:         bus,
		Credentials: creds,
		Stream:      stream.NewManager(cfg.StreamManagerConfig(), bus, creds, logger, o.streamOpts...),
		API:         api,
		Chat:        chat.NewSession(bus, api, logger),
		Progress:    progress.NewTracker(bus, logger),
		Notify:      notify.NewFeed(bus, cfg.Notify.Capacity, logger),
		logger:      logger.With().Str("component", "app").Logger(),
		watch:       o.watch,
	}, nil
}

// Start subscribes the consumers and connects the stream. A missing or
// expired token is not an error: the client waits for a login to update the
// credentials file. Start may only be called once.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return stream.ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return errors.New("client already started")
	}
	c.started = true
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	c.Chat.Start()
	c.Progress.Start()
	c.Notify.Start()

	if c.watch {
		if err := c.Credentials.Watch(runCtx, c.onCredentialChange(runCtx)); err != nil {
			c.logger.Warn().Err(err).Msg("Credential changes will not be picked up")
		}
	}

	err := c.Stream.Connect(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stream.ErrNoCredential), errors.Is(err, credential.ErrTokenExpired):
		c.logger.Warn().Err(err).Msg("Not logged in, waiting for credentials")
		return nil
	default:
		return err
	}
}

func (c *Client) onCredentialChange(ctx context.Context) func(string) {
	return func(token string) {
		if token == "" {
			c.logger.Info().Msg("Credentials removed, disconnecting")
			c.Stream.Disconnect()
			return
		}
		if c.Stream.State().Active() {
			// Reconnect so the new token is used.
			c.Stream.Disconnect()
		}
		c.logger.Info().Msg("Credentials updated, connecting")
		if err := c.Stream.Connect(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Connect after credential change failed")
		}
	}
}

// Stop disconnects the stream, cancels timers and the credential watch and
// detaches the consumers. It is idempotent.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.Stream.Close()
	c.Chat.Stop()
	c.Progress.Stop()
	c.Notify.Stop()
	c.logger.Debug().Msg("Client stopped")
}
