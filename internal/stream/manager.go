// Package stream keeps a single server-push connection alive and turns the
// frames it receives into Event Bus emissions.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pilotdeck/pilotdeck/internal/backoff"
	"github.com/pilotdeck/pilotdeck/internal/eventbus"
)

// DefaultPath is the server's system message stream endpoint.
const DefaultPath = "/api/v1/system/message"

var (
	// ErrNoCredential is returned when the credential source has no token.
	ErrNoCredential = errors.New("no auth token available")
	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("stream manager closed")
	// ErrAborted is returned when Disconnect interrupts a connection attempt.
	ErrAborted = errors.New("connection attempt aborted")
	// ErrStreamEnded wraps a clean end of stream from the server.
	ErrStreamEnded = errors.New("server closed the stream")
)

// CredentialSource supplies the auth token appended to the stream URL.
// An empty token with a nil error means no credential is stored.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// Timer is a pending reconnect.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules fn after d.
type AfterFunc func(d time.Duration, fn func()) Timer

// Config configures a Manager.
type Config struct {
	// BaseURL is the server root, e.g. https://movie-pilot.example.
	BaseURL string
	// Path is appended to BaseURL. Defaults to DefaultPath.
	Path string
	// Backoff is the reconnect policy.
	Backoff backoff.Config
	// StableAfter is how long a connection must stay up before a later drop
	// starts the backoff sequence from the beginning again. A received frame
	// marks the connection stable immediately.
	StableAfter time.Duration
	// Rules is the frame routing table. Defaults to DefaultRules.
	Rules []Rule
}

// DefaultConfig returns the reconnect policy used by the mobile client.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Path:    DefaultPath,
		Backoff: backoff.Config{
			Initial:     time.Second,
			Max:         30 * time.Second,
			MaxAttempts: 5,
		},
		StableAfter: 30 * time.Second,
		Rules:       DefaultRules(),
	}
}

// Option customizes a Manager.
type Option func(*Manager)

// WithTransport replaces the HTTP SSE transport.
func WithTransport(t Transport) Option {
	return func(m *Manager) {
		m.transport = t
	}
}

// WithAfterFunc replaces time.AfterFunc for reconnect scheduling.
func WithAfterFunc(fn AfterFunc) Option {
	return func(m *Manager) {
		m.afterFunc = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager owns one live stream connection, reconnects it with backoff after
// drops, and publishes every received frame on the bus.
type Manager struct {
	cfg       Config
	bus       *eventbus.Bus
	creds     CredentialSource
	transport Transport
	afterFunc AfterFunc
	now       func() time.Time
	logger    zerolog.Logger

	stateTopic        eventbus.Topic[State]
	connectedTopic    eventbus.Topic[struct{}]
	disconnectedTopic eventbus.Topic[struct{}]
	errorTopic        eventbus.Topic[error]

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu          sync.Mutex
	state       State
	attempts    int
	gen         uint64
	stream      EventStream
	cancelConn  context.CancelFunc
	timer       Timer
	connectedAt time.Time
	stable      bool
	closed      bool
	wg          sync.WaitGroup
}

// NewManager creates a Manager in StateDisconnected.
func NewManager(cfg Config, bus *eventbus.Bus, creds CredentialSource, logger zerolog.Logger, opts ...Option) *Manager {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:   cfg,
		bus:   bus,
		creds: creds,
		afterFunc: func(d time.Duration, fn func()) Timer {
			return time.AfterFunc(d, fn)
		},
		now:               time.Now,
		logger:            logger.With().Str("component", "stream").Logger(),
		stateTopic:        eventbus.NewTopic[State](bus, eventbus.TopicState),
		connectedTopic:    eventbus.NewTopic[struct{}](bus, eventbus.TopicConnected),
		disconnectedTopic: eventbus.NewTopic[struct{}](bus, eventbus.TopicDisconnected),
		errorTopic:        eventbus.NewTopic[error](bus, eventbus.TopicError),
		baseCtx:           ctx,
		baseCancel:        cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.transport == nil {
		m.transport = NewSSETransport(nil, logger)
	}
	return m
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the stream is open.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Attempts returns the number of reconnect attempts made since the last
// stable connection.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect opens the stream. It returns once the connection is established or
// the attempt failed; frames are then delivered from a background goroutine.
// Calling Connect while connecting or connected is a no-op. An explicit
// Connect resets the reconnect budget, so it also resumes after the manager
// gave up.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state.Active() {
		m.mu.Unlock()
		return nil
	}
	m.stopTimerLocked()
	m.attempts = 0
	gen, old := m.beginConnectLocked()
	m.mu.Unlock()

	m.publishState(old, StateConnecting)
	return m.open(ctx, gen, false)
}

// reconnect is run by the reconnect timer scheduled after connection gen
// failed. It does nothing if anything happened to the manager since.
func (m *Manager) reconnect(failedGen uint64) {
	m.mu.Lock()
	if m.closed || m.gen != failedGen || m.state != StateError {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	gen, old := m.beginConnectLocked()
	attempt := m.attempts
	m.mu.Unlock()

	m.publishState(old, StateConnecting)
	if err := m.open(m.baseCtx, gen, true); err != nil {
		m.logger.Warn().Err(err).Int("attempt", attempt).Msg("Reconnect attempt failed")
	}
}

func (m *Manager) beginConnectLocked() (uint64, State) {
	m.gen++
	old := m.state
	m.state = StateConnecting
	return m.gen, old
}

func (m *Manager) open(ctx context.Context, gen uint64, retry bool) error {
	token, err := m.creds.Token(ctx)
	if err == nil && token == "" {
		err = ErrNoCredential
	}
	if err != nil {
		err = fmt.Errorf("get credential: %w", err)
		m.fail(gen, err, retry)
		return err
	}

	connCtx, cancel := context.WithCancel(m.baseCtx)
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		cancel()
		return ErrAborted
	}
	m.cancelConn = cancel
	m.mu.Unlock()

	// The caller's context only bounds the open, not the stream's lifetime.
	stop := context.AfterFunc(ctx, cancel)
	es, err := m.transport.Open(connCtx, m.endpoint(token))
	stop()
	if err != nil {
		err = fmt.Errorf("open stream: %w", err)
		m.fail(gen, err, retry)
		return err
	}

	m.mu.Lock()
	if m.gen != gen || m.closed {
		m.mu.Unlock()
		cancel()
		_ = es.Close()
		return ErrAborted
	}
	m.state = StateConnected
	m.stream = es
	m.connectedAt = m.now()
	m.stable = false
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info().Str("url", m.redactedEndpoint()).Msg("Stream connected")
	m.publishState(StateConnecting, StateConnected)
	m.connectedTopic.Publish(struct{}{})

	go m.readLoop(gen, es)
	return nil
}

func (m *Manager) readLoop(gen uint64, es EventStream) {
	defer m.wg.Done()

	for {
		ev, err := es.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrStreamEnded
			}
			m.fail(gen, fmt.Errorf("read stream: %w", err), false)
			return
		}

		if !m.markStable(gen) {
			return
		}
		m.dispatch(ev)
	}
}

// markStable records that the connection delivered data. It reports false
// when the connection has been superseded.
func (m *Manager) markStable(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.stable = true
	return true
}

func (m *Manager) dispatch(ev Event) {
	if len(strings.TrimSpace(string(ev.Data))) == 0 {
		return
	}

	frame, err := ParseFrame(ev.Data)
	if err != nil {
		m.logger.Warn().Err(err).Int("bytes", len(ev.Data)).Msg("Failed to parse frame, dropping")
		return
	}

	for _, topic := range Route(m.cfg.Rules, frame) {
		m.bus.Publish(topic, frame)
	}
}

// fail handles an open failure or a mid-stream drop for connection gen.
// Failures of superseded connections are ignored.
func (m *Manager) fail(gen uint64, cause error, retry bool) {
	m.mu.Lock()
	if m.gen != gen || m.closed {
		m.mu.Unlock()
		return
	}

	old := m.state
	wasConnected := old == StateConnected
	if wasConnected && (m.stable || m.now().Sub(m.connectedAt) >= m.cfg.StableAfter) {
		m.attempts = 0
	}

	es, cancel := m.detachLocked()
	m.state = StateError

	scheduled := false
	var delay time.Duration
	if (wasConnected || retry) && !m.cfg.Backoff.Exhausted(m.attempts) {
		m.attempts++
		delay = m.cfg.Backoff.Delay(m.attempts)
		m.timer = m.afterFunc(delay, func() { m.reconnect(gen) })
		scheduled = true
	}
	attempts := m.attempts
	exhausted := !scheduled && (wasConnected || retry)
	if !scheduled {
		m.state = StateDisconnected
	}
	m.mu.Unlock()

	m.logger.Error().Err(cause).Str("state", old.String()).Msg("Stream connection error")
	m.publishState(old, StateError)
	m.errorTopic.Publish(cause)
	closeStream(es, cancel, m.logger)

	if scheduled {
		m.logger.Info().
			Dur("delay", delay).
			Int("attempt", attempts).
			Int("max_attempts", m.cfg.Backoff.MaxAttempts).
			Msg("Reconnecting")
		return
	}

	if exhausted {
		m.logger.Error().Int("attempts", attempts).Msg("Max reconnect attempts reached, giving up")
	}
	m.publishState(StateError, StateDisconnected)
	m.disconnectedTopic.Publish(struct{}{})
}

// Disconnect cancels any pending reconnect, closes the stream and resets the
// reconnect budget. It always succeeds and is idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.stopTimerLocked()
	es, cancel := m.detachLocked()
	m.attempts = 0
	m.gen++
	old := m.state
	m.state = StateDisconnected
	m.mu.Unlock()

	closeStream(es, cancel, m.logger)

	if old != StateDisconnected {
		m.logger.Info().Msg("Stream disconnected")
		m.publishState(old, StateDisconnected)
		m.disconnectedTopic.Publish(struct{}{})
	}
}

// Close disconnects and waits for the reader goroutine to exit. Connect
// fails with ErrClosed afterwards. Close is idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.Disconnect()
	m.baseCancel()
	m.wg.Wait()
}

func (m *Manager) detachLocked() (EventStream, context.CancelFunc) {
	es, cancel := m.stream, m.cancelConn
	m.stream, m.cancelConn = nil, nil
	return es, cancel
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) publishState(old, next State) {
	if old != next {
		m.logger.Debug().
			Str("old_state", old.String()).
			Str("new_state", next.String()).
			Msg("Connection state changed")
	}
	m.stateTopic.Publish(next)
}

func (m *Manager) endpoint(token string) string {
	return strings.TrimRight(m.cfg.BaseURL, "/") + m.cfg.Path + "?token=" + url.QueryEscape(token)
}

func (m *Manager) redactedEndpoint() string {
	return strings.TrimRight(m.cfg.BaseURL, "/") + m.cfg.Path
}

func closeStream(es EventStream, cancel context.CancelFunc, logger zerolog.Logger) {
	if cancel != nil {
		cancel()
	}
	if es != nil {
		if err := es.Close(); err != nil {
			logger.Debug().Err(err).Msg("Failed to close stream")
		}
	}
}
