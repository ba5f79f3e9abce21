// Package chat keeps the ordered history of the conversation with the
// server and routes user input either to the server or to the command
// interpreter.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pilotdeck/pilotdeck/internal/command"
	"github.com/pilotdeck/pilotdeck/internal/eventbus"
)

// ErrEmptyMessage is returned by SendMessage for blank input.
var ErrEmptyMessage = errors.New("message content is empty")

// DismissAction is the action of the button attached to command placeholders.
const DismissAction = "dismiss"

// Messenger delivers messages to the server and reads its history.
type Messenger interface {
	SendMessage(ctx context.Context, content string) (Message, error)
	History(ctx context.Context, page int) (HistoryPage, error)
}

// Decoder is satisfied by stream frames delivered on the message topic.
type Decoder interface {
	Decode(v any) error
}

// Option customizes a Session.
type Option func(*Session)

// WithIDFunc replaces the UUIDv7 generator for local message ids.
func WithIDFunc(fn func() ID) Option {
	return func(s *Session) {
		s.newID = fn
	}
}

// WithClock replaces time.Now for local timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// Session is the authoritative, append-only history of one conversation.
type Session struct {
	bus       *eventbus.Bus
	messenger Messenger
	logger    zerolog.Logger
	newID     func() ID
	now       func() time.Time

	newMessage      eventbus.Topic[Message]
	historyLoaded   eventbus.Topic[[]Message]
	loadingChange   eventbus.Topic[bool]
	buttonPress     eventbus.Topic[ButtonPress]
	quickCommand    eventbus.Topic[QuickCommand]
	messagesCleared eventbus.Topic[struct{}]
	sendFailed      eventbus.Topic[SendFailure]

	mu       sync.Mutex
	messages []Message
	seqs     []uint64
	seq      uint64
	inflight int
	sub      eventbus.Subscription
}

// NewSession creates a session. Call Start to receive pushed messages.
func NewSession(bus *eventbus.Bus, messenger Messenger, logger zerolog.Logger, opts ...Option) *Session {
	s := &Session{
		bus:             bus,
		messenger:       messenger,
		logger:          logger.With().Str("component", "chat").Logger(),
		newID:           newMessageID,
		now:             time.Now,
		newMessage:      eventbus.NewTopic[Message](bus, eventbus.TopicNewMessage),
		historyLoaded:   eventbus.NewTopic[[]Message](bus, eventbus.TopicHistoryLoaded),
		loadingChange:   eventbus.NewTopic[bool](bus, eventbus.TopicLoadingChange),
		buttonPress:     eventbus.NewTopic[ButtonPress](bus, eventbus.TopicButtonPress),
		quickCommand:    eventbus.NewTopic[QuickCommand](bus, eventbus.TopicQuickCommand),
		messagesCleared: eventbus.NewTopic[struct{}](bus, eventbus.TopicMessagesCleared),
		sendFailed:      eventbus.NewTopic[SendFailure](bus, eventbus.TopicSendFailed),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newMessageID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		return ID(uuid.NewString())
	}
	return ID(id.String())
}

// Start subscribes to server-pushed frames. Calling it twice is a no-op.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub.Valid() {
		return
	}
	s.sub = s.bus.Subscribe(eventbus.TopicMessage, s.handleFrame)
}

// Stop unsubscribes from server-pushed frames. It is idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	sub := s.sub
	s.sub = eventbus.Subscription{}
	s.mu.Unlock()

	if sub.Valid() {
		s.bus.Unsubscribe(sub)
	}
}

// Messages returns a copy of the history.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Loading reports whether a send is in progress.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// LoadHistory replaces the history with the server's first page. Messages
// appended while the request was in flight are kept after the page unless
// the page already contains them.
func (s *Session) LoadHistory(ctx context.Context) error {
	s.mu.Lock()
	startSeq := s.seq
	s.mu.Unlock()

	page, err := s.messenger.History(ctx, 1)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load history")
		return fmt.Errorf("load history: %w", err)
	}

	s.mu.Lock()
	seen := make(map[ID]struct{}, len(page.Results))
	for _, m := range page.Results {
		seen[m.ID] = struct{}{}
	}

	messages := make([]Message, 0, len(page.Results)+len(s.messages))
	seqs := make([]uint64, 0, cap(messages))
	for _, m := range page.Results {
		s.seq++
		messages = append(messages, m)
		seqs = append(seqs, s.seq)
	}
	kept := 0
	for i, m := range s.messages {
		if s.seqs[i] <= startSeq {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		messages = append(messages, m)
		seqs = append(seqs, s.seqs[i])
		kept++
	}
	s.messages, s.seqs = messages, seqs
	snapshot := make([]Message, len(messages))
	copy(snapshot, messages)
	s.mu.Unlock()

	s.logger.Debug().Int("count", len(page.Results)).Int("kept", kept).Msg("History loaded")
	s.historyLoaded.Publish(snapshot)
	return nil
}

// SendMessage echoes content into the history and then either runs it as a
// quick command or delivers it to the server. The returned message is the
// reply that was appended. A failed delivery keeps the echo and publishes a
// SendFailure.
func (s *Session) SendMessage(ctx context.Context, content string) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrEmptyMessage
	}

	echo := Message{
		ID:         s.newID(),
		Content:    content,
		IsFromUser: true,
		CreatedAt:  s.timestamp(),
	}
	s.add(echo)

	s.setLoading(true)
	defer s.setLoading(false)

	if command.IsCommand(content) {
		return s.runCommand(content), nil
	}

	reply, err := s.messenger.SendMessage(ctx, content)
	if err != nil {
		s.logger.Error().Err(err).Str("message_id", string(echo.ID)).Msg("Failed to send message")
		s.sendFailed.Publish(SendFailure{MessageID: echo.ID, Err: err})
		return Message{}, fmt.Errorf("send message: %w", err)
	}

	reply = s.fill(reply)
	s.add(reply)
	return reply, nil
}

// runCommand handles slash input locally. Unknown words take the same path;
// they are never sent to the server as chat text.
func (s *Session) runCommand(content string) Message {
	word, params := command.Split(content)
	_, known := command.Lookup(word)

	s.logger.Debug().Str("command", word).Strs("params", params).Bool("known", known).Msg("Quick command")
	s.quickCommand.Publish(QuickCommand{Command: word, Params: params, Known: known})

	placeholder := Message{
		ID:        s.newID(),
		Content:   "Processing command: " + word,
		CreatedAt: s.timestamp(),
		Buttons:   []Button{{Text: "OK", Action: DismissAction}},
	}
	s.add(placeholder)
	return placeholder
}

// HandleButtonPress publishes the press for the UI and records an
// acknowledgement. messageID is not validated and buttons stay usable.
func (s *Session) HandleButtonPress(_ context.Context, messageID ID, action string, data any) Message {
	s.buttonPress.Publish(ButtonPress{MessageID: messageID, Action: action, Data: data})

	ack := Message{
		ID:        s.newID(),
		Content:   fmt.Sprintf("Action %q executed", action),
		CreatedAt: s.timestamp(),
	}
	s.add(ack)
	return ack
}

// ClearMessages empties the history.
func (s *Session) ClearMessages() {
	s.mu.Lock()
	s.messages = nil
	s.seqs = nil
	s.mu.Unlock()

	s.messagesCleared.Publish(struct{}{})
}

func (s *Session) handleFrame(payload any) {
	frame, ok := payload.(Decoder)
	if !ok {
		return
	}

	var msg Message
	if err := frame.Decode(&msg); err != nil {
		s.logger.Debug().Err(err).Msg("Frame is not a chat message")
		return
	}
	if msg.Content == "" || msg.IsFromUser {
		return
	}

	s.add(s.fill(msg))
}

// fill assigns a local id and timestamp to messages that lack them.
func (s *Session) fill(m Message) Message {
	if m.ID == "" {
		m.ID = s.newID()
	}
	if m.CreatedAt == "" {
		m.CreatedAt = s.timestamp()
	}
	return m
}

func (s *Session) add(m Message) {
	s.mu.Lock()
	s.seq++
	s.messages = append(s.messages, m)
	s.seqs = append(s.seqs, s.seq)
	s.mu.Unlock()

	s.newMessage.Publish(m)
}

func (s *Session) setLoading(on bool) {
	s.mu.Lock()
	was := s.inflight > 0
	if on {
		s.inflight++
	} else {
		s.inflight--
	}
	now := s.inflight > 0
	s.mu.Unlock()

	if was != now {
		s.loadingChange.Publish(now)
	}
}

func (s *Session) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}
