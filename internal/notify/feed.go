// Package notify collects system notifications pushed over the event stream.
package notify

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/pilotdeck/pilotdeck/internal/chat"
	"github.com/pilotdeck/pilotdeck/internal/eventbus"
)

// DefaultCapacity is the number of notifications kept by default.
const DefaultCapacity = 100

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelError, LevelSuccess:
		return true
	}
	return false
}

// Action is a follow-up the user can take from a notification.
type Action struct {
	Label  string         `json:"label"`
	Action string         `json:"action"`
	Data   map[string]any `json:"data,omitempty"`
}

// SystemMessage is one server notification.
type SystemMessage struct {
	ID        chat.ID  `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Type      Level    `json:"type"`
	CreatedAt string   `json:"created_at"`
	Actions   []Action `json:"actions,omitempty"`
}

type decoder interface {
	Decode(v any) error
}

// Feed keeps the most recent notifications, newest first.
type Feed struct {
	bus      *eventbus.Bus
	capacity int
	logger   zerolog.Logger

	mu        sync.Mutex
	items     []SystemMessage
	listeners []listener
	nextID    uint64
	sub       eventbus.Subscription
}

// NewFeed creates a feed holding at most capacity notifications. A
// non-positive capacity means DefaultCapacity.
func NewFeed(bus *eventbus.Bus, capacity int, logger zerolog.Logger) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{
		bus:      bus,
		capacity: capacity,
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

// Start subscribes to the message topic. It is idempotent.
func (f *Feed) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sub.Valid() {
		return
	}
	f.sub = f.bus.Subscribe(eventbus.TopicMessage, f.handle)
}

// Stop unsubscribes. It is idempotent.
func (f *Feed) Stop() {
	f.mu.Lock()
	sub := f.sub
	f.sub = eventbus.Subscription{}
	f.mu.Unlock()
	if sub.Valid() {
		f.bus.Unsubscribe(sub)
	}
}

// Items returns the notifications, newest first.
func (f *Feed) Items() []SystemMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SystemMessage, len(f.items))
	copy(out, f.items)
	return out
}

// Clear removes every notification.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
}

type listener struct {
	id uint64
	fn func(SystemMessage)
}

// OnNotify registers fn for new notifications. Listeners run in
// registration order. The returned func removes it.
func (f *Feed) OnNotify(fn func(SystemMessage)) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.listeners = append(f.listeners, listener{id: id, fn: fn})
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, l := range f.listeners {
			if l.id == id {
				f.listeners = append(f.listeners[:i:i], f.listeners[i+1:]...)
				return
			}
		}
	}
}

func (f *Feed) handle(payload any) {
	frame, ok := payload.(decoder)
	if !ok {
		return
	}

	var msg SystemMessage
	if err := frame.Decode(&msg); err != nil {
		return
	}
	if msg.Title == "" || msg.Content == "" || !msg.Type.Valid() {
		return
	}
	f.Add(msg)
}

// Add inserts msg at the front, evicting the oldest beyond capacity.
func (f *Feed) Add(msg SystemMessage) {
	f.mu.Lock()
	f.items = append([]SystemMessage{msg}, f.items...)
	if len(f.items) > f.capacity {
		f.items = f.items[:f.capacity]
	}
	fns := make([]func(SystemMessage), 0, len(f.listeners))
	for _, l := range f.listeners {
		fns = append(fns, l.fn)
	}
	f.mu.Unlock()

	f.logger.Debug().Str("type", string(msg.Type)).Str("title", msg.Title).Msg("Notification")
	for _, fn := range fns {
		fn(msg)
	}
}
