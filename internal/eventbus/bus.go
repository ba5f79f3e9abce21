// Package eventbus is the process-wide publish/subscribe registry every
// pilotdeck component talks through.
//
// Listeners are registered per named topic and invoked synchronously, in
// registration order, on the publisher's goroutine. Delivery is
// at-most-once: nothing is buffered for listeners that subscribe later.
package eventbus

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultMaxListeners is the advisory per-topic listener count above which
// the bus logs a warning.
const DefaultMaxListeners = 50

// Listener receives a published payload.
type Listener func(payload any)

// Subscription identifies one registration. It is the handle passed to
// Unsubscribe; the zero value matches nothing.
type Subscription struct {
	Topic string
	id    uint64
}

// Valid reports whether s came from Subscribe.
func (s Subscription) Valid() bool {
	return s.id != 0
}

type registration struct {
	id       uint64
	listener Listener
}

// Bus is a named-topic listener registry. It is safe for concurrent use.
type Bus struct {
	mu           sync.Mutex
	topics       map[string][]registration
	nextID       uint64
	maxListeners int
	warned       map[string]bool
	logger       zerolog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithMaxListeners sets the advisory high-water mark. Zero disables the warning.
func WithMaxListeners(n int) Option {
	return func(b *Bus) {
		b.maxListeners = n
	}
}

// New creates an empty bus.
func New(logger zerolog.Logger, opts ...Option) *Bus {
	b := &Bus{
		topics:       make(map[string][]registration),
		maxListeners: DefaultMaxListeners,
		warned:       make(map[string]bool),
		logger:       logger.With().Str("component", "eventbus").Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers listener under topic. The same listener may be
// registered any number of times; each call yields its own Subscription.
func (b *Bus) Subscribe(topic string, listener Listener) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	reg := registration{id: b.nextID, listener: listener}
	b.topics[topic] = append(b.topics[topic], reg)

	count := len(b.topics[topic])
	if b.maxListeners > 0 && count > b.maxListeners && !b.warned[topic] {
		b.warned[topic] = true
		b.logger.Warn().
			Str("topic", topic).
			Int("listeners", count).
			Int("max_listeners", b.maxListeners).
			Msg("Possible listener leak: topic exceeds listener high-water mark")
	}

	return Subscription{Topic: topic, id: reg.id}
}

// Unsubscribe removes exactly the registration identified by sub.
// Removing an unknown or already removed subscription is a no-op.
func (b *Bus) Unsubscribe(sub Subscription) {
	if !sub.Valid() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.topics[sub.Topic]
	for i, reg := range regs {
		if reg.id != sub.id {
			continue
		}
		// Copy instead of shifting in place: an in-flight Publish may still
		// be iterating over the old backing array.
		next := make([]registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		next = append(next, regs[i+1:]...)
		if len(next) == 0 {
			delete(b.topics, sub.Topic)
			delete(b.warned, sub.Topic)
		} else {
			b.topics[sub.Topic] = next
		}
		return
	}
}

// Publish delivers payload to every listener registered on topic at the time
// of the call. A panicking listener is logged and skipped; the remaining
// listeners still run and the panic never reaches the publisher.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.Lock()
	snapshot := b.topics[topic]
	b.mu.Unlock()

	for _, reg := range snapshot {
		b.invoke(topic, reg, payload)
	}
}

func (b *Bus) invoke(topic string, reg registration, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("topic", topic).
				Str("panic", fmt.Sprint(r)).
				Msg("Listener panicked")
		}
	}()
	reg.listener(payload)
}

// ListenerCount returns the number of listeners registered on topic.
func (b *Bus) ListenerCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

// Topics returns the sorted names of topics with at least one listener.
func (b *Bus) Topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.topics))
	for name := range b.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
