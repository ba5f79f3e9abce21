package eventbus

import "fmt"

// Topic is a typed view over one named topic of a Bus. Publishers and
// subscribers that go through the same Topic agree on the payload type at
// compile time.
type Topic[T any] struct {
	bus  *Bus
	name string
}

// NewTopic binds name on bus to payload type T.
func NewTopic[T any](bus *Bus, name string) Topic[T] {
	return Topic[T]{bus: bus, name: name}
}

// Name returns the underlying topic name.
func (t Topic[T]) Name() string {
	return t.name
}

// Subscribe registers fn. Payloads published on the same name with a
// different type are logged and skipped.
func (t Topic[T]) Subscribe(fn func(T)) Subscription {
	return t.bus.Subscribe(t.name, func(payload any) {
		v, ok := payload.(T)
		if !ok {
			var zero T
			t.bus.logger.Warn().
				Str("topic", t.name).
				Str("want", typeName(zero)).
				Str("got", typeName(payload)).
				Msg("Dropping payload of unexpected type")
			return
		}
		fn(v)
	})
}

// Unsubscribe removes a registration made through this topic.
func (t Topic[T]) Unsubscribe(sub Subscription) {
	t.bus.Unsubscribe(sub)
}

// Publish delivers v to the topic's listeners.
func (t Topic[T]) Publish(v T) {
	t.bus.Publish(t.name, v)
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", v)
}
