package eventbus

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type progressEvent struct {
	Hash     string
	Progress float64
}

func TestTopic_TypedDelivery(t *testing.T) {
	bus := newTestBus()
	topic := NewTopic[progressEvent](bus, "progress")

	var got []progressEvent
	topic.Subscribe(func(e progressEvent) { got = append(got, e) })
	topic.Publish(progressEvent{Hash: "abc", Progress: 42})

	assert.Equal(t, []progressEvent{{Hash: "abc", Progress: 42}}, got)
	assert.Equal(t, "progress", topic.Name())
}

func TestTopic_SharesNameWithUntypedSubscribers(t *testing.T) {
	bus := newTestBus()
	topic := NewTopic[bool](bus, TopicLoadingChange)

	var raw []any
	bus.Subscribe(TopicLoadingChange, func(p any) { raw = append(raw, p) })
	topic.Publish(true)

	assert.Equal(t, []any{true}, raw)
}

func TestTopic_WrongPayloadTypeSkipped(t *testing.T) {
	var logs bytes.Buffer
	bus := New(zerolog.New(&logs))
	topic := NewTopic[int](bus, "numbers")

	called := false
	topic.Subscribe(func(int) { called = true })
	bus.Publish("numbers", "not a number")

	assert.False(t, called)
	assert.Contains(t, logs.String(), "Dropping payload of unexpected type")
	assert.Contains(t, logs.String(), `"got":"string"`)
}

func TestTopic_Unsubscribe(t *testing.T) {
	bus := newTestBus()
	topic := NewTopic[string](bus, "strings")

	calls := 0
	sub := topic.Subscribe(func(string) { calls++ })
	topic.Unsubscribe(sub)
	topic.Publish("x")

	assert.Zero(t, calls)
}
