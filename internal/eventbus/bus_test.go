package eventbus

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(opts ...Option) *Bus {
	return New(zerolog.New(io.Discard), opts...)
}

func TestPublish_RegistrationOrder(t *testing.T) {
	bus := newTestBus()

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		bus.Subscribe("topic", func(any) { order = append(order, i) })
	}

	bus.Publish("topic", nil)

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestPublish_PayloadDelivered(t *testing.T) {
	bus := newTestBus()

	var got any
	bus.Subscribe("topic", func(p any) { got = p })
	bus.Publish("topic", "payload")

	assert.Equal(t, "payload", got)
}

func TestPublish_PanickingListenerIsolated(t *testing.T) {
	var logs bytes.Buffer
	bus := New(zerolog.New(&logs))

	second := 0
	bus.Subscribe("topic", func(any) { panic("boom") })
	bus.Subscribe("topic", func(any) { second++ })

	assert.NotPanics(t, func() { bus.Publish("topic", nil) })
	assert.NotPanics(t, func() { bus.Publish("topic", nil) })

	assert.Equal(t, 2, second, "second listener runs once per publish")
	assert.Contains(t, logs.String(), "Listener panicked")
	assert.Contains(t, logs.String(), "boom")
}

func TestPublish_NoReplay(t *testing.T) {
	bus := newTestBus()

	bus.Publish("topic", "early")

	called := false
	bus.Subscribe("topic", func(any) { called = true })

	assert.False(t, called)
	assert.Equal(t, 1, bus.ListenerCount("topic"))
}

func TestPublish_NoListeners(t *testing.T) {
	bus := newTestBus()

	assert.NotPanics(t, func() { bus.Publish("nobody", 1) })
}

func TestUnsubscribe_RemovesExactlyOne(t *testing.T) {
	bus := newTestBus()

	calls := 0
	listener := func(any) { calls++ }
	first := bus.Subscribe("topic", listener)
	bus.Subscribe("topic", listener)

	bus.Unsubscribe(first)
	bus.Publish("topic", nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, bus.ListenerCount("topic"))
}

func TestUnsubscribe_UnknownIsNoop(t *testing.T) {
	bus := newTestBus()
	sub := bus.Subscribe("topic", func(any) {})

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)
	bus.Unsubscribe(Subscription{})
	bus.Unsubscribe(Subscription{Topic: "other"})

	assert.Zero(t, bus.ListenerCount("topic"))
	assert.Empty(t, bus.Topics())
}

func TestSubscribe_SameListenerMultipleTopics(t *testing.T) {
	bus := newTestBus()

	var topics []string
	listener := func(p any) { topics = append(topics, p.(string)) }
	a := bus.Subscribe("a", listener)
	bus.Subscribe("b", listener)

	bus.Unsubscribe(a)
	bus.Publish("a", "a")
	bus.Publish("b", "b")

	assert.Equal(t, []string{"b"}, topics)
	assert.Equal(t, []string{"b"}, bus.Topics())
}

func TestPublish_UnsubscribeSelfDuringDelivery(t *testing.T) {
	bus := newTestBus()

	var calls []string
	var self Subscription
	self = bus.Subscribe("topic", func(any) {
		calls = append(calls, "self")
		bus.Unsubscribe(self)
	})
	bus.Subscribe("topic", func(any) { calls = append(calls, "other") })

	bus.Publish("topic", nil)
	bus.Publish("topic", nil)

	assert.Equal(t, []string{"self", "other", "other"}, calls)
}

func TestPublish_UnsubscribeOtherDuringDelivery(t *testing.T) {
	bus := newTestBus()

	var calls []string
	var victim Subscription
	bus.Subscribe("topic", func(any) {
		calls = append(calls, "first")
		bus.Unsubscribe(victim)
	})
	victim = bus.Subscribe("topic", func(any) { calls = append(calls, "victim") })
	bus.Subscribe("topic", func(any) { calls = append(calls, "last") })

	bus.Publish("topic", nil)
	bus.Publish("topic", nil)

	// The emission in flight works on a snapshot; removal applies from the next one.
	assert.Equal(t, []string{"first", "victim", "last", "first", "last"}, calls)
}

func TestPublish_SubscribeDuringDelivery(t *testing.T) {
	bus := newTestBus()

	late := 0
	bus.Subscribe("topic", func(any) {
		bus.Subscribe("topic", func(any) { late++ })
	})

	bus.Publish("topic", nil)
	assert.Zero(t, late, "listener added mid-emission does not see that emission")

	bus.Publish("topic", nil)
	assert.Equal(t, 1, late)
}

func TestSubscribe_HighWaterMarkWarnsOnce(t *testing.T) {
	var logs bytes.Buffer
	bus := New(zerolog.New(&logs), WithMaxListeners(2))

	for i := 0; i < 5; i++ {
		bus.Subscribe("topic", func(any) {})
	}

	assert.Equal(t, 5, bus.ListenerCount("topic"), "high-water mark is advisory")
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("Possible listener leak")))
}

func TestSubscribe_HighWaterMarkDisabled(t *testing.T) {
	var logs bytes.Buffer
	bus := New(zerolog.New(&logs), WithMaxListeners(0))

	for i := 0; i < DefaultMaxListeners+1; i++ {
		bus.Subscribe("topic", func(any) {})
	}

	assert.Zero(t, logs.Len())
}

func TestBus_ConcurrentUse(t *testing.T) {
	bus := newTestBus(WithMaxListeners(0))

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := bus.Subscribe("topic", func(any) {
				mu.Lock()
				total++
				mu.Unlock()
			})
			for j := 0; j < 50; j++ {
				bus.Publish("topic", j)
			}
			bus.Unsubscribe(sub)
		}()
	}
	wg.Wait()

	require.Zero(t, bus.ListenerCount("topic"))
	assert.Positive(t, total)
}
