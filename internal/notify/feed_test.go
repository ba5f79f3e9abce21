package notify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilotdeck/pilotdeck/internal/eventbus"
	"github.com/pilotdeck/pilotdeck/internal/stream"
	"github.com/pilotdeck/pilotdeck/internal/testutil"
)

func newFeed(t *testing.T, capacity int) (*Feed, *eventbus.Bus) {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	bus := eventbus.New(logger)
	f := NewFeed(bus, capacity, logger)
	f.Start()
	t.Cleanup(f.Stop)
	return f, bus
}

func push(t *testing.T, bus *eventbus.Bus, data string) {
	t.Helper()
	frame, err := stream.ParseFrame([]byte(data))
	require.NoError(t, err)
	bus.Publish(eventbus.TopicMessage, frame)
}

func TestFeed_NewestFirst(t *testing.T) {
	f, bus := newFeed(t, 0)

	push(t, bus, `{"id":1,"title":"Download","content":"Started","type":"info"}`)
	push(t, bus, `{"id":2,"title":"Download","content":"Finished","type":"success",
		"actions":[{"label":"Open","action":"open","data":{"path":"/media"}}]}`)

	items := f.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Finished", items[0].Content)
	assert.Equal(t, LevelSuccess, items[0].Type)
	require.Len(t, items[0].Actions, 1)
	assert.Equal(t, "open", items[0].Actions[0].Action)
	assert.Equal(t, "Started", items[1].Content)
}

func TestFeed_IgnoresNonNotifications(t *testing.T) {
	f, bus := newFeed(t, 0)

	push(t, bus, `{"content":"chat reply"}`)
	push(t, bus, `{"title":"x","content":"y","type":"debug"}`)
	push(t, bus, `{"title":"x","type":"info"}`)
	push(t, bus, `{"hash":"abc","progress":4}`)
	bus.Publish(eventbus.TopicMessage, 42)

	assert.Empty(t, f.Items())
}

func TestFeed_Bounded(t *testing.T) {
	f, bus := newFeed(t, 3)

	for i := 1; i <= 5; i++ {
		push(t, bus, fmt.Sprintf(`{"id":%d,"title":"t","content":"c%d","type":"warning"}`, i, i))
	}

	items := f.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "c5", items[0].Content)
	assert.Equal(t, "c3", items[2].Content)
}

func TestFeed_OnNotify(t *testing.T) {
	f, _ := newFeed(t, 0)

	var got []string
	cancel := f.OnNotify(func(m SystemMessage) { got = append(got, m.Title) })
	f.Add(SystemMessage{Title: "a", Content: "x", Type: LevelError})
	cancel()
	f.Add(SystemMessage{Title: "b", Content: "x", Type: LevelError})

	assert.Equal(t, []string{"a"}, got)

	f.Clear()
	assert.Empty(t, f.Items())
}

func TestFeed_OnNotifyRegistrationOrder(t *testing.T) {
	f, _ := newFeed(t, 0)

	var order []int
	for i := 0; i < 8; i++ {
		f.OnNotify(func(SystemMessage) { order = append(order, i) })
	}
	cancel := f.OnNotify(func(SystemMessage) { order = append(order, 99) })
	f.OnNotify(func(SystemMessage) { order = append(order, 8) })
	cancel()

	f.Add(SystemMessage{Title: "a", Content: "x", Type: LevelInfo})

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, order)
}

func TestLevel_Valid(t *testing.T) {
	for _, l := range []Level{LevelInfo, LevelWarning, LevelError, LevelSuccess} {
		assert.True(t, l.Valid(), l)
	}
	assert.False(t, Level("debug").Valid())
	assert.False(t, Level("").Valid())
}
