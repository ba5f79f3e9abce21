package stream

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pilotdeck/pilotdeck/internal/eventbus"
	"github.com/pilotdeck/pilotdeck/internal/testutil"
)

type staticCreds struct {
	token string
	err   error
}

func (c staticCreds) Token(context.Context) (string, error) {
	return c.token, c.err
}

type readResult struct {
	ev  Event
	err error
}

type fakeStream struct {
	results chan readResult
	closed  chan struct{}
	once    sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		results: make(chan readResult, 16),
		closed:  make(chan struct{}),
	}
}

func (s *fakeStream) Next() (Event, error) {
	select {
	case r := <-s.results:
		return r.ev, r.err
	case <-s.closed:
		return Event{}, io.ErrClosedPipe
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) send(data string) {
	s.results <- readResult{ev: Event{Data: []byte(data)}}
}

func (s *fakeStream) drop(err error) {
	s.results <- readResult{err: err}
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeTransport struct {
	mu       sync.Mutex
	urls     []string
	streams  []*fakeStream
	failures []error
	gate     chan struct{}
}

func (t *fakeTransport) Open(ctx context.Context, rawURL string) (EventStream, error) {
	t.mu.Lock()
	t.urls = append(t.urls, rawURL)
	gate := t.gate
	var failure error
	if len(t.failures) > 0 {
		failure, t.failures = t.failures[0], t.failures[1:]
	}
	t.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failure != nil {
		return nil, failure
	}

	s := newFakeStream()
	t.mu.Lock()
	t.streams = append(t.streams, s)
	t.mu.Unlock()
	return s, nil
}

func (t *fakeTransport) failNext(errs ...error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = append(t.failures, errs...)
}

func (t *fakeTransport) opens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.urls)
}

func (t *fakeTransport) lastURL(tb testing.TB) *url.URL {
	t.mu.Lock()
	defer t.mu.Unlock()
	require.NotEmpty(tb, t.urls)
	u, err := url.Parse(t.urls[len(t.urls)-1])
	require.NoError(tb, err)
	return u
}

func (t *fakeTransport) current(tb testing.TB) *fakeStream {
	t.mu.Lock()
	defer t.mu.Unlock()
	require.NotEmpty(tb, t.streams)
	return t.streams[len(t.streams)-1]
}

// recorder captures what the manager publishes.
type recorder struct {
	mu     sync.Mutex
	states []State
	topics []string
	errs   []error
}

func (r *recorder) attach(bus *eventbus.Bus) {
	eventbus.NewTopic[State](bus, eventbus.TopicState).Subscribe(func(s State) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.states = append(r.states, s)
	})
	eventbus.NewTopic[error](bus, eventbus.TopicError).Subscribe(func(err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.errs = append(r.errs, err)
	})
	for _, topic := range []string{
		eventbus.TopicConnected,
		eventbus.TopicDisconnected,
		eventbus.TopicError,
		eventbus.TopicMessage,
		eventbus.TopicDownloadProgress,
	} {
		topic := topic
		bus.Subscribe(topic, func(any) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.topics = append(r.topics, topic)
		})
	}
}

func (r *recorder) stateLog() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *recorder) count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.topics {
		if t == topic {
			n++
		}
	}
	return n
}

func (r *recorder) lastErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[len(r.errs)-1]
}

type harness struct {
	t         *testing.T
	bus       *eventbus.Bus
	transport *fakeTransport
	sched     *testutil.ManualScheduler
	clock     *testutil.Clock
	rec       *recorder
	mgr       *Manager
}

func newHarness(t *testing.T, creds CredentialSource) *harness {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	h := &harness{
		t:         t,
		bus:       eventbus.New(logger),
		transport: &fakeTransport{},
		sched:     &testutil.ManualScheduler{},
		clock:     testutil.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		rec:       &recorder{},
	}
	h.rec.attach(h.bus)

	cfg := DefaultConfig("https://pilot.example/")
	h.mgr = NewManager(cfg, h.bus, creds, logger,
		WithTransport(h.transport),
		WithAfterFunc(func(d time.Duration, fn func()) Timer { return h.sched.AfterFunc(d, fn) }),
		WithClock(h.clock.Now),
	)
	t.Cleanup(h.mgr.Close)
	return h
}

func (h *harness) connect() {
	h.t.Helper()
	require.NoError(h.t, h.mgr.Connect(context.Background()))
	require.Equal(h.t, StateConnected, h.mgr.State())
}

// dropAndWait drops the current stream and waits until the reader goroutine
// has published the error and scheduled timer number wantTimers.
func (h *harness) dropAndWait(wantTimers int) {
	h.t.Helper()
	errsBefore := h.rec.count(eventbus.TopicError)
	h.transport.current(h.t).drop(errors.New("connection reset"))
	require.Eventually(h.t, func() bool {
		return len(h.sched.Delays()) == wantTimers && h.rec.count(eventbus.TopicError) == errsBefore+1
	}, time.Second, time.Millisecond)
}

// waitState waits for the manager to settle in want.
func (h *harness) waitState(want State) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return h.mgr.State() == want
	}, time.Second, time.Millisecond)
}
