// Package progress tracks download progress pushed over the event stream.
package progress

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pilotdeck/pilotdeck/internal/eventbus"
)

// Progress is the latest known state of one download.
type Progress struct {
	Hash       string    `json:"hash"`
	Progress   float64   `json:"progress"`
	Downloaded float64   `json:"downloaded"`
	Speed      float64   `json:"speed"`
	ETA        float64   `json:"eta"`
	Status     string    `json:"status"`
	UpdatedAt  time.Time `json:"-"`
}

// Done reports whether the download reached 100%.
func (p Progress) Done() bool {
	return p.Progress >= 100
}

func (p Progress) sameAs(o Progress) bool {
	return p.Hash == o.Hash &&
		p.Progress == o.Progress &&
		p.Downloaded == o.Downloaded &&
		p.Speed == o.Speed &&
		p.ETA == o.ETA &&
		p.Status == o.Status
}

// fields is satisfied by stream frames delivered on the progress topic.
type fields interface {
	String(key string) (string, bool)
	Number(key string) (float64, bool)
}

type watcher struct {
	id uint64
	fn func(Progress)
}

// Tracker keeps the latest progress per torrent hash.
type Tracker struct {
	bus    *eventbus.Bus
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	items    map[string]Progress
	watchers map[string][]watcher
	nextID   uint64
	sub      eventbus.Subscription
}

// NewTracker creates a tracker. Call Start to begin consuming frames.
func NewTracker(bus *eventbus.Bus, logger zerolog.Logger) *Tracker {
	return &Tracker{
		bus:      bus,
		logger:   logger.With().Str("component", "progress").Logger(),
		now:      time.Now,
		items:    make(map[string]Progress),
		watchers: make(map[string][]watcher),
	}
}

// Start subscribes to download-progress frames. It is idempotent.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sub.Valid() {
		return
	}
	t.sub = t.bus.Subscribe(eventbus.TopicDownloadProgress, t.handle)
}

// Stop unsubscribes. It is idempotent.
func (t *Tracker) Stop() {
	t.mu.Lock()
	sub := t.sub
	t.sub = eventbus.Subscription{}
	t.mu.Unlock()
	if sub.Valid() {
		t.bus.Unsubscribe(sub)
	}
}

// Get returns the latest progress for hash.
func (t *Tracker) Get(hash string) (Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.items[hash]
	return p, ok
}

// Snapshot returns every tracked download ordered by hash.
func (t *Tracker) Snapshot() []Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Progress, 0, len(t.items))
	for _, p := range t.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out
}

// Watch calls fn for every change to hash. An empty hash watches all
// downloads. The returned func removes the watch.
func (t *Tracker) Watch(hash string, fn func(Progress)) func() {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.watchers[hash] = append(t.watchers[hash], watcher{id: id, fn: fn})
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		list := t.watchers[hash]
		for i, w := range list {
			if w.id == id {
				t.watchers[hash] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(t.watchers[hash]) == 0 {
			delete(t.watchers, hash)
		}
	}
}

// Forget drops a finished or removed download.
func (t *Tracker) Forget(hash string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, hash)
}

func (t *Tracker) handle(payload any) {
	frame, ok := payload.(fields)
	if !ok {
		return
	}

	// Only hash and progress are required; the rest is best-effort.
	hash, ok := frame.String("hash")
	if !ok || hash == "" {
		return
	}
	pct, ok := frame.Number("progress")
	if !ok {
		t.logger.Warn().Str("hash", hash).Msg("Download progress frame without numeric progress")
		return
	}

	p := Progress{Hash: hash, Progress: pct}
	p.Downloaded, _ = frame.Number("downloaded")
	p.Speed, _ = frame.Number("speed")
	p.ETA, _ = frame.Number("eta")
	p.Status, _ = frame.String("status")
	t.Update(p)
}

// Update records p and notifies watchers. A frame identical to the stored
// state is ignored, since one server frame can be routed here twice.
func (t *Tracker) Update(p Progress) {
	t.mu.Lock()
	if prev, ok := t.items[p.Hash]; ok && prev.sameAs(p) {
		t.mu.Unlock()
		return
	}
	p.UpdatedAt = t.now()
	t.items[p.Hash] = p

	var fns []func(Progress)
	for _, w := range t.watchers[p.Hash] {
		fns = append(fns, w.fn)
	}
	if p.Hash != "" {
		for _, w := range t.watchers[""] {
			fns = append(fns, w.fn)
		}
	}
	t.mu.Unlock()

	t.logger.Debug().Str("hash", p.Hash).Float64("progress", p.Progress).Str("status", p.Status).Msg("Download progress")
	for _, fn := range fns {
		fn(p)
	}
}
