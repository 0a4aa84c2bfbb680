package presence

import (
	"sort"
	"sync"
	"time"

	"lawlink-chat/internal/domain"
)

const (
	// DefaultTTL is how long a typing signal stays visible without a refresh
	DefaultTTL = 5 * time.Second
	// sweepInterval is how often expired entries are reaped. The sweep covers
	// peers that disconnect mid-typing without ever sending a stop signal.
	sweepInterval = time.Second
)

// Tracker maintains the set of peers currently signaling "typing" in one
// room. It is a pure state reducer: outbound debouncing is the caller's job.
// The local user is never tracked.
type Tracker struct {
	selfID   string
	ttl      time.Duration
	onChange func()

	mu      sync.Mutex
	entries map[string]domain.PresenceEntry
	done    chan struct{}
	closed  bool
}

// Option customizes a Tracker
type Option func(*Tracker)

// WithTTL overrides the typing-signal expiry
func WithTTL(d time.Duration) Option {
	return func(t *Tracker) { t.ttl = d }
}

// WithOnChange registers a callback invoked after every presence mutation
func WithOnChange(fn func()) Option {
	return func(t *Tracker) { t.onChange = fn }
}

// NewTracker creates a Tracker on behalf of the local user and starts its
// expiry sweep. Close it with the room session.
func NewTracker(selfID string, opts ...Option) *Tracker {
	t := &Tracker{
		selfID:  selfID,
		ttl:     DefaultTTL,
		entries: make(map[string]domain.PresenceEntry),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	go t.sweep()

	return t
}

// Apply reduces one inbound typing event into the presence map. A start
// signal upserts the peer with a fresh expiry; a stop signal removes it
// immediately.
func (t *Tracker) Apply(evt domain.Event) {
	if evt.SenderID == "" || evt.SenderID == t.selfID {
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	changed := false
	if evt.IsTyping {
		name := evt.SenderName
		if name == "" {
			if existing, ok := t.entries[evt.SenderID]; ok {
				name = existing.DisplayName
			} else {
				name = evt.SenderID
			}
		}
		t.entries[evt.SenderID] = domain.PresenceEntry{
			PeerID:      evt.SenderID,
			DisplayName: name,
			ExpiresAt:   time.Now().Add(t.ttl),
		}
		changed = true
	} else if _, ok := t.entries[evt.SenderID]; ok {
		delete(t.entries, evt.SenderID)
		changed = true
	}
	t.mu.Unlock()

	if changed {
		t.notify()
	}
}

// List returns the live presence entries ordered by peer id
func (t *Tracker) List() []domain.PresenceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	out := make([]domain.PresenceEntry, 0, len(t.entries))
	for _, e := range t.entries {
		if e.ExpiresAt.After(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
	return out
}

// Close stops the expiry sweep and drops all entries
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.entries = make(map[string]domain.PresenceEntry)
	close(t.done)
	t.mu.Unlock()
}

// sweep reaps expired entries until the tracker is closed
func (t *Tracker) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			now := time.Now()
			t.mu.Lock()
			changed := false
			for id, e := range t.entries {
				if !e.ExpiresAt.After(now) {
					delete(t.entries, id)
					changed = true
				}
			}
			t.mu.Unlock()
			if changed {
				t.notify()
			}
		}
	}
}

func (t *Tracker) notify() {
	if t.onChange != nil {
		t.onChange()
	}
}
