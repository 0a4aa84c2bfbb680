package timeline

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"lawlink-chat/internal/domain"
	"lawlink-chat/pkg/metrics"
)

const (
	// DefaultExpiry is how long a provisional entry waits for its server
	// confirmation before it is marked failed
	DefaultExpiry = 15 * time.Second
	// DefaultTolerance is the created_at window within which a history row is
	// considered the confirmation of a provisional entry
	DefaultTolerance = 5 * time.Second

	localIDPrefix = "local-"
)

// Reconciler merges the durable history and the live event stream of one room
// into a single ordered, deduplicated timeline. It is the exclusive owner of
// that room's entries for the lifetime of the room session.
//
// Ordering is insertion order, not strict created_at order: once an entry is
// placed it is never re-sorted, so the rendered timeline never reshuffles as
// confirmations arrive.
type Reconciler struct {
	roomID string
	selfID string
	log    *zap.Logger

	expiry    time.Duration
	tolerance time.Duration
	onChange  func()

	mu      sync.Mutex
	entries []*domain.TimelineEntry
	byID    map[string]*domain.TimelineEntry
	timers  map[string]*time.Timer // provisional local id -> expiry timer
	nextSeq int
	unread  int
	closed  bool
}

// Option customizes a Reconciler
type Option func(*Reconciler)

// WithExpiry overrides the provisional confirmation timeout
func WithExpiry(d time.Duration) Option {
	return func(r *Reconciler) { r.expiry = d }
}

// WithTolerance overrides the history-match tolerance window
func WithTolerance(d time.Duration) Option {
	return func(r *Reconciler) { r.tolerance = d }
}

// WithOnChange registers a callback invoked after every timeline mutation
func WithOnChange(fn func()) Option {
	return func(r *Reconciler) { r.onChange = fn }
}

// WithLogger attaches a logger
func WithLogger(log *zap.Logger) Option {
	return func(r *Reconciler) { r.log = log }
}

// New creates a Reconciler for one room on behalf of the local user
func New(roomID, selfID string, opts ...Option) *Reconciler {
	r := &Reconciler{
		roomID:    roomID,
		selfID:    selfID,
		log:       zap.NewNop(),
		expiry:    DefaultExpiry,
		tolerance: DefaultTolerance,
		byID:      make(map[string]*domain.TimelineEntry),
		timers:    make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AppendLocal synthesizes a provisional entry for a message the local user
// just sent. The entry renders immediately; confirmation arrives later as a
// history row or a live echo. Returns the provisional message carrying its
// local id, ready to publish.
func (r *Reconciler) AppendLocal(kind domain.MessageKind, body, fileName string, fileSize int64) domain.Message {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.Message{}
	}

	r.nextSeq++
	msg := domain.Message{
		ID:        fmt.Sprintf("%s%d", localIDPrefix, r.nextSeq),
		RoomID:    r.roomID,
		SenderID:  r.selfID,
		Kind:      kind,
		Body:      body,
		CreatedAt: time.Now(),
		FileName:  fileName,
		FileSize:  fileSize,
	}
	entry := &domain.TimelineEntry{
		Message: msg,
		IsSelf:  true,
		State:   domain.EntryProvisional,
	}
	r.entries = append(r.entries, entry)
	r.byID[msg.ID] = entry

	localID := msg.ID
	r.timers[localID] = time.AfterFunc(r.expiry, func() {
		r.expire(localID)
	})

	r.mu.Unlock()

	metrics.MessagesSentTotal.WithLabelValues(string(kind)).Inc()
	r.notify()
	return msg
}

// ApplyHistory merges a history fetch result. Rows are inserted in the order
// returned; a row matching an outstanding provisional entry confirms it in
// place instead of duplicating the line.
func (r *Reconciler) ApplyHistory(msgs []domain.Message) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	changed := false
	for i := range msgs {
		msg := msgs[i]
		if _, exists := r.byID[msg.ID]; exists {
			continue
		}
		if entry := r.matchProvisionalLocked(msg); entry != nil {
			r.confirmLocked(entry, msg)
			changed = true
			continue
		}
		r.entries = append(r.entries, &domain.TimelineEntry{
			Message: msg,
			IsSelf:  msg.SenderID == r.selfID,
			State:   domain.EntryConfirmed,
		})
		r.byID[msg.ID] = r.entries[len(r.entries)-1]
		changed = true
	}
	r.mu.Unlock()

	if changed {
		r.notify()
	}
}

// ApplyEvent merges one inbound live message event.
//
// An echo of the local user's own message confirms the matching provisional
// entry and is otherwise dropped: the line was already rendered optimistically
// and accepting the echo would duplicate it. A remote message is appended
// unless an entry with the same id already exists, which protects against
// duplicate delivery from reconnect replay.
func (r *Reconciler) ApplyEvent(evt domain.Event) {
	if evt.Message == nil {
		return
	}
	msg := *evt.Message

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	if _, exists := r.byID[msg.ID]; exists {
		r.mu.Unlock()
		metrics.DuplicatesDroppedTotal.WithLabelValues("replay").Inc()
		return
	}

	if msg.SenderID == r.selfID {
		entry := r.matchProvisionalLocked(msg)
		if entry == nil {
			// Own message with no outstanding provisional: either the echo
			// of a message already confirmed via history, or a stray frame.
			// Dropping it is the explicit rule, not a timing artifact.
			r.mu.Unlock()
			metrics.DuplicatesDroppedTotal.WithLabelValues("self_echo").Inc()
			r.log.Debug("dropped self echo with no provisional match", zap.String("message_id", msg.ID))
			return
		}
		r.confirmLocked(entry, msg)
		r.mu.Unlock()
		r.notify()
		return
	}

	r.entries = append(r.entries, &domain.TimelineEntry{
		Message: msg,
		IsSelf:  false,
		State:   domain.EntryConfirmed,
	})
	r.byID[msg.ID] = r.entries[len(r.entries)-1]
	r.unread++
	r.mu.Unlock()
	r.notify()
}

// matchProvisionalLocked finds the oldest provisional entry with the same
// sender, body and kind whose created_at lies within the tolerance window
func (r *Reconciler) matchProvisionalLocked(msg domain.Message) *domain.TimelineEntry {
	for _, entry := range r.entries {
		if entry.State != domain.EntryProvisional {
			continue
		}
		if entry.SenderID != msg.SenderID || entry.Body != msg.Body || entry.Kind != msg.Kind {
			continue
		}
		delta := msg.CreatedAt.Sub(entry.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= r.tolerance {
			return entry
		}
	}
	return nil
}

// confirmLocked transitions a provisional entry to confirmed in place,
// adopting the server-authoritative id and timestamp
func (r *Reconciler) confirmLocked(entry *domain.TimelineEntry, confirmed domain.Message) {
	if timer, ok := r.timers[entry.ID]; ok {
		timer.Stop()
		delete(r.timers, entry.ID)
	}
	delete(r.byID, entry.ID)

	entry.Message = confirmed
	entry.IsSelf = true
	entry.State = domain.EntryConfirmed
	r.byID[confirmed.ID] = entry

	metrics.MessagesConfirmedTotal.Inc()
}

// expire marks an unconfirmed provisional entry as failed
func (r *Reconciler) expire(localID string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	delete(r.timers, localID)
	entry, ok := r.byID[localID]
	if !ok || entry.State != domain.EntryProvisional {
		r.mu.Unlock()
		return
	}
	entry.State = domain.EntryExpired
	r.mu.Unlock()

	metrics.MessagesExpiredTotal.Inc()
	r.log.Warn("provisional message expired unconfirmed",
		zap.String("room_id", r.roomID),
		zap.String("local_id", localID))
	r.notify()
}

// Entries returns a copy of the timeline in render order
func (r *Reconciler) Entries() []domain.TimelineEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.TimelineEntry, len(r.entries))
	for i, e := range r.entries {
		out[i] = *e
	}
	return out
}

// ConfirmedCount returns the number of confirmed entries; provisional and
// expired entries are excluded
func (r *Reconciler) ConfirmedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries {
		if e.State == domain.EntryConfirmed {
			n++
		}
	}
	return n
}

// Unread returns the number of remote messages received since the last
// MarkRead call
func (r *Reconciler) Unread() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unread
}

// MarkRead clears the unread counter
func (r *Reconciler) MarkRead() {
	r.mu.Lock()
	r.unread = 0
	r.mu.Unlock()
	r.notify()
}

// Close stops every outstanding expiry timer. The reconciler accepts no
// further events; its entries are discarded with the room session.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for id, timer := range r.timers {
		timer.Stop()
		delete(r.timers, id)
	}
}

func (r *Reconciler) notify() {
	if r.onChange != nil {
		r.onChange()
	}
}
