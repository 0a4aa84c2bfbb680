package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"lawlink-chat/internal/call"
	"lawlink-chat/internal/domain"
	"lawlink-chat/internal/presence"
	"lawlink-chat/internal/timeline"
	"lawlink-chat/internal/transport"
	pkgerrors "lawlink-chat/pkg/errors"
)

// Transport is the slice of the transport adapter the session consumes
type Transport interface {
	JoinRoom(roomID string)
	LeaveRoom(roomID string)
	PublishMessage(roomID string, msg domain.Message)
	PublishTyping(roomID string, isTyping bool)
	Subscribe(roomID string, l transport.Listener) (unsubscribe func())
	SubscribeState(h transport.StateHandler) (unsubscribe func())
	State() domain.ConnectionState
}

// History is the durable message store's query surface
type History interface {
	Messages(ctx context.Context, roomID string) ([]domain.Message, error)
	Room(ctx context.Context, roomID string) (*domain.Room, error)
}

// Identity resolves the local user
type Identity interface {
	UserID() string
	DisplayName() string
	AuthToken(ctx context.Context) (string, error)
}

// Snapshot is the UI-consumable view of one room session. A fresh snapshot
// is delivered on every underlying state change.
type Snapshot struct {
	RoomID    string                 `json:"room_id"`
	Timeline  []domain.TimelineEntry `json:"timeline"`
	Presence  []domain.PresenceEntry `json:"presence"`
	Connected bool                   `json:"connected"`
	Call      domain.CallSession     `json:"call"`
	Unread    int                    `json:"unread"`
}

// Options wires a session's collaborators
type Options struct {
	Transport Transport
	History   History
	Identity  Identity
	Tokens    call.TokenExchanger
	Log       *zap.Logger
	// OnChange receives a fresh snapshot after every state change
	OnChange func(Snapshot)
	// ProvisionalExpiry and TypingTTL override the engine timeouts; zero
	// keeps the defaults
	ProvisionalExpiry time.Duration
	TypingTTL         time.Duration
}

// Session is the composed room session the UI talks to. It owns the room's
// reconciler, presence tracker and call supervisor, and routes user intents
// to the transport or the call supervisor.
type Session struct {
	roomID    string
	transport Transport
	identity  Identity
	log       *zap.Logger
	onChange  func(Snapshot)

	reconciler *timeline.Reconciler
	tracker    *presence.Tracker
	supervisor *call.Supervisor

	ctx           context.Context
	cancel        context.CancelFunc
	unsubscribers []func()

	mu     sync.Mutex
	room   *domain.Room
	closed bool
}

// Mount creates the session, joins the room and kicks off the history fetch.
// History load and transport join run in parallel; the reconciler merges
// whichever lands first.
func Mount(ctx context.Context, roomID string, opts Options) (*Session, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, pkgerrors.MissingFieldError("room id")
	}
	if opts.Transport == nil || opts.History == nil || opts.Identity == nil || opts.Tokens == nil {
		return nil, pkgerrors.InternalError("session mounted without its collaborators")
	}

	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		roomID:    roomID,
		transport: opts.Transport,
		identity:  opts.Identity,
		log:       log,
		onChange:  opts.OnChange,
		ctx:       sctx,
		cancel:    cancel,
	}

	selfID := opts.Identity.UserID()

	tlOpts := []timeline.Option{timeline.WithOnChange(s.changed), timeline.WithLogger(log)}
	if opts.ProvisionalExpiry > 0 {
		tlOpts = append(tlOpts, timeline.WithExpiry(opts.ProvisionalExpiry))
	}
	s.reconciler = timeline.New(roomID, selfID, tlOpts...)

	prOpts := []presence.Option{presence.WithOnChange(s.changed)}
	if opts.TypingTTL > 0 {
		prOpts = append(prOpts, presence.WithTTL(opts.TypingTTL))
	}
	s.tracker = presence.NewTracker(selfID, prOpts...)

	s.supervisor = call.NewSupervisor(roomID, opts.Identity, opts.Tokens, log,
		func(domain.CallSession) { s.changed() })

	unsubEvents := opts.Transport.Subscribe(roomID, transport.Listener{
		OnMessage: s.reconciler.ApplyEvent,
		OnTyping:  s.handleTyping,
		OnError:   s.handleError,
	})
	unsubState := opts.Transport.SubscribeState(func(domain.ConnectionState) { s.changed() })
	s.unsubscribers = append(s.unsubscribers, unsubEvents, unsubState)

	opts.Transport.JoinRoom(roomID)
	go s.loadHistory(sctx, opts.History)

	return s, nil
}

// loadHistory performs the one-shot history fetch. A result that lands after
// unmount is discarded: the cancelled context aborts the request, and the
// closed reconciler refuses late applies.
func (s *Session) loadHistory(ctx context.Context, store History) {
	room, err := store.Room(ctx, s.roomID)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("room metadata fetch failed", zap.String("room_id", s.roomID), zap.Error(err))
		}
	} else {
		s.mu.Lock()
		s.room = room
		s.mu.Unlock()
	}

	msgs, err := store.Messages(ctx, s.roomID)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("history fetch failed", zap.String("room_id", s.roomID), zap.Error(err))
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	s.reconciler.ApplyHistory(msgs)
}

// handleTyping enriches a typing event with a display name from the room's
// participant list before reducing it into the tracker
func (s *Session) handleTyping(evt domain.Event) {
	if evt.SenderName == "" {
		s.mu.Lock()
		if s.room != nil {
			evt.SenderName = s.room.ParticipantName(evt.SenderID)
		}
		s.mu.Unlock()
	}
	s.tracker.Apply(evt)
}

// handleError surfaces a delivery failure. The message is not retried: retry
// is a user-initiated re-send, because re-sending from a timeout callback
// could reorder concurrent sends.
func (s *Session) handleError(evt domain.Event) {
	s.log.Warn("transport error event",
		zap.String("room_id", evt.RoomID),
		zap.String("error", evt.Error))
	s.changed()
}

// SendMessage renders a provisional entry immediately and publishes the
// message. Rejected synchronously on an empty body or a down connection.
func (s *Session) SendMessage(body string) error {
	if strings.TrimSpace(body) == "" {
		return pkgerrors.ValidationError("message body is empty")
	}
	return s.send(domain.KindText, body, "", 0)
}

// SendFile publishes a file reference (already uploaded elsewhere) as an
// image or file message
func (s *Session) SendFile(kind domain.MessageKind, fileURL, fileName string, fileSize int64) error {
	if kind != domain.KindImage && kind != domain.KindFile {
		return pkgerrors.ValidationError("attachment kind must be image or file")
	}
	if strings.TrimSpace(fileURL) == "" {
		return pkgerrors.MissingFieldError("file url")
	}
	return s.send(kind, fileURL, fileName, fileSize)
}

func (s *Session) send(kind domain.MessageKind, body, fileName string, fileSize int64) error {
	if s.isClosed() {
		return pkgerrors.InternalError("session is unmounted")
	}
	if s.transport.State() != domain.Connected {
		// Rejected, not buffered: the user sees the input disabled and the
		// message is not silently queued behind a dead socket
		return pkgerrors.DisconnectedError()
	}

	msg := s.reconciler.AppendLocal(kind, body, fileName, fileSize)
	s.transport.PublishMessage(s.roomID, msg)
	return nil
}

// SetTyping publishes a typing start/stop signal for the local user.
// Debouncing is the caller's responsibility.
func (s *Session) SetTyping(isTyping bool) error {
	if s.isClosed() {
		return pkgerrors.InternalError("session is unmounted")
	}
	if s.transport.State() != domain.Connected {
		return pkgerrors.DisconnectedError()
	}
	s.transport.PublishTyping(s.roomID, isTyping)
	return nil
}

// JoinCall starts a call attempt; no-op error while one is in flight
func (s *Session) JoinCall(kind domain.CallKind) error {
	if s.isClosed() {
		return pkgerrors.InternalError("session is unmounted")
	}
	return s.supervisor.Join(s.ctx, kind)
}

// LeaveCall ends the call from any state; idempotent
func (s *Session) LeaveCall() {
	s.supervisor.Leave()
}

// MarkRead clears the unread counter
func (s *Session) MarkRead() {
	s.reconciler.MarkRead()
}

// Snapshot builds the current UI-consumable view
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		RoomID:    s.roomID,
		Timeline:  s.reconciler.Entries(),
		Presence:  s.tracker.List(),
		Connected: s.transport.State() == domain.Connected,
		Call:      s.supervisor.Session(),
		Unread:    s.reconciler.Unread(),
	}
}

// Unmount tears the session down: cancels an in-flight history fetch, leaves
// the room, detaches every listener and best-effort leaves the call so no
// media credential is orphaned. Idempotent.
func (s *Session) Unmount() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	for _, unsub := range s.unsubscribers {
		unsub()
	}
	s.transport.LeaveRoom(s.roomID)
	s.supervisor.Leave()
	s.reconciler.Close()
	s.tracker.Close()

	s.log.Info("room session unmounted", zap.String("room_id", s.roomID))
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// changed delivers a fresh snapshot to the UI observer
func (s *Session) changed() {
	if s.onChange == nil || s.isClosed() {
		return
	}
	s.onChange(s.Snapshot())
}
